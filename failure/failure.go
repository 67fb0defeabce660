// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package failure defines the errors reported while exploring a
// program.
//
// A *Bug ends the execution that found it and is recorded in the
// exploration result. Exploration continues with the next execution.
// A *ConfigError is fatal and is reported before anything runs.
package failure

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/aclements/weavemc/event"
)

// Category is the broad class of a Bug.
type Category uint8

const (
	// ConsistencyViolation is a behavior of the program that the
	// memory model makes undefined, such as a data race.
	ConsistencyViolation Category = iota
	// UsageError is a misuse of an API, such as freeing memory
	// twice.
	UsageError
	// Safety is a failed assertion of the program itself.
	Safety
)

func (c Category) String() string {
	switch c {
	case ConsistencyViolation:
		return "consistency violation"
	case UsageError:
		return "usage error"
	case Safety:
		return "safety violation"
	}
	return fmt.Sprintf("Category(%d)", c)
}

// Kind is the specific problem a Bug reports.
type Kind uint8

const (
	DataRace Kind = iota
	RaceFreeMalloc
	CoherenceCycle
	BadReadsFrom
	RMWAtomicity
	AccessFreed
	UninitializedRead
	FreeNonMalloc
	DoubleFree
	FreeSizeMismatch
	InvalidUnlock
	InvalidThread
	InvalidJoin
	ZeroSize
	Assertion
)

var kindInfo = [...]struct {
	name string
	cat  Category
}{
	DataRace:          {"data race", ConsistencyViolation},
	RaceFreeMalloc:    {"race between free and access", ConsistencyViolation},
	CoherenceCycle:    {"coherence violation", ConsistencyViolation},
	BadReadsFrom:      {"invalid reads-from", ConsistencyViolation},
	RMWAtomicity:      {"RMW atomicity violation", ConsistencyViolation},
	AccessFreed:       {"access to freed memory", ConsistencyViolation},
	UninitializedRead: {"read of uninitialized memory", ConsistencyViolation},
	FreeNonMalloc:     {"free of memory that was not allocated", UsageError},
	DoubleFree:        {"double free", UsageError},
	FreeSizeMismatch:  {"free with wrong size", UsageError},
	InvalidUnlock:     {"unlock of a mutex not held by this thread", UsageError},
	InvalidThread:     {"operation on an unknown thread", UsageError},
	InvalidJoin:       {"invalid join", UsageError},
	ZeroSize:          {"zero-sized access", UsageError},
	Assertion:         {"assertion failed", Safety},
}

func (k Kind) String() string {
	if int(k) < len(kindInfo) {
		return kindInfo[k].name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Category returns the category k belongs to.
func (k Kind) Category() Category {
	return kindInfo[k].cat
}

// A Bug is a problem found in one execution of the program.
type Bug struct {
	Kind   Kind
	Thread event.ThreadID
	Addr   uint64

	// Events are the events involved. The last one is the event
	// that exposed the problem, if it was added to the graph.
	Events []event.Event

	// Msg adds detail, such as an assertion message.
	Msg string

	// Path is the sequence of choices that leads to this
	// execution. Replaying it reproduces the bug.
	Path []int
}

// New returns a Bug of kind k found by thread tid.
func New(k Kind, tid event.ThreadID, addr uint64, msg string, evs ...event.Event) *Bug {
	return &Bug{Kind: k, Thread: tid, Addr: addr, Msg: msg, Events: evs}
}

func (b *Bug) Category() Category {
	return b.Kind.Category()
}

func (b *Bug) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s: %s", b.Category(), b.Kind)
	if b.Msg != "" {
		fmt.Fprintf(&buf, ": %s", b.Msg)
	}
	fmt.Fprintf(&buf, " (thread %d", b.Thread)
	if b.Addr != 0 {
		fmt.Fprintf(&buf, ", address %#x", b.Addr)
	}
	if len(b.Events) > 0 {
		evs := make([]string, len(b.Events))
		for i, ev := range b.Events {
			evs[i] = ev.String()
		}
		fmt.Fprintf(&buf, ", events %s", strings.Join(evs, " "))
	}
	buf.WriteString(")")
	return buf.String()
}

// Key identifies bugs that are the same problem at the same place, so
// the same race found along many paths is reported once.
func (b *Bug) Key() string {
	return fmt.Sprintf("%d/%d/%#x/%v/%s", b.Kind, b.Thread, b.Addr, b.Events, b.Msg)
}

// AsBug returns the *Bug in err's chain, if any.
func AsBug(err error) (*Bug, bool) {
	var b *Bug
	if errors.As(err, &b) {
		return b, true
	}
	return nil, false
}

// A ConfigError is an unsupported configuration.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Detail)
}

// ErrExplorationExhausted is returned by a strategy that has no more
// executions to explore. It is not a failure.
var ErrExplorationExhausted = errors.New("exploration exhausted")
