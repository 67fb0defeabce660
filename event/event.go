// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package event defines the events, labels and scalar values that
// make up an execution graph.
package event

import "fmt"

// ThreadID identifies a thread of the program under test. The main
// thread is 0 and threads are numbered in creation order.
type ThreadID int

// Main is the thread that starts every execution.
const Main ThreadID = 0

// An Event is a position in the program order of one thread. Indexes
// start at 1 in every thread and have no gaps.
type Event struct {
	Thread ThreadID
	Index  int
}

// Init is the pseudo-event that stands for the initial contents of
// memory. Every write is coherence-after Init.
var Init = Event{Thread: 0, Index: 0}

func (e Event) IsInit() bool {
	return e == Init
}

// Prev returns the program-order predecessor of e. The predecessor of
// a thread's first event has Index 0.
func (e Event) Prev() Event {
	return Event{e.Thread, e.Index - 1}
}

func (e Event) String() string {
	if e.IsInit() {
		return "init"
	}
	return fmt.Sprintf("T%d:%d", e.Thread, e.Index)
}

// An Ordering is a C++20-style memory ordering.
type Ordering uint8

const (
	NotAtomic Ordering = iota
	Relaxed
	Acquire
	Release
	AcqRel
	SeqCst
)

var orderingNames = [...]string{"na", "rlx", "acq", "rel", "acqrel", "sc"}

func (o Ordering) String() string {
	if int(o) < len(orderingNames) {
		return orderingNames[o]
	}
	return fmt.Sprintf("Ordering(%d)", o)
}

// ParseOrdering parses the short names printed by Ordering.String.
func ParseOrdering(s string) (Ordering, error) {
	for i, name := range orderingNames {
		if name == s {
			return Ordering(i), nil
		}
	}
	return 0, fmt.Errorf("unknown memory ordering %q", s)
}

func (o Ordering) IsAtomic() bool { return o != NotAtomic }

// IsAcquire reports whether o has acquire semantics on loads.
func (o Ordering) IsAcquire() bool {
	return o == Acquire || o == AcqRel || o == SeqCst
}

// IsRelease reports whether o has release semantics on stores.
func (o Ordering) IsRelease() bool {
	return o == Release || o == AcqRel || o == SeqCst
}

// Load returns the part of o that applies to the read half of a
// read-modify-write.
func (o Ordering) Load() Ordering {
	switch o {
	case Release:
		return Relaxed
	case AcqRel:
		return Acquire
	}
	return o
}

// Store returns the part of o that applies to the write half of a
// read-modify-write.
func (o Ordering) Store() Ordering {
	switch o {
	case Acquire:
		return Relaxed
	case AcqRel:
		return Release
	}
	return o
}

// Stronger reports whether o orders strictly more than p.
func (o Ordering) Stronger(p Ordering) bool {
	rank := func(o Ordering) int {
		switch o {
		case AcqRel:
			return 4
		case SeqCst:
			return 5
		case Release:
			return 2
		case Acquire:
			return 2
		}
		return int(o)
	}
	return rank(o) > rank(p)
}

// ActionKind classifies the next instruction of a thread for
// scheduling policies that prefer writes over reads.
type ActionKind uint8

const (
	NonLoad ActionKind = iota
	Load
)

func (k ActionKind) String() string {
	if k == Load {
		return "load"
	}
	return "non-load"
}
