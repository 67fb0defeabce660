// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package amb provides strategies for exploring a tree of ambiguous
// choices by re-running a program from the root once per path.
package amb

import (
	"errors"
	"fmt"
)

// ChoiceKind says what a choice point decides.
type ChoiceKind uint8

const (
	// Schedule picks the next thread to run.
	Schedule ChoiceKind = iota
	// ReadsFrom picks the write a read observes.
	ReadsFrom
	// Coherence picks where a write goes in coherence order.
	Coherence
	// SpuriousFail decides whether a weak compare-exchange fails
	// even though the value matched.
	SpuriousFail
)

var kindNames = [...]string{"schedule", "reads-from", "coherence", "spurious-fail"}

func (k ChoiceKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ChoiceKind(%d)", k)
}

// A Choice is one choice point on a path: Taken out of Width
// alternatives.
type Choice struct {
	Kind  ChoiceKind
	Width int
	Taken int
}

// A Strategy walks a tree of choice points. Each call to Amb is a
// node whose children are its alternatives, and each call to Next
// ends the current root-to-leaf path.
type Strategy interface {
	// Amb picks one of n alternatives, numbered from 0, for a
	// choice of the given kind. It returns 0, false if the path
	// may not grow any deeper.
	//
	// After Reset or Next, the next Amb is the root choice.
	//
	// Amb panics with *ErrNondeterminism if a replayed choice does
	// not have the width it was recorded with.
	Amb(kind ChoiceKind, n int) (int, bool)

	// Next ends the current path and reports whether any path is
	// left. Strategies that cannot tell, such as random sampling,
	// report true until their own limit.
	Next() bool

	// Reset forgets every explored path.
	Reset()

	// Path returns the alternatives taken so far on the current
	// path. Replaying them with StrategyReplay reproduces the
	// path.
	Path() []int
}

// DefaultMaxDepth bounds paths when a strategy's MaxDepth is 0.
var DefaultMaxDepth = 1000

// PathTerminated is returned when a path is cut short because a
// Strategy refused to continue it.
var PathTerminated = errors.New("path terminated")

// ErrNondeterminism is the panic value of a strategy that replayed a
// path and saw the program make different choices than before.
type ErrNondeterminism struct {
	Detail string
}

func (e *ErrNondeterminism) Error() string {
	return "non-determinism detected: " + e.Detail
}

func maxDepth(d int) int {
	if d == 0 {
		return DefaultMaxDepth
	}
	return d
}
