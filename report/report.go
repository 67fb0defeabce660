// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report aggregates the outcome of an exploration.
package report

import (
	"time"

	"github.com/aclements/weavemc/failure"
	"github.com/google/uuid"
)

// Status classifies how an execution ended.
type Status uint8

const (
	// Complete means every thread finished.
	Complete Status = iota
	// Blocked means some thread could not finish: it was blocked
	// on a lock, a join or by the program itself, or the step or
	// depth budget ran out.
	Blocked
	// Moot means the execution was pruned because an equivalent
	// one is explored elsewhere.
	Moot
	// Buggy means the execution ended at a bug.
	Buggy
)

func (s Status) String() string {
	switch s {
	case Complete:
		return "complete"
	case Blocked:
		return "blocked"
	case Moot:
		return "moot"
	case Buggy:
		return "buggy"
	}
	return "unknown"
}

// An Execution is the outcome of one execution.
type Execution struct {
	Status Status
	// Reason says why a blocked execution did not complete.
	Reason string
	Steps  int
	Events int
	// Signature fingerprints the execution graph of a complete
	// execution.
	Signature uint64
	Bug       *failure.Bug
	Path      []int
	// Estimate is the Knuth estimate of the total number of
	// executions from this one, in estimation mode.
	Estimate float64
	Elapsed  time.Duration
}

// Estimate is the result of estimation mode.
type Estimate struct {
	Samples int
	// Mean and StdDev of the estimated number of executions.
	Mean, StdDev float64
	// PerExecution is the mean time to run one execution.
	PerExecution time.Duration
	// TimeToCompletion projects how long exploring every
	// execution would take.
	TimeToCompletion time.Duration
}

// A Result summarizes an exploration.
type Result struct {
	RunID string
	Mode  string
	Model string

	Complete, Blocked, Moot, Buggy int

	// Bugs lists each distinct bug found, in the order found.
	Bugs []*failure.Bug

	// Exhausted is set if every execution was explored. It is
	// false if a budget or cancellation stopped the exploration.
	Exhausted bool

	Elapsed  time.Duration
	Estimate *Estimate

	sigs    map[uint64]struct{}
	bugKeys map[string]bool
}

func New(mode, model string) *Result {
	return &Result{
		RunID:   uuid.NewString(),
		Mode:    mode,
		Model:   model,
		sigs:    make(map[uint64]struct{}),
		bugKeys: make(map[string]bool),
	}
}

// Record adds an execution to r.
func (r *Result) Record(e *Execution) {
	switch e.Status {
	case Complete:
		r.Complete++
		r.sigs[e.Signature] = struct{}{}
	case Blocked:
		r.Blocked++
	case Moot:
		r.Moot++
	case Buggy:
		r.Buggy++
	}
	if e.Bug != nil {
		r.AddBug(e.Bug)
	}
}

// AddBug records b unless the same bug was already recorded.
func (r *Result) AddBug(b *failure.Bug) bool {
	key := b.Key()
	if r.bugKeys[key] {
		return false
	}
	r.bugKeys[key] = true
	r.Bugs = append(r.Bugs, b)
	return true
}

// Executions returns the number of executions explored, including
// buggy ones.
func (r *Result) Executions() int {
	return r.Complete + r.Blocked + r.Moot + r.Buggy
}

// Distinct returns the number of different complete execution graphs.
func (r *Result) Distinct() int {
	return len(r.sigs)
}

// Merge adds the executions of o, explored independently, to r.
func (r *Result) Merge(o *Result) {
	r.Complete += o.Complete
	r.Blocked += o.Blocked
	r.Moot += o.Moot
	r.Buggy += o.Buggy
	for sig := range o.sigs {
		r.sigs[sig] = struct{}{}
	}
	for _, b := range o.Bugs {
		r.AddBug(b)
	}
	if o.Elapsed > r.Elapsed {
		r.Elapsed = o.Elapsed
	}
}

// HasBugs reports whether any bug was found.
func (r *Result) HasBugs() bool {
	return len(r.Bugs) > 0
}
