// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package event

import "fmt"

// Positions tracks, for every thread, the index of its last event and
// the kind of its next instruction.
//
// Using a thread that was never registered is a programming error in
// the interpreter and panics.
type Positions struct {
	last  []int
	kinds []ActionKind
}

// Reset forgets all threads and registers Main.
func (p *Positions) Reset() {
	p.last = append(p.last[:0], 0)
	p.kinds = append(p.kinds[:0], NonLoad)
}

// Register adds thread tid, which must be the next unused thread ID.
func (p *Positions) Register(tid ThreadID) {
	if int(tid) != len(p.last) {
		panic(fmt.Sprintf("registering thread %d, but next thread is %d", tid, len(p.last)))
	}
	p.last = append(p.last, 0)
	p.kinds = append(p.kinds, NonLoad)
}

// NumThreads returns the number of registered threads.
func (p *Positions) NumThreads() int {
	return len(p.last)
}

func (p *Positions) check(tid ThreadID) {
	if tid < 0 || int(tid) >= len(p.last) {
		panic(fmt.Sprintf("unknown thread %d", tid))
	}
}

// Next advances tid by one event and returns that event.
func (p *Positions) Next(tid ThreadID) Event {
	p.check(tid)
	p.last[tid]++
	return Event{tid, p.last[tid]}
}

// Undo takes back the most recent Next for tid.
func (p *Positions) Undo(tid ThreadID) {
	p.check(tid)
	if p.last[tid] == 0 {
		panic(fmt.Sprintf("thread %d has no event to undo", tid))
	}
	p.last[tid]--
}

// Last returns tid's most recent event. Before its first event this
// has Index 0.
func (p *Positions) Last(tid ThreadID) Event {
	p.check(tid)
	return Event{tid, p.last[tid]}
}

func (p *Positions) SetKind(tid ThreadID, k ActionKind) {
	p.check(tid)
	p.kinds[tid] = k
}

func (p *Positions) Kind(tid ThreadID) ActionKind {
	p.check(tid)
	return p.kinds[tid]
}
