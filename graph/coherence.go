// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"sort"

	"github.com/aclements/weavemc/event"
)

// Coherence returns the writes to addr in coherence order. Init is
// implicitly first and is not included.
func (g *Graph) Coherence(addr uint64) []event.Event {
	return g.co[addr]
}

// CoLen returns the number of writes to addr.
func (g *Graph) CoLen(addr uint64) int {
	return len(g.co[addr])
}

// CoMax returns the coherence-latest write to addr, or Init.
func (g *Graph) CoMax(addr uint64) event.Event {
	co := g.co[addr]
	if len(co) == 0 {
		return event.Init
	}
	return co[len(co)-1]
}

// CoPos returns the position of w in the coherence order of addr,
// counting Init as 0. It returns -1 if w is not a write to addr.
func (g *Graph) CoPos(addr uint64, w event.Event) int {
	if w.IsInit() {
		return 0
	}
	for i, ev := range g.co[addr] {
		if ev == w {
			return i + 1
		}
	}
	return -1
}

// coAt returns the write at position pos, counting Init as 0.
func (g *Graph) coAt(addr uint64, pos int) event.Event {
	if pos == 0 {
		return event.Init
	}
	return g.co[addr][pos-1]
}

// Addrs returns every address that has been written, in increasing
// order.
func (g *Graph) Addrs() []uint64 {
	addrs := make([]uint64, 0, len(g.co))
	for addr := range g.co {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// bound returns the coherence-earliest write to addr that tid may
// still observe with ordering ord.
func (g *Graph) bound(tid event.ThreadID, addr uint64, ord event.Ordering) event.Event {
	th := g.threads[g.thread(tid)]
	b := th.cur.Observed(addr)
	if ord == event.SeqCst {
		if w := g.sc.Observed(addr); g.CoPos(addr, w) > g.CoPos(addr, b) {
			b = w
		}
	}
	if g.opts.SC {
		b = g.CoMax(addr)
	}
	return b
}

// ReadCandidates returns the writes a read of addr by tid may observe,
// coherence-latest first, and the bound that AddRead expects. Reads
// never observe a write coherence-before one the thread already
// knows of.
func (g *Graph) ReadCandidates(tid event.ThreadID, addr uint64, ord event.Ordering) ([]event.Event, event.Event) {
	b := g.bound(tid, addr, ord)
	lo := g.CoPos(addr, b)
	var cands []event.Event
	for pos := len(g.co[addr]); pos >= lo; pos-- {
		cands = append(cands, g.coAt(addr, pos))
	}
	return cands, b
}

// WritePositions returns the coherence positions at which a new write
// of addr by tid may be inserted, latest first. A position p places
// the write immediately after the p'th write (counting from 0 for
// Init). A write is never placed between the two halves of an atomic
// update.
func (g *Graph) WritePositions(tid event.ThreadID, addr uint64, ord event.Ordering) []int {
	co := g.co[addr]
	lo := g.CoPos(addr, g.bound(tid, addr, ord))
	var ps []int
	for p := len(co); p >= lo; p-- {
		if p < len(co) && g.splitsUpdate(addr, p) {
			continue
		}
		ps = append(ps, p)
	}
	return ps
}

// splitsUpdate reports whether inserting a write at index p of addr's
// coherence order would separate an atomic update from its source.
func (g *Graph) splitsUpdate(addr uint64, p int) bool {
	next := g.Node(g.co[addr][p])
	w, ok := next.Label.(*event.Write)
	if !ok || !w.Type.Exclusive() {
		return false
	}
	return g.Node(next.Pos.Prev()).RF == g.coAt(addr, p)
}

// ValueAt returns the value of the coherence-latest write to addr, or
// its initial value.
func (g *Graph) ValueAt(addr uint64) event.Scalar {
	if w := g.Node(g.CoMax(addr)); w != nil {
		return w.Value
	}
	v, _ := g.InitValue(addr)
	return v
}

// LockHolder returns the thread holding the mutex at addr, if it is
// locked by a lock acquire.
func (g *Graph) LockHolder(addr uint64) (event.ThreadID, bool) {
	w := g.Node(g.CoMax(addr))
	if w == nil || w.Value.Value != event.MutexLocked {
		return 0, false
	}
	switch lab := w.Label.(*event.Write); lab.Type {
	case event.LockWrite, event.TrylockWrite:
		return w.Pos.Thread, true
	}
	return 0, false
}
