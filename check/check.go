// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package check validates execution graphs against the memory model.
//
// The exploration driver calls Check after adding each event, so a
// problem is reported by the event that exposed it. CheckGraph
// re-validates a complete graph from scratch.
package check

import (
	"fmt"

	"github.com/aclements/weavemc/event"
	"github.com/aclements/weavemc/failure"
	"github.com/aclements/weavemc/graph"
)

// A Checker validates events as they are added to a graph.
type Checker struct {
	// StrictInit makes reads of memory without a known initial
	// value a bug instead of returning a placeholder.
	StrictInit bool
}

// Check validates n, the latest event added to g.
func (c *Checker) Check(g *graph.Graph, n *graph.Node) *failure.Bug {
	switch lab := n.Label.(type) {
	case *event.Read:
		if b := c.checkAccess(g, n, lab.Loc, lab.Ord, false); b != nil {
			return b
		}
		return c.checkRead(g, n, lab)
	case *event.Write:
		if b := c.checkAccess(g, n, lab.Loc, lab.Ord, true); b != nil {
			return b
		}
		return c.checkWrite(g, n, lab)
	case *event.Free:
		return c.checkFreeRace(g, n, lab)
	}
	return nil
}

// checkAccess reports data races between n and earlier accesses, and
// accesses to memory that is not allocated.
func (c *Checker) checkAccess(g *graph.Graph, n *graph.Node, loc event.Loc, ord event.Ordering, write bool) *failure.Bug {
	tid := n.Pos.Thread
	if graph.IsHeap(loc.Addr) {
		b := g.Allocator().Lookup(loc.Addr)
		switch {
		case b == nil:
			return failure.New(failure.AccessFreed, tid, loc.Addr, "address was never allocated", n.Pos)
		case b.Freed && n.Clock.Contains(b.Free):
			return failure.New(failure.AccessFreed, tid, loc.Addr, "", b.Free, n.Pos)
		case b.Freed:
			return failure.New(failure.RaceFreeMalloc, tid, loc.Addr, "access races with free", b.Free, n.Pos)
		case !n.Clock.Contains(b.Alloc):
			return failure.New(failure.RaceFreeMalloc, tid, loc.Addr, "access races with malloc", b.Alloc, n.Pos)
		}
	}

	for _, e := range g.MemoryEvents() {
		if e.Thread == tid || n.Clock.Contains(e) {
			continue
		}
		m := g.Node(e)
		mlab := m.Label.(event.MemoryLabel)
		if !mlab.Location().Overlaps(loc) {
			continue
		}
		_, mwrite := mlab.(*event.Write)
		if !write && !mwrite {
			continue
		}
		if ord.IsAtomic() && mlab.Ordering().IsAtomic() {
			continue
		}
		return failure.New(failure.DataRace, tid, loc.Addr, raceKind(mwrite, write), e, n.Pos)
	}
	return nil
}

func raceKind(first, second bool) string {
	rw := func(w bool) string {
		if w {
			return "write"
		}
		return "read"
	}
	return rw(first) + "-" + rw(second)
}

func (c *Checker) checkRead(g *graph.Graph, n *graph.Node, lab *event.Read) *failure.Bug {
	if b := validReadsFrom(g, n, lab); b != nil {
		return b
	}
	addr := lab.Loc.Addr
	if g.CoPos(addr, n.RF) < g.CoPos(addr, n.Bound) {
		return failure.New(failure.CoherenceCycle, n.Pos.Thread, addr,
			fmt.Sprintf("read from %s, which is coherence-before %s", n.RF, n.Bound), n.RF, n.Pos)
	}
	if lab.Type != event.PlainRead || g.Options().SC {
		if latest := g.CoMax(addr); n.RF != latest {
			return failure.New(failure.RMWAtomicity, n.Pos.Thread, addr,
				fmt.Sprintf("read from %s, but coherence-latest write is %s", n.RF, latest), n.RF, n.Pos)
		}
	}
	if c.StrictInit && n.RF.IsInit() && n.Init != graph.InitKnown {
		return failure.New(failure.UninitializedRead, n.Pos.Thread, addr, "", n.Pos)
	}
	return nil
}

// validReadsFrom checks that n reads a write of its address and
// returns that write's value.
func validReadsFrom(g *graph.Graph, n *graph.Node, lab *event.Read) *failure.Bug {
	addr := lab.Loc.Addr
	if n.RF.IsInit() {
		if v, _ := g.InitValue(addr); !v.Equal(n.Value) {
			return failure.New(failure.BadReadsFrom, n.Pos.Thread, addr,
				fmt.Sprintf("read %s, but initial value is %s", n.Value, v), n.Pos)
		}
		return nil
	}
	w := g.Node(n.RF)
	if w == nil {
		return failure.New(failure.BadReadsFrom, n.Pos.Thread, addr, "source is not in the graph", n.RF, n.Pos)
	}
	wlab, ok := w.Label.(*event.Write)
	if !ok || wlab.Loc.Addr != addr {
		return failure.New(failure.BadReadsFrom, n.Pos.Thread, addr, "source is not a write of this address", n.RF, n.Pos)
	}
	if !w.Value.Equal(n.Value) {
		return failure.New(failure.BadReadsFrom, n.Pos.Thread, addr,
			fmt.Sprintf("read %s, but source wrote %s", n.Value, w.Value), n.RF, n.Pos)
	}
	return nil
}

func (c *Checker) checkWrite(g *graph.Graph, n *graph.Node, lab *event.Write) *failure.Bug {
	addr := lab.Loc.Addr
	co := g.Coherence(addr)
	pos := g.CoPos(addr, n.Pos)
	if pos < 0 {
		return failure.New(failure.CoherenceCycle, n.Pos.Thread, addr, "write is missing from coherence order", n.Pos)
	}
	if g.Options().SC && pos != len(co) {
		return failure.New(failure.CoherenceCycle, n.Pos.Thread, addr, "write is not coherence-latest", n.Pos)
	}
	// Nothing that happens-before the write may be coherence-after
	// it.
	for _, w := range co[pos:] {
		if n.Clock.Contains(w) {
			return failure.New(failure.CoherenceCycle, n.Pos.Thread, addr,
				fmt.Sprintf("%s happens-before this write but is coherence-after it", w), w, n.Pos)
		}
	}
	// Nor may a write observed by a read that happens-before it.
	for _, e := range g.MemoryEvents() {
		r := g.Node(e)
		rlab, ok := r.Label.(*event.Read)
		if !ok || rlab.Loc.Addr != addr || !n.Clock.Contains(e) {
			continue
		}
		if g.CoPos(addr, r.RF) >= pos {
			return failure.New(failure.CoherenceCycle, n.Pos.Thread, addr,
				fmt.Sprintf("%s read %s, which is not coherence-before this write", e, r.RF), e, n.Pos)
		}
	}
	return checkAtomicity(g, addr, pos)
}

// checkAtomicity checks that the writes around coherence position pos
// do not separate an atomic update from its source.
func checkAtomicity(g *graph.Graph, addr uint64, pos int) *failure.Bug {
	co := g.Coherence(addr)
	at := func(p int) event.Event {
		if p == 0 {
			return event.Init
		}
		return co[p-1]
	}
	for p := pos; p <= pos+1 && p <= len(co); p++ {
		if p < 1 {
			continue
		}
		w := g.Node(at(p))
		if !w.Label.(*event.Write).Type.Exclusive() {
			continue
		}
		src := g.Node(w.Pos.Prev()).RF
		if src != at(p-1) {
			return failure.New(failure.RMWAtomicity, w.Pos.Thread, addr,
				fmt.Sprintf("update read %s, but is coherence-after %s", src, at(p-1)), src, w.Pos)
		}
	}
	return nil
}

// CheckFree reports problems with the free of size bytes at addr that
// is about to be added to g as event free.
func (c *Checker) CheckFree(g *graph.Graph, free event.Event, addr uint64, size int) *failure.Bug {
	tid := free.Thread
	if size == 0 {
		return failure.New(failure.ZeroSize, tid, addr, "free of zero bytes", free)
	}
	b := g.Allocator().Exact(addr)
	switch {
	case b == nil:
		return failure.New(failure.FreeNonMalloc, tid, addr, "", free)
	case b.Freed:
		return failure.New(failure.DoubleFree, tid, addr, "", b.Free, free)
	case b.Size != size:
		return failure.New(failure.FreeSizeMismatch, tid, addr, fmt.Sprintf("allocated %d bytes, freed %d", b.Size, size), b.Alloc, free)
	}
	return nil
}

// CheckMalloc reports problems with an allocation request.
func (c *Checker) CheckMalloc(tid event.ThreadID, size, align int) *failure.Bug {
	if size <= 0 {
		return failure.New(failure.ZeroSize, tid, 0, "malloc of zero bytes")
	}
	if align < 0 || align&(align-1) != 0 {
		return failure.New(failure.ZeroSize, tid, 0, fmt.Sprintf("alignment %d is not a power of two", align))
	}
	return nil
}

// checkFreeRace reports accesses to the freed block that do not
// happen-before the free.
func (c *Checker) checkFreeRace(g *graph.Graph, n *graph.Node, lab *event.Free) *failure.Bug {
	block := event.Loc{Addr: lab.Addr, Size: lab.Size}
	for _, e := range g.MemoryEvents() {
		if n.Clock.Contains(e) {
			continue
		}
		m := g.Node(e)
		if m.Label.(event.MemoryLabel).Location().Overlaps(block) {
			return failure.New(failure.RaceFreeMalloc, n.Pos.Thread, lab.Addr, "free races with access", e, n.Pos)
		}
	}
	return nil
}
