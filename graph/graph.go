// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package graph implements execution graphs.
//
// An execution graph records one execution of a concurrent program as
// a set of events with three relations: program order within each
// thread, reads-from from each read to the write it observed, and a
// per-address coherence order over writes. Happens-before is tracked
// with vector clocks, and each thread carries a View that bounds the
// writes it may still read, which is how the graph enforces the
// memory model while events are being added.
//
// A Graph is built for a single execution and is not safe for
// concurrent use.
package graph

import (
	"fmt"

	"github.com/aclements/weavemc/event"
)

// Options configure the memory model a Graph implements.
type Options struct {
	// SC restricts executions to sequential consistency: every
	// read observes the coherence-latest write and every write
	// becomes coherence-latest.
	SC bool
}

// A Node is an event in the graph together with what the graph knows
// about it.
type Node struct {
	event.Action

	// Value is the value read or written.
	Value event.Scalar

	// RF is the write a read observed.
	RF event.Event
	// Bound is the coherence-earliest write the read was allowed
	// to observe.
	Bound event.Event
	// Init says where the value came from when RF is Init.
	Init InitStatus

	// Clock is the happens-before clock just after this event.
	Clock VectorClock

	// Msg is the view a write releases to acquiring readers. It
	// is nil for writes that release nothing.
	Msg *View
}

type threadInfo struct {
	parent   event.Event
	symKey   string
	cur      View
	acq      View  // released views seen by relaxed reads
	rel      *View // view at the last release fence
	finished bool
}

// A Graph is the execution graph of one execution.
type Graph struct {
	opts    Options
	init    *InitValues
	threads []*threadInfo
	nodes   [][]*Node
	co      map[uint64][]event.Event
	mem     []event.Event
	sc      View
	alloc   Allocator
	size    int
}

// New returns a graph containing only the main thread. init supplies
// the initial contents of memory and outlives the graph.
func New(init *InitValues, opts Options) *Graph {
	if init == nil {
		init = NewInitValues()
	}
	g := &Graph{
		opts: opts,
		init: init,
		co:   make(map[uint64][]event.Event),
	}
	g.threads = []*threadInfo{{parent: event.Init}}
	g.nodes = [][]*Node{nil}
	return g
}

func (g *Graph) Options() Options {
	return g.opts
}

func (g *Graph) InitValues() *InitValues {
	return g.init
}

func (g *Graph) NumThreads() int {
	return len(g.threads)
}

// Size returns the number of events in g.
func (g *Graph) Size() int {
	return g.size
}

// Thread returns the events of tid in program order.
func (g *Graph) Thread(tid event.ThreadID) []*Node {
	return g.nodes[g.thread(tid)]
}

func (g *Graph) thread(tid event.ThreadID) int {
	if tid < 0 || int(tid) >= len(g.threads) {
		panic(fmt.Sprintf("unknown thread %d", tid))
	}
	return int(tid)
}

// Node returns the node of ev, or nil for Init and events not in g.
func (g *Graph) Node(ev event.Event) *Node {
	if ev.IsInit() || int(ev.Thread) >= len(g.nodes) || ev.Index < 1 {
		return nil
	}
	nodes := g.nodes[ev.Thread]
	if ev.Index > len(nodes) {
		return nil
	}
	return nodes[ev.Index-1]
}

// Last returns the latest event of tid, which has Index 0 if tid has
// no events yet.
func (g *Graph) Last(tid event.ThreadID) event.Event {
	return event.Event{Thread: tid, Index: len(g.nodes[g.thread(tid)])}
}

// Parent returns the event that created tid.
func (g *Graph) Parent(tid event.ThreadID) event.Event {
	return g.threads[g.thread(tid)].parent
}

func (g *Graph) SymKey(tid event.ThreadID) string {
	return g.threads[g.thread(tid)].symKey
}

func (g *Graph) Finished(tid event.ThreadID) bool {
	return g.threads[g.thread(tid)].finished
}

// View returns the current view of tid. The caller must not modify
// it.
func (g *Graph) View(tid event.ThreadID) *View {
	return &g.threads[g.thread(tid)].cur
}

// MemoryEvents returns all memory accesses in the order they were
// added.
func (g *Graph) MemoryEvents() []event.Event {
	return g.mem
}

func (g *Graph) Allocator() *Allocator {
	return &g.alloc
}

// add appends the next event of ev.Thread. Events must be added in
// program order with no gaps.
func (g *Graph) add(ev event.Event, lab event.Label) (*Node, *threadInfo) {
	tid := g.thread(ev.Thread)
	if want := len(g.nodes[tid]) + 1; ev.Index != want {
		panic(fmt.Sprintf("adding event %s, but next event of thread %d is %d", ev, tid, want))
	}
	th := g.threads[tid]
	if th.finished {
		panic(fmt.Sprintf("adding event %s to finished thread", ev))
	}
	th.cur.Clock.Set(ev.Thread, ev.Index)
	n := &Node{Action: event.Action{Pos: ev, Label: lab}}
	g.nodes[tid] = append(g.nodes[tid], n)
	if _, ok := lab.(event.MemoryLabel); ok {
		g.mem = append(g.mem, ev)
	}
	g.size++
	return n, th
}

func (g *Graph) seqCst(th *threadInfo) {
	g.join(&th.cur, &g.sc)
	g.join(&g.sc, &th.cur)
}

// AddRead adds a read observing rf. bound must be the bound returned
// by ReadCandidates.
func (g *Graph) AddRead(ev event.Event, lab *event.Read, rf, bound event.Event) *Node {
	n, th := g.add(ev, lab)
	n.RF, n.Bound = rf, bound
	addr := lab.Loc.Addr
	if rf.IsInit() {
		n.Value, n.Init = g.InitValue(addr)
	} else {
		w := g.Node(rf)
		if w == nil {
			panic(fmt.Sprintf("read %s from unknown write %s", ev, rf))
		}
		n.Value = w.Value
		switch {
		case lab.Ord.IsAcquire():
			g.join(&th.cur, w.Msg)
		case lab.Ord.IsAtomic() && w.Msg != nil:
			g.join(&th.acq, w.Msg)
		}
	}
	g.observe(&th.cur, addr, rf)
	if lab.Ord == event.SeqCst {
		g.seqCst(th)
	}
	n.Clock = th.cur.Clock.Clone()
	return n
}

// AddWrite adds a write at index pos of the coherence order of its
// address. pos must be one of the positions returned by
// WritePositions, or CoLen for the write half of an atomic update.
func (g *Graph) AddWrite(ev event.Event, lab *event.Write, pos int) *Node {
	addr := lab.Loc.Addr
	co := g.co[addr]
	if pos < 0 || pos > len(co) {
		panic(fmt.Sprintf("coherence position %d out of range for %#x", pos, addr))
	}
	n, th := g.add(ev, lab)
	n.Value = lab.Value

	co = append(co, event.Event{})
	copy(co[pos+1:], co[pos:])
	co[pos] = ev
	g.co[addr] = co
	g.observe(&th.cur, addr, ev)

	if lab.Ord == event.SeqCst {
		g.seqCst(th)
	}
	switch {
	case lab.Ord.IsRelease():
		msg := th.cur.Clone()
		n.Msg = &msg
	case lab.Ord.IsAtomic() && th.rel != nil:
		msg := th.rel.Clone()
		g.observe(&msg, addr, ev)
		n.Msg = &msg
	}
	if lab.Type.Exclusive() {
		// Continue the release sequence of the write the
		// update read from.
		if src := g.Node(g.Node(ev.Prev()).RF); src != nil && src.Msg != nil {
			if n.Msg == nil {
				msg := src.Msg.Clone()
				n.Msg = &msg
			} else {
				g.join(n.Msg, src.Msg)
			}
		}
	}
	n.Clock = th.cur.Clock.Clone()
	return n
}

func (g *Graph) AddFence(ev event.Event, ord event.Ordering) *Node {
	n, th := g.add(ev, &event.Fence{Ord: ord})
	if ord.IsAcquire() {
		g.join(&th.cur, &th.acq)
	}
	if ord == event.SeqCst {
		g.seqCst(th)
	}
	if ord.IsRelease() {
		rel := th.cur.Clone()
		th.rel = &rel
	}
	n.Clock = th.cur.Clock.Clone()
	return n
}

// AddMalloc allocates a block and adds the allocating event.
func (g *Graph) AddMalloc(ev event.Event, size, align int) (*Node, *Block) {
	b := g.alloc.Alloc(size, align, ev)
	n, th := g.add(ev, &event.Malloc{Addr: b.Addr, Size: size, Align: align})
	n.Clock = th.cur.Clock.Clone()
	return n, b
}

// AddFree frees the block starting at addr, which must be live.
func (g *Graph) AddFree(ev event.Event, addr uint64, size int) *Node {
	b := g.alloc.Exact(addr)
	if b == nil || b.Freed {
		panic(fmt.Sprintf("free of %#x, which is not a live block", addr))
	}
	n, th := g.add(ev, &event.Free{Addr: addr, Size: size})
	b.Freed, b.Free = true, ev
	n.Clock = th.cur.Clock.Clone()
	return n
}

// AddThreadCreate adds the creation of a new thread, whose ID is the
// next unused one, and returns that ID.
func (g *Graph) AddThreadCreate(ev event.Event, symKey string) (*Node, event.ThreadID) {
	child := event.ThreadID(len(g.threads))
	n, th := g.add(ev, &event.ThreadCreate{Child: child, SymKey: symKey})
	n.Clock = th.cur.Clock.Clone()
	g.threads = append(g.threads, &threadInfo{
		parent: ev,
		symKey: symKey,
		cur:    th.cur.Clone(),
	})
	g.nodes = append(g.nodes, nil)
	return n, child
}

// AddThreadJoin adds a join of child, which must have finished.
func (g *Graph) AddThreadJoin(ev event.Event, child event.ThreadID) *Node {
	ct := g.threads[g.thread(child)]
	if !ct.finished {
		panic(fmt.Sprintf("join of unfinished thread %d", child))
	}
	n, th := g.add(ev, &event.ThreadJoin{Child: child})
	g.join(&th.cur, &ct.cur)
	n.Clock = th.cur.Clock.Clone()
	return n
}

func (g *Graph) AddThreadFinish(ev event.Event, ret uint64) *Node {
	n, th := g.add(ev, &event.ThreadFinish{Ret: ret})
	th.finished = true
	n.Clock = th.cur.Clock.Clone()
	return n
}

func (g *Graph) AddBlock(ev event.Event) *Node {
	n, th := g.add(ev, &event.Block{})
	n.Clock = th.cur.Clock.Clone()
	return n
}
