// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package check

import (
	"testing"

	"github.com/aclements/weavemc/event"
	"github.com/aclements/weavemc/failure"
	"github.com/aclements/weavemc/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const x, y = 0x100, 0x108

func ev(tid event.ThreadID, i int) event.Event {
	return event.Event{Thread: tid, Index: i}
}

type builder struct {
	t *testing.T
	g *graph.Graph
	c Checker
}

func newBuilder(t *testing.T, opts graph.Options) *builder {
	iv := graph.NewInitValues()
	iv.Set(x, event.Val(0))
	iv.Set(y, event.Val(0))
	g := graph.New(iv, opts)
	g.AddThreadCreate(ev(0, 1), "")
	g.AddThreadCreate(ev(0, 2), "")
	return &builder{t: t, g: g}
}

func (b *builder) store(tid event.ThreadID, addr, v uint64, ord event.Ordering) *failure.Bug {
	pos := b.g.WritePositions(tid, addr, ord)[0]
	return b.storeAt(tid, addr, v, ord, pos)
}

func (b *builder) storeAt(tid event.ThreadID, addr, v uint64, ord event.Ordering, pos int) *failure.Bug {
	e := ev(tid, b.g.Last(tid).Index+1)
	n := b.g.AddWrite(e, &event.Write{Loc: event.Loc{Addr: addr, Size: 8}, Ord: ord, Value: event.Val(v)}, pos)
	return b.c.Check(b.g, n)
}

// load reads from the i'th candidate.
func (b *builder) load(tid event.ThreadID, addr uint64, ord event.Ordering, i int) (*graph.Node, *failure.Bug) {
	cands, bound := b.g.ReadCandidates(tid, addr, ord)
	e := ev(tid, b.g.Last(tid).Index+1)
	n := b.g.AddRead(e, &event.Read{Loc: event.Loc{Addr: addr, Size: 8}, Ord: ord}, cands[i], bound)
	return n, b.c.Check(b.g, n)
}

func TestDataRace(t *testing.T) {
	b := newBuilder(t, graph.Options{})
	require.Nil(t, b.store(1, x, 1, event.NotAtomic))
	bug := b.store(2, x, 2, event.NotAtomic)
	require.NotNil(t, bug)
	assert.Equal(t, failure.DataRace, bug.Kind)
	assert.Equal(t, "write-write", bug.Msg)
	assert.Equal(t, []event.Event{ev(1, 1), ev(2, 1)}, bug.Events)
}

func TestReadWriteRace(t *testing.T) {
	b := newBuilder(t, graph.Options{})
	require.Nil(t, b.store(1, x, 1, event.Relaxed))
	_, bug := b.load(2, x, event.NotAtomic, 0)
	require.NotNil(t, bug)
	assert.Equal(t, failure.DataRace, bug.Kind)
	assert.Equal(t, "write-read", bug.Msg)
}

func TestAtomicsDoNotRace(t *testing.T) {
	b := newBuilder(t, graph.Options{})
	assert.Nil(t, b.store(1, x, 1, event.Relaxed))
	assert.Nil(t, b.store(2, x, 2, event.Relaxed))
	_, bug := b.load(2, x, event.Relaxed, 0)
	assert.Nil(t, bug)
}

func TestMessagePassingDoesNotRace(t *testing.T) {
	b := newBuilder(t, graph.Options{})
	require.Nil(t, b.store(1, x, 1, event.NotAtomic))
	require.Nil(t, b.store(1, y, 1, event.Release))
	n, bug := b.load(2, y, event.Acquire, 0)
	require.Nil(t, bug)
	require.Equal(t, event.Val(1), n.Value)
	n, bug = b.load(2, x, event.NotAtomic, 0)
	assert.Nil(t, bug)
	assert.Equal(t, event.Val(1), n.Value)
}

func TestCoherenceAgainstHappensBefore(t *testing.T) {
	b := newBuilder(t, graph.Options{})
	require.Nil(t, b.store(1, x, 1, event.Relaxed))
	// Placing a later write of the same thread before the first
	// one contradicts program order.
	bug := b.storeAt(1, x, 2, event.Relaxed, 0)
	require.NotNil(t, bug)
	assert.Equal(t, failure.CoherenceCycle, bug.Kind)
	assert.Error(t, CheckGraph(b.g))
}

func TestUpdateAtomicity(t *testing.T) {
	b := newBuilder(t, graph.Options{})
	require.Nil(t, b.store(1, x, 1, event.Relaxed))
	rd := &event.Read{Loc: event.Loc{Addr: x, Size: 8}, Ord: event.Relaxed, Type: event.RMWRead, Op: event.Add, Operand: event.Val(1)}
	n := b.g.AddRead(ev(1, 2), rd, b.g.CoMax(x), ev(1, 1))
	require.Nil(t, b.c.Check(b.g, n))
	wr := &event.Write{Loc: event.Loc{Addr: x, Size: 8}, Ord: event.Relaxed, Type: event.RMWWrite, Value: event.Val(2)}
	n = b.g.AddWrite(ev(1, 3), wr, b.g.CoLen(x))
	require.Nil(t, b.c.Check(b.g, n))
	require.NoError(t, CheckGraph(b.g))

	// T2 squeezes a write between the update and its source.
	bug := b.storeAt(2, x, 5, event.Relaxed, 1)
	require.NotNil(t, bug)
	assert.Equal(t, failure.RMWAtomicity, bug.Kind)
	assert.Error(t, CheckGraph(b.g))
}

func TestUpdateReadsLatest(t *testing.T) {
	b := newBuilder(t, graph.Options{})
	require.Nil(t, b.store(1, x, 1, event.Relaxed))
	rd := &event.Read{Loc: event.Loc{Addr: x, Size: 8}, Ord: event.Relaxed, Type: event.RMWRead, Op: event.Add, Operand: event.Val(1)}
	n := b.g.AddRead(ev(2, 1), rd, event.Init, event.Init)
	bug := b.c.Check(b.g, n)
	require.NotNil(t, bug)
	assert.Equal(t, failure.RMWAtomicity, bug.Kind)
}

func TestBadReadsFrom(t *testing.T) {
	b := newBuilder(t, graph.Options{})
	require.Nil(t, b.store(1, y, 1, event.Relaxed))
	// A read of x claiming to read a write of y.
	n := b.g.AddRead(ev(2, 1), &event.Read{Loc: event.Loc{Addr: x, Size: 8}, Ord: event.Relaxed}, ev(1, 1), event.Init)
	bug := b.c.Check(b.g, n)
	require.NotNil(t, bug)
	assert.Equal(t, failure.BadReadsFrom, bug.Kind)
}

func TestStrictInit(t *testing.T) {
	const z = 0x200
	b := newBuilder(t, graph.Options{})
	n, bug := b.load(1, z, event.Relaxed, 0)
	assert.Nil(t, bug)
	assert.Equal(t, graph.InitMissing, n.Init)
	assert.Equal(t, event.Val(event.NoInitPlaceholder), n.Value)

	b.c.StrictInit = true
	_, bug = b.load(2, z, event.Relaxed, 0)
	require.NotNil(t, bug)
	assert.Equal(t, failure.UninitializedRead, bug.Kind)
}

func TestFree(t *testing.T) {
	b := newBuilder(t, graph.Options{})
	bug := b.c.CheckFree(b.g, ev(1, 1), graph.HeapBase, 8)
	require.NotNil(t, bug)
	assert.Equal(t, failure.FreeNonMalloc, bug.Kind)
	assert.Equal(t, failure.UsageError, bug.Category())
	assert.Equal(t, []event.Event{ev(1, 1)}, bug.Events)

	_, blk := b.g.AddMalloc(ev(1, 1), 8, 8)
	bug = b.c.CheckFree(b.g, ev(1, 2), blk.Addr, 4)
	assert.Equal(t, failure.FreeSizeMismatch, bug.Kind)
	assert.Equal(t, []event.Event{ev(1, 1), ev(1, 2)}, bug.Events)
	assert.Equal(t, failure.FreeNonMalloc, b.c.CheckFree(b.g, ev(1, 2), blk.Addr+4, 4).Kind)
	assert.Equal(t, failure.ZeroSize, b.c.CheckFree(b.g, ev(1, 2), blk.Addr, 0).Kind)
	require.Nil(t, b.c.CheckFree(b.g, ev(1, 2), blk.Addr, 8))
	n := b.g.AddFree(ev(1, 2), blk.Addr, 8)
	assert.Nil(t, b.c.Check(b.g, n))

	bug = b.c.CheckFree(b.g, ev(1, 3), blk.Addr, 8)
	require.NotNil(t, bug)
	assert.Equal(t, failure.DoubleFree, bug.Kind)
	assert.Equal(t, failure.UsageError, bug.Category())
	assert.Equal(t, []event.Event{ev(1, 2), ev(1, 3)}, bug.Events)
}

func TestAccessFreed(t *testing.T) {
	b := newBuilder(t, graph.Options{})
	_, blk := b.g.AddMalloc(ev(1, 1), 8, 8)
	b.g.InitValues().Set(blk.Addr, event.Uninitialized)
	require.Nil(t, b.store(1, blk.Addr, 1, event.NotAtomic))
	b.g.AddFree(ev(1, 3), blk.Addr, 8)

	// T1 uses the block after freeing it.
	bug := b.store(1, blk.Addr, 2, event.NotAtomic)
	require.NotNil(t, bug)
	assert.Equal(t, failure.AccessFreed, bug.Kind)

	// T2 never synchronized with the malloc or the free.
	_, bug = b.load(2, blk.Addr, event.Relaxed, 0)
	require.NotNil(t, bug)
	assert.Equal(t, failure.RaceFreeMalloc, bug.Kind)
}

func TestFreeRace(t *testing.T) {
	b := newBuilder(t, graph.Options{})
	_, blk := b.g.AddMalloc(ev(0, 3), 8, 8)
	b.g.InitValues().Set(blk.Addr, event.Uninitialized)
	_, t3 := b.g.AddThreadCreate(ev(0, 4), "")
	require.Nil(t, b.store(t3, blk.Addr, 1, event.Relaxed))
	n := b.g.AddFree(ev(0, 5), blk.Addr, 8)
	bug := b.c.Check(b.g, n)
	require.NotNil(t, bug)
	assert.Equal(t, failure.RaceFreeMalloc, bug.Kind)
}

func TestCheckMalloc(t *testing.T) {
	var c Checker
	assert.Nil(t, c.CheckMalloc(0, 8, 0))
	assert.Nil(t, c.CheckMalloc(0, 8, 16))
	assert.Equal(t, failure.ZeroSize, c.CheckMalloc(0, 0, 8).Kind)
	assert.NotNil(t, c.CheckMalloc(0, 8, 3))
}

func TestSCModel(t *testing.T) {
	b := newBuilder(t, graph.Options{SC: true})
	require.Nil(t, b.store(1, x, 1, event.Relaxed))
	bug := b.storeAt(2, x, 2, event.Relaxed, 0)
	require.NotNil(t, bug)
	assert.Equal(t, failure.CoherenceCycle, bug.Kind)
}

func TestCheckGraphValid(t *testing.T) {
	b := newBuilder(t, graph.Options{})
	require.Nil(t, b.store(1, x, 1, event.Relaxed))
	require.Nil(t, b.store(2, x, 2, event.Relaxed))
	_, bug := b.load(1, x, event.Relaxed, 0)
	require.Nil(t, bug)
	assert.NoError(t, CheckGraph(b.g))
}
