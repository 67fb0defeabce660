// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package explore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aclements/weavemc/amb"
	"github.com/aclements/weavemc/check"
	"github.com/aclements/weavemc/event"
	"github.com/aclements/weavemc/failure"
	"github.com/aclements/weavemc/graph"
	"github.com/aclements/weavemc/report"
)

// MutexSize is the size in bytes of a mutex word.
const MutexSize = 4

// A Handle is the interface between an interpreter and the driver.
// The interpreter calls HandleExecutionStart, then runs the threads
// ScheduleNext picks, calling a handler for every memory, thread and
// mutex operation, and finally calls HandleExecutionEnd.
//
// Handlers that take old accept the interpreter's view of the memory
// before the operation. It is used as the initial value of the address
// if nothing has written it yet. Passing nil means the initial value
// is unknown.
//
// A handler that returns an error has ended the execution: the
// interpreter must stop running threads and return.
type Handle struct {
	d   *Driver
	pos event.Positions
}

type LoadResult struct {
	Value event.Scalar
	// From is the write the load observed.
	From event.Event
}

type StoreResult struct {
	IsCoMax bool
}

type RMWResult struct {
	Old, New event.Scalar
	IsCoMax  bool
}

type CASResult struct {
	Old     event.Scalar
	Success bool
	IsCoMax bool
}

type LockResult struct {
	// Acquired is false if the mutex was held. For a blocking
	// lock, the thread is blocked and must retry the lock when it
	// is scheduled again.
	Acquired bool
}

// HandleExecutionStart begins a new execution with only the main
// thread.
func (h *Handle) HandleExecutionStart() {
	h.d.reset()
	h.pos.Reset()
}

// HandleExecutionEnd classifies the finished execution and advances
// the strategy to the next one.
func (h *Handle) HandleExecutionEnd() (*report.Execution, error) {
	d := h.d
	e := d.outcome()
	d.log.Debug("execution done", "status", e.Status, "reason", e.Reason, "events", e.Events, "path", report.FormatPath(e.Path))
	d.metrics.execution(e)

	var err error
	if d.log.Enabled(context.Background(), slog.LevelDebug) && e.Status == report.Complete {
		// Re-validate the whole graph when tracing.
		if cerr := check.CheckGraph(d.g); cerr != nil {
			err = fmt.Errorf("internal error: inconsistent graph for path %s: %w", report.FormatPath(e.Path), cerr)
		}
	}
	if d.cfg.PrintGraphs && d.graphs != nil && (e.Status == report.Complete || e.Status == report.Buggy) {
		fmt.Fprintf(d.graphs, "// path %s: %s\n", report.FormatPath(e.Path), e.Status)
		if werr := d.g.WriteDot(d.graphs); werr != nil && err == nil {
			err = werr
		}
	}
	d.done = !d.strategy.Next()
	return e, err
}

// IsExplorationDone reports whether the strategy has no more
// executions to explore.
func (h *Handle) IsExplorationDone() bool {
	return h.d.done
}

// Graph returns the graph of the current execution. The caller must
// not modify it.
func (h *Handle) Graph() *graph.Graph {
	return h.d.g
}

// SetNextKind records the kind of the next instruction of tid, for
// scheduling policies that look ahead.
func (h *Handle) SetNextKind(tid event.ThreadID, kind event.ActionKind) {
	if int(tid) < h.pos.NumThreads() {
		h.pos.SetKind(tid, kind)
	}
}

// ReportSafety reports a failed assertion in tid.
func (h *Handle) ReportSafety(tid event.ThreadID, msg string) error {
	var evs []event.Event
	if int(tid) < h.pos.NumThreads() {
		if last := h.pos.Last(tid); last.Index > 0 {
			evs = append(evs, last)
		}
	}
	return h.d.fail(failure.New(failure.Assertion, tid, 0, msg, evs...))
}

func (h *Handle) HandleLoad(tid event.ThreadID, addr uint64, size int, ord event.Ordering, old *event.Scalar) (LoadResult, error) {
	d := h.d
	if err := d.checkThread(tid); err != nil {
		return LoadResult{}, err
	}
	if size <= 0 {
		return LoadResult{}, d.fail(failure.New(failure.ZeroSize, tid, addr, "load of zero bytes"))
	}
	d.setInit(addr, old)
	cands, bound := d.g.ReadCandidates(tid, addr, ord)
	i, err := d.choose(amb.ReadsFrom, len(cands))
	if err != nil {
		return LoadResult{}, err
	}
	lab := &event.Read{Loc: event.Loc{Addr: addr, Size: size}, Ord: ord, Type: event.PlainRead}
	n := d.g.AddRead(h.pos.Next(tid), lab, cands[i], bound)
	if err := d.added(n); err != nil {
		return LoadResult{}, err
	}
	d.warnInit(n, addr)
	return LoadResult{Value: n.Value, From: n.RF}, nil
}

func (h *Handle) HandleStore(tid event.ThreadID, addr uint64, size int, ord event.Ordering, val event.Scalar, old *event.Scalar) (StoreResult, error) {
	d := h.d
	if err := d.checkThread(tid); err != nil {
		return StoreResult{}, err
	}
	if size <= 0 {
		return StoreResult{}, d.fail(failure.New(failure.ZeroSize, tid, addr, "store of zero bytes"))
	}
	d.setInit(addr, old)
	ps := d.g.WritePositions(tid, addr, ord)
	i, err := d.choose(amb.Coherence, len(ps))
	if err != nil {
		return StoreResult{}, err
	}
	isMax := ps[i] == d.g.CoLen(addr)
	lab := &event.Write{Loc: event.Loc{Addr: addr, Size: size}, Ord: ord, Type: event.PlainWrite, Value: val}
	n := d.g.AddWrite(h.pos.Next(tid), lab, ps[i])
	if err := d.added(n); err != nil {
		return StoreResult{}, err
	}
	return StoreResult{IsCoMax: isMax}, nil
}

// update adds the read half of an atomic update, which always reads
// the coherence-latest write.
func (h *Handle) update(tid event.ThreadID, lab *event.Read) (*graph.Node, error) {
	d := h.d
	cands, bound := d.g.ReadCandidates(tid, lab.Loc.Addr, lab.Ord)
	n := d.g.AddRead(h.pos.Next(tid), lab, cands[0], bound)
	if err := d.added(n); err != nil {
		return nil, err
	}
	d.warnInit(n, lab.Loc.Addr)
	return n, nil
}

// updateWrite adds the write half of an atomic update.
func (h *Handle) updateWrite(tid event.ThreadID, lab *event.Write) error {
	d := h.d
	n := d.g.AddWrite(h.pos.Next(tid), lab, d.g.CoLen(lab.Loc.Addr))
	return d.added(n)
}

func (h *Handle) HandleReadModifyWrite(tid event.ThreadID, addr uint64, size int, op event.RMWOp, ord event.Ordering, rhs event.Scalar, old *event.Scalar) (RMWResult, error) {
	d := h.d
	if err := d.checkThread(tid); err != nil {
		return RMWResult{}, err
	}
	if size <= 0 {
		return RMWResult{}, d.fail(failure.New(failure.ZeroSize, tid, addr, "update of zero bytes"))
	}
	d.setInit(addr, old)
	loc := event.Loc{Addr: addr, Size: size}
	r, err := h.update(tid, &event.Read{Loc: loc, Ord: ord.Load(), Type: event.RMWRead, Op: op, Operand: rhs})
	if err != nil {
		return RMWResult{}, err
	}
	nv := op.Apply(r.Value, rhs, size)
	if err := h.updateWrite(tid, &event.Write{Loc: loc, Ord: ord.Store(), Type: event.RMWWrite, Value: nv}); err != nil {
		return RMWResult{}, err
	}
	return RMWResult{Old: r.Value, New: nv, IsCoMax: true}, nil
}

// HandleCompareExchange compares the value at addr with expected and,
// if they are equal, replaces it with desired. A weak compare-exchange
// may also fail when the values are equal.
func (h *Handle) HandleCompareExchange(tid event.ThreadID, addr uint64, size int, expected, desired event.Scalar, success, fail event.Ordering, weak bool, old *event.Scalar) (CASResult, error) {
	d := h.d
	if err := d.checkThread(tid); err != nil {
		return CASResult{}, err
	}
	if size <= 0 {
		return CASResult{}, d.fail(failure.New(failure.ZeroSize, tid, addr, "compare-exchange of zero bytes"))
	}
	if fail.Stronger(success) {
		d.warn.once("cas ordering", "compare-exchange failure ordering is stronger than success ordering",
			"success", success, "failure", fail)
	}
	d.setInit(addr, old)

	matched := d.g.ValueAt(addr).Equal(expected)
	if matched && weak && d.cfg.ModelSpuriousFailures {
		d.warn.once("weak cas", "modeling spurious failures of weak compare-exchange")
		x, err := d.choose(amb.SpuriousFail, 2)
		if err != nil {
			return CASResult{}, err
		}
		matched = x == 0
	}

	loc := event.Loc{Addr: addr, Size: size}
	ord := fail
	if matched {
		ord = success.Load()
	}
	r, err := h.update(tid, &event.Read{Loc: loc, Ord: ord, Type: event.CASRead, Operand: expected})
	if err != nil {
		return CASResult{}, err
	}
	if !matched {
		return CASResult{Old: r.Value, IsCoMax: true}, nil
	}
	if err := h.updateWrite(tid, &event.Write{Loc: loc, Ord: success.Store(), Type: event.CASWrite, Value: desired}); err != nil {
		return CASResult{}, err
	}
	return CASResult{Old: r.Value, Success: true, IsCoMax: true}, nil
}

func (h *Handle) HandleFence(tid event.ThreadID, ord event.Ordering) error {
	d := h.d
	if err := d.checkThread(tid); err != nil {
		return err
	}
	return d.added(d.g.AddFence(h.pos.Next(tid), ord))
}

// HandleMalloc allocates size bytes aligned to align and returns the
// address of the block.
func (h *Handle) HandleMalloc(tid event.ThreadID, size, align int) (uint64, error) {
	d := h.d
	if err := d.checkThread(tid); err != nil {
		return 0, err
	}
	if b := d.checker.CheckMalloc(tid, size, align); b != nil {
		return 0, d.fail(b)
	}
	n, b := d.g.AddMalloc(h.pos.Next(tid), size, align)
	if err := d.added(n); err != nil {
		return 0, err
	}
	return b.Addr, nil
}

func (h *Handle) HandleFree(tid event.ThreadID, addr uint64, size int) error {
	d := h.d
	if err := d.checkThread(tid); err != nil {
		return err
	}
	ev := h.pos.Next(tid)
	if b := d.checker.CheckFree(d.g, ev, addr, size); b != nil {
		return d.fail(b)
	}
	return d.added(d.g.AddFree(ev, addr, size))
}

// HandleThreadCreate starts a new thread created by parent. Threads
// created by the same parent with the same non-empty symKey run the
// same code and are candidates for symmetry reduction.
func (h *Handle) HandleThreadCreate(parent event.ThreadID, symKey string) (event.ThreadID, error) {
	d := h.d
	if err := d.checkThread(parent); err != nil {
		return 0, err
	}
	n, child := d.g.AddThreadCreate(h.pos.Next(parent), symKey)
	h.pos.Register(child)
	d.threads = append(d.threads, thread{})
	if err := d.added(n); err != nil {
		return 0, err
	}
	return child, nil
}

// HandleThreadJoin joins child. If child has not finished, tid is
// blocked, HandleThreadJoin returns false, and tid must retry the join
// when it is scheduled again.
func (h *Handle) HandleThreadJoin(tid, child event.ThreadID) (bool, error) {
	d := h.d
	if err := d.checkThread(tid); err != nil {
		return false, err
	}
	if child == tid || child < 0 || int(child) >= len(d.threads) {
		return false, d.fail(failure.New(failure.InvalidJoin, tid, 0, fmt.Sprintf("join of thread %d", child)))
	}
	if d.threads[child].state != finished {
		d.threads[tid] = thread{state: blockedJoin, child: child}
		return false, nil
	}
	return true, d.added(d.g.AddThreadJoin(h.pos.Next(tid), child))
}

func (h *Handle) HandleThreadFinish(tid event.ThreadID, ret uint64) error {
	d := h.d
	if err := d.checkThread(tid); err != nil {
		return err
	}
	n := d.g.AddThreadFinish(h.pos.Next(tid), ret)
	d.threads[tid].state = finished
	return d.added(n)
}

// HandleUserBlock blocks tid for the rest of the execution.
func (h *Handle) HandleUserBlock(tid event.ThreadID) error {
	d := h.d
	if err := d.checkThread(tid); err != nil {
		return err
	}
	n := d.g.AddBlock(h.pos.Next(tid))
	d.threads[tid].state = blockedUser
	return d.added(n)
}

// HandleMutexLock acquires the mutex at addr. If it is held, tid is
// blocked until the mutex is released and must then retry the lock.
func (h *Handle) HandleMutexLock(tid event.ThreadID, addr uint64, old *event.Scalar) (LockResult, error) {
	return h.lock(tid, addr, old, false)
}

// HandleMutexTryLock acquires the mutex at addr if it is not held.
func (h *Handle) HandleMutexTryLock(tid event.ThreadID, addr uint64, old *event.Scalar) (LockResult, error) {
	return h.lock(tid, addr, old, true)
}

func (h *Handle) lock(tid event.ThreadID, addr uint64, old *event.Scalar, try bool) (LockResult, error) {
	d := h.d
	if err := d.checkThread(tid); err != nil {
		return LockResult{}, err
	}
	d.setInit(addr, old)
	loc := event.Loc{Addr: addr, Size: MutexSize}
	rtype, wtype := event.LockRead, event.LockWrite
	if try {
		rtype, wtype = event.TrylockRead, event.TrylockWrite
	}

	held := d.g.ValueAt(addr).Value == event.MutexLocked
	if held && !try {
		// Reserve the event so the retry gets the same
		// position, then give it back.
		ev := h.pos.Next(tid)
		h.pos.Undo(tid)
		d.threads[tid] = thread{state: blockedLock, addr: addr}
		d.log.Debug("blocked on mutex", "thread", tid, "event", ev, "addr", fmt.Sprintf("%#x", addr))
		return LockResult{}, nil
	}
	if _, err := h.update(tid, &event.Read{Loc: loc, Ord: event.Acquire, Type: rtype}); err != nil {
		return LockResult{}, err
	}
	if held {
		return LockResult{}, nil
	}
	if err := h.updateWrite(tid, &event.Write{Loc: loc, Ord: event.Relaxed, Type: wtype, Value: event.Val(event.MutexLocked)}); err != nil {
		return LockResult{}, err
	}
	return LockResult{Acquired: true}, nil
}

// HandleMutexUnlock releases the mutex at addr, which tid must hold.
func (h *Handle) HandleMutexUnlock(tid event.ThreadID, addr uint64, old *event.Scalar) error {
	d := h.d
	if err := d.checkThread(tid); err != nil {
		return err
	}
	d.setInit(addr, old)
	if holder, ok := d.g.LockHolder(addr); !ok || holder != tid {
		// Report the unlock with the write that last set the mutex.
		evs := []event.Event{h.pos.Next(tid)}
		if w := d.g.CoMax(addr); !w.IsInit() {
			evs = append([]event.Event{w}, evs...)
		}
		return d.fail(failure.New(failure.InvalidUnlock, tid, addr, "", evs...))
	}
	lab := &event.Write{Loc: event.Loc{Addr: addr, Size: MutexSize}, Ord: event.Release, Type: event.UnlockWrite, Value: event.Val(event.MutexUnlocked)}
	return d.added(d.g.AddWrite(h.pos.Next(tid), lab, d.g.CoLen(addr)))
}
