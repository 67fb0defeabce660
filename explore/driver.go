// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package explore runs a program under every execution its memory
// model allows.
//
// The program is an interpreter that calls the Handle methods as its
// threads run. Every execution starts from scratch. The choices made
// along the way (which thread runs next, which write a read observes,
// where a write goes in coherence order) are delegated to an
// amb.Strategy, which decides which execution comes next.
package explore

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/aclements/weavemc/amb"
	"github.com/aclements/weavemc/check"
	"github.com/aclements/weavemc/config"
	"github.com/aclements/weavemc/event"
	"github.com/aclements/weavemc/failure"
	"github.com/aclements/weavemc/graph"
	"github.com/aclements/weavemc/report"
)

type threadState uint8

const (
	runnable threadState = iota
	blockedLock
	blockedJoin
	blockedUser
	finished
)

var stateNames = [...]string{"runnable", "blocked on lock", "blocked on join", "blocked by program", "finished"}

func (s threadState) String() string {
	return stateNames[s]
}

type thread struct {
	state threadState
	addr  uint64         // mutex, when blockedLock
	child event.ThreadID // when blockedJoin
}

// A Driver holds the state of one exploration: the strategy and what
// persists across executions, plus the graph and thread states of the
// current execution.
type Driver struct {
	cfg      *config.Config
	log      *slog.Logger
	metrics  *Metrics
	warn     *warnings
	strategy amb.Strategy
	init     *graph.InitValues
	checker  check.Checker
	graphs   io.Writer

	// Current execution.
	g          *graph.Graph
	threads    []thread
	rng        *rand.Rand
	steps      int
	rootWidth  int
	moot       bool
	outOfSteps bool
	terminated bool
	bug        *failure.Bug
	start      time.Time

	done bool
}

func newDriver(cfg *config.Config, log *slog.Logger, m *Metrics, s amb.Strategy) *Driver {
	return &Driver{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		warn:     newWarnings(log),
		strategy: s,
		init:     graph.NewInitValues(),
		checker:  check.Checker{StrictInit: cfg.StrictInit},
	}
}

func (d *Driver) reset() {
	d.g = graph.New(d.init, graph.Options{SC: d.cfg.Model == config.SC})
	d.threads = append(d.threads[:0], thread{})
	d.rng = rand.New(rand.NewSource(d.cfg.Seed))
	d.steps = 0
	d.rootWidth = 0
	d.moot, d.outOfSteps, d.terminated = false, false, false
	d.bug = nil
	d.start = time.Now()
}

// choose asks the strategy to pick one of n alternatives. Choices with
// a single alternative are not choice points.
func (d *Driver) choose(kind amb.ChoiceKind, n int) (int, error) {
	if n <= 1 {
		return 0, nil
	}
	x, ok := d.strategy.Amb(kind, n)
	if !ok {
		d.terminated = true
		return 0, fmt.Errorf("%s choice: %w", kind, amb.PathTerminated)
	}
	if d.rootWidth == 0 {
		d.rootWidth = n
	}
	d.metrics.choice(kind)
	return x, nil
}

// added logs and checks n, which was just added to the graph.
func (d *Driver) added(n *graph.Node) error {
	d.log.Debug("event", "thread", n.Pos.Thread, "event", n.Pos, "label", n.Label, "value", n.Value)
	if limit := d.cfg.WarnOnGraphSize; limit > 0 && d.g.Size() >= limit {
		d.warn.once("graph size", "execution graph is large; exploration may be slow", "events", d.g.Size())
	}
	if b := d.checker.Check(d.g, n); b != nil {
		return d.fail(b)
	}
	return nil
}

// fail records b as the bug of this execution and returns it.
func (d *Driver) fail(b *failure.Bug) error {
	if d.bug == nil {
		b.Path = d.strategy.Path()
		d.bug = b
		d.log.Debug("bug", "err", b, "path", report.FormatPath(b.Path))
	}
	return b
}

// checkThread reports a bug if tid cannot issue events.
func (d *Driver) checkThread(tid event.ThreadID) error {
	if tid < 0 || int(tid) >= len(d.threads) {
		return d.fail(failure.New(failure.InvalidThread, tid, 0, fmt.Sprintf("thread %d does not exist", tid)))
	}
	if d.threads[tid].state == finished {
		return d.fail(failure.New(failure.InvalidThread, tid, 0, fmt.Sprintf("thread %d has finished", tid)))
	}
	return nil
}

// setInit records the initial value of addr supplied by the
// interpreter. Only the first access before any write can know it.
func (d *Driver) setInit(addr uint64, old *event.Scalar) {
	if old != nil && d.g.CoLen(addr) == 0 {
		d.init.Set(addr, *old)
	}
}

// warnInit warns about a read that observed a placeholder initial
// value.
func (d *Driver) warnInit(n *graph.Node, addr uint64) {
	if !n.RF.IsInit() || d.cfg.StrictInit {
		return
	}
	switch n.Init {
	case graph.InitMissing:
		d.warn.once(fmt.Sprintf("init %#x", addr), "no initial value for memory; using placeholder",
			"addr", fmt.Sprintf("%#x", addr), "value", fmt.Sprintf("%#x", event.NoInitPlaceholder))
	case graph.InitUninit:
		d.warn.once(fmt.Sprintf("init %#x", addr), "read of uninitialized memory; using placeholder",
			"addr", fmt.Sprintf("%#x", addr), "value", fmt.Sprintf("%#x", event.UninitPlaceholder))
	}
}

// enabled returns the threads that can run next in increasing order.
func (d *Driver) enabled() []event.ThreadID {
	var ts []event.ThreadID
	for i, th := range d.threads {
		ok := false
		switch th.state {
		case runnable:
			ok = true
		case blockedLock:
			ok = d.g.ValueAt(th.addr).Value != event.MutexLocked
		case blockedJoin:
			ok = d.threads[th.child].state == finished
		}
		if ok {
			ts = append(ts, event.ThreadID(i))
		}
	}
	return ts
}

// symmetric reports whether t1 and t2 are interchangeable: created by
// the same thread with the same symmetry key and with identical
// histories so far.
func (d *Driver) symmetric(t1, t2 event.ThreadID) bool {
	if t1 == event.Main || t2 == event.Main {
		return false
	}
	g := d.g
	if g.SymKey(t1) == "" || g.SymKey(t1) != g.SymKey(t2) || g.Parent(t1).Thread != g.Parent(t2).Thread {
		return false
	}
	if d.threads[t1].state != d.threads[t2].state {
		return false
	}
	n1, n2 := g.Thread(t1), g.Thread(t2)
	if len(n1) != len(n2) {
		return false
	}
	for i := range n1 {
		if n1[i].Label.String() != n2[i].Label.String() || !n1[i].Value.Equal(n2[i].Value) {
			return false
		}
	}
	return true
}

// outcome classifies the current execution.
func (d *Driver) outcome() *report.Execution {
	e := &report.Execution{
		Steps:   d.steps,
		Events:  d.g.Size(),
		Path:    d.strategy.Path(),
		Elapsed: time.Since(d.start),
	}
	switch {
	case d.bug != nil:
		e.Status, e.Bug = report.Buggy, d.bug
	case d.moot:
		e.Status = report.Moot
	case d.terminated:
		e.Status, e.Reason = report.Blocked, "depth"
	case d.outOfSteps:
		e.Status, e.Reason = report.Blocked, "step budget"
	default:
		e.Status = report.Complete
		for i, th := range d.threads {
			if th.state != finished {
				e.Status = report.Blocked
				e.Reason = fmt.Sprintf("thread %d %s", i, th.state)
				break
			}
		}
	}
	if e.Status == report.Complete {
		e.Signature = d.g.Signature()
	}
	if rs, ok := d.strategy.(*amb.StrategyRandom); ok {
		e.Estimate = rs.Estimate()
	}
	return e
}
