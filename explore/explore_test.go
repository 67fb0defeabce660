// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package explore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/aclements/weavemc/amb"
	"github.com/aclements/weavemc/config"
	"github.com/aclements/weavemc/event"
	"github.com/aclements/weavemc/failure"
	"github.com/aclements/weavemc/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	x    = 0x100
	y    = 0x108
	mu   = 0x110
	flag = 0x118
)

// A testProg is a small concurrent program written as Go closures.
// Thread 0 is the main thread. Other entries are code that main can
// spawn.
type testProg struct {
	threads [][]op
	init    map[uint64]uint64
	// done is called with the registers at the end of every
	// execution in which all threads finished.
	done func(regs map[string]uint64)
}

// An op runs one instruction of thread t. It returns false if the
// thread is blocked and must retry the instruction.
type op func(m *machine, t event.ThreadID) (bool, error)

type machine struct {
	h        *Handle
	prog     *testProg
	code     map[event.ThreadID][]op
	pc       map[event.ThreadID]int
	regs     map[string]uint64
	spawned  []event.ThreadID
	finished int
}

func (m *machine) old(addr uint64) *event.Scalar {
	v := event.Val(m.prog.init[addr])
	return &v
}

func (p *testProg) Execute(h *Handle) error {
	m := &machine{
		h:    h,
		prog: p,
		code: map[event.ThreadID][]op{event.Main: p.threads[0]},
		pc:   map[event.ThreadID]int{},
		regs: map[string]uint64{},
	}
	cur := event.Main
	for {
		t, ok := h.ScheduleNext(cur, event.NonLoad)
		if !ok {
			break
		}
		cur = t
		code := m.code[t]
		if m.pc[t] == len(code) {
			if err := h.HandleThreadFinish(t, 0); err != nil {
				return err
			}
			m.finished++
			continue
		}
		adv, err := code[m.pc[t]](m, t)
		if err != nil {
			return err
		}
		if adv {
			m.pc[t]++
		}
	}
	if p.done != nil && m.finished == len(m.code) {
		p.done(m.regs)
	}
	return nil
}

func st(addr, v uint64, ord event.Ordering) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		_, err := m.h.HandleStore(t, addr, 8, ord, event.Val(v), m.old(addr))
		return true, err
	}
}

// stReg stores reg+add.
func stReg(addr uint64, reg string, add uint64, ord event.Ordering) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		_, err := m.h.HandleStore(t, addr, 8, ord, event.Val(m.regs[reg]+add), m.old(addr))
		return true, err
	}
}

func ld(reg string, addr uint64, ord event.Ordering) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		r, err := m.h.HandleLoad(t, addr, 8, ord, m.old(addr))
		m.regs[reg] = r.Value.Value
		return true, err
	}
}

// ldIf loads only if cond holds 1.
func ldIf(cond, reg string, addr uint64, ord event.Ordering) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		if m.regs[cond] != 1 {
			return true, nil
		}
		return ld(reg, addr, ord)(m, t)
	}
}

// spin loads addr until it reads 1.
func spin(addr uint64) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		r, err := m.h.HandleLoad(t, addr, 8, event.Relaxed, m.old(addr))
		return r.Value.Value == 1, err
	}
}

func add(addr, v uint64) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		_, err := m.h.HandleReadModifyWrite(t, addr, 8, event.Add, event.SeqCst, event.Val(v), m.old(addr))
		return true, err
	}
}

func casw(reg string, addr, expected, desired uint64) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		r, err := m.h.HandleCompareExchange(t, addr, 8, event.Val(expected), event.Val(desired), event.Relaxed, event.Relaxed, true, m.old(addr))
		if r.Success {
			m.regs[reg] = 1
		}
		return true, err
	}
}

func spawn(i int) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		child, err := m.h.HandleThreadCreate(t, fmt.Sprint("code", i))
		if err != nil {
			return true, err
		}
		m.code[child] = m.prog.threads[i]
		m.spawned = append(m.spawned, child)
		return true, nil
	}
}

func join(k int) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		return m.h.HandleThreadJoin(t, m.spawned[k])
	}
}

func lock(addr uint64) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		r, err := m.h.HandleMutexLock(t, addr, m.old(addr))
		return r.Acquired, err
	}
}

func unlock(addr uint64) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		return true, m.h.HandleMutexUnlock(t, addr, m.old(addr))
	}
}

func malloc(reg string) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		p, err := m.h.HandleMalloc(t, 8, 8)
		m.regs[reg] = p
		return true, err
	}
}

func free(reg string) op {
	return func(m *machine, t event.ThreadID) (bool, error) {
		return true, m.h.HandleFree(t, m.regs[reg], 8)
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.LogLevel = config.Quiet
	return cfg
}

func run(t *testing.T, cfg *config.Config, p *testProg) *report.Result {
	t.Helper()
	ex := &Explorer{Config: cfg, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	res, err := ex.Run(context.Background(), p)
	require.NoError(t, err)
	return res
}

// outcomes runs p and returns the set of values of regs seen in
// complete executions.
func outcomes(t *testing.T, cfg *config.Config, p *testProg, regs ...string) (map[string]bool, *report.Result) {
	seen := map[string]bool{}
	p.done = func(r map[string]uint64) {
		var key string
		for i, reg := range regs {
			if i > 0 {
				key += " "
			}
			key += fmt.Sprintf("%s=%d", reg, r[reg])
		}
		seen[key] = true
	}
	return seen, run(t, cfg, p)
}

func storeBuffering() *testProg {
	return &testProg{threads: [][]op{
		{spawn(1), spawn(2)},
		{st(x, 1, event.Relaxed), ld("a", y, event.Relaxed)},
		{st(y, 1, event.Relaxed), ld("b", x, event.Relaxed)},
	}}
}

func TestStoreBuffering(t *testing.T) {
	seen, res := outcomes(t, testConfig(), storeBuffering(), "a", "b")
	assert.False(t, res.HasBugs())
	assert.True(t, res.Exhausted)
	assert.True(t, seen["a=0 b=0"], "weak outcome missing: %v", seen)
	assert.True(t, seen["a=1 b=1"])

	cfg := testConfig()
	cfg.Model = config.SC
	seen, res = outcomes(t, cfg, storeBuffering(), "a", "b")
	assert.False(t, res.HasBugs())
	assert.False(t, seen["a=0 b=0"], "weak outcome under SC: %v", seen)
	assert.True(t, seen["a=0 b=1"])
	assert.True(t, seen["a=1 b=0"])
}

func TestMessagePassing(t *testing.T) {
	p := &testProg{threads: [][]op{
		{spawn(1), spawn(2)},
		{st(y, 1, event.NotAtomic), st(flag, 1, event.Release)},
		{ld("f", flag, event.Acquire), ldIf("f", "d", y, event.NotAtomic)},
	}}
	seen, res := outcomes(t, testConfig(), p, "f", "d")
	require.False(t, res.HasBugs(), "%v", res.Bugs)
	assert.False(t, seen["f=1 d=0"])
	assert.True(t, seen["f=1 d=1"])
	assert.True(t, seen["f=0 d=0"])
}

func TestMutexCounter(t *testing.T) {
	p := &testProg{
		threads: [][]op{
			{spawn(1), spawn(2), join(0), join(1), ld("final", x, event.NotAtomic)},
			{lock(mu), ld("r1", x, event.NotAtomic), stReg(x, "r1", 2, event.NotAtomic), unlock(mu)},
			{lock(mu), ld("r2", x, event.NotAtomic), stReg(x, "r2", 4, event.NotAtomic), unlock(mu)},
		},
		init: map[uint64]uint64{x: 1234},
	}
	seen, res := outcomes(t, testConfig(), p, "final")
	require.False(t, res.HasBugs(), "%v", res.Bugs)
	assert.Equal(t, map[string]bool{"final=1240": true}, seen)
	assert.GreaterOrEqual(t, res.Distinct(), 2, "both lock orders")
	assert.True(t, res.Exhausted)
}

func TestWeakCAS(t *testing.T) {
	p := &testProg{threads: [][]op{{casw("ok", x, 0, 1)}}}
	seen, res := outcomes(t, testConfig(), p, "ok")
	assert.Equal(t, map[string]bool{"ok=0": true, "ok=1": true}, seen)
	assert.Equal(t, 2, res.Complete)

	cfg := testConfig()
	cfg.ModelSpuriousFailures = false
	seen, res = outcomes(t, cfg, p, "ok")
	assert.Equal(t, map[string]bool{"ok=1": true}, seen)
	assert.Equal(t, 1, res.Complete)
}

func TestUsageErrors(t *testing.T) {
	for _, test := range []struct {
		name string
		code []op
		kind failure.Kind
	}{
		{"double free", []op{malloc("p"), free("p"), free("p")}, failure.DoubleFree},
		{"free non-malloc", []op{free("nothing")}, failure.FreeNonMalloc},
		{"unlock", []op{unlock(mu)}, failure.InvalidUnlock},
	} {
		t.Run(test.name, func(t *testing.T) {
			res := run(t, testConfig(), &testProg{threads: [][]op{test.code}})
			require.Len(t, res.Bugs, 1)
			b := res.Bugs[0]
			assert.Equal(t, test.kind, b.Kind)
			assert.Equal(t, failure.UsageError, b.Category())
			assert.Equal(t, res.Executions(), res.Buggy)
			require.NotEmpty(t, b.Events)
			assert.Equal(t, event.Main, b.Events[len(b.Events)-1].Thread)
		})
	}
}

func TestDataRace(t *testing.T) {
	p := &testProg{threads: [][]op{
		{spawn(1), spawn(2)},
		{st(x, 1, event.NotAtomic)},
		{st(x, 2, event.NotAtomic)},
	}}
	res := run(t, testConfig(), p)
	require.True(t, res.HasBugs())
	for _, b := range res.Bugs {
		assert.Equal(t, failure.DataRace, b.Kind)
		assert.Equal(t, "write-write", b.Msg)
	}

	// The recorded path reproduces the bug.
	ex := &Explorer{Config: testConfig(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rres, g, err := ex.Replay(context.Background(), p, res.Bugs[0].Path)
	require.NoError(t, err)
	require.Len(t, rres.Bugs, 1)
	assert.Equal(t, res.Bugs[0].Key(), rres.Bugs[0].Key())
	assert.NotNil(t, g)
}

func TestBlocked(t *testing.T) {
	// Main holds the mutex forever.
	deadlock := &testProg{threads: [][]op{
		{lock(mu), spawn(1)},
		{lock(mu)},
	}}
	res := run(t, testConfig(), deadlock)
	assert.Zero(t, res.Complete)
	assert.Positive(t, res.Blocked)
	assert.False(t, res.HasBugs())

	// A thread spins on a flag nobody sets.
	spinner := &testProg{threads: [][]op{
		{spawn(1)},
		{spin(flag)},
	}}
	cfg := testConfig()
	cfg.MaxSteps = 20
	res = run(t, cfg, spinner)
	assert.Zero(t, res.Complete)
	assert.Positive(t, res.Blocked)
}

func TestStepBudgetReason(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSteps = 5
	d := newDriver(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, &amb.StrategyDFS{})
	h := &Handle{d: d}
	h.HandleExecutionStart()
	for i := 0; i < 5; i++ {
		_, ok := h.ScheduleNext(event.Main, event.Load)
		require.True(t, ok)
	}
	_, ok := h.ScheduleNext(event.Main, event.Load)
	assert.False(t, ok)
	e, err := h.HandleExecutionEnd()
	require.NoError(t, err)
	assert.Equal(t, report.Blocked, e.Status)
	assert.Equal(t, "step budget", e.Reason)
}

func TestPendingJoin(t *testing.T) {
	d := newDriver(testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), nil, &amb.StrategyDFS{})
	h := &Handle{d: d}
	h.HandleExecutionStart()
	child, err := h.HandleThreadCreate(event.Main, "")
	require.NoError(t, err)
	before := len(h.Graph().Thread(event.Main))

	// A join of a running child records nothing.
	ok, err := h.HandleThreadJoin(event.Main, child)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, h.Graph().Thread(event.Main), before)
	assert.Equal(t, blockedJoin, d.threads[event.Main].state)

	// The retry after the child finishes records the join.
	require.NoError(t, h.HandleThreadFinish(child, 0))
	ok, err = h.HandleThreadJoin(event.Main, child)
	require.NoError(t, err)
	assert.True(t, ok)
	nodes := h.Graph().Thread(event.Main)
	require.Len(t, nodes, before+1)
	assert.Equal(t, &event.ThreadJoin{Child: child}, nodes[before].Label)
}

func TestPolicies(t *testing.T) {
	for _, policy := range []config.Policy{config.LTR, config.WritesFirst, config.Random} {
		t.Run(string(policy), func(t *testing.T) {
			cfg := testConfig()
			cfg.SchedulePolicy = policy
			seen, res := outcomes(t, cfg, storeBuffering(), "a", "b")
			assert.False(t, res.HasBugs())
			assert.True(t, res.Exhausted)
			// Weak behaviors are still explored without
			// schedule choices.
			assert.True(t, seen["a=0 b=0"], "%v", seen)

			_, again := outcomes(t, cfg, storeBuffering(), "a", "b")
			assert.Equal(t, res.Complete, again.Complete)
			assert.Equal(t, res.Distinct(), again.Distinct())
		})
	}
}

func TestSymmetryReduction(t *testing.T) {
	p := func() *testProg {
		return &testProg{threads: [][]op{
			{spawn(1), spawn(1), join(0), join(1), ld("final", x, event.NotAtomic)},
			{add(x, 1)},
		}}
	}
	full, fres := outcomes(t, testConfig(), p(), "final")
	cfg := testConfig()
	cfg.SymmetryReduction = true
	reduced, rres := outcomes(t, cfg, p(), "final")

	assert.Equal(t, full, reduced)
	assert.Equal(t, map[string]bool{"final=2": true}, reduced)
	assert.Positive(t, rres.Moot)
	assert.Less(t, rres.Complete, fres.Complete)
}

func TestParallel(t *testing.T) {
	seq := run(t, testConfig(), storeBuffering())
	cfg := testConfig()
	cfg.Workers = 4
	par := run(t, cfg, storeBuffering())
	assert.Equal(t, seq.Complete, par.Complete)
	assert.Equal(t, seq.Blocked, par.Blocked)
	assert.Equal(t, seq.Distinct(), par.Distinct())
	assert.True(t, par.Exhausted)

	// Every execution run is counted once, including the one that
	// discovers the root width.
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	var done atomic.Int64
	p := storeBuffering()
	p.done = func(map[string]uint64) { done.Add(1) }
	cfg.Workers = 2
	ex := &Explorer{Config: cfg, Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Metrics: m}
	res, err := ex.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, seq.Complete, res.Complete)
	assert.Equal(t, float64(res.Complete), testutil.ToFloat64(m.Executions.WithLabelValues("complete")))
	assert.Equal(t, int64(res.Complete), done.Load())
}

func TestEstimate(t *testing.T) {
	cfg := testConfig()
	cfg.Estimate = true
	cfg.EstimationMax = 50
	res := run(t, cfg, storeBuffering())
	require.NotNil(t, res.Estimate)
	assert.Equal(t, 50, res.Estimate.Samples)
	assert.Equal(t, 50, res.Executions())
	assert.GreaterOrEqual(t, res.Estimate.Mean, 1.0)

	again := run(t, cfg, storeBuffering())
	assert.Equal(t, res.Estimate.Mean, again.Estimate.Mean)
}

func TestBudgets(t *testing.T) {
	cfg := testConfig()
	cfg.MaxExecutions = 3
	res := run(t, cfg, storeBuffering())
	assert.Equal(t, 3, res.Executions())
	assert.False(t, res.Exhausted)

	racy := &testProg{threads: [][]op{
		{spawn(1), spawn(2)},
		{st(x, 1, event.NotAtomic)},
		{st(x, 2, event.NotAtomic)},
	}}
	cfg = testConfig()
	cfg.StopOnError = true
	res = run(t, cfg, racy)
	assert.Equal(t, 1, res.Buggy)
	assert.False(t, res.Exhausted)
}

func TestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := &Explorer{Config: testConfig(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	res, err := ex.Run(ctx, storeBuffering())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, res.Executions())
}

type growingProg struct {
	runs int
}

func (p *growingProg) Execute(h *Handle) error {
	p.runs++
	for i := 0; i < p.runs; i++ {
		if _, err := h.HandleThreadCreate(event.Main, ""); err != nil {
			return err
		}
	}
	h.ScheduleNext(event.Main, event.NonLoad)
	return nil
}

func TestNondeterminism(t *testing.T) {
	ex := &Explorer{Config: testConfig(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	_, err := ex.Run(context.Background(), &growingProg{})
	var nd *amb.ErrNondeterminism
	assert.True(t, errors.As(err, &nd), "got %v", err)
}

func TestInitValues(t *testing.T) {
	var got uint64
	p := &testProg{threads: [][]op{{func(m *machine, t event.ThreadID) (bool, error) {
		r, err := m.h.HandleLoad(t, x, 8, event.NotAtomic, nil)
		got = r.Value.Value
		return true, err
	}}}}

	var buf bytes.Buffer
	cfg := testConfig()
	cfg.LogLevel = config.Info
	ex := &Explorer{Config: cfg, Logger: cfg.Logger(&buf)}
	res, err := ex.Run(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, res.HasBugs())
	assert.Equal(t, uint64(event.NoInitPlaceholder), got)
	assert.Contains(t, buf.String(), "no initial value")

	cfg = testConfig()
	cfg.StrictInit = true
	res = run(t, cfg, p)
	require.Len(t, res.Bugs, 1)
	assert.Equal(t, failure.UninitializedRead, res.Bugs[0].Kind)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	ex := &Explorer{Config: testConfig(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Metrics: m}
	res, err := ex.Run(context.Background(), storeBuffering())
	require.NoError(t, err)
	assert.Equal(t, float64(res.Complete), testutil.ToFloat64(m.Executions.WithLabelValues("complete")))
	assert.Positive(t, testutil.ToFloat64(m.Choices.WithLabelValues("schedule")))
	assert.Positive(t, testutil.ToFloat64(m.Choices.WithLabelValues("reads-from")))
}

func TestPrintGraphs(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig()
	cfg.PrintGraphs = true
	ex := &Explorer{Config: cfg, Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Graphs: &buf}
	res, err := ex.Run(context.Background(), &testProg{threads: [][]op{{st(x, 1, event.Relaxed)}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Complete)
	assert.Contains(t, buf.String(), "digraph")
}
