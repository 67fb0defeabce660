// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package explore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/aclements/weavemc/amb"
	"github.com/aclements/weavemc/config"
	"github.com/aclements/weavemc/failure"
	"github.com/aclements/weavemc/graph"
	"github.com/aclements/weavemc/internal/status"
	"github.com/aclements/weavemc/report"
)

// A Program is run once per execution. Execute is called after
// h.HandleExecutionStart. It drives the threads through h and returns
// when ScheduleNext reports that the execution is over or a handler
// returns an error. It must behave the same given the same sequence of
// results from h.
type Program interface {
	Execute(h *Handle) error
}

// An Explorer explores the executions of a program.
type Explorer struct {
	Config *config.Config

	// Logger defaults to a text logger on stderr at the configured
	// level.
	Logger *slog.Logger
	// Metrics, if not nil, records exploration metrics.
	Metrics *Metrics
	// Status, if not nil, shows progress.
	Status status.Reporter
	// Graphs receives the dot graph of every complete or buggy
	// execution if Config.PrintGraphs is set.
	Graphs io.Writer
}

// Explore explores prog under cfg.
func Explore(ctx context.Context, cfg *config.Config, prog Program) (*report.Result, error) {
	x := &Explorer{Config: cfg}
	return x.Run(ctx, prog)
}

func (x *Explorer) logger() *slog.Logger {
	if x.Logger == nil {
		x.Logger = x.Config.Logger(os.Stderr)
	}
	return x.Logger
}

func (x *Explorer) status() status.Reporter {
	if x.Status == nil {
		return status.Discard
	}
	return x.Status
}

func (x *Explorer) newDriver(s amb.Strategy) *Driver {
	d := newDriver(x.Config, x.logger(), x.Metrics, s)
	d.graphs = x.Graphs
	return d
}

// Run explores prog. In estimation mode, it samples random executions
// instead. Run returns the result so far even if it also returns an
// error.
func (x *Explorer) Run(ctx context.Context, prog Program) (*report.Result, error) {
	cfg := x.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := x.logger()
	if cfg.Estimate {
		return x.estimate(ctx, prog)
	}
	log.Info("exploring", "model", cfg.Model, "policy", cfg.SchedulePolicy, "workers", cfg.Workers)
	if cfg.SchedulePolicy == config.Random && cfg.PrintRandomScheduleSeed {
		log.Info("random schedule", "seed", cfg.Seed)
	}

	st := x.status()
	st.Start()
	defer st.Stop()

	if cfg.Workers > 1 {
		return x.parallel(ctx, prog)
	}
	res := report.New("verify", string(cfg.Model))
	start := time.Now()
	err := x.explore(ctx, prog, x.newHandle(&amb.StrategyDFS{MaxDepth: cfg.MaxDepth}), res, new(atomic.Int64))
	res.Elapsed = time.Since(start)
	return res, endErr(err)
}

// errStopped ends an exploration that stopped at its first bug.
var errStopped = errors.New("stopped on error")

// endErr maps the errors that end an exploration normally to nil.
func endErr(err error) error {
	if errors.Is(err, errStopped) || errors.Is(err, failure.ErrExplorationExhausted) {
		return nil
	}
	return err
}

// newHandle returns a handle on a fresh driver for s, with s reset.
func (x *Explorer) newHandle(s amb.Strategy) *Handle {
	s.Reset()
	return &Handle{d: x.newDriver(s)}
}

// explore runs executions of prog chosen by h's strategy until it is
// exhausted, the context is canceled, or a budget runs out. It returns
// failure.ErrExplorationExhausted once the strategy has no executions
// left. count is the number of executions run so far, shared with
// parallel explorations.
func (x *Explorer) explore(ctx context.Context, prog Program, h *Handle, res *report.Result, count *atomic.Int64) error {
	throttle := &status.Throttle{Every: time.Second / 4}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if done, err := x.step(h, prog, res, count, throttle); done {
			return err
		}
	}
}

// step runs and records the next execution of h. It reports whether
// the exploration by h is over, and why.
func (x *Explorer) step(h *Handle, prog Program, res *report.Result, count *atomic.Int64, throttle *status.Throttle) (bool, error) {
	cfg := x.Config
	e, err := x.run1(h, prog)
	if err != nil {
		return true, err
	}
	res.Record(e)
	n := count.Add(1)
	if e.Bug != nil {
		x.logger().Warn("bug found", "err", e.Bug, "path", report.FormatPath(e.Bug.Path))
		if cfg.StopOnError {
			return true, errStopped
		}
	}
	if throttle.Ready() {
		x.status().Status("explored %d executions (%d complete, %d blocked), %d bugs", n, res.Complete, res.Blocked, len(res.Bugs))
	}
	if h.IsExplorationDone() {
		res.Exhausted = true
		return true, failure.ErrExplorationExhausted
	}
	if cfg.MaxExecutions > 0 && n >= int64(cfg.MaxExecutions) {
		return true, nil
	}
	return false, nil
}

// run1 runs a single execution of prog.
func (x *Explorer) run1(h *Handle, prog Program) (e *report.Execution, err error) {
	defer func() {
		if r := recover(); r != nil {
			if nd, ok := r.(*amb.ErrNondeterminism); ok {
				e, err = nil, fmt.Errorf("program is not deterministic: %w", nd)
				return
			}
			panic(r)
		}
	}()
	h.HandleExecutionStart()
	if perr := prog.Execute(h); perr != nil {
		_, isBug := failure.AsBug(perr)
		if !isBug && !errors.Is(perr, amb.PathTerminated) {
			return nil, perr
		}
	}
	return h.HandleExecutionEnd()
}

// Replay runs the single execution that path leads to and returns its
// result and graph.
func (x *Explorer) Replay(ctx context.Context, prog Program, path []int) (*report.Result, *graph.Graph, error) {
	if err := x.Config.Validate(); err != nil {
		return nil, nil, err
	}
	res := report.New("replay", string(x.Config.Model))
	h := x.newHandle(&amb.StrategyReplay{Recorded: path})
	start := time.Now()
	e, err := x.run1(h, prog)
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, nil, err
	}
	res.Record(e)
	res.Exhausted = true
	return res, h.Graph(), ctx.Err()
}
