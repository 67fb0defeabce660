// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package explore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aclements/weavemc/amb"
	"github.com/aclements/weavemc/failure"
	"github.com/aclements/weavemc/internal/status"
	"github.com/aclements/weavemc/report"
	"golang.org/x/sync/errgroup"
)

// parallel explores the subtrees below the root choice point on
// separate workers. Each worker has its own driver, graph and initial
// value cache.
func (x *Explorer) parallel(ctx context.Context, prog Program) (*report.Result, error) {
	cfg := x.Config
	res := report.New("verify", string(cfg.Model))
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()
	count := new(atomic.Int64)

	// The first execution of the subtree below alternative 0 tells
	// us the width of the root. Its worker carries on from there.
	first := x.newHandle(&amb.StrategyDFS{MaxDepth: cfg.MaxDepth, Prefix: []int{0}})
	firstRes := report.New(res.Mode, res.Model)
	if done, err := x.step(first, prog, firstRes, count, &status.Throttle{}); done {
		res.Merge(firstRes)
		res.Exhausted = firstRes.Exhausted
		return res, endErr(err)
	}
	width := first.d.rootWidth
	x.logger().Debug("parallel exploration", "branches", width, "workers", cfg.Workers)

	var mu sync.Mutex
	exhausted := true
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for b := 0; b < width; b++ {
		g.Go(func() error {
			h, br := first, firstRes
			if b > 0 {
				h = x.newHandle(&amb.StrategyDFS{MaxDepth: cfg.MaxDepth, Prefix: []int{b}})
				br = report.New(res.Mode, res.Model)
			}
			err := x.explore(gctx, prog, h, br, count)
			mu.Lock()
			res.Merge(br)
			exhausted = exhausted && br.Exhausted
			mu.Unlock()
			// A finished branch must not cancel its siblings.
			if errors.Is(err, failure.ErrExplorationExhausted) {
				err = nil
			}
			return err
		})
	}
	err := g.Wait()
	res.Exhausted = exhausted
	return res, endErr(err)
}
