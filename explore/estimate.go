// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package explore

import (
	"context"
	"time"

	"github.com/aclements/go-moremath/stats"
	"github.com/aclements/weavemc/amb"
	"github.com/aclements/weavemc/internal/status"
	"github.com/aclements/weavemc/report"
)

// estimate samples random executions and estimates the total number
// of executions from the widths of the choice points along each one.
func (x *Explorer) estimate(ctx context.Context, prog Program) (*report.Result, error) {
	cfg := x.Config
	log := x.logger()
	log.Info("estimating", "model", cfg.Model, "samples", cfg.EstimationMax, "seed", cfg.Seed)

	res := report.New("estimate", string(cfg.Model))
	s := &amb.StrategyRandom{MaxDepth: cfg.MaxDepth, MaxPaths: cfg.EstimationMax, Seed: cfg.Seed}
	h := x.newHandle(s)

	st := x.status()
	st.Start()
	defer st.Stop()
	throttle := status.Throttle{Every: time.Second / 4}

	start := time.Now()
	var ests, times []float64
	var err error
	for len(ests) < cfg.EstimationMax {
		if err = ctx.Err(); err != nil {
			break
		}
		var e *report.Execution
		e, err = x.run1(h, prog)
		if err != nil {
			break
		}
		res.Record(e)
		ests = append(ests, e.Estimate)
		times = append(times, float64(e.Elapsed))
		if throttle.Ready() {
			st.Status("sampled %d/%d executions", len(ests), cfg.EstimationMax)
		}
		if h.IsExplorationDone() {
			break
		}
	}
	res.Elapsed = time.Since(start)

	est := &report.Estimate{Samples: len(ests)}
	if len(ests) > 0 {
		sample := stats.Sample{Xs: ests}
		est.Mean = sample.Mean()
		est.StdDev = sample.StdDev()
		est.PerExecution = time.Duration(stats.Mean(times))
		est.TimeToCompletion = time.Duration(float64(est.PerExecution) * est.Mean)
	}
	res.Estimate = est
	log.Info("estimate done", "mean", est.Mean, "stddev", est.StdDev, "samples", est.Samples)
	return res, err
}
