// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package explore

import (
	"github.com/aclements/weavemc/amb"
	"github.com/aclements/weavemc/config"
	"github.com/aclements/weavemc/event"
)

// ScheduleNext picks the thread to run next. cur is the thread that
// ran last and next is the kind of its next instruction. A thread that
// was blocked on a mutex or a join is unblocked when picked and must
// retry that operation.
//
// ScheduleNext returns false when the execution is over: no thread can
// run, the step budget is exhausted, the strategy cut the path short,
// or the execution is redundant.
func (h *Handle) ScheduleNext(cur event.ThreadID, next event.ActionKind) (event.ThreadID, bool) {
	d := h.d
	if cur >= 0 && int(cur) < h.pos.NumThreads() {
		h.pos.SetKind(cur, next)
	}
	if d.bug != nil || d.terminated || d.moot {
		return 0, false
	}
	d.steps++
	if d.cfg.MaxSteps > 0 && d.steps > d.cfg.MaxSteps {
		d.outOfSteps = true
		d.warn.once("steps", "execution exceeded the step budget", "max_steps", d.cfg.MaxSteps)
		return 0, false
	}

	enabled := d.enabled()
	if len(enabled) == 0 {
		return 0, false
	}
	i := 0
	switch d.cfg.SchedulePolicy {
	case config.Arbitrary:
		x, err := d.choose(amb.Schedule, len(enabled))
		if err != nil {
			return 0, false
		}
		i = x
	case config.LTR:
	case config.WritesFirst:
		for j, t := range enabled {
			if h.pos.Kind(t) == event.NonLoad {
				i = j
				break
			}
		}
	case config.Random:
		i = d.rng.Intn(len(enabled))
	}
	t := enabled[i]

	if d.cfg.SymmetryReduction {
		for _, t1 := range enabled[:i] {
			if d.symmetric(t1, t) {
				// The same execution with t1 and t swapped
				// is explored elsewhere.
				d.moot = true
				d.log.Debug("symmetric schedule", "thread", t, "twin", t1)
				return 0, false
			}
		}
	}

	d.threads[t] = thread{}
	return t, true
}
