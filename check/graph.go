// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package check

import (
	"fmt"

	"github.com/aclements/weavemc/event"
	"github.com/aclements/weavemc/failure"
	"github.com/aclements/weavemc/graph"
)

// CheckGraph validates all of g: program order, reads-from, coherence
// and atomicity of updates. It does not look for data races, which
// Check reports as events are added.
func CheckGraph(g *graph.Graph) error {
	writes := make(map[event.Event]bool)
	for tid := 0; tid < g.NumThreads(); tid++ {
		for i, n := range g.Thread(event.ThreadID(tid)) {
			if n.Pos != (event.Event{Thread: event.ThreadID(tid), Index: i + 1}) {
				return fmt.Errorf("event %s is at program order position %d of thread %d", n.Pos, i+1, tid)
			}
			switch lab := n.Label.(type) {
			case *event.Read:
				if b := validReadsFrom(g, n, lab); b != nil {
					return b
				}
			case *event.Write:
				writes[n.Pos] = true
			}
		}
	}

	for _, addr := range g.Addrs() {
		co := g.Coherence(addr)
		seen := make(map[event.Event]bool)
		for i, w := range co {
			if seen[w] {
				return failure.New(failure.CoherenceCycle, w.Thread, addr, "write appears twice in coherence order", w)
			}
			seen[w] = true
			n := g.Node(w)
			if n == nil || !writes[w] || n.Label.(*event.Write).Loc.Addr != addr {
				return failure.New(failure.CoherenceCycle, w.Thread, addr, "coherence order contains a non-write", w)
			}
			delete(writes, w)
			if b := checkAtomicity(g, addr, i+1); b != nil {
				return b
			}
			// Coherence must agree with happens-before.
			for _, later := range co[i+1:] {
				if n.Clock.Contains(later) {
					return failure.New(failure.CoherenceCycle, w.Thread, addr,
						fmt.Sprintf("%s happens-before %s but is coherence-after it", later, w), later, w)
				}
			}
		}
	}
	for w := range writes {
		return failure.New(failure.CoherenceCycle, w.Thread, 0, "write is missing from coherence order", w)
	}
	return nil
}
