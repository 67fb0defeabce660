// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amb

import "math/rand"

// StrategyRandom samples paths by picking every alternative
// uniformly at random from a generator seeded with Seed. It may visit
// a path more than once and never knows whether it has seen them all.
type StrategyRandom struct {
	// MaxDepth bounds each path; 0 means DefaultMaxDepth.
	MaxDepth int
	// MaxPaths is the number of paths to sample; 0 means no limit.
	MaxPaths int

	Seed int64

	rng      *rand.Rand
	depth    int
	sampled  int
	path     []int
	estimate float64
}

func (s *StrategyRandom) Reset() {
	s.rng = rand.New(rand.NewSource(s.Seed))
	s.depth = 0
	s.sampled = 0
	s.path = s.path[:0]
	s.estimate = 1
}

func (s *StrategyRandom) Amb(kind ChoiceKind, n int) (int, bool) {
	if s.rng == nil {
		s.Reset()
	}
	if s.depth >= maxDepth(s.MaxDepth) {
		return 0, false
	}
	s.depth++
	x := s.rng.Intn(n)
	s.path = append(s.path, x)
	s.estimate *= float64(n)
	return x, true
}

func (s *StrategyRandom) Next() bool {
	s.depth = 0
	s.path = s.path[:0]
	s.estimate = 1
	s.sampled++
	return s.MaxPaths <= 0 || s.sampled < s.MaxPaths
}

func (s *StrategyRandom) Path() []int {
	return append([]int(nil), s.path...)
}

// Estimate returns Knuth's estimate of the number of paths in the
// tree, based on the current path: the product of the widths of its
// choice points.
func (s *StrategyRandom) Estimate() float64 {
	if s.rng == nil {
		return 1
	}
	return s.estimate
}
