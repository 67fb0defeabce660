// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amb

import "fmt"

// StrategyDFS visits every path of depth at most MaxDepth exactly
// once, in depth-first order.
//
// The choice points of the current path are kept in an explicit
// stack. Next advances the deepest choice point that has an
// unexplored alternative and drops everything below it; the program
// is then re-run from the root, replaying the stack.
type StrategyDFS struct {
	// MaxDepth bounds each path; 0 means DefaultMaxDepth.
	MaxDepth int

	// Prefix fixes the alternatives taken at the first
	// len(Prefix) choice points. Only the subtree below the
	// prefix is explored. This splits the tree into independent
	// parts that can be explored in parallel.
	Prefix []int

	choices []Choice
	step    int
}

func (s *StrategyDFS) Reset() {
	s.choices = nil
	s.step = 0
}

func (s *StrategyDFS) Amb(kind ChoiceKind, n int) (int, bool) {
	if s.step < len(s.choices) {
		c := s.choices[s.step]
		if n != c.Width || kind != c.Kind {
			panic(&ErrNondeterminism{fmt.Sprintf("%s choice of %d during replay, but previous choice was %s of %d", kind, n, c.Kind, c.Width)})
		}
		s.step++
		return c.Taken, true
	}

	if len(s.choices) == maxDepth(s.MaxDepth) {
		return 0, false
	}

	// New choice point.
	taken := 0
	if s.step < len(s.Prefix) {
		taken = s.Prefix[s.step]
		if taken >= n {
			panic(&ErrNondeterminism{fmt.Sprintf("prefix takes alternative %d of a %s choice of %d", taken, kind, n)})
		}
	}
	s.choices = append(s.choices, Choice{Kind: kind, Width: n, Taken: taken})
	s.step++
	return taken, true
}

func (s *StrategyDFS) Next() bool {
	s.step = 0

	// Construct the next path prefix to explore.
	for len(s.choices) > len(s.Prefix) {
		c := &s.choices[len(s.choices)-1]
		c.Taken++
		if c.Taken < c.Width {
			return true
		}
		s.choices = s.choices[:len(s.choices)-1]
	}
	// We're out of paths.
	return false
}

func (s *StrategyDFS) Path() []int {
	path := make([]int, s.step)
	for i, c := range s.choices[:s.step] {
		path[i] = c.Taken
	}
	return path
}

// Choices returns the choice points of the current path.
func (s *StrategyDFS) Choices() []Choice {
	return s.choices[:s.step]
}
