// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amb

import "fmt"

// StrategyReplay follows a single recorded path, such as the Path of
// a bug. Choice points past the end of the recording take
// alternative 0.
type StrategyReplay struct {
	Recorded []int

	step int
}

func (s *StrategyReplay) Reset() {
	s.step = 0
}

func (s *StrategyReplay) Amb(kind ChoiceKind, n int) (int, bool) {
	x := 0
	if s.step < len(s.Recorded) {
		x = s.Recorded[s.step]
		if x >= n {
			panic(&ErrNondeterminism{fmt.Sprintf("recorded path takes alternative %d of a %s choice of %d", x, kind, n)})
		}
	}
	s.step++
	return x, true
}

func (s *StrategyReplay) Next() bool {
	s.step = 0
	return false
}

func (s *StrategyReplay) Path() []int {
	path := make([]int, s.step)
	copy(path, s.Recorded)
	return path
}
