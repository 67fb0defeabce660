// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package amb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tree runs one path of a small tree: a 2-way choice, then a 3-way
// choice on the left branch only.
func tree(s Strategy) []int {
	a, ok := s.Amb(Schedule, 2)
	if !ok {
		return nil
	}
	if a == 1 {
		return []int{a}
	}
	b, ok := s.Amb(ReadsFrom, 3)
	if !ok {
		return nil
	}
	return []int{a, b}
}

func explore(s Strategy) [][]int {
	var paths [][]int
	s.Reset()
	for {
		paths = append(paths, tree(s))
		if !s.Next() {
			return paths
		}
	}
}

func TestDFS(t *testing.T) {
	paths := explore(&StrategyDFS{})
	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {0, 2}, {1}}, paths)
}

func TestDFSPath(t *testing.T) {
	s := &StrategyDFS{}
	s.Reset()
	tree(s)
	require.True(t, s.Next())
	tree(s)
	assert.Equal(t, []int{0, 1}, s.Path())
	assert.Equal(t, []Choice{{Schedule, 2, 0}, {ReadsFrom, 3, 1}}, s.Choices())
}

func TestDFSPrefix(t *testing.T) {
	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {0, 2}}, explore(&StrategyDFS{Prefix: []int{0}}))
	assert.Equal(t, [][]int{{1}}, explore(&StrategyDFS{Prefix: []int{1}}))
	assert.Panics(t, func() { explore(&StrategyDFS{Prefix: []int{2}}) })
}

func TestDFSMaxDepth(t *testing.T) {
	s := &StrategyDFS{MaxDepth: 1}
	paths := explore(s)
	// The left branch is cut off at the second choice.
	assert.Equal(t, [][]int{nil, {1}}, paths)
}

func TestDFSNondeterminism(t *testing.T) {
	s := &StrategyDFS{}
	s.Reset()
	s.Amb(Schedule, 2)
	s.Amb(Schedule, 2)
	require.True(t, s.Next())
	defer func() {
		err := recover()
		require.NotNil(t, err)
		_, ok := err.(*ErrNondeterminism)
		assert.True(t, ok, "panic was %v", err)
	}()
	s.Amb(Schedule, 3)
}

func TestRandomDeterministic(t *testing.T) {
	run := func() [][]int {
		return explore(&StrategyRandom{Seed: 42, MaxPaths: 20})
	}
	a, b := run(), run()
	assert.Len(t, a, 20)
	assert.Equal(t, a, b)
}

func TestRandomEstimate(t *testing.T) {
	s := &StrategyRandom{Seed: 1}
	s.Reset()
	for i := 0; i < 50; i++ {
		p := tree(s)
		if p[0] == 0 {
			assert.Equal(t, 6.0, s.Estimate())
		} else {
			assert.Equal(t, 2.0, s.Estimate())
		}
		assert.Equal(t, p, s.Path())
		s.Next()
	}
}

func TestReplay(t *testing.T) {
	s := &StrategyReplay{Recorded: []int{0, 2}}
	assert.Equal(t, [][]int{{0, 2}}, explore(s))
	assert.Equal(t, [][]int{{1}}, explore(&StrategyReplay{Recorded: []int{1}}))
	assert.Panics(t, func() { explore(&StrategyReplay{Recorded: []int{0, 3}}) })
}
