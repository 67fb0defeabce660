// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/aclements/weavemc/failure"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weavemc(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--progress=false", "--log=quiet"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func model(name string) string {
	return filepath.Join("..", "..", "models", name)
}

func TestRun(t *testing.T) {
	out, err := weavemc(t, "run", model("mutex.litmus"))
	require.NoError(t, err)
	assert.Contains(t, out, "Verification complete")
	assert.Contains(t, out, "Number of complete executions explored")
}

func TestRunBugs(t *testing.T) {
	out, err := weavemc(t, "run", model("doublefree.litmus"))
	assert.True(t, errors.Is(err, errBugs))
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "Error 1:")
}

func TestOutcomes(t *testing.T) {
	out, err := weavemc(t, "run", "--outcomes", model("sb.litmus"))
	require.NoError(t, err)
	assert.Contains(t, out, "final state")
	assert.Contains(t, out, "t1.a=0 t2.b=0")

	out, err = weavemc(t, "run", "--outcomes", "--model=sc", model("sb.litmus"))
	require.NoError(t, err)
	assert.NotContains(t, out, "t1.a=0 t2.b=0")
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weavemc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: sc\nmax_executions: 1\n"), 0666))
	out, err := weavemc(t, "run", "--config", path, model("sb.litmus"))
	require.NoError(t, err)
	assert.Contains(t, out, "Exploration stopped early")
	assert.Contains(t, out, "(verify, sc)")

	// Flags override the file.
	out, err = weavemc(t, "run", "--config", path, "--model=rc11", model("sb.litmus"))
	require.NoError(t, err)
	assert.Contains(t, out, "(verify, rc11)")
}

func TestBadConfig(t *testing.T) {
	_, err := weavemc(t, "run", "--policy=rtl", model("sb.litmus"))
	var ce *failure.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, exitCode(err))

	_, err = weavemc(t, "run", "--symmetry", "--policy=ltr", model("sb.litmus"))
	assert.Equal(t, 2, exitCode(err))
}

func TestEstimate(t *testing.T) {
	out, err := weavemc(t, "estimate", "--estimation-max=20", model("sb.litmus"))
	require.NoError(t, err)
	assert.Contains(t, out, "Total executions estimate")
}

var replayRE = regexp.MustCompile(`replay with --path (\S+)`)

func TestReplay(t *testing.T) {
	out, err := weavemc(t, "run", model("race.litmus"))
	require.True(t, errors.Is(err, errBugs))
	m := replayRE.FindStringSubmatch(out)
	require.NotNil(t, m, "no replay path in %s", out)

	out, err = weavemc(t, "replay", "--path", m[1], model("race.litmus"))
	assert.True(t, errors.Is(err, errBugs))
	assert.Contains(t, out, "Error 1:")

	out, err = weavemc(t, "graph", "--path", m[1], model("race.litmus"))
	assert.True(t, errors.Is(err, errBugs))
	assert.Contains(t, out, "digraph G {")

	_, err = weavemc(t, "replay", "--path", "0,x", model("race.litmus"))
	assert.Error(t, err)
}

func TestGraph(t *testing.T) {
	out, err := weavemc(t, "graph", model("mp.litmus"))
	require.NoError(t, err)
	assert.Contains(t, out, "digraph G {")
}

func TestMissingFile(t *testing.T) {
	_, err := weavemc(t, "run", model("nonexistent.litmus"))
	assert.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}
