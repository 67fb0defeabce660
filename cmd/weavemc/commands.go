// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/aclements/go-gg/table"
	"github.com/aclements/weavemc/config"
	"github.com/aclements/weavemc/explore"
	"github.com/aclements/weavemc/internal/status"
	"github.com/aclements/weavemc/litmus"
	"github.com/aclements/weavemc/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// app holds the state shared by the subcommands.
type app struct {
	flags       configFlags
	metricsAddr string
	progress    bool

	cfg  *config.Config
	prog *litmus.Program
}

func newRootCmd() *cobra.Command {
	a := new(app)
	root := &cobra.Command{
		Use:           "weavemc",
		Short:         "A stateless model checker for weak memory litmus programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	a.flags.register(root.PersistentFlags())
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on `addr` while exploring")
	root.PersistentFlags().BoolVar(&a.progress, "progress", true, "show progress on a terminal")

	var outcomes bool
	runCmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Explore every execution of a litmus program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, args[0]); err != nil {
				return err
			}
			return a.run(cmd, outcomes)
		},
	}
	runCmd.Flags().BoolVar(&outcomes, "outcomes", false, "print how often each final state was reached")

	estimateCmd := &cobra.Command{
		Use:   "estimate FILE",
		Short: "Estimate how many executions a litmus program has",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, args[0]); err != nil {
				return err
			}
			a.cfg.Estimate = true
			a.cfg.Workers = 1
			return a.run(cmd, false)
		},
	}

	var path string
	replayCmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Rerun the single execution a choice path leads to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, args[0]); err != nil {
				return err
			}
			return a.replay(cmd, path, false)
		},
	}
	replayCmd.Flags().StringVar(&path, "path", "", "comma-separated choice `path`, as printed with a bug")

	graphCmd := &cobra.Command{
		Use:   "graph FILE",
		Short: "Print execution graphs in dot format",
		Long: `Graph prints the graph of the execution --path leads to or, without
--path, the graph of every complete or buggy execution.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, args[0]); err != nil {
				return err
			}
			if cmd.Flags().Changed("path") {
				return a.replay(cmd, path, true)
			}
			a.cfg.PrintGraphs = true
			a.cfg.Workers = 1
			return a.graphs(cmd)
		},
	}
	graphCmd.Flags().StringVar(&path, "path", "", "comma-separated choice `path`")

	root.AddCommand(runCmd, estimateCmd, replayCmd, graphCmd)
	return root
}

func (a *app) setup(cmd *cobra.Command, file string) error {
	cfg, err := a.flags.load(cmd.Flags())
	if err != nil {
		return err
	}
	prog, err := litmus.ParseFile(file)
	if err != nil {
		return err
	}
	a.cfg, a.prog = cfg, prog
	return nil
}

func (a *app) explorer(cmd *cobra.Command) *explore.Explorer {
	x := &explore.Explorer{
		Config: a.cfg,
		Logger: a.cfg.Logger(cmd.ErrOrStderr()),
	}
	if a.progress {
		x.Status = status.New(os.Stderr)
	}
	return x
}

// serveMetrics serves the metrics of x on a.metricsAddr until the
// returned function is called.
func (a *app) serveMetrics(x *explore.Explorer) (func(), error) {
	if a.metricsAddr == "" {
		return func() {}, nil
	}
	reg := prometheus.NewRegistry()
	x.Metrics = explore.NewMetrics(reg)
	srv := &http.Server{
		Addr:    a.metricsAddr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		return nil, fmt.Errorf("serving metrics: %w", err)
	case <-time.After(50 * time.Millisecond):
	}
	x.Logger.Info("serving metrics", "addr", a.metricsAddr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}

func (a *app) run(cmd *cobra.Command, outcomes bool) error {
	x := a.explorer(cmd)
	stop, err := a.serveMetrics(x)
	if err != nil {
		return err
	}
	defer stop()

	var h *histogram
	if outcomes {
		h = newHistogram()
		a.prog.Observe = h.add
	}
	res, err := x.Run(cmd.Context(), a.prog)
	if res != nil {
		report.Fprint(cmd.OutOrStdout(), res)
	}
	if h != nil {
		h.fprint(cmd.OutOrStdout())
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if res != nil && res.HasBugs() {
		return errBugs
	}
	return err
}

func (a *app) replay(cmd *cobra.Command, p string, dot bool) error {
	path, err := report.ParsePath(p)
	if err != nil {
		return err
	}
	x := a.explorer(cmd)
	x.Status = nil
	res, g, err := x.Replay(cmd.Context(), a.prog, path)
	if err != nil {
		return err
	}
	if dot {
		if err := g.WriteDot(cmd.OutOrStdout()); err != nil {
			return err
		}
	} else {
		report.Fprint(cmd.OutOrStdout(), res)
	}
	if res.HasBugs() {
		return errBugs
	}
	return nil
}

func (a *app) graphs(cmd *cobra.Command) error {
	x := a.explorer(cmd)
	x.Status = nil
	x.Graphs = cmd.OutOrStdout()
	res, err := x.Run(cmd.Context(), a.prog)
	if err != nil {
		return err
	}
	if res.HasBugs() {
		return errBugs
	}
	return nil
}

// histogram counts the final states of complete executions. The
// program may report them from several workers at once.
type histogram struct {
	mu     sync.Mutex
	counts map[string]int
}

func newHistogram() *histogram {
	return &histogram{counts: make(map[string]int)}
}

func (h *histogram) add(o litmus.Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[o.String()]++
}

func (h *histogram) fprint(w io.Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	states := make([]string, 0, len(h.counts))
	for s := range h.counts {
		states = append(states, s)
	}
	sort.Strings(states)
	counts := make([]int, len(states))
	for i, s := range states {
		counts[i] = h.counts[s]
	}
	tab := new(table.Builder).Add("final state", states).Add("executions", counts).Done()
	table.Fprint(w, tab)
}
