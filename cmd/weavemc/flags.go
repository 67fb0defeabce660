// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/aclements/weavemc/config"
	"github.com/spf13/pflag"
)

// configFlags holds the command-line overrides of the configuration.
type configFlags struct {
	path string
	vals config.Config
}

// settings maps each configuration flag to the field it overrides.
var settings = []struct {
	name string
	copy func(dst, src *config.Config)
}{
	{"model", func(d, s *config.Config) { d.Model = s.Model }},
	{"policy", func(d, s *config.Config) { d.SchedulePolicy = s.SchedulePolicy }},
	{"symmetry", func(d, s *config.Config) { d.SymmetryReduction = s.SymmetryReduction }},
	{"estimation-max", func(d, s *config.Config) { d.EstimationMax = s.EstimationMax }},
	{"log", func(d, s *config.Config) { d.LogLevel = s.LogLevel }},
	{"seed", func(d, s *config.Config) { d.Seed = s.Seed }},
	{"max-executions", func(d, s *config.Config) { d.MaxExecutions = s.MaxExecutions }},
	{"max-steps", func(d, s *config.Config) { d.MaxSteps = s.MaxSteps }},
	{"max-depth", func(d, s *config.Config) { d.MaxDepth = s.MaxDepth }},
	{"stop-on-error", func(d, s *config.Config) { d.StopOnError = s.StopOnError }},
	{"strict-init", func(d, s *config.Config) { d.StrictInit = s.StrictInit }},
	{"spurious", func(d, s *config.Config) { d.ModelSpuriousFailures = s.ModelSpuriousFailures }},
	{"print-graphs", func(d, s *config.Config) { d.PrintGraphs = s.PrintGraphs }},
	{"print-seed", func(d, s *config.Config) { d.PrintRandomScheduleSeed = s.PrintRandomScheduleSeed }},
	{"workers", func(d, s *config.Config) { d.Workers = s.Workers }},
	{"warn-graph-size", func(d, s *config.Config) { d.WarnOnGraphSize = s.WarnOnGraphSize }},
}

func (f *configFlags) register(fs *pflag.FlagSet) {
	def := config.Default()
	v := &f.vals
	fs.StringVar(&f.path, "config", "", "load settings from YAML `file`")
	fs.StringVar((*string)(&v.Model), "model", string(def.Model), "memory `model`: rc11 or sc")
	fs.StringVar((*string)(&v.SchedulePolicy), "policy", string(def.SchedulePolicy), "schedule `policy`: arbitrary, ltr, wf or random")
	fs.BoolVar(&v.SymmetryReduction, "symmetry", def.SymmetryReduction, "prune executions that only swap identical threads")
	fs.IntVar(&v.EstimationMax, "estimation-max", def.EstimationMax, "number of samples in estimation mode")
	fs.StringVar((*string)(&v.LogLevel), "log", string(def.LogLevel), "log `level`: quiet, info or trace")
	fs.Int64Var(&v.Seed, "seed", def.Seed, "random seed")
	fs.IntVar(&v.MaxExecutions, "max-executions", def.MaxExecutions, "stop after `n` executions (0 means no limit)")
	fs.IntVar(&v.MaxSteps, "max-steps", def.MaxSteps, "block an execution after `n` scheduling steps")
	fs.IntVar(&v.MaxDepth, "max-depth", def.MaxDepth, "block an execution after `n` choices")
	fs.BoolVar(&v.StopOnError, "stop-on-error", def.StopOnError, "stop at the first bug")
	fs.BoolVar(&v.StrictInit, "strict-init", def.StrictInit, "report reads of memory with no initial value")
	fs.BoolVar(&v.ModelSpuriousFailures, "spurious", def.ModelSpuriousFailures, "let weak compare-exchange fail spuriously")
	fs.BoolVar(&v.PrintGraphs, "print-graphs", def.PrintGraphs, "print the graph of every complete or buggy execution")
	fs.BoolVar(&v.PrintRandomScheduleSeed, "print-seed", def.PrintRandomScheduleSeed, "log the seed of the random policy")
	fs.IntVar(&v.Workers, "workers", def.Workers, "explore `n` branches in parallel")
	fs.IntVar(&v.WarnOnGraphSize, "warn-graph-size", def.WarnOnGraphSize, "warn once a graph has `n` events")
}

// load returns the configuration file, if any, with the flags that
// were set on the command line applied on top.
func (f *configFlags) load(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if f.path != "" {
		var err error
		if cfg, err = config.Load(f.path); err != nil {
			return nil, err
		}
	}
	for _, s := range settings {
		if fs.Changed(s.name) {
			s.copy(cfg, &f.vals)
		}
	}
	return cfg, cfg.Validate()
}
