// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the settings of an exploration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aclements/weavemc/failure"
	"gopkg.in/yaml.v3"
)

// Model selects the memory model.
type Model string

const (
	// RC11 is the repaired C11 memory model: release/acquire,
	// relaxed and non-atomic accesses with weak behaviors.
	RC11 Model = "rc11"
	// SC is sequential consistency.
	SC Model = "sc"
)

// Policy selects how the next thread to run is chosen.
type Policy string

const (
	// Arbitrary explores every enabled thread at every scheduling
	// point.
	Arbitrary Policy = "arbitrary"
	// LTR always runs the lowest-numbered enabled thread.
	LTR Policy = "ltr"
	// WritesFirst runs the lowest-numbered enabled thread whose
	// next instruction is not a load, and otherwise the
	// lowest-numbered enabled thread.
	WritesFirst Policy = "wf"
	// Random picks an enabled thread pseudo-randomly.
	Random Policy = "random"
)

// LogLevel selects how much is logged.
type LogLevel string

const (
	Quiet LogLevel = "quiet"
	Info  LogLevel = "info"
	Trace LogLevel = "trace"
)

// Config is the configuration of an exploration. The zero value is
// not valid; start from Default.
type Config struct {
	Model          Model  `yaml:"model"`
	SchedulePolicy Policy `yaml:"schedule_policy"`

	// SymmetryReduction prunes executions that differ from an
	// already explored one only by swapping identical threads.
	SymmetryReduction bool `yaml:"symmetry_reduction"`

	// Estimate samples random executions to estimate the size of
	// the exploration instead of exploring it.
	Estimate      bool `yaml:"estimate"`
	EstimationMax int  `yaml:"estimation_max"`

	LogLevel LogLevel `yaml:"log_level"`
	Seed     int64    `yaml:"seed"`

	// Budgets. Zero means unlimited for MaxExecutions.
	MaxExecutions int `yaml:"max_executions"`
	MaxSteps      int `yaml:"max_steps"`
	MaxDepth      int `yaml:"max_depth"`

	StopOnError           bool `yaml:"stop_on_error"`
	StrictInit            bool `yaml:"strict_init"`
	ModelSpuriousFailures bool `yaml:"model_spurious_failures"`

	PrintGraphs             bool `yaml:"print_graphs"`
	PrintRandomScheduleSeed bool `yaml:"print_random_schedule_seed"`

	// Workers is the number of branches explored in parallel.
	Workers int `yaml:"workers"`

	// WarnOnGraphSize logs a warning once an execution graph has
	// this many events. Zero disables the warning.
	WarnOnGraphSize int `yaml:"warn_on_graph_size"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Model:                 RC11,
		SchedulePolicy:        Arbitrary,
		EstimationMax:         1000,
		LogLevel:              Info,
		Seed:                  42,
		MaxSteps:              10000,
		MaxDepth:              1000,
		ModelSpuriousFailures: true,
		Workers:               1,
		WarnOnGraphSize:       16384,
	}
}

// Load reads a YAML configuration file on top of the defaults and
// validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses YAML configuration data on top of the defaults and
// validates it. Unknown keys are an error.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports unsupported settings and combinations as a
// *failure.ConfigError.
func (c *Config) Validate() error {
	switch c.Model {
	case RC11, SC:
	default:
		return &failure.ConfigError{Field: "model", Detail: fmt.Sprintf("unknown memory model %q", c.Model)}
	}
	switch c.SchedulePolicy {
	case Arbitrary, LTR, WritesFirst, Random:
	default:
		return &failure.ConfigError{Field: "schedule_policy", Detail: fmt.Sprintf("unknown policy %q", c.SchedulePolicy)}
	}
	switch c.LogLevel {
	case Quiet, Info, Trace:
	default:
		return &failure.ConfigError{Field: "log_level", Detail: fmt.Sprintf("unknown level %q", c.LogLevel)}
	}
	if c.SymmetryReduction && c.SchedulePolicy != Arbitrary {
		return &failure.ConfigError{Field: "symmetry_reduction", Detail: fmt.Sprintf("requires schedule policy %q, not %q", Arbitrary, c.SchedulePolicy)}
	}
	if c.Estimate && c.EstimationMax <= 0 {
		return &failure.ConfigError{Field: "estimation_max", Detail: "must be positive in estimation mode"}
	}
	if c.Estimate && c.Workers > 1 {
		return &failure.ConfigError{Field: "workers", Detail: "estimation mode runs on one worker"}
	}
	if c.Workers < 1 {
		return &failure.ConfigError{Field: "workers", Detail: "must be at least 1"}
	}
	if c.MaxExecutions < 0 || c.MaxSteps < 0 || c.MaxDepth < 0 {
		return &failure.ConfigError{Field: "budget", Detail: "limits must not be negative"}
	}
	return nil
}
