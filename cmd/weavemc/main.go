// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command weavemc explores every execution of a litmus program under
// the RC11 or SC memory model and reports the bugs it finds.
//
// Usage:
//
//	weavemc run [flags] file.litmus
//	weavemc estimate [flags] file.litmus
//	weavemc replay --path 0,1,0 [flags] file.litmus
//	weavemc graph [--path 0,1,0] [flags] file.litmus
//
// Settings come from the defaults, then the YAML file named by
// --config, then command-line flags.
//
// weavemc exits with status 1 if it found a bug and 2 if the
// configuration is invalid.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/aclements/weavemc/failure"
)

// errBugs reports that the exploration found bugs. The bugs themselves
// have already been printed.
var errBugs = errors.New("bugs found")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	code := exitCode(err)
	if code != 0 && !errors.Is(err, errBugs) {
		fmt.Fprintf(os.Stderr, "weavemc: %v\n", err)
	}
	stop()
	os.Exit(code)
}

func exitCode(err error) int {
	var ce *failure.ConfigError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errBugs):
		return 1
	case errors.As(err, &ce):
		return 2
	}
	return 1
}
