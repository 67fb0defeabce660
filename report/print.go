// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aclements/go-gg/table"
	"github.com/aclements/weavemc/failure"
	"github.com/fatih/color"
)

var bugColor = map[failure.Category]*color.Color{
	failure.ConsistencyViolation: color.New(color.FgHiRed),
	failure.UsageError:           color.New(color.FgHiYellow),
	failure.Safety:               color.New(color.FgHiMagenta),
}

var (
	okColor   = color.New(color.FgHiGreen)
	noteColor = color.New(color.FgHiBlue)
)

// Fprint writes a human-readable summary of r to w.
func Fprint(w io.Writer, r *Result) {
	if r.Estimate != nil {
		fprintEstimate(w, r)
		return
	}

	for i, b := range r.Bugs {
		c := bugColor[b.Category()]
		c.Fprintf(w, "Error %d: %s\n", i+1, b.Error())
		if len(b.Path) > 0 {
			fmt.Fprintf(w, "  replay with --path %s\n", FormatPath(b.Path))
		}
	}
	if len(r.Bugs) == 0 {
		if r.Exhausted {
			okColor.Fprintf(w, "Verification complete. No errors were detected.\n")
		} else {
			noteColor.Fprintf(w, "Exploration stopped early. No errors were detected so far.\n")
		}
	}

	fmt.Fprintf(w, "Number of complete executions explored: %d\n", r.Complete)
	if r.Blocked > 0 {
		fmt.Fprintf(w, "Number of blocked executions seen: %d\n", r.Blocked)
	}

	tab := new(table.Builder).
		Add("outcome", []string{"complete", "distinct", "blocked", "moot", "buggy"}).
		Add("executions", []int{r.Complete, r.Distinct(), r.Blocked, r.Moot, r.Buggy}).
		Done()
	table.Fprint(w, tab)
	fmt.Fprintf(w, "run %s (%s, %s) took %s\n", r.RunID, r.Mode, r.Model, r.Elapsed.Round(time.Millisecond))
}

func fprintEstimate(w io.Writer, r *Result) {
	e := r.Estimate
	fmt.Fprintf(w, "Finished estimation in %s\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Total executions estimate: %.0f (+- %.0f)\n", e.Mean, e.StdDev)
	fmt.Fprintf(w, "Time to completion estimate: %s\n", e.TimeToCompletion.Round(time.Millisecond))
	for i, b := range r.Bugs {
		bugColor[b.Category()].Fprintf(w, "Error %d (while sampling): %s\n", i+1, b.Error())
	}
}

// FormatPath formats a choice path as accepted by ParsePath.
func FormatPath(path []int) string {
	parts := make([]string, len(path))
	for i, x := range path {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ",")
}

// ParsePath parses a comma-separated choice path.
func ParsePath(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var path []int
	for _, part := range strings.Split(s, ",") {
		var x int
		if _, err := fmt.Sscan(strings.TrimSpace(part), &x); err != nil || x < 0 {
			return nil, fmt.Errorf("bad path element %q", part)
		}
		path = append(path, x)
	}
	return path, nil
}
