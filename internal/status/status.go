// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package status displays a live progress line while exploring.
package status

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh/terminal"
)

// A Reporter shows a status line. Writes to a Reporter appear above
// the status line.
type Reporter interface {
	io.Writer
	Start()
	Status(format string, a ...interface{})
	Stop()
}

// New returns a Reporter for f. If f is not a terminal, status
// updates are printed one per line.
func New(f *os.File) Reporter {
	if os.Getenv("TERM") == "" || os.Getenv("TERM") == "dumb" || !terminal.IsTerminal(int(f.Fd())) {
		return &Dumb{W: f}
	}
	return &VT100{W: f}
}

// Discard is a Reporter that drops status updates and output.
var Discard Reporter = &Dumb{W: io.Discard}

// Dumb prints each status update on its own line.
type Dumb struct {
	W io.Writer
}

func (r *Dumb) Start() {}
func (r *Dumb) Stop()  {}
func (r *Dumb) Status(format string, a ...interface{}) {
	fmt.Fprintf(r.W, format, a...)
	r.W.Write([]byte{'\n'})
}
func (r *Dumb) Write(data []byte) (int, error) {
	return r.W.Write(data)
}

// VT100 keeps the latest status on the last line of a terminal,
// prefixed by the time since Start and followed by a spinner.
type VT100 struct {
	W io.Writer

	mu    sync.Mutex
	line  string
	start time.Time
	spin  int

	stop chan struct{}
	done chan struct{}
}

const (
	resetLine = "\r\x1b[2K"
	wrapOff   = "\x1b[?7l"
	moveEOL   = "\x1b[999C"
	wrapOn    = "\x1b[?7h"
)

// redraw is how often the spinner turns.
const redraw = time.Second / 4

func (r *VT100) Start() {
	r.start = time.Now()
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.run()
}

func (r *VT100) Stop() {
	close(r.stop)
	<-r.done
}

// Status replaces the status line. It never blocks, so callers may
// report from the exploration loop directly.
func (r *VT100) Status(format string, a ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.line = fmt.Sprintf(format, a...)
}

func (r *VT100) Write(data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.W, resetLine+wrapOn)
	n, err := r.W.Write(data)
	r.draw()
	return n, err
}

// draw repaints the status line. r.mu must be held.
func (r *VT100) draw() {
	const spinner = "-\\|/"
	elapsed := time.Since(r.start).Round(time.Second)
	fmt.Fprintf(r.W, "%s%s[%s] %s%s%c", resetLine, wrapOff, elapsed, r.line, moveEOL, spinner[r.spin%len(spinner)])
}

func (r *VT100) run() {
	defer close(r.done)
	tick := time.NewTicker(redraw)
	defer tick.Stop()
	for {
		r.mu.Lock()
		r.draw()
		r.mu.Unlock()
		select {
		case <-tick.C:
			r.mu.Lock()
			r.spin++
			r.mu.Unlock()
		case <-r.stop:
			// Leave the final status on screen.
			r.mu.Lock()
			fmt.Fprintf(r.W, "%s%s%s\n", resetLine, r.line, wrapOn)
			r.mu.Unlock()
			return
		}
	}
}

// Throttle limits how often a status line is produced.
type Throttle struct {
	Every time.Duration
	last  time.Time
}

// Ready reports whether at least Every has passed since the last time
// Ready returned true.
func (t *Throttle) Ready() bool {
	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.Every {
		return false
	}
	t.last = now
	return true
}
