// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"io"
	"log/slog"
)

// Level returns the slog level for l. Trace logs every event.
func (l LogLevel) Level() slog.Level {
	switch l {
	case Quiet:
		return slog.LevelError
	case Trace:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Logger returns a text logger writing to w at c's log level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel.Level()}))
}
