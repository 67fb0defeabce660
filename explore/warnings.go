// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package explore

import "log/slog"

// warnings logs each kind of warning once per exploration.
type warnings struct {
	log  *slog.Logger
	seen map[string]bool
}

func newWarnings(log *slog.Logger) *warnings {
	return &warnings{log: log, seen: make(map[string]bool)}
}

func (w *warnings) once(key, msg string, args ...any) {
	if w.seen[key] {
		return
	}
	w.seen[key] = true
	w.log.Warn(msg, args...)
}
