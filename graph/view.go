// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aclements/weavemc/event"
)

// A VectorClock maps each thread to the index of its latest event
// that happens-before some point.
type VectorClock []int

func (vc VectorClock) Get(tid event.ThreadID) int {
	if int(tid) < len(vc) {
		return vc[tid]
	}
	return 0
}

func (vc *VectorClock) Set(tid event.ThreadID, n int) {
	for int(tid) >= len(*vc) {
		*vc = append(*vc, 0)
	}
	(*vc)[tid] = n
}

// Join sets vc to the pointwise maximum of vc and o.
func (vc *VectorClock) Join(o VectorClock) {
	for tid, n := range o {
		if n > vc.Get(event.ThreadID(tid)) {
			vc.Set(event.ThreadID(tid), n)
		}
	}
}

func (vc VectorClock) Clone() VectorClock {
	return append(VectorClock(nil), vc...)
}

// Contains reports whether e happens-before (or is) the point vc
// describes. Init is contained in every clock.
func (vc VectorClock) Contains(e event.Event) bool {
	return e.IsInit() || e.Index <= vc.Get(e.Thread)
}

func (vc VectorClock) String() string {
	var parts []string
	for tid, n := range vc {
		if n != 0 {
			parts = append(parts, fmt.Sprintf("%d:%d", tid, n))
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// A View is what a thread knows at some point: the events that
// happen-before it, and for each address the coherence-latest write
// it has observed. It may not read or overwrite anything coherence
// before that write.
type View struct {
	Clock VectorClock
	Co    map[uint64]event.Event
}

func (v *View) Clone() View {
	co := make(map[uint64]event.Event, len(v.Co))
	for addr, w := range v.Co {
		co[addr] = w
	}
	return View{Clock: v.Clock.Clone(), Co: co}
}

// Observed returns the latest write to addr in v.
func (v *View) Observed(addr uint64) event.Event {
	if w, ok := v.Co[addr]; ok {
		return w
	}
	return event.Init
}

func (v *View) String() string {
	addrs := make([]uint64, 0, len(v.Co))
	for addr := range v.Co {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	var parts []string
	for _, addr := range addrs {
		parts = append(parts, fmt.Sprintf("%#x:%s", addr, v.Co[addr]))
	}
	return v.Clock.String() + " [" + strings.Join(parts, " ") + "]"
}

// observe records that a thread with view v saw write w to addr.
func (g *Graph) observe(v *View, addr uint64, w event.Event) {
	if v.Co == nil {
		v.Co = make(map[uint64]event.Event)
	}
	cur, ok := v.Co[addr]
	if !ok || g.CoPos(addr, w) > g.CoPos(addr, cur) {
		v.Co[addr] = w
	}
}

// join merges src into dst.
func (g *Graph) join(dst, src *View) {
	if src == nil {
		return
	}
	dst.Clock.Join(src.Clock)
	for addr, w := range src.Co {
		g.observe(dst, addr, w)
	}
}
