// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"fmt"

	"github.com/aclements/weavemc/event"
)

// InitValues caches the initial contents of memory across executions.
// Each address is set at most once. Setting a different value for the
// same address means the program is not deterministic, and panics.
type InitValues struct {
	vals map[uint64]event.Scalar
}

func NewInitValues() *InitValues {
	return &InitValues{vals: make(map[uint64]event.Scalar)}
}

func (iv *InitValues) Set(addr uint64, v event.Scalar) {
	if old, ok := iv.vals[addr]; ok {
		if old != v {
			panic(fmt.Sprintf("initial value of %#x changed from %s to %s", addr, old, v))
		}
		return
	}
	iv.vals[addr] = v
}

func (iv *InitValues) Get(addr uint64) (event.Scalar, bool) {
	v, ok := iv.vals[addr]
	return v, ok
}

func (iv *InitValues) Len() int {
	return len(iv.vals)
}

// InitStatus describes where the value of a read from Init came from.
type InitStatus uint8

const (
	// InitKnown means the value was supplied by the interpreter.
	InitKnown InitStatus = iota
	// InitMissing means no value was supplied and the read
	// returned event.NoInitPlaceholder.
	InitMissing
	// InitUninit means the memory was uninitialized and the read
	// returned event.UninitPlaceholder.
	InitUninit
)

// InitValue returns the initial value of addr, substituting a
// placeholder when it is not known.
func (g *Graph) InitValue(addr uint64) (event.Scalar, InitStatus) {
	v, ok := g.init.Get(addr)
	switch {
	case !ok:
		return event.Val(event.NoInitPlaceholder), InitMissing
	case v.Uninit:
		return event.Val(event.UninitPlaceholder), InitUninit
	}
	return v, InitKnown
}
