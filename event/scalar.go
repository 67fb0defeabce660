// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package event

import "fmt"

// A Scalar is a value moved by a memory access. Extra carries pointer
// provenance and is otherwise zero.
type Scalar struct {
	Value  uint64
	Extra  uint64
	Uninit bool
}

// Placeholder values returned for reads of initial memory that the
// interpreter could not supply.
const (
	// NoInitPlaceholder is read when no initial value was given.
	NoInitPlaceholder = 0xCC00CC00
	// UninitPlaceholder is read when the initial memory was
	// uninitialized.
	UninitPlaceholder = 0xFF00FF00
	// Dummy is the value used where any value will do.
	Dummy = 0xDEADBEEF
)

// Mutex word values.
const (
	MutexUnlocked = 0
	MutexLocked   = 1
)

// Uninitialized is the scalar of uninitialized memory.
var Uninitialized = Scalar{Uninit: true}

// Val returns an initialized scalar holding v.
func Val(v uint64) Scalar {
	return Scalar{Value: v}
}

// Ptr returns a scalar holding address v with provenance base.
func Ptr(v, base uint64) Scalar {
	return Scalar{Value: v, Extra: base}
}

func (s Scalar) String() string {
	switch {
	case s.Uninit:
		return "uninit"
	case s.Extra != 0:
		return fmt.Sprintf("%#x[%#x]", s.Value, s.Extra)
	}
	return fmt.Sprint(s.Value)
}

// Equal compares values. Provenance is not part of the comparison, the
// same as a compare-exchange on the machine.
func (s Scalar) Equal(o Scalar) bool {
	return s.Uninit == o.Uninit && s.Value == o.Value
}

// truncate wraps v to size bytes.
func truncate(v uint64, size int) uint64 {
	if size >= 8 || size <= 0 {
		return v
	}
	return v & (1<<(8*uint(size)) - 1)
}

// signExtend interprets the low size bytes of v as a signed integer.
func signExtend(v uint64, size int) int64 {
	if size >= 8 || size <= 0 {
		return int64(v)
	}
	shift := 64 - 8*uint(size)
	return int64(v<<shift) >> shift
}
