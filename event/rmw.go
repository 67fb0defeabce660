// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package event

import "fmt"

// RMWOp is the operation of an atomic read-modify-write.
type RMWOp uint8

const (
	Xchg RMWOp = iota
	Add
	Sub
	And
	Nand
	Or
	Xor
	Max
	Min
	UMax
	UMin
)

var rmwNames = [...]string{"xchg", "add", "sub", "and", "nand", "or", "xor", "max", "min", "umax", "umin"}

func (op RMWOp) String() string {
	if int(op) < len(rmwNames) {
		return rmwNames[op]
	}
	return fmt.Sprintf("RMWOp(%d)", op)
}

// ParseRMWOp parses the names printed by RMWOp.String.
func ParseRMWOp(s string) (RMWOp, error) {
	for i, name := range rmwNames {
		if name == s {
			return RMWOp(i), nil
		}
	}
	return 0, fmt.Errorf("unknown read-modify-write operation %q", s)
}

// Apply computes the value stored by op given the old value and the
// operand. The result wraps to size bytes. Max and Min compare signed
// values of that width.
func (op RMWOp) Apply(old, rhs Scalar, size int) Scalar {
	a, b := truncate(old.Value, size), truncate(rhs.Value, size)
	var v uint64
	switch op {
	case Xchg:
		return Scalar{Value: b, Extra: rhs.Extra}
	case Add:
		v = a + b
	case Sub:
		v = a - b
	case And:
		v = a & b
	case Nand:
		v = ^(a & b)
	case Or:
		v = a | b
	case Xor:
		v = a ^ b
	case Max:
		if signExtend(a, size) >= signExtend(b, size) {
			v = a
		} else {
			v = b
		}
	case Min:
		if signExtend(a, size) <= signExtend(b, size) {
			v = a
		} else {
			v = b
		}
	case UMax:
		v = max(a, b)
	case UMin:
		v = min(a, b)
	default:
		panic(fmt.Sprintf("bad RMWOp %d", op))
	}
	// Arithmetic on a pointer keeps its provenance.
	return Scalar{Value: truncate(v, size), Extra: old.Extra}
}
