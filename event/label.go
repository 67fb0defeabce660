// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package event

import "fmt"

// A Label describes what an event does.
type Label interface {
	// Kind reports whether the label reads memory.
	Kind() ActionKind
	String() string
}

// A MemoryLabel is a Label that accesses memory.
type MemoryLabel interface {
	Label
	Location() Loc
	Ordering() Ordering
}

// A Loc is a range of bytes in memory.
type Loc struct {
	Addr uint64
	Size int
}

// Overlaps reports whether l and m share a byte.
func (l Loc) Overlaps(m Loc) bool {
	return l.Addr < m.Addr+uint64(m.Size) && m.Addr < l.Addr+uint64(l.Size)
}

func (l Loc) String() string {
	return fmt.Sprintf("%#x/%d", l.Addr, l.Size)
}

// ReadKind distinguishes plain loads from the read halves of atomic
// updates.
type ReadKind uint8

const (
	PlainRead ReadKind = iota
	RMWRead
	CASRead
	LockRead
	TrylockRead
)

// WriteKind distinguishes plain stores from the write halves of atomic
// updates.
type WriteKind uint8

const (
	PlainWrite WriteKind = iota
	RMWWrite
	CASWrite
	LockWrite
	TrylockWrite
	UnlockWrite
)

// Exclusive reports whether the write is the second half of an atomic
// read-modify-write and so must immediately follow its source in
// coherence order.
func (k WriteKind) Exclusive() bool {
	return k == RMWWrite || k == CASWrite || k == LockWrite || k == TrylockWrite
}

// Read is a load, or the read half of an RMW, CAS or lock acquire.
type Read struct {
	Loc     Loc
	Ord     Ordering
	Type    ReadKind
	Op      RMWOp  // RMWRead
	Operand Scalar // RMWRead operand, or CASRead expected value
}

func (*Read) Kind() ActionKind     { return Load }
func (r *Read) Location() Loc      { return r.Loc }
func (r *Read) Ordering() Ordering { return r.Ord }

func (r *Read) String() string {
	switch r.Type {
	case RMWRead:
		return fmt.Sprintf("R%s.%s %s %s", r.Ord, r.Op, r.Loc, r.Operand)
	case CASRead:
		return fmt.Sprintf("R%s.cas %s ?%s", r.Ord, r.Loc, r.Operand)
	case LockRead:
		return fmt.Sprintf("R%s.lock %s", r.Ord, r.Loc)
	case TrylockRead:
		return fmt.Sprintf("R%s.trylock %s", r.Ord, r.Loc)
	}
	return fmt.Sprintf("R%s %s", r.Ord, r.Loc)
}

// Write is a store, or the write half of an RMW, CAS, lock acquire or
// unlock.
type Write struct {
	Loc   Loc
	Ord   Ordering
	Type  WriteKind
	Value Scalar
}

func (*Write) Kind() ActionKind     { return NonLoad }
func (w *Write) Location() Loc      { return w.Loc }
func (w *Write) Ordering() Ordering { return w.Ord }

func (w *Write) String() string {
	suffix := ""
	switch w.Type {
	case RMWWrite:
		suffix = ".rmw"
	case CASWrite:
		suffix = ".cas"
	case LockWrite:
		suffix = ".lock"
	case TrylockWrite:
		suffix = ".trylock"
	case UnlockWrite:
		suffix = ".unlock"
	}
	return fmt.Sprintf("W%s%s %s = %s", w.Ord, suffix, w.Loc, w.Value)
}

type Fence struct {
	Ord Ordering
}

func (*Fence) Kind() ActionKind { return NonLoad }
func (f *Fence) String() string { return "F" + f.Ord.String() }

// Malloc allocates Size bytes. The graph fills in Addr.
type Malloc struct {
	Addr  uint64
	Size  int
	Align int
}

func (*Malloc) Kind() ActionKind { return NonLoad }
func (m *Malloc) String() string {
	return fmt.Sprintf("malloc %#x/%d", m.Addr, m.Size)
}

type Free struct {
	Addr uint64
	Size int
}

func (*Free) Kind() ActionKind { return NonLoad }
func (f *Free) String() string {
	return fmt.Sprintf("free %#x/%d", f.Addr, f.Size)
}

// ThreadCreate starts thread Child. Threads created by the same parent
// with the same SymKey run the same code.
type ThreadCreate struct {
	Child  ThreadID
	SymKey string
}

func (*ThreadCreate) Kind() ActionKind { return NonLoad }
func (c *ThreadCreate) String() string {
	return fmt.Sprintf("create T%d", c.Child)
}

type ThreadJoin struct {
	Child ThreadID
}

func (*ThreadJoin) Kind() ActionKind { return NonLoad }
func (j *ThreadJoin) String() string {
	return fmt.Sprintf("join T%d", j.Child)
}

type ThreadFinish struct {
	Ret uint64
}

func (*ThreadFinish) Kind() ActionKind { return NonLoad }
func (f *ThreadFinish) String() string {
	return fmt.Sprintf("finish %d", f.Ret)
}

// Block records that a thread blocked itself permanently. Threads
// waiting on a mutex or a join record nothing and retry instead.
type Block struct{}

func (*Block) Kind() ActionKind { return NonLoad }
func (*Block) String() string   { return "block" }

// An Action is a labeled event. Actions are immutable once added to a
// graph.
type Action struct {
	Pos   Event
	Label Label
}

func (a Action) String() string {
	return a.Pos.String() + " " + a.Label.String()
}
