// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"sort"

	"github.com/aclements/weavemc/event"
)

const (
	// HeapBase is the first address handed out by Malloc.
	HeapBase = 0x10000

	// GlobalMask marks addresses of static memory. Addresses below
	// HeapBase are static too.
	GlobalMask = 1 << 63
)

// IsHeap reports whether addr may belong to an allocation.
func IsHeap(addr uint64) bool {
	return addr >= HeapBase && addr&GlobalMask == 0
}

// A Block is one allocation.
type Block struct {
	Addr  uint64
	Size  int
	Alloc event.Event
	Free  event.Event // valid if Freed
	Freed bool
}

func (b *Block) Contains(addr uint64) bool {
	return b.Addr <= addr && addr < b.Addr+uint64(b.Size)
}

// An Allocator hands out heap addresses deterministically, so that
// replaying an execution allocates the same addresses.
type Allocator struct {
	next   uint64
	blocks []*Block // sorted by Addr
}

// Alloc reserves size bytes aligned to align. Blocks are separated by
// at least one byte, so a one-past-the-end pointer never points into
// the next block.
func (a *Allocator) Alloc(size, align int, ev event.Event) *Block {
	if a.next == 0 {
		a.next = HeapBase
	}
	if align <= 0 {
		align = 8
	}
	addr := (a.next + uint64(align) - 1) &^ (uint64(align) - 1)
	b := &Block{Addr: addr, Size: size, Alloc: ev}
	a.blocks = append(a.blocks, b)
	a.next = addr + uint64(size) + 1
	return b
}

// Lookup returns the block containing addr, freed or not.
func (a *Allocator) Lookup(addr uint64) *Block {
	i := sort.Search(len(a.blocks), func(i int) bool {
		return a.blocks[i].Addr+uint64(a.blocks[i].Size) > addr
	})
	if i < len(a.blocks) && a.blocks[i].Contains(addr) {
		return a.blocks[i]
	}
	return nil
}

// Exact returns the block that starts at addr.
func (a *Allocator) Exact(addr uint64) *Block {
	if b := a.Lookup(addr); b != nil && b.Addr == addr {
		return b
	}
	return nil
}

// Live returns the number of blocks not yet freed.
func (a *Allocator) Live() int {
	n := 0
	for _, b := range a.blocks {
		if !b.Freed {
			n++
		}
	}
	return n
}

func (a *Allocator) Blocks() []*Block {
	return a.blocks
}
