// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"fmt"

	"github.com/aclements/weavemc/event"
	"github.com/cespare/xxhash/v2"
)

// Signature returns a fingerprint of g's program order, reads-from and
// coherence. Two executions that differ only in the interleaving that
// produced them have the same signature.
func (g *Graph) Signature() uint64 {
	d := xxhash.New()
	for tid, nodes := range g.nodes {
		fmt.Fprintf(d, "T%d\n", tid)
		for _, n := range nodes {
			fmt.Fprintf(d, "%s=%s", n.Label, n.Value)
			if n.Label.Kind() == event.Load {
				fmt.Fprintf(d, "<%s", n.RF)
			}
			d.WriteString("\n")
		}
	}
	for _, addr := range g.Addrs() {
		fmt.Fprintf(d, "co %#x %v\n", addr, g.co[addr])
	}
	return d.Sum64()
}
