// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"bufio"
	"fmt"
	"io"

	"github.com/aclements/weavemc/event"
)

func dotName(ev event.Event) string {
	if ev.IsInit() {
		return "init"
	}
	return fmt.Sprintf("t%d_%d", ev.Thread, ev.Index)
}

// WriteDot writes g in Graphviz dot syntax. Program order is drawn in
// black, reads-from in green and coherence in red.
func (g *Graph) WriteDot(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph G {\n")
	fmt.Fprintf(bw, "init [label=\"init\", shape=box];\n")
	for tid, nodes := range g.nodes {
		fmt.Fprintf(bw, "subgraph cluster_t%d {\n", tid)
		fmt.Fprintf(bw, "label=\"T%d\";\n", tid)
		for _, n := range nodes {
			label := n.Label.String()
			if _, ok := n.Label.(*event.Read); ok {
				label += " -> " + n.Value.String()
			}
			fmt.Fprintf(bw, "%s [label=%q];\n", dotName(n.Pos), label)
		}
		for i := 1; i < len(nodes); i++ {
			fmt.Fprintf(bw, "%s -> %s;\n", dotName(nodes[i-1].Pos), dotName(nodes[i].Pos))
		}
		fmt.Fprintf(bw, "}\n")
		if parent := g.threads[tid].parent; !parent.IsInit() && len(nodes) > 0 {
			fmt.Fprintf(bw, "%s -> %s [style=dashed];\n", dotName(parent), dotName(nodes[0].Pos))
		}
	}
	for _, nodes := range g.nodes {
		for _, n := range nodes {
			if _, ok := n.Label.(*event.Read); ok {
				fmt.Fprintf(bw, "%s -> %s [color=green, label=\"rf\"];\n", dotName(n.RF), dotName(n.Pos))
			}
		}
	}
	for _, addr := range g.Addrs() {
		prev := event.Init
		for _, w := range g.co[addr] {
			fmt.Fprintf(bw, "%s -> %s [color=red, label=\"co\"];\n", dotName(prev), dotName(w))
			prev = w
		}
	}
	fmt.Fprintf(bw, "}\n")
	return bw.Flush()
}
