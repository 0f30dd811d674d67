// Package steiner ports the Greedy FLAC (flow-augmented construction)
// directed Steiner tree approximation spec.md §5 describes: given the
// weighted operation graph, the root, and a set of terminal nodes, grow a
// minimum-weight arborescence connecting every terminal back to the root.
//
// Grounded directly on
// original_source/crates/engine/query-solver/src/solve/steiner_tree/greedy_flac.rs
// — this is a line-for-line algorithmic port (the flow bookkeeping, the
// decrease-key priority queue, the degenerate-flow check, the reverse
// traversal that attaches newly saturated nodes to the tree) rather than a
// fresh design, since spec.md §9 asks for the same approximation guarantee
// and the Rust source is the one unambiguous reference for its tie-breaks.
package steiner

import (
	"github.com/n9te9/federation-query-planner/internal/bitset"
	"github.com/n9te9/federation-query-planner/opgraph"
)

// Tree is the partial (and, once Run returns, final) Steiner tree: the set
// of graph nodes and edges selected so far, plus the terminals it must
// reach and the accumulated edge weight.
type Tree struct {
	Nodes       *bitset.Set // node index -> in tree
	Edges       *bitset.Set // edge index -> in tree
	Terminals   []opgraph.NodeID
	TotalWeight int
}

// NewTree seeds a tree containing only root, ready for Solver.Run.
func NewTree(root opgraph.NodeID, terminals []opgraph.NodeID, g *opgraph.Graph) *Tree {
	t := &Tree{
		Nodes:     bitset.New(len(g.Nodes)),
		Edges:     bitset.New(len(g.Edges)),
		Terminals: terminals,
	}
	t.Nodes.Insert(int(root))
	return t
}

func (t *Tree) addEdge(g *opgraph.Graph, edge int) {
	if t.Edges.Contains(edge) {
		return
	}
	t.Edges.Insert(edge)
	t.TotalWeight += g.Edges[edge].Weight
}
