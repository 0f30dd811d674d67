// Package opgraph builds the weighted operation graph spec.md §3/§4.2
// describes: a directed multigraph whose nodes are "query fields x
// providable resolvers" and whose edges record how the operation's fields
// can be routed into subgraphs, including the extra nodes needed to satisfy
// @requires/@authorized(fields:)/@lookup(@is) cross-subgraph dependencies.
//
// Grounded on the teacher's federation/graph.WeightedDirectedGraph (arena
// of nodes keyed by string id, adjacency via map[string]int) generalised
// to the tagged-node/tagged-edge model spec.md §3 names, and on
// federation/planner.PlannerV2.findAndBuildEntitySteps for the
// same-subgraph-continuation / boundary-field decision procedure.
package opgraph

import "github.com/n9te9/federation-query-planner/schema"
import "github.com/n9te9/federation-query-planner/operation"

// NodeKind tags the four node variants spec.md §3 names.
type NodeKind uint8

const (
	RootNode NodeKind = iota
	QueryFieldNode
	ResolverNode
	ProvidableFieldNode
)

// FieldFlags is the bitset described in spec.md §3.
type FieldFlags uint8

const (
	FlagIndispensable FieldFlags = 1 << iota
	FlagExtra
	FlagLeafNode
	FlagIsCompositeType
	FlagTypename
)

func (f FieldFlags) Has(bit FieldFlags) bool { return f&bit != 0 }

// NodeID is a dense index into Graph.Nodes.
type NodeID int

const NoNode NodeID = -1

// Node is the tagged union of the four node kinds. Only the fields
// relevant to Kind are meaningful; this mirrors the teacher's single
// GraphNode struct carrying optional fields rather than a Go interface,
// which would make exhaustive switch-matching (spec.md §9) harder to read.
type Node struct {
	Kind NodeKind

	// QueryFieldNode. OperationField is the originating operation.FieldID,
	// or operation.NoField-equivalent (-1) for EXTRA fields the builder
	// injected to satisfy a requirement rather than ones the caller wrote.
	OperationField      operation.FieldID
	SchemaField         schema.FieldID // schema.NoField for __typename
	ResponseKey         string
	ParentEntity        schema.EntityID
	Arguments           []operation.Argument
	TypeCondition       string
	MatchingRequirement int // requirement id this query field was created to satisfy, or -1
	Flags               FieldFlags

	// ResolverNode
	ResolverEntity  schema.EntityID
	ResolverField   schema.FieldID // schema.NoField for a plain key-based entity resolver
	ResolverGraph   schema.SubgraphID

	// ProvidableFieldNode
	Subgraph       schema.SubgraphID
	Field          schema.FieldID
	Provides       schema.FieldSet
	OnlyProvidable bool // true if reachable only via a parent's @provides tree, cannot originate new resolvers
}

// EdgeKind tags the seven edge variants spec.md §3 names.
type EdgeKind uint8

const (
	EdgeField EdgeKind = iota
	EdgeProvides
	EdgeCreateChildResolver
	EdgeHasChildResolver
	EdgeCanProvide
	EdgeRequires
	EdgeTypenameField
)

// Edge is a directed edge with an integer weight used by the Steiner
// solver (0 for same-subgraph / shortcut edges, 1 for a resolver switch,
// per spec.md §9's weighted-graph design).
type Edge struct {
	From, To NodeID
	Kind     EdgeKind
	Weight   int
}

// Graph is the frozen operation graph consumed by the Steiner solver and
// the partitioner. It is built once (Build), then treated as read-only.
type Graph struct {
	Nodes []Node
	Edges []Edge

	Root NodeID

	// Terminals are the indispensable query-field node ids (spec.md §3's
	// SteinerInput.terminals): the Steiner solver must connect each of
	// these to Root.
	Terminals []NodeID

	out [][]int // node -> edge indices leaving it
	in  [][]int // node -> edge indices entering it
}

func newGraph() *Graph {
	return &Graph{}
}

func (g *Graph) addNode(n Node) NodeID {
	id := NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, n)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return id
}

func (g *Graph) addEdge(from, to NodeID, kind EdgeKind, weight int) int {
	idx := len(g.Edges)
	g.Edges = append(g.Edges, Edge{From: from, To: to, Kind: kind, Weight: weight})
	g.out[from] = append(g.out[from], idx)
	g.in[to] = append(g.in[to], idx)
	return idx
}

// OutEdges returns the indices of edges leaving n.
func (g *Graph) OutEdges(n NodeID) []int { return g.out[n] }

// InEdges returns the indices of edges entering n.
func (g *Graph) InEdges(n NodeID) []int { return g.in[n] }

// removeEdge marks an edge as removed by zeroing its endpoints into a
// sentinel; callers filter on Kind/From/To so we keep indices stable
// (edges are referenced by index elsewhere, e.g. Steiner tree bitsets).
func (g *Graph) removeEdge(idx int) {
	e := &g.Edges[idx]
	g.out[e.From] = removeInt(g.out[e.From], idx)
	g.in[e.To] = removeInt(g.in[e.To], idx)
	e.From, e.To = NoNode, NoNode
}

func removeInt(s []int, v int) []int {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// removeNode detaches a node: removes every edge touching it. The node's
// slot is left in place (ids stay stable) but becomes unreachable.
func (g *Graph) removeNode(n NodeID) {
	for _, idx := range append([]int{}, g.out[n]...) {
		g.removeEdge(idx)
	}
	for _, idx := range append([]int{}, g.in[n]...) {
		g.removeEdge(idx)
	}
}
