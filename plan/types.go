// Package plan assembles the partitioner's output into the final DAG the
// planner hands back to a caller: plan records, their dependency edges, the
// deduplicated modifier tables, and the invariants spec.md §6/§7 require of
// that shape (acyclic, a child's input selection is covered by its
// parent's selection, root plans run concurrently).
//
// Grounded on the teacher's planner.PlannerV2.Plan/PlanV2 return shape
// (federation/planner/planner_v2.go), generalised from its FetchStep tree
// to the flat plan-record-plus-edge-list arena spec.md §6 calls for.
package plan

import (
	"github.com/n9te9/federation-query-planner/partition"
	"github.com/n9te9/federation-query-planner/schema"
)

// Plan is the complete, validated query plan for one operation.
type Plan struct {
	Records []partition.PlanRecord
	Edges   []partition.ParentToChildEdge
	Roots   []partition.PlanRecordID

	Modifiers *partition.ModifierTable
}

// ChildrenOf returns the plan record ids that depend on parent's output,
// in ascending id order (Edges is kept sorted by (ParentID, ChildID)).
func (p *Plan) ChildrenOf(parent partition.PlanRecordID) []partition.PlanRecordID {
	var out []partition.PlanRecordID
	for _, e := range p.Edges {
		if e.ParentID == parent {
			out = append(out, e.ChildID)
		}
	}
	return out
}

// Subgraphs returns the distinct subgraphs this plan issues requests to,
// sorted.
func (p *Plan) Subgraphs() []schema.SubgraphID {
	seen := map[schema.SubgraphID]bool{}
	var out []schema.SubgraphID
	for _, r := range p.Records {
		if !seen[r.Subgraph] {
			seen[r.Subgraph] = true
			out = append(out, r.Subgraph)
		}
	}
	return schema.SortSubgraphIDs(out)
}
