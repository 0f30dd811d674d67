// Package partition groups the nodes a solved Steiner tree selected into
// per-subgraph plan records (spec.md §6) and allocates the query/response
// modifier tables those records need to carry authorization and extension
// directives through execution.
//
// Grounded on
// original_source/crates/engine/src/prepare/cached/builder/modifiers.rs for
// the modifier allocation rules (dedup by rule value, Authenticated /
// RequiresScopes / Authorized{node,fields,other} / Extension dispatch,
// root-object directives), and on the teacher's planner.PlannerV2 grouping
// of AST-level steps into per-subgraph FetchSteps for the plan-record
// shape.
package partition

import (
	"github.com/n9te9/federation-query-planner/opgraph"
	"github.com/n9te9/federation-query-planner/schema"
)

// PlanRecordID indexes Result.PlanRecords.
type PlanRecordID int

// PlanRecord is the work assigned to a single subgraph request: the entity
// (or root) it starts from, the subgraph that will serve it, and the
// selection it must return.
type PlanRecord struct {
	Subgraph schema.SubgraphID
	Entity   schema.EntityID

	// ResolverField is the @composite__lookup field this record enters
	// through, or schema.NoField for the implicit key-based entity resolver
	// (spec.md §4.1/§4.2 point 5).
	ResolverField schema.FieldID
	// LookupArgument is the argument name ResolverField's @composite__is
	// injection maps InputSelectionSet into; empty unless ResolverField is set.
	LookupArgument string

	// SelectionSet is what this plan must fetch and return.
	SelectionSet schema.FieldSet
	// InputSelectionSet is the representation (entity key or @composite__is
	// injection, merged with the @requires field-sets of the fields it
	// resolves) this plan needs from its parent before it can run.
	// @authorized(fields:) selections are not part of it. Empty for root
	// plans on a type with no key.
	InputSelectionSet schema.FieldSet

	// Fields is the operation-graph query-field nodes this plan resolves,
	// in a deterministic (node-id) order.
	Fields []opgraph.NodeID
}

// ParentToChildEdge records that Child depends on data Parent produces,
// sorted by (ParentID, ChildID) for deterministic traversal (spec.md §6).
type ParentToChildEdge struct {
	ParentID PlanRecordID
	ChildID  PlanRecordID

	// RequiredFields is exactly the subset of Child's InputSelectionSet that
	// Parent contributes (spec.md §4.4 step 2): when a child needs fields
	// from more than one parent, each edge carries only its own slice.
	RequiredFields schema.FieldSet
}

// Result is the partitioner's output: the plan records, their dependency
// edges, and which ones have no parent (the concurrent entry points).
type Result struct {
	PlanRecords []PlanRecord
	Edges       []ParentToChildEdge
	RootPlans   []PlanRecordID
}
