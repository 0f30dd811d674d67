// Package operation holds the parsed and validated GraphQL operation,
// expressed as the flat field array spec.md §3 describes rather than as a
// nested AST: each field carries its response key, parent entity, schema
// definition reference, arguments, type condition and an optional child
// selection-set id.
//
// Grounded on the teacher's planner.PlannerV2 (federation/planner/planner_v2.go),
// which already flattens fragment spreads/inline fragments into plain
// selections (expandFragmentsInSelections) before walking them; this
// package generalises that into the arena-of-indices shape the operation
// graph builder expects.
package operation

import "github.com/n9te9/federation-query-planner/schema"

// SelectionSetID addresses a contiguous run of Selections. -1 means "no
// selection set" (the field is a scalar/enum leaf).
type SelectionSetID int

const NoSelectionSet SelectionSetID = -1

// FieldID indexes into Operation.Fields.
type FieldID int

// NoField marks the absence of an originating operation field, used by the
// operation graph builder for EXTRA nodes it injects rather than ones the
// caller's document wrote.
const NoField FieldID = -1

// Argument is one (name, literal) pair. Literals are stored as the raw
// source text (already unquoted for strings) — the planner never needs to
// evaluate them, only to forward them verbatim or compare for identity
// when deduplicating "same field, same arguments" nodes.
type Argument struct {
	Name    string
	Literal string
}

// Field is one flattened operation field.
type Field struct {
	ResponseKey    string
	ParentEntity   schema.EntityID
	DefinitionID   schema.FieldID // schema.NoField for __typename
	Arguments      []Argument
	TypeCondition  string // set when this field came from an inline fragment/fragment spread with a type condition
	SelectionSetID SelectionSetID
}

// IsTypename reports whether this is the meta field __typename.
func (f Field) IsTypename() bool { return f.DefinitionID == schema.NoField }

// Operation is the parsed, flattened operation.
type Operation struct {
	Name          string
	OperationType string // "query" | "mutation" | "subscription"
	RootEntity    schema.EntityID

	Fields []Field

	// SelectionSets maps a SelectionSetID to the FieldIDs it directly
	// contains, in source order. SelectionSets[RootSelectionSet] holds the
	// operation's top-level fields.
	SelectionSets map[SelectionSetID][]FieldID

	RootSelectionSet SelectionSetID
}

// Children returns the fields directly selected under f, or nil if f is a leaf.
func (op *Operation) Children(f FieldID) []FieldID {
	fld := op.Fields[f]
	if fld.SelectionSetID == NoSelectionSet {
		return nil
	}
	return op.SelectionSets[fld.SelectionSetID]
}

// RootFields returns the top-level fields of the operation.
func (op *Operation) RootFields() []FieldID {
	return op.SelectionSets[op.RootSelectionSet]
}
