package plan_test

import (
	"errors"
	"testing"

	"github.com/n9te9/federation-query-planner/partition"
	"github.com/n9te9/federation-query-planner/plan"
	"github.com/n9te9/federation-query-planner/schema"
)

func fieldSet(names ...string) schema.FieldSet {
	var sels []schema.FieldSetSelection
	for _, n := range names {
		sels = append(sels, schema.FieldSetSelection{FieldName: n})
	}
	return schema.FieldSet{Selections: sels}
}

func TestBuild_AcceptsValidDAG(t *testing.T) {
	result := &partition.Result{
		PlanRecords: []partition.PlanRecord{
			{SelectionSet: fieldSet("id", "weight")},
			{SelectionSet: fieldSet("shippingEstimate"), InputSelectionSet: fieldSet("weight")},
		},
		Edges:     []partition.ParentToChildEdge{{ParentID: 0, ChildID: 1}},
		RootPlans: []partition.PlanRecordID{0},
	}

	p, err := plan.Build(result, &partition.ModifierTable{})
	if err != nil {
		t.Fatalf("Build: unexpected error: %v", err)
	}
	if len(p.Records) != 2 || len(p.Edges) != 1 {
		t.Fatalf("Build: got %d records/%d edges, want 2/1", len(p.Records), len(p.Edges))
	}
	children := p.ChildrenOf(0)
	if len(children) != 1 || children[0] != 1 {
		t.Errorf("ChildrenOf(0): got %v, want [1]", children)
	}
}

func TestBuild_RejectsCycle(t *testing.T) {
	result := &partition.Result{
		PlanRecords: []partition.PlanRecord{{}, {}},
		Edges: []partition.ParentToChildEdge{
			{ParentID: 0, ChildID: 1},
			{ParentID: 1, ChildID: 0},
		},
		RootPlans: []partition.PlanRecordID{0},
	}

	_, err := plan.Build(result, &partition.ModifierTable{})
	if err == nil {
		t.Fatal("Build: expected an error for a cyclic dependency graph")
	}
	var invalid *plan.InvalidPlanError
	if !errors.As(err, &invalid) {
		t.Fatalf("Build: got error of type %T, want *plan.InvalidPlanError", err)
	}
}

func TestBuild_RejectsUncoveredInputSelection(t *testing.T) {
	result := &partition.Result{
		PlanRecords: []partition.PlanRecord{
			{SelectionSet: fieldSet("id")},
			{SelectionSet: fieldSet("shippingEstimate"), InputSelectionSet: fieldSet("weight")},
		},
		Edges:     []partition.ParentToChildEdge{{ParentID: 0, ChildID: 1}},
		RootPlans: []partition.PlanRecordID{0},
	}

	_, err := plan.Build(result, &partition.ModifierTable{})
	if err == nil {
		t.Fatal("Build: expected an error since the parent never selects \"weight\"")
	}
}
