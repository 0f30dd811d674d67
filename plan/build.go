package plan

import (
	"github.com/n9te9/federation-query-planner/partition"
	"github.com/n9te9/federation-query-planner/schema"
)

// Build validates a partitioner Result against spec.md §7's plan
// invariants and wraps it, with its modifier table, into a Plan.
func Build(result *partition.Result, modifiers *partition.ModifierTable) (*Plan, error) {
	if err := checkAcyclic(result); err != nil {
		return nil, err
	}
	if err := checkSelectionContainment(result); err != nil {
		return nil, err
	}
	return &Plan{
		Records:   result.PlanRecords,
		Edges:     result.Edges,
		Roots:     result.RootPlans,
		Modifiers: modifiers,
	}, nil
}

// checkAcyclic runs Kahn's algorithm over the parent->child edges; a
// non-empty remainder after the frontier drains means a cycle.
func checkAcyclic(result *partition.Result) error {
	n := len(result.PlanRecords)
	indegree := make([]int, n)
	children := make([][]partition.PlanRecordID, n)
	for _, e := range result.Edges {
		indegree[e.ChildID]++
		children[e.ParentID] = append(children[e.ParentID], e.ChildID)
	}

	var frontier []partition.PlanRecordID
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			frontier = append(frontier, partition.PlanRecordID(i))
		}
	}

	visited := 0
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		visited++
		for _, c := range children[cur] {
			indegree[c]--
			if indegree[c] == 0 {
				frontier = append(frontier, c)
			}
		}
	}

	if visited != n {
		return &InvalidPlanError{Reason: "dependency graph contains a cycle"}
	}
	return nil
}

// checkSelectionContainment verifies every child's InputSelectionSet is
// covered by its parent's SelectionSet (the representation a resolver asks
// for must actually be produced by whoever feeds it).
func checkSelectionContainment(result *partition.Result) error {
	for _, e := range result.Edges {
		parent := result.PlanRecords[e.ParentID]
		child := result.PlanRecords[e.ChildID]
		for _, want := range child.InputSelectionSet.FieldNames() {
			if !containsField(parent.SelectionSet, want) {
				return &InvalidPlanError{Reason: "child plan requires field \"" + want + "\" its parent does not select"}
			}
		}
	}
	return nil
}

func containsField(fs schema.FieldSet, name string) bool {
	for _, n := range fs.FieldNames() {
		if n == name {
			return true
		}
	}
	return false
}
