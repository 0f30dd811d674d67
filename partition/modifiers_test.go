package partition_test

import (
	"testing"

	"github.com/n9te9/federation-query-planner/opgraph"
	"github.com/n9te9/federation-query-planner/partition"
	"github.com/n9te9/federation-query-planner/schema"
)

func TestAllocateModifiers_DedupsByFieldIdentity(t *testing.T) {
	sch := &schema.Schema{
		Fields: []schema.FieldDefinition{
			{Name: "secret", Directives: []schema.Directive{{Kind: schema.DirAuthenticated}}},
		},
	}
	g := &opgraph.Graph{
		Nodes: []opgraph.Node{
			{SchemaField: 0},
			{SchemaField: 0}, // same schema field resolved by a second query-field node
		},
	}
	plans := []partition.PlanRecord{
		{Fields: []opgraph.NodeID{0, 1}},
	}

	table := partition.AllocateModifiers(sch, g, plans)

	if len(table.QueryModifiers) != 1 {
		t.Fatalf("QueryModifiers: got %d, want 1 (both nodes resolve the same authenticated field)", len(table.QueryModifiers))
	}
	rec := table.QueryModifiers[0]
	if rec.Rule.Kind != partition.RuleAuthenticated {
		t.Errorf("Rule.Kind: got %v, want RuleAuthenticated", rec.Rule.Kind)
	}
	if len(rec.ImpactedFields) != 2 {
		t.Errorf("ImpactedFields: got %v, want both node ids", rec.ImpactedFields)
	}
}

func TestAllocateModifiers_NativeBeforeExtension(t *testing.T) {
	sch := &schema.Schema{
		Fields: []schema.FieldDefinition{
			{Name: "a", Directives: []schema.Directive{
				{Kind: schema.DirExtension, IsAuthz: true, Stage: schema.StageStatic, ExtensionName: "rateLimit"},
			}},
			{Name: "b", Directives: []schema.Directive{{Kind: schema.DirAuthenticated}}},
		},
	}
	g := &opgraph.Graph{
		Nodes: []opgraph.Node{
			{SchemaField: 0},
			{SchemaField: 1},
		},
	}
	plans := []partition.PlanRecord{
		{Fields: []opgraph.NodeID{0, 1}},
	}

	table := partition.AllocateModifiers(sch, g, plans)

	if table.NativeCount != 1 {
		t.Fatalf("NativeCount: got %d, want 1", table.NativeCount)
	}
	if table.QueryModifiers[0].Rule.Kind == partition.RuleExtension {
		t.Errorf("native rule should sort before the extension rule, got extension first")
	}
	if _, ok := table.ByExtension["rateLimit"]; !ok {
		t.Errorf("ByExtension: expected an entry for %q", "rateLimit")
	}
}
