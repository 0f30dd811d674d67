package partition

import (
	"sort"

	"github.com/n9te9/federation-query-planner/internal/bitset"
	"github.com/n9te9/federation-query-planner/opgraph"
	"github.com/n9te9/federation-query-planner/schema"
)

// Build groups the nodes the solved Steiner tree selected into PlanRecords,
// one per resolver node in the tree, deriving each record's selection set
// from the providable fields it was chosen to resolve and its dependency
// edges from the CreateChildResolver edges the tree kept.
func Build(sch *schema.Schema, g *opgraph.Graph, treeNodes, treeEdges *bitset.Set) *Result {
	recordOf := map[opgraph.NodeID]PlanRecordID{}
	var records []PlanRecord

	for i, n := range g.Nodes {
		if n.Kind != opgraph.ResolverNode || !treeNodes.Contains(i) {
			continue
		}
		id := opgraph.NodeID(i)
		recordOf[id] = PlanRecordID(len(records))
		records = append(records, PlanRecord{
			Subgraph:      n.ResolverGraph,
			Entity:        n.ResolverEntity,
			ResolverField: n.ResolverField,
		})
	}

	// Attach each providable field kept in the tree to its owning resolver's
	// record, contributing its query field to both SelectionSet and Fields.
	for eidx, e := range g.Edges {
		if e.Kind != opgraph.EdgeCanProvide || !treeEdges.Contains(eidx) {
			continue
		}
		resolverID, ok := recordOf[e.From]
		if !ok {
			continue
		}
		providable := e.To
		for _, eidx2 := range g.OutEdges(providable) {
			pe := g.Edges[eidx2]
			if pe.Kind != opgraph.EdgeProvides || !treeEdges.Contains(eidx2) {
				continue
			}
			qf := pe.To
			rec := &records[resolverID]
			rec.Fields = append(rec.Fields, qf)
			rec.SelectionSet = schema.Merge(rec.SelectionSet, fieldSetFor(g, qf))
		}
	}

	for i := range records {
		sort.Slice(records[i].Fields, func(a, b int) bool { return records[i].Fields[a] < records[i].Fields[b] })
		records[i].InputSelectionSet = inputSelectionSet(sch, g, records[i].Entity, records[i].Subgraph, records[i].Fields)
		if lookup, ok := sch.LookupFor(records[i].Entity, records[i].Subgraph); ok {
			records[i].LookupArgument = lookup.IsArgument
		}
	}

	var edges []ParentToChildEdge
	var roots []PlanRecordID
	for i, n := range g.Nodes {
		if n.Kind != opgraph.ResolverNode || !treeNodes.Contains(i) {
			continue
		}
		childID := recordOf[opgraph.NodeID(i)]
		isRoot := true
		for _, eidx := range g.InEdges(opgraph.NodeID(i)) {
			e := g.Edges[eidx]
			if e.Kind != opgraph.EdgeCreateChildResolver || !treeEdges.Contains(eidx) {
				continue
			}
			isRoot = false
			// e.From is a ProvidableFieldNode; find its owning resolver.
			for _, eidx2 := range g.InEdges(e.From) {
				pe := g.Edges[eidx2]
				if pe.Kind == opgraph.EdgeCanProvide {
					if parentID, ok := recordOf[pe.From]; ok {
						edges = append(edges, ParentToChildEdge{
							ParentID:       parentID,
							ChildID:        childID,
							RequiredFields: intersectByName(records[childID].InputSelectionSet, records[parentID].SelectionSet),
						})
					}
				}
			}
		}
		if isRoot {
			roots = append(roots, childID)
		}
	}

	sort.Slice(edges, func(a, b int) bool {
		if edges[a].ParentID != edges[b].ParentID {
			return edges[a].ParentID < edges[b].ParentID
		}
		return edges[a].ChildID < edges[b].ChildID
	})
	sort.Slice(roots, func(a, b int) bool { return roots[a] < roots[b] })

	return &Result{PlanRecords: records, Edges: edges, RootPlans: roots}
}

// inputSelectionSet returns the representation a resolver needs from its
// parent before it can run: a @composite__lookup's @is injection field-set
// if entity is entered in sg through one, otherwise its plain @key
// field-set in sg, plus any @requires the fields it resolves declare for sg
// (spec.md §4.4 step 2). Empty when entity has neither a lookup nor a @key
// in sg (e.g. a root type) and its fields declare no @requires there.
func inputSelectionSet(sch *schema.Schema, g *opgraph.Graph, entity schema.EntityID, sg schema.SubgraphID, fields []opgraph.NodeID) schema.FieldSet {
	var base schema.FieldSet
	if lookup, ok := sch.LookupFor(entity, sg); ok {
		base = lookup.Injection
	} else if keys := sch.Entity(entity).Keys[sg]; len(keys) > 0 {
		base = keys[0].FieldSet
	}
	return schema.Merge(base, requiresFieldSet(sch, g, fields, sg))
}

// requiresFieldSet merges the @requires field-sets declared, for sg, by
// every field this plan record resolves.
func requiresFieldSet(sch *schema.Schema, g *opgraph.Graph, fields []opgraph.NodeID, sg schema.SubgraphID) schema.FieldSet {
	var acc schema.FieldSet
	for _, qf := range fields {
		n := g.Nodes[qf]
		if n.SchemaField == schema.NoField {
			continue
		}
		if rec, ok := sch.Field(n.SchemaField).RequiresRecords[sg]; ok {
			acc = schema.Merge(acc, rec.FieldSet)
		}
	}
	return acc
}

// intersectByName returns the selections of required whose field name is
// also present in available: exactly the slice of a child's input
// selection set that one specific parent contributes (spec.md §4.4 step 2).
func intersectByName(required, available schema.FieldSet) schema.FieldSet {
	availNames := make(map[string]bool, len(available.Selections))
	for _, s := range available.Selections {
		availNames[s.FieldName] = true
	}
	var out []schema.FieldSetSelection
	for _, s := range required.Selections {
		if availNames[s.FieldName] {
			out = append(out, s)
		}
	}
	return schema.FieldSet{Selections: out}
}

// fieldSetFor returns the single-field FieldSet a query-field node
// contributes to its resolver's selection set (spec.md §6: plan selection
// sets are built field-by-field from the nodes the tree attached).
func fieldSetFor(g *opgraph.Graph, qf opgraph.NodeID) schema.FieldSet {
	n := g.Nodes[qf]
	return schema.FieldSet{Selections: []schema.FieldSetSelection{{
		FieldID:   n.SchemaField,
		FieldName: n.ResponseKey,
	}}}
}
