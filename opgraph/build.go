package opgraph

import (
	"fmt"

	"github.com/n9te9/federation-query-planner/operation"
	"github.com/n9te9/federation-query-planner/schema"
)

// Build constructs the operation graph for op against sch, following
// spec.md §4.2: one node per query field, one Resolver/ProvidableField pair
// per subgraph that can serve it, requirement injection for @requires and
// @authorized(fields:), same-subgraph continuation, and a final pruning
// pass that removes resolvers with no reachable leaf.
func Build(sch *schema.Schema, op *operation.Operation) (*Graph, error) {
	b := &builder{
		sch: sch, op: op, g: newGraph(),
		providersOf: map[NodeID][]provider{},
		resolverOf:  map[resolverKey]NodeID{},
	}
	b.g.Root = b.g.addNode(Node{Kind: RootNode})

	for _, fid := range op.RootFields() {
		b.fieldQueue = append(b.fieldQueue, b.addQueryField(b.g.Root, fid, operation.NoField, sch.Entity(op.RootEntity).Name, op.RootEntity, "", true))
	}

	for len(b.fieldQueue) > 0 || len(b.requirementQueue) > 0 {
		for len(b.fieldQueue) > 0 {
			n := b.fieldQueue[0]
			b.fieldQueue = b.fieldQueue[1:]
			b.expandQueryField(n)
		}
		for len(b.requirementQueue) > 0 {
			r := b.requirementQueue[0]
			b.requirementQueue = b.requirementQueue[1:]
			b.satisfyRequirement(r)
		}
	}

	b.pruneDeadResolvers()

	if err := b.checkCoverage(); err != nil {
		return nil, err
	}

	return b.g, nil
}

// provider records that a ProvidableField node provides a given query field.
type provider struct {
	subgraph schema.SubgraphID
	node     NodeID // ProvidableFieldNode
	resolver NodeID // the ResolverNode that owns it
}

type resolverKey struct {
	parentQueryField NodeID
	entity           schema.EntityID
	subgraph         schema.SubgraphID
}

type requirement struct {
	dependent        NodeID // Resolver or ProvidableField node that needs the data
	parentQueryField NodeID // where to inject the required selections (sibling level)
	fieldSet         schema.FieldSet
	indispensable    bool
}

type builder struct {
	sch *schema.Schema
	op  *operation.Operation
	g   *Graph

	fieldQueue       []NodeID
	requirementQueue []requirement

	providersOf map[NodeID][]provider // query field node -> who provides it
	resolverOf  map[resolverKey]NodeID
	nextReqID   int
}

// addQueryField creates a new QueryFieldNode and wires the structural Field
// edge from parent. Returns the new node id; callers enqueue it for
// resolver expansion.
func (b *builder) addQueryField(parent NodeID, opFieldID operation.FieldID, extraSchemaField schema.FieldID, parentTypeName string, parentEntity schema.EntityID, responseKeyOverride string, indispensable bool) NodeID {
	var schemaField schema.FieldID
	var responseKey, typeCondition string
	var args []operation.Argument

	if opFieldID != operation.NoField {
		f := b.op.Fields[opFieldID]
		schemaField = f.DefinitionID
		responseKey = f.ResponseKey
		typeCondition = f.TypeCondition
		args = f.Arguments
	} else {
		schemaField = extraSchemaField
		responseKey = responseKeyOverride
	}

	flags := FieldFlags(0)
	if indispensable {
		flags |= FlagIndispensable
	}
	if opFieldID == operation.NoField {
		flags |= FlagExtra
	}
	if schemaField == schema.NoField {
		flags |= FlagTypename | FlagLeafNode
	} else if len(b.op.Children(opFieldID)) == 0 && opFieldID != operation.NoField {
		flags |= FlagLeafNode
	}

	n := Node{
		Kind:                QueryFieldNode,
		OperationField:      opFieldID,
		SchemaField:         schemaField,
		ResponseKey:         responseKey,
		ParentEntity:        parentEntity,
		Arguments:           args,
		TypeCondition:       typeCondition,
		MatchingRequirement: -1,
		Flags:               flags,
	}
	id := b.g.addNode(n)
	b.g.addEdge(parent, id, EdgeField, 0)
	return id
}

// expandQueryField discovers every resolver that can serve the given query
// field node and recurses into its children.
func (b *builder) expandQueryField(qf NodeID) {
	// Copied by value: addNode calls below grow b.g.Nodes and would
	// invalidate a pointer into the old backing array.
	n := b.g.Nodes[qf]
	if n.Flags.Has(FlagTypename) {
		return // any subgraph can answer __typename; no resolver bookkeeping needed
	}

	fd := b.sch.Field(n.SchemaField)
	if fd.Pruned {
		return // will surface via checkCoverage if this node was indispensable
	}

	parentQF := b.parentQueryField(qf)

	// caseA tracks which subgraphs already got a normally-resolvable
	// ProvidableField below, so the parent-provides pass doesn't double-add
	// one for the same subgraph (spec.md §4.2 parent->child propagation
	// rule, case (a)).
	caseA := map[schema.SubgraphID]bool{}

	for _, sg := range fd.ExistsInSubgraphIDs {
		if fd.External[sg] {
			// An @external field is a shape-matching stub, not
			// independently resolvable here: it only becomes reachable via
			// the parent-provides case below.
			continue
		}
		caseA[sg] = true

		resolver, created := b.resolverFor(parentQF, n.ParentEntity, sg)
		if created && parentQF != NoNode {
			b.requireEntityKey(resolver, parentQF, n.ParentEntity, sg, n.Flags.Has(FlagIndispensable))
		}

		provides := fd.ProvidesRecords[sg]
		providable := b.g.addNode(Node{
			Kind:     ProvidableFieldNode,
			Subgraph: sg,
			Field:    n.SchemaField,
			Provides: provides,
		})
		b.g.addEdge(resolver, providable, EdgeCanProvide, 0)
		b.g.addEdge(providable, qf, EdgeProvides, 0)
		b.providersOf[qf] = append(b.providersOf[qf], provider{subgraph: sg, node: providable, resolver: resolver})

		if rec, ok := fd.RequiresRecords[sg]; ok && parentQF != NoNode {
			b.requirementQueue = append(b.requirementQueue, requirement{
				dependent: providable, parentQueryField: parentQF,
				fieldSet: rec.FieldSet, indispensable: n.Flags.Has(FlagIndispensable),
			})
		}
	}

	// Parent->child propagation rule, case (b): a field the parent's own
	// @provides tree already carries, even though it isn't (or can't be)
	// independently resolved here. Emitted as ProvidableField::OnlyProvidable:
	// it satisfies qf at zero cost through the parent's existing resolver,
	// but can't originate a resolver switch of its own (spec.md §4.2).
	if parentQF != NoNode {
		for _, p := range b.providersOf[parentQF] {
			if caseA[p.subgraph] {
				continue
			}
			sel, ok := findProvidesSelection(b.g.Nodes[p.node].Provides, fd.Name)
			if !ok {
				continue
			}
			providable := b.g.addNode(Node{
				Kind:           ProvidableFieldNode,
				Subgraph:       p.subgraph,
				Field:          n.SchemaField,
				Provides:       sel.SubSelection,
				OnlyProvidable: true,
			})
			b.g.addEdge(p.resolver, providable, EdgeCanProvide, 0)
			b.g.addEdge(providable, qf, EdgeProvides, 0)
			b.providersOf[qf] = append(b.providersOf[qf], provider{subgraph: p.subgraph, node: providable, resolver: p.resolver})
		}
	}

	for _, dir := range fd.Directives {
		if dir.Kind == schema.DirAuthorized && dir.AuthorizedArgKind == schema.AuthorizedFields && parentQF != NoNode {
			b.requirementQueue = append(b.requirementQueue, requirement{
				dependent: qf, parentQueryField: parentQF,
				fieldSet:      parseFieldsLiteral(dir.AuthorizedFields),
				indispensable: false,
			})
		}
	}

	// Recurse into children (structural Field edges), inheriting indispensability.
	for _, childID := range b.op.Children(n.OperationField) {
		childTypeName := childTypeNameOf(b.sch, n.SchemaField)
		childEntity := n.ParentEntity
		if eid, ok := b.sch.EntityByName[childTypeName]; ok {
			childEntity = eid
		}
		cid := b.addQueryField(qf, childID, schema.NoField, childTypeName, childEntity, "", n.Flags.Has(FlagIndispensable))
		b.fieldQueue = append(b.fieldQueue, cid)
	}
}

// resolverFor returns the ResolverNode for (parentQueryField, entity,
// subgraph), creating it (and the CreateChildResolver/HasChildResolver
// edges) if this exact triple hasn't been seen yet (spec.md §4.2 step 1).
// If entity has no native @key in sg but a @composite__lookup field reaches
// it there, the resolver is entered through that field instead of the
// implicit key-based entity resolver (spec.md §4.1/§4.2 point 5).
func (b *builder) resolverFor(parentQF NodeID, entity schema.EntityID, sg schema.SubgraphID) (NodeID, bool) {
	key := resolverKey{parentQueryField: parentQF, entity: entity, subgraph: sg}
	if id, ok := b.resolverOf[key]; ok {
		return id, false
	}
	resolverField := schema.NoField
	if lookup, ok := b.sch.LookupFor(entity, sg); ok {
		resolverField = lookup.Field
	}
	id := b.g.addNode(Node{Kind: ResolverNode, ResolverEntity: entity, ResolverField: resolverField, ResolverGraph: sg})
	b.resolverOf[key] = id

	if parentQF != NoNode {
		b.g.addEdge(parentQF, id, EdgeHasChildResolver, 0)
		// Each provider of the parent field is a legitimate entry point into
		// this resolver: zero cost when it's already in sg (same-subgraph
		// continuation, spec.md §4.2 rule 6), one when entering costs a
		// resolver switch.
		for _, p := range b.providersOf[parentQF] {
			if b.g.Nodes[p.node].OnlyProvidable {
				continue // can satisfy its own query field but can't originate a resolver switch
			}
			weight := 1
			if p.subgraph.Equal(sg) {
				weight = 0
			}
			b.g.addEdge(p.node, id, EdgeCreateChildResolver, weight)
		}
	}
	return id, true
}

// requireEntityKey pushes a requirement for the representation the new
// resolver needs from its parent: a @composite__lookup's @is injection
// field-set if entity is reached in sg through one, otherwise entity's
// plain @key field-set in sg (spec.md §4.2: "Requirements introduce new
// extra query-field nodes... if the petitioner is INDISPENSABLE, also
// INDISPENSABLE").
func (b *builder) requireEntityKey(resolver, parentQF NodeID, entity schema.EntityID, sg schema.SubgraphID, indispensable bool) {
	fieldSet := schema.FieldSet{}
	if lookup, ok := b.sch.LookupFor(entity, sg); ok {
		fieldSet = lookup.Injection
	} else if keys := b.sch.Entity(entity).Keys[sg]; len(keys) > 0 {
		fieldSet = keys[0].FieldSet
	} else {
		return // entity has neither a lookup nor a @key in sg (e.g. a root type): nothing to inject
	}
	b.requirementQueue = append(b.requirementQueue, requirement{
		dependent: resolver, parentQueryField: parentQF,
		fieldSet: fieldSet, indispensable: indispensable,
	})
}

// satisfyRequirement ensures every top-level selection of r.fieldSet exists
// as a query-field node under r.parentQueryField (creating EXTRA nodes as
// needed), then records a Requires edge and re-enqueues any freshly created
// nodes for resolver expansion.
func (b *builder) satisfyRequirement(r requirement) {
	reqID := b.nextReqID
	b.nextReqID++

	for _, sel := range r.fieldSet.Selections {
		target := b.findOrCreateSibling(r.parentQueryField, sel.FieldName, r.indispensable, reqID)
		b.g.addEdge(r.dependent, target, EdgeRequires, 0)

		if !sel.SubSelection.Empty() {
			b.requirementQueue = append(b.requirementQueue, requirement{
				dependent: target, parentQueryField: target,
				fieldSet: sel.SubSelection, indispensable: r.indispensable,
			})
		}
	}
}

// findOrCreateSibling looks for an existing query-field node under parentQF
// with response key == name; if none exists, it creates an EXTRA one and
// enqueues it for expansion.
func (b *builder) findOrCreateSibling(parentQF NodeID, name string, indispensable bool, reqID int) NodeID {
	for _, eidx := range b.g.OutEdges(parentQF) {
		e := b.g.Edges[eidx]
		if e.Kind != EdgeField {
			continue
		}
		if cn := b.g.Nodes[e.To]; cn.ResponseKey == name {
			if indispensable && !cn.Flags.Has(FlagIndispensable) {
				b.g.Nodes[e.To].Flags |= FlagIndispensable
			}
			return e.To
		}
	}

	parentEntity := b.g.Nodes[parentQF].ParentEntity
	parentTypeName := childTypeNameOf(b.sch, b.g.Nodes[parentQF].SchemaField)
	if b.g.Nodes[parentQF].Kind == RootNode {
		parentTypeName = b.sch.Entity(b.g.Nodes[parentQF].ParentEntity).Name
	}
	fid, ok := b.sch.FieldByKey(parentTypeName, name)
	if !ok {
		// The entity type itself, not a field resolved through it (root parent case).
		fid, ok = b.sch.FieldByKey(b.sch.Entity(parentEntity).Name, name)
	}
	if !ok {
		fid = schema.NoField
	}

	id := b.addQueryField(parentQF, operation.NoField, fid, "", parentEntity, name, indispensable)
	b.g.Nodes[id].MatchingRequirement = reqID
	b.fieldQueue = append(b.fieldQueue, id)
	return id
}

func (b *builder) parentQueryField(qf NodeID) NodeID {
	for _, eidx := range b.g.InEdges(qf) {
		e := b.g.Edges[eidx]
		if e.Kind == EdgeField {
			if b.g.Nodes[e.From].Kind == QueryFieldNode {
				return e.From
			}
			return NoNode // parent is Root
		}
	}
	return NoNode
}

func childTypeNameOf(sch *schema.Schema, fieldID schema.FieldID) string {
	if fieldID == schema.NoField {
		return ""
	}
	return sch.Field(fieldID).OutputType.NamedTypeName()
}

func parseFieldsLiteral(raw string) schema.FieldSet {
	// @authorized(fields:) uses the same FieldSet grammar as @key/@requires.
	return schema.ParseFieldSet(raw)
}

// findProvidesSelection looks for name among fs's top-level selections,
// matching a child field against an ancestor ProvidableField's own
// @provides sub-tree (spec.md §4.2 case (b)).
func findProvidesSelection(fs schema.FieldSet, name string) (schema.FieldSetSelection, bool) {
	for _, sel := range fs.Selections {
		if sel.FieldName == name {
			return sel, true
		}
	}
	return schema.FieldSetSelection{}, false
}

// --- pruning & coverage ----------------------------------------------------

// pruneDeadResolvers removes Resolver nodes with no reachable
// ProvidableField -> Provides -> QueryField path (spec.md §4.2).
func (b *builder) pruneDeadResolvers() {
	reachesLeaf := make([]bool, len(b.g.Nodes))
	var mark func(NodeID) bool
	visiting := make([]int8, len(b.g.Nodes)) // 0 unvisited, 1 in progress, 2 done
	mark = func(n NodeID) bool {
		if visiting[n] == 2 {
			return reachesLeaf[n]
		}
		if visiting[n] == 1 {
			return false // guard against cycles in the (acyclic-by-construction) graph
		}
		visiting[n] = 1
		ok := false
		switch b.g.Nodes[n].Kind {
		case ResolverNode:
			for _, eidx := range b.g.OutEdges(n) {
				e := b.g.Edges[eidx]
				if e.Kind == EdgeCanProvide && mark(e.To) {
					ok = true
				}
			}
		case ProvidableFieldNode:
			for _, eidx := range b.g.OutEdges(n) {
				e := b.g.Edges[eidx]
				if e.Kind == EdgeProvides {
					ok = true // reaches a query field directly
				}
			}
		}
		visiting[n] = 2
		reachesLeaf[n] = ok
		return ok
	}

	for i := range b.g.Nodes {
		if b.g.Nodes[i].Kind == ResolverNode {
			mark(NodeID(i))
		}
	}

	for i := range b.g.Nodes {
		if b.g.Nodes[i].Kind == ResolverNode && !reachesLeaf[i] {
			b.g.removeNode(NodeID(i))
		}
	}
}

// checkCoverage verifies every indispensable, non-typename query field has
// at least one incoming Provides edge, collecting the terminals list for
// the Steiner solver as it goes (spec.md §3/§4.2).
func (b *builder) checkCoverage() error {
	b.g.Terminals = nil
	for i, n := range b.g.Nodes {
		if n.Kind != QueryFieldNode || !n.Flags.Has(FlagIndispensable) || n.Flags.Has(FlagTypename) {
			continue
		}
		id := NodeID(i)
		if !b.hasProvider(id) {
			return &UnsolvableOperationError{
				FieldPath: b.pathTo(id),
				Reason:    fmt.Sprintf("no resolver coverage for %q after pruning", n.ResponseKey),
			}
		}
		b.g.Terminals = append(b.g.Terminals, id)
	}
	return nil
}

func (b *builder) hasProvider(qf NodeID) bool {
	for _, eidx := range b.g.InEdges(qf) {
		if b.g.Edges[eidx].Kind == EdgeProvides {
			return true
		}
	}
	return false
}

func (b *builder) pathTo(n NodeID) []string {
	var path []string
	cur := n
	for cur != NoNode {
		node := b.g.Nodes[cur]
		if node.Kind != QueryFieldNode {
			break
		}
		path = append([]string{node.ResponseKey}, path...)
		cur = b.parentQueryField(cur)
	}
	return path
}
