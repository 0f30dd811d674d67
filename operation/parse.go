package operation

import (
	"github.com/n9te9/federation-query-planner/schema"
	"github.com/n9te9/graphql-parser/ast"
)

// Options controls the deployment-tunable limits Build enforces while
// flattening a document, sourced from plannerconfig.Config.
type Options struct {
	// AllowIntrospection permits __schema/__type root-adjacent fields. When
	// false, encountering one is a ParseError rather than a silently
	// untyped leaf.
	AllowIntrospection bool
	// MaxDepth bounds selection-set nesting; 0 means unbounded.
	MaxDepth int
}

// DefaultOptions matches plannerconfig.Default().
func DefaultOptions() Options {
	return Options{AllowIntrospection: true, MaxDepth: 64}
}

// Build flattens a parsed GraphQL document's chosen operation into an
// Operation, resolving each field against sch, using DefaultOptions.
func Build(sch *schema.Schema, doc *ast.Document, operationName string) (*Operation, error) {
	return BuildWithOptions(sch, doc, operationName, DefaultOptions())
}

// BuildWithOptions is Build with explicit Options. Fragment spreads and
// inline fragments are expanded inline (teacher's expandFragmentsInSelections
// pattern) with their type condition recorded on the resulting Field so
// the operation-graph builder can re-apply it.
func BuildWithOptions(sch *schema.Schema, doc *ast.Document, operationName string, opts Options) (*Operation, error) {
	opDef, err := findOperation(doc, operationName)
	if err != nil {
		return nil, err
	}
	if len(opDef.SelectionSet) == 0 {
		return nil, &ParseError{Message: "empty selection set"}
	}

	fragments := collectFragments(doc)

	op := &Operation{
		Name:          operationName,
		OperationType: string(opDef.Operation),
		SelectionSets: map[SelectionSetID][]FieldID{},
	}

	rootEntity, rootTypeName, err := rootEntityFor(sch, opDef.Operation)
	if err != nil {
		return nil, err
	}
	op.RootEntity = rootEntity

	b := &opBuilder{sch: sch, op: op, fragments: fragments, nextSet: 0, opts: opts}
	root := b.allocSet()
	op.RootSelectionSet = root
	if err := b.walk(opDef.SelectionSet, rootTypeName, rootEntity, "", root, 1); err != nil {
		return nil, err
	}
	return op, nil
}

type opBuilder struct {
	sch       *schema.Schema
	op        *Operation
	fragments map[string]*ast.FragmentDefinition
	nextSet   int
	opts      Options
}

func (b *opBuilder) allocSet() SelectionSetID {
	id := SelectionSetID(b.nextSet)
	b.nextSet++
	b.op.SelectionSets[id] = nil
	return id
}

// walk appends the flattened fields of selections (whose static type is
// parentTypeName/parentEntity) into setID, recursing into child selection
// sets and expanding fragments as it goes.
func (b *opBuilder) walk(selections []ast.Selection, parentTypeName string, parentEntity schema.EntityID, typeCondition string, setID SelectionSetID, depth int) error {
	if b.opts.MaxDepth > 0 && depth > b.opts.MaxDepth {
		return &ParseError{Message: "selection set exceeds configured max depth"}
	}
	for _, sel := range selections {
		switch s := sel.(type) {
		case *ast.Field:
			if err := b.addField(s, parentTypeName, parentEntity, typeCondition, setID, depth); err != nil {
				return err
			}

		case *ast.InlineFragment:
			cond := parentTypeName
			if s.TypeCondition != nil {
				cond = s.TypeCondition.Name.String()
			}
			childEntity := parentEntity
			if eid, ok := b.sch.EntityByName[cond]; ok {
				childEntity = eid
			}
			if err := b.walk(s.SelectionSet, cond, childEntity, cond, setID, depth); err != nil {
				return err
			}

		case *ast.FragmentSpread:
			name := s.Name.String()
			frag, ok := b.fragments[name]
			if !ok {
				return &ParseError{Path: []string{name}, Message: "fragment not found"}
			}
			cond := frag.TypeCondition.Name.String()
			childEntity := parentEntity
			if eid, ok := b.sch.EntityByName[cond]; ok {
				childEntity = eid
			}
			if err := b.walk(frag.SelectionSet, cond, childEntity, cond, setID, depth); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *opBuilder) addField(f *ast.Field, parentTypeName string, parentEntity schema.EntityID, typeCondition string, setID SelectionSetID, depth int) error {
	name := f.Name.String()
	responseKey := name
	if f.Alias != nil && f.Alias.String() != "" {
		responseKey = f.Alias.String()
	}

	field := Field{
		ResponseKey:   responseKey,
		ParentEntity:  parentEntity,
		TypeCondition: typeCondition,
	}

	if name == "__schema" || name == "__type" {
		if !b.opts.AllowIntrospection {
			return &ParseError{Path: []string{parentTypeName, name}, Message: "introspection is disabled by planner config"}
		}
		field.DefinitionID = schema.NoField
	} else if name == "__typename" {
		field.DefinitionID = schema.NoField
	} else {
		fid, ok := b.sch.FieldByKey(parentTypeName, name)
		if !ok {
			return &ParseError{Path: []string{parentTypeName, name}, Message: "field not found on type"}
		}
		field.DefinitionID = fid
	}

	for _, arg := range f.Arguments {
		field.Arguments = append(field.Arguments, Argument{Name: arg.Name.String(), Literal: arg.Value.String()})
	}

	if len(f.SelectionSet) > 0 {
		childSet := b.allocSet()
		field.SelectionSetID = childSet

		childTypeName := parentTypeName
		childEntity := parentEntity
		if !field.IsTypename() {
			childTypeName = b.sch.Fields[field.DefinitionID].OutputType.NamedTypeName()
			if eid, ok := b.sch.EntityByName[childTypeName]; ok {
				childEntity = eid
			}
		}

		fid := FieldID(len(b.op.Fields))
		b.op.Fields = append(b.op.Fields, field)
		b.op.SelectionSets[setID] = append(b.op.SelectionSets[setID], fid)

		return b.walk(f.SelectionSet, childTypeName, childEntity, "", childSet, depth+1)
	}

	field.SelectionSetID = NoSelectionSet
	fid := FieldID(len(b.op.Fields))
	b.op.Fields = append(b.op.Fields, field)
	b.op.SelectionSets[setID] = append(b.op.SelectionSets[setID], fid)
	return nil
}

func findOperation(doc *ast.Document, operationName string) (*ast.OperationDefinition, error) {
	var first *ast.OperationDefinition
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if first == nil {
			first = op
		}
		if operationName != "" && op.Name != nil && op.Name.String() == operationName {
			return op, nil
		}
	}
	if operationName == "" && first != nil {
		return first, nil
	}
	if first == nil {
		return nil, &ParseError{Message: "no operation found in document"}
	}
	if operationName != "" {
		return nil, &ParseError{Message: "operation " + operationName + " not found in document"}
	}
	return first, nil
}

func collectFragments(doc *ast.Document) map[string]*ast.FragmentDefinition {
	frags := map[string]*ast.FragmentDefinition{}
	for _, def := range doc.Definitions {
		if f, ok := def.(*ast.FragmentDefinition); ok {
			frags[f.Name.String()] = f
		}
	}
	return frags
}

func rootEntityFor(sch *schema.Schema, op ast.OperationType) (schema.EntityID, string, error) {
	switch op {
	case ast.Query:
		return sch.RootQueryEntity, sch.Entities[sch.RootQueryEntity].Name, nil
	case ast.Mutation:
		if !sch.HasMutation {
			return 0, "", &ParseError{Message: "schema has no mutation root"}
		}
		return sch.RootMutationEntity, sch.Entities[sch.RootMutationEntity].Name, nil
	case ast.Subscription:
		if !sch.HasSubscription {
			return 0, "", &ParseError{Message: "schema has no subscription root"}
		}
		return sch.RootSubscriptionEntity, sch.Entities[sch.RootSubscriptionEntity].Name, nil
	default:
		return 0, "", &ParseError{Message: "unknown operation type"}
	}
}
