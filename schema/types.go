// Package schema holds the normalised, index-addressed representation of a
// composed federated schema: types, fields, subgraph membership, keys,
// @requires/@provides field-sets, @override, and the type-system directives
// the modifier allocator cares about.
//
// Grounded on the teacher's federation/graph.SubGraphV2 / SuperGraphV2
// (parsing and ownership) generalised to the arena-of-indices model spec.md
// §3 calls for, and on original_source's
// crates/engine/schema/src/builder/graph/directives/federation.rs for the
// directive set.
package schema

import "sort"

// SubgraphKind tags the three kinds of subgraph identifier spec.md §3 lists.
type SubgraphKind uint8

const (
	GraphqlEndpoint SubgraphKind = iota
	Virtual
	Introspection
)

// SubgraphID is the tagged variant {GraphqlEndpoint(u32), Virtual(u32), Introspection}.
type SubgraphID struct {
	Kind  SubgraphKind
	Ordinal uint32
}

// IntrospectionSubgraphID is the single synthetic introspection subgraph.
var IntrospectionSubgraphID = SubgraphID{Kind: Introspection}

func (s SubgraphID) Less(o SubgraphID) bool {
	if s.Kind != o.Kind {
		return s.Kind < o.Kind
	}
	return s.Ordinal < o.Ordinal
}

func (s SubgraphID) Equal(o SubgraphID) bool { return s.Kind == o.Kind && s.Ordinal == o.Ordinal }

// SortSubgraphIDs sorts and deduplicates ids in place, returning the result.
func SortSubgraphIDs(ids []SubgraphID) []SubgraphID {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || !out[len(out)-1].Equal(id) {
			out = append(out, id)
		}
	}
	return out
}

// Index types. All are dense array offsets into the Schema's slices.
type (
	FieldID    int
	EntityID   int
	ArgumentID int
	DirectiveListID int
)

const NoField FieldID = -1

// TypeKind distinguishes object and interface entity definitions.
type TypeKind uint8

const (
	ObjectKind TypeKind = iota
	InterfaceKind
)

// TypeRef is a GraphQL type reference: Named, List(T), or NonNull(T).
type TypeRef struct {
	Named   string // empty unless this is the Named leaf
	List    *TypeRef
	NonNull *TypeRef
}

func NamedType(name string) TypeRef { return TypeRef{Named: name} }

// NamedTypeName unwraps List/NonNull wrappers down to the leaf type name.
func (t TypeRef) NamedTypeName() string {
	switch {
	case t.List != nil:
		return t.List.NamedTypeName()
	case t.NonNull != nil:
		return t.NonNull.NamedTypeName()
	default:
		return t.Named
	}
}

// ArgumentDefinition is a field or directive argument.
type ArgumentDefinition struct {
	Name string
	Type TypeRef
}

// DirectiveKind distinguishes the directive families the planner inspects.
type DirectiveKind uint8

const (
	DirAuthenticated DirectiveKind = iota
	DirRequiresScopes
	DirAuthorized
	DirListSize
	DirCost
	DirExtension
	DirExecutable // @skip, @include, user-defined executable directives carried through to the executor
)

// AuthorizedArgKind distinguishes the three forms @authorized can take.
type AuthorizedArgKind uint8

const (
	AuthorizedLiteral AuthorizedArgKind = iota // only literal arguments, or none
	AuthorizedFields                           // @authorized(fields: "...") — needs the parent object
	AuthorizedNode                             // @authorized(node: "...") — needs the field's own resolved value
)

// InjectionStage mirrors the Rust extension_catalog::InjectionStage used to
// decide when an authorization extension directive's arguments are known.
type InjectionStage uint8

const (
	StageStatic InjectionStage = iota
	StageQuery
	StageResponse // reserved, unreachable (spec.md §9 Open Questions)
)

// Directive is a single applied directive with just the fields the planner
// needs downstream; argument literals beyond what's listed here are not
// stored.
type Directive struct {
	Kind DirectiveKind
	Name string

	// ID is not assigned by schema ingestion; modifier deduplication keys
	// on the schema field instead.
	ID int

	// @authorized
	AuthorizedArgKind AuthorizedArgKind
	AuthorizedFields  string // raw FieldSet text for AuthorizedFields
	AuthorizedNode    string // raw FieldSet text for AuthorizedNode
	HasArguments      bool   // true if @authorized carries any argument other than fields/node

	// @requiresScopes
	ScopesID int

	// extension directives
	ExtensionID   int
	ExtensionName string
	Stage         InjectionStage
	IsAuthz       bool // extension directive kind is an authorization extension
}

// FieldSet is an ordered tree of selections, as used by @key/@requires/@provides.
type FieldSet struct {
	Selections []FieldSetSelection
}

// FieldSetSelection is one (field, arguments, sub-selection) triple of a FieldSet.
type FieldSetSelection struct {
	FieldID      FieldID
	FieldName    string // kept for FieldSets referencing fields the builder hasn't resolved yet
	Arguments    map[string]string
	SubSelection FieldSet
}

func (fs FieldSet) Empty() bool { return len(fs.Selections) == 0 }

// Equivalent reports whether two FieldSets project structurally equal
// response shapes, ignoring argument order (spec.md §3).
func (fs FieldSet) Equivalent(other FieldSet) bool {
	if len(fs.Selections) != len(other.Selections) {
		return false
	}
	used := make([]bool, len(other.Selections))
	for _, a := range fs.Selections {
		matched := false
		for j, b := range other.Selections {
			if used[j] {
				continue
			}
			if a.FieldName == b.FieldName && a.SubSelection.Equivalent(b.SubSelection) && sameArgs(a.Arguments, b.Arguments) {
				used[j] = true
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func sameArgs(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// Merge combines two FieldSets, unioning child selections for fields present
// in both. Associative: Merge(Merge(A,B),C) == Merge(A,Merge(B,C)).
func Merge(sets ...FieldSet) FieldSet {
	var acc FieldSet
	for _, s := range sets {
		acc = mergeTwo(acc, s)
	}
	return acc
}

func mergeTwo(a, b FieldSet) FieldSet {
	byName := make(map[string]int, len(a.Selections))
	out := make([]FieldSetSelection, 0, len(a.Selections)+len(b.Selections))
	for _, sel := range a.Selections {
		byName[sel.FieldName] = len(out)
		out = append(out, sel)
	}
	for _, sel := range b.Selections {
		if idx, ok := byName[sel.FieldName]; ok {
			out[idx].SubSelection = mergeTwo(out[idx].SubSelection, sel.SubSelection)
			continue
		}
		byName[sel.FieldName] = len(out)
		out = append(out, sel)
	}
	return FieldSet{Selections: out}
}

// FieldNames returns the top-level field names of a FieldSet, sorted.
func (fs FieldSet) FieldNames() []string {
	names := make([]string, 0, len(fs.Selections))
	for _, s := range fs.Selections {
		names = append(names, s.FieldName)
	}
	sort.Strings(names)
	return names
}

// RequiresRecord is a per-subgraph @requires declaration: the field-set plus
// an injection id, a per-field ordinal schema ingestion assigns to each
// @requires declaration of the field in source order.
type RequiresRecord struct {
	FieldSet    FieldSet
	InjectionID int
}

// OverrideRecord records @override(from: X) (and an ignored progressive
// "label" argument, see SPEC_FULL.md "Supplemented features").
type OverrideRecord struct {
	From SubgraphID
}

// FieldDefinition is one field of an object or interface type.
type FieldDefinition struct {
	Name       string
	Parent     EntityID
	OutputType TypeRef
	Arguments  []ArgumentDefinition
	Directives []Directive

	// ExistsInSubgraphIDs is sorted, deduplicated, non-empty (spec.md §3
	// invariant: defaults to "all subgraphs" if empty after SDL parsing).
	ExistsInSubgraphIDs []SubgraphID

	SubgraphTypeRecords map[SubgraphID]TypeRef
	ProvidesRecords     map[SubgraphID]FieldSet
	RequiresRecords     map[SubgraphID]RequiresRecord
	Overrides           map[SubgraphID]OverrideRecord

	Inaccessible bool
	External     map[SubgraphID]bool
	Shareable    bool

	// Pruned is set once ingestion determines the field is resolvable in no
	// remaining subgraph (spec.md §3); such fields are skipped by the
	// operation-graph builder rather than physically removed from the arena.
	Pruned bool
}

// ExistsIn reports whether the field is resolvable in the given subgraph.
func (f *FieldDefinition) ExistsIn(id SubgraphID) bool {
	for _, s := range f.ExistsInSubgraphIDs {
		if s.Equal(id) {
			return true
		}
	}
	return false
}

// OutputTypeIn returns the effective output type of the field in a given
// subgraph, honouring a per-subgraph override if present.
func (f *FieldDefinition) OutputTypeIn(id SubgraphID) TypeRef {
	if t, ok := f.SubgraphTypeRecords[id]; ok {
		return t
	}
	return f.OutputType
}

// KeyRecord is one @key(fields: ..., resolvable: ...) declaration.
type KeyRecord struct {
	FieldSet   FieldSet
	Resolvable bool
}

// EntityDefinition is an Object or Interface type, keyed per subgraph.
type EntityDefinition struct {
	Name   string
	Kind   TypeKind
	Fields map[string]FieldID

	// Keys maps subgraph -> the key field-sets declared there, each with its
	// resolvable flag.
	Keys map[SubgraphID][]KeyRecord

	// ExtensionIn records which subgraphs declared this type as an
	// `extend type`/`extend interface` rather than the base definition.
	ExtensionIn map[SubgraphID]bool

	// NotFullyImplementedInIDs (interfaces only): subgraphs in which at
	// least one possible implementing object fails to declare
	// @join__implements for this interface.
	NotFullyImplementedInIDs []SubgraphID

	Inaccessible bool
}

func (e *EntityDefinition) IsResolvableIn(id SubgraphID) bool {
	for _, k := range e.Keys[id] {
		if k.Resolvable {
			return true
		}
	}
	return false
}

// LookupRecord describes a @composite__lookup field: a resolver entry point
// generated from a field whose argument carries @composite__is.
type LookupRecord struct {
	Field       FieldID
	Entity      EntityID // the type Field resolves to
	Subgraph    SubgraphID
	IsArgument  string   // argument name carrying @composite__is
	InjectsInto TypeRef  // the argument's declared input type
	Injection   FieldSet // the field-selection map referenced by @is
}

// Schema is the normalised composed schema the planner consumes.
type Schema struct {
	Subgraphs []SubgraphMeta

	Fields   []FieldDefinition
	Entities []EntityDefinition

	// EntityByName / FieldByKey provide name-based lookup during ingestion
	// and by the operation parser; the planner itself only ever walks by id.
	EntityByName map[string]EntityID
	fieldByKey   map[string]FieldID // "TypeName.fieldName" -> id

	Lookups []LookupRecord

	RootQueryEntity        EntityID
	RootMutationEntity     EntityID
	HasMutation            bool
	RootSubscriptionEntity EntityID
	HasSubscription        bool
}

// SubgraphMeta is the planner-facing metadata for one composed subgraph.
type SubgraphMeta struct {
	ID   SubgraphID
	Name string
	URL  string
}

func (s *Schema) Field(id FieldID) *FieldDefinition   { return &s.Fields[id] }
func (s *Schema) Entity(id EntityID) *EntityDefinition { return &s.Entities[id] }

// LookupFor returns the @composite__lookup entry point that resolves entity
// in subgraph sg, if one exists, so an extension subgraph without a native
// @key on entity can still be entered as a resolver (spec.md §4.1/§4.2).
func (s *Schema) LookupFor(entity EntityID, sg SubgraphID) (LookupRecord, bool) {
	for _, l := range s.Lookups {
		if l.Entity == entity && l.Subgraph.Equal(sg) {
			return l, true
		}
	}
	return LookupRecord{}, false
}

// FieldByKey looks up a field by "TypeName.fieldName".
func (s *Schema) FieldByKey(typeName, fieldName string) (FieldID, bool) {
	id, ok := s.fieldByKey[typeName+"."+fieldName]
	return id, ok
}

// SubgraphByName resolves a subgraph id by name; ok is false if unknown.
func (s *Schema) SubgraphByName(name string) (SubgraphID, bool) {
	for _, sg := range s.Subgraphs {
		if sg.Name == name {
			return sg.ID, true
		}
	}
	return SubgraphID{}, false
}

func (s *Schema) SubgraphName(id SubgraphID) string {
	if id.Kind == Introspection {
		return "__introspection"
	}
	for _, sg := range s.Subgraphs {
		if sg.ID.Equal(id) {
			return sg.Name
		}
	}
	return ""
}
