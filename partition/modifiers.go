package partition

import (
	"sort"
	"strings"

	"github.com/n9te9/federation-query-planner/operation"
	"github.com/n9te9/federation-query-planner/opgraph"
	"github.com/n9te9/federation-query-planner/schema"
)

// ModifierTargetKind distinguishes what an @extension authorization
// directive's arguments close over.
type ModifierTargetKind uint8

const (
	TargetField ModifierTargetKind = iota
	TargetFieldWithArguments
	TargetDefinition
)

// ModifierTarget is the Extension rule's payload (original_source's
// ModifierTarget enum).
type ModifierTarget struct {
	Kind   ModifierTargetKind
	Field  schema.FieldID
	ArgsKey string
}

// QueryModifierRuleKind tags the QueryModifierRule variants spec.md §6 names.
type QueryModifierRuleKind uint8

const (
	RuleAuthenticated QueryModifierRuleKind = iota
	RuleRequiresScopes
	RuleAuthorizedField
	RuleAuthorizedFieldWithArguments
	RuleAuthorizedDefinition
	RuleExtension
	RuleExecutable
)

// QueryModifierRule is comparable by value so it can be used directly as a
// map key for dedup (original_source dedups on an im::HashMap<Rule, ix>).
// Identity for field-scoped rules is the schema field itself, not a raw
// per-occurrence directive id: two query-field nodes that both select the
// same schema field collapse onto the same rule. Repeated occurrences of one
// directive kind on a single field also collapse onto one rule, since the
// rule carries no per-occurrence id.
type QueryModifierRule struct {
	Kind          QueryModifierRuleKind
	Field         schema.FieldID // RuleRequiresScopes, RuleAuthorizedField(WithArguments)
	Entity        schema.EntityID // RuleAuthorizedDefinition
	ArgsKey       string          // RuleAuthorizedFieldWithArguments, RuleExecutable
	Target        ModifierTarget  // RuleExtension
	ExtensionName string          // RuleExtension, RuleExecutable (directive name for grouping)
}

// QueryModifierRecord pairs a rule with the fields it impacts.
type QueryModifierRecord struct {
	Rule              QueryModifierRule
	ImpactsRootObject bool
	ImpactedFields    []opgraph.NodeID
}

// ResponseModifierRuleKind tags the ResponseModifierRule variants spec.md
// §6 names.
type ResponseModifierRuleKind uint8

const (
	RuleAuthorizedEdgeChild ResponseModifierRuleKind = iota
	RuleAuthorizedParentEdge
)

type ResponseModifierRule struct {
	Kind  ResponseModifierRuleKind
	Field schema.FieldID
}

type ResponseModifierRecord struct {
	Rule           ResponseModifierRule
	ImpactedFields []opgraph.NodeID
}

// ModifierTable is the deduplicated, grouped modifier output spec.md §6
// describes: native (non-extension) rules first, then extension rules
// grouped by extension and, within that, by directive name.
type ModifierTable struct {
	QueryModifiers    []QueryModifierRecord
	ResponseModifiers []ResponseModifierRecord

	NativeCount int                 // QueryModifiers[:NativeCount] are non-extension rules
	ByExtension map[string][]int    // extension name -> QueryModifiers indices
	ByDirective map[string][]int    // directive name -> QueryModifiers indices
}

// AllocateModifiers walks every field a plan record resolves and derives
// the query/response modifiers its directives require, deduplicating by
// rule value (original_source's populate_modifiers_after_partition_generation).
func AllocateModifiers(sch *schema.Schema, g *opgraph.Graph, plans []PlanRecord) *ModifierTable {
	queryIx := map[QueryModifierRule]int{}
	respIx := map[ResponseModifierRule]int{}
	var queryMods []QueryModifierRecord
	var respMods []ResponseModifierRecord

	addQuery := func(rule QueryModifierRule, field opgraph.NodeID) {
		ix, ok := queryIx[rule]
		if !ok {
			ix = len(queryMods)
			queryIx[rule] = ix
			queryMods = append(queryMods, QueryModifierRecord{Rule: rule})
		}
		queryMods[ix].ImpactedFields = append(queryMods[ix].ImpactedFields, field)
	}
	addResp := func(rule ResponseModifierRule, field opgraph.NodeID) {
		ix, ok := respIx[rule]
		if !ok {
			ix = len(respMods)
			respIx[rule] = ix
			respMods = append(respMods, ResponseModifierRecord{Rule: rule})
		}
		respMods[ix].ImpactedFields = append(respMods[ix].ImpactedFields, field)
	}

	seenField := map[opgraph.NodeID]bool{}
	for _, plan := range plans {
		for _, qf := range plan.Fields {
			if seenField[qf] {
				continue
			}
			seenField[qf] = true

			n := g.Nodes[qf]
			if n.SchemaField == schema.NoField {
				continue
			}
			fd := sch.Field(n.SchemaField)
			for _, d := range fd.Directives {
				switch d.Kind {
				case schema.DirAuthenticated:
					addQuery(QueryModifierRule{Kind: RuleAuthenticated}, qf)
				case schema.DirRequiresScopes:
					addQuery(QueryModifierRule{Kind: RuleRequiresScopes, Field: n.SchemaField}, qf)
				case schema.DirAuthorized:
					switch d.AuthorizedArgKind {
					case schema.AuthorizedNode:
						addResp(ResponseModifierRule{Kind: RuleAuthorizedEdgeChild, Field: n.SchemaField}, qf)
					case schema.AuthorizedFields:
						addResp(ResponseModifierRule{Kind: RuleAuthorizedParentEdge, Field: n.SchemaField}, qf)
					default:
						if d.HasArguments {
							addQuery(QueryModifierRule{Kind: RuleAuthorizedFieldWithArguments, Field: n.SchemaField, ArgsKey: argsKey(n.Arguments)}, qf)
						} else {
							addQuery(QueryModifierRule{Kind: RuleAuthorizedField, Field: n.SchemaField}, qf)
						}
					}
				case schema.DirExtension:
					if !d.IsAuthz {
						continue
					}
					switch d.Stage {
					case schema.StageStatic:
						addQuery(QueryModifierRule{
							Kind: RuleExtension, ExtensionName: d.ExtensionName,
							Target: ModifierTarget{Kind: TargetField, Field: n.SchemaField},
						}, qf)
					case schema.StageQuery:
						addQuery(QueryModifierRule{
							Kind: RuleExtension, ExtensionName: d.ExtensionName,
							Target: ModifierTarget{Kind: TargetFieldWithArguments, Field: n.SchemaField, ArgsKey: argsKey(n.Arguments)},
						}, qf)
					}
				case schema.DirExecutable:
					addQuery(QueryModifierRule{Kind: RuleExecutable, ExtensionName: d.Name, ArgsKey: argsKey(n.Arguments)}, qf)
				}
			}
		}
	}

	// original_source also replays this dispatch for the operation's root
	// object type directives; our schema model only ever populates
	// field-level Directives (schema.EntityDefinition carries no
	// type-level directive list, since parse.go's collectType never
	// extracts one), so there is nothing further to contribute here.
	return build(queryMods, respMods)
}

func argsKey(args []operation.Argument) string {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(a.Name)
		b.WriteByte('=')
		b.WriteString(a.Literal)
		b.WriteByte(';')
	}
	return b.String()
}

// build sorts native rules (in insertion order) before extension rules
// (ordered by extension/directive name) and computes the
// by-extension/by-directive grouping indices (a map-based equivalent of
// original_source's sorted IdRange columns: same grouping semantics,
// without committing to its specific contiguous-range encoding).
func build(queryMods []QueryModifierRecord, respMods []ResponseModifierRecord) *ModifierTable {
	sort.SliceStable(queryMods, func(i, j int) bool {
		iExt := queryMods[i].Rule.Kind == RuleExtension || queryMods[i].Rule.Kind == RuleExecutable
		jExt := queryMods[j].Rule.Kind == RuleExtension || queryMods[j].Rule.Kind == RuleExecutable
		if iExt != jExt {
			return !iExt
		}
		if iExt {
			return queryMods[i].Rule.ExtensionName < queryMods[j].Rule.ExtensionName
		}
		return false
	})

	native := 0
	for native < len(queryMods) {
		k := queryMods[native].Rule.Kind
		if k == RuleExtension || k == RuleExecutable {
			break
		}
		native++
	}

	byExt := map[string][]int{}
	byDir := map[string][]int{}
	for i := native; i < len(queryMods); i++ {
		name := queryMods[i].Rule.ExtensionName
		byExt[name] = append(byExt[name], i)
		byDir[name] = append(byDir[name], i)
	}

	return &ModifierTable{
		QueryModifiers:    queryMods,
		ResponseModifiers: respMods,
		NativeCount:       native,
		ByExtension:       byExt,
		ByDirective:       byDir,
	}
}
