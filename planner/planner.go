// Package planner is the top-level facade spec.md §2 describes: given a
// composed federated SDL and a GraphQL operation document, produce the
// query plan (or report why the operation can't be planned).
//
// Grounded on the teacher's planner.PlannerV2 facade
// (federation/planner/planner_v2.go), which owns a *SuperGraphV2 and
// exposes a single Plan(doc) entry point; this package generalises that
// shape to the schema/operation/opgraph/steiner/partition/plan pipeline
// spec.md §2 lays out instead of the teacher's AST-mutation PlanV2 steps.
package planner

import (
	"github.com/n9te9/federation-query-planner/operation"
	"github.com/n9te9/federation-query-planner/opgraph"
	"github.com/n9te9/federation-query-planner/partition"
	"github.com/n9te9/federation-query-planner/plan"
	"github.com/n9te9/federation-query-planner/plannerconfig"
	"github.com/n9te9/federation-query-planner/schema"
	"github.com/n9te9/federation-query-planner/steiner"
	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

// Planner holds one composed schema and plans operations against it. A
// Planner is safe for concurrent use: Plan allocates fresh per-operation
// state (operation, graph, solver, partition) on every call and never
// mutates the schema.
type Planner struct {
	sch *schema.Schema
	cfg plannerconfig.Config
}

// New builds a Planner from composed federated SDL, using the default
// plannerconfig.Config.
func New(sdl string) (*Planner, error) {
	return NewWithConfig(sdl, plannerconfig.Default())
}

// NewWithConfig builds a Planner from composed federated SDL using an
// explicitly supplied Config, e.g. one loaded with plannerconfig.LoadFile.
func NewWithConfig(sdl string, cfg plannerconfig.Config) (*Planner, error) {
	sch, err := schema.Build(sdl)
	if err != nil {
		return nil, err
	}
	return &Planner{sch: sch, cfg: cfg}, nil
}

// Schema exposes the underlying normalised schema, e.g. so a caller can
// validate a document against it before planning.
func (p *Planner) Schema() *schema.Schema { return p.sch }

// Plan parses documentSource, flattens operationName's selections, builds
// the operation graph, solves its Steiner tree, and partitions the result
// into a validated Plan.
func (p *Planner) Plan(documentSource, operationName string) (*plan.Plan, error) {
	doc, err := parseDocument(documentSource)
	if err != nil {
		return nil, err
	}

	opOpts := operation.Options{AllowIntrospection: p.cfg.AllowIntrospection, MaxDepth: p.cfg.MaxOperationDepth}
	op, err := operation.BuildWithOptions(p.sch, doc, operationName, opOpts)
	if err != nil {
		return nil, err
	}

	g, err := opgraph.Build(p.sch, op)
	if err != nil {
		return nil, err
	}

	tree := steiner.NewTree(g.Root, g.Terminals, g)
	solver := steiner.NewSolver(g)
	if err := solver.RunBounded(tree, p.cfg.MaxSteinerRunsPerPlan); err != nil {
		return nil, err
	}

	result := partition.Build(p.sch, g, tree.Nodes, tree.Edges)
	modifiers := partition.AllocateModifiers(p.sch, g, result.PlanRecords)

	return plan.Build(result, modifiers)
}

func parseDocument(source string) (*ast.Document, error) {
	l := lexer.New(source)
	ps := parser.New(l)
	doc := ps.ParseDocument()
	if errs := ps.Errors(); len(errs) > 0 {
		return nil, &DocumentParseError{Errs: errs}
	}
	return doc, nil
}
