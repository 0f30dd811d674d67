package operation_test

import (
	"testing"

	"github.com/n9te9/federation-query-planner/operation"
	"github.com/n9te9/federation-query-planner/schema"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

const testSDL = `
enum join__Graph {
  A @join__graph(name: "a", url: "http://a")
}
type Query {
  product(id: ID!): Product @join__field(graph: A)
}
type Product @join__type(graph: A, key: "id") {
  id: ID!
  name: String!
}
interface Animal @join__type(graph: A) { name: String! }
type Dog implements Animal @join__type(graph: A) { name: String! breed: String! }
`

func TestBuild_FlattensFragments(t *testing.T) {
	sch, err := schema.Build(testSDL)
	if err != nil {
		t.Fatalf("schema.Build: %v", err)
	}

	src := `
query Q {
  product(id: "1") {
    id
    ... on Product {
      name
    }
    ...Extra
  }
}
fragment Extra on Product {
  __typename
}
`
	l := lexer.New(src)
	p := parser.New(l)
	doc := p.ParseDocument()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("document parse errors: %v", errs)
	}

	op, err := operation.Build(sch, doc, "Q")
	if err != nil {
		t.Fatalf("operation.Build: %v", err)
	}

	roots := op.RootFields()
	if len(roots) != 1 {
		t.Fatalf("RootFields: got %d, want 1", len(roots))
	}
	product := op.Fields[roots[0]]
	if product.ResponseKey != "product" {
		t.Fatalf("root field: got %q, want %q", product.ResponseKey, "product")
	}

	children := op.Children(roots[0])
	var names []string
	for _, cid := range children {
		names = append(names, op.Fields[cid].ResponseKey)
	}
	want := []string{"id", "name", "__typename"}
	if len(names) != len(want) {
		t.Fatalf("flattened children: got %v, want %v", names, want)
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("flattened children[%d]: got %q, want %q", i, names[i], n)
		}
	}
}

func TestBuild_RejectsIntrospectionWhenDisallowed(t *testing.T) {
	sch, err := schema.Build(testSDL)
	if err != nil {
		t.Fatalf("schema.Build: %v", err)
	}
	src := `query Q { __schema { types { name } } }`
	l := lexer.New(src)
	p := parser.New(l)
	doc := p.ParseDocument()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("document parse errors: %v", errs)
	}

	opts := operation.Options{AllowIntrospection: false, MaxDepth: 0}
	if _, err := operation.BuildWithOptions(sch, doc, "Q", opts); err == nil {
		t.Fatal("BuildWithOptions: expected an error when introspection is disallowed")
	}
}

func TestBuild_UnknownFieldIsParseError(t *testing.T) {
	sch, err := schema.Build(testSDL)
	if err != nil {
		t.Fatalf("schema.Build: %v", err)
	}
	src := `query Q { product(id: "1") { doesNotExist } }`
	l := lexer.New(src)
	p := parser.New(l)
	doc := p.ParseDocument()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("document parse errors: %v", errs)
	}

	if _, err := operation.Build(sch, doc, "Q"); err == nil {
		t.Fatal("Build: expected a ParseError for an unknown field")
	}
}
