package schema_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/n9te9/federation-query-planner/schema"
)

const testSupergraphSDL = `
enum join__Graph {
  PRODUCTS @join__graph(name: "products", url: "http://products")
  REVIEWS @join__graph(name: "reviews", url: "http://reviews")
}

type Query {
  product(id: ID!): Product @join__field(graph: PRODUCTS)
}

type Product
  @join__type(graph: PRODUCTS, key: "id")
  @join__type(graph: REVIEWS, key: "id")
{
  id: ID!
  name: String! @join__field(graph: PRODUCTS)
  weight: Int! @join__field(graph: PRODUCTS)
  reviews: [Review!]! @join__field(graph: REVIEWS)
  shippingEstimate: Int! @join__field(graph: REVIEWS, requires: "weight")
}

type Review @join__type(graph: REVIEWS) {
  id: ID!
  body: String!
}
`

func TestBuild_SubgraphsAndKeys(t *testing.T) {
	sch, err := schema.Build(testSupergraphSDL)
	if err != nil {
		t.Fatalf("Build: unexpected error: %v", err)
	}

	if len(sch.Subgraphs) != 2 {
		t.Fatalf("Subgraphs: got %d, want 2", len(sch.Subgraphs))
	}

	products, ok := sch.SubgraphByName("products")
	if !ok {
		t.Fatal("SubgraphByName(products): not found")
	}
	reviews, ok := sch.SubgraphByName("reviews")
	if !ok {
		t.Fatal("SubgraphByName(reviews): not found")
	}

	productEID, ok := sch.EntityByName["Product"]
	if !ok {
		t.Fatal("EntityByName[Product]: not found")
	}
	product := sch.Entity(productEID)
	if !product.IsResolvableIn(products) || !product.IsResolvableIn(reviews) {
		t.Errorf("Product should have a resolvable key in both subgraphs, got keys=%v", product.Keys)
	}

	shipFID, ok := sch.FieldByKey("Product", "shippingEstimate")
	if !ok {
		t.Fatal("FieldByKey(Product.shippingEstimate): not found")
	}
	rec, ok := sch.Field(shipFID).RequiresRecords[reviews]
	if !ok {
		t.Fatal("shippingEstimate: expected a @requires record in the reviews subgraph")
	}
	if diff := cmp.Diff([]string{"weight"}, rec.FieldSet.FieldNames()); diff != "" {
		t.Errorf("shippingEstimate @requires fields (-want +got):\n%s", diff)
	}

	wantSubgraphNames := []string{"products", "reviews"}
	var gotSubgraphNames []string
	for _, sg := range sch.Subgraphs {
		gotSubgraphNames = append(gotSubgraphNames, sg.Name)
	}
	if diff := cmp.Diff(wantSubgraphNames, gotSubgraphNames); diff != "" {
		t.Errorf("subgraph names (-want +got):\n%s", diff)
	}
}

func TestBuild_OverridePrunesSubgraph(t *testing.T) {
	sdl := `
enum join__Graph {
  A @join__graph(name: "a", url: "http://a")
  B @join__graph(name: "b", url: "http://b")
}
type Query { widget: Widget @join__field(graph: A) }
type Widget @join__type(graph: A, key: "id") @join__type(graph: B, key: "id") {
  id: ID!
  price: Int! @join__field(graph: A) @join__field(graph: B, override: "a")
}
`
	sch, err := schema.Build(sdl)
	if err != nil {
		t.Fatalf("Build: unexpected error: %v", err)
	}
	a, _ := sch.SubgraphByName("a")
	b, _ := sch.SubgraphByName("b")

	fid, ok := sch.FieldByKey("Widget", "price")
	if !ok {
		t.Fatal("FieldByKey(Widget.price): not found")
	}
	f := sch.Field(fid)
	if f.ExistsIn(a) {
		t.Errorf("price should no longer exist in subgraph a after @override(from: \"a\")")
	}
	if !f.ExistsIn(b) {
		t.Errorf("price should still exist in subgraph b")
	}
}

func TestBuild_InaccessiblePropagatesToOwningType(t *testing.T) {
	sdl := `
enum join__Graph {
  A @join__graph(name: "a", url: "http://a")
}
type Query { secret: Secret @join__field(graph: A) }
type Secret @join__type(graph: A) {
  value: String! @inaccessible
}
`
	sch, err := schema.Build(sdl)
	if err != nil {
		t.Fatalf("Build: unexpected error: %v", err)
	}
	eid, ok := sch.EntityByName["Secret"]
	if !ok {
		t.Fatal("EntityByName[Secret]: not found")
	}
	if !sch.Entity(eid).Inaccessible {
		t.Errorf("Secret should become inaccessible once its only field is inaccessible")
	}
}

func TestBuild_LookupRequiresMatchingKey(t *testing.T) {
	sdl := `
enum join__Graph {
  A @join__graph(name: "a", url: "http://a")
}
type Query {
  widgetLookup(ref: WidgetLookupInput! @composite__is(field: "serial")): Widget @composite__lookup @join__field(graph: A)
}
input WidgetLookupInput { serial: String! }
type Widget @join__type(graph: A, key: "sku") {
  sku: ID!
}
`
	_, err := schema.Build(sdl)
	if err == nil {
		t.Fatal("Build: expected an error since @is(field: \"serial\") has no matching @key on Widget")
	}
	if !strings.Contains(err.Error(), "no matching @key") {
		t.Errorf("Build error: got %q, want it to mention the missing matching key", err.Error())
	}
}
