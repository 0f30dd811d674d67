package planner

import "fmt"

// DocumentParseError wraps the underlying graphql-parser error list
// (same %v-formatting idiom the teacher uses in federation/graph/subgraph_v2.go
// and gateway/gateway.go, since the parser only exposes its errors as an
// opaque slice).
type DocumentParseError struct {
	Errs any
}

func (e *DocumentParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Errs)
}
