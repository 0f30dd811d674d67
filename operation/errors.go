package operation

import "fmt"

// ParseError is returned when the operation document itself cannot be
// turned into a flat Operation (wrong operation name, empty selection set,
// a selection referencing a field the schema doesn't define). These are
// distinct from planning failures (spec.md §7 kind 2 is about coverage,
// not about the document's own shape).
type ParseError struct {
	Path    []string
	Message string
}

func (e *ParseError) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", joinPath(e.Path), e.Message)
}

func joinPath(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}
