package opgraph

import "fmt"

// UnsolvableOperationError is spec.md §7's UnsolvableOperation: an
// indispensable query field has no resolver coverage once unreachable
// resolvers have been pruned.
type UnsolvableOperationError struct {
	FieldPath []string
	Reason    string
}

func (e *UnsolvableOperationError) Error() string {
	return fmt.Sprintf("cannot plan field %v: %s", e.FieldPath, e.Reason)
}
