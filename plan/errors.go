package plan

import "fmt"

// InvalidPlanError reports a violation of one of spec.md §7's plan
// invariants (acyclicity, input/selection containment). The planner treats
// this as an internal error: a correctly built operation graph and
// partitioner should never produce one.
type InvalidPlanError struct {
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid plan: %s", e.Reason)
}
