package steiner

// SolveError wraps a failure to complete the Steiner tree approximation,
// which should only happen if the operation graph builder let an
// unreachable terminal through (spec.md §4.2's coverage check is supposed
// to prevent this).
type SolveError struct {
	Reason string
}

func (e *SolveError) Error() string { return "steiner: " + e.Reason }
