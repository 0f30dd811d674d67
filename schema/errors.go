package schema

import "fmt"

// InvalidSchemaError is one schema-consistency error detected at ingestion
// time (spec.md §7, kind 1). Ingestion collects these into a slice so that
// multiple issues can be reported from a single composition pass, instead
// of stopping at the first one.
type InvalidSchemaError struct {
	Site    string // e.g. "Product.shippingCost" or "@key(Product)"
	Message string
}

func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("invalid schema at %s: %s", e.Site, e.Message)
}

// ErrorList accumulates InvalidSchemaErrors across an ingestion pass.
type ErrorList struct {
	Errors []*InvalidSchemaError
}

func (l *ErrorList) Add(site, format string, args ...any) {
	l.Errors = append(l.Errors, &InvalidSchemaError{Site: site, Message: fmt.Sprintf(format, args...)})
}

func (l *ErrorList) HasErrors() bool { return len(l.Errors) > 0 }

func (l *ErrorList) Error() string {
	if len(l.Errors) == 0 {
		return ""
	}
	if len(l.Errors) == 1 {
		return l.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more schema error(s))", l.Errors[0].Error(), len(l.Errors)-1)
}

// AsError returns l as an error if it carries any entries, nil otherwise.
// Mirrors the teacher's plain-error-value style (no panics, no sentinel
// wrapping) while letting callers treat ingestion as a single fallible step.
func (l *ErrorList) AsError() error {
	if l.HasErrors() {
		return l
	}
	return nil
}
