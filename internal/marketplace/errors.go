package marketplace

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnavailable marks transport failures, timeouts and 5xx responses.
var ErrUnavailable = errors.New("marketplace: service unavailable")

// ValidationError is returned for 400 responses that carry per-field messages.
type ValidationError struct {
	Status int
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "marketplace: validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return fmt.Sprintf("marketplace: validation failed (%d): %s", e.Status, strings.Join(parts, ", "))
}

// Code exposes a stable identifier for handler summaries.
func (e *ValidationError) Code() string { return "validation" }

// Has reports whether field has at least one message.
func (e *ValidationError) Has(field string) bool {
	if e == nil {
		return false
	}
	return len(e.Fields[field]) > 0
}

// IsBudgetError reports whether err is a validation error about the budget field.
func IsBudgetError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Has("budget")
}
