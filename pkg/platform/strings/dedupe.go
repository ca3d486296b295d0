// Package strings provides string slice utilities.
package strings

import (
	"strings"
)

// TrimAll trims whitespace from every element. Empty results are kept so callers
// can reject them with positional context.
func TrimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

// FirstDuplicate returns the first value that appears more than once, in input order.
//
// Example:
//
//	FirstDuplicate([]string{"B1", "B2", "B1", "B2"})
//	// Returns: "B1", true
func FirstDuplicate(values []string) (string, bool) {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v, true
		}
		seen[v] = struct{}{}
	}
	return "", false
}
