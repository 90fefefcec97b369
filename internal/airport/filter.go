package airport

import "strings"

// DefaultExcludedTypes are catalog types that are never screened.
var DefaultExcludedTypes = []string{"heliport", "seaplane_base", "closed"}

// TypeFilter rejects records whose catalog type is in an excluded set.
type TypeFilter struct {
	excluded map[string]bool
}

// NewTypeFilter builds a filter. Matching is case-insensitive.
func NewTypeFilter(excluded []string) TypeFilter {
	m := make(map[string]bool, len(excluded))
	for _, t := range excluded {
		m[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return TypeFilter{excluded: m}
}

// Excluded reports whether r should be skipped.
func (f TypeFilter) Excluded(r Record) bool {
	return f.excluded[strings.ToLower(strings.TrimSpace(r.Type))]
}
