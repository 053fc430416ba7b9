package library

import (
	"strings"

	"golang.org/x/text/cases"
)

// DefaultPageSize is used when a caller passes a non-positive page size.
const DefaultPageSize = 10

// foldQuery applies Unicode case folding.
func foldQuery(s string) string {
	return cases.Fold().String(s)
}

// matchesQuery reports whether the folded query is a substring of the name or description.
func matchesQuery(e *Entry, foldedQuery string) bool {
	if foldedQuery == "" {
		return true
	}
	if strings.Contains(foldQuery(e.Name), foldedQuery) {
		return true
	}
	return e.Description != "" && strings.Contains(foldQuery(e.Description), foldedQuery)
}

// filterEntries runs the scope, search and type filters in that order, keeping collection order.
func filterEntries(entries []*Entry, scope ID, foldedQuery string, kinds KindFilter) []Entry {
	result := make([]Entry, 0)
	for _, e := range entries {
		if e.ParentID != scope {
			continue
		}
		if !matchesQuery(e, foldedQuery) {
			continue
		}
		if !kinds.Matches(e.Kind) {
			continue
		}
		result = append(result, *e)
	}
	return result
}

// Paginate returns the 1-based page of entries. Out-of-range pages are empty; nothing is clamped.
func Paginate(entries []Entry, page, pageSize int) []Entry {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	// Compare page counts before multiplying so huge pages cannot overflow.
	if page < 1 || len(entries) == 0 || page-1 > (len(entries)-1)/pageSize {
		return []Entry{}
	}
	start := (page - 1) * pageSize
	end := start + min(pageSize, len(entries)-start)
	return append([]Entry(nil), entries[start:end]...)
}

// TotalPages is max(1, ceil(count/pageSize)).
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if count <= 0 {
		return 1
	}
	return (count-1)/pageSize + 1
}
