package filter

import (
	"strings"

	"monitor-pricewatch/models"
)

// Predicate reports whether a record should be kept
type Predicate func(record models.CatalogRecord) bool

// KeepAll keeps every record
func KeepAll(models.CatalogRecord) bool { return true }

// Denylist rejects records whose name contains any keyword, case-insensitive.
// Anything not matching a keyword is kept.
func Denylist(keywords []string) Predicate {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	if len(lowered) == 0 {
		return KeepAll
	}

	return func(record models.CatalogRecord) bool {
		name := strings.ToLower(record.Name)
		for _, k := range lowered {
			if strings.Contains(name, k) {
				return false
			}
		}
		return true
	}
}

// All keeps a record only when every predicate keeps it
func All(predicates ...Predicate) Predicate {
	return func(record models.CatalogRecord) bool {
		for _, p := range predicates {
			if p != nil && !p(record) {
				return false
			}
		}
		return true
	}
}

// Filter applies a predicate to scraped records
type Filter struct {
	keep Predicate
}

// NewFilter creates a new Filter instance; a nil predicate keeps everything
func NewFilter(keep Predicate) *Filter {
	if keep == nil {
		keep = KeepAll
	}
	return &Filter{
		keep: keep,
	}
}

// ApplyFilters returns the records the predicate keeps, in their original order
func (f *Filter) ApplyFilters(records []models.CatalogRecord) []models.CatalogRecord {
	var filtered []models.CatalogRecord

	for _, record := range records {
		if f.keep(record) {
			filtered = append(filtered, record)
		}
	}

	return filtered
}
