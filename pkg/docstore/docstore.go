// Package docstore provides the document sources an audit scans: an SQLite
// table and an in-memory store.
package docstore

import (
	"context"
	"errors"
	"slices"

	"github.com/Sumatoshi-tech/blockaudit/pkg/query"
)

// ErrInvalidLimit is returned when a fetch asks for a non-positive batch size.
var ErrInvalidLimit = errors.New("fetch limit must be positive")

// Document is one stored document.
type Document struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Author   string `json:"author,omitempty"`
	Locator  string `json:"locator"`
	Content  string `json:"content"`
}

// Store is a document source that supports ordered range queries by ID.
type Store interface {
	// Fetch returns up to limit documents matching spec with ID > afterID,
	// ordered by ID ascending.
	Fetch(ctx context.Context, spec query.Spec, afterID int64, limit int) ([]Document, error)
	// Count returns how many documents matching spec have ID > afterID.
	Count(ctx context.Context, spec query.Spec, afterID int64) (int64, error)
	// Categories returns every distinct category present, sorted.
	Categories(ctx context.Context) ([]string, error)
}

// columns maps filter keys to document fields.
var columns = map[string]string{
	query.KeyCategory: "category",
	query.KeyStatus:   "status",
	query.KeyAuthor:   "author",
}

// activeFilters returns the filter keys that restrict results, in spec order.
func activeFilters(spec query.Spec) []string {
	keys := make([]string, 0, len(columns))

	for _, key := range spec.Keys() {
		if key == query.KeyCategory && spec.MatchesAnyCategory() {
			continue
		}

		keys = append(keys, key)
	}

	return keys
}

func fieldValue(doc Document, key string) string {
	switch key {
	case query.KeyCategory:
		return doc.Category
	case query.KeyStatus:
		return doc.Status
	case query.KeyAuthor:
		return doc.Author
	default:
		return ""
	}
}

// Matches reports whether doc satisfies every filter in spec.
func Matches(doc Document, spec query.Spec) bool {
	for _, key := range activeFilters(spec) {
		if !slices.Contains(spec.Values(key), fieldValue(doc, key)) {
			return false
		}
	}

	return true
}
