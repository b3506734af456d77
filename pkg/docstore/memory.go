package docstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Sumatoshi-tech/blockaudit/pkg/query"
)

// MemoryStore serves documents from memory, ordered by ID.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryStore creates a store holding docs.
func NewMemoryStore(docs ...Document) *MemoryStore {
	s := &MemoryStore{}
	s.Add(docs...)

	return s
}

// Add inserts documents, replacing ones with equal IDs.
func (s *MemoryStore) Add(docs ...Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		idx, found := slices.BinarySearchFunc(s.docs, doc.ID, func(d Document, id int64) int {
			return compareIDs(d.ID, id)
		})
		if found {
			s.docs[idx] = doc

			continue
		}

		s.docs = slices.Insert(s.docs, idx, doc)
	}
}

func compareIDs(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Fetch implements Store.
func (s *MemoryStore) Fetch(ctx context.Context, spec query.Spec, afterID int64, limit int) ([]Document, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	ctxErr := ctx.Err()
	if ctxErr != nil {
		return nil, fmt.Errorf("fetch documents: %w", ctxErr)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document

	for _, doc := range s.docs {
		if doc.ID <= afterID || !Matches(doc, spec) {
			continue
		}

		out = append(out, doc)
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context, spec query.Spec, afterID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64

	for _, doc := range s.docs {
		if doc.ID > afterID && Matches(doc, spec) {
			n++
		}
	}

	return n, nil
}

// Categories implements Store.
func (s *MemoryStore) Categories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var categories []string

	for _, doc := range s.docs {
		if !slices.Contains(categories, doc.Category) {
			categories = append(categories, doc.Category)
		}
	}

	slices.Sort(categories)

	return categories, nil
}
