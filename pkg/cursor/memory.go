package cursor

import (
	"context"
	"sync"
)

// MemoryStore keeps cursors in process memory. Useful for tests and for
// one-shot audits that must not leave state behind.
type MemoryStore struct {
	mu        sync.Mutex
	positions map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{positions: make(map[string]int64)}
}

// Read implements Store.
func (s *MemoryStore) Read(_ context.Context, fingerprint string) (int64, bool, error) {
	if fingerprint == "" {
		return Unset, false, ErrEmptyFingerprint
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	position, ok := s.positions[fingerprint]

	return position, ok, nil
}

// Write implements Store.
func (s *MemoryStore) Write(_ context.Context, fingerprint string, position int64) error {
	if fingerprint == "" {
		return ErrEmptyFingerprint
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[fingerprint] = position

	return nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, fingerprint string) error {
	if fingerprint == "" {
		return ErrEmptyFingerprint
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.positions, fingerprint)

	return nil
}
