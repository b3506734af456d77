// Package cursor persists the resumption position of an audit, one position
// per query fingerprint.
package cursor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// Unset is the position of a cursor that has never been written or was reset.
// Document IDs start at 1.
const Unset int64 = 0

// StateVersion is the current cursor state format version.
const StateVersion = 1

// basenamePrefix names cursor records, followed by the fingerprint.
const basenamePrefix = "audit-blocks-"

// ErrEmptyFingerprint is returned when a fingerprint is missing.
var ErrEmptyFingerprint = errors.New("empty cursor fingerprint")

// Store reads and writes cursor positions. Concurrent runs sharing a
// fingerprint are not coordinated: the last writer wins.
type Store interface {
	// Read returns the stored position and true, or Unset and false.
	Read(ctx context.Context, fingerprint string) (int64, bool, error)
	// Write persists position for fingerprint.
	Write(ctx context.Context, fingerprint string, position int64) error
	// Reset clears the position for fingerprint.
	Reset(ctx context.Context, fingerprint string) error
}

// State is the persisted record of a cursor.
type State struct {
	Version     int    `json:"version"`
	Fingerprint string `json:"fingerprint"`
	Position    int64  `json:"position"`
	UpdatedAt   string `json:"updated_at"`
}

// DefaultDir returns the default cursor directory (~/.blockaudit/cursors).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".blockaudit", "cursors")
}

// Name returns the record name a fingerprint is stored under.
func Name(fingerprint string) string {
	return basenamePrefix + fingerprint
}
