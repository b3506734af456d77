package cursor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/blockaudit/pkg/persist"
)

// FileStore keeps each cursor in its own JSON file under Dir.
type FileStore struct {
	Dir   string
	codec persist.Codec
}

// NewFileStore creates a file-backed store rooted at dir. An empty dir uses DefaultDir.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir()
	}

	return &FileStore{
		Dir:   dir,
		codec: persist.NewJSONCodec(),
	}
}

// Path returns the file that holds the cursor for fingerprint.
func (s *FileStore) Path(fingerprint string) string {
	return persist.StatePath(s.Dir, Name(fingerprint), s.codec)
}

// Read implements Store.
func (s *FileStore) Read(_ context.Context, fingerprint string) (int64, bool, error) {
	if fingerprint == "" {
		return Unset, false, ErrEmptyFingerprint
	}

	var state State

	err := persist.LoadState(s.Dir, Name(fingerprint), s.codec, &state)
	if errors.Is(err, persist.ErrNotFound) {
		return Unset, false, nil
	}

	if err != nil {
		return Unset, false, fmt.Errorf("read cursor: %w", err)
	}

	if state.Position == Unset {
		return Unset, false, nil
	}

	return state.Position, true, nil
}

// Write implements Store.
func (s *FileStore) Write(_ context.Context, fingerprint string, position int64) error {
	if fingerprint == "" {
		return ErrEmptyFingerprint
	}

	state := State{
		Version:     StateVersion,
		Fingerprint: fingerprint,
		Position:    position,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	err := persist.SaveState(s.Dir, Name(fingerprint), s.codec, state)
	if err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}

	return nil
}

// Reset implements Store.
func (s *FileStore) Reset(_ context.Context, fingerprint string) error {
	if fingerprint == "" {
		return ErrEmptyFingerprint
	}

	err := persist.RemoveState(s.Dir, Name(fingerprint), s.codec)
	if err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}

	return nil
}
