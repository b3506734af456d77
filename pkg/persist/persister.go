package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File and directory permissions for state files.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// ErrNotFound is returned by LoadState when no state file exists.
var ErrNotFound = errors.New("state not found")

// StatePath returns the file a state with the given basename is stored in.
func StatePath(dir, basename string, codec Codec) string {
	return filepath.Join(dir, basename+codec.Extension())
}

// SaveState writes state to dir/basename+ext. The file is written to a
// temporary sibling, synced, and renamed into place, so a reader sees either
// the previous state or the new one.
func SaveState(dir, basename string, codec Codec, state any) error {
	mkErr := os.MkdirAll(dir, dirPerm)
	if mkErr != nil {
		return fmt.Errorf("create state dir: %w", mkErr)
	}

	tmp, err := os.CreateTemp(dir, basename+".*.tmp")
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		// No-op once the rename succeeded.
		_ = os.Remove(tmpName)
	}()

	encodeErr := codec.Encode(tmp, state)
	if encodeErr != nil {
		_ = tmp.Close()

		return fmt.Errorf("encode state: %w", encodeErr)
	}

	syncErr := tmp.Sync()
	if syncErr != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync state file: %w", syncErr)
	}

	closeErr := tmp.Close()
	if closeErr != nil {
		return fmt.Errorf("close state file: %w", closeErr)
	}

	chmodErr := os.Chmod(tmpName, filePerm)
	if chmodErr != nil {
		return fmt.Errorf("chmod state file: %w", chmodErr)
	}

	renameErr := os.Rename(tmpName, StatePath(dir, basename, codec))
	if renameErr != nil {
		return fmt.Errorf("replace state file: %w", renameErr)
	}

	return nil
}

// LoadState decodes dir/basename+ext into state, which must be a pointer.
// A missing file yields an error wrapping ErrNotFound.
func LoadState(dir, basename string, codec Codec, state any) error {
	file, err := os.Open(StatePath(dir, basename, codec))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, basename)
	}

	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}

// RemoveState deletes the state file. Removing a missing state is not an error.
func RemoveState(dir, basename string, codec Codec) error {
	err := os.Remove(StatePath(dir, basename, codec))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}

	return nil
}
