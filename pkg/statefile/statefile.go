package statefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Read decodes the JSON document at path into v.
// A missing file is not an error: found is false and v is untouched.
// A file that cannot be decoded returns ErrCorrupt.
func Read(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, errors.Join(ErrRead, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, errors.Join(ErrCorrupt, err)
	}
	return true, nil
}

// Write encodes v as indented JSON and replaces path atomically: the data is
// written to a temporary file in the same directory, synced, then renamed
// over the target. Readers see either the old document or the new one.
func Write(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Join(ErrWrite, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Join(ErrWrite, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Join(ErrWrite, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Join(ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Join(ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(ErrWrite, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errors.Join(ErrWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Join(ErrWrite, fmt.Errorf("rename %s: %w", filepath.Base(path), err))
	}
	return nil
}
