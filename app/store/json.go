package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// JSONFile stores subscribers as an indented JSON array of ids.
type JSONFile struct {
	path string
}

// NewJSONFile makes a storage backed by the file at path.
func NewJSONFile(path string) *JSONFile { return &JSONFile{path: path} }

// Load reads ids from the file.
func (f *JSONFile) Load(context.Context) ([]int64, error) {
	bts, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", f.path, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	var ids []int64
	if err = json.Unmarshal(bts, &ids); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", f.path, err)
	}

	// "null" decodes without an error, but it is not a list of subscribers
	if ids == nil {
		return nil, fmt.Errorf("unmarshal %s: %w", f.path, ErrCorrupted)
	}

	return ids, nil
}

// defaultFileMode is used when the file doesn't exist yet.
const defaultFileMode fs.FileMode = 0o644

// mode returns permissions of the existing file, so that saving
// doesn't change them.
func (f *JSONFile) mode() fs.FileMode {
	fi, err := os.Stat(f.path)
	if err != nil {
		return defaultFileMode
	}
	return fi.Mode().Perm()
}

// Save writes ids to a temporary file and renames it over the target,
// so readers never observe a partially written file.
func (f *JSONFile) Save(_ context.Context, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}

	bts, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ids: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(bts); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}

	if err = tmp.Chmod(f.mode()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}

	if err = os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmp.Name(), f.path, err)
	}

	return nil
}
