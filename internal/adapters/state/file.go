// Package state persists the per-asset deferred-order map as a single JSON
// file. Writes go to a temp file first and are renamed into place, so a
// crash mid-write leaves the previous committed state intact.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alejandrodnm/polysync/internal/domain"
)

// FileStore implements ports.StateStore on a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given path. The parent
// directory is created if missing.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("state.NewFileStore: mkdir %q: %w", dir, err)
		}
	}
	return &FileStore{path: path}, nil
}

// Load reads the persisted state. A missing or unparseable file yields an
// empty map: starting over is safe because the reconciler re-derives any
// resting orders from the venue on the first cycle.
func (fs *FileStore) Load() (map[string]domain.DeferredOrderState, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]domain.DeferredOrderState{}, nil
		}
		return nil, fmt.Errorf("state.Load: read %q: %w", fs.path, err)
	}

	var states map[string]domain.DeferredOrderState
	if err := json.Unmarshal(data, &states); err != nil {
		slog.Warn("state: unparseable state file, starting empty", "path", fs.path, "err", err)
		return map[string]domain.DeferredOrderState{}, nil
	}
	if states == nil {
		states = map[string]domain.DeferredOrderState{}
	}
	return states, nil
}

// Save writes the state atomically: temp file in the same directory, fsync,
// then rename over the target.
func (fs *FileStore) Save(states map[string]domain.DeferredOrderState) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("state.Save: marshal: %w", err)
	}

	dir := filepath.Dir(fs.path)
	tmp, err := os.CreateTemp(dir, ".polysync-state-*")
	if err != nil {
		return fmt.Errorf("state.Save: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("state.Save: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("state.Save: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state.Save: close temp: %w", err)
	}

	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state.Save: rename: %w", err)
	}
	return nil
}
