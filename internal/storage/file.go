package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/model"
)

// FileStore keeps each collection in <dir>/<collection>.json.
type FileStore struct {
	dir   string
	locks collectionLocks
}

// NewFileStore opens a JSON file store rooted at dir, creating the directory
// and an empty file for every collection that does not exist yet.
func NewFileStore(dir string) (*FileStore, error) {
	if err := validateString(dir, "dir"); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &FileStore{dir: dir}
	for _, c := range model.Collections() {
		path := s.path(c)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := s.write(c, nil); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

// Dir returns the data directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(c model.Collection) string {
	return filepath.Join(s.dir, string(c)+".json")
}

// Read implements service.RecordStore.
func (s *FileStore) Read(ctx context.Context, c model.Collection) ([]json.RawMessage, error) {
	if err := validateOp(ctx, c); err != nil {
		return nil, err
	}
	return s.read(c)
}

func (s *FileStore) read(c model.Collection) ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path(c))
	if errors.Is(err, os.ErrNotExist) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", common.ErrStorage, c, err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrDatabaseCorrupted, c, err)
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}

// Replace implements service.RecordStore.
func (s *FileStore) Replace(ctx context.Context, c model.Collection, records []json.RawMessage) error {
	if err := validateOp(ctx, c); err != nil {
		return err
	}
	unlock := s.locks.lock(c)
	defer unlock()
	return s.write(c, records)
}

// Update implements service.RecordStore.
func (s *FileStore) Update(ctx context.Context, c model.Collection, fn func([]json.RawMessage) ([]json.RawMessage, error)) error {
	if err := validateOp(ctx, c); err != nil {
		return err
	}
	unlock := s.locks.lock(c)
	defer unlock()

	records, err := s.read(c)
	if err != nil {
		return err
	}
	next, err := fn(records)
	if err != nil {
		return err
	}
	return s.write(c, next)
}

// write replaces the file through a temp file and rename so a crash never
// leaves a truncated collection behind.
func (s *FileStore) write(c model.Collection, records []json.RawMessage) error {
	if records == nil {
		records = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", common.ErrStorage, c, err)
	}

	tmp, err := os.CreateTemp(s.dir, string(c)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", common.ErrStorage, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: writing %s: %w", common.ErrStorage, c, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: syncing %s: %w", common.ErrStorage, c, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: closing %s: %w", common.ErrStorage, c, err)
	}
	if err := os.Rename(tmpName, s.path(c)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: renaming %s: %w", common.ErrStorage, c, err)
	}
	return nil
}

// Close implements service.RecordStore.
func (s *FileStore) Close() error { return nil }
