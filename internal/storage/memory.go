package storage

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Veraticus/classbot/internal/model"
)

// MemoryStore keeps collections in process memory. It is used by tests and
// the console transport's --ephemeral mode.
type MemoryStore struct {
	data  map[model.Collection][]json.RawMessage
	locks collectionLocks
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[model.Collection][]json.RawMessage)}
}

// Read implements service.RecordStore.
func (s *MemoryStore) Read(ctx context.Context, c model.Collection) ([]json.RawMessage, error) {
	if err := validateOp(ctx, c); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.data[c]), nil
}

// Replace implements service.RecordStore.
func (s *MemoryStore) Replace(ctx context.Context, c model.Collection, records []json.RawMessage) error {
	if err := validateOp(ctx, c); err != nil {
		return err
	}
	unlock := s.locks.lock(c)
	defer unlock()
	s.set(c, records)
	return nil
}

// Update implements service.RecordStore.
func (s *MemoryStore) Update(ctx context.Context, c model.Collection, fn func([]json.RawMessage) ([]json.RawMessage, error)) error {
	if err := validateOp(ctx, c); err != nil {
		return err
	}
	unlock := s.locks.lock(c)
	defer unlock()

	s.mu.RLock()
	current := cloneRecords(s.data[c])
	s.mu.RUnlock()

	next, err := fn(current)
	if err != nil {
		return err
	}
	s.set(c, next)
	return nil
}

func (s *MemoryStore) set(c model.Collection, records []json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[c] = cloneRecords(records)
}

// Close implements service.RecordStore.
func (s *MemoryStore) Close() error { return nil }

func cloneRecords(records []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(records))
	for i, r := range records {
		out[i] = append(json.RawMessage(nil), r...)
	}
	return out
}
