package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Veraticus/classbot/internal/common"
	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/service"
)

// Entity is a record with an integer identifier.
type Entity interface {
	GetID() int64
}

// Table gives typed access to one collection of a RecordStore.
type Table[T Entity] struct {
	store      service.RecordStore
	collection model.Collection
}

// NewTable binds a typed table to a collection.
func NewTable[T Entity](store service.RecordStore, c model.Collection) *Table[T] {
	return &Table[T]{store: store, collection: c}
}

// Collection returns the collection name.
func (t *Table[T]) Collection() model.Collection { return t.collection }

// Load returns every record, or an error if the collection cannot be read
// or decoded.
func (t *Table[T]) Load(ctx context.Context) ([]T, error) {
	raw, err := t.store.Read(ctx, t.collection)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](t.collection, raw)
}

// All returns every record. Read failures are logged and yield an empty
// result, so lookups degrade to "not found" instead of failing a command.
func (t *Table[T]) All(ctx context.Context) []T {
	rows, err := t.Load(ctx)
	if err != nil {
		slog.Error("failed to read collection", "collection", t.collection, "error", err)
		return []T{}
	}
	return rows
}

// Filter returns the records matching pred, in insertion order.
func (t *Table[T]) Filter(ctx context.Context, pred func(T) bool) []T {
	var out []T
	for _, row := range t.All(ctx) {
		if pred(row) {
			out = append(out, row)
		}
	}
	return out
}

// Find returns the first record matching pred.
func (t *Table[T]) Find(ctx context.Context, pred func(T) bool) (T, bool) {
	for _, row := range t.All(ctx) {
		if pred(row) {
			return row, true
		}
	}
	var zero T
	return zero, false
}

// Get returns the record with the given id.
func (t *Table[T]) Get(ctx context.Context, id int64) (T, bool) {
	return t.Find(ctx, func(row T) bool { return row.GetID() == id })
}

// Count returns the number of records.
func (t *Table[T]) Count(ctx context.Context) int {
	return len(t.All(ctx))
}

// NextID returns 1 + the largest id among rows, or 1 for an empty slice.
func NextID[T Entity](rows []T) int64 {
	var maxID int64
	for _, row := range rows {
		if row.GetID() > maxID {
			maxID = row.GetID()
		}
	}
	return maxID + 1
}

// Insert appends the record produced by build. build receives the next id
// and the current rows so uniqueness checks and the append happen under the
// same collection lock. A build error aborts the write.
func (t *Table[T]) Insert(ctx context.Context, build func(id int64, existing []T) (T, error)) (T, error) {
	var created T
	err := t.Mutate(ctx, func(rows []T) ([]T, error) {
		row, err := build(NextID(rows), rows)
		if err != nil {
			return nil, err
		}
		created = row
		return append(rows, row), nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return created, nil
}

// Mutate rewrites the collection with the rows returned by fn. A collection
// that fails to decode is never overwritten.
func (t *Table[T]) Mutate(ctx context.Context, fn func([]T) ([]T, error)) error {
	return t.store.Update(ctx, t.collection, func(raw []json.RawMessage) ([]json.RawMessage, error) {
		rows, err := decodeAll[T](t.collection, raw)
		if err != nil {
			return nil, err
		}
		next, err := fn(rows)
		if err != nil {
			return nil, err
		}
		return encodeAll(t.collection, next)
	})
}

func decodeAll[T Entity](c model.Collection, raw []json.RawMessage) ([]T, error) {
	rows := make([]T, 0, len(raw))
	for i, r := range raw {
		var row T
		if err := json.Unmarshal(r, &row); err != nil {
			return nil, fmt.Errorf("%w: %s record %d: %w", common.ErrDatabaseCorrupted, c, i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func encodeAll[T Entity](c model.Collection, rows []T) ([]json.RawMessage, error) {
	raw := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding %s record %d: %w", common.ErrStorage, c, row.GetID(), err)
		}
		raw = append(raw, data)
	}
	return raw, nil
}
