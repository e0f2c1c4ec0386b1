package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/classbot/internal/model"
	"github.com/Veraticus/classbot/internal/service"
)

// Storage drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Open returns the record store for driver. SQLite databases are migrated
// before they are returned.
func Open(ctx context.Context, driver, path string) (service.RecordStore, error) {
	switch driver {
	case DriverJSON, "":
		return NewFileStore(path)
	case DriverSQLite:
		store, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return store, nil
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// Copy replicates every collection from src into dst. progress, if non-nil,
// is called after each collection with the number of records copied.
func Copy(ctx context.Context, src, dst service.RecordStore, progress func(c model.Collection, n int)) error {
	for _, c := range model.Collections() {
		records, err := src.Read(ctx, c)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", c, err)
		}
		if err := dst.Replace(ctx, c, records); err != nil {
			return fmt.Errorf("failed to write %s: %w", c, err)
		}
		slog.Debug("copied collection", "collection", c, "records", len(records))
		if progress != nil {
			progress(c, len(records))
		}
	}
	return nil
}
