// Package service defines the interfaces shared between the bot's layers.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Veraticus/classbot/internal/model"
)

// RecordStore persists whole collections of JSON records. Implementations
// must make Replace atomic: readers observe either the old or the new
// collection, never a partial write.
type RecordStore interface {
	// Read returns the records of a collection in insertion order. A
	// collection that was never written yields an empty slice and no error.
	Read(ctx context.Context, c model.Collection) ([]json.RawMessage, error)
	// Replace overwrites the whole collection.
	Replace(ctx context.Context, c model.Collection, records []json.RawMessage) error
	// Update reads, transforms and replaces a collection while holding the
	// collection's lock. Nothing is written when fn fails.
	Update(ctx context.Context, c model.Collection, fn func([]json.RawMessage) ([]json.RawMessage, error)) error
	Close() error
}

// Notifier delivers a text message to a chat destination.
type Notifier interface {
	Send(ctx context.Context, destination, content string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, destination, content string) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, destination, content string) error {
	return f(ctx, destination, content)
}

// Clock returns the current time. Components take a Clock so date logic can
// be tested against fixed days.
type Clock func() time.Time

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
