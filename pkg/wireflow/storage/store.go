// Package storage persists serialized node state under string keys.
package storage

import (
	"context"
	"errors"
)

// Store persists node state.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores data under key, overwriting any previous value.
	Save(ctx context.Context, key string, data []byte) error

	// Load retrieves the data saved under key.
	// Returns ErrNotFound if nothing is saved there.
	Load(ctx context.Context, key string) ([]byte, error)

	// Has reports whether data is saved under key.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes the data saved under key.
	// Returns nil if nothing is saved there.
	Delete(ctx context.Context, key string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for storage operations.
var (
	// ErrNotFound indicates nothing is saved under a key.
	ErrNotFound = errors.New("saved state not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("storage closed")
)
