// Package persistence defines the storage boundary of the dormant tier.
//
// A Backend persists a whole key->entry mapping at once: there is no per-key API on purpose,
// merging and TTL filtering are done by the dormant tier wrapper above it. Backends are treated
// as slow and fallible; callers bound every call with a context deadline.
package persistence

import (
	"context"
	"errors"

	"github.com/Borislavv/go-crow-cache/model"
)

var (
	// ErrCorrupted marks a store that exists but cannot be decoded. The dormant tier
	// treats it as empty and is allowed to overwrite it.
	ErrCorrupted = errors.New("dormant store is corrupted")
	// ErrTimeout is returned when a backend call exceeds its deadline.
	ErrTimeout = errors.New("dormant backend timeout")
	// ErrConnectionClosed is returned by network backends after their client was closed.
	ErrConnectionClosed = errors.New("dormant backend connection closed")
)

// Backend is the capability set a dormant store must provide.
type Backend[V any] interface {
	// ReadAll returns the full persisted mapping. A missing store yields an empty mapping
	// and a nil error; an undecodable one yields an error wrapping ErrCorrupted.
	ReadAll(ctx context.Context) (model.Mapping[V], error)
	// WriteAll replaces the persisted mapping entirely.
	WriteAll(ctx context.Context, m model.Mapping[V]) error
	// Clear drops the persisted mapping. Clearing a missing store is not an error.
	Clear(ctx context.Context) error
	// Exists reports whether the store has been written at least once.
	Exists(ctx context.Context) bool
	// IsAccessible reports whether the store exists and can be read and written now.
	IsAccessible(ctx context.Context) bool
	// EnsureExists prepares the store location (directories, connectivity).
	EnsureExists(ctx context.Context) error
}
