// Package memory provides a process-local dormant backend. It keeps the mapping in memory,
// so nothing survives a restart; it is the fallback when no backend is configured and the
// reference implementation used in tests.
package memory

import (
	"context"
	"sync"

	"github.com/Borislavv/go-crow-cache/model"
)

type Store[V any] struct {
	mu      sync.RWMutex
	items   model.Mapping[V]
	written bool
}

func New[V any]() *Store[V] {
	return &Store[V]{items: make(model.Mapping[V])}
}

// ReadAll returns a deep copy so that callers may mutate it freely.
func (s *Store[V]) ReadAll(ctx context.Context) (model.Mapping[V], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items.Clone(), nil
}

func (s *Store[V]) WriteAll(ctx context.Context, m model.Mapping[V]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.items = m.Clone()
	s.written = true
	s.mu.Unlock()
	return nil
}

func (s *Store[V]) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.items = make(model.Mapping[V])
	s.written = false
	s.mu.Unlock()
	return nil
}

func (s *Store[V]) Exists(context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.written
}

func (s *Store[V]) IsAccessible(ctx context.Context) bool { return s.Exists(ctx) }

func (s *Store[V]) EnsureExists(context.Context) error { return nil }

// Len is a test helper returning the raw (unfiltered) number of stored entries.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
