// Package memory implements an in-process store. Counters and lockouts kept
// here are lost on restart and are not shared between Glimpse instances.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TecharoHQ/glimpse/decaymap"
	"github.com/TecharoHQ/glimpse/lib/store"
)

const cleanupInterval = 5 * time.Minute

type factory struct{}

// Build ignores its parameters; the memory store has nothing to configure.
func (factory) Build(ctx context.Context, _ json.RawMessage) (store.Interface, error) {
	return New(ctx), nil
}

func (factory) Valid(json.RawMessage) error { return nil }

func init() {
	store.Register("memory", factory{})
}

// Store keeps values in a decaymap.
type Store struct {
	values *decaymap.Impl[string, []byte]
}

// New creates a Store whose expired entries are swept every few minutes
// until ctx is cancelled. Reads never return expired entries either way.
func New(ctx context.Context) *Store {
	s := &Store{values: decaymap.New[string, []byte]()}
	go s.sweep(ctx)
	return s
}

func notFound(key string) error {
	return fmt.Errorf("%w: %q", store.ErrNotFound, key)
}

func (s *Store) Delete(_ context.Context, key string) error {
	if !s.values.Delete(key) {
		return notFound(key)
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := s.values.Get(key); ok {
		return v, nil
	}
	return nil, notFound(key)
}

func (s *Store) Set(_ context.Context, key string, value []byte, expiry time.Duration) error {
	s.values.Set(key, value, expiry)
	return nil
}

// Increment updates the counter under the decaymap lock. A value at key
// that isn't a counter is replaced by a fresh one but keeps its expiry.
func (s *Store) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	next := s.values.Update(key, window, func(cur []byte, ok bool) []byte {
		var n int64
		if ok {
			if v, err := store.ParseCounter(cur); err == nil {
				n = v
			}
		}
		return store.FormatCounter(n + 1)
	})

	return store.ParseCounter(next)
}

func (s *Store) sweep(ctx context.Context) {
	t := time.NewTicker(cleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.values.Cleanup()
		}
	}
}
