package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TecharoHQ/glimpse/lib/store"
	_ "github.com/TecharoHQ/glimpse/lib/store/all"
)

var (
	ErrNoStoreBackend      = errors.New("config.Store: no backend defined")
	ErrUnknownStoreBackend = errors.New("config.Store: unknown backend")
)

// DefaultStoreBackend keeps throttle state in process memory.
const DefaultStoreBackend = "memory"

// Store selects the backend that holds throttle counters and lockouts.
// Parameters are handed to the backend's factory untouched.
type Store struct {
	Backend    string          `json:"backend"`
	Parameters json.RawMessage `json:"parameters"`
}

func (s *Store) factory() (store.Factory, error) {
	if s.Backend == "" {
		return nil, ErrNoStoreBackend
	}

	fac, ok := store.Get(s.Backend)
	if !ok {
		return nil, fmt.Errorf("%w: %q, known backends: %v", ErrUnknownStoreBackend, s.Backend, store.Methods())
	}

	return fac, nil
}

func (s *Store) Valid() error {
	fac, err := s.factory()
	if err != nil {
		return err
	}

	if err := fac.Valid(s.Parameters); err != nil {
		return fmt.Errorf("config.Store: %s parameters: %w", s.Backend, err)
	}

	return nil
}

// Build opens the configured backend.
func (s *Store) Build(ctx context.Context) (store.Interface, error) {
	fac, err := s.factory()
	if err != nil {
		return nil, err
	}

	st, err := fac.Build(ctx, s.Parameters)
	if err != nil {
		return nil, fmt.Errorf("config.Store: can't build %s store: %w", s.Backend, err)
	}

	return st, nil
}
