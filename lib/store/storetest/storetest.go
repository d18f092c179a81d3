// Package storetest holds conformance tests for store backends.
package storetest

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/TecharoHQ/glimpse/lib/store"
)

// shortTTL is long enough to survive a round trip to a remote backend and
// short enough to keep the suite fast.
const shortTTL = 150 * time.Millisecond

func expectMissing(t *testing.T, s store.Interface, key string) {
	t.Helper()

	if _, err := s.Get(t.Context(), key); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("%q: wanted ErrNotFound, got: %v", key, err)
	}
}

func expectValue(t *testing.T, s store.Interface, key string, want []byte) {
	t.Helper()

	got, err := s.Get(t.Context(), key)
	if err != nil {
		t.Fatalf("%q: %v", key, err)
	}

	if !bytes.Equal(got, want) {
		t.Errorf("%q: got %q, want %q", key, got, want)
	}
}

func increment(t *testing.T, s store.Interface, key string, window time.Duration) int64 {
	t.Helper()

	n, err := s.Increment(t.Context(), key, window)
	if err != nil {
		t.Fatalf("%q: increment: %v", key, err)
	}
	return n
}

// Common builds a store with f from config and runs the behaviour every
// backend has to share against it. Subtests run in parallel and use their
// own test name as key.
func Common(t *testing.T, f store.Factory, config json.RawMessage) {
	if err := f.Valid(config); err != nil {
		t.Fatal(err)
	}

	s, err := f.Build(t.Context(), config)
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name string
		run  func(t *testing.T, s store.Interface, key string)
	}{
		{
			name: "set get delete",
			run: func(t *testing.T, s store.Interface, key string) {
				expectMissing(t, s, key)

				if err := s.Set(t.Context(), key, []byte("lockout"), 5*time.Minute); err != nil {
					t.Fatal(err)
				}
				expectValue(t, s, key, []byte("lockout"))

				if err := s.Delete(t.Context(), key); err != nil {
					t.Fatal(err)
				}
				expectMissing(t, s, key)

				if err := s.Delete(t.Context(), key); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("deleting a missing key: wanted ErrNotFound, got: %v", err)
				}
			},
		},
		{
			name: "set overwrites",
			run: func(t *testing.T, s store.Interface, key string) {
				for _, v := range []string{"first", "second"} {
					if err := s.Set(t.Context(), key, []byte(v), time.Minute); err != nil {
						t.Fatal(err)
					}
				}
				expectValue(t, s, key, []byte("second"))
			},
		},
		{
			name: "set expires",
			run: func(t *testing.T, s store.Interface, key string) {
				if err := s.Set(t.Context(), key, []byte("soon gone"), shortTTL); err != nil {
					t.Fatal(err)
				}

				time.Sleep(shortTTL + 5*time.Millisecond)
				expectMissing(t, s, key)
			},
		},
		{
			name: "increment counts",
			run: func(t *testing.T, s store.Interface, key string) {
				for want := int64(1); want <= 3; want++ {
					if got := increment(t, s, key, time.Minute); got != want {
						t.Errorf("got %d, want %d", got, want)
					}
				}

				expectValue(t, s, key, store.FormatCounter(3))
			},
		},
		{
			name: "increment window restarts",
			run: func(t *testing.T, s store.Interface, key string) {
				increment(t, s, key, shortTTL)
				increment(t, s, key, shortTTL)

				time.Sleep(shortTTL + 5*time.Millisecond)

				if got := increment(t, s, key, time.Minute); got != 1 {
					t.Errorf("wanted a fresh counter after the window elapsed, got %d", got)
				}
			},
		},
		{
			name: "increment is atomic",
			run: func(t *testing.T, s store.Interface, key string) {
				const workers = 32

				var wg sync.WaitGroup
				for range workers {
					wg.Add(1)
					go func() {
						defer wg.Done()
						if _, err := s.Increment(t.Context(), key, time.Minute); err != nil {
							t.Error(err)
						}
					}()
				}
				wg.Wait()

				if got := increment(t, s, key, time.Minute); got != workers+1 {
					t.Errorf("got %d after %d concurrent increments, want %d", got, workers, workers+1)
				}
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.run(t, s, t.Name())
		})
	}
}
