package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/TecharoHQ/glimpse/lib/store"
	"github.com/TecharoHQ/glimpse/lib/store/memory"
)

func TestJSON(t *testing.T) {
	type lockout struct {
		Until    time.Time `json:"until"`
		Failures int       `json:"failures"`
	}

	st := memory.New(t.Context())
	db := store.JSON[lockout]{
		Underlying: st,
		Prefix:     "lock:",
	}

	until := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)

	if err := db.Set(t.Context(), "client", lockout{Until: until, Failures: 5}, time.Minute); err != nil {
		t.Fatal(err)
	}

	got, err := db.Get(t.Context(), "client")
	if err != nil {
		t.Fatal(err)
	}

	if !got.Until.Equal(until) || got.Failures != 5 {
		t.Fatalf("got wrong data for key \"client\": %+v", got)
	}

	if err := db.Delete(t.Context(), "client"); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Get(t.Context(), "client"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("wanted ErrNotFound, got: %v", err)
	}

	if err := st.Set(t.Context(), "lock:client", []byte("}"), time.Minute); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Get(t.Context(), "client"); !errors.Is(err, store.ErrCantDecode) {
		t.Fatalf("wanted ErrCantDecode, got: %v", err)
	}
}

func TestCounterEncoding(t *testing.T) {
	for _, n := range []int64{0, 1, 42, 1 << 40} {
		got, err := store.ParseCounter(store.FormatCounter(n))
		if err != nil {
			t.Fatal(err)
		}
		if got != n {
			t.Errorf("got %d, want %d", got, n)
		}
	}

	if _, err := store.ParseCounter([]byte("five")); !errors.Is(err, store.ErrCantDecode) {
		t.Errorf("wanted ErrCantDecode, got: %v", err)
	}
}
