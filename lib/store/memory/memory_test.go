package memory

import (
	"testing"
	"time"

	"github.com/TecharoHQ/glimpse/lib/store/storetest"
)

func TestImpl(t *testing.T) {
	storetest.Common(t, factory{}, nil)
}

func TestIncrementOverwritesNonCounter(t *testing.T) {
	s := New(t.Context())

	if err := s.Set(t.Context(), "k", []byte("not a number"), time.Minute); err != nil {
		t.Fatal(err)
	}

	n, err := s.Increment(t.Context(), "k", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if n != 1 {
		t.Errorf("wanted counter to restart at 1, got %d", n)
	}
}
