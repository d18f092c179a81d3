package difficulty

import (
	"sync"
	"testing"
	"time"

	"github.com/TecharoHQ/glimpse"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (fc *fakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.now = fc.now.Add(d)
}

func newController(t *testing.T) (*Controller, *fakeClock) {
	t.Helper()
	fc := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return New(Options{Clock: fc.Now}), fc
}

func seed(c *Controller, id string, h History) {
	e := c.load(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if h.LastSeen.IsZero() {
		h.LastSeen = c.now()
	}
	e.History = h
}

func TestCurrentDifficulty(t *testing.T) {
	for _, tt := range []struct {
		name  string
		start History
		want  int
	}{
		{
			name:  "fresh client",
			start: History{},
			want:  0,
		},
		{
			name:  "too few attempts to move",
			start: History{Attempts: 2, Successes: 2, Difficulty: 1},
			want:  1,
		},
		{
			name:  "high success rate raises by one",
			start: History{Attempts: 10, Successes: 9, Difficulty: 2},
			want:  3,
		},
		{
			name:  "exactly 0.8 stays",
			start: History{Attempts: 10, Successes: 8, Difficulty: 2},
			want:  2,
		},
		{
			name:  "capped at max",
			start: History{Attempts: 10, Successes: 10, Difficulty: glimpse.MaxDifficulty},
			want:  glimpse.MaxDifficulty,
		},
		{
			name:  "low success rate lowers by one",
			start: History{Attempts: 10, Successes: 2, Difficulty: 3},
			want:  2,
		},
		{
			name:  "exactly 0.3 stays",
			start: History{Attempts: 10, Successes: 3, Difficulty: 3},
			want:  3,
		},
		{
			name:  "floored at zero",
			start: History{Attempts: 10, Successes: 0, Difficulty: 0},
			want:  0,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newController(t)
			seed(c, "client", tt.start)

			if got := c.CurrentDifficulty("client"); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDifficultyStaysInBounds(t *testing.T) {
	c, _ := newController(t)

	seed(c, "ace", History{Attempts: 100, Successes: 100})
	seed(c, "dud", History{Attempts: 100, Successes: 0, Difficulty: glimpse.MaxDifficulty})

	for range 50 {
		if d := c.CurrentDifficulty("ace"); d < 0 || d > glimpse.MaxDifficulty {
			t.Fatalf("ace difficulty out of bounds: %d", d)
		}
		if d := c.CurrentDifficulty("dud"); d < 0 || d > glimpse.MaxDifficulty {
			t.Fatalf("dud difficulty out of bounds: %d", d)
		}
	}

	if got := c.GetOrInit("ace").Difficulty; got != glimpse.MaxDifficulty {
		t.Errorf("ace should have climbed to %d, got %d", glimpse.MaxDifficulty, got)
	}

	if got := c.GetOrInit("dud").Difficulty; got != 0 {
		t.Errorf("dud should have dropped to 0, got %d", got)
	}
}

func TestInactivityReset(t *testing.T) {
	c, fc := newController(t)
	seed(c, "client", History{Attempts: 10, Successes: 9, Difficulty: 4})

	fc.Advance(glimpse.DefaultInactivityWindow + time.Second)

	h := c.GetOrInit("client")
	if h.Attempts != 0 || h.Successes != 0 || h.Difficulty != 0 {
		t.Errorf("history was not reset: %+v", h)
	}

	if d := c.CurrentDifficulty("client"); d != 0 {
		t.Errorf("difficulty after reset: got %d, want 0", d)
	}
}

func TestNoResetInsideWindow(t *testing.T) {
	c, fc := newController(t)
	seed(c, "client", History{Attempts: 1, Successes: 1, Difficulty: 2})

	fc.Advance(glimpse.DefaultInactivityWindow - time.Second)

	if h := c.GetOrInit("client"); h.Difficulty != 2 || h.Attempts != 1 {
		t.Errorf("history changed inside the window: %+v", h)
	}
}

func TestRecordAttempt(t *testing.T) {
	c, fc := newController(t)

	c.RecordAttempt("client", true)
	fc.Advance(time.Minute)
	h := c.RecordAttempt("client", false)

	if h.Attempts != 2 || h.Successes != 1 {
		t.Errorf("wrong counters: %+v", h)
	}

	if !h.LastSeen.Equal(fc.Now()) {
		t.Errorf("LastSeen: got %v, want %v", h.LastSeen, fc.Now())
	}

	fc.Advance(48 * time.Hour)
	h = c.RecordAttempt("client", true)

	if h.Attempts != 1 || h.Successes != 1 {
		t.Errorf("stale history should restart counting: %+v", h)
	}
}

func TestConcurrentRecordAttempt(t *testing.T) {
	c, _ := newController(t)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordAttempt("shared", i%2 == 0)
			c.RecordAttempt("solo-"+string(rune('a'+i%26)), true)
		}()
	}
	wg.Wait()

	h, ok := c.Peek("shared")
	if !ok {
		t.Fatal("shared client missing")
	}

	if h.Attempts != 100 || h.Successes != 50 {
		t.Errorf("lost updates: %+v", h)
	}

	if h.Successes > h.Attempts {
		t.Errorf("successes exceed attempts: %+v", h)
	}

	if got := c.Len(); got != 27 {
		t.Errorf("Len: got %d, want 27", got)
	}
}

func TestPeekDoesNotCreate(t *testing.T) {
	c, _ := newController(t)

	if _, ok := c.Peek("ghost"); ok {
		t.Error("Peek found a client that was never seen")
	}

	if c.Len() != 0 {
		t.Errorf("Peek created a record, Len = %d", c.Len())
	}
}
