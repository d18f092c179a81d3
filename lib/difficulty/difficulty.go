// Package difficulty tracks how well each client does at challenges and
// derives the difficulty level of the next one it gets.
package difficulty

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/TecharoHQ/glimpse"
)

const (
	// DefaultMinAttempts is how many attempts a client needs before its
	// difficulty starts moving.
	DefaultMinAttempts = 3

	raiseAbove = 0.8
	lowerBelow = 0.3
)

// History is a snapshot of one client's record.
type History struct {
	Attempts   int       `json:"attempts"`
	Successes  int       `json:"successes"`
	Difficulty int       `json:"difficulty"`
	LastSeen   time.Time `json:"last_seen"`
}

// SuccessRate is Successes/Attempts, or zero before the first attempt.
func (h History) SuccessRate() float64 {
	if h.Attempts == 0 {
		return 0
	}
	return float64(h.Successes) / float64(h.Attempts)
}

type entry struct {
	mu sync.Mutex
	History
}

type Options struct {
	// InactivityWindow resets a client that has been idle for longer.
	// Defaults to glimpse.DefaultInactivityWindow.
	InactivityWindow time.Duration
	// MinAttempts defaults to DefaultMinAttempts.
	MinAttempts int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Controller owns every ClientHistory. Each client has its own lock so
// updates to different clients never contend.
type Controller struct {
	clients sync.Map // string -> *entry
	count   atomic.Int64

	window      time.Duration
	minAttempts int
	now         func() time.Time
}

func New(opts Options) *Controller {
	c := &Controller{
		window:      opts.InactivityWindow,
		minAttempts: opts.MinAttempts,
		now:         opts.Clock,
	}

	if c.window <= 0 {
		c.window = glimpse.DefaultInactivityWindow
	}

	if c.minAttempts <= 0 {
		c.minAttempts = DefaultMinAttempts
	}

	if c.now == nil {
		c.now = time.Now
	}

	return c
}

func (c *Controller) load(id string) *entry {
	if e, ok := c.clients.Load(id); ok {
		return e.(*entry)
	}

	fresh := &entry{History: History{LastSeen: c.now()}}
	e, loaded := c.clients.LoadOrStore(id, fresh)
	if !loaded {
		c.count.Add(1)
	}
	return e.(*entry)
}

// resetIfStale must be called with e.mu held.
func (c *Controller) resetIfStale(e *entry, now time.Time) {
	if now.Sub(e.LastSeen) > c.window {
		e.History = History{LastSeen: e.LastSeen}
	}
}

// GetOrInit returns the history of id, creating a zeroed one on first sight.
func (c *Controller) GetOrInit(id string) History {
	e := c.load(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	c.resetIfStale(e, c.now())
	return e.History
}

// Peek returns the history of id without creating or resetting anything.
func (c *Controller) Peek(id string) (History, bool) {
	v, ok := c.clients.Load(id)
	if !ok {
		return History{}, false
	}

	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.History, true
}

// CurrentDifficulty applies the inactivity reset, then moves the stored
// difficulty by at most one step based on the success rate, and returns it.
func (c *Controller) CurrentDifficulty(id string) int {
	e := c.load(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	c.resetIfStale(e, c.now())

	if e.Attempts < c.minAttempts {
		return e.Difficulty
	}

	switch rate := e.SuccessRate(); {
	case rate > raiseAbove && e.Difficulty < glimpse.MaxDifficulty:
		e.Difficulty++
	case rate < lowerBelow && e.Difficulty > 0:
		e.Difficulty--
	}

	return e.Difficulty
}

// RecordAttempt counts one graded attempt for id and returns the updated
// history.
func (c *Controller) RecordAttempt(id string, succeeded bool) History {
	e := c.load(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := c.now()
	c.resetIfStale(e, now)

	e.Attempts++
	if succeeded {
		e.Successes++
	}
	e.LastSeen = now

	return e.History
}

// Len is the number of distinct clients seen since startup.
func (c *Controller) Len() int {
	return int(c.count.Load())
}
