package throttle

import (
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/TecharoHQ/glimpse/lib/policy/config"
	"github.com/TecharoHQ/glimpse/lib/store/memory"
)

type fakeClock struct {
	lock sync.Mutex
	now  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.now = f.now.Add(d)
}

func newThrottle(t *testing.T, cfg config.Throttle) (*Throttle, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Now()}
	th, err := New(Options{
		Config: cfg,
		Store:  memory.New(t.Context()),
		Clock:  clock.Now,
	})
	if err != nil {
		t.Fatal(err)
	}

	return th, clock
}

var client = netip.MustParseAddr("198.51.100.7")

func TestRateLimit(t *testing.T) {
	cfg := config.DefaultThrottle()
	cfg.Rate = 1
	cfg.Burst = 3

	th, clock := newThrottle(t, cfg)

	for i := range 3 {
		if err := th.Allow(t.Context(), "a", client); err != nil {
			t.Fatalf("request %d within burst refused: %v", i, err)
		}
	}

	err := th.Allow(t.Context(), "a", client)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("wanted ErrRateLimited, got: %v", err)
	}

	var terr *Error
	if !errors.As(err, &terr) || terr.RetryAfter != time.Second {
		t.Errorf("wanted a one second retry hint, got: %v", err)
	}

	if err := th.Allow(t.Context(), "b", client); err != nil {
		t.Errorf("other client shares a bucket: %v", err)
	}

	clock.Advance(time.Second)
	if err := th.Allow(t.Context(), "a", client); err != nil {
		t.Errorf("bucket did not refill: %v", err)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	cfg := config.DefaultThrottle()
	cfg.Rate = 0

	th, _ := newThrottle(t, cfg)

	for range 100 {
		if err := th.Allow(t.Context(), "a", client); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLockout(t *testing.T) {
	cfg := config.DefaultThrottle()
	cfg.Rate = 0
	cfg.FailureLimit = 3
	cfg.Lockout = config.Duration(5 * time.Minute)

	th, clock := newThrottle(t, cfg)

	for i := range 2 {
		locked, err := th.RecordFailure(t.Context(), "a", client)
		if err != nil {
			t.Fatal(err)
		}
		if locked {
			t.Fatalf("locked out after %d failures", i+1)
		}
	}

	locked, err := th.RecordFailure(t.Context(), "a", client)
	if err != nil {
		t.Fatal(err)
	}
	if !locked {
		t.Fatal("third failure should lock the client out")
	}

	err = th.Allow(t.Context(), "a", client)
	if !errors.Is(err, ErrLockedOut) {
		t.Fatalf("wanted ErrLockedOut, got: %v", err)
	}

	var terr *Error
	if !errors.As(err, &terr) || terr.RetryAfter <= 0 || terr.RetryAfter > 5*time.Minute {
		t.Errorf("bad retry hint: %v", err)
	}

	if err := th.Allow(t.Context(), "b", client); err != nil {
		t.Errorf("lockout leaked to another client: %v", err)
	}

	clock.Advance(5*time.Minute + time.Second)
	if err := th.Allow(t.Context(), "a", client); err != nil {
		t.Errorf("lockout did not lapse: %v", err)
	}
}

func TestClear(t *testing.T) {
	cfg := config.DefaultThrottle()
	cfg.Rate = 1
	cfg.Burst = 1
	cfg.FailureLimit = 2
	cfg.Lockout = config.Duration(time.Hour)

	th, _ := newThrottle(t, cfg)

	if _, ok, err := th.LockoutStatus(t.Context(), "a"); err != nil || ok {
		t.Fatalf("fresh client reported as locked out: %v %v", ok, err)
	}

	if err := th.Allow(t.Context(), "a", client); err != nil {
		t.Fatal(err)
	}

	for range 2 {
		if _, err := th.RecordFailure(t.Context(), "a", client); err != nil {
			t.Fatal(err)
		}
	}

	lo, ok, err := th.LockoutStatus(t.Context(), "a")
	if err != nil || !ok {
		t.Fatalf("wanted a lockout, got %v %v", ok, err)
	}
	if lo.Failures != 2 {
		t.Errorf("lockout records %d failures, want 2", lo.Failures)
	}

	if err := th.Clear(t.Context(), "a"); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := th.LockoutStatus(t.Context(), "a"); err != nil || ok {
		t.Errorf("lockout survived Clear: %v %v", ok, err)
	}

	// the token bucket is fresh again, so the burst is available
	if err := th.Allow(t.Context(), "a", client); err != nil {
		t.Errorf("cleared client refused: %v", err)
	}

	if err := th.Clear(t.Context(), "never-seen"); err != nil {
		t.Errorf("clearing an unknown client should be fine: %v", err)
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	cfg := config.DefaultThrottle()
	cfg.FailureLimit = 2

	th, _ := newThrottle(t, cfg)

	if _, err := th.RecordFailure(t.Context(), "a", client); err != nil {
		t.Fatal(err)
	}

	if err := th.RecordSuccess(t.Context(), "a"); err != nil {
		t.Fatal(err)
	}

	if err := th.RecordSuccess(t.Context(), "a"); err != nil {
		t.Fatalf("clearing an absent counter should be fine: %v", err)
	}

	locked, err := th.RecordFailure(t.Context(), "a", client)
	if err != nil {
		t.Fatal(err)
	}
	if locked {
		t.Error("failure count survived a success")
	}
}

func TestCIDRLists(t *testing.T) {
	cfg := config.DefaultThrottle()
	cfg.Rate = 1
	cfg.Burst = 1
	cfg.FailureLimit = 1
	cfg.Blocked = []string{"192.0.2.0/24"}
	cfg.Exempt = []string{"10.0.0.0/8", "fc00::/7"}

	th, _ := newThrottle(t, cfg)

	for _, tt := range []struct {
		name string
		addr string
		err  error
	}{
		{name: "blocked", addr: "192.0.2.77", err: ErrBlocked},
		{name: "exempt v4", addr: "10.1.2.3"},
		{name: "exempt v6", addr: "fd00::1"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			addr := netip.MustParseAddr(tt.addr)

			for range 5 {
				if err := th.Allow(t.Context(), tt.addr, addr); !errors.Is(err, tt.err) {
					t.Fatalf("wanted %v, got: %v", tt.err, err)
				}
			}
		})
	}

	locked, err := th.RecordFailure(t.Context(), "10.1.2.3", netip.MustParseAddr("10.1.2.3"))
	if err != nil || locked {
		t.Errorf("exempt client was locked out: %v %v", locked, err)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(Options{Config: config.DefaultThrottle()}); err == nil {
		t.Error("throttle without a store should fail")
	}

	cfg := config.DefaultThrottle()
	cfg.Blocked = []string{"not a cidr"}

	if _, err := New(Options{Config: cfg, Store: memory.New(t.Context())}); !errors.Is(err, config.ErrInvalidThrottleCIDR) {
		t.Errorf("wanted ErrInvalidThrottleCIDR, got: %v", err)
	}
}
