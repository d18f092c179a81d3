// Package throttle limits how often a client can ask for challenges and
// locks clients out after repeated failures.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"time"

	"github.com/TecharoHQ/glimpse/decaymap"
	"github.com/TecharoHQ/glimpse/internal"
	"github.com/TecharoHQ/glimpse/lib/policy/config"
	"github.com/TecharoHQ/glimpse/lib/store"
	"github.com/gaissmai/bart"
	"golang.org/x/time/rate"
)

var (
	ErrBlocked     = errors.New("throttle: client address is blocked")
	ErrRateLimited = errors.New("throttle: too many challenges requested")
	ErrLockedOut   = errors.New("throttle: client is locked out after repeated failures")
)

// limiterIdle is how long an unused token bucket is kept around.
const limiterIdle = 30 * time.Minute

// Error is a throttle decision. RetryAfter is zero when retrying won't help.
type Error struct {
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.RetryAfter <= 0 {
		return e.Err.Error()
	}

	return fmt.Sprintf("%v, retry after %s", e.Err, e.RetryAfter.Round(time.Second))
}

func (e *Error) Unwrap() error { return e.Err }

// Lockout is the record kept for a locked-out client.
type Lockout struct {
	Until    time.Time `json:"until"`
	Failures int64     `json:"failures"`
}

// Options configures a Throttle. A nil Clock means time.Now.
type Options struct {
	Config config.Throttle
	Store  store.Interface
	Clock  func() time.Time
}

// Throttle gates issuance per client. It is safe for concurrent use.
type Throttle struct {
	cfg      config.Throttle
	store    store.Interface
	lockouts *store.JSON[Lockout]
	limiters *decaymap.Impl[string, *rate.Limiter]
	blocked  *bart.Table[struct{}]
	exempt   *bart.Table[struct{}]
	now      func() time.Time
}

// New builds a Throttle. The CIDR lists must already be valid; an invalid
// prefix is reported anyway.
func New(opts Options) (*Throttle, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: throttle needs a store", store.ErrBadConfig)
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	blocked, err := prefixTable(opts.Config.Blocked)
	if err != nil {
		return nil, err
	}

	exempt, err := prefixTable(opts.Config.Exempt)
	if err != nil {
		return nil, err
	}

	return &Throttle{
		cfg:   opts.Config,
		store: opts.Store,
		lockouts: &store.JSON[Lockout]{
			Underlying: opts.Store,
			Prefix:     "lockout:",
		},
		limiters: decaymap.New[string, *rate.Limiter](),
		blocked:  blocked,
		exempt:   exempt,
		now:      opts.Clock,
	}, nil
}

func prefixTable(cidrs []string) (*bart.Table[struct{}], error) {
	result := &bart.Table[struct{}]{}

	for _, cidr := range cidrs {
		pfx, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", config.ErrInvalidThrottleCIDR, cidr, err)
		}
		result.Insert(pfx.Masked(), struct{}{})
	}

	return result, nil
}

// Exempt reports whether addr is on the exempt list.
func (t *Throttle) Exempt(addr netip.Addr) bool {
	return addr.IsValid() && t.exempt.Contains(addr)
}

func failureKey(clientID string) string {
	return "failures:" + internal.FastHash(clientID)
}

func lockoutKey(clientID string) string {
	return internal.FastHash(clientID)
}

// Allow decides whether clientID, connecting from addr, may be issued a
// challenge now. Each allowed call spends one token from the client's
// bucket. The returned error, if any, is a *Error wrapping ErrBlocked,
// ErrLockedOut or ErrRateLimited, or a store failure.
func (t *Throttle) Allow(ctx context.Context, clientID string, addr netip.Addr) error {
	if addr.IsValid() && t.blocked.Contains(addr) {
		return &Error{Err: ErrBlocked}
	}

	if t.Exempt(addr) {
		return nil
	}

	if t.cfg.FailureLimit > 0 {
		lo, err := t.lockouts.Get(ctx, lockoutKey(clientID))
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return fmt.Errorf("throttle: can't read lockout: %w", err)
		default:
			if wait := lo.Until.Sub(t.now()); wait > 0 {
				return &Error{Err: ErrLockedOut, RetryAfter: wait}
			}
		}
	}

	if t.cfg.Rate <= 0 {
		return nil
	}

	lim := t.limiter(clientID)
	if !lim.AllowN(t.now(), 1) {
		wait := time.Duration(math.Ceil(float64(time.Second) / t.cfg.Rate))
		return &Error{Err: ErrRateLimited, RetryAfter: wait}
	}

	return nil
}

func (t *Throttle) limiter(clientID string) *rate.Limiter {
	lim := t.limiters.Update(clientID, limiterIdle, func(cur *rate.Limiter, ok bool) *rate.Limiter {
		if ok {
			return cur
		}
		return rate.NewLimiter(rate.Limit(t.cfg.Rate), t.cfg.Burst)
	})

	// Refresh the idle timer of a bucket that is in use.
	t.limiters.Set(clientID, lim, limiterIdle)

	return lim
}

// RecordFailure counts a graded failure for clientID and locks the client
// out once the limit is reached within the failure window. It reports
// whether this failure caused a lockout.
func (t *Throttle) RecordFailure(ctx context.Context, clientID string, addr netip.Addr) (bool, error) {
	if t.cfg.FailureLimit <= 0 || t.Exempt(addr) {
		return false, nil
	}

	n, err := t.store.Increment(ctx, failureKey(clientID), t.cfg.FailureWindow.Std())
	if err != nil {
		return false, fmt.Errorf("throttle: can't count failure: %w", err)
	}

	if n < int64(t.cfg.FailureLimit) {
		return false, nil
	}

	lo := Lockout{
		Until:    t.now().Add(t.cfg.Lockout.Std()),
		Failures: n,
	}

	if err := t.lockouts.Set(ctx, lockoutKey(clientID), lo, t.cfg.Lockout.Std()); err != nil {
		return false, fmt.Errorf("throttle: can't store lockout: %w", err)
	}

	if err := t.store.Delete(ctx, failureKey(clientID)); err != nil && !errors.Is(err, store.ErrNotFound) {
		return true, fmt.Errorf("throttle: can't reset failure count: %w", err)
	}

	return true, nil
}

// RecordSuccess clears the client's failure count.
func (t *Throttle) RecordSuccess(ctx context.Context, clientID string) error {
	if t.cfg.FailureLimit <= 0 {
		return nil
	}

	if err := t.store.Delete(ctx, failureKey(clientID)); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("throttle: can't reset failure count: %w", err)
	}

	return nil
}

// LockoutStatus returns the lockout held against clientID, if one is still
// in force.
func (t *Throttle) LockoutStatus(ctx context.Context, clientID string) (Lockout, bool, error) {
	lo, err := t.lockouts.Get(ctx, lockoutKey(clientID))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Lockout{}, false, nil
	case err != nil:
		return Lockout{}, false, fmt.Errorf("throttle: can't read lockout: %w", err)
	}

	if !lo.Until.After(t.now()) {
		return Lockout{}, false, nil
	}

	return lo, true, nil
}

// Clear forgives clientID: its lockout, failure count and token bucket are
// dropped.
func (t *Throttle) Clear(ctx context.Context, clientID string) error {
	var errs []error

	if err := t.lockouts.Delete(ctx, lockoutKey(clientID)); err != nil && !errors.Is(err, store.ErrNotFound) {
		errs = append(errs, fmt.Errorf("can't delete lockout: %w", err))
	}

	if err := t.store.Delete(ctx, failureKey(clientID)); err != nil && !errors.Is(err, store.ErrNotFound) {
		errs = append(errs, fmt.Errorf("can't reset failure count: %w", err))
	}

	t.limiters.Delete(clientID)

	if len(errs) != 0 {
		return fmt.Errorf("throttle: %w", errors.Join(errs...))
	}

	return nil
}

// Cleanup drops idle token buckets.
func (t *Throttle) Cleanup() {
	t.limiters.Cleanup()
}
