package config

import (
	"errors"
	"fmt"
	"net/netip"
	"time"
)

var (
	ErrRateNegative        = errors.New("config.Throttle: rate must not be negative")
	ErrBurstTooLow         = errors.New("config.Throttle: burst must be at least 1 when rate is set")
	ErrFailureLimit        = errors.New("config.Throttle: failure_limit must not be negative")
	ErrFailureWindow       = errors.New("config.Throttle: failure_window must be positive when failure_limit is set")
	ErrLockoutTooShort     = errors.New("config.Throttle: lockout must be positive when failure_limit is set")
	ErrInvalidThrottleCIDR = errors.New("config.Throttle: invalid CIDR")
)

// Throttle controls per-client issuance limits and failure lockouts. A zero
// Rate disables rate limiting and a zero FailureLimit disables lockouts.
type Throttle struct {
	Rate          float64  `json:"rate"`
	Burst         int      `json:"burst"`
	FailureLimit  int      `json:"failure_limit"`
	FailureWindow Duration `json:"failure_window"`
	Lockout       Duration `json:"lockout"`
	Blocked       []string `json:"blocked"`
	Exempt        []string `json:"exempt"`
}

func DefaultThrottle() Throttle {
	return Throttle{
		Rate:          1,
		Burst:         10,
		FailureLimit:  5,
		FailureWindow: Duration(15 * time.Minute),
		Lockout:       Duration(5 * time.Minute),
	}
}

func (t Throttle) Valid() error {
	var errs []error

	if t.Rate < 0 {
		errs = append(errs, fmt.Errorf("%w, got: %v", ErrRateNegative, t.Rate))
	}

	if t.Rate > 0 && t.Burst < 1 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrBurstTooLow, t.Burst))
	}

	if t.FailureLimit < 0 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrFailureLimit, t.FailureLimit))
	}

	if t.FailureLimit > 0 {
		if t.FailureWindow <= 0 {
			errs = append(errs, ErrFailureWindow)
		}

		if t.Lockout <= 0 {
			errs = append(errs, ErrLockoutTooShort)
		}
	}

	for _, cidr := range append(append([]string{}, t.Blocked...), t.Exempt...) {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %w", ErrInvalidThrottleCIDR, cidr, err))
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: throttle settings are not valid:\n%w", errors.Join(errs...))
	}

	return nil
}
