package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrNotFound means the key is absent or has expired.
	ErrNotFound = errors.New("store: key not found")

	// ErrCantDecode means a stored value doesn't have the expected shape.
	ErrCantDecode = errors.New("store: can't decode value")

	// ErrCantEncode means a value couldn't be serialised for storage.
	ErrCantEncode = errors.New("store: can't encode value")

	// ErrBadConfig means a backend was given parameters it can't use.
	ErrBadConfig = errors.New("store: configuration is invalid")
)

// Interface defines the calls that Glimpse uses for storage in a local or
// remote datastore. Challenge state itself never leaves the process; the
// store holds throttle counters and lockouts.
type Interface interface {
	// Delete removes key. Deleting a missing key may return ErrNotFound.
	Delete(ctx context.Context, key string) error

	// Get returns the live value at key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key, replacing any previous value, until expiry
	// elapses.
	Set(ctx context.Context, key string, value []byte, expiry time.Duration) error

	// Increment atomically adds one to the counter at key and returns the new
	// value. A missing or expired counter starts over at one and expires
	// after window; incrementing an existing counter keeps its expiry.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// ParseCounter decodes a counter written by Increment.
func ParseCounter(data []byte) (int64, error) {
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCantDecode, err)
	}
	return n, nil
}

// FormatCounter encodes a counter value the way Increment stores it.
func FormatCounter(n int64) []byte {
	return strconv.AppendInt(nil, n, 10)
}

// JSON stores values of T as JSON documents in Underlying. Every key is
// namespaced with Prefix so that several JSON stores can share a backend.
type JSON[T any] struct {
	Underlying Interface
	Prefix     string
}

func (j *JSON[T]) key(k string) string {
	return j.Prefix + k
}

// Delete removes the document stored at key.
func (j *JSON[T]) Delete(ctx context.Context, key string) error {
	return j.Underlying.Delete(ctx, j.key(key))
}

// Get loads the document at key. A document that isn't valid JSON for T
// fails with ErrCantDecode.
func (j *JSON[T]) Get(ctx context.Context, key string) (T, error) {
	var result T

	data, err := j.Underlying.Get(ctx, j.key(key))
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(data, &result); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: %w", ErrCantDecode, j.key(key), err)
	}

	return result, nil
}

// Set stores value at key until expiry elapses.
func (j *JSON[T]) Set(ctx context.Context, key string, value T, expiry time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCantEncode, j.key(key), err)
	}

	return j.Underlying.Set(ctx, j.key(key), data, expiry)
}
