// Package valkey stores throttle state in Valkey or Redis so that several
// Glimpse instances can share failure counters and lockouts.
package valkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/glimpse/lib/store"
	valkey "github.com/redis/go-redis/v9"
)

// Store implements store.Interface on top of a go-redis client.
type Store struct {
	rdb    *valkey.Client
	prefix string
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("can't delete from valkey: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %q", store.ErrNotFound, key)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, valkey.Nil) {
			return nil, fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		return nil, fmt.Errorf("can't fetch from valkey: %w", err)
	}

	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(key), value, expiry).Err(); err != nil {
		return fmt.Errorf("can't set %q in valkey: %w", key, err)
	}

	return nil
}

// Increment runs INCR and PEXPIRE NX in one MULTI/EXEC block so that only
// the first increment of a window sets the expiry.
func (s *Store) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *valkey.IntCmd

	if _, err := s.rdb.TxPipelined(ctx, func(pipe valkey.Pipeliner) error {
		incr = pipe.Incr(ctx, s.key(key))
		// go-redis only offers EXPIRE NX, which rounds to whole seconds.
		pipe.Do(ctx, "PEXPIRE", s.key(key), window.Milliseconds(), "NX")
		return nil
	}); err != nil {
		return 0, fmt.Errorf("can't increment %q in valkey: %w", key, err)
	}

	return incr.Val(), nil
}
