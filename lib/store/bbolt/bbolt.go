package bbolt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TecharoHQ/glimpse/lib/store"
	"go.etcd.io/bbolt"
)

// ErrNotExists is returned by Delete for keys that were never set. It wraps
// store.ErrNotFound.
var ErrNotExists = fmt.Errorf("bbolt: %w", store.ErrNotFound)

var (
	dataKey   = []byte("data")
	expiryKey = []byte("expiry")
)

const cleanupInterval = 5 * time.Minute

// Store implements store.Interface on a bbolt[1] file.
//
// Every key gets its own top-level bucket holding a data entry and an
// expiry entry (time.RFC3339Nano). Cleanup then only has to read expiry
// entries. The file is locked by one process at a time, so several Glimpse
// replicas that need shared throttle state should use valkey instead.
//
// [1]: https://github.com/etcd-io/bbolt
type Store struct {
	bdb *bbolt.DB
}

// expiryOf reads the expiry entry of a record bucket.
func expiryOf(bkt *bbolt.Bucket) (time.Time, bool, error) {
	raw := bkt.Get(expiryKey)
	if raw == nil {
		return time.Time{}, false, nil
	}

	expiry, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("[unexpected] %w: expiry %q: %w", store.ErrCantDecode, raw, err)
	}

	return expiry, true, nil
}

func putRecord(bkt *bbolt.Bucket, key string, data []byte, expiry *time.Time) error {
	if expiry != nil {
		if err := bkt.Put(expiryKey, []byte(expiry.Format(time.RFC3339Nano))); err != nil {
			return fmt.Errorf("%w: %q (expiry): %w", store.ErrCantEncode, key, err)
		}
	}

	if err := bkt.Put(dataKey, data); err != nil {
		return fmt.Errorf("%w: %q (data): %w", store.ErrCantEncode, key, err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(key)) == nil {
			return fmt.Errorf("%w: %q", ErrNotExists, key)
		}

		return tx.DeleteBucket([]byte(key))
	})
}

// Get returns a copy of the live value at key. Expired records are reported
// as missing and removed in the background.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte
	expired := false

	err := s.bdb.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(key))
		if bkt == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		expiry, ok, err := expiryOf(bkt)
		switch {
		case err != nil:
			return err
		case !ok:
			return fmt.Errorf("[unexpected] %w: %q has no expiry", store.ErrNotFound, key)
		case time.Now().After(expiry):
			expired = true
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		data := bkt.Get(dataKey)
		if data == nil {
			return fmt.Errorf("[unexpected] %w: %q has no data", store.ErrNotFound, key)
		}

		// bbolt memory is only valid inside the transaction.
		result = append([]byte(nil), data...)
		return nil
	})

	if expired {
		go s.Delete(context.WithoutCancel(ctx), key)
	}

	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	expires := time.Now().Add(expiry)

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return fmt.Errorf("%w: %q (create bucket): %w", store.ErrCantEncode, key, err)
		}

		return putRecord(bkt, key, value, &expires)
	})
}

// Increment bumps the counter at key inside one write transaction. A
// missing, expired or unreadable counter starts over at one with a fresh
// expiry.
func (s *Store) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	var result int64
	now := time.Now()

	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return fmt.Errorf("%w: %q (create bucket): %w", store.ErrCantEncode, key, err)
		}

		expiry, ok, err := expiryOf(bkt)
		if err != nil {
			return err
		}

		if ok && !now.After(expiry) {
			if n, err := store.ParseCounter(bkt.Get(dataKey)); err == nil {
				result = n + 1
				return putRecord(bkt, key, store.FormatCounter(result), nil)
			}
		}

		result = 1
		expires := now.Add(window)
		return putRecord(bkt, key, store.FormatCounter(result), &expires)
	})
	if err != nil {
		return 0, err
	}

	return result, nil
}

// cleanup drops every expired record.
func (s *Store) cleanup(ctx context.Context) error {
	now := time.Now()

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		var doomed [][]byte

		err := tx.ForEach(func(key []byte, bkt *bbolt.Bucket) error {
			expiry, ok, err := expiryOf(bkt)
			switch {
			case err != nil:
				return fmt.Errorf("bucket %q: %w", key, err)
			case !ok:
				slog.Warn("bbolt cleanup found a value without an expiry", "key", string(key))
			case now.After(expiry):
				doomed = append(doomed, append([]byte(nil), key...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		// Buckets can't be removed while ForEach is walking them.
		for _, key := range doomed {
			if err := tx.DeleteBucket(key); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(cleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.cleanup(ctx); err != nil {
				slog.Error("error during bbolt cleanup", "err", err)
			}
		}
	}
}
