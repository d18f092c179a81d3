package challenge

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"
)

// maxNonceAttempts bounds how many times Issue redraws a colliding nonce.
const maxNonceAttempts = 4

// RegistryOptions configures a Registry. Zero values select crypto/rand and
// the wall clock.
type RegistryOptions struct {
	Clock func() time.Time
	Rand  io.Reader
}

// Registry holds every live challenge, keyed by nonce.
type Registry struct {
	lock sync.Mutex
	live map[string]*Challenge
	now  func() time.Time
	rand io.Reader
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}

	return &Registry{
		live: map[string]*Challenge{},
		now:  opts.Clock,
		rand: opts.Rand,
	}
}

// Issue records a new challenge with a fresh nonce and secret key. Expired
// challenges are swept first. The only failure is the entropy source giving
// out (ErrEntropy) or a payload that doesn't belong to kind (ErrMalformed).
func (r *Registry) Issue(kind Kind, payload Payload, difficulty int, clientIdentity string, ttl time.Duration) (*Challenge, error) {
	if err := kind.Valid(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if payload == nil || payload.Kind() != kind {
		return nil, fmt.Errorf("%w: payload %T can't be used for a %s challenge", ErrMalformed, payload, kind)
	}

	key, err := RandomToken(r.rand, KeyBytes)
	if err != nil {
		return nil, err
	}

	r.Sweep()

	r.lock.Lock()
	defer r.lock.Unlock()

	for range maxNonceAttempts {
		nonce, err := RandomToken(r.rand, NonceBytes)
		if err != nil {
			return nil, err
		}

		if _, ok := r.live[nonce]; ok {
			continue
		}

		result := &Challenge{
			Nonce:          nonce,
			Kind:           kind,
			SecretKey:      key,
			CreatedAt:      r.now(),
			TTL:            ttl,
			Difficulty:     difficulty,
			ClientIdentity: clientIdentity,
			Payload:        payload,
		}

		r.live[nonce] = result
		liveChallenges.WithLabelValues(string(kind)).Inc()

		return result, nil
	}

	return nil, fmt.Errorf("%w: nonce collided %d times in a row", ErrEntropy, maxNonceAttempts)
}

// Consume removes the challenge for nonce and returns it. Of any number of
// concurrent callers with the same nonce, exactly one gets the challenge;
// the rest get ErrInvalidNonce. Consume doesn't check the TTL.
func (r *Registry) Consume(nonce string) (*Challenge, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	result, ok := r.live[nonce]
	if !ok {
		return nil, ErrInvalidNonce
	}

	delete(r.live, nonce)
	liveChallenges.WithLabelValues(string(result.Kind)).Dec()

	return result, nil
}

// Sweep drops every expired challenge and returns how many it dropped.
func (r *Registry) Sweep() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	now := r.now()
	var n int

	for nonce, ch := range r.live {
		if ch.Expired(now) {
			delete(r.live, nonce)
			liveChallenges.WithLabelValues(string(ch.Kind)).Dec()
			n++
		}
	}

	return n
}

// Stats counts live challenges by kind. Challenges that have expired but
// not been swept are still counted.
func (r *Registry) Stats() map[Kind]int {
	r.lock.Lock()
	defer r.lock.Unlock()

	result := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		result[k] = 0
	}

	for _, ch := range r.live {
		result[ch.Kind]++
	}

	return result
}

// Len is the number of live challenges.
func (r *Registry) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.live)
}
