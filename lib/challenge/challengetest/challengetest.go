// Package challengetest mints challenges and signed submissions for tests.
package challengetest

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/TecharoHQ/glimpse/lib/challenge"
	"github.com/google/uuid"
)

// New builds a live-looking challenge around payload without going through
// a Registry. It was created a second ago and has a minute to live.
func New(t *testing.T, payload challenge.Payload) *challenge.Challenge {
	t.Helper()

	nonce, err := challenge.RandomToken(rand.Reader, challenge.NonceBytes)
	if err != nil {
		t.Fatal(err)
	}

	key, err := challenge.RandomToken(rand.Reader, challenge.KeyBytes)
	if err != nil {
		t.Fatal(err)
	}

	return &challenge.Challenge{
		Nonce:          nonce,
		Kind:           payload.Kind(),
		SecretKey:      key,
		CreatedAt:      time.Now().Add(-time.Second),
		TTL:            time.Minute,
		ClientIdentity: ClientIdentity(),
		Payload:        payload,
	}
}

// ClientIdentity returns a fresh, unique client identity.
func ClientIdentity() string {
	return "client-" + uuid.Must(uuid.NewV7()).String()
}

// Sign fills in the submission's nonce and a correct digest for ch, using
// answer as the authenticated answer string.
func Sign(ch *challenge.Challenge, sub *challenge.Submission, answer string) *challenge.Submission {
	sub.Nonce = ch.Nonce
	if sub.ClientTimestamp == 0 {
		sub.ClientTimestamp = time.Now().UnixMilli()
	}
	sub.Digest = challenge.Digest(ch.SecretKey, ch.Nonce, answer, sub.ClientTimestamp)
	return sub
}
