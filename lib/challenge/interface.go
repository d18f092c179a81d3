package challenge

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/TecharoHQ/glimpse/lib/features"
	"github.com/TecharoHQ/glimpse/lib/policy/config"
)

var (
	registry = map[Kind]Impl{}
	regLock  sync.RWMutex
)

// Register makes impl the implementation of kind.
func Register(kind Kind, impl Impl) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[kind] = impl
}

// Get returns the implementation of kind.
func Get(kind Kind) (Impl, bool) {
	regLock.RLock()
	defer regLock.RUnlock()
	result, ok := registry[kind]
	return result, ok
}

// Methods lists the registered kinds in sorted order.
func Methods() []Kind {
	regLock.RLock()
	defer regLock.RUnlock()

	result := make([]Kind, 0, len(registry))
	for kind := range registry {
		result = append(result, kind)
	}
	slices.Sort(result)
	return result
}

// PrepareInput carries what an Impl needs to build a new challenge.
type PrepareInput struct {
	Config     *config.Config
	Difficulty int
	Rand       io.Reader
}

// Prepared is a freshly built answer key along with the parameters the
// client needs to present the challenge. Public must never contain the
// answer.
type Prepared struct {
	Payload Payload
	Public  any
}

// Submission is a client's answer to a challenge.
type Submission struct {
	Nonce           string
	Answer          string
	Image           []byte
	ClientTimestamp int64
	Digest          string
}

// GradeInput is everything an Impl needs to grade a submission. The
// challenge has already been consumed and authenticated.
type GradeInput struct {
	Challenge  *Challenge
	Submission *Submission
	Config     *config.Config
	Decoder    *features.Decoder
}

// Grade is the outcome of grading. Reason is empty on a pass. MatchScore is
// only set by kinds that compute one.
type Grade struct {
	Passed     bool
	Reason     string
	MatchScore *float64
}

// Impl is one kind of challenge.
type Impl interface {
	// Enabled reports whether the policy turns this kind on.
	Enabled(cfg *config.Config) bool

	// TTL is how long an issued challenge of this kind stays valid.
	TTL(cfg *config.Config) time.Duration

	// Prepare draws a new answer key at the given difficulty.
	Prepare(in *PrepareInput) (*Prepared, error)

	// DigestInput returns the answer string that the submission's digest
	// must authenticate.
	DigestInput(sub *Submission) string

	// Grade compares an authenticated submission with the answer key.
	Grade(ctx context.Context, lg *slog.Logger, in *GradeInput) (*Grade, error)
}
