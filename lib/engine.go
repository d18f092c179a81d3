// Package lib ties the challenge registry, difficulty controller, scorer,
// throttle and advisory flags together into the Glimpse protocol engine,
// and exposes it over HTTP.
package lib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"time"

	"github.com/TecharoHQ/glimpse/internal"
	"github.com/TecharoHQ/glimpse/lib/challenge"
	"github.com/TecharoHQ/glimpse/lib/difficulty"
	"github.com/TecharoHQ/glimpse/lib/features"
	"github.com/TecharoHQ/glimpse/lib/policy"
	"github.com/TecharoHQ/glimpse/lib/policy/config"
	"github.com/TecharoHQ/glimpse/lib/score"
	"github.com/TecharoHQ/glimpse/lib/throttle"
	"github.com/golang-jwt/jwt/v5"
)

// Validation statuses.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Engine issues and validates challenges. It is safe for concurrent use.
type Engine struct {
	policy     *policy.ParsedConfig
	cfg        *config.Config
	registry   *challenge.Registry
	difficulty *difficulty.Controller
	throttle   *throttle.Throttle
	decoder    *features.Decoder
	tokens     *TokenSigner

	now           func() time.Time
	rand          io.Reader
	revealAnswers bool
	adminToken    string
}

// Client identifies who is asking. Identity keys the difficulty history and
// throttle; Addr is matched against the throttle CIDR lists and may be the
// zero value.
type Client struct {
	Identity string
	Addr     netip.Addr
}

// Issued is what the client gets back from issuance. Params holds the
// kind-specific presentation parameters. Answer is only set when the engine
// was built with RevealAnswers.
type Issued struct {
	Nonce        string            `json:"nonce"`
	Kind         challenge.Kind    `json:"kind"`
	EphemeralKey string            `json:"ephemeral_key"`
	TTLMs        int64             `json:"ttl_ms"`
	Difficulty   int               `json:"difficulty"`
	CreatedAtMs  int64             `json:"created_at_ms"`
	Params       any               `json:"params"`
	Answer       challenge.Payload `json:"answer,omitempty"`
}

// Result is the terminal outcome of one validation.
type Result struct {
	Status           string   `json:"status"`
	Reason           string   `json:"reason,omitempty"`
	Difficulty       int      `json:"difficulty"`
	AIDetectionScore int      `json:"ai_detection_score"`
	ResponseTimeMs   *int64   `json:"response_time_ms,omitempty"`
	MatchScore       *float64 `json:"match_score,omitempty"`
	Flags            []string `json:"flags,omitempty"`
	Token            string   `json:"token,omitempty"`
}

// Stats is a read-only snapshot of engine state.
type Stats struct {
	LiveChallenges map[challenge.Kind]int `json:"live_challenges"`
	TrackedClients int                    `json:"tracked_clients"`
}

// Issue creates a challenge of kind for client at the client's current
// difficulty.
func (e *Engine) Issue(ctx context.Context, lg *slog.Logger, kind challenge.Kind, client Client) (*Issued, error) {
	lg = lg.With("kind", kind)

	impl, ok := challenge.Get(kind)
	if !ok {
		return nil, challenge.NewError("issue", "unknown challenge kind", fmt.Errorf("%w: %q", challenge.ErrUnknownKind, kind))
	}

	if !impl.Enabled(e.cfg) {
		return nil, challenge.NewError("issue", "challenge kind is not available", fmt.Errorf("%w: %s", challenge.ErrKindDisabled, kind))
	}

	if err := e.throttle.Allow(ctx, client.Identity, client.Addr); err != nil {
		lg.Info("issuance throttled", "err", err)
		return nil, err
	}

	level := e.difficulty.CurrentDifficulty(client.Identity)

	prepared, err := impl.Prepare(&challenge.PrepareInput{
		Config:     e.cfg,
		Difficulty: level,
		Rand:       e.rand,
	})
	if err != nil {
		return nil, challenge.NewError("issue", "can't prepare challenge", err)
	}

	ch, err := e.registry.Issue(kind, prepared.Payload, level, client.Identity, impl.TTL(e.cfg))
	if err != nil {
		return nil, challenge.NewError("issue", "can't issue challenge", err)
	}

	challenge.ChallengesIssued.WithLabelValues(string(kind)).Inc()
	lg.Debug("challenge issued", "difficulty", level, "ttl", ch.TTL)

	result := &Issued{
		Nonce:        ch.Nonce,
		Kind:         ch.Kind,
		EphemeralKey: ch.SecretKey,
		TTLMs:        ch.TTL.Milliseconds(),
		Difficulty:   ch.Difficulty,
		CreatedAtMs:  ch.CreatedAt.UnixMilli(),
		Params:       prepared.Public,
	}

	if e.revealAnswers {
		result.Answer = ch.Payload
	}

	return result, nil
}

// reject ends a validation before grading. Submissions that can't be tied
// to a live challenge of the right kind report StatusError; a timeout is a
// StatusFail.
func (e *Engine) reject(lg *slog.Logger, kind challenge.Kind, level int, status, reason string) *Result {
	lg.Info("validation rejected", "status", status, "reason", reason)
	challenge.ChallengesValidated.WithLabelValues(string(kind), status).Inc()
	challenge.FailedValidations.WithLabelValues(string(kind), reason).Inc()

	return &Result{
		Status:     status,
		Reason:     reason,
		Difficulty: level,
	}
}

// Validate runs one submission to a terminal status. Whatever the outcome,
// the nonce can't be used again. Rejections (unknown nonce, timeout, kind
// mismatch, bad digest) don't count toward the client's history; graded
// outcomes do. An error is only returned when grading itself breaks down,
// for example because ctx was cancelled.
func (e *Engine) Validate(ctx context.Context, lg *slog.Logger, kind challenge.Kind, client Client, sub *challenge.Submission) (*Result, error) {
	now := e.now()
	lg = lg.With("kind", kind)

	ch, err := e.registry.Consume(sub.Nonce)
	if err != nil {
		level := 0
		if h, ok := e.difficulty.Peek(client.Identity); ok {
			level = h.Difficulty
		}
		return e.reject(lg, kind, level, StatusError, challenge.ReasonInvalidNonce), nil
	}

	if ch.Expired(now) {
		return e.reject(lg, kind, ch.Difficulty, StatusFail, challenge.ReasonTimeout), nil
	}

	if ch.Kind != kind {
		return e.reject(lg, kind, ch.Difficulty, StatusError, challenge.ReasonKindMismatch), nil
	}

	impl, ok := challenge.Get(ch.Kind)
	if !ok {
		return nil, fmt.Errorf("[unexpected] %w: %s", challenge.ErrUnknownKind, ch.Kind)
	}

	if !challenge.VerifyDigest(ch.SecretKey, ch.Nonce, impl.DigestInput(sub), sub.ClientTimestamp, sub.Digest) {
		return e.reject(lg, kind, ch.Difficulty, StatusError, challenge.ReasonInvalidDigest), nil
	}

	grade, err := impl.Grade(ctx, lg, &challenge.GradeInput{
		Challenge:  ch,
		Submission: sub,
		Config:     e.cfg,
		Decoder:    e.decoder,
	})
	if err != nil {
		challenge.ChallengesValidated.WithLabelValues(string(kind), StatusError).Inc()
		return nil, fmt.Errorf("can't grade %s challenge: %w", kind, err)
	}

	hist := e.difficulty.RecordAttempt(ch.ClientIdentity, grade.Passed)

	responseTime := now.Sub(ch.CreatedAt)
	responseMs := responseTime.Milliseconds()
	aiScore := score.Score(responseTime, ch.Difficulty, hist)

	result := &Result{
		Status:           StatusSuccess,
		Reason:           grade.Reason,
		Difficulty:       ch.Difficulty,
		AIDetectionScore: aiScore,
		ResponseTimeMs:   &responseMs,
		MatchScore:       grade.MatchScore,
	}

	fi := &policy.FlagInput{
		Score:          aiScore,
		Difficulty:     ch.Difficulty,
		ResponseTimeMs: responseMs,
		Kind:           string(kind),
		Attempts:       hist.Attempts,
		Successes:      hist.Successes,
		Passed:         grade.Passed,
	}
	if grade.MatchScore != nil {
		fi.MatchScore = *grade.MatchScore
	}

	result.Flags = e.policy.Evaluate(ctx, lg, fi)
	for _, f := range result.Flags {
		challenge.FlagHits.WithLabelValues(f).Inc()
	}

	challenge.ResponseTime.WithLabelValues(string(kind)).Observe(float64(responseMs))
	challenge.AIDetectionScore.WithLabelValues(string(kind)).Observe(float64(aiScore))

	if grade.Passed {
		if err := e.throttle.RecordSuccess(ctx, ch.ClientIdentity); err != nil {
			lg.Error("can't clear failure count", "err", err)
		}

		token, err := e.tokens.Sign(PassClaims{
			Kind:       kind,
			Difficulty: ch.Difficulty,
			Score:      aiScore,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject: internal.SHA256sum(ch.ClientIdentity),
			},
		})
		if err != nil {
			lg.Error("can't sign pass token", "err", err)
		}
		result.Token = token
	} else {
		result.Status = StatusFail
		challenge.FailedValidations.WithLabelValues(string(kind), grade.Reason).Inc()

		locked, err := e.throttle.RecordFailure(ctx, ch.ClientIdentity, client.Addr)
		if err != nil {
			lg.Error("can't record failure", "err", err)
		}
		if locked {
			lg.Info("client locked out after repeated failures")
		}
	}

	challenge.ChallengesValidated.WithLabelValues(string(kind), result.Status).Inc()
	lg.Debug("challenge validated", "status", result.Status, "reason", result.Reason, "score", aiScore, "flags", result.Flags)

	return result, nil
}

// VerifyToken checks a pass token minted by this engine.
func (e *Engine) VerifyToken(token string) (*PassClaims, error) {
	return e.tokens.Verify(token)
}

// Stats reports live challenges per kind and the number of clients with a
// history. It changes nothing.
func (e *Engine) Stats() Stats {
	return Stats{
		LiveChallenges: e.registry.Stats(),
		TrackedClients: e.difficulty.Len(),
	}
}

// ClientStatus is what the engine knows about one client.
type ClientStatus struct {
	Client  string              `json:"client"`
	History *difficulty.History `json:"history,omitempty"`
	Lockout *throttle.Lockout   `json:"lockout,omitempty"`
}

// ClientStatus reports the history and any active lockout of identity. It
// changes nothing.
func (e *Engine) ClientStatus(ctx context.Context, identity string) (*ClientStatus, error) {
	result := &ClientStatus{Client: identity}

	if h, ok := e.difficulty.Peek(identity); ok {
		result.History = &h
	}

	lo, ok, err := e.throttle.LockoutStatus(ctx, identity)
	if err != nil {
		return nil, err
	}
	if ok {
		result.Lockout = &lo
	}

	return result, nil
}

// ClearLockout lifts any lockout on identity and forgets its recent
// failures. The difficulty history is kept.
func (e *Engine) ClearLockout(ctx context.Context, lg *slog.Logger, identity string) error {
	if err := e.throttle.Clear(ctx, identity); err != nil {
		return err
	}

	lg.Info("lockout cleared", "client", identity)
	return nil
}

// Config returns the policy the engine runs with.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// SweepInterval is how often Run clears out expired state.
const SweepInterval = time.Minute

// Run sweeps expired challenges and idle throttle buckets every
// SweepInterval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	t := time.NewTicker(SweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n := e.registry.Sweep()
			e.throttle.Cleanup()
			if n != 0 {
				slog.Debug("swept expired challenges", "count", n)
			}
		}
	}
}

// IsThrottled reports whether err is a throttle decision rather than a
// failure.
func IsThrottled(err error) bool {
	return errors.Is(err, throttle.ErrBlocked) || errors.Is(err, throttle.ErrRateLimited) || errors.Is(err, throttle.ErrLockedOut)
}
