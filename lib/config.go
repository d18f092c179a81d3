package lib

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/TecharoHQ/glimpse"
	"github.com/TecharoHQ/glimpse/data"
	"github.com/TecharoHQ/glimpse/lib/challenge"
	"github.com/TecharoHQ/glimpse/lib/difficulty"
	"github.com/TecharoHQ/glimpse/lib/features"
	"github.com/TecharoHQ/glimpse/lib/policy"
	"github.com/TecharoHQ/glimpse/lib/store"
	"github.com/TecharoHQ/glimpse/lib/throttle"

	// challenge implementations
	_ "github.com/TecharoHQ/glimpse/lib/challenge/drawing"
	_ "github.com/TecharoHQ/glimpse/lib/challenge/flashlag"
	_ "github.com/TecharoHQ/glimpse/lib/challenge/illusion"
)

// Options configures an Engine.
type Options struct {
	Policy *policy.ParsedConfig

	// Store overrides the store configured in the policy.
	Store store.Interface

	// One of these signs pass tokens. With neither set a fresh ed25519 key
	// is generated.
	ED25519PrivateKey ed25519.PrivateKey
	HS512Secret       []byte
	TokenExpiration   time.Duration

	// RevealAnswers puts the answer key into issuance responses. It exists
	// for local debugging only.
	RevealAnswers bool

	// AdminToken unlocks the admin endpoints. They answer 403 when it is
	// empty.
	AdminToken string

	Clock func() time.Time
	Rand  io.Reader
}

// LoadPoliciesOrDefault reads the policy at fname, or the embedded default
// when fname is empty.
func LoadPoliciesOrDefault(fname string) (*policy.ParsedConfig, error) {
	var fin io.ReadCloser
	var err error

	if fname != "" {
		fin, err = os.Open(fname)
		if err != nil {
			return nil, fmt.Errorf("can't parse policy file %s: %w", fname, err)
		}
	} else {
		fname = "(data)/glimpse.yaml"
		fin, err = data.DefaultPolicy.Open("glimpse.yaml")
		if err != nil {
			return nil, fmt.Errorf("[unexpected] can't parse builtin policy file %s: %w", fname, err)
		}
	}

	defer func(fin io.ReadCloser) {
		if err := fin.Close(); err != nil {
			slog.Error("failed to close policy file", "file", fname, "err", err)
		}
	}(fin)

	result, err := policy.ParseConfig(fin, fname)
	if err != nil {
		return nil, fmt.Errorf("can't parse policy file %s: %w", fname, err)
	}

	for _, kind := range challenge.Kinds {
		if _, ok := challenge.Get(kind); !ok {
			return nil, fmt.Errorf("[unexpected] no implementation registered for %s", kind)
		}
	}

	return result, nil
}

// New wires an Engine together from opts. The store, if built here, runs
// its cleanup loop until ctx is cancelled.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Policy == nil {
		return nil, fmt.Errorf("lib: no policy given")
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}

	if opts.TokenExpiration <= 0 {
		opts.TokenExpiration = glimpse.PassTokenExpiration
	}

	if opts.ED25519PrivateKey == nil && opts.HS512Secret == nil {
		slog.Debug("opts.ED25519PrivateKey not set, generating a new one")
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("lib: can't generate private key: %w", err)
		}
		opts.ED25519PrivateKey = priv
	}

	cfg := opts.Policy.Config()

	st := opts.Store
	if st == nil {
		var err error
		st, err = cfg.Store.Build(ctx)
		if err != nil {
			return nil, fmt.Errorf("lib: %w", err)
		}
	}

	th, err := throttle.New(throttle.Options{
		Config: cfg.Throttle,
		Store:  st,
		Clock:  opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("lib: can't build throttle: %w", err)
	}

	ex := &features.Extractor{MinDefectDepth: cfg.Drawing.MinDefectDepth}

	return &Engine{
		policy: opts.Policy,
		cfg:    cfg,
		registry: challenge.NewRegistry(challenge.RegistryOptions{
			Clock: opts.Clock,
			Rand:  opts.Rand,
		}),
		difficulty: difficulty.New(difficulty.Options{
			InactivityWindow: cfg.Difficulty.InactivityWindow.Std(),
			MinAttempts:      cfg.Difficulty.MinAttempts,
			Clock:            opts.Clock,
		}),
		throttle: th,
		decoder:  features.NewDecoder(cfg.Drawing.DecodeConcurrency, cfg.Drawing.MaxPixels, ex),
		tokens: &TokenSigner{
			ed25519Priv: opts.ED25519PrivateKey,
			hs512Secret: opts.HS512Secret,
			expiration:  opts.TokenExpiration,
			now:         opts.Clock,
		},
		now:           opts.Clock,
		rand:          opts.Rand,
		revealAnswers: opts.RevealAnswers,
		adminToken:    opts.AdminToken,
	}, nil
}
