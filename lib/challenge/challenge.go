package challenge

import (
	"fmt"
	"time"

	"github.com/TecharoHQ/glimpse/lib/features"
)

// Kind names a challenge type.
type Kind string

const (
	KindFlashLag Kind = "flashlag"
	KindIllusion Kind = "illusion"
	KindDrawing  Kind = "drawing"
)

// Kinds lists every challenge kind in a stable order.
var Kinds = []Kind{KindFlashLag, KindIllusion, KindDrawing}

// Valid returns ErrUnknownKind for anything that isn't a known kind.
func (k Kind) Valid() error {
	switch k {
	case KindFlashLag, KindIllusion, KindDrawing:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
}

// Payload is the server-side answer key of a challenge. Each kind has exactly
// one payload type.
type Payload interface {
	Kind() Kind
}

// FlashLagAnswer is the grid cell the moving target occupied when it
// flashed.
type FlashLagAnswer struct {
	TargetIndex int `json:"target_index"`
}

func (FlashLagAnswer) Kind() Kind { return KindFlashLag }

// IllusionAnswer is the shape hidden in the illusion.
type IllusionAnswer struct {
	TargetShape string `json:"target_shape"`
}

func (IllusionAnswer) Kind() Kind { return KindIllusion }

// DrawingAnswer is the prompt shown to the user and the features a matching
// drawing must have.
type DrawingAnswer struct {
	Prompt   string            `json:"prompt"`
	Expected features.Features `json:"expected"`
}

func (DrawingAnswer) Kind() Kind { return KindDrawing }

// Challenge is one issued challenge. It lives in the Registry until it is
// consumed or swept.
type Challenge struct {
	Nonce          string
	Kind           Kind
	SecretKey      string
	CreatedAt      time.Time
	TTL            time.Duration
	Difficulty     int
	ClientIdentity string
	Payload        Payload
}

// ExpiresAt is the last instant at which the challenge is still valid.
func (c *Challenge) ExpiresAt() time.Time {
	return c.CreatedAt.Add(c.TTL)
}

// Expired reports whether more than TTL has elapsed since issuance.
func (c *Challenge) Expired(now time.Time) bool {
	return now.Sub(c.CreatedAt) > c.TTL
}
