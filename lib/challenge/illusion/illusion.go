// Package illusion implements the hidden-shape challenge: one shape is
// drawn at low contrast inside a noise field and the user names it from a
// list of candidates.
package illusion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	chall "github.com/TecharoHQ/glimpse/lib/challenge"
	"github.com/TecharoHQ/glimpse/lib/policy/config"
)

func init() {
	chall.Register(chall.KindIllusion, &Impl{})
}

// Params is what the client needs to render the challenge. Shapes always
// contains the hidden shape, at a random position.
type Params struct {
	Shapes   []string `json:"shapes"`
	Contrast float64  `json:"contrast"`
}

type Impl struct{}

func (i *Impl) Enabled(cfg *config.Config) bool { return !cfg.Illusion.Disabled }

func (i *Impl) TTL(cfg *config.Config) time.Duration { return cfg.Illusion.TTL.Std() }

func (i *Impl) Prepare(in *chall.PrepareInput) (*chall.Prepared, error) {
	il := in.Config.Illusion

	catalogue := slices.Clone(il.Shapes)
	if err := chall.Shuffle(in.Rand, catalogue); err != nil {
		return nil, err
	}

	// The first n entries of a shuffled catalogue are a uniform sample; the
	// target is drawn from that sample so it is always offered.
	candidates := catalogue[:il.Candidates(in.Difficulty)]

	idx, err := chall.RandomIntn(in.Rand, len(candidates))
	if err != nil {
		return nil, err
	}

	return &chall.Prepared{
		Payload: chall.IllusionAnswer{TargetShape: candidates[idx]},
		Public: Params{
			Shapes:   candidates,
			Contrast: il.Contrast(in.Difficulty),
		},
	}, nil
}

// DigestInput is the shape label as the client sent it.
func (i *Impl) DigestInput(sub *chall.Submission) string {
	return sub.Answer
}

func (i *Impl) Grade(ctx context.Context, lg *slog.Logger, in *chall.GradeInput) (*chall.Grade, error) {
	answer, ok := in.Challenge.Payload.(chall.IllusionAnswer)
	if !ok {
		return nil, fmt.Errorf("%w: illusion challenge carries %T", chall.ErrMalformed, in.Challenge.Payload)
	}

	if in.Submission.Answer != answer.TargetShape {
		lg.Debug("wrong shape named", "shape", in.Submission.Answer)
		return &chall.Grade{Reason: chall.ReasonWrongShape}, nil
	}

	return &chall.Grade{Passed: true}, nil
}
