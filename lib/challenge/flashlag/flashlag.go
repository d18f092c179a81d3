// Package flashlag implements the flash-lag challenge: a target moves across
// a grid and flashes once, and the user picks the cell it flashed in.
package flashlag

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	chall "github.com/TecharoHQ/glimpse/lib/challenge"
	"github.com/TecharoHQ/glimpse/lib/policy/config"
)

func init() {
	chall.Register(chall.KindFlashLag, &Impl{})
}

// Params is what the client needs to render the challenge.
type Params struct {
	GridSize int `json:"grid_size"`
	Cells    int `json:"cells"`
	FrameMS  int `json:"frame_ms"`
}

type Impl struct{}

func (i *Impl) Enabled(cfg *config.Config) bool { return !cfg.FlashLag.Disabled }

func (i *Impl) TTL(cfg *config.Config) time.Duration { return cfg.FlashLag.TTL.Std() }

func (i *Impl) Prepare(in *chall.PrepareInput) (*chall.Prepared, error) {
	fl := in.Config.FlashLag

	target, err := chall.RandomIntn(in.Rand, fl.Cells())
	if err != nil {
		return nil, err
	}

	return &chall.Prepared{
		Payload: chall.FlashLagAnswer{TargetIndex: target},
		Public: Params{
			GridSize: fl.GridSize,
			Cells:    fl.Cells(),
			FrameMS:  fl.FrameMS(in.Difficulty),
		},
	}, nil
}

// DigestInput is the chosen index exactly as the client sent it.
func (i *Impl) DigestInput(sub *chall.Submission) string {
	return sub.Answer
}

func (i *Impl) Grade(ctx context.Context, lg *slog.Logger, in *chall.GradeInput) (*chall.Grade, error) {
	answer, ok := in.Challenge.Payload.(chall.FlashLagAnswer)
	if !ok {
		return nil, fmt.Errorf("%w: flashlag challenge carries %T", chall.ErrMalformed, in.Challenge.Payload)
	}

	chosen, err := strconv.Atoi(in.Submission.Answer)
	if err != nil || chosen != answer.TargetIndex {
		lg.Debug("wrong cell chosen", "chosen", in.Submission.Answer)
		return &chall.Grade{Reason: chall.ReasonWrongIndex}, nil
	}

	return &chall.Grade{Passed: true}, nil
}
