// Package drawing implements the freeform drawing challenge. The user
// draws what a prompt describes and uploads the picture; the server
// extracts geometric features from it and compares them with what the
// prompt asked for.
package drawing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	chall "github.com/TecharoHQ/glimpse/lib/challenge"
	"github.com/TecharoHQ/glimpse/lib/features"
	"github.com/TecharoHQ/glimpse/lib/policy/config"
)

func init() {
	chall.Register(chall.KindDrawing, &Impl{})
}

// Params is what the client needs to present the challenge.
type Params struct {
	Prompt         string `json:"prompt"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
}

type Impl struct{}

func (i *Impl) Enabled(cfg *config.Config) bool { return !cfg.Drawing.Disabled }

func (i *Impl) TTL(cfg *config.Config) time.Duration { return cfg.Drawing.TTL.Std() }

func (i *Impl) Prepare(in *chall.PrepareInput) (*chall.Prepared, error) {
	dr := in.Config.Drawing

	idx, err := chall.RandomIntn(in.Rand, len(dr.Prompts))
	if err != nil {
		return nil, err
	}

	prompt := dr.Prompts[idx]

	return &chall.Prepared{
		Payload: chall.DrawingAnswer{
			Prompt:   prompt,
			Expected: features.ExpectedFromPrompt(prompt),
		},
		Public: Params{
			Prompt:         prompt,
			MaxUploadBytes: dr.MaxUploadBytes,
		},
	}, nil
}

// DigestInput is the SHA-256 of the uploaded image, so the digest binds the
// exact bytes that get graded.
func (i *Impl) DigestInput(sub *chall.Submission) string {
	return chall.ImageAnswer(sub.Image)
}

func (i *Impl) Grade(ctx context.Context, lg *slog.Logger, in *chall.GradeInput) (*chall.Grade, error) {
	answer, ok := in.Challenge.Payload.(chall.DrawingAnswer)
	if !ok {
		return nil, fmt.Errorf("%w: drawing challenge carries %T", chall.ErrMalformed, in.Challenge.Payload)
	}

	if in.Decoder == nil {
		return nil, fmt.Errorf("%w: no image decoder configured", chall.ErrProcessingFailure)
	}

	extracted, err := in.Decoder.Extract(ctx, in.Submission.Image)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case err != nil:
		lg.Info("can't process drawing", "err", err)
		return &chall.Grade{Reason: chall.ReasonImageProcessing}, nil
	}

	score := features.Compare(extracted, answer.Expected)
	lg.Debug("drawing compared", "extracted", extracted, "expected", answer.Expected, "score", score)

	if !features.Passes(score) {
		return &chall.Grade{Reason: chall.ReasonInsufficientMatch, MatchScore: &score}, nil
	}

	return &chall.Grade{Passed: true, MatchScore: &score}, nil
}
