package drawing

import (
	"bytes"
	"context"
	"crypto/rand"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"slices"
	"testing"

	chall "github.com/TecharoHQ/glimpse/lib/challenge"
	"github.com/TecharoHQ/glimpse/lib/challenge/challengetest"
	"github.com/TecharoHQ/glimpse/lib/features"
	"github.com/TecharoHQ/glimpse/lib/policy/config"
)

// squarePNG draws a filled black square on a white canvas.
func squarePNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(40, 40, 160, 160), image.NewUniform(color.Black), image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPrepare(t *testing.T) {
	cfg := config.Default()

	for range 20 {
		p, err := (&Impl{}).Prepare(&chall.PrepareInput{Config: cfg, Rand: rand.Reader})
		if err != nil {
			t.Fatal(err)
		}

		answer := p.Payload.(chall.DrawingAnswer)
		params := p.Public.(Params)

		if !slices.Contains(cfg.Drawing.Prompts, answer.Prompt) {
			t.Fatalf("prompt %q isn't configured", answer.Prompt)
		}

		if params.Prompt != answer.Prompt || params.MaxUploadBytes != cfg.Drawing.MaxUploadBytes {
			t.Fatalf("wrong params: %+v", params)
		}

		if len(answer.Expected) == 0 {
			t.Fatalf("default prompt %q has nothing to grade", answer.Prompt)
		}
	}
}

func TestGrade(t *testing.T) {
	cfg := config.Default()
	dec := features.NewDecoder(1, 0, nil)
	lg := slog.New(slog.DiscardHandler)
	square := squarePNG(t)

	for _, tt := range []struct {
		name   string
		prompt string
		image  []byte
		passed bool
		reason string
		score  *float64
	}{
		{
			name:   "square for square",
			prompt: "Draw a square",
			image:  square,
			passed: true,
			score:  ptr(1.0),
		},
		{
			name:   "square for triangle",
			prompt: "Draw a triangle",
			image:  square,
			reason: chall.ReasonInsufficientMatch,
			score:  ptr(0.0),
		},
		{
			name:   "square for a free prompt",
			prompt: "Draw your favourite memory",
			image:  square,
			reason: chall.ReasonInsufficientMatch,
			score:  ptr(features.NeutralScore),
		},
		{
			name:   "not an image",
			prompt: "Draw a square",
			image:  []byte("this is not a png"),
			reason: chall.ReasonImageProcessing,
		},
		{
			name:   "empty upload",
			prompt: "Draw a square",
			reason: chall.ReasonImageProcessing,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			ch := challengetest.New(t, chall.DrawingAnswer{
				Prompt:   tt.prompt,
				Expected: features.ExpectedFromPrompt(tt.prompt),
			})

			g, err := (&Impl{}).Grade(t.Context(), lg, &chall.GradeInput{
				Challenge:  ch,
				Submission: &chall.Submission{Image: tt.image},
				Config:     cfg,
				Decoder:    dec,
			})
			if err != nil {
				t.Fatal(err)
			}

			if g.Passed != tt.passed || g.Reason != tt.reason {
				t.Errorf("got %+v, want passed=%v reason=%q", g, tt.passed, tt.reason)
			}

			switch {
			case tt.score == nil && g.MatchScore != nil:
				t.Errorf("unexpected match score %f", *g.MatchScore)
			case tt.score != nil && (g.MatchScore == nil || *g.MatchScore != *tt.score):
				t.Errorf("match score %v, want %f", g.MatchScore, *tt.score)
			}
		})
	}
}

func TestGradeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	ch := challengetest.New(t, chall.DrawingAnswer{Prompt: "Draw a square", Expected: features.ExpectedFromPrompt("Draw a square")})

	_, err := (&Impl{}).Grade(ctx, slog.New(slog.DiscardHandler), &chall.GradeInput{
		Challenge:  ch,
		Submission: &chall.Submission{Image: squarePNG(t)},
		Config:     config.Default(),
		Decoder:    features.NewDecoder(1, 0, nil),
	})
	if err == nil {
		t.Fatal("grading with a cancelled context should fail")
	}
}

func TestDigestInputBindsImage(t *testing.T) {
	i := &Impl{}
	a := i.DigestInput(&chall.Submission{Image: []byte("a")})
	b := i.DigestInput(&chall.Submission{Image: []byte("b")})

	if a == b {
		t.Error("different images produced the same digest input")
	}

	if a != chall.ImageAnswer([]byte("a")) {
		t.Error("digest input is not the image hash")
	}
}

func ptr[T any](v T) *T { return &v }
