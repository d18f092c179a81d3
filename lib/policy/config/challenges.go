package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/glimpse"
)

var (
	ErrTTLTooShort         = errors.New("config: ttl must be at least one second")
	ErrGridTooSmall        = errors.New("config.FlashLag: grid_size must be at least 2")
	ErrGridTooLarge        = errors.New("config.FlashLag: grid_size must be at most 8")
	ErrFrameTiming         = errors.New("config.FlashLag: frame timings must be positive and floor must not exceed base")
	ErrNotEnoughShapes     = errors.New("config.Illusion: need at least two shapes")
	ErrDuplicateShape      = errors.New("config.Illusion: shapes must be unique")
	ErrBaseCandidates      = errors.New("config.Illusion: base_candidates must be at least 2")
	ErrContrastRange       = errors.New("config.Illusion: contrast values must be within (0, 1] and floor must not exceed base")
	ErrNoPrompts           = errors.New("config.Drawing: need at least one prompt")
	ErrEmptyPrompt         = errors.New("config.Drawing: prompts can't be empty")
	ErrMaxUploadBytes      = errors.New("config.Drawing: max_upload_bytes must be positive")
	ErrInactivityWindow    = errors.New("config.Difficulty: inactivity_window must be positive")
	ErrMinAttemptsTooLow   = errors.New("config.Difficulty: min_attempts must be at least 1")
	ErrNoChallengesEnabled = errors.New("config: at least one challenge kind must be enabled")
)

type FlashLag struct {
	Disabled     bool     `json:"disabled"`
	TTL          Duration `json:"ttl"`
	GridSize     int      `json:"grid_size"`
	FrameBaseMS  int      `json:"frame_base_ms"`
	FrameStepMS  int      `json:"frame_step_ms"`
	FrameFloorMS int      `json:"frame_floor_ms"`
}

func DefaultFlashLag() FlashLag {
	return FlashLag{
		TTL:          Duration(glimpse.DefaultFlashLagTTL),
		GridSize:     glimpse.DefaultGridSize,
		FrameBaseMS:  glimpse.DefaultFrameBaseMS,
		FrameStepMS:  glimpse.DefaultFrameStepMS,
		FrameFloorMS: glimpse.DefaultFrameFloorMS,
	}
}

// FrameMS is how long the flash is shown at difficulty level d.
func (fl FlashLag) FrameMS(d int) int {
	return max(fl.FrameFloorMS, fl.FrameBaseMS-d*fl.FrameStepMS)
}

// Cells is the number of cells in the grid.
func (fl FlashLag) Cells() int {
	return fl.GridSize * fl.GridSize
}

func (fl FlashLag) Valid() error {
	var errs []error

	if fl.TTL.Std() < time.Second {
		errs = append(errs, fmt.Errorf("%w, got: %s", ErrTTLTooShort, fl.TTL))
	}

	if fl.GridSize < 2 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrGridTooSmall, fl.GridSize))
	}

	if fl.GridSize > 8 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrGridTooLarge, fl.GridSize))
	}

	if fl.FrameBaseMS <= 0 || fl.FrameStepMS < 0 || fl.FrameFloorMS <= 0 || fl.FrameFloorMS > fl.FrameBaseMS {
		errs = append(errs, fmt.Errorf("%w: base=%d step=%d floor=%d", ErrFrameTiming, fl.FrameBaseMS, fl.FrameStepMS, fl.FrameFloorMS))
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: flashlag settings are not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

type Illusion struct {
	Disabled       bool     `json:"disabled"`
	TTL            Duration `json:"ttl"`
	Shapes         []string `json:"shapes"`
	BaseCandidates int      `json:"base_candidates"`
	ContrastBase   float64  `json:"contrast_base"`
	ContrastStep   float64  `json:"contrast_step"`
	ContrastFloor  float64  `json:"contrast_floor"`
}

func DefaultIllusion() Illusion {
	return Illusion{
		TTL:            Duration(glimpse.DefaultIllusionTTL),
		Shapes:         []string{"circle", "square", "triangle", "star", "heart", "hexagon", "diamond"},
		BaseCandidates: 3,
		ContrastBase:   0.6,
		ContrastStep:   0.1,
		ContrastFloor:  0.15,
	}
}

// Candidates is how many shapes are offered at difficulty level d.
func (il Illusion) Candidates(d int) int {
	return min(len(il.Shapes), il.BaseCandidates+d)
}

// Contrast is the opacity of the hidden shape at difficulty level d.
func (il Illusion) Contrast(d int) float64 {
	return max(il.ContrastFloor, il.ContrastBase-float64(d)*il.ContrastStep)
}

func (il Illusion) Valid() error {
	var errs []error

	if il.TTL.Std() < time.Second {
		errs = append(errs, fmt.Errorf("%w, got: %s", ErrTTLTooShort, il.TTL))
	}

	if len(il.Shapes) < 2 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrNotEnoughShapes, len(il.Shapes)))
	}

	seen := map[string]bool{}
	for _, s := range il.Shapes {
		if seen[s] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrDuplicateShape, s))
		}
		seen[s] = true
	}

	if il.BaseCandidates < 2 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrBaseCandidates, il.BaseCandidates))
	}

	for _, v := range []float64{il.ContrastBase, il.ContrastFloor} {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%w, got: %v", ErrContrastRange, v))
		}
	}

	if il.ContrastStep < 0 || il.ContrastFloor > il.ContrastBase {
		errs = append(errs, fmt.Errorf("%w: base=%v step=%v floor=%v", ErrContrastRange, il.ContrastBase, il.ContrastStep, il.ContrastFloor))
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: illusion settings are not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

type Drawing struct {
	Disabled          bool     `json:"disabled"`
	TTL               Duration `json:"ttl"`
	Prompts           []string `json:"prompts"`
	MaxUploadBytes    int64    `json:"max_upload_bytes"`
	MaxPixels         int      `json:"max_pixels"`
	DecodeConcurrency int      `json:"decode_concurrency"`
	MinDefectDepth    float64  `json:"min_defect_depth"`
}

func DefaultDrawing() Drawing {
	return Drawing{
		TTL: Duration(glimpse.DefaultDrawingTTL),
		Prompts: []string{
			"Draw a sun with exactly 5 rays",
			"Draw a circle",
			"Draw a square",
			"Draw a triangle",
			"Draw a pentagon",
		},
		MaxUploadBytes: glimpse.DefaultMaxUploadSize,
	}
}

func (dr Drawing) Valid() error {
	var errs []error

	if dr.TTL.Std() < time.Second {
		errs = append(errs, fmt.Errorf("%w, got: %s", ErrTTLTooShort, dr.TTL))
	}

	if len(dr.Prompts) == 0 {
		errs = append(errs, ErrNoPrompts)
	}

	for i, p := range dr.Prompts {
		if p == "" {
			errs = append(errs, fmt.Errorf("%w: prompt %d", ErrEmptyPrompt, i))
		}
	}

	if dr.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrMaxUploadBytes, dr.MaxUploadBytes))
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: drawing settings are not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

type Difficulty struct {
	InactivityWindow Duration `json:"inactivity_window"`
	MinAttempts      int      `json:"min_attempts"`
}

func DefaultDifficulty() Difficulty {
	return Difficulty{
		InactivityWindow: Duration(glimpse.DefaultInactivityWindow),
		MinAttempts:      3,
	}
}

func (d Difficulty) Valid() error {
	var errs []error

	if d.InactivityWindow <= 0 {
		errs = append(errs, ErrInactivityWindow)
	}

	if d.MinAttempts < 1 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrMinAttemptsTooLow, d.MinAttempts))
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: difficulty settings are not valid:\n%w", errors.Join(errs...))
	}

	return nil
}
