// Package features turns drawings into a handful of geometric facts and
// grades those facts against what a prompt asked for.
package features

import "maps"

// Well-known feature names.
const (
	KeyShape      = "shape"
	KeyRays       = "rays"
	KeyPetals     = "petals"
	KeyChimney    = "has_chimney"
	KeyArmsRaised = "arms_raised"
	KeyWhiskers   = "has_whiskers"
	KeyTime       = "time"
	KeyEyeClosed  = "eye_closed"
)

// Shape names produced by Extract or expected by prompts.
const (
	ShapeTriangle    = "triangle"
	ShapeSquare      = "square"
	ShapeRectangle   = "rectangle"
	ShapePentagon    = "pentagon"
	ShapeCircle      = "circle"
	ShapeHouse       = "house"
	ShapeFlower      = "flower"
	ShapeStickFigure = "stick_figure"
	ShapeCat         = "cat"
	ShapeClock       = "clock"
	ShapeFace        = "face"
)

// PassThreshold is the minimum Compare score for a drawing to be accepted.
const PassThreshold = 0.6

// NeutralScore is what Compare returns when nothing can be checked.
const NeutralScore = 0.5

// Features maps a feature name to its canonical string value. Counts are
// decimal integers and flags are "true" or "false".
type Features map[string]string

// Clone returns an independent copy of f.
func (f Features) Clone() Features {
	if f == nil {
		return Features{}
	}
	return maps.Clone(f)
}

// Compare scores extracted against expected. With no expectations the result
// is exactly NeutralScore, otherwise it is the fraction of expected keys that
// extracted carries with an equal value.
func Compare(extracted, expected Features) float64 {
	if len(expected) == 0 {
		return NeutralScore
	}

	matched := 0
	for k, want := range expected {
		if got, ok := extracted[k]; ok && got == want {
			matched++
		}
	}

	return float64(matched) / float64(len(expected))
}

// Passes reports whether a Compare score clears PassThreshold.
func Passes(score float64) bool {
	return score >= PassThreshold
}
