package features

import (
	"image"
	"math"
	"strconv"
)

// Extractor turns a decoded drawing into Features. The zero value uses the
// default tuning.
type Extractor struct {
	// Threshold is the gray cutoff for ink, DefaultThreshold when zero.
	Threshold uint8
	// Epsilon is the polygon approximation tolerance as a fraction of the
	// contour perimeter, 0.04 when zero.
	Epsilon float64
	// SquareTolerance is how far the bounding box aspect ratio may stray from
	// 1.0 for a quadrilateral to be called a square, 0.05 when zero.
	SquareTolerance float64
	// MinDefectDepth is how deep, in pixels, a convexity defect must be to
	// count as the gap between two rays, 10 when zero.
	MinDefectDepth float64
}

// Analysis is the intermediate state of an extraction. It is mostly useful
// for debugging a classification.
type Analysis struct {
	Contour  []image.Point
	Area     float64
	Vertices []image.Point
	Bounds   image.Rectangle
	Shape    string
	Rays     int
}

func (e *Extractor) threshold() uint8 {
	if e.Threshold == 0 {
		return DefaultThreshold
	}
	return e.Threshold
}

func (e *Extractor) epsilon() float64 {
	if e.Epsilon <= 0 {
		return 0.04
	}
	return e.Epsilon
}

func (e *Extractor) squareTolerance() float64 {
	if e.SquareTolerance <= 0 {
		return 0.05
	}
	return e.SquareTolerance
}

func (e *Extractor) minDefectDepth() float64 {
	if e.MinDefectDepth <= 0 {
		return 10
	}
	return e.MinDefectDepth
}

// Analyze runs the full pipeline on img. It returns nil when the image has no
// ink at all.
func (e *Extractor) Analyze(img image.Image) *Analysis {
	mask := Binarize(img, e.threshold())

	var best []image.Point
	bestArea := -1.0
	for _, c := range ExternalContours(mask) {
		if a := Area(c); a > bestArea {
			best, bestArea = c, a
		}
	}

	if best == nil {
		return nil
	}

	result := &Analysis{
		Contour:  best,
		Area:     bestArea,
		Vertices: ApproxPoly(best, e.epsilon()*ArcLength(best)),
		Bounds:   BoundingRect(best),
	}

	result.Shape = e.classify(result.Vertices, result.Bounds)
	if result.Shape == ShapeCircle {
		result.Rays = e.countRays(best)
	}

	return result
}

// Extract returns the features of the largest shape in img. Images without
// a recognizable subject give an empty set, never an error.
func (e *Extractor) Extract(img image.Image) Features {
	result := Features{}

	a := e.Analyze(img)
	if a == nil {
		return result
	}

	if a.Shape != "" {
		result[KeyShape] = a.Shape
	}

	if a.Shape == ShapeCircle {
		result[KeyRays] = strconv.Itoa(a.Rays)
	}

	return result
}

func (e *Extractor) classify(vertices []image.Point, bounds image.Rectangle) string {
	switch n := len(vertices); {
	case n == 3:
		return ShapeTriangle
	case n == 4:
		if bounds.Dy() == 0 {
			return ShapeRectangle
		}
		aspect := float64(bounds.Dx()) / float64(bounds.Dy())
		if math.Abs(aspect-1) <= e.squareTolerance() {
			return ShapeSquare
		}
		return ShapeRectangle
	case n == 5:
		return ShapePentagon
	case n >= 8 && n <= 12:
		return ShapeCircle
	default:
		return ""
	}
}

func (e *Extractor) countRays(contour []image.Point) int {
	rays := 0
	for _, d := range ConvexityDefects(contour, ConvexHull(contour)) {
		if d.Depth > e.minDefectDepth() {
			rays++
		}
	}
	return rays
}
