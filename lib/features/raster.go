package features

import "image"

// DefaultThreshold is the brightest gray level that still counts as ink.
const DefaultThreshold = 127

// Mask is a binary image. Set pixels are ink.
type Mask struct {
	Rect image.Rectangle
	Pix  []bool
}

func (m *Mask) At(x, y int) bool {
	if !(image.Point{x, y}.In(m.Rect)) {
		return false
	}
	return m.Pix[(y-m.Rect.Min.Y)*m.Rect.Dx()+(x-m.Rect.Min.X)]
}

// Binarize converts img to grayscale and applies an inverted fixed threshold
// so that dark strokes become foreground. Transparent pixels are composited
// onto white first, which is what a canvas export with an empty background
// looks like to a human.
func Binarize(img image.Image, threshold uint8) *Mask {
	b := img.Bounds()
	m := &Mask{
		Rect: b,
		Pix:  make([]bool, b.Dx()*b.Dy()),
	}

	cut := uint32(threshold)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			// same weights as color.GrayModel, on premultiplied values
			lum := (19595*r + 38470*g + 7471*bl + 1<<15) >> 16
			lum += 0xffff - a
			m.Pix[i] = lum>>8 <= cut
			i++
		}
	}

	return m
}
