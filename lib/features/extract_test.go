package features

import (
	"image"
	"image/color"
	"image/draw"
	"maps"
	"math"
	"testing"
)

type fpoint struct{ X, Y float64 }

func canvas(t *testing.T, w, h int) *image.RGBA {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

func inPolygon(p fpoint, poly []fpoint) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

func fillPolygon(img *image.RGBA, poly []fpoint) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if inPolygon(fpoint{float64(x) + 0.5, float64(y) + 0.5}, poly) {
				img.Set(x, y, color.Black)
			}
		}
	}
}

func fillDisc(img *image.RGBA, cx, cy, r float64) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, color.Black)
			}
		}
	}
}

func regularPolygon(cx, cy, r float64, n int) []fpoint {
	var result []fpoint
	for i := range n {
		theta := -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
		result = append(result, fpoint{cx + r*math.Cos(theta), cy + r*math.Sin(theta)})
	}
	return result
}

// star alternates between outer and inner radius, tips first.
func star(cx, cy, outer, inner float64, points int) []fpoint {
	var result []fpoint
	for i := range 2 * points {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		theta := -math.Pi/2 + math.Pi*float64(i)/float64(points)
		result = append(result, fpoint{cx + r*math.Cos(theta), cy + r*math.Sin(theta)})
	}
	return result
}

func TestExtract(t *testing.T) {
	for _, tt := range []struct {
		name string
		draw func(img *image.RGBA)
		want Features
	}{
		{
			name: "square",
			draw: func(img *image.RGBA) {
				fillPolygon(img, []fpoint{{60, 60}, {180, 60}, {180, 180}, {60, 180}})
			},
			want: Features{KeyShape: ShapeSquare},
		},
		{
			name: "rectangle",
			draw: func(img *image.RGBA) {
				fillPolygon(img, []fpoint{{30, 100}, {230, 100}, {230, 170}, {30, 170}})
			},
			want: Features{KeyShape: ShapeRectangle},
		},
		{
			name: "triangle",
			draw: func(img *image.RGBA) {
				fillPolygon(img, []fpoint{{130, 20}, {230, 220}, {30, 220}})
			},
			want: Features{KeyShape: ShapeTriangle},
		},
		{
			name: "pentagon",
			draw: func(img *image.RGBA) {
				fillPolygon(img, regularPolygon(130, 130, 100, 5))
			},
			want: Features{KeyShape: ShapePentagon},
		},
		{
			name: "circle",
			draw: func(img *image.RGBA) {
				fillDisc(img, 130, 130, 100)
			},
			want: Features{KeyShape: ShapeCircle, KeyRays: "0"},
		},
		{
			name: "sun with five rays",
			draw: func(img *image.RGBA) {
				fillPolygon(img, star(130, 130, 100, 33, 5))
			},
			want: Features{KeyShape: ShapeCircle, KeyRays: "5"},
		},
		{
			name: "largest subject wins",
			draw: func(img *image.RGBA) {
				fillPolygon(img, []fpoint{{5, 5}, {25, 5}, {25, 15}, {5, 15}})
				fillPolygon(img, []fpoint{{60, 60}, {180, 60}, {180, 180}, {60, 180}})
			},
			want: Features{KeyShape: ShapeSquare},
		},
		{
			name: "blank page",
			draw: func(img *image.RGBA) {},
			want: Features{},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			img := canvas(t, 260, 260)
			tt.draw(img)

			e := &Extractor{}
			got := e.Extract(img)
			if !maps.Equal(got, tt.want) {
				if a := e.Analyze(img); a != nil {
					t.Logf("vertices: %v", a.Vertices)
				}
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSunDrawingMatchesPrompt(t *testing.T) {
	img := canvas(t, 260, 260)
	fillPolygon(img, star(130, 130, 100, 33, 5))

	got := (&Extractor{}).Extract(img)
	score := Compare(got, ExpectedFromPrompt("Draw a sun with exactly 5 rays"))

	if score != 1 {
		t.Errorf("score: got %v, want 1 (extracted %v)", score, got)
	}
}

func TestBinarize(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	// transparent, opaque black, half-transparent black
	img.SetNRGBA(1, 0, color.NRGBA{0, 0, 0, 255})
	img.SetNRGBA(2, 0, color.NRGBA{0, 0, 0, 64})

	m := Binarize(img, DefaultThreshold)

	for x, want := range []bool{false, true, false} {
		if got := m.At(x, 0); got != want {
			t.Errorf("pixel %d: got %v, want %v", x, got, want)
		}
	}

	if m.At(-1, 0) || m.At(3, 0) {
		t.Error("out of bounds pixels must read as background")
	}
}

func TestBinarizeCutoff(t *testing.T) {
	for _, tt := range []struct {
		gray uint8
		ink  bool
	}{
		{gray: 0, ink: true},
		{gray: DefaultThreshold - 1, ink: true},
		{gray: DefaultThreshold, ink: true},
		{gray: DefaultThreshold + 1, ink: false},
		{gray: 255, ink: false},
	} {
		img := image.NewGray(image.Rect(0, 0, 1, 1))
		img.SetGray(0, 0, color.Gray{Y: tt.gray})

		if got := Binarize(img, DefaultThreshold).At(0, 0); got != tt.ink {
			t.Errorf("gray %d: ink = %v, want %v", tt.gray, got, tt.ink)
		}
	}
}

func TestExternalContours(t *testing.T) {
	img := canvas(t, 20, 10)
	fillPolygon(img, []fpoint{{1, 1}, {5, 1}, {5, 5}, {1, 5}})
	img.Set(12, 3, color.Black)

	contours := ExternalContours(Binarize(img, DefaultThreshold))
	if len(contours) != 2 {
		t.Fatalf("wanted 2 contours, got %d", len(contours))
	}

	square := contours[0]
	if square[0] != image.Pt(1, 1) {
		t.Errorf("contour should start at the top-left pixel, got %v", square[0])
	}

	// a 4x4 block has 12 boundary pixels
	if len(square) != 12 {
		t.Errorf("wanted 12 boundary pixels, got %d: %v", len(square), square)
	}

	if got := Area(square); got != 9 {
		t.Errorf("area: got %v, want 9", got)
	}

	if len(contours[1]) != 1 || contours[1][0] != image.Pt(12, 3) {
		t.Errorf("isolated pixel contour: got %v", contours[1])
	}
}
