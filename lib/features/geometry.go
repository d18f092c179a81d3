package features

import (
	"cmp"
	"image"
	"math"
	"slices"
)

func distance(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

// lineDistance is the perpendicular distance from p to the line through a
// and b.
func lineDistance(p, a, b image.Point) float64 {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	if dx == 0 && dy == 0 {
		return distance(p, a)
	}
	return math.Abs(dy*float64(p.X-a.X)-dx*float64(p.Y-a.Y)) / math.Hypot(dx, dy)
}

func cross(o, a, b image.Point) int {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// ArcLength is the perimeter of the closed polygon pts.
func ArcLength(pts []image.Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	var total float64
	for i := range pts {
		total += distance(pts[i], pts[(i+1)%len(pts)])
	}
	return total
}

// Area is the unsigned shoelace area of the closed polygon pts.
func Area(pts []image.Point) float64 {
	var sum int
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(float64(sum)) / 2
}

// BoundingRect returns the smallest rectangle containing every point, with
// Max exclusive like image.Rectangle.
func BoundingRect(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

// ApproxPoly simplifies the closed curve pts with the Douglas-Peucker
// algorithm. Vertices that end up nearly collinear with their neighbors,
// usually the arbitrary starting point, are dropped afterwards.
func ApproxPoly(pts []image.Point, epsilon float64) []image.Point {
	n := len(pts)
	if n < 3 {
		return slices.Clone(pts)
	}

	far, best := 0, -1.0
	for i, p := range pts {
		if d := distance(pts[0], p); d > best {
			far, best = i, d
		}
	}

	keep := make([]bool, n)
	keep[0], keep[far] = true, true
	douglasPeucker(pts, 0, far, epsilon, keep)
	douglasPeucker(pts, far, n, epsilon, keep)

	var result []image.Point
	for i, k := range keep {
		if k {
			result = append(result, pts[i])
		}
	}

	return pruneCollinear(result, epsilon/2)
}

// douglasPeucker marks the points of pts[lo..hi] that survive
// simplification. hi may equal len(pts) to close the curve.
func douglasPeucker(pts []image.Point, lo, hi int, epsilon float64, keep []bool) {
	n := len(pts)
	type span struct{ lo, hi int }
	stack := []span{{lo, hi}}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if s.hi-s.lo < 2 {
			continue
		}

		a, b := pts[s.lo%n], pts[s.hi%n]
		idx, maxD := -1, -1.0
		for i := s.lo + 1; i < s.hi; i++ {
			if d := lineDistance(pts[i%n], a, b); d > maxD {
				idx, maxD = i, d
			}
		}

		if maxD > epsilon {
			keep[idx%n] = true
			stack = append(stack, span{s.lo, idx}, span{idx, s.hi})
		}
	}
}

func pruneCollinear(poly []image.Point, tolerance float64) []image.Point {
	for len(poly) > 3 {
		removed := false
		for i := range poly {
			prev := poly[(i+len(poly)-1)%len(poly)]
			next := poly[(i+1)%len(poly)]
			if lineDistance(poly[i], prev, next) <= tolerance {
				poly = slices.Delete(poly, i, i+1)
				removed = true
				break
			}
		}
		if !removed {
			break
		}
	}
	return poly
}

// ConvexHull returns the indices into pts of its convex hull vertices,
// sorted ascending so that they follow the order of the contour.
func ConvexHull(pts []image.Point) []int {
	n := len(pts)
	if n < 3 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return cmp.Or(cmp.Compare(pts[a].X, pts[b].X), cmp.Compare(pts[a].Y, pts[b].Y))
	})

	// Andrew's monotone chain over indices.
	hull := make([]int, 0, 2*n)
	for _, i := range order {
		for len(hull) >= 2 && cross(pts[hull[len(hull)-2]], pts[hull[len(hull)-1]], pts[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, i)
	}
	lower := len(hull) + 1
	for k := n - 2; k >= 0; k-- {
		i := order[k]
		for len(hull) >= lower && cross(pts[hull[len(hull)-2]], pts[hull[len(hull)-1]], pts[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, i)
	}
	hull = hull[:len(hull)-1]

	slices.Sort(hull)
	return slices.Compact(hull)
}

// Defect is a concavity between two consecutive hull vertices.
type Defect struct {
	Start, End, Farthest int
	Depth                float64
}

// ConvexityDefects finds, for every pair of consecutive hull vertices, the
// contour point between them that lies farthest from the hull edge. Pairs
// with nothing in between produce no defect.
func ConvexityDefects(pts []image.Point, hull []int) []Defect {
	n := len(pts)
	if n < 4 || len(hull) < 3 {
		return nil
	}

	var result []Defect
	for k := range hull {
		start := hull[k]
		end := hull[(k+1)%len(hull)]
		stop := end
		if stop <= start {
			stop += n
		}

		a, b := pts[start], pts[end]
		d := Defect{Start: start, End: end, Farthest: -1}
		for i := start + 1; i < stop; i++ {
			if depth := lineDistance(pts[i%n], a, b); depth > d.Depth {
				d.Depth = depth
				d.Farthest = i % n
			}
		}

		if d.Farthest >= 0 {
			result = append(result, d)
		}
	}

	return result
}
