package features

import "image"

// Moore neighborhood in clockwise order (y grows downwards), starting east.
var neighbors = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

func direction(d image.Point) int {
	for i, n := range neighbors {
		if n == d {
			return i
		}
	}
	return -1
}

// ExternalContours returns the outer boundary of every 8-connected ink
// component in m. Holes are ignored. Each contour is ordered clockwise and
// starts at the top-left-most pixel of its component.
func ExternalContours(m *Mask) [][]image.Point {
	w, h := m.Rect.Dx(), m.Rect.Dy()
	seen := make([]bool, len(m.Pix))

	var result [][]image.Point
	var queue []int

	for i, ink := range m.Pix {
		if !ink || seen[i] {
			continue
		}

		// Raster order guarantees i is the top-left-most pixel of a new
		// component. Flood it so later pixels of the same blob are skipped.
		seen[i] = true
		queue = append(queue[:0], i)
		for len(queue) > 0 {
			cur := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			cx, cy := cur%w, cur/w
			for _, n := range neighbors {
				nx, ny := cx+n.X, cy+n.Y
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if m.Pix[j] && !seen[j] {
					seen[j] = true
					queue = append(queue, j)
				}
			}
		}

		start := image.Pt(m.Rect.Min.X+i%w, m.Rect.Min.Y+i/w)
		result = append(result, traceBoundary(m, start))
	}

	return result
}

// traceBoundary walks the outer boundary of the component containing start
// with Moore-neighbor tracing. start must have no ink to its west.
func traceBoundary(m *Mask, start image.Point) []image.Point {
	contour := []image.Point{start}

	// We entered start from the west.
	cur, back := start, 4
	var second image.Point
	limit := 4*len(m.Pix) + 8

	for step := 0; step < limit; step++ {
		next, nextBack, ok := mooreStep(m, cur, back)
		if !ok {
			// isolated pixel
			return contour
		}

		if step == 0 {
			second = next
		} else if cur == start && next == second {
			// Jacob's stopping criterion: the walk would repeat itself.
			contour = contour[:len(contour)-1]
			break
		}

		contour = append(contour, next)
		cur, back = next, nextBack
	}

	return contour
}

// mooreStep scans the neighbors of cur clockwise beginning just after the
// backtrack direction and returns the first ink pixel together with the
// direction, seen from that pixel, of the last background cell examined.
func mooreStep(m *Mask, cur image.Point, back int) (image.Point, int, bool) {
	prev := cur.Add(neighbors[back])
	for k := 1; k <= 8; k++ {
		d := (back + k) % 8
		cand := cur.Add(neighbors[d])
		if m.At(cand.X, cand.Y) {
			return cand, direction(prev.Sub(cand)), true
		}
		prev = cand
	}
	return image.Point{}, 0, false
}
