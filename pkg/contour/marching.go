// Package contour traces iso-flux contours on a surface with marching squares
// and extracts one contour set per isophote level.
package contour

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"iclcontours/internal/models"
)

// segment is one directed piece of contour inside a single cell. Its
// endpoints lie on cell edges identified by integer keys so that segments of
// neighbouring cells chain without comparing floating-point coordinates.
type segment struct {
	from, to int
	p0, p1   models.Point
}

// edge is a cell edge traversed clockwise from corner a to corner b
type edge struct {
	key  int
	a, b int
}

// crossing is a threshold crossing on a cell edge. up is true when the
// clockwise traversal goes from a low corner to a high one.
type crossing struct {
	key int
	up  bool
}

// tracer holds the per-call state of one marching squares pass
type tracer struct {
	s         *models.Surface
	threshold float64
}

// Trace returns every iso-contour of s at threshold, in (row, col) array
// index space with pixel centres at integer positions.
//
// A corner is high when its value is >= threshold. Cells with an invalid
// corner emit nothing, so contours end where they meet invalid pixels or the
// frame border; no padding is applied. Saddle cells are resolved by the mean
// of the four corners: when it is >= threshold the two high corners are
// joined, otherwise they are kept apart.
//
// Contours are ordered by the raster position of the cell holding their
// first segment. Closed contours repeat their first point at the end.
func Trace(s *models.Surface, threshold float64) []models.Contour {
	t := &tracer{s: s, threshold: threshold}
	return assemble(t.segments())
}

func (t *tracer) high(i int) bool {
	return t.s.Values[i] >= t.threshold
}

// hKey identifies the horizontal edge from (r, c) to (r, c+1)
func (t *tracer) hKey(r, c int) int { return 2 * (r*t.s.Width + c) }

// vKey identifies the vertical edge from (r, c) to (r+1, c)
func (t *tracer) vKey(r, c int) int { return 2*(r*t.s.Width+c) + 1 }

// point interpolates the crossing on the edge with the given key. The edge is
// always evaluated from its upper or left corner so both cells sharing it
// produce identical coordinates.
func (t *tracer) point(key int) models.Point {
	w := t.s.Width
	idx := key / 2
	r, c := idx/w, idx%w
	va := t.s.Values[idx]
	if key%2 == 0 {
		vb := t.s.Values[idx+1]
		return models.Point{Row: float64(r), Col: float64(c) + (t.threshold-va)/(vb-va)}
	}
	vb := t.s.Values[idx+w]
	return models.Point{Row: float64(r) + (t.threshold-va)/(vb-va), Col: float64(c)}
}

func (t *tracer) segments() []segment {
	w, h := t.s.Width, t.s.Height
	var segs []segment
	crossings := make([]crossing, 0, 4)

	for r := 0; r < h-1; r++ {
		for c := 0; c < w-1; c++ {
			tl := r*w + c
			tr := tl + 1
			bl := tl + w
			br := bl + 1
			if !t.s.Valid[tl] || !t.s.Valid[tr] || !t.s.Valid[bl] || !t.s.Valid[br] {
				continue
			}

			edges := [4]edge{
				{key: t.hKey(r, c), a: tl, b: tr},   // top
				{key: t.vKey(r, c+1), a: tr, b: br}, // right
				{key: t.hKey(r+1, c), a: br, b: bl}, // bottom
				{key: t.vKey(r, c), a: bl, b: tl},   // left
			}

			crossings = crossings[:0]
			for _, e := range edges {
				ha, hb := t.high(e.a), t.high(e.b)
				if ha != hb {
					crossings = append(crossings, crossing{key: e.key, up: hb})
				}
			}
			if len(crossings) == 0 {
				continue
			}

			joinHigh := false
			if len(crossings) == 4 {
				centre := (t.s.Values[tl] + t.s.Values[tr] + t.s.Values[bl] + t.s.Values[br]) / 4
				joinHigh = centre >= t.threshold
			}

			n := len(crossings)
			for i, x := range crossings {
				if !x.up {
					continue
				}
				j := (i + 1) % n
				if joinHigh {
					j = (i + n - 1) % n
				}
				segs = append(segs, segment{
					from: x.key,
					to:   crossings[j].key,
					p0:   t.point(x.key),
					p1:   t.point(crossings[j].key),
				})
			}
		}
	}
	return segs
}

// assemble chains directed segments into polylines. Every edge crossing is
// the start of at most one segment and the end of at most one other.
func assemble(segs []segment) []models.Contour {
	startAt := make(map[int]int, len(segs))
	endAt := make(map[int]int, len(segs))
	for i, s := range segs {
		startAt[s.from] = i
		endAt[s.to] = i
	}

	type traced struct {
		first   int
		contour models.Contour
	}
	var found []traced
	visited := make([]bool, len(segs))

	follow := func(first int) models.Contour {
		pts := []models.Point{segs[first].p0}
		cur := first
		for {
			visited[cur] = true
			pts = append(pts, segs[cur].p1)
			next, ok := startAt[segs[cur].to]
			if !ok {
				return models.Contour{Points: pts}
			}
			if next == first {
				return models.Contour{Points: pts, Closed: true}
			}
			if visited[next] {
				return models.Contour{Points: pts}
			}
			cur = next
		}
	}

	// open contours begin at segments nothing leads into
	for i, s := range segs {
		if _, ok := endAt[s.from]; ok {
			continue
		}
		found = append(found, traced{first: i, contour: follow(i)})
	}
	// whatever is left forms closed loops
	for i := range segs {
		if !visited[i] {
			found = append(found, traced{first: i, contour: follow(i)})
		}
	}

	sort.Slice(found, func(a, b int) bool { return found[a].first < found[b].first })
	contours := make([]models.Contour, 0, len(found))
	for _, f := range found {
		contours = append(contours, f.contour)
	}
	return contours
}

// Area returns the absolute area enclosed by a closed contour, in square
// pixels. Open contours are treated as implicitly closed.
func Area(c models.Contour) float64 {
	n := len(c.Points)
	if n < 3 {
		return 0
	}
	rows := make([]float64, n+1)
	cols := make([]float64, n+1)
	for i, p := range c.Points {
		rows[i], cols[i] = p.Row, p.Col
	}
	rows[n], cols[n] = rows[0], cols[0]

	twice := floats.Dot(cols[:n], rows[1:]) - floats.Dot(cols[1:], rows[:n])
	if twice < 0 {
		twice = -twice
	}
	return twice / 2
}

// Centroid returns the mean of a contour's distinct points
func Centroid(c models.Contour) models.Point {
	pts := c.Points
	if c.Closed && len(pts) > 1 {
		pts = pts[:len(pts)-1]
	}
	if len(pts) == 0 {
		return models.Point{}
	}
	rows := make([]float64, len(pts))
	cols := make([]float64, len(pts))
	for i, p := range pts {
		rows[i], cols[i] = p.Row, p.Col
	}
	n := float64(len(pts))
	return models.Point{Row: floats.Sum(rows) / n, Col: floats.Sum(cols) / n}
}
