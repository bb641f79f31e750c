// Package background models the spatially varying sky level of a science
// frame: per-tile robust medians on a coarse mesh, median-filtered and
// bilinearly rendered back to full resolution.
package background

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"iclcontours/internal/models"
	"iclcontours/internal/monitoring"
)

// Estimator produces a smooth background surface from a science frame
type Estimator struct {
	// TileWidth and TileHeight set the mesh resolution (default 128x128)
	TileWidth  int
	TileHeight int

	// FilterWidth and FilterHeight set the median filter applied to the mesh (default 3x3)
	FilterWidth  int
	FilterHeight int

	// MinValidFraction is the share of finite pixels a tile needs to be fitted.
	// Tiles below it are filled from their nearest fitted neighbours.
	MinValidFraction float64

	// ClipSigma and ClipIterations control sigma clipping inside each tile
	ClipSigma      float64
	ClipIterations int
}

// NewEstimator returns an estimator with square tiles and a square mesh filter
func NewEstimator(tileSize, filterSize int) *Estimator {
	return &Estimator{
		TileWidth:        tileSize,
		TileHeight:       tileSize,
		FilterWidth:      filterSize,
		FilterHeight:     filterSize,
		MinValidFraction: 0.1,
		ClipSigma:        3.0,
		ClipIterations:   10,
	}
}

// Mesh holds one statistic per tile
type Mesh struct {
	Grid   Grid
	Values []float64

	// Missing marks tiles that had too few usable pixels and were filled
	Missing []bool

	// Filled counts the missing tiles that received a value from neighbours
	Filled int
}

// Estimate returns the background surface of frame. Every pixel of the
// result is valid.
func (e *Estimator) Estimate(frame *models.Frame) (*models.Surface, error) {
	if err := models.ValidateFrame(frame); err != nil {
		return nil, err
	}
	dst := models.NewSurface(frame.Shape())
	if _, err := e.EstimateInto(frame, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// EstimateInto writes the background of frame into a caller-owned surface of
// the same shape and returns the mesh it was rendered from
func (e *Estimator) EstimateInto(frame *models.Frame, dst *models.Surface) (*Mesh, error) {
	if err := models.ValidateFrame(frame); err != nil {
		return nil, err
	}
	if err := models.CheckShape("background", frame.Shape(), dst.Shape()); err != nil {
		return nil, err
	}

	mesh := e.BuildMesh(frame.Shape(), frame.Data, nil, func(s Stats) float64 { return s.Median })
	if mesh.Grid.Degenerate() {
		monitoring.Warnf("frame %s is smaller than one %dx%d tile, using a single global background value",
			frame.Shape(), e.TileWidth, e.TileHeight)
	}
	if mesh.Filled > 0 {
		monitoring.Logf("Background: filled %d of %d tiles from neighbouring tiles", mesh.Filled, mesh.Grid.Len())
	}

	mesh.Grid.Render(mesh.Values, dst.Values)
	for i := range dst.Valid {
		dst.Valid[i] = true
	}
	return mesh, nil
}

// BuildMesh tiles values and reduces every tile to one number with pick,
// applied to the sigma-clipped statistics of the tile's usable pixels. A
// pixel is usable when it is finite and, if valid is non-nil, flagged valid.
// Under-populated tiles are filled from their neighbours and the result is
// median filtered.
func (e *Estimator) BuildMesh(shape models.Shape, values []float64, valid []bool, pick func(Stats) float64) *Mesh {
	g := NewGrid(shape, e.TileWidth, e.TileHeight)
	mesh := &Mesh{
		Grid:    g,
		Values:  make([]float64, g.Len()),
		Missing: make([]bool, g.Len()),
	}

	// reuse for all tiles to ease GC pressure
	buffer := make([]float64, 0, g.TileWidth*g.TileHeight)

	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			r := g.Tile(col, row)
			buffer = buffer[:0]
			for y := r.Min.Y; y < r.Max.Y; y++ {
				for x := r.Min.X; x < r.Max.X; x++ {
					i := y*shape.Width + x
					v := values[i]
					if math.IsNaN(v) || math.IsInf(v, 0) {
						continue
					}
					if valid != nil && !valid[i] {
						continue
					}
					buffer = append(buffer, v)
				}
			}

			c := row*g.Cols + col
			area := r.Dx() * r.Dy()
			if len(buffer) == 0 || float64(len(buffer)) < e.MinValidFraction*float64(area) {
				mesh.Missing[c] = true
				continue
			}
			mesh.Values[c] = pick(clippedSorted(buffer, e.ClipSigma, e.ClipIterations))
		}
	}

	mesh.fillMissing()
	mesh.Values = medianFilterMesh(mesh.Values, g.Cols, g.Rows, e.FilterWidth, e.FilterHeight)
	return mesh
}

// tileCentre is a fitted tile position for nearest-neighbour search
type tileCentre struct {
	X, Y  float64
	Index int
}

// Compare implements the kdtree.Comparable interface
func (p tileCentre) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(tileCentre)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p tileCentre) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two centres
func (p tileCentre) Distance(c kdtree.Comparable) float64 {
	q := c.(tileCentre)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// tileCentres is a collection of tileCentre that satisfies kdtree.Interface
type tileCentres []tileCentre

func (p tileCentres) Index(i int) kdtree.Comparable         { return p[i] }
func (p tileCentres) Len() int                              { return len(p) }
func (p tileCentres) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot uses the deterministic median of medians so tree shape does not
// depend on a random source
func (p tileCentres) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(centrePlane{tileCentres: p, Dim: d}, kdtree.MedianOfMedians(centrePlane{tileCentres: p, Dim: d}))
}

// centrePlane implements sort.Interface and kdtree.SortSlicer for tileCentres
type centrePlane struct {
	tileCentres
	kdtree.Dim
}

func (p centrePlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.tileCentres[i].X < p.tileCentres[j].X
	case 1:
		return p.tileCentres[i].Y < p.tileCentres[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p centrePlane) Slice(start, end int) kdtree.SortSlicer {
	return centrePlane{tileCentres: p.tileCentres[start:end], Dim: p.Dim}
}

func (p centrePlane) Swap(i, j int) {
	p.tileCentres[i], p.tileCentres[j] = p.tileCentres[j], p.tileCentres[i]
}

// fillMissing replaces missing tiles by the inverse-distance weighted mean of
// every fitted tile within sqrt(2) times the distance of the nearest one.
// Neighbours are summed in mesh order so the result is reproducible. With no
// fitted tile at all the mesh is left at zero.
func (m *Mesh) fillMissing() {
	var fitted tileCentres
	missing := 0
	for row := 0; row < m.Grid.Rows; row++ {
		for col := 0; col < m.Grid.Cols; col++ {
			c := row*m.Grid.Cols + col
			if m.Missing[c] {
				missing++
				continue
			}
			x, y := m.Grid.Centre(col, row)
			fitted = append(fitted, tileCentre{X: x, Y: y, Index: c})
		}
	}
	if missing == 0 || len(fitted) == 0 {
		return
	}

	tree := kdtree.New(fitted, false)
	filled := make([]float64, len(m.Values))
	copy(filled, m.Values)

	for row := 0; row < m.Grid.Rows; row++ {
		for col := 0; col < m.Grid.Cols; col++ {
			c := row*m.Grid.Cols + col
			if !m.Missing[c] {
				continue
			}
			x, y := m.Grid.Centre(col, row)
			q := tileCentre{X: x, Y: y, Index: c}

			_, nearest := tree.Nearest(q)
			keeper := kdtree.NewDistKeeper(2 * nearest)
			tree.NearestSet(keeper, q)

			neighbours := make([]kdtree.ComparableDist, 0, len(keeper.Heap))
			for _, item := range keeper.Heap {
				if item.Comparable == nil {
					continue
				}
				neighbours = append(neighbours, item)
			}
			sort.Slice(neighbours, func(i, j int) bool {
				return neighbours[i].Comparable.(tileCentre).Index < neighbours[j].Comparable.(tileCentre).Index
			})

			var sum, weights float64
			for _, n := range neighbours {
				w := 1 / math.Sqrt(n.Dist)
				sum += w * m.Values[n.Comparable.(tileCentre).Index]
				weights += w
			}
			if weights > 0 {
				filled[c] = sum / weights
				m.Filled++
			}
		}
	}
	m.Values = filled
}

// medianFilterMesh applies a width x height median filter to a cols x rows
// mesh, clipping the window at the mesh edges
func medianFilterMesh(values []float64, cols, rows, width, height int) []float64 {
	if width <= 1 && height <= 1 {
		return values
	}
	hx, hy := width/2, height/2
	out := make([]float64, len(values))
	window := make([]float64, 0, width*height)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			window = window[:0]
			for y := max(0, row-hy); y <= min(rows-1, row+hy); y++ {
				for x := max(0, col-hx); x <= min(cols-1, col+hx); x++ {
					window = append(window, values[y*cols+x])
				}
			}
			sort.Float64s(window)
			out[row*cols+col] = sortedMedian(window)
		}
	}
	return out
}
