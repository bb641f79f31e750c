package background

import (
	"image"

	"iclcontours/internal/models"
)

// Grid partitions a frame into tiles. Edge tiles are clipped to the frame
// bounds. A frame smaller than one tile in either dimension is covered by a
// single tile spanning the whole frame.
type Grid struct {
	Width, Height         int
	TileWidth, TileHeight int
	Cols, Rows            int

	fallback bool
}

// NewGrid builds the tiling of shape
func NewGrid(shape models.Shape, tileWidth, tileHeight int) Grid {
	g := Grid{Width: shape.Width, Height: shape.Height, TileWidth: tileWidth, TileHeight: tileHeight}
	if shape.Width < tileWidth || shape.Height < tileHeight {
		g.TileWidth, g.TileHeight = shape.Width, shape.Height
		g.Cols, g.Rows = 1, 1
		g.fallback = true
		return g
	}
	g.Cols = (shape.Width + tileWidth - 1) / tileWidth
	g.Rows = (shape.Height + tileHeight - 1) / tileHeight
	return g
}

// Degenerate reports whether the grid collapsed to one frame-sized tile
// because the frame is smaller than a tile
func (g Grid) Degenerate() bool {
	return g.fallback
}

// Len returns the number of tiles
func (g Grid) Len() int {
	return g.Cols * g.Rows
}

// Tile returns the pixel bounds of the tile at mesh column col, row row
func (g Grid) Tile(col, row int) image.Rectangle {
	x0 := col * g.TileWidth
	y0 := row * g.TileHeight
	x1 := min(x0+g.TileWidth, g.Width)
	y1 := min(y0+g.TileHeight, g.Height)
	return image.Rect(x0, y0, x1, y1)
}

// Centre returns the pixel-space centre of a tile
func (g Grid) Centre(col, row int) (x, y float64) {
	r := g.Tile(col, row)
	return float64(r.Min.X+r.Max.X-1) / 2, float64(r.Min.Y+r.Max.Y-1) / 2
}

// axisWeights holds, for each pixel along one axis, the two mesh indices
// to interpolate between and the weight of the upper one
type axisWeights struct {
	lo, hi []int
	t      []float64
}

func newAxisWeights(n int, centres []float64) axisWeights {
	w := axisWeights{lo: make([]int, n), hi: make([]int, n), t: make([]float64, n)}
	last := len(centres) - 1
	i := 0
	for p := 0; p < n; p++ {
		x := float64(p)
		switch {
		case last == 0 || x <= centres[0]:
			w.lo[p], w.hi[p], w.t[p] = 0, 0, 0
		case x >= centres[last]:
			w.lo[p], w.hi[p], w.t[p] = last, last, 0
		default:
			for centres[i+1] <= x {
				i++
			}
			w.lo[p], w.hi[p] = i, i+1
			w.t[p] = (x - centres[i]) / (centres[i+1] - centres[i])
		}
	}
	return w
}

// lerp is written as a + t*(b-a) so that equal endpoints reproduce their
// value exactly
func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// Render bilinearly interpolates mesh values between tile centres into a
// full-resolution row-major dst. Pixels outside the outermost centres take
// the nearest edge value.
func (g Grid) Render(mesh []float64, dst []float64) {
	xc := make([]float64, g.Cols)
	for c := 0; c < g.Cols; c++ {
		xc[c], _ = g.Centre(c, 0)
	}
	yc := make([]float64, g.Rows)
	for r := 0; r < g.Rows; r++ {
		_, yc[r] = g.Centre(0, r)
	}
	wx := newAxisWeights(g.Width, xc)
	wy := newAxisWeights(g.Height, yc)

	for y := 0; y < g.Height; y++ {
		rowLo := wy.lo[y] * g.Cols
		rowHi := wy.hi[y] * g.Cols
		ty := wy.t[y]
		for x := 0; x < g.Width; x++ {
			top := lerp(mesh[rowLo+wx.lo[x]], mesh[rowLo+wx.hi[x]], wx.t[x])
			bottom := lerp(mesh[rowHi+wx.lo[x]], mesh[rowHi+wx.hi[x]], wx.t[x])
			dst[y*g.Width+x] = lerp(top, bottom, ty)
		}
	}
}
