// Package smoothing reconstructs a diffuse-light surface from a masked
// residual with a rank filter that ignores invalid pixels.
package smoothing

import (
	"fmt"
	"sort"

	"iclcontours/internal/models"
)

// DefaultWindow is the side of the median window used for ICL residuals
const DefaultWindow = 15

// MedianFilter is a square median filter over valid pixels only. The window
// is clipped at the frame edges. A pixel whose whole window is invalid stays
// invalid; otherwise its value is the median of the valid window values.
type MedianFilter struct {
	Window int
}

// NewMedianFilter returns a filter with the given window side
func NewMedianFilter(window int) *MedianFilter {
	return &MedianFilter{Window: window}
}

// Smooth allocates and returns the filtered surface
func (f *MedianFilter) Smooth(src *models.Surface) (*models.Surface, error) {
	dst := models.NewSurface(src.Shape())
	if err := f.Apply(src, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// Apply filters src into dst, which must have the same shape and must not
// alias src
func (f *MedianFilter) Apply(src, dst *models.Surface) error {
	if f.Window < 1 {
		return fmt.Errorf("median window must be positive, got %d", f.Window)
	}
	if err := models.CheckShape("smoothing", src.Shape(), dst.Shape()); err != nil {
		return err
	}

	w, h := src.Width, src.Height
	// windows of even side extend one pixel further towards the lower index
	before := f.Window / 2
	after := f.Window - 1 - before

	window := make([]float64, 0, f.Window*f.Window)
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-before), min(h-1, y+after)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-before), min(w-1, x+after)

			window = window[:0]
			for wy := y0; wy <= y1; wy++ {
				row := wy * w
				for wx := x0; wx <= x1; wx++ {
					if src.Valid[row+wx] {
						window = append(window, src.Values[row+wx])
					}
				}
			}

			i := y*w + x
			if len(window) == 0 {
				dst.Values[i] = 0
				dst.Valid[i] = false
				continue
			}
			dst.Values[i] = median(window)
			dst.Valid[i] = true
		}
	}
	return nil
}

// median sorts values in place and returns the median, averaging the two
// middle values for even lengths
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}
