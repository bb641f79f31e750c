// Package models defines the frame, surface and contour types shared by the
// pipeline stages.
package models

import (
	"fmt"
	"math"
)

// Shape is the pixel extent of a two-dimensional array
type Shape struct {
	Width  int
	Height int
}

// Len returns the number of pixels covered by the shape
func (s Shape) Len() int {
	return s.Width * s.Height
}

// Empty reports whether the shape covers no pixels
func (s Shape) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Frame represents a calibrated science frame loaded from an image file
type Frame struct {
	// Width is the number of columns (NAXIS1)
	Width int

	// Height is the number of rows (NAXIS2)
	Height int

	// Data holds the flux values in row-major order (y*Width + x)
	Data []float64

	// PixelScale is the angular size of a pixel in arcsec, 0 when unknown
	PixelScale float64
}

// NewFrame wraps a row-major flux array. The data slice is not copied.
func NewFrame(width, height int, data []float64) *Frame {
	return &Frame{Width: width, Height: height, Data: data}
}

// Shape returns the frame dimensions
func (f *Frame) Shape() Shape {
	return Shape{Width: f.Width, Height: f.Height}
}

// At returns the flux at column x, row y
func (f *Frame) At(x, y int) float64 {
	return f.Data[y*f.Width+x]
}

// Surface is a two-channel float array: a value and a validity bit per pixel.
// Invalid pixels carry no meaningful value and must be skipped by consumers.
type Surface struct {
	Width  int
	Height int
	Values []float64
	Valid  []bool
}

// NewSurface allocates a surface of the given shape with every pixel invalid
func NewSurface(shape Shape) *Surface {
	return &Surface{
		Width:  shape.Width,
		Height: shape.Height,
		Values: make([]float64, shape.Len()),
		Valid:  make([]bool, shape.Len()),
	}
}

// Shape returns the surface dimensions
func (s *Surface) Shape() Shape {
	return Shape{Width: s.Width, Height: s.Height}
}

// At returns the value and validity of the pixel at column x, row y
func (s *Surface) At(x, y int) (float64, bool) {
	i := y*s.Width + x
	return s.Values[i], s.Valid[i]
}

// Set stores a valid value at column x, row y
func (s *Surface) Set(x, y int, v float64) {
	i := y*s.Width + x
	s.Values[i] = v
	s.Valid[i] = true
}

// Invalidate marks the pixel at column x, row y as invalid
func (s *Surface) Invalidate(x, y int) {
	i := y*s.Width + x
	s.Values[i] = 0
	s.Valid[i] = false
}

// CountInvalid returns the number of invalid pixels
func (s *Surface) CountInvalid() int {
	n := 0
	for _, ok := range s.Valid {
		if !ok {
			n++
		}
	}
	return n
}

// Range returns the minimum and maximum over valid pixels.
// ok is false when the surface has no valid pixel.
func (s *Surface) Range() (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for i, v := range s.Values {
		if !s.Valid[i] {
			continue
		}
		ok = true
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if !ok {
		return 0, 0, false
	}
	return min, max, true
}

// Mask flags pixels attributed to discrete sources
type Mask struct {
	Width  int
	Height int
	Bits   []bool
}

// NewMask allocates an all-false mask
func NewMask(shape Shape) *Mask {
	return &Mask{Width: shape.Width, Height: shape.Height, Bits: make([]bool, shape.Len())}
}

// Shape returns the mask dimensions
func (m *Mask) Shape() Shape {
	return Shape{Width: m.Width, Height: m.Height}
}

// Count returns the number of masked pixels
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Point is a sub-pixel position in (row, column) array-index space
type Point struct {
	Row float64 `json:"row"`
	Col float64 `json:"col"`
}

// Contour is a polyline of constant flux. A closed contour repeats its
// first point at the end.
type Contour struct {
	Points []Point `json:"points"`
	Closed bool    `json:"closed"`
}

// ContourSet holds every contour traced for one isophote level
type ContourSet struct {
	// Level is the requested surface brightness in mag/arcsec^2
	Level float64 `json:"level"`

	// Threshold is the flux value the level was converted to
	Threshold float64 `json:"threshold"`

	Contours []Contour `json:"contours"`
}
