// Package visualization renders pipeline surfaces and contour sets to images
// for inspection.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"iclcontours/internal/models"
)

// Viewer renders a surface as a 16-bit grayscale image with a linear min/max
// stretch over its valid pixels
type Viewer struct {
	surface *models.Surface

	// lo and hi bound the stretch
	lo, hi float64
}

// NewViewer creates a viewer stretched to the surface's valid range
func NewViewer(s *models.Surface) *Viewer {
	lo, hi, _ := s.Range()
	return &Viewer{surface: s, lo: lo, hi: hi}
}

// SetStretch overrides the display range
func (v *Viewer) SetStretch(lo, hi float64) {
	v.lo, v.hi = lo, hi
}

// Image returns the stretched surface. Invalid pixels are black; a surface
// with no dynamic range renders mid-gray.
func (v *Viewer) Image() *image.Gray16 {
	s := v.surface
	img := image.NewGray16(image.Rect(0, 0, s.Width, s.Height))
	span := v.hi - v.lo
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			val, ok := s.At(x, y)
			if !ok {
				continue
			}
			level := 0.5
			if span > 0 {
				level = math.Max(0, math.Min(1, (val-v.lo)/span))
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(level * 65535)})
		}
	}
	return img
}

// SurfaceToImage renders s with its own min/max stretch
func SurfaceToImage(s *models.Surface) *image.Gray16 {
	return NewViewer(s).Image()
}

// MaskToImage renders masked pixels white on black
func MaskToImage(m *models.Mask) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, masked := range m.Bits {
		if masked {
			img.Pix[(i/m.Width)*img.Stride+i%m.Width] = 255
		}
	}
	return img
}

// SavePNG encodes img to filename
func SavePNG(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return file.Close()
}
