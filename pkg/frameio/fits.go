// Package frameio loads science frames and writes extracted contour sets.
package frameio

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/astrogo/fitsio"

	"iclcontours/internal/models"
)

// AutoHDU selects the SCI extension, or the first 2D image when there is none
const AutoHDU = -1

// ScienceExtension is the EXTNAME of calibrated science data
const ScienceExtension = "SCI"

// LoadFITS reads the 2D image in HDU hdu of the FITS file at path. Pass
// AutoHDU to pick the science extension.
func LoadFITS(path string, hdu int) (*models.Frame, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FITS file: %w", err)
	}
	defer r.Close()

	frame, err := ReadFITS(r, hdu)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frame, nil
}

// ReadFITS decodes a frame from a FITS stream
func ReadFITS(r io.Reader, hdu int) (*models.Frame, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FITS: %w", err)
	}
	defer f.Close()

	hdus := f.HDUs()
	names := make([]string, len(hdus))
	axes := make([][]int, len(hdus))
	for i, h := range hdus {
		names[i] = h.Name()
		if _, ok := h.(fitsio.Image); ok {
			axes[i] = h.Header().Axes()
		}
	}

	idx, err := selectHDU(names, axes, hdu)
	if err != nil {
		return nil, err
	}
	return frameFromImage(hdus[idx].(fitsio.Image))
}

// selectHDU picks the HDU to load given each HDU's name and image axes (nil
// for non-image HDUs)
func selectHDU(names []string, axes [][]int, hdu int) (int, error) {
	if hdu != AutoHDU {
		if hdu < 0 || hdu >= len(names) {
			return 0, fmt.Errorf("HDU %d out of range, file has %d", hdu, len(names))
		}
		if len(axes[hdu]) != 2 {
			return 0, fmt.Errorf("HDU %d is not a 2D image (axes %v)", hdu, axes[hdu])
		}
		return hdu, nil
	}

	for i, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), ScienceExtension) && len(axes[i]) == 2 {
			return i, nil
		}
	}
	for i := range names {
		if len(axes[i]) == 2 {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no 2D image HDU found")
}

func frameFromImage(img fitsio.Image) (*models.Frame, error) {
	hdr := img.Header()
	dims := hdr.Axes()
	width, height := dims[0], dims[1]
	n := width * height

	data := make([]float64, n)
	switch bitpix := hdr.Bitpix(); bitpix {
	case -64:
		if err := img.Read(&data); err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
	case -32:
		raw := make([]float32, n)
		if err := img.Read(&raw); err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		for i, v := range raw {
			data[i] = float64(v)
		}
	case 8:
		raw := make([]byte, n)
		if err := img.Read(&raw); err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		for i, v := range raw {
			data[i] = float64(v)
		}
		scaleInteger(hdr, data)
	case 16:
		raw := make([]int16, n)
		if err := img.Read(&raw); err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		for i, v := range raw {
			data[i] = float64(v)
		}
		scaleInteger(hdr, data)
	case 32:
		raw := make([]int32, n)
		if err := img.Read(&raw); err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		for i, v := range raw {
			data[i] = float64(v)
		}
		scaleInteger(hdr, data)
	case 64:
		raw := make([]int64, n)
		if err := img.Read(&raw); err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		for i, v := range raw {
			data[i] = float64(v)
		}
		scaleInteger(hdr, data)
	default:
		return nil, fmt.Errorf("unsupported BITPIX %d", bitpix)
	}

	frame := models.NewFrame(width, height, data)
	frame.PixelScale = pixelScale(hdr)
	return frame, nil
}

// scaleInteger applies BZERO and BSCALE to integer pixel data
func scaleInteger(hdr *fitsio.Header, data []float64) {
	zero, hasZero := cardFloat(hdr, "BZERO")
	scale, hasScale := cardFloat(hdr, "BSCALE")
	if !hasScale {
		scale = 1
	}
	if !hasZero && !hasScale {
		return
	}
	for i, v := range data {
		data[i] = zero + scale*v
	}
}

// pixelScale returns the pixel side in arcsec, or 0 when the header does not
// say
func pixelScale(hdr *fitsio.Header) float64 {
	if area, ok := cardFloat(hdr, "PIXAR_A2"); ok && area > 0 {
		return math.Sqrt(area)
	}
	for _, key := range []string{"CDELT2", "CD2_2"} {
		if deg, ok := cardFloat(hdr, key); ok && deg != 0 {
			return math.Abs(deg) * 3600
		}
	}
	return 0
}

func cardFloat(hdr *fitsio.Header, key string) (float64, bool) {
	card := hdr.Get(key)
	if card == nil {
		return 0, false
	}
	switch v := card.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	}
	return 0, false
}
