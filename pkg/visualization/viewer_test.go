package visualization

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"iclcontours/internal/models"
)

// rampSurface creates a surface whose value is the column index
func rampSurface(width, height int) *models.Surface {
	s := models.NewSurface(models.Shape{Width: width, Height: height})
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			s.Set(x, y, float64(x))
		}
	}
	return s
}

// TestSurfaceToImage verifies the stretch and the treatment of invalid pixels
func TestSurfaceToImage(t *testing.T) {
	s := rampSurface(5, 3)
	s.Invalidate(2, 1)

	img := SurfaceToImage(s)
	if b := img.Bounds(); b.Dx() != 5 || b.Dy() != 3 {
		t.Fatalf("Expected 5x3 image, got %v", b)
	}
	if got := img.Gray16At(0, 0).Y; got != 0 {
		t.Errorf("Expected minimum to be black, got %d", got)
	}
	if got := img.Gray16At(4, 0).Y; got != 65535 {
		t.Errorf("Expected maximum to be white, got %d", got)
	}
	if got := img.Gray16At(2, 0).Y; got != 32767 {
		t.Errorf("Expected mid-gray in the middle, got %d", got)
	}
	if got := img.Gray16At(2, 1).Y; got != 0 {
		t.Errorf("Expected invalid pixel to be black, got %d", got)
	}
}

func TestSurfaceToImageFlat(t *testing.T) {
	s := models.NewSurface(models.Shape{Width: 2, Height: 2})
	for i := range s.Values {
		s.Values[i], s.Valid[i] = 7, true
	}
	img := SurfaceToImage(s)
	if got := img.Gray16At(1, 1).Y; got != 32767 {
		t.Errorf("Expected flat surface to render mid-gray, got %d", got)
	}
}

func TestViewerStretchClamps(t *testing.T) {
	v := NewViewer(rampSurface(5, 1))
	v.SetStretch(1, 3)
	img := v.Image()
	if got := img.Gray16At(0, 0).Y; got != 0 {
		t.Errorf("Expected values below the stretch to clamp to black, got %d", got)
	}
	if got := img.Gray16At(4, 0).Y; got != 65535 {
		t.Errorf("Expected values above the stretch to clamp to white, got %d", got)
	}
}

func TestMaskToImage(t *testing.T) {
	m := models.NewMask(models.Shape{Width: 3, Height: 2})
	m.Bits[4] = true

	img := MaskToImage(m)
	if got := img.GrayAt(1, 1).Y; got != 255 {
		t.Errorf("Expected masked pixel to be white, got %d", got)
	}
	if got := img.GrayAt(1, 0).Y; got != 0 {
		t.Errorf("Expected unmasked pixel to be black, got %d", got)
	}
}

func TestSavePNG(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "ramp.png")
	if err := SavePNG(SurfaceToImage(rampSurface(8, 4)), filename); err != nil {
		t.Fatalf("Failed to save PNG: %v", err)
	}

	file, err := os.Open(filename)
	if err != nil {
		t.Fatalf("Failed to open saved PNG: %v", err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("Saved file is not a valid PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Errorf("Expected 8x4 image, got %v", b)
	}
}
