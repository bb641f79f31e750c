package visualization

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"iclcontours/internal/models"
)

func TestPlotContours(t *testing.T) {
	square := models.Contour{
		Points: []models.Point{
			{Row: 2, Col: 2}, {Row: 2, Col: 8}, {Row: 8, Col: 8}, {Row: 8, Col: 2}, {Row: 2, Col: 2},
		},
		Closed: true,
	}
	sets := []models.ContourSet{
		{Level: 27.5, Threshold: 0.1, Contours: []models.Contour{square}},
		{Level: 28.0, Threshold: 0.06, Contours: []models.Contour{}},
	}

	path := filepath.Join(t.TempDir(), "preview.png")
	if err := PlotContours(path, models.Shape{Width: 16, Height: 12}, sets); err != nil {
		t.Fatalf("Failed to plot contours: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Preview was not written: %v", err)
	}
	if info.Size() == 0 {
		t.Errorf("Preview file is empty")
	}
}

func TestPlotContoursEmptyShape(t *testing.T) {
	err := PlotContours(filepath.Join(t.TempDir(), "x.png"), models.Shape{}, nil)
	if !errors.Is(err, models.ErrEmptyFrame) {
		t.Errorf("Expected ErrEmptyFrame, got %v", err)
	}
}

func TestLevelColorsAreDistinct(t *testing.T) {
	colors := levelColors(3)
	seen := map[[4]uint32]bool{}
	for _, c := range colors {
		r, g, b, a := c.RGBA()
		seen[[4]uint32{r, g, b, a}] = true
	}
	if len(seen) != 3 {
		t.Errorf("Expected 3 distinct colours, got %d", len(seen))
	}
}
