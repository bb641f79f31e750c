package contour

import (
	"context"
	"errors"
	"math"
	"testing"

	"iclcontours/internal/models"
	"iclcontours/pkg/photometry"
)

// expSurface is a radial profile falling by a factor e every scale pixels
func expSurface(size int, centre, height, scale float64) *models.Surface {
	s := models.NewSurface(models.Shape{Width: size, Height: size})
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			d := math.Hypot(float64(r)-centre, float64(c)-centre)
			s.Set(c, r, height*math.Exp(-d/scale))
		}
	}
	return s
}

func TestExtractEmptyLevels(t *testing.T) {
	sets, err := NewExtractor(25).Extract(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sets == nil || len(sets) != 0 {
		t.Errorf("Expected an empty, non-nil result, got %v", sets)
	}
}

func TestExtractKeepsLevelOrder(t *testing.T) {
	s := expSurface(61, 30, 200, 5)
	levels := []float64{22.5, 20, 24, 10}

	e := &Extractor{ZeroPoint: 25, Workers: 2}
	sets, err := e.Extract(context.Background(), s, levels)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(sets) != len(levels) {
		t.Fatalf("Expected %d sets, got %d", len(levels), len(sets))
	}

	for i, set := range sets {
		if set.Level != levels[i] {
			t.Errorf("Set %d: expected level %v, got %v", i, levels[i], set.Level)
		}
		want, _ := photometry.MagnitudeToFlux(levels[i], 25)
		if set.Threshold != want {
			t.Errorf("Set %d: expected threshold %v, got %v", i, want, set.Threshold)
		}
	}

	// thresholds 10, 100 and about 2.5 cross the profile; 1e6 does not
	for i, n := range []int{1, 1, 1, 0} {
		if len(sets[i].Contours) != n {
			t.Errorf("Set %d: expected %d contours, got %d", i, n, len(sets[i].Contours))
		}
	}

	// fainter isophotes enclose more area
	if Area(sets[1].Contours[0]) >= Area(sets[0].Contours[0]) {
		t.Errorf("Level 20 should enclose less area than level 22.5")
	}
	if Area(sets[0].Contours[0]) >= Area(sets[2].Contours[0]) {
		t.Errorf("Level 22.5 should enclose less area than level 24")
	}
}

func TestExtractInvalidLevel(t *testing.T) {
	s := coneSurface(5, peak{2, 2, 3})
	_, err := NewExtractor(25).Extract(context.Background(), s, []float64{27, math.NaN()})
	if !errors.Is(err, photometry.ErrInvalidLevel) {
		t.Errorf("Expected ErrInvalidLevel, got %v", err)
	}
}

func TestExtractCancelled(t *testing.T) {
	s := coneSurface(21, peak{10, 10, 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(25).Extract(ctx, s, []float64{25, 26})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
