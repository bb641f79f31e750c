package contour

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"iclcontours/internal/models"
	"iclcontours/pkg/photometry"
)

// Extractor converts isophote levels to flux thresholds and traces each level
// independently on a bounded worker pool
type Extractor struct {
	// ZeroPoint is the photometric zero-point used for the conversion
	ZeroPoint float64

	// Workers bounds the number of levels traced concurrently
	Workers int
}

// NewExtractor returns an extractor using all available cores
func NewExtractor(zeroPoint float64) *Extractor {
	return &Extractor{ZeroPoint: zeroPoint, Workers: runtime.NumCPU()}
}

// Extract returns one contour set per level, in the order the levels were
// given. An empty level list returns an empty result without touching the
// surface. A level with no crossing yields a set with no contours.
func (e *Extractor) Extract(ctx context.Context, s *models.Surface, levels []float64) ([]models.ContourSet, error) {
	if len(levels) == 0 {
		return []models.ContourSet{}, nil
	}

	thresholds := make([]float64, len(levels))
	for i, level := range levels {
		thr, err := photometry.MagnitudeToFlux(level, e.ZeroPoint)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		thresholds[i] = thr
	}

	workers := e.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]models.ContourSet, len(levels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range levels {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = models.ContourSet{
				Level:     levels[i],
				Threshold: thresholds[i],
				Contours:  Trace(s, thresholds[i]),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("contour extraction: %w", err)
	}
	return results, nil
}
