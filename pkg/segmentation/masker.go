// Package segmentation detects discrete sources in a background-subtracted
// frame and turns them into a mask.
package segmentation

import (
	"fmt"
	"image"

	"iclcontours/internal/models"
	"iclcontours/internal/monitoring"
	"iclcontours/pkg/background"
)

// NoiseModel selects how the background noise sigma is estimated
type NoiseModel string

const (
	// Uniform uses one sigma-clipped standard deviation for the whole frame
	Uniform NoiseModel = "uniform"

	// Local renders per-tile sigma-clipped standard deviations to every pixel
	Local NoiseModel = "local"
)

// Masker flags connected groups of above-threshold pixels
type Masker struct {
	// NSigma is the detection significance (default 2)
	NSigma float64

	// MinPixels is the smallest group that qualifies as a source (default 20)
	MinPixels int

	// Connectivity is 4 or 8 (default 8)
	Connectivity int

	// NoiseModel selects uniform or tile-local noise estimation
	NoiseModel NoiseModel

	// Noise supplies the tiling and clipping used to estimate sigma
	Noise *background.Estimator
}

// NewMasker returns a masker with 8-connectivity and a uniform noise model
func NewMasker(nSigma float64, minPixels int) *Masker {
	return &Masker{
		NSigma:       nSigma,
		MinPixels:    minPixels,
		Connectivity: 8,
		NoiseModel:   Uniform,
		Noise:        background.NewEstimator(128, 1),
	}
}

// Source is one qualifying connected component
type Source struct {
	Label  int32
	Pixels int
	Bounds image.Rectangle

	// Peak is the largest residual inside the component
	Peak float64
}

// Segmentation is the outcome of source detection
type Segmentation struct {
	Width, Height int

	// Labels holds the source label per pixel, 0 for background. Labels are
	// assigned 1..N in raster order of each source's first pixel.
	Labels  []int32
	Sources []Source
	Mask    *models.Mask

	// Sigma is the noise estimate; for the local model its median over pixels
	Sigma float64

	// Threshold is NSigma*Sigma
	Threshold float64

	// Degenerate is set when no valid pixel is left outside the mask
	Degenerate bool
}

// Detect labels every qualifying source of a background-subtracted residual.
// Invalid residual pixels are never candidates.
func (m *Masker) Detect(residual *models.Surface) (*Segmentation, error) {
	shape := residual.Shape()
	if shape.Empty() {
		return nil, models.ErrEmptyFrame
	}
	if m.Connectivity != 4 && m.Connectivity != 8 {
		return nil, fmt.Errorf("unsupported connectivity %d", m.Connectivity)
	}

	thresholds, sigma, err := m.thresholds(residual)
	if err != nil {
		return nil, err
	}

	n := shape.Len()
	candidate := make([]bool, n)
	for i, v := range residual.Values {
		candidate[i] = residual.Valid[i] && v > thresholds(i)
	}

	seg := &Segmentation{
		Width:     shape.Width,
		Height:    shape.Height,
		Labels:    make([]int32, n),
		Mask:      models.NewMask(shape),
		Sigma:     sigma,
		Threshold: m.NSigma * sigma,
	}
	m.label(residual, candidate, seg)

	remaining := 0
	for i, ok := range residual.Valid {
		if ok && !seg.Mask.Bits[i] {
			remaining++
		}
	}
	if remaining == 0 {
		seg.Degenerate = true
		monitoring.Warnf("every pixel of the %s frame is masked, no background pixels remain", shape)
	}
	return seg, nil
}

// thresholds returns the per-pixel detection threshold and the reported sigma
func (m *Masker) thresholds(residual *models.Surface) (func(int) float64, float64, error) {
	noise := m.Noise
	if noise == nil {
		noise = background.NewEstimator(128, 1)
	}

	switch m.NoiseModel {
	case Uniform, "":
		values := make([]float64, 0, len(residual.Values))
		for i, v := range residual.Values {
			if residual.Valid[i] {
				values = append(values, v)
			}
		}
		sigma := background.SigmaClippedStats(values, noise.ClipSigma, noise.ClipIterations).Std
		thr := m.NSigma * sigma
		return func(int) float64 { return thr }, sigma, nil

	case Local:
		mesh := noise.BuildMesh(residual.Shape(), residual.Values, residual.Valid, func(s background.Stats) float64 { return s.Std })
		sigmas := make([]float64, residual.Shape().Len())
		mesh.Grid.Render(mesh.Values, sigmas)
		median := background.SigmaClippedStats(mesh.Values, noise.ClipSigma, 0).Median
		return func(i int) float64 { return m.NSigma * sigmas[i] }, median, nil
	}
	return nil, 0, fmt.Errorf("unknown noise model %q", m.NoiseModel)
}

// label groups candidate pixels into connected components by breadth-first
// flood fill, visiting seeds in raster order. Components smaller than
// MinPixels are dropped.
func (m *Masker) label(residual *models.Surface, candidate []bool, seg *Segmentation) {
	w, h := seg.Width, seg.Height
	visited := make([]bool, len(candidate))
	queue := make([]int, 0, 1024)

	offsets := [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	if m.Connectivity == 8 {
		offsets = append(offsets, [2]int{-1, -1}, [2]int{1, -1}, [2]int{-1, 1}, [2]int{1, 1})
	}

	next := int32(1)
	for seed := range candidate {
		if !candidate[seed] || visited[seed] {
			continue
		}

		queue = append(queue[:0], seed)
		visited[seed] = true
		for head := 0; head < len(queue); head++ {
			p := queue[head]
			px, py := p%w, p/w
			for _, o := range offsets {
				nx, ny := px+o[0], py+o[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				q := ny*w + nx
				if candidate[q] && !visited[q] {
					visited[q] = true
					queue = append(queue, q)
				}
			}
		}

		if len(queue) < m.MinPixels {
			continue
		}

		src := Source{Label: next, Pixels: len(queue)}
		first := true
		for _, p := range queue {
			seg.Labels[p] = next
			seg.Mask.Bits[p] = true
			px, py := p%w, p/w
			pr := image.Rect(px, py, px+1, py+1)
			if first {
				src.Bounds = pr
				src.Peak = residual.Values[p]
				first = false
				continue
			}
			src.Bounds = src.Bounds.Union(pr)
			if v := residual.Values[p]; v > src.Peak {
				src.Peak = v
			}
		}
		seg.Sources = append(seg.Sources, src)
		next++
	}
}
