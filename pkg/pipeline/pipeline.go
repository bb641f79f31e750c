// Package pipeline runs the ICL isophote extraction end to end: background
// estimation, source masking, residual smoothing and contour extraction.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"

	"iclcontours/internal/models"
	"iclcontours/internal/monitoring"
	"iclcontours/pkg/background"
	"iclcontours/pkg/config"
	"iclcontours/pkg/contour"
	"iclcontours/pkg/segmentation"
	"iclcontours/pkg/smoothing"
	"iclcontours/pkg/visualization"
)

// Params holds the pipeline parameters
type Params struct {
	// NumCores bounds the number of isophote levels traced concurrently
	NumCores int

	// Timeout bounds a whole run; zero disables it
	Timeout time.Duration

	// Background estimation
	TileSize         int
	FilterSize       int
	MinValidFraction float64
	ClipSigma        float64
	ClipIterations   int

	// Source detection
	NSigma       float64
	MinPixels    int
	Connectivity int
	NoiseModel   segmentation.NoiseModel

	// SmoothWindow is the side of the residual median window
	SmoothWindow int

	// ZeroPoint converts isophote levels to flux thresholds
	ZeroPoint float64

	// SaveIntermediaryResults writes every stage surface as PNG into
	// IntermediaryDir
	SaveIntermediaryResults bool
	IntermediaryDir         string

	// Verbose enables step progress lines
	Verbose bool
}

// ParamsFromConfig maps a loaded configuration onto pipeline parameters
func ParamsFromConfig(cfg *config.Config) *Params {
	return &Params{
		NumCores:                cfg.Processing.NumCores,
		Timeout:                 cfg.Processing.Timeout,
		TileSize:                cfg.Background.TileSize,
		FilterSize:              cfg.Background.FilterSize,
		MinValidFraction:        cfg.Background.MinValidFraction,
		ClipSigma:               cfg.Background.ClipSigma,
		ClipIterations:          cfg.Background.ClipIterations,
		NSigma:                  cfg.Detection.NSigma,
		MinPixels:               cfg.Detection.MinPixels,
		Connectivity:            cfg.Detection.Connectivity,
		NoiseModel:              segmentation.NoiseModel(cfg.Detection.NoiseModel),
		SmoothWindow:            cfg.Smoothing.Window,
		ZeroPoint:               cfg.Photometry.ZeroPoint,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         cfg.Output.IntermediaryDir,
		Verbose:                 cfg.Output.Verbose,
	}
}

// DefaultParams returns the parameters of the default configuration
func DefaultParams() *Params {
	return ParamsFromConfig(config.DefaultConfig())
}

// Result is the outcome of one pipeline run
type Result struct {
	// RunID identifies the run in logs and written summaries
	RunID string

	Shape models.Shape

	// ContourSets holds one entry per requested level, in request order
	ContourSets []models.ContourSet

	// Background mesh diagnostics
	BackgroundTiles  int
	FilledTiles      int
	GlobalBackground bool

	// Source masking diagnostics
	Sources    int
	Masked     int
	Sigma      float64
	Degenerate bool

	// Smoothed is the diffuse-light surface the contours were traced on. It
	// is nil when no level was requested.
	Smoothed *models.Surface
}

// Counts returns the number of contours per level, in level order
func (r *Result) Counts() []int {
	counts := make([]int, len(r.ContourSets))
	for i, set := range r.ContourSets {
		counts[i] = len(set.Contours)
	}
	return counts
}

// Pipeline wires the four stages together
type Pipeline struct {
	params *Params

	background *background.Estimator
	masker     *segmentation.Masker
	smoother   *smoothing.MedianFilter
	extractor  *contour.Extractor
}

// NewPipeline creates a pipeline with the provided parameters
func NewPipeline(params *Params) *Pipeline {
	bg := background.NewEstimator(params.TileSize, params.FilterSize)
	bg.MinValidFraction = params.MinValidFraction
	bg.ClipSigma = params.ClipSigma
	bg.ClipIterations = params.ClipIterations

	masker := segmentation.NewMasker(params.NSigma, params.MinPixels)
	masker.Connectivity = params.Connectivity
	masker.NoiseModel = params.NoiseModel
	masker.Noise = background.NewEstimator(params.TileSize, 1)
	masker.Noise.ClipSigma = params.ClipSigma
	masker.Noise.ClipIterations = params.ClipIterations

	workers := params.NumCores
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	return &Pipeline{
		params:     params,
		background: bg,
		masker:     masker,
		smoother:   smoothing.NewMedianFilter(params.SmoothWindow),
		extractor:  &contour.Extractor{ZeroPoint: params.ZeroPoint, Workers: workers},
	}
}

// Process runs every stage on frame and returns one contour set per level.
//
// The frame is validated before anything else, so an empty frame fails even
// when no level is requested. Stages 1 to 3 run sequentially on buffers
// allocated once for the run; stage 4 traces levels concurrently. A degenerate
// mask is reported in the result and produces empty contour sets rather than
// an error.
func (p *Pipeline) Process(ctx context.Context, frame *models.Frame, levels []float64) (*Result, error) {
	if err := models.ValidateFrame(frame); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:       uuid.NewString(),
		Shape:       frame.Shape(),
		ContourSets: []models.ContourSet{},
	}
	if len(levels) == 0 {
		p.logf("Run %s: no isophote levels requested", result.RunID)
		return result, nil
	}

	if p.params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.params.Timeout)
		defer cancel()
	}

	if p.params.SaveIntermediaryResults {
		if err := os.MkdirAll(p.params.IntermediaryDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create intermediary directory: %w", err)
		}
	}

	ws := newWorkspace(frame.Shape())
	p.logf("Run %s: processing %s frame with %d isophote levels", result.RunID, result.Shape, len(levels))

	// Step 1: Estimate the background
	p.logf("Step 1: Estimating background on %dx%d tiles...", p.background.TileWidth, p.background.TileHeight)
	mesh, err := p.background.EstimateInto(frame, ws.background)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate background: %w", err)
	}
	result.BackgroundTiles = mesh.Grid.Len()
	result.FilledTiles = mesh.Filled
	result.GlobalBackground = mesh.Grid.Degenerate()
	p.saveIntermediaryResult("01_background", ws.background)

	if err := checkpoint(ctx, "source masking"); err != nil {
		return nil, err
	}

	// Step 2: Mask discrete sources
	p.logf("Step 2: Masking sources above %.1f sigma...", p.params.NSigma)
	if err := segmentation.Subtract(frame, ws.background, ws.residual); err != nil {
		return nil, fmt.Errorf("failed to subtract background: %w", err)
	}
	p.saveIntermediaryResult("02_residual", ws.residual)

	seg, err := p.masker.Detect(ws.residual)
	if err != nil {
		return nil, fmt.Errorf("failed to detect sources: %w", err)
	}
	if err := segmentation.ApplyMask(ws.residual, seg.Mask); err != nil {
		return nil, fmt.Errorf("failed to apply source mask: %w", err)
	}
	result.Sources = len(seg.Sources)
	result.Masked = seg.Mask.Count()
	result.Sigma = seg.Sigma
	result.Degenerate = seg.Degenerate
	p.logf("Masked %d sources covering %d pixels (sigma %.4g)", result.Sources, result.Masked, result.Sigma)
	if p.params.SaveIntermediaryResults {
		if err := visualization.SavePNG(visualization.MaskToImage(seg.Mask), p.intermediaryPath("03_mask")); err != nil {
			monitoring.Warnf("Failed to save source mask: %v", err)
		}
	}
	p.saveIntermediaryResult("04_masked_residual", ws.residual)

	if err := checkpoint(ctx, "smoothing"); err != nil {
		return nil, err
	}

	// Step 3: Smooth the masked residual
	p.logf("Step 3: Smoothing residual with a %dx%d median window...", p.params.SmoothWindow, p.params.SmoothWindow)
	if err := p.smoother.Apply(ws.residual, ws.smoothed); err != nil {
		return nil, fmt.Errorf("failed to smooth residual: %w", err)
	}
	p.saveIntermediaryResult("05_smoothed", ws.smoothed)

	if err := checkpoint(ctx, "contour extraction"); err != nil {
		return nil, err
	}

	// Step 4: Trace isophotes
	p.logf("Step 4: Extracting contours for %d levels...", len(levels))
	sets, err := p.extractor.Extract(ctx, ws.smoothed, levels)
	if err != nil {
		return nil, fmt.Errorf("failed to extract contours: %w", err)
	}
	for _, set := range sets {
		p.logf("Level %.1f mag/arcsec^2 (flux %.4g): %d contours", set.Level, set.Threshold, len(set.Contours))
	}

	result.ContourSets = sets
	result.Smoothed = ws.smoothed
	return result, nil
}

// checkpoint reports a cancelled or expired context before the named stage
func checkpoint(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted before %s: %w", stage, err)
	}
	return nil
}

func (p *Pipeline) logf(format string, v ...interface{}) {
	if p.params.Verbose {
		monitoring.Logf(format, v...)
	}
}

func (p *Pipeline) intermediaryPath(stage string) string {
	return filepath.Join(p.params.IntermediaryDir, stage+".png")
}

// saveIntermediaryResult writes a stage surface when intermediary results are
// enabled. Failures are logged and never abort the run.
func (p *Pipeline) saveIntermediaryResult(stage string, s *models.Surface) {
	if !p.params.SaveIntermediaryResults {
		return
	}
	if err := visualization.SavePNG(visualization.SurfaceToImage(s), p.intermediaryPath(stage)); err != nil {
		monitoring.Warnf("Failed to save %s: %v", stage, err)
	}
}
