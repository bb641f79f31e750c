package segmentation

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iclcontours/internal/models"
	"iclcontours/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

// residualWithBlocks returns a zero residual with square blocks of value v
func residualWithBlocks(width, height int, v float64, blocks ...image.Rectangle) *models.Surface {
	s := models.NewSurface(models.Shape{Width: width, Height: height})
	for i := range s.Valid {
		s.Valid[i] = true
	}
	for _, b := range blocks {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				s.Set(x, y, v)
			}
		}
	}
	return s
}

func TestDetectDropsSmallGroups(t *testing.T) {
	small := image.Rect(5, 5, 8, 8)    // 9 pixels
	large := image.Rect(30, 30, 36, 36) // 36 pixels
	residual := residualWithBlocks(64, 64, 50, small, large)

	seg, err := NewMasker(2, 20).Detect(residual)
	require.NoError(t, err)

	require.Len(t, seg.Sources, 1)
	assert.Equal(t, int32(1), seg.Sources[0].Label)
	assert.Equal(t, 36, seg.Sources[0].Pixels)
	assert.Equal(t, large, seg.Sources[0].Bounds)
	assert.Equal(t, 50.0, seg.Sources[0].Peak)

	assert.Equal(t, 36, seg.Mask.Count())
	for y := small.Min.Y; y < small.Max.Y; y++ {
		for x := small.Min.X; x < small.Max.X; x++ {
			assert.False(t, seg.Mask.Bits[y*64+x], "small group pixel %d,%d masked", x, y)
		}
	}
	assert.False(t, seg.Degenerate)
}

func TestDetectIsDeterministic(t *testing.T) {
	residual := residualWithBlocks(64, 64, 10,
		image.Rect(40, 2, 50, 12), image.Rect(1, 20, 11, 30), image.Rect(20, 50, 30, 60))

	m := NewMasker(2, 20)
	first, err := m.Detect(residual)
	require.NoError(t, err)
	second, err := m.Detect(residual)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("segmentation differs between runs (-first +second):\n%s", diff)
	}

	// labels follow raster order of each source's first pixel
	require.Len(t, first.Sources, 3)
	assert.Equal(t, image.Pt(40, 2), first.Sources[0].Bounds.Min)
	assert.Equal(t, image.Pt(1, 20), first.Sources[1].Bounds.Min)
	assert.Equal(t, image.Pt(20, 50), first.Sources[2].Bounds.Min)
}

func TestDetectConnectivity(t *testing.T) {
	// two 4x4 blocks touching only at a corner
	residual := residualWithBlocks(32, 32, 10, image.Rect(4, 4, 8, 8), image.Rect(8, 8, 12, 12))

	eight := NewMasker(1, 20)
	seg, err := eight.Detect(residual)
	require.NoError(t, err)
	assert.Len(t, seg.Sources, 1, "diagonal neighbours join under 8-connectivity")

	four := NewMasker(1, 20)
	four.Connectivity = 4
	seg, err = four.Detect(residual)
	require.NoError(t, err)
	assert.Empty(t, seg.Sources, "each 16-pixel block is below the minimum under 4-connectivity")
}

func TestDetectThresholdIsStrict(t *testing.T) {
	residual := residualWithBlocks(16, 16, 0)
	for i := range residual.Values {
		residual.Values[i] = float64(i%2) * 2 // alternating 0 and 2
	}
	seg, err := NewMasker(1, 1).Detect(residual)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, seg.Sigma, 1e-12)
	assert.InDelta(t, 1.0, seg.Threshold, 1e-12)
	assert.Equal(t, 128, seg.Mask.Count())
}

func TestDetectIgnoresInvalidPixels(t *testing.T) {
	residual := residualWithBlocks(32, 32, 100, image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			residual.Invalidate(x, y)
		}
	}
	seg, err := NewMasker(2, 20).Detect(residual)
	require.NoError(t, err)
	assert.Zero(t, seg.Mask.Count())
}

func TestDetectDegenerate(t *testing.T) {
	residual := residualWithBlocks(8, 8, 5, image.Rect(0, 0, 8, 8))
	m := NewMasker(2, 20)
	m.Noise.ClipSigma = 3
	seg, err := m.Detect(residual)
	require.NoError(t, err)
	assert.Equal(t, 64, seg.Mask.Count())
	assert.True(t, seg.Degenerate)
}

func TestDetectLocalNoise(t *testing.T) {
	// left half noisy (+-10), right half quiet (+-1); a 5-sigma bump of 30
	// is significant only against the quiet half
	width, height := 64, 32
	residual := residualWithBlocks(width, height, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			amp := 1.0
			if x < 32 {
				amp = 10
			}
			residual.Set(x, y, amp*float64((x+y)%2*2-1))
		}
	}
	bump := func(x0 int) {
		for y := 10; y < 16; y++ {
			for x := x0; x < x0+6; x++ {
				residual.Set(x, y, 30)
			}
		}
	}
	bump(10)
	bump(45)

	m := NewMasker(5, 20)
	m.NoiseModel = Local
	m.Noise.TileWidth, m.Noise.TileHeight = 32, 32
	seg, err := m.Detect(residual)
	require.NoError(t, err)

	require.Len(t, seg.Sources, 1)
	assert.Equal(t, image.Rect(45, 10, 51, 16), seg.Sources[0].Bounds)
}

func TestDetectEmpty(t *testing.T) {
	_, err := NewMasker(2, 20).Detect(models.NewSurface(models.Shape{}))
	assert.True(t, errors.Is(err, models.ErrEmptyFrame))
}

func TestSubtractAndApplyMask(t *testing.T) {
	frame := models.NewFrame(3, 1, []float64{10, math.NaN(), 30})
	bg := models.NewSurface(frame.Shape())
	for i := range bg.Values {
		bg.Values[i], bg.Valid[i] = 5, true
	}
	residual := models.NewSurface(frame.Shape())
	require.NoError(t, Subtract(frame, bg, residual))
	assert.Equal(t, []float64{5, 0, 25}, residual.Values)
	assert.Equal(t, []bool{true, false, true}, residual.Valid)

	mask := models.NewMask(frame.Shape())
	mask.Bits[2] = true
	require.NoError(t, ApplyMask(residual, mask))
	assert.Equal(t, []bool{true, false, false}, residual.Valid)

	wrong := models.NewMask(models.Shape{Width: 2, Height: 1})
	var shapeErr *models.ShapeError
	assert.True(t, errors.As(ApplyMask(residual, wrong), &shapeErr))
	assert.Equal(t, "mask", shapeErr.Stage)
}
