package photometry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagnitudeToFlux(t *testing.T) {
	tests := []struct {
		level, zp, want float64
	}{
		{25, 25, 1},
		{27.5, 25, math.Pow(10, -1)},
		{20, 25, 100},
		{28.5, 28.5, 1},
	}
	for _, tt := range tests {
		got, err := MagnitudeToFlux(tt.level, tt.zp)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-12*tt.want, "level=%v zp=%v", tt.level, tt.zp)
	}
}

func TestMagnitudeToFluxClamps(t *testing.T) {
	bright, err := MagnitudeToFlux(-2000, 25)
	require.NoError(t, err)
	assert.Equal(t, math.MaxFloat64, bright)

	faint, err := MagnitudeToFlux(2000, 25)
	require.NoError(t, err)
	assert.Equal(t, math.SmallestNonzeroFloat64, faint)

	inf, err := MagnitudeToFlux(math.Inf(-1), 25)
	require.NoError(t, err)
	assert.Equal(t, math.MaxFloat64, inf)
}

func TestMagnitudeToFluxRejectsNaN(t *testing.T) {
	_, err := MagnitudeToFlux(math.NaN(), 25)
	assert.True(t, errors.Is(err, ErrInvalidLevel))
}

func TestFluxToMagnitudeInverse(t *testing.T) {
	for _, level := range []float64{15.76, 25, 27.5, 28.0, 28.5} {
		flux, err := MagnitudeToFlux(level, DefaultZeroPoint)
		require.NoError(t, err)
		back, err := FluxToMagnitude(flux, DefaultZeroPoint)
		require.NoError(t, err)
		assert.InDelta(t, level, back, 1e-9)
	}

	_, err := FluxToMagnitude(0, DefaultZeroPoint)
	assert.Error(t, err)
	_, err = FluxToMagnitude(-1, DefaultZeroPoint)
	assert.Error(t, err)
}
