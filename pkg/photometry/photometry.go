// Package photometry converts between surface brightness and linear flux.
package photometry

import (
	"errors"
	"fmt"
	"math"
)

// DefaultZeroPoint is the magnitude zero-point used when none is configured
const DefaultZeroPoint = 25.0

// ErrInvalidLevel is returned for a surface-brightness level that is not a number
var ErrInvalidLevel = errors.New("invalid isophote level")

// MagnitudeToFlux converts a surface brightness in mag/arcsec^2 into a flux
// threshold, flux = 10^(-0.4 (level - zeroPoint)).
//
// Results outside the representable range are clamped to
// [math.SmallestNonzeroFloat64, math.MaxFloat64] so extreme levels still
// produce a usable, strictly positive threshold.
func MagnitudeToFlux(level, zeroPoint float64) (float64, error) {
	if math.IsNaN(level) || math.IsNaN(zeroPoint) {
		return 0, fmt.Errorf("%w: level=%v zeroPoint=%v", ErrInvalidLevel, level, zeroPoint)
	}
	flux := math.Pow(10, -0.4*(level-zeroPoint))
	switch {
	case math.IsInf(flux, 1) || flux > math.MaxFloat64:
		return math.MaxFloat64, nil
	case flux < math.SmallestNonzeroFloat64:
		return math.SmallestNonzeroFloat64, nil
	}
	return flux, nil
}

// FluxToMagnitude is the inverse of MagnitudeToFlux for positive fluxes
func FluxToMagnitude(flux, zeroPoint float64) (float64, error) {
	if !(flux > 0) || math.IsInf(flux, 0) {
		return 0, fmt.Errorf("flux must be positive and finite, got %v", flux)
	}
	return zeroPoint - 2.5*math.Log10(flux), nil
}
