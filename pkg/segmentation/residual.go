package segmentation

import (
	"math"

	"iclcontours/internal/models"
)

// Subtract writes frame - background into dst. Non-finite frame pixels are
// left invalid.
func Subtract(frame *models.Frame, bg *models.Surface, dst *models.Surface) error {
	if err := models.CheckShape("subtract", frame.Shape(), bg.Shape()); err != nil {
		return err
	}
	if err := models.CheckShape("subtract", frame.Shape(), dst.Shape()); err != nil {
		return err
	}
	for i, v := range frame.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) || !bg.Valid[i] {
			dst.Values[i] = 0
			dst.Valid[i] = false
			continue
		}
		dst.Values[i] = v - bg.Values[i]
		dst.Valid[i] = true
	}
	return nil
}

// ApplyMask marks every masked pixel of residual invalid, turning the
// background-subtracted frame into the residual surface handed to smoothing
func ApplyMask(residual *models.Surface, mask *models.Mask) error {
	if err := models.CheckShape("mask", residual.Shape(), mask.Shape()); err != nil {
		return err
	}
	for i, masked := range mask.Bits {
		if masked {
			residual.Values[i] = 0
			residual.Valid[i] = false
		}
	}
	return nil
}
