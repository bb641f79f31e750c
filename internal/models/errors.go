package models

import (
	"errors"
	"fmt"
)

// ErrEmptyFrame is returned when a frame has no pixels
var ErrEmptyFrame = errors.New("empty science frame")

// ShapeError reports intermediate products whose shapes disagree. It always
// indicates a programming defect, never a data-quality issue.
type ShapeError struct {
	Stage string
	Want  Shape
	Got   Shape
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape mismatch, want %s got %s", e.Stage, e.Want, e.Got)
}

// CheckShape returns a *ShapeError when got differs from want
func CheckShape(stage string, want, got Shape) error {
	if want != got {
		return &ShapeError{Stage: stage, Want: want, Got: got}
	}
	return nil
}

// ValidateFrame checks that a frame is non-empty and its data matches its dimensions
func ValidateFrame(f *Frame) error {
	if f == nil || f.Shape().Empty() {
		return ErrEmptyFrame
	}
	if len(f.Data) != f.Shape().Len() {
		return fmt.Errorf("frame data holds %d values, %s needs %d", len(f.Data), f.Shape(), f.Shape().Len())
	}
	return nil
}
