package pipeline

import "iclcontours/internal/models"

// workspace owns every full-frame buffer of a run. All of them are allocated
// up front from the frame shape and dropped together when the run ends.
type workspace struct {
	background *models.Surface
	residual   *models.Surface
	smoothed   *models.Surface
}

func newWorkspace(shape models.Shape) *workspace {
	return &workspace{
		background: models.NewSurface(shape),
		residual:   models.NewSurface(shape),
		smoothed:   models.NewSurface(shape),
	}
}
