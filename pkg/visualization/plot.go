package visualization

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"iclcontours/internal/models"
)

// levelColors returns n evenly spaced hues, stable for a given n
func levelColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := range colors {
		c := colorful.Hsv(360*float64(i)/float64(max(n, 1)), 0.85, 0.9)
		colors[i] = c.Clamped()
	}
	return colors
}

// PlotContours draws every contour of every set on one preview image saved to
// path. The format follows the file extension. Rows grow downwards as in the
// frame.
func PlotContours(path string, shape models.Shape, sets []models.ContourSet) error {
	if shape.Empty() {
		return models.ErrEmptyFrame
	}

	p := plot.New()
	p.Title.Text = "ICL isophotes"
	p.X.Label.Text = "column"
	p.Y.Label.Text = "row"
	p.X.Min, p.X.Max = 0, float64(shape.Width-1)
	p.Y.Min, p.Y.Max = 0, float64(shape.Height-1)
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Add(plotter.NewGrid())

	colors := levelColors(len(sets))
	for i, set := range sets {
		for j, c := range set.Contours {
			pts := make(plotter.XYs, len(c.Points))
			for k, pt := range c.Points {
				pts[k] = plotter.XY{X: pt.Col, Y: pt.Row}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return fmt.Errorf("level %.1f contour %d: %w", set.Level, j, err)
			}
			line.Color = colors[i]
			line.Width = vg.Points(1)
			p.Add(line)
			if j == 0 {
				p.Legend.Add(fmt.Sprintf("%.1f mag/arcsec²", set.Level), line)
			}
		}
	}

	width := 6 * vg.Inch
	height := width * vg.Length(shape.Height) / vg.Length(shape.Width)
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save contour preview: %w", err)
	}
	return nil
}
