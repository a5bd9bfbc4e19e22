package viz

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/banksim/internal/dynamo"
	"github.com/san-kum/banksim/internal/metrics"
)

var meanColor = color.RGBA{G: 128, A: 255}

type RenderOptions struct {
	Title string
	// Paths toggles drawing every particle path behind the mean.
	Paths  bool
	Width  vg.Length
	Height vg.Length
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Paths: true, Width: 15 * vg.Inch, Height: 5 * vg.Inch}
}

// NewFigure builds the trajectory figure: paths in black, the mean in green.
func NewFigure(traj *dynamo.Trajectory, opts RenderOptions) (*plot.Plot, error) {
	if traj.Steps() == 0 {
		return nil, fmt.Errorf("empty trajectory")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "t"
	p.Y.Label.Text = "X_t"
	p.X.Min = 0
	p.X.Max = float64(traj.Steps()-1) * traj.Dt

	times := traj.Times()
	if opts.Paths {
		for j := 0; j < traj.Particles(); j++ {
			line, err := plotter.NewLine(xys(times, traj.Column(j)))
			if err != nil {
				return nil, err
			}
			line.LineStyle.Color = color.Black
			line.LineStyle.Width = vg.Points(0.5)
			p.Add(line)
		}
	}

	mean, err := plotter.NewLine(xys(times, metrics.MeanSeries(traj)))
	if err != nil {
		return nil, err
	}
	mean.LineStyle.Color = meanColor
	mean.LineStyle.Width = vg.Points(2)
	p.Add(mean)
	p.Legend.Add("mean", mean)

	return p, nil
}

// Render writes the figure to path; the format follows the extension
// (.png, .svg, .pdf, .jpg).
func Render(traj *dynamo.Trajectory, path string, opts RenderOptions) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".svg", ".pdf", ".jpg", ".jpeg", ".eps", ".tif", ".tiff":
	default:
		return fmt.Errorf("unsupported image format: %q", filepath.Ext(path))
	}

	p, err := NewFigure(traj, opts)
	if err != nil {
		return err
	}
	return p.Save(opts.Width, opts.Height, path)
}

func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i].X = x[i]
		pts[i].Y = y[i]
	}
	return pts
}
