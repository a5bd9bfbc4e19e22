package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/banksim/internal/dynamo"
	"github.com/san-kum/banksim/internal/metrics"
)

type PlotOptions struct {
	Width  int
	Height int
	// Paths is the number of individual particle paths drawn behind the
	// mean; 0 draws the mean only.
	Paths   int
	Caption string
}

func DefaultPlotOptions() PlotOptions {
	return PlotOptions{Width: 80, Height: 15, Paths: 6}
}

// Plot draws the cross-sectional mean of traj, with up to opts.Paths
// particle paths behind it.
func Plot(traj *dynamo.Trajectory, opts PlotOptions) string {
	if traj.Steps() == 0 {
		return ""
	}

	paths := opts.Paths
	if paths > traj.Particles() {
		paths = traj.Particles()
	}

	series := make([][]float64, 0, paths+1)
	colors := make([]asciigraph.AnsiColor, 0, paths+1)
	for j := 0; j < paths; j++ {
		series = append(series, traj.Column(j))
		colors = append(colors, asciigraph.Default)
	}
	series = append(series, metrics.MeanSeries(traj))
	colors = append(colors, asciigraph.Green)

	caption := opts.Caption
	if caption == "" {
		caption = fmt.Sprintf("X_t (%d banks, mean in green)", traj.Particles())
	}

	return asciigraph.PlotMany(series,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(caption),
	)
}

// Histogram bins values into integer-width buckets from 0 to max and draws
// the bucket counts.
func Histogram(values []float64, max int, caption string) string {
	if len(values) == 0 || max < 0 {
		return ""
	}
	counts := make([]float64, max+1)
	for _, v := range values {
		bin := int(v)
		if bin < 0 {
			bin = 0
		}
		if bin > max {
			bin = max
		}
		counts[bin]++
	}

	return asciigraph.Plot(counts,
		asciigraph.Height(10),
		asciigraph.Width(maxInt(2*len(counts), 40)),
		asciigraph.Caption(caption),
	)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
