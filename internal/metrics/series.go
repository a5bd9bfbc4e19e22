package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/banksim/internal/dynamo"
)

// Dispersion is the population standard deviation across particles.
func Dispersion(x dynamo.State) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}
	_, variance := stat.MeanVariance(x, nil)
	return math.Sqrt(variance * float64(n-1) / float64(n))
}

// MeanSeries returns the cross-sectional mean at every step.
func MeanSeries(traj *dynamo.Trajectory) []float64 {
	out := make([]float64, traj.Steps())
	for i, s := range traj.States {
		out[i] = stat.Mean(s, nil)
	}
	return out
}

// DispersionSeries returns the cross-sectional dispersion at every step.
func DispersionSeries(traj *dynamo.Trajectory) []float64 {
	out := make([]float64, traj.Steps())
	for i, s := range traj.States {
		out[i] = Dispersion(s)
	}
	return out
}
