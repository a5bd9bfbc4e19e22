package sim

import (
	"context"

	"github.com/san-kum/banksim/internal/dynamo"
)

// Problem is everything one run needs.
type Problem struct {
	Drift     dynamo.Field
	Diffusion dynamo.Field
	Horizon   float64
	Dt        float64
	X0        dynamo.State

	// Reproducible pins the random stream to Seed; every value, zero
	// included, is a distinct stream. Otherwise every run draws a fresh
	// stream and Seed is ignored.
	Reproducible bool
	Seed         uint64
}

// Runner produces a trajectory for a problem. Implementations must give
// bit-identical output for the same reproducible problem.
type Runner interface {
	Run(ctx context.Context, p Problem) (*dynamo.Trajectory, error)
}

// Observer is notified after each row is stored. x must not be retained
// or modified.
type Observer interface {
	OnStep(step int, t float64, x dynamo.State)
}

// Metric is an Observer that reduces a run to a single number.
type Metric interface {
	Observer
	Name() string
	Value() float64
	Reset()
}
