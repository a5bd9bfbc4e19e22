// Package noise generates the Wiener increments that drive the time march.
//
// A [Stream] is created once per run and owned by it; consecutive steps
// draw from the one continuing stream, so a run seeded with the same value
// always sees the same increments. Streams are not safe for concurrent use.
package noise

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/banksim/internal/dynamo"
)

// DefaultSeed is the seed behind the one-shot reproducible helpers
// (sim.Simulate, Banks.Simulate).
const DefaultSeed uint64 = 1

// NewSource returns the random source for one run. A reproducible source is
// a PCG generator keyed on seed; otherwise the source is keyed from the
// runtime's auto-seeded generator.
func NewSource(reproducible bool, seed uint64) rand.Source {
	if reproducible {
		return rand.NewPCG(seed, seed)
	}
	return rand.NewPCG(rand.Uint64(), rand.Uint64())
}

// Stream produces independent N(0, dt) increments of a fixed dimension.
type Stream struct {
	dim  int
	dist distuv.Normal
}

// New binds a stream of dim-sized increments with variance dt to src.
func New(dim int, dt float64, src rand.Source) (*Stream, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, dynamo.InvalidParam("dt", "must be positive and finite, got %g", dt)
	}
	if dim <= 0 {
		return nil, dynamo.InvalidParam("x0", "must be non-empty")
	}
	return &Stream{
		dim: dim,
		dist: distuv.Normal{
			Mu:    0,
			Sigma: math.Sqrt(dt),
			Src:   src,
		},
	}, nil
}

// StdDev is the standard deviation of each component, sqrt(dt).
func (s *Stream) StdDev() float64 { return s.dist.Sigma }

// Next draws one increment vector.
func (s *Stream) Next() dynamo.State {
	dW := make(dynamo.State, s.dim)
	s.Fill(dW)
	return dW
}

// Fill overwrites dst with one increment, component by component.
func (s *Stream) Fill(dst dynamo.State) {
	for i := range dst {
		dst[i] = s.dist.Rand()
	}
}
