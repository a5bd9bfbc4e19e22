package sim

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/banksim/internal/compute"
	"github.com/san-kum/banksim/internal/dynamo"
)

// Ensemble repeats a problem with seeds seedStart, seedStart+1, ... Each
// replication gets its own Simulator, random stream and buffer.
type Ensemble struct {
	backend   func() compute.Backend
	numRuns   int
	seedStart uint64
	workers   int
}

func NewEnsemble(numRuns int, seedStart uint64) *Ensemble {
	return &Ensemble{
		backend:   func() compute.Backend { return compute.NewSerial() },
		numRuns:   numRuns,
		seedStart: seedStart,
		workers:   runtime.NumCPU(),
	}
}

// WithBackend sets the backend factory used for every replication.
func (e *Ensemble) WithBackend(factory func() compute.Backend) *Ensemble {
	e.backend = factory
	return e
}

// WithWorkers bounds the number of replications in flight.
func (e *Ensemble) WithWorkers(n int) *Ensemble {
	if n > 0 {
		e.workers = n
	}
	return e
}

// Run returns one trajectory per replication, in seed order. The first
// failing replication cancels the rest.
func (e *Ensemble) Run(ctx context.Context, p Problem) ([]*dynamo.Trajectory, error) {
	if e.numRuns <= 0 {
		return nil, dynamo.InvalidParam("replications", "must be positive, got %d", e.numRuns)
	}

	results := make([]*dynamo.Trajectory, e.numRuns)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := 0; i < e.numRuns; i++ {
		idx := i
		g.Go(func() error {
			rep := p
			rep.Reproducible = true
			rep.Seed = e.seedStart + uint64(idx)

			traj, err := New(WithBackend(e.backend())).Run(ctx, rep)
			if err != nil {
				return err
			}
			results[idx] = traj
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
