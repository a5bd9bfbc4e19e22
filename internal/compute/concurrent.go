package compute

import (
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/banksim/internal/dynamo"
)

// Concurrent evaluates drift and diffusion on separate goroutines. Both
// receive the same read-only state; neither result is used until both
// have returned. When both fail, the drift error is reported.
type Concurrent struct{}

func NewConcurrent() *Concurrent {
	return &Concurrent{}
}

func (c *Concurrent) Name() string { return "concurrent" }

func (c *Concurrent) Evaluate(drift, diffusion dynamo.Field, x dynamo.State) (dynamo.State, dynamo.State, error) {
	var (
		b, sig           dynamo.State
		driftErr, sigErr error
		g                errgroup.Group
	)

	g.Go(func() error {
		b, driftErr = evalField("drift", drift, x)
		return nil
	})
	g.Go(func() error {
		sig, sigErr = evalField("diffusion", diffusion, x)
		return nil
	})
	_ = g.Wait()

	if driftErr != nil {
		return nil, nil, driftErr
	}
	if sigErr != nil {
		return nil, nil, sigErr
	}
	return b, sig, nil
}
