// Package dynamo provides the core types shared by the SDE simulation packages.
//
// The package defines:
//
//   - [State]: the value of every particle at one time step
//   - [Field]: a drift or diffusion term, dX = b(X) dt + s(X) dW
//   - [Trajectory]: the full time series produced by one run
//   - the error kinds raised by validation and by the time march
//
// # Broadcasting
//
// A [Field] result of length 1 is a scalar and applies to every particle.
// A result with one entry per particle applies element-wise. Any other
// length is rejected with [ErrDimensionMismatch].
//
// # Example
//
//	drift := dynamo.FieldFunc(func(x dynamo.State) (dynamo.State, error) {
//	    return x.Scale(-1), nil
//	})
//	traj, err := sim.Simulate(drift, dynamo.Constant(0.3), 1.0, 0.01, x0, true)
package dynamo
