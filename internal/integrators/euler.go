package integrators

import "github.com/san-kum/banksim/internal/dynamo"

// EulerMaruyama advances an SDE by one step:
//
//	x' = x + b(x) dt + s(x) dW
//
// Drift and diffusion values follow the dynamo broadcast rule.
type EulerMaruyama struct{}

func NewEulerMaruyama() *EulerMaruyama {
	return &EulerMaruyama{}
}

// Step combines the previous state with its drift, diffusion and the step's
// Wiener increment. It has no side effects and returns a fresh State.
func (e *EulerMaruyama) Step(x, drift, diffusion, dW dynamo.State, dt float64) (dynamo.State, error) {
	n := len(x)
	if !drift.Broadcasts(n) {
		return nil, &dynamo.DimensionError{Input: "drift", Want: n, Got: len(drift)}
	}
	if !diffusion.Broadcasts(n) {
		return nil, &dynamo.DimensionError{Input: "diffusion", Want: n, Got: len(diffusion)}
	}
	if len(dW) != n {
		return nil, &dynamo.DimensionError{Input: "increment", Want: n, Got: len(dW)}
	}

	result := make(dynamo.State, n)
	for i := range x {
		result[i] = x[i] + drift.At(i)*dt + diffusion.At(i)*dW[i]
	}
	return result, nil
}
