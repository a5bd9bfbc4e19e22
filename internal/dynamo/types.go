package dynamo

import "math"

// State holds one value per particle.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

// At returns the broadcast value of s for particle i: the only entry of a
// scalar, element i otherwise.
func (s State) At(i int) float64 {
	if len(s) == 1 {
		return s[0]
	}
	return s[i]
}

// Broadcasts reports whether s can be combined with a state of n particles.
func (s State) Broadcasts(n int) bool {
	return len(s) == 1 || len(s) == n
}

// Field is a drift or diffusion term evaluated on the previous state.
// Implementations must be pure: the same input yields the same output.
type Field interface {
	Eval(x State) (State, error)
}

// FieldFunc adapts an ordinary function to a Field.
type FieldFunc func(x State) (State, error)

func (f FieldFunc) Eval(x State) (State, error) {
	return f(x)
}

// Constant returns a Field that ignores the state and yields the scalar c.
func Constant(c float64) Field {
	return FieldFunc(func(State) (State, error) {
		return State{c}, nil
	})
}

// Vector returns a Field that yields a fixed per-particle vector.
func Vector(v State) Field {
	v = v.Clone()
	return FieldFunc(func(State) (State, error) {
		return v, nil
	})
}

// Zero is the field that is identically zero.
func Zero() Field {
	return Constant(0)
}

// Trajectory is the output of one run: States[i] is the state at time i*Dt.
// It is owned by the caller once returned and must not be mutated.
type Trajectory struct {
	Dt     float64
	States []State
}

// StepCount returns floor(horizon/dt)+1, the number of rows a run produces.
func StepCount(horizon, dt float64) int {
	return int(horizon/dt) + 1
}

func (t *Trajectory) Steps() int {
	return len(t.States)
}

func (t *Trajectory) Particles() int {
	if len(t.States) == 0 {
		return 0
	}
	return len(t.States[0])
}

func (t *Trajectory) Times() []float64 {
	times := make([]float64, len(t.States))
	for i := range times {
		times[i] = float64(i) * t.Dt
	}
	return times
}

// Row returns a copy of the state at step i.
func (t *Trajectory) Row(i int) State {
	return t.States[i].Clone()
}

// Column returns the path of particle j.
func (t *Trajectory) Column(j int) []float64 {
	col := make([]float64, len(t.States))
	for i, s := range t.States {
		col[i] = s[j]
	}
	return col
}

// Equal reports bit-for-bit equality of two trajectories.
func (t *Trajectory) Equal(other *Trajectory) bool {
	if t.Dt != other.Dt || len(t.States) != len(other.States) {
		return false
	}
	for i := range t.States {
		a, b := t.States[i], other.States[i]
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if math.Float64bits(a[j]) != math.Float64bits(b[j]) {
				return false
			}
		}
	}
	return true
}
