package metrics

import "github.com/san-kum/banksim/internal/dynamo"

// MaxDispersion tracks the largest cross-sectional dispersion of a run.
type MaxDispersion struct {
	name string
	max  float64
}

func NewMaxDispersion() *MaxDispersion {
	return &MaxDispersion{
		name: "max_dispersion",
	}
}

func (m *MaxDispersion) Name() string {
	return m.name
}

func (m *MaxDispersion) OnStep(step int, t float64, x dynamo.State) {
	if d := Dispersion(x); d > m.max {
		m.max = d
	}
}

func (m *MaxDispersion) Value() float64 {
	return m.max
}

func (m *MaxDispersion) Reset() {
	m.max = 0
}
