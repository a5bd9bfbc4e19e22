package metrics

import "github.com/san-kum/banksim/internal/dynamo"

// Defaults counts particles that reached the default level at any step.
type Defaults struct {
	name      string
	eta       float64
	defaulted []bool
}

func NewDefaults(eta float64) *Defaults {
	return &Defaults{
		name: "defaults",
		eta:  eta,
	}
}

func (d *Defaults) Name() string {
	return d.name
}

func (d *Defaults) OnStep(step int, t float64, x dynamo.State) {
	if len(d.defaulted) != len(x) {
		d.defaulted = make([]bool, len(x))
	}
	for i, v := range x {
		if v <= d.eta {
			d.defaulted[i] = true
		}
	}
}

func (d *Defaults) Value() float64 {
	count := 0
	for _, hit := range d.defaulted {
		if hit {
			count++
		}
	}
	return float64(count)
}

func (d *Defaults) Reset() {
	d.defaulted = nil
}
