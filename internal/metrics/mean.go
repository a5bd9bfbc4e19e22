package metrics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/banksim/internal/dynamo"
)

// FinalMean records the cross-sectional mean of the last observed row.
type FinalMean struct {
	name string
	last float64
}

func NewFinalMean() *FinalMean {
	return &FinalMean{
		name: "final_mean",
	}
}

func (f *FinalMean) Name() string {
	return f.name
}

func (f *FinalMean) OnStep(step int, t float64, x dynamo.State) {
	f.last = stat.Mean(x, nil)
}

func (f *FinalMean) Value() float64 {
	return f.last
}

func (f *FinalMean) Reset() {
	f.last = 0
}
