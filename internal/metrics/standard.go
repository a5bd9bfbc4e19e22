package metrics

import "github.com/san-kum/banksim/internal/sim"

// Standard returns the metrics recorded for every stored run.
func Standard(eta float64) []sim.Metric {
	return []sim.Metric{
		NewFinalMean(),
		NewMaxDispersion(),
		NewDefaults(eta),
	}
}
