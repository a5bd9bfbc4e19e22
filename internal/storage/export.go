package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/banksim/internal/dynamo"
	"github.com/san-kum/banksim/internal/metrics"
)

type ExportData struct {
	RunMetadata
	Times      []float64   `json:"times"`
	States     [][]float64 `json:"states"`
	Mean       []float64   `json:"mean"`
	Dispersion []float64   `json:"dispersion"`
}

// ExportJSON writes the run with its full trajectory and cross-sectional
// series.
func ExportJSON(w io.Writer, meta *RunMetadata, traj *dynamo.Trajectory) error {
	data := ExportData{
		RunMetadata: *meta,
		Times:       traj.Times(),
		States:      make([][]float64, len(traj.States)),
		Mean:        metrics.MeanSeries(traj),
		Dispersion:  metrics.DispersionSeries(traj),
	}
	for i, s := range traj.States {
		data.States[i] = s
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
