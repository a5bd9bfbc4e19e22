package metrics

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/banksim/internal/dynamo"
	"github.com/san-kum/banksim/internal/sim"
)

func TestDispersion(t *testing.T) {
	tests := []struct {
		x    dynamo.State
		want float64
	}{
		{dynamo.State{}, 0},
		{dynamo.State{3}, 0},
		{dynamo.State{1, 1, 1}, 0},
		{dynamo.State{-1, 1}, 1},
		{dynamo.State{2, 4, 4, 4, 5, 5, 7, 9}, 2},
	}

	for _, tt := range tests {
		if got := Dispersion(tt.x); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Dispersion(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestSeries(t *testing.T) {
	traj := &dynamo.Trajectory{Dt: 1, States: []dynamo.State{
		{0, 0},
		{1, -1},
		{3, 1},
	}}

	mean := MeanSeries(traj)
	want := []float64{0, 0, 2}
	for i := range want {
		if mean[i] != want[i] {
			t.Errorf("mean[%d] = %v, want %v", i, mean[i], want[i])
		}
	}

	disp := DispersionSeries(traj)
	wantDisp := []float64{0, 1, 1}
	for i := range wantDisp {
		if math.Abs(disp[i]-wantDisp[i]) > 1e-12 {
			t.Errorf("dispersion[%d] = %v, want %v", i, disp[i], wantDisp[i])
		}
	}
}

func TestDefaultsMetric(t *testing.T) {
	m := NewDefaults(-0.7)

	m.OnStep(0, 0, dynamo.State{0, 0, 0})
	m.OnStep(1, 0.1, dynamo.State{-0.7, 0.2, -0.5})
	m.OnStep(2, 0.2, dynamo.State{0.1, -0.9, -0.5})

	if m.Value() != 2 {
		t.Errorf("expected 2 defaults, got %v", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero defaults after reset")
	}
}

func TestMaxDispersionAndFinalMean(t *testing.T) {
	md := NewMaxDispersion()
	fm := NewFinalMean()

	for i, x := range []dynamo.State{{0, 0}, {-2, 2}, {1, 2}} {
		md.OnStep(i, float64(i), x)
		fm.OnStep(i, float64(i), x)
	}

	if md.Value() != 2 {
		t.Errorf("max dispersion = %v, want 2", md.Value())
	}
	if fm.Value() != 1.5 {
		t.Errorf("final mean = %v, want 1.5", fm.Value())
	}
}

func TestStandardMetricsInSimulator(t *testing.T) {
	opts := make([]sim.Option, 0)
	for _, m := range Standard(-0.7) {
		opts = append(opts, sim.WithMetric(m))
	}
	s := sim.New(opts...)

	_, err := s.Run(context.Background(), sim.Problem{
		Drift:        dynamo.Zero(),
		Diffusion:    dynamo.Zero(),
		Horizon:      1,
		Dt:           0.5,
		X0:           dynamo.State{1, -1},
		Reproducible: true,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := s.Metrics()
	if got["final_mean"] != 0 || got["max_dispersion"] != 1 || got["defaults"] != 1 {
		t.Errorf("unexpected metrics: %v", got)
	}
}
