package sim

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/banksim/internal/compute"
	"github.com/san-kum/banksim/internal/dynamo"
	"github.com/san-kum/banksim/internal/integrators"
	"github.com/san-kum/banksim/internal/noise"
)

// MaxSteps bounds the number of rows a single run may allocate.
const MaxSteps = 1 << 24

// Simulator runs problems one at a time. Observers and metrics are shared
// across runs, so a Simulator that has any must not be used by concurrent
// Run calls; give each goroutine its own, as Ensemble does.
type Simulator struct {
	backend   compute.Backend
	stepper   *integrators.EulerMaruyama
	logger    *zap.Logger
	observers []Observer
	metrics   []Metric
}

type Option func(*Simulator)

func WithBackend(b compute.Backend) Option {
	return func(s *Simulator) { s.backend = b }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

func WithObserver(o Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

func WithMetric(m Metric) Option {
	return func(s *Simulator) { s.metrics = append(s.metrics, m) }
}

func New(opts ...Option) *Simulator {
	s := &Simulator{
		backend:   compute.NewSerial(),
		stepper:   integrators.NewEulerMaruyama(),
		logger:    zap.NewNop(),
		observers: make([]Observer, 0),
		metrics:   make([]Metric, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Backend() compute.Backend { return s.backend }

// Metrics returns the value of every registered metric for the last run.
// After a failed run every metric is reset.
func (s *Simulator) Metrics() map[string]float64 {
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

// Simulate runs the Euler–Maruyama scheme on the serial backend. With seed
// set, the random stream is pinned to noise.DefaultSeed.
func Simulate(drift, diffusion dynamo.Field, horizon, dt float64, x0 dynamo.State, seed bool) (*dynamo.Trajectory, error) {
	return New().Run(context.Background(), Problem{
		Drift:        drift,
		Diffusion:    diffusion,
		Horizon:      horizon,
		Dt:           dt,
		X0:           x0,
		Reproducible: seed,
		Seed:         noise.DefaultSeed,
	})
}

// Run marches p from row 0 = x0 to floor(T/dt). Row i is computed only from
// the completed row i-1. Any failure discards the whole trajectory.
func (s *Simulator) Run(ctx context.Context, p Problem) (*dynamo.Trajectory, error) {
	if err := validate(p); err != nil {
		return nil, err
	}

	stream, err := noise.New(len(p.X0), p.Dt, noise.NewSource(p.Reproducible, p.Seed))
	if err != nil {
		return nil, err
	}

	steps := dynamo.StepCount(p.Horizon, p.Dt)
	traj := &dynamo.Trajectory{
		Dt:     p.Dt,
		States: make([]dynamo.State, steps),
	}
	traj.States[0] = p.X0.Clone()

	for _, m := range s.metrics {
		m.Reset()
	}
	s.notify(0, 0, traj.States[0])

	log := s.logger.With(zap.String("backend", s.backend.Name()), zap.Int("particles", len(p.X0)))
	log.Debug("run started",
		zap.Int("steps", steps),
		zap.Float64("dt", p.Dt),
		zap.Float64("noise_std", stream.StdDev()),
		zap.Bool("reproducible", p.Reproducible),
	)
	start := time.Now()

	dW := make(dynamo.State, len(p.X0))
	for i := 1; i < steps; i++ {
		select {
		case <-ctx.Done():
			log.Debug("run canceled", zap.Int("step", i))
			return nil, s.fail(ctx.Err())
		default:
		}

		stream.Fill(dW)
		prev := traj.States[i-1]

		b, sig, err := s.backend.Evaluate(p.Drift, p.Diffusion, prev)
		if err != nil {
			return nil, s.fail(atStep(err, i))
		}

		next, err := s.stepper.Step(prev, b, sig, dW, p.Dt)
		if err != nil {
			return nil, s.fail(atStep(err, i))
		}

		traj.States[i] = next
		s.notify(i, float64(i)*p.Dt, next)
	}

	log.Debug("run completed", zap.Duration("elapsed", time.Since(start)))
	return traj, nil
}

// fail clears partial metric values before err is returned.
func (s *Simulator) fail(err error) error {
	for _, m := range s.metrics {
		m.Reset()
	}
	return err
}

func (s *Simulator) notify(step int, t float64, x dynamo.State) {
	for _, m := range s.metrics {
		m.OnStep(step, t, x)
	}
	for _, o := range s.observers {
		o.OnStep(step, t, x)
	}
}

func validate(p Problem) error {
	if !(p.Horizon > 0) || math.IsInf(p.Horizon, 0) {
		return dynamo.InvalidParam("T", "must be positive and finite, got %g", p.Horizon)
	}
	if !(p.Dt > 0) || math.IsInf(p.Dt, 0) {
		return dynamo.InvalidParam("dt", "must be positive and finite, got %g", p.Dt)
	}
	if steps := p.Horizon / p.Dt; math.IsInf(steps, 0) || steps >= MaxSteps {
		return dynamo.InvalidParam("dt", "T/dt = %g exceeds the limit of %d steps", steps, MaxSteps)
	}
	if len(p.X0) == 0 {
		return dynamo.InvalidParam("x0", "must be non-empty")
	}
	if !p.X0.IsValid() {
		return dynamo.InvalidParam("x0", "contains NaN or Inf")
	}
	if p.Drift == nil {
		return dynamo.InvalidParam("drift", "must not be nil")
	}
	if p.Diffusion == nil {
		return dynamo.InvalidParam("diffusion", "must not be nil")
	}
	return nil
}

// atStep records the failing step on errors that carry one.
func atStep(err error, step int) error {
	var ufe *dynamo.UserFunctionError
	if errors.As(err, &ufe) {
		ufe.Step = step
	}
	var dimErr *dynamo.DimensionError
	if errors.As(err, &dimErr) {
		dimErr.Step = step
	}
	return err
}
