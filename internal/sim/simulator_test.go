package sim

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/banksim/internal/compute"
	"github.com/san-kum/banksim/internal/dynamo"
)

func meanReversion(alpha float64) dynamo.Field {
	return dynamo.FieldFunc(func(x dynamo.State) (dynamo.State, error) {
		mean := stat.Mean(x, nil)
		out := make(dynamo.State, len(x))
		for i, v := range x {
			out[i] = alpha * (mean - v)
		}
		return out, nil
	})
}

func decay(rate float64) dynamo.Field {
	return dynamo.FieldFunc(func(x dynamo.State) (dynamo.State, error) {
		return x.Scale(-rate), nil
	})
}

type recorder struct {
	steps []int
}

func (r *recorder) OnStep(step int, t float64, x dynamo.State) {
	r.steps = append(r.steps, step)
}

type sumMetric struct {
	sum float64
	n   int
}

func (m *sumMetric) Name() string { return "sum" }
func (m *sumMetric) OnStep(step int, t float64, x dynamo.State) {
	m.n++
	for _, v := range x {
		m.sum += v
	}
}
func (m *sumMetric) Value() float64 { return m.sum }
func (m *sumMetric) Reset()         { m.sum, m.n = 0, 0 }

var _ = Describe("Simulate", func() {
	It("keeps a dispersion-free, noise-free system at its mean", func() {
		traj, err := Simulate(meanReversion(1), dynamo.Zero(), 1, 0.5, dynamo.State{0, 0, 0}, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(traj.States).To(Equal([]dynamo.State{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}))
	})

	It("holds a constant state without drift or noise", func() {
		traj, err := Simulate(dynamo.Zero(), dynamo.Zero(), 1, 1, dynamo.State{1, -1}, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(traj.States).To(Equal([]dynamo.State{{1, -1}, {1, -1}}))
	})

	It("produces floor(T/dt)+1 rows", func() {
		for _, tc := range []struct {
			horizon, dt float64
			rows        int
		}{
			{1, 0.1, 11},
			{1, 0.3, 4},
			{2.5, 0.5, 6},
			{0.2, 1, 1},
		} {
			traj, err := Simulate(dynamo.Zero(), dynamo.Constant(1), tc.horizon, tc.dt, dynamo.State{0}, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(traj.Steps()).To(Equal(tc.rows), "T=%v dt=%v", tc.horizon, tc.dt)
		}
	})

	It("leaves row 0 equal to x0 and independent of it", func() {
		x0 := dynamo.State{0.25, -1.5, 3}
		traj, err := Simulate(meanReversion(2), dynamo.Constant(0.7), 1, 0.1, x0, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(traj.States[0]).To(Equal(dynamo.State{0.25, -1.5, 3}))

		x0[0] = 100
		Expect(traj.States[0][0]).To(Equal(0.25))
	})

	It("is bit-identical across seeded runs", func() {
		x0 := dynamo.State{1, 0, -1, 0.5}
		a, err := Simulate(meanReversion(1.5), dynamo.Constant(0.4), 1, 0.01, x0, true)
		Expect(err).NotTo(HaveOccurred())
		b, err := Simulate(meanReversion(1.5), dynamo.Constant(0.4), 1, 0.01, x0, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Equal(b)).To(BeTrue())
	})

	It("draws fresh noise when unseeded", func() {
		x0 := dynamo.State{0, 0}
		a, err := Simulate(dynamo.Zero(), dynamo.Constant(1), 1, 0.1, x0, false)
		Expect(err).NotTo(HaveOccurred())
		b, err := Simulate(dynamo.Zero(), dynamo.Constant(1), 1, 0.1, x0, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Equal(b)).To(BeFalse())
	})

	It("reduces to explicit Euler when diffusion is zero", func() {
		const (
			rate = 0.8
			dt   = 0.05
		)
		seeded, err := Simulate(decay(rate), dynamo.Zero(), 1, dt, dynamo.State{2, -1}, true)
		Expect(err).NotTo(HaveOccurred())
		unseeded, err := Simulate(decay(rate), dynamo.Zero(), 1, dt, dynamo.State{2, -1}, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(seeded.Equal(unseeded)).To(BeTrue())

		x := dynamo.State{2, -1}
		for i := 1; i < seeded.Steps(); i++ {
			x = dynamo.State{x[0] + (-rate*x[0])*dt, x[1] + (-rate*x[1])*dt}
			Expect(seeded.States[i]).To(Equal(x))
		}
	})

	It("scales increments by c*sqrt(dt)", func() {
		const (
			c  = 0.5
			dt = 0.01
		)
		x0 := make(dynamo.State, 200)
		traj, err := Simulate(dynamo.Zero(), dynamo.Constant(c), 1, dt, x0, true)
		Expect(err).NotTo(HaveOccurred())

		incs := make([]float64, 0, (traj.Steps()-1)*len(x0))
		for i := 1; i < traj.Steps(); i++ {
			for j := range x0 {
				incs = append(incs, traj.States[i][j]-traj.States[i-1][j])
			}
		}
		Expect(stat.StdDev(incs, nil)).To(BeNumerically("~", c*math.Sqrt(dt), 0.002))
	})
})

var _ = Describe("Simulator", func() {
	var problem Problem

	BeforeEach(func() {
		problem = Problem{
			Drift:        meanReversion(1),
			Diffusion:    dynamo.Constant(0.3),
			Horizon:      1,
			Dt:           0.1,
			X0:           dynamo.State{1, 2, 3},
			Reproducible: true,
		}
	})

	Context("with invalid parameters", func() {
		DescribeTable("fails before producing any state",
			func(mutate func(*Problem), param string) {
				mutate(&problem)
				traj, err := New().Run(context.Background(), problem)
				Expect(traj).To(BeNil())
				Expect(errors.Is(err, dynamo.ErrInvalidParameter)).To(BeTrue())

				var perr *dynamo.ParameterError
				Expect(errors.As(err, &perr)).To(BeTrue())
				Expect(perr.Param).To(Equal(param))
			},
			Entry("zero dt", func(p *Problem) { p.Dt = 0 }, "dt"),
			Entry("negative dt", func(p *Problem) { p.Dt = -0.1 }, "dt"),
			Entry("zero horizon", func(p *Problem) { p.Horizon = 0 }, "T"),
			Entry("negative horizon", func(p *Problem) { p.Horizon = -1 }, "T"),
			Entry("NaN horizon", func(p *Problem) { p.Horizon = math.NaN() }, "T"),
			Entry("T/dt overflowing to Inf", func(p *Problem) { p.Horizon, p.Dt = 1e300, 1e-300 }, "dt"),
			Entry("T/dt past MaxSteps", func(p *Problem) { p.Horizon, p.Dt = 2, 1.0/MaxSteps }, "dt"),
			Entry("empty x0", func(p *Problem) { p.X0 = dynamo.State{} }, "x0"),
			Entry("non-finite x0", func(p *Problem) { p.X0 = dynamo.State{math.Inf(1)} }, "x0"),
			Entry("nil drift", func(p *Problem) { p.Drift = nil }, "drift"),
			Entry("nil diffusion", func(p *Problem) { p.Diffusion = nil }, "diffusion"),
		)
	})

	Context("when a user function fails", func() {
		It("surfaces the error with the failing step and discards the run", func() {
			boom := errors.New("boom")
			calls := 0
			problem.Diffusion = dynamo.FieldFunc(func(x dynamo.State) (dynamo.State, error) {
				calls++
				if calls == 3 {
					return nil, boom
				}
				return dynamo.State{0.1}, nil
			})

			traj, err := New().Run(context.Background(), problem)
			Expect(traj).To(BeNil())
			Expect(errors.Is(err, boom)).To(BeTrue())

			var ufe *dynamo.UserFunctionError
			Expect(errors.As(err, &ufe)).To(BeTrue())
			Expect(ufe.Func).To(Equal("diffusion"))
			Expect(ufe.Step).To(Equal(3))
			Expect(calls).To(Equal(3))
		})
	})

	Context("when drift returns the wrong length", func() {
		It("fails fast with a dimension mismatch", func() {
			problem.Drift = dynamo.FieldFunc(func(x dynamo.State) (dynamo.State, error) {
				return dynamo.State{1, 2}, nil
			})

			traj, err := New().Run(context.Background(), problem)
			Expect(traj).To(BeNil())
			Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())

			var dimErr *dynamo.DimensionError
			Expect(errors.As(err, &dimErr)).To(BeTrue())
			Expect(dimErr.Input).To(Equal("drift"))
			Expect(dimErr.Step).To(Equal(1))
		})
	})

	Context("with a canceled context", func() {
		It("stops at a step boundary", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			traj, err := New().Run(ctx, problem)
			Expect(traj).To(BeNil())
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Context("with the concurrent backend", func() {
		It("matches the serial backend bit-for-bit", func() {
			serial, err := New(WithBackend(compute.NewSerial())).Run(context.Background(), problem)
			Expect(err).NotTo(HaveOccurred())
			concurrent, err := New(WithBackend(compute.NewConcurrent())).Run(context.Background(), problem)
			Expect(err).NotTo(HaveOccurred())
			Expect(serial.Equal(concurrent)).To(BeTrue())
		})
	})

	It("uses an explicit seed when given one", func() {
		a, err := New().Run(context.Background(), problem)
		Expect(err).NotTo(HaveOccurred())

		problem.Seed = 99
		b, err := New().Run(context.Background(), problem)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Equal(b)).To(BeFalse())
	})

	It("treats seed zero as a stream of its own", func() {
		problem.Seed = 0
		zero, err := New().Run(context.Background(), problem)
		Expect(err).NotTo(HaveOccurred())

		problem.Seed = 1
		one, err := New().Run(context.Background(), problem)
		Expect(err).NotTo(HaveOccurred())
		Expect(zero.Equal(one)).To(BeFalse())
	})

	It("clears metrics when a run fails", func() {
		metric := &sumMetric{}
		s := New(WithMetric(metric))
		_, err := s.Run(context.Background(), problem)
		Expect(err).NotTo(HaveOccurred())
		Expect(metric.n).NotTo(BeZero())

		calls := 0
		problem.Drift = dynamo.FieldFunc(func(x dynamo.State) (dynamo.State, error) {
			calls++
			if calls == 4 {
				return nil, errors.New("boom")
			}
			return dynamo.State{0}, nil
		})
		_, err = s.Run(context.Background(), problem)
		Expect(err).To(HaveOccurred())
		Expect(metric.n).To(BeZero())
		Expect(s.Metrics()).To(HaveKeyWithValue("sum", 0.0))
	})

	It("notifies observers and metrics on every row", func() {
		rec := &recorder{}
		metric := &sumMetric{}
		s := New(WithObserver(rec), WithMetric(metric))

		traj, err := s.Run(context.Background(), problem)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.steps).To(HaveLen(traj.Steps()))
		Expect(rec.steps[0]).To(Equal(0))
		Expect(metric.n).To(Equal(traj.Steps()))
		Expect(s.Metrics()).To(HaveKey("sum"))
	})

	It("logs run boundaries at debug level", func() {
		core, logs := observer.New(zap.DebugLevel)
		_, err := New(WithLogger(zap.New(core))).Run(context.Background(), problem)
		Expect(err).NotTo(HaveOccurred())
		started := logs.FilterMessage("run started").All()
		Expect(started).To(HaveLen(1))
		Expect(started[0].ContextMap()).To(HaveKeyWithValue("noise_std", math.Sqrt(problem.Dt)))
		Expect(logs.FilterMessage("run completed").Len()).To(Equal(1))
	})
})

var _ = Describe("Ensemble", func() {
	problem := Problem{
		Drift:     meanReversion(1),
		Diffusion: dynamo.Constant(0.5),
		Horizon:   1,
		Dt:        0.05,
		X0:        dynamo.State{0, 0, 0},
	}

	It("runs each replication with its own seed", func() {
		results, err := NewEnsemble(4, 10).WithWorkers(2).Run(context.Background(), problem)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
		Expect(results[0].Equal(results[1])).To(BeFalse())

		single := problem
		single.Reproducible = true
		single.Seed = 12
		want, err := New().Run(context.Background(), single)
		Expect(err).NotTo(HaveOccurred())
		Expect(results[2].Equal(want)).To(BeTrue())
	})

	It("is reproducible across backends", func() {
		a, err := NewEnsemble(3, 1).Run(context.Background(), problem)
		Expect(err).NotTo(HaveOccurred())
		b, err := NewEnsemble(3, 1).
			WithBackend(func() compute.Backend { return compute.NewConcurrent() }).
			Run(context.Background(), problem)
		Expect(err).NotTo(HaveOccurred())
		for i := range a {
			Expect(a[i].Equal(b[i])).To(BeTrue())
		}
	})

	It("rejects a non-positive replication count", func() {
		_, err := NewEnsemble(0, 1).Run(context.Background(), problem)
		Expect(errors.Is(err, dynamo.ErrInvalidParameter)).To(BeTrue())
	})

	It("propagates a failing replication", func() {
		bad := problem
		bad.X0 = nil
		_, err := NewEnsemble(2, 1).Run(context.Background(), bad)
		Expect(errors.Is(err, dynamo.ErrInvalidParameter)).To(BeTrue())
	})
})
