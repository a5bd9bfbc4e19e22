package models

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/banksim/internal/compute"
	"github.com/san-kum/banksim/internal/dynamo"
	"github.com/san-kum/banksim/internal/noise"
	"github.com/san-kum/banksim/internal/sim"
)

const (
	DefaultHorizon = 1.0
	DefaultEta     = -0.7
)

const (
	ModeMeanField = "mean_field"
	ModeNetwork   = "network"
)

type Banks struct {
	N       int
	Dt      float64
	Horizon float64
	Alpha   dynamo.State
	Sigma   dynamo.State
	X0      dynamo.State
	Eta     float64

	adjacency *mat.SymDense
	degree    []float64
	network   bool
}

// New builds a mean-field system of n banks starting at zero reserves.
func New(n int, dt float64, alpha, sigma dynamo.State) (*Banks, error) {
	if n <= 0 {
		return nil, dynamo.InvalidParam("banks", "must be positive, got %d", n)
	}
	if !(dt > 0) {
		return nil, dynamo.InvalidParam("dt", "must be positive, got %g", dt)
	}
	if err := checkCoefficient("alpha", alpha, n); err != nil {
		return nil, err
	}
	if err := checkCoefficient("sigma", sigma, n); err != nil {
		return nil, err
	}
	return &Banks{
		N:       n,
		Dt:      dt,
		Horizon: DefaultHorizon,
		Alpha:   alpha.Clone(),
		Sigma:   sigma.Clone(),
		X0:      make(dynamo.State, n),
		Eta:     DefaultEta,
	}, nil
}

func checkCoefficient(name string, c dynamo.State, n int) error {
	if !c.Broadcasts(n) {
		return &dynamo.DimensionError{Input: name, Want: n, Got: len(c), Step: -1}
	}
	if !c.IsValid() {
		return dynamo.InvalidParam(name, "contains NaN or Inf")
	}
	return nil
}

func (b *Banks) Mode() string {
	if b.network {
		return ModeNetwork
	}
	return ModeMeanField
}

// ErdosRenyi draws an undirected graph where each pair of distinct banks is
// linked with probability p, and every bank is linked to itself. The graph
// has its own random stream keyed on seed.
func (b *Banks) ErdosRenyi(p float64, seed uint64) error {
	if !(p >= 0 && p <= 1) {
		return dynamo.InvalidParam("edge probability", "must be in [0, 1], got %g", p)
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	a := mat.NewSymDense(b.N, nil)
	for i := 0; i < b.N; i++ {
		for j := 0; j < b.N; j++ {
			draw := rng.Float64()
			if j > i && draw < p {
				a.SetSym(i, j, 1)
			}
		}
		a.SetSym(i, i, 1)
	}
	b.setGraph(a)
	return nil
}

// SetAdjacency installs a fixed graph. It must be n x n for the system's n
// banks, and every bank must be linked to itself.
func (b *Banks) SetAdjacency(a mat.Symmetric) error {
	if a.SymmetricDim() != b.N {
		return &dynamo.DimensionError{Input: "adjacency", Want: b.N, Got: a.SymmetricDim(), Step: -1}
	}
	for i := 0; i < b.N; i++ {
		if a.At(i, i) == 0 {
			return dynamo.InvalidParam("adjacency", "bank %d has no self-loop", i)
		}
	}
	g := mat.NewSymDense(b.N, nil)
	g.CopySym(a)
	b.setGraph(g)
	return nil
}

func (b *Banks) setGraph(a *mat.SymDense) {
	b.adjacency = a
	b.degree = make([]float64, b.N)
	for i := range b.degree {
		b.degree[i] = floats.Sum(mat.Row(nil, i, a))
	}
}

// Adjacency returns the installed graph, or nil.
func (b *Banks) Adjacency() *mat.SymDense {
	return b.adjacency
}

// Network switches the drift to the graph-coupled form.
func (b *Banks) Network() error {
	if b.adjacency == nil {
		return dynamo.InvalidParam("adjacency", "network mode requires a graph")
	}
	b.network = true
	return nil
}

func (b *Banks) Drift() dynamo.Field {
	if b.network {
		return dynamo.FieldFunc(b.networkDrift)
	}
	return dynamo.FieldFunc(b.meanReversion)
}

func (b *Banks) Diffusion() dynamo.Field {
	return dynamo.Vector(b.Sigma)
}

func (b *Banks) meanReversion(x dynamo.State) (dynamo.State, error) {
	if len(x) != b.N {
		return nil, &dynamo.DimensionError{Input: "state", Want: b.N, Got: len(x), Step: -1}
	}
	mean := stat.Mean(x, nil)
	out := make(dynamo.State, len(x))
	for i, v := range x {
		out[i] = b.Alpha.At(i) * (mean - v)
	}
	return out, nil
}

func (b *Banks) networkDrift(x dynamo.State) (dynamo.State, error) {
	if len(x) != b.N {
		return nil, &dynamo.DimensionError{Input: "state", Want: b.N, Got: len(x), Step: -1}
	}

	var ax mat.VecDense
	ax.MulVec(b.adjacency, mat.NewVecDense(b.N, x))

	out := make(dynamo.State, b.N)
	for i := range out {
		out[i] = b.Alpha.At(i) / float64(b.N) * (ax.AtVec(i) - x[i]*b.degree[i])
	}
	return out, nil
}

// Params flattens the configuration for run metadata. Vector coefficients
// are reported by their mean.
func (b *Banks) Params() map[string]float64 {
	params := map[string]float64{
		"banks":   float64(b.N),
		"dt":      b.Dt,
		"horizon": b.Horizon,
		"alpha":   stat.Mean(b.Alpha, nil),
		"sigma":   stat.Mean(b.Sigma, nil),
		"eta":     b.Eta,
	}
	if b.adjacency != nil {
		params["edges"] = float64(b.Edges())
	}
	return params
}

// Edges counts links between distinct banks.
func (b *Banks) Edges() int {
	if b.adjacency == nil {
		return 0
	}
	edges := 0
	for i := 0; i < b.N; i++ {
		for j := i + 1; j < b.N; j++ {
			if b.adjacency.At(i, j) != 0 {
				edges++
			}
		}
	}
	return edges
}

// Problem validates the system and packages it for a Runner.
func (b *Banks) Problem(reproducible bool, seed uint64) (sim.Problem, error) {
	if len(b.X0) != b.N {
		return sim.Problem{}, &dynamo.DimensionError{Input: "x0", Want: b.N, Got: len(b.X0), Step: -1}
	}
	if b.adjacency != nil && b.adjacency.SymmetricDim() != len(b.X0) {
		return sim.Problem{}, &dynamo.DimensionError{Input: "adjacency", Want: len(b.X0), Got: b.adjacency.SymmetricDim(), Step: -1}
	}
	return sim.Problem{
		Drift:        b.Drift(),
		Diffusion:    b.Diffusion(),
		Horizon:      b.Horizon,
		Dt:           b.Dt,
		X0:           b.X0.Clone(),
		Reproducible: reproducible,
		Seed:         seed,
	}, nil
}

// Simulate runs the system once with the default reproducible seed.
func (b *Banks) Simulate(ctx context.Context, r sim.Runner) (*dynamo.Trajectory, error) {
	p, err := b.Problem(true, noise.DefaultSeed)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, p)
}

// Defaults counts the banks whose reserve reached Eta at any step.
func (b *Banks) Defaults(traj *dynamo.Trajectory) int {
	count := 0
	for j := 0; j < traj.Particles(); j++ {
		if floats.Min(traj.Column(j)) <= b.Eta {
			count++
		}
	}
	return count
}

// LossDistribution repeats the run reps times with seeds seedStart,
// seedStart+1, ... and returns the number of defaults in each replication.
func (b *Banks) LossDistribution(ctx context.Context, reps int, seedStart uint64, backend func() compute.Backend) ([]float64, error) {
	p, err := b.Problem(true, seedStart)
	if err != nil {
		return nil, err
	}

	ens := sim.NewEnsemble(reps, seedStart)
	if backend != nil {
		ens = ens.WithBackend(backend)
	}
	trajs, err := ens.Run(ctx, p)
	if err != nil {
		return nil, err
	}

	losses := make([]float64, len(trajs))
	for i, traj := range trajs {
		losses[i] = float64(b.Defaults(traj))
	}
	return losses, nil
}

// LossFraction returns the mean fraction of banks that defaulted.
func LossFraction(losses []float64, n int) float64 {
	if len(losses) == 0 || n == 0 {
		return math.NaN()
	}
	return stat.Mean(losses, nil) / float64(n)
}
