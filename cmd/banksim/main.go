package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/banksim/internal/compute"
	"github.com/san-kum/banksim/internal/config"
	"github.com/san-kum/banksim/internal/dynamo"
	"github.com/san-kum/banksim/internal/logging"
	"github.com/san-kum/banksim/internal/metrics"
	"github.com/san-kum/banksim/internal/models"
	"github.com/san-kum/banksim/internal/optim"
	"github.com/san-kum/banksim/internal/sim"
	"github.com/san-kum/banksim/internal/storage"
	"github.com/san-kum/banksim/internal/viz"
)

var (
	dataDir  string
	logLevel string
	logger   *zap.Logger

	configFile   string
	preset       string
	banks        int
	dt           float64
	horizon      float64
	alpha        float64
	sigma        float64
	eta          float64
	seed         uint64
	reproducible bool
	backend      string
	edgeProb     float64
	graphSeed    uint64
	replications int

	// plot / render
	paths   int
	outFile string
	noPaths bool

	benchBanks int

	// sweep
	alphaGrid []float64
	sigmaGrid []float64
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "banksim",
		Short:         "interbank lending and systemic risk simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewLogger(logLevel, os.Stderr)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".banksim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "simulate one path of the bank system and store it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addModelFlags(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run paths in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&paths, "paths", 6, "number of bank paths drawn behind the mean")

	renderCmd := &cobra.Command{
		Use:   "render [run_id]",
		Short: "render run paths to an image (png, svg, pdf)",
		Args:  cobra.ExactArgs(1),
		RunE:  renderRun,
	}
	renderCmd.Flags().StringVarP(&outFile, "out", "o", "", "output image (default <run_id>.png)")
	renderCmd.Flags().BoolVar(&noPaths, "mean-only", false, "draw only the cross-sectional mean")

	lossCmd := &cobra.Command{
		Use:   "loss [model]",
		Short: "estimate the distribution of defaults over replications",
		Args:  cobra.MaximumNArgs(1),
		RunE:  lossDistribution,
	}
	addModelFlags(lossCmd)

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "simulate and replay the run in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addModelFlags(liveCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark the evaluation backends",
		RunE:  benchBackends,
	}
	benchCmd.Flags().IntVar(&benchBanks, "banks", 100, "number of banks")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "expected loss fraction over a grid of alpha and sigma",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepParams,
	}
	addModelFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&alphaGrid, "alphas", []float64{0, 1, 5, 10, 50}, "alpha grid")
	sweepCmd.Flags().Float64SliceVar(&sigmaGrid, "sigmas", []float64{0.5, 1, 2}, "sigma grid")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, renderCmd, lossCmd, liveCmd, presetsCmd,
		exportCmd, exportJSONCmd, exportCSVCmd, benchCmd, sweepCmd)
	return rootCmd
}

func addModelFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.IntVar(&banks, "banks", d.Banks, "number of banks")
	f.Float64Var(&dt, "dt", d.Dt, "timestep")
	f.Float64Var(&horizon, "time", d.Horizon, "horizon T")
	f.Float64Var(&alpha, "alpha", d.Alpha, "lending rate")
	f.Float64Var(&sigma, "sigma", d.Sigma, "volatility")
	f.Float64Var(&eta, "eta", d.Eta, "default level")
	f.Uint64Var(&seed, "seed", d.Seed, "noise seed; replications use seed, seed+1, ...")
	f.BoolVar(&reproducible, "reproducible", d.Reproducible, "derive the noise from --seed")
	f.StringVar(&backend, "backend", d.Backend, "evaluation backend ("+strings.Join(compute.Names(), ", ")+")")
	f.Float64Var(&edgeProb, "edge-prob", d.Network.EdgeProb, "Erdős–Rényi edge probability (network)")
	f.Uint64Var(&graphSeed, "graph-seed", d.Network.GraphSeed, "graph seed (network)")
	f.IntVar(&replications, "reps", d.Replications, "replications (loss, sweep)")
}

// resolveConfig layers the configuration: environment defaults, then a
// preset or config file (the file wins), then explicitly set flags.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	model := models.ModeMeanField
	if len(args) > 0 {
		model = args[0]
	}

	var cfg *config.Config
	var err error
	switch {
	case configFile != "":
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if len(args) > 0 {
			cfg.Model = model
		}
	case preset != "":
		cfg = config.GetPreset(model, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
	default:
		cfg, err = config.FromEnv()
		if err != nil {
			return nil, err
		}
		cfg.Model = model
	}

	f := cmd.Flags()
	if f.Changed("banks") {
		cfg.Banks = banks
	}
	if f.Changed("dt") {
		cfg.Dt = dt
	}
	if f.Changed("time") {
		cfg.Horizon = horizon
	}
	if f.Changed("alpha") {
		cfg.Alpha = alpha
		cfg.Alphas = nil
	}
	if f.Changed("sigma") {
		cfg.Sigma = sigma
		cfg.Sigmas = nil
	}
	if f.Changed("eta") {
		cfg.Eta = eta
	}
	if f.Changed("seed") {
		cfg.Seed = seed
	}
	if f.Changed("reproducible") {
		cfg.Reproducible = reproducible
	}
	if f.Changed("backend") {
		cfg.Backend = backend
	}
	if f.Changed("edge-prob") {
		cfg.Network.EdgeProb = edgeProb
	}
	if f.Changed("graph-seed") {
		cfg.Network.GraphSeed = graphSeed
	}
	if f.Changed("reps") {
		cfg.Replications = replications
	}
	return cfg, cfg.Validate()
}

// simulate builds cfg and runs it once with the standard metrics attached.
func simulate(ctx context.Context, cfg *config.Config) (*storage.RunMetadata, *dynamo.Trajectory, error) {
	b, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}

	opts := []sim.Option{sim.WithBackend(cfg.NewBackend()), sim.WithLogger(logger)}
	for _, m := range metrics.Standard(b.Eta) {
		opts = append(opts, sim.WithMetric(m))
	}
	s := sim.New(opts...)

	p, err := b.Problem(cfg.Reproducible, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("simulating",
		zap.String("model", b.Mode()),
		zap.Int("banks", b.N),
		zap.Float64("dt", b.Dt),
		zap.Float64("horizon", b.Horizon),
		zap.String("backend", s.Backend().Name()),
	)
	traj, err := s.Run(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	meta := &storage.RunMetadata{
		Model:        b.Mode(),
		Seed:         cfg.Seed,
		Reproducible: cfg.Reproducible,
		Dt:           traj.Dt,
		Horizon:      b.Horizon,
		Banks:        traj.Particles(),
		Steps:        traj.Steps(),
		Backend:      s.Backend().Name(),
		Params:       b.Params(),
		Metrics:      s.Metrics(),
	}
	return meta, traj, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	start := time.Now()
	meta, traj, err := simulate(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(*meta, traj)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", traj.Steps())
	fmt.Println("\nmetrics:")
	printMap(meta.Metrics)
	return nil
}

func printMap(m map[string]float64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %.6f\n", k, m[k])
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tBANKS\tHORIZON\tDT\tSEED\tDEFAULTS")

	for _, run := range runs {
		seedText := "-"
		if run.Reproducible {
			seedText = fmt.Sprintf("%d", run.Seed)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.4f\t%s\t%.0f\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Banks,
			run.Horizon,
			run.Dt,
			seedText,
			run.Metrics["defaults"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, traj, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	if traj.Steps() == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("samples: %d\n\n", traj.Steps())

	opts := viz.DefaultPlotOptions()
	opts.Paths = paths
	fmt.Println(viz.Plot(traj, opts))
	return nil
}

func renderRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, traj, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}

	out := outFile
	if out == "" {
		out = meta.ID + ".png"
	}

	opts := viz.DefaultRenderOptions()
	opts.Title = fmt.Sprintf("%s, %d banks", meta.Model, meta.Banks)
	opts.Paths = !noPaths
	if err := viz.Render(traj, out, opts); err != nil {
		return err
	}
	logger.Info("rendered", zap.String("run", meta.ID), zap.String("file", out))
	return nil
}

func lossDistribution(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	b, err := cfg.Build()
	if err != nil {
		return err
	}

	start := time.Now()
	losses, err := b.LossDistribution(cmd.Context(), cfg.Replications, cfg.Seed, cfg.NewBackend)
	if err != nil {
		return err
	}
	logger.Info("loss distribution", zap.Int("replications", len(losses)), zap.Duration("elapsed", time.Since(start)))

	sorted := append([]float64(nil), losses...)
	sort.Float64s(sorted)
	mean, std := stat.MeanStdDev(losses, nil)
	anyDefault := 0
	for _, l := range losses {
		if l > 0 {
			anyDefault++
		}
	}

	fmt.Printf("model: %s  banks: %d  replications: %d\n\n", b.Mode(), b.N, len(losses))
	fmt.Println(viz.Histogram(losses, b.N, "defaults per replication"))
	fmt.Println()
	fmt.Printf("  mean defaults:   %.4f (std %.4f)\n", mean, std)
	fmt.Printf("  loss fraction:   %.4f\n", models.LossFraction(losses, b.N))
	fmt.Printf("  P(any default):  %.4f\n", float64(anyDefault)/float64(len(losses)))
	fmt.Printf("  median / q95:    %.0f / %.0f\n",
		stat.Quantile(0.5, stat.Empirical, sorted, nil),
		stat.Quantile(0.95, stat.Empirical, sorted, nil))
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	meta, traj, err := simulate(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	return viz.RunLive(meta.Model, traj, cfg.Eta)
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, traj, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, meta, traj)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	_, traj, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	if traj.Steps() == 0 {
		return fmt.Errorf("no data to export")
	}
	return storage.WriteCSV(os.Stdout, traj)
}

func benchBackends(cmd *cobra.Command, args []string) error {
	horizons := []float64{1.0, 5.0}
	dts := []float64{0.001, 0.01}

	fmt.Printf("benchmarking %d banks\n\n", benchBanks)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tHORIZON\tDT\tSTEPS\tTIME\tSTEPS/SEC")

	for _, name := range compute.Names() {
		for _, h := range horizons {
			for _, step := range dts {
				cfg := config.DefaultConfig()
				cfg.Banks = benchBanks
				cfg.Dt = step
				cfg.Horizon = h
				cfg.Backend = name
				cfg.Seed = 42

				b, err := cfg.Build()
				if err != nil {
					return err
				}
				p, err := b.Problem(true, cfg.Seed)
				if err != nil {
					return err
				}

				start := time.Now()
				traj, err := sim.New(sim.WithBackend(cfg.NewBackend())).Run(cmd.Context(), p)
				if err != nil {
					return err
				}
				elapsed := time.Since(start)

				fmt.Fprintf(w, "%s\t%.1f\t%.4f\t%d\t%v\t%.0f\n",
					name, h, step, traj.Steps(), elapsed, float64(traj.Steps())/elapsed.Seconds())
			}
		}
	}

	return w.Flush()
}

func sweepParams(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	grid, err := optim.NewGridSearch([]string{"alpha", "sigma"}, [][]float64{alphaGrid, sigmaGrid})
	if err != nil {
		return err
	}

	logger.Info("sweeping", zap.Int("points", grid.Size()), zap.Int("replications", cfg.Replications))
	results, best, err := grid.Search(cmd.Context(), func(ctx context.Context, p map[string]float64) (float64, error) {
		point := *cfg
		point.Alpha, point.Alphas = p["alpha"], nil
		point.Sigma, point.Sigmas = p["sigma"], nil
		b, err := point.Build()
		if err != nil {
			return 0, err
		}
		losses, err := b.LossDistribution(ctx, point.Replications, point.Seed, point.NewBackend)
		if err != nil {
			return 0, err
		}
		return models.LossFraction(losses, b.N), nil
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALPHA\tSIGMA\tLOSS FRACTION")
	for i, r := range results {
		mark := ""
		if i == best {
			mark = "  *"
		}
		fmt.Fprintf(w, "%g\t%g\t%.4f%s\n", r.Params["alpha"], r.Params["sigma"], r.Value, mark)
	}
	return w.Flush()
}
