package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/san-kum/decayfit/internal/config"
	"github.com/san-kum/decayfit/internal/experiment"
	"github.com/san-kum/decayfit/internal/export"
	"github.com/san-kum/decayfit/internal/logging"
	"github.com/san-kum/decayfit/internal/mcmc"
	"github.com/san-kum/decayfit/internal/model"
	"github.com/san-kum/decayfit/internal/optim"
	"github.com/san-kum/decayfit/internal/params"
	"github.com/san-kum/decayfit/internal/posterior"
	"github.com/san-kum/decayfit/internal/report"
	"github.com/san-kum/decayfit/internal/storage"
	"github.com/san-kum/decayfit/internal/viz"
)

var (
	dataDir   string
	logLevel  string
	logFormat string
	logFile   string

	configFile string
	preset     string
	modelName  string
	seed       uint64
	noise      float64
	points     int
	walkers    int
	steps      int
	burn       int
	thin       int
	workers    int
	nanPolicy  string
	maxFev     int

	live      bool
	noSave    bool
	noPlot    bool
	minCorrel float64
	svgDir    string
	grid      []string
	starts    []string

	runs      int
	seedStart uint64
	parallel  int

	paramName  string
	maxWalkers int
	noTruths   bool
	twoSigma   bool
	outPath    string
	width      int
	height     int
)

// main registers the decayfit commands and exits with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "decayfit",
		Short:         "bayesian parameter estimation for exponential decays",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logging.Setup(logging.Config{Level: logLevel, Format: logFormat, File: logFile})
			return err
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".decayfit", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append logs to this file instead of stderr")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "generate data, fit it and sample the posterior",
		Args:  cobra.NoArgs,
		RunE:  runExperiment,
	}
	addExperimentFlags(runCmd)
	runCmd.Flags().IntVar(&walkers, "walkers", config.DefaultWalkers, "number of walkers")
	runCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "total sampler steps")
	runCmd.Flags().IntVar(&burn, "burn", config.DefaultBurn, "steps discarded as burn-in")
	runCmd.Flags().IntVar(&thin, "thin", config.DefaultThin, "keep every n-th step after burn-in")
	runCmd.Flags().IntVar(&workers, "workers", 0, "concurrent log-probability evaluations (0: all CPUs)")
	runCmd.Flags().BoolVar(&live, "live", false, "show sampling progress (terminals only)")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&noPlot, "no-plot", false, "skip the terminal plots")
	runCmd.Flags().Float64Var(&minCorrel, "min-correl", report.DefaultMinCorrel, "smallest correlation to report")
	runCmd.Flags().StringVar(&svgDir, "svg", "", "write fit.svg and corner.svg to this directory")

	fitCmd := &cobra.Command{
		Use:   "fit",
		Short: "generate data and run only the point-estimate fit",
		Args:  cobra.NoArgs,
		RunE:  runFit,
	}
	addExperimentFlags(fitCmd)
	fitCmd.Flags().StringArrayVar(&grid, "grid", nil, "try starting values name=v1,v2,... and keep the best fit (repeatable)")
	fitCmd.Flags().BoolVar(&noPlot, "no-plot", false, "skip the terminal plot")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "repeat the run over consecutive seeds and report interval coverage",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addExperimentFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&walkers, "walkers", config.DefaultWalkers, "number of walkers")
	sweepCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "total sampler steps")
	sweepCmd.Flags().IntVar(&burn, "burn", config.DefaultBurn, "steps discarded as burn-in")
	sweepCmd.Flags().IntVar(&thin, "thin", config.DefaultThin, "keep every n-th step after burn-in")
	sweepCmd.Flags().IntVar(&runs, "runs", 8, "number of runs")
	sweepCmd.Flags().Uint64Var(&seedStart, "seed-start", 1, "seed of the first run")
	sweepCmd.Flags().IntVar(&parallel, "parallel", 2, "runs in flight at once")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print the stored summary of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().Float64Var(&minCorrel, "min-correl", report.DefaultMinCorrel, "smallest correlation to report")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot data with the fitted and posterior curves",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	addPlotFlags(plotCmd)
	plotCmd.Flags().StringVar(&outPath, "svg", "", "also write an SVG to this path")

	traceCmd := &cobra.Command{
		Use:   "trace [run_id]",
		Short: "plot walker traces of one parameter",
		Args:  cobra.ExactArgs(1),
		RunE:  traceRun,
	}
	addPlotFlags(traceCmd)
	traceCmd.Flags().StringVar(&paramName, "param", "", "parameter name (default: all)")
	traceCmd.Flags().IntVar(&maxWalkers, "walkers", 8, "number of walkers to draw")

	cornerCmd := &cobra.Command{
		Use:   "corner [run_id]",
		Short: "corner plot of the posterior samples",
		Args:  cobra.ExactArgs(1),
		RunE:  cornerRun,
	}
	cornerCmd.Flags().BoolVar(&noTruths, "no-truths", false, "do not mark the generating values")
	cornerCmd.Flags().BoolVar(&twoSigma, "two-sigma", false, "mark 2-sigma instead of 1-sigma quantiles")
	cornerCmd.Flags().StringVar(&outPath, "svg", "", "also write an SVG to this path")
	cornerCmd.Flags().IntVar(&width, "width", 14, "panel width in cells")
	cornerCmd.Flags().IntVar(&height, "height", 5, "panel height in cells")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export the chain to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models := experiment.NewRegistry().ListModels()
			if len(args) == 1 {
				models = args[:1]
			}
			for _, m := range models {
				presets := config.ListPresets(m)
				if len(presets) == 0 {
					fmt.Printf("no presets for model: %s\n", m)
					continue
				}
				fmt.Printf("presets for %s:\n", m)
				for _, p := range presets {
					fmt.Printf("  %s\n", p)
				}
			}
			return nil
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list available models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := experiment.NewRegistry()
			for _, name := range registry.ListModels() {
				m, _ := registry.GetModel(name)
				fmt.Printf("%-12s %s\n", name, strings.Join(m.ParamNames(), ", "))
			}
			return nil
		},
	}

	initConfigCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a config file with default or preset values",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	}
	initConfigCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")
	initConfigCmd.Flags().StringVar(&modelName, "model", "double_exp", "model of the preset")

	rootCmd.AddCommand(runCmd, fitCmd, sweepCmd, listCmd, showCmd, plotCmd, traceCmd, cornerCmd,
		exportCSVCmd, exportJSONCmd, presetsCmd, modelsCmd, initConfigCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addExperimentFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&modelName, "model", "double_exp", "model")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0: time based, not reproducible)")
	cmd.Flags().Float64Var(&noise, "noise", config.DefaultNoise, "standard deviation of the synthetic noise")
	cmd.Flags().IntVar(&points, "points", config.DefaultPoints, "number of x points")
	cmd.Flags().StringVar(&nanPolicy, "nan-policy", "omit", "non-finite residuals: omit, propagate or raise")
	cmd.Flags().IntVar(&maxFev, "max-fev", 0, "fit evaluation budget (0: 2000*(nvarys+1))")
	cmd.Flags().StringArrayVar(&starts, "start", nil, "starting value name=v for the fit (repeatable)")
}

func addPlotFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&width, "width", 80, "plot width")
	cmd.Flags().IntVar(&height, "height", 15, "plot height")
}

// loadConfig layers defaults, preset, config file and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	flags := cmd.Flags()

	if preset != "" {
		p := config.GetPreset(modelName, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(modelName))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if flags.Changed("model") && cfg.Model != modelName {
		if p := config.ListPresets(modelName); len(p) > 0 && preset == "" && configFile == "" {
			cfg = config.GetPreset(modelName, p[0])
		}
		cfg.Model = modelName
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("noise") {
		cfg.Data.Noise = noise
		np := cfg.NoiseParam
		if (np.Min == nil || noise >= *np.Min) && (np.Max == nil || noise <= *np.Max) {
			cfg.NoiseParam.Value = noise
		}
	}
	for _, s := range starts {
		name, v, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid start %q, want name=value", s)
		}
		value, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("start %s: %w", name, err)
		}
		if err := cfg.SetParam(name, value); err != nil {
			return nil, err
		}
	}
	if flags.Changed("points") {
		cfg.Data.Points = points
	}
	if flags.Changed("nan-policy") {
		cfg.Fit.NanPolicy = nanPolicy
	}
	if flags.Changed("max-fev") {
		cfg.Fit.MaxFev = maxFev
	}
	if flags.Lookup("walkers") != nil && flags.Changed("walkers") {
		cfg.Sampler.Walkers = walkers
	}
	if flags.Lookup("steps") != nil && flags.Changed("steps") {
		cfg.Sampler.Steps = steps
	}
	if flags.Lookup("burn") != nil && flags.Changed("burn") {
		cfg.Sampler.Burn = burn
	}
	if flags.Lookup("thin") != nil && flags.Changed("thin") {
		cfg.Sampler.Thin = thin
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		cfg.Sampler.Workers = workers
	}
	if flags.Lookup("min-correl") != nil && flags.Changed("min-correl") {
		cfg.Report.MinCorrel = minCorrel
	}
	return cfg, nil
}

func newExperiment(cfg experiment.Config) (*experiment.Experiment, error) {
	m, err := experiment.NewRegistry().GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	exp := experiment.New(cfg, logging.L())
	if err := exp.Setup(m); err != nil {
		return nil, err
	}
	return exp, nil
}

func heading(s string) string {
	return viz.HeaderStyle.Render(s)
}

func runExperiment(cmd *cobra.Command, args []string) error {
	fileCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg, err := fileCfg.Experiment()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var exp *experiment.Experiment
	var result *experiment.Result
	start := time.Now()

	if live && isatty.IsTerminal(os.Stdout.Fd()) {
		err = viz.RunWithProgress(ctx, "sampling "+cfg.Model, cfg.Sampler.Steps, func(ctx context.Context, obs mcmc.Observer) error {
			c := cfg
			c.Sampler.Observer = obs
			var err error
			if exp, err = newExperiment(c); err != nil {
				return err
			}
			result, err = exp.Run(ctx)
			return err
		})
	} else {
		if exp, err = newExperiment(cfg); err == nil {
			fmt.Printf("running %s (seed %d)...\n", cfg.Model, exp.Seed())
			result, err = exp.Run(ctx)
		}
	}
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n\n", time.Since(start).Round(time.Millisecond))

	out := os.Stdout
	fmt.Fprintln(out, heading("point estimate"))
	if err := report.Fit(out, result.Fit); err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, heading("posterior"))
	if err := report.Params(out, result.Posterior, fileCfg.Report.MinCorrel); err != nil {
		return err
	}
	if err := report.Posterior(out, result.Summary); err != nil {
		return err
	}
	if err := report.Sampler(out, result.Chain); err != nil {
		return err
	}
	if frac := result.Chain.MeanAcceptance(); frac < 0.1 || frac > 0.9 {
		fmt.Fprintln(out, viz.Warning.Render(fmt.Sprintf("acceptance fraction %.3f is outside [0.1, 0.9]", frac)))
	}

	x := result.Data.X
	best := exp.Model().Eval(result.Fit.Params, x)
	median := exp.Model().Eval(result.Posterior, x)

	if !noPlot {
		fmt.Fprintln(out)
		fmt.Fprintln(out, viz.FitPlot(result.Data.Y, best, median, viz.PlotOptions{Caption: cfg.Model + ": data, fit, posterior median", Color: true}))
		corner, err := viz.NewCorner(result.Chain.Names, result.Chain.Flat(), viz.CornerOptions{Truths: truths(cfg)})
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, corner.String())
	}

	if svgDir != "" {
		if err := writeSVGs(svgDir, cfg, result, best, median); err != nil {
			return err
		}
		fmt.Printf("\nsvg written to %s\n", svgDir)
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}
	fmt.Printf("\nrun id: %s\n", runID)
	return nil
}

// truths returns the generating values, noise included.
func truths(cfg experiment.Config) map[string]float64 {
	out := make(map[string]float64, len(cfg.Truth)+1)
	for k, v := range cfg.Truth {
		out[k] = v
	}
	out[cfg.NoiseParam.Name] = cfg.Noise
	return out
}

func writeSVGs(dir string, cfg experiment.Config, result *experiment.Result, best, median []float64) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	fitSVG := export.SeriesToSVG(result.Data.X, [][]float64{result.Data.Y, best, median}, []string{"data", "fit", "posterior median"}, 800, 500)
	if err := os.WriteFile(filepath.Join(dir, "fit.svg"), []byte(fitSVG), 0644); err != nil {
		return err
	}
	corner, err := viz.NewCorner(result.Chain.Names, result.Chain.Flat(), viz.CornerOptions{PanelWidth: 40, PanelHeight: 15, Truths: truths(cfg)})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "corner.svg"), []byte(export.CornerToSVG(corner, 3)), 0644)
}

// parseGrid reads repeated name=v1,v2,... flags.
func parseGrid(specs []string) (map[string][]float64, error) {
	out := make(map[string][]float64, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid grid %q, want name=v1,v2,...", spec)
		}
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("grid %s: %w", name, err)
			}
			out[name] = append(out[name], v)
		}
	}
	return out, nil
}

func runFit(cmd *cobra.Command, args []string) error {
	fileCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg, err := fileCfg.Experiment()
	if err != nil {
		return err
	}
	exp, err := newExperiment(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	data, err := exp.Generate()
	if err != nil {
		return err
	}
	fmt.Printf("fitting %s (seed %d, %d points)\n\n", cfg.Model, exp.Seed(), data.Len())

	var start map[string]float64
	if len(grid) > 0 {
		values, err := parseGrid(grid)
		if err != nil {
			return err
		}
		search, err := optim.FromMap(values)
		if err != nil {
			return err
		}
		best, chisqr, err := search.Search(ctx, func(ctx context.Context, point map[string]float64) (float64, error) {
			res, err := exp.FitFrom(ctx, data, point)
			if err != nil {
				return 0, err
			}
			return res.Chisqr, nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("best of %d starting points: %v (chi-square %.6g)\n\n", search.Size(), best, chisqr)
		start = best
	}

	res, err := exp.FitFrom(ctx, data, start)
	if err != nil {
		return err
	}
	if err := report.Fit(os.Stdout, res); err != nil {
		return err
	}

	if !noPlot {
		fmt.Println()
		fmt.Println(viz.FitPlot(data.Y, exp.Model().Eval(res.Params, data.X), nil, viz.PlotOptions{Caption: cfg.Model + ": data and fit", Color: true}))
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	fileCfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg, err := fileCfg.Experiment()
	if err != nil {
		return err
	}
	// Each member samples serially; the members run in parallel.
	cfg.Sampler.Workers = 1

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %d %s experiments (seeds %d..%d)...\n", runs, cfg.Model, seedStart, seedStart+uint64(runs)-1)
	start := time.Now()
	results, err := experiment.NewEnsemble(cfg, experiment.NewRegistry(), runs, seedStart, parallel, logging.L()).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n\n", time.Since(start).Round(time.Millisecond))

	t := truths(cfg)
	one := experiment.Coverage(results, t, posterior.Quantile1Sigma)
	two := experiment.Coverage(results, t, posterior.Quantile2Sigma)

	names := make([]string, 0, len(one))
	for name := range one {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARAM\tTRUTH\t1-SIGMA COVERAGE\t2-SIGMA COVERAGE")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%g\t%.2f\t%.2f\n", name, t[name], one[name], two[name])
	}
	return w.Flush()
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
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tSEED\tPOINTS\tWALKERS\tSTEPS\tACCEPT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%.3f\n",
			run.ID,
			run.Model,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Seed,
			run.Points,
			run.Walkers,
			run.Steps,
			mean(run.Acceptance),
		)
	}

	return w.Flush()
}

func mean(v []storage.Number) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	s := 0.0
	for _, n := range v {
		s += float64(n)
	}
	return s / float64(len(v))
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Println(viz.Metric("run", meta.ID))
	fmt.Println(viz.Metric("model", meta.Model))
	fmt.Println(viz.Metric("seed", strconv.FormatUint(meta.Seed, 10)))
	fmt.Println(viz.Metric("schedule", fmt.Sprintf("%d walkers, %d steps, burn %d, thin %d", meta.Walkers, meta.Steps, meta.Burn, meta.Thin)))
	fmt.Println(viz.Metric("fit", fmt.Sprintf("success=%v nfev=%d chi-square=%.6g", meta.Fit.Success, meta.Fit.Nfev, float64(meta.Fit.Chisqr))))
	fmt.Println()

	ps := params.New()
	correl := meta.CorrelMatrix()
	for _, p := range meta.Posterior {
		if err := ps.Add(p.Name, float64(p.Median)); err != nil {
			return err
		}
		q, _ := ps.Get(p.Name)
		q.Stderr = float64(p.Stderr)
	}
	for i, name := range meta.Names {
		p, ok := ps.Get(name)
		if !ok || i >= len(correl) {
			continue
		}
		p.Correl = make(map[string]float64)
		for j, other := range meta.Names {
			if j != i && j < len(correl[i]) {
				p.Correl[other] = correl[i][j]
			}
		}
	}

	fmt.Println(heading("posterior"))
	if err := report.Params(os.Stdout, ps, minCorrel); err != nil {
		return err
	}

	fmt.Printf("[[Maximum Probability]] (lnprob = %.6g)\n", float64(meta.MaxLogProb))
	for _, name := range meta.Names {
		fmt.Printf("    %s: %.7g\n", name, float64(meta.MaxProb[name]))
	}
	return nil
}

// storedParams rebuilds a parameter set for m from stored values.
func storedParams(m model.Model, values map[string]float64) (*params.Parameters, error) {
	ps := params.New()
	for _, name := range m.ParamNames() {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("stored run has no value for %s", name)
		}
		if err := ps.Add(name, v); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	data, err := st.LoadData(runID)
	if err != nil {
		return err
	}
	if data.Len() == 0 {
		return fmt.Errorf("no data to plot")
	}

	m, err := experiment.NewRegistry().GetModel(meta.Model)
	if err != nil {
		return err
	}

	fitValues := make(map[string]float64, len(meta.Fit.Values))
	for k, v := range meta.Fit.Values {
		fitValues[k] = float64(v)
	}
	medians := make(map[string]float64, len(meta.Posterior))
	for _, p := range meta.Posterior {
		medians[p.Name] = float64(p.Median)
	}
	for k, v := range fitValues {
		if _, ok := medians[k]; !ok {
			medians[k] = v
		}
	}

	bestPs, err := storedParams(m, fitValues)
	if err != nil {
		return err
	}
	medPs, err := storedParams(m, medians)
	if err != nil {
		return err
	}
	best := m.Eval(bestPs, data.X)
	median := m.Eval(medPs, data.X)

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("points: %d\n\n", data.Len())
	fmt.Println(viz.FitPlot(data.Y, best, median, viz.PlotOptions{Width: width, Height: height, Caption: "data, fit, posterior median", Color: true}))

	resid := model.Residual(m, bestPs, data)
	fmt.Println()
	fmt.Println(viz.Lines([][]float64{resid}, nil, viz.PlotOptions{Width: width, Height: height / 2, Caption: "fit residuals"}))

	if outPath != "" {
		svg := export.SeriesToSVG(data.X, [][]float64{data.Y, best, median}, []string{"data", "fit", "posterior median"}, 800, 500)
		if err := os.WriteFile(outPath, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("\nsvg written to %s\n", outPath)
	}
	return nil
}

func traceRun(cmd *cobra.Command, args []string) error {
	chain, err := storage.New(dataDir).LoadChain(args[0])
	if err != nil {
		return err
	}

	indices := make([]int, 0, len(chain.Names))
	for d, name := range chain.Names {
		if paramName == "" || paramName == name {
			indices = append(indices, d)
		}
	}
	if len(indices) == 0 {
		return fmt.Errorf("unknown parameter %q (have %v)", paramName, chain.Names)
	}

	for _, d := range indices {
		out, err := viz.TracePlot(chain, d, maxWalkers, viz.PlotOptions{Width: width, Height: height})
		if err != nil {
			return err
		}
		fmt.Println(out)
		fmt.Println()
	}
	fmt.Println(viz.LogProbPlot(chain, viz.PlotOptions{Width: width, Height: height}))
	return nil
}

func cornerRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	chain, err := st.LoadChain(runID)
	if err != nil {
		return err
	}

	opts := viz.CornerOptions{PanelWidth: width, PanelHeight: height}
	if twoSigma {
		opts.Quantiles = posterior.Quantiles2Sigma
	}
	if !noTruths {
		opts.Truths = make(map[string]float64, len(meta.Truth)+1)
		for k, v := range meta.Truth {
			opts.Truths[k] = v
		}
		opts.Truths["noise"] = meta.Noise
	}

	corner, err := viz.NewCorner(chain.Names, chain.Flat(), opts)
	if err != nil {
		return err
	}
	fmt.Println(corner.String())

	if outPath != "" {
		if err := os.WriteFile(outPath, []byte(export.CornerToSVG(corner, 3)), 0644); err != nil {
			return err
		}
		fmt.Printf("\nsvg written to %s\n", outPath)
	}
	return nil
}

// output opens outPath, or stdout when it is empty.
func output() (io.Writer, func() error, error) {
	if outPath == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := storage.New(dataDir).ExportCSV(w, args[0]); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := storage.New(dataDir).ExportJSON(w, args[0]); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := "decayfit.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(modelName, preset)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(modelName))
		}
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
