package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/san-kum/decayfit/internal/fit"
	"github.com/san-kum/decayfit/internal/mcmc"
	"github.com/san-kum/decayfit/internal/model"
	"github.com/san-kum/decayfit/internal/params"
	"github.com/san-kum/decayfit/internal/posterior"
)

// ParamSpec describes one model parameter. Infinite Min/Max mean unbounded.
type ParamSpec struct {
	Name  string
	Value float64
	Min   float64
	Max   float64
	Vary  bool
}

// Free returns an unbounded, varying parameter.
func Free(name string, value float64) ParamSpec {
	return ParamSpec{Name: name, Value: value, Min: math.Inf(-1), Max: math.Inf(1), Vary: true}
}

type Config struct {
	Model  string
	XMin   float64
	XMax   float64
	Points int

	// Noise is the standard deviation of the synthetic data noise.
	Noise float64
	Truth map[string]float64

	// Seed drives data noise and the sampler. Zero picks a time-based seed.
	Seed uint64

	// Params are the starting guesses for the point-estimate fit.
	Params     []ParamSpec
	NoiseParam ParamSpec

	Fit     fit.Options
	Sampler mcmc.Options

	// WalkerScale is the relative jitter of the initial walker ball.
	WalkerScale float64
}

func DefaultConfig() Config {
	return Config{
		Model:  "double_exp",
		XMin:   1,
		XMax:   10,
		Points: 250,
		Noise:  0.1,
		Truth:  map[string]float64{"a1": 3, "a2": -5, "t1": 2, "t2": 10},
		Params: []ParamSpec{
			Free("a1", 4), Free("a2", 4), Free("t1", 3), Free("t2", 3),
		},
		NoiseParam:  ParamSpec{Name: "noise", Value: 0.1, Min: 0.001, Max: 2, Vary: true},
		Fit:         fit.DefaultOptions(),
		Sampler:     mcmc.DefaultOptions(),
		WalkerScale: 1e-4,
	}
}

type Result struct {
	Data      model.Dataset
	Fit       *fit.Result
	Chain     *mcmc.Chain
	Summary   *posterior.Summary
	Posterior *params.Parameters
	MaxProb   *params.Parameters
	Seed      uint64
}

type Experiment struct {
	cfg    Config
	model  model.Model
	seed   uint64
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Experiment {
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Experiment{cfg: cfg, seed: seed, logger: logger}
}

func (e *Experiment) Setup(m model.Model) error {
	names := make(map[string]bool, len(e.cfg.Params))
	for _, p := range e.cfg.Params {
		names[p.Name] = true
	}
	for _, name := range m.ParamNames() {
		if !names[name] {
			return fmt.Errorf("model %s: no starting value for %q", m.Name(), name)
		}
		if _, ok := e.cfg.Truth[name]; !ok {
			return fmt.Errorf("model %s: no true value for %q", m.Name(), name)
		}
	}
	if e.cfg.NoiseParam.Name == "" {
		return fmt.Errorf("noise parameter has no name")
	}
	e.model = m
	return nil
}

// Seed returns the seed actually in use.
func (e *Experiment) Seed() uint64 {
	return e.seed
}

func (e *Experiment) Model() model.Model {
	return e.model
}

// stream returns an independent generator for one consumer of randomness.
func (e *Experiment) stream(id uint64) *rand.Rand {
	return rand.New(rand.NewPCG(e.seed, id))
}

const (
	streamData uint64 = iota + 1
	streamSampler
)

// Generate evaluates the true model on the x-grid and adds Gaussian noise.
func (e *Experiment) Generate() (model.Dataset, error) {
	if e.model == nil {
		return model.Dataset{}, fmt.Errorf("experiment not setup")
	}
	truth := params.New()
	for _, name := range e.model.ParamNames() {
		if err := truth.Add(name, e.cfg.Truth[name]); err != nil {
			return model.Dataset{}, err
		}
	}
	x := model.Linspace(e.cfg.XMin, e.cfg.XMax, e.cfg.Points)
	return model.Synthesize(e.model, truth, x, e.cfg.Noise, e.stream(streamData)), nil
}

// Initial builds the starting parameter set for the fit.
func (e *Experiment) Initial() (*params.Parameters, error) {
	ps := params.New()
	for _, s := range e.cfg.Params {
		if err := addSpec(ps, s); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

func addSpec(ps *params.Parameters, s ParamSpec) error {
	return ps.Add(s.Name, s.Value, params.WithBounds(s.Min, s.Max), params.Vary(s.Vary))
}

// Fit runs the point-estimate minimization of the residuals against data.
func (e *Experiment) Fit(ctx context.Context, data model.Dataset) (*fit.Result, error) {
	return e.FitFrom(ctx, data, nil)
}

// FitFrom is Fit with some starting values replaced by start.
func (e *Experiment) FitFrom(ctx context.Context, data model.Dataset, start map[string]float64) (*fit.Result, error) {
	if e.model == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	p0, err := e.Initial()
	if err != nil {
		return nil, err
	}
	for name, v := range start {
		if err := p0.Set(name, v); err != nil {
			return nil, err
		}
	}

	opts := e.cfg.Fit
	if opts.Logger == nil {
		opts.Logger = e.logger
	}
	res, err := fit.Minimize(ctx, func(p *params.Parameters) []float64 {
		return model.Residual(e.model, p, data)
	}, p0, opts)
	if err != nil {
		return nil, err
	}

	e.logger.Info("fit finished",
		"model", e.model.Name(), "success", res.Success, "nfev", res.Nfev,
		"chisqr", res.Chisqr, "redchi", res.Redchi)
	return res, nil
}

// Sample runs the ensemble sampler on the posterior, starting every walker
// close to start. The noise parameter is appended to start.
func (e *Experiment) Sample(ctx context.Context, data model.Dataset, start *params.Parameters) (*mcmc.Chain, *params.Parameters, error) {
	if e.model == nil {
		return nil, nil, fmt.Errorf("experiment not setup")
	}
	tmpl := start.Clone()
	if _, ok := tmpl.Get(e.cfg.NoiseParam.Name); !ok {
		if err := addSpec(tmpl, e.cfg.NoiseParam); err != nil {
			return nil, nil, fmt.Errorf("noise parameter: %w", err)
		}
	}

	post := posterior.New(e.model, data, e.cfg.NoiseParam.Name)
	fn := posterior.Bounded(tmpl, post.LogProb)

	opts := e.cfg.Sampler
	opts.Rand = e.stream(streamSampler)
	opts.Names = tmpl.Free()
	if opts.Logger == nil {
		opts.Logger = e.logger
	}
	sampler, err := mcmc.New(fn, opts)
	if err != nil {
		return nil, nil, err
	}

	lo, hi := tmpl.FreeBounds()
	scale := e.cfg.WalkerScale
	if scale <= 0 {
		scale = 1e-4
	}
	p0 := mcmc.Ball(tmpl.FreeValues(), lo, hi, opts.Walkers, scale, opts.Rand)

	chain, err := sampler.Run(ctx, p0)
	if err != nil {
		return nil, nil, err
	}
	e.logger.Info("sampling finished",
		"walkers", opts.Walkers, "steps", opts.Steps, "retained", len(chain.Samples),
		"acceptance", chain.MeanAcceptance())
	return chain, tmpl, nil
}

// Run generates data, fits it and samples the posterior around the fit.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	data, err := e.Generate()
	if err != nil {
		return nil, err
	}

	fitRes, err := e.Fit(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	chain, tmpl, err := e.Sample(ctx, data, fitRes.Params)
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}

	summary, err := posterior.Summarize(chain.Names, chain.Flat(), chain.FlatLogProb())
	if err != nil {
		return nil, err
	}

	maxProb, err := summary.MaxProbParams(tmpl)
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:      data,
		Fit:       fitRes,
		Chain:     chain,
		Summary:   summary,
		Posterior: summary.Apply(tmpl),
		MaxProb:   maxProb,
		Seed:      e.seed,
	}, nil
}
