package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/decayfit/internal/experiment"
	"github.com/san-kum/decayfit/internal/fit"
	"github.com/san-kum/decayfit/internal/mcmc"
)

const (
	DefaultXMin      = 1.0
	DefaultXMax      = 10.0
	DefaultPoints    = 250
	DefaultNoise     = 0.1
	DefaultWalkers   = 100
	DefaultSteps     = 1000
	DefaultBurn      = 300
	DefaultThin      = 20
	DefaultMinCorrel = 0.5
)

type Config struct {
	Model      string        `yaml:"model"`
	Seed       uint64        `yaml:"seed"`
	Data       DataConfig    `yaml:"data"`
	Params     []ParamConfig `yaml:"params"`
	NoiseParam ParamConfig   `yaml:"noise_param"`
	Fit        FitConfig     `yaml:"fit"`
	Sampler    SamplerConfig `yaml:"sampler"`
	Report     ReportConfig  `yaml:"report"`
}

type DataConfig struct {
	XMin   float64            `yaml:"x_min"`
	XMax   float64            `yaml:"x_max"`
	Points int                `yaml:"points"`
	Noise  float64            `yaml:"noise"`
	Truth  map[string]float64 `yaml:"truth"`
}

// ParamConfig is one parameter. A nil bound is unbounded; a nil Vary means
// the parameter varies.
type ParamConfig struct {
	Name  string   `yaml:"name"`
	Value float64  `yaml:"value"`
	Min   *float64 `yaml:"min,omitempty"`
	Max   *float64 `yaml:"max,omitempty"`
	Vary  *bool    `yaml:"vary,omitempty"`
}

type FitConfig struct {
	MaxFev    int    `yaml:"max_fev"`
	NanPolicy string `yaml:"nan_policy"`
	Restarts  int    `yaml:"restarts"`
}

type SamplerConfig struct {
	Walkers     int     `yaml:"walkers"`
	Steps       int     `yaml:"steps"`
	Burn        int     `yaml:"burn"`
	Thin        int     `yaml:"thin"`
	Stretch     float64 `yaml:"stretch"`
	Workers     int     `yaml:"workers"`
	WalkerScale float64 `yaml:"walker_scale"`
}

type ReportConfig struct {
	MinCorrel float64 `yaml:"min_correl"`
}

func ptr[T any](v T) *T { return &v }

func DefaultConfig() *Config {
	return &Config{
		Model: "double_exp",
		Data: DataConfig{
			XMin:   DefaultXMin,
			XMax:   DefaultXMax,
			Points: DefaultPoints,
			Noise:  DefaultNoise,
			Truth:  map[string]float64{"a1": 3, "a2": -5, "t1": 2, "t2": 10},
		},
		Params: []ParamConfig{
			{Name: "a1", Value: 4},
			{Name: "a2", Value: 4},
			{Name: "t1", Value: 3},
			{Name: "t2", Value: 3},
		},
		NoiseParam: ParamConfig{Name: "noise", Value: 0.1, Min: ptr(0.001), Max: ptr(2.0)},
		Fit: FitConfig{
			NanPolicy: string(fit.NanOmit),
			Restarts:  3,
		},
		Sampler: SamplerConfig{
			Walkers:     DefaultWalkers,
			Steps:       DefaultSteps,
			Burn:        DefaultBurn,
			Thin:        DefaultThin,
			Stretch:     2,
			WalkerScale: 1e-4,
		},
		Report: ReportConfig{MinCorrel: DefaultMinCorrel},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (p ParamConfig) spec() experiment.ParamSpec {
	s := experiment.Free(p.Name, p.Value)
	if p.Min != nil {
		s.Min = *p.Min
	}
	if p.Max != nil {
		s.Max = *p.Max
	}
	if p.Vary != nil {
		s.Vary = *p.Vary
	}
	return s
}

// Experiment converts the file representation into an experiment config.
func (c *Config) Experiment() (experiment.Config, error) {
	policy, err := fit.ParseNanPolicy(c.Fit.NanPolicy)
	if err != nil {
		return experiment.Config{}, err
	}
	if c.Data.Points < 2 {
		return experiment.Config{}, fmt.Errorf("data: need at least 2 points, got %d", c.Data.Points)
	}
	if !(c.Data.XMax > c.Data.XMin) {
		return experiment.Config{}, fmt.Errorf("data: empty x range [%g, %g]", c.Data.XMin, c.Data.XMax)
	}
	if c.Data.Noise < 0 || math.IsNaN(c.Data.Noise) {
		return experiment.Config{}, fmt.Errorf("data: invalid noise %g", c.Data.Noise)
	}

	specs := make([]experiment.ParamSpec, len(c.Params))
	for i, p := range c.Params {
		specs[i] = p.spec()
	}

	fitOpts := fit.DefaultOptions()
	fitOpts.MaxFev = c.Fit.MaxFev
	fitOpts.NanPolicy = policy
	if c.Fit.Restarts > 0 {
		fitOpts.Restarts = c.Fit.Restarts
	}

	samp := mcmc.DefaultOptions()
	samp.Walkers = c.Sampler.Walkers
	samp.Steps = c.Sampler.Steps
	samp.Burn = c.Sampler.Burn
	samp.Thin = c.Sampler.Thin
	if c.Sampler.Stretch > 1 {
		samp.Stretch = c.Sampler.Stretch
	}
	if c.Sampler.Workers > 0 {
		samp.Workers = c.Sampler.Workers
	}

	truth := make(map[string]float64, len(c.Data.Truth))
	for k, v := range c.Data.Truth {
		truth[k] = v
	}

	return experiment.Config{
		Model:       c.Model,
		XMin:        c.Data.XMin,
		XMax:        c.Data.XMax,
		Points:      c.Data.Points,
		Noise:       c.Data.Noise,
		Truth:       truth,
		Seed:        c.Seed,
		Params:      specs,
		NoiseParam:  c.NoiseParam.spec(),
		Fit:         fitOpts,
		Sampler:     samp,
		WalkerScale: c.Sampler.WalkerScale,
	}, nil
}

// SetParam replaces the starting value of a named parameter.
func (c *Config) SetParam(name string, value float64) error {
	for i := range c.Params {
		if c.Params[i].Name == name {
			c.Params[i].Value = value
			return nil
		}
	}
	return fmt.Errorf("no parameter %q in config", name)
}
