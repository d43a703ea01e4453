package config

import "sort"

var Presets = map[string]map[string]*Config{
	"double_exp": {
		"tutorial": DefaultConfig(),
		"quick": with(func(c *Config) {
			c.Sampler.Walkers = 32
			c.Sampler.Steps = 300
			c.Sampler.Burn = 100
			c.Sampler.Thin = 10
		}),
		"precise": with(func(c *Config) {
			c.Data.Noise = 0.01
			c.NoiseParam.Value = 0.01
			c.Sampler.Walkers = 200
			c.Sampler.Steps = 3000
			c.Sampler.Burn = 1000
		}),
		"noisy": with(func(c *Config) {
			c.Data.Noise = 0.5
			c.NoiseParam.Value = 0.5
			c.Sampler.Steps = 2000
			c.Sampler.Burn = 500
		}),
	},
	"single_exp": {
		"single": with(func(c *Config) {
			c.Model = "single_exp"
			c.Data.Truth = map[string]float64{"a": 2, "t": 3}
			c.Params = []ParamConfig{
				{Name: "a", Value: 1},
				{Name: "t", Value: 1, Min: ptr(0.01)},
			}
		}),
	},
}

func with(mod func(*Config)) *Config {
	c := DefaultConfig()
	mod(c)
	return c
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) clone() *Config {
	out := *c
	out.Params = append([]ParamConfig(nil), c.Params...)
	out.Data.Truth = make(map[string]float64, len(c.Data.Truth))
	for k, v := range c.Data.Truth {
		out.Data.Truth[k] = v
	}
	return &out
}
