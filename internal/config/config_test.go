package config

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/san-kum/decayfit/internal/fit"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != "double_exp" {
		t.Errorf("expected model double_exp, got %s", cfg.Model)
	}
	if cfg.Data.Points != 250 || cfg.Data.XMin != 1 || cfg.Data.XMax != 10 {
		t.Errorf("unexpected grid %+v", cfg.Data)
	}
	if cfg.Sampler.Burn != 300 || cfg.Sampler.Steps != 1000 || cfg.Sampler.Thin != 20 {
		t.Errorf("unexpected sampler schedule %+v", cfg.Sampler)
	}
	if cfg.Seed != 0 {
		t.Error("default runs should not be seeded")
	}
}

func TestExperiment(t *testing.T) {
	exp, err := DefaultConfig().Experiment()
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	if len(exp.Params) != 4 {
		t.Fatalf("expected 4 params, got %d", len(exp.Params))
	}
	for _, p := range exp.Params {
		if !math.IsInf(p.Min, -1) || !math.IsInf(p.Max, 1) || !p.Vary {
			t.Errorf("%s: expected free unbounded parameter, got %+v", p.Name, p)
		}
	}
	if exp.NoiseParam.Min != 0.001 || exp.NoiseParam.Max != 2 {
		t.Errorf("unexpected noise bounds %+v", exp.NoiseParam)
	}
	if exp.Fit.NanPolicy != fit.NanOmit {
		t.Errorf("expected omit policy, got %s", exp.Fit.NanPolicy)
	}
	if exp.Sampler.Walkers != 100 || exp.Sampler.Workers <= 0 {
		t.Errorf("unexpected sampler options %+v", exp.Sampler)
	}
}

func TestExperiment_Invalid(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"policy", func(c *Config) { c.Fit.NanPolicy = "ignore" }},
		{"points", func(c *Config) { c.Data.Points = 1 }},
		{"range", func(c *Config) { c.Data.XMax = c.Data.XMin }},
		{"noise", func(c *Config) { c.Data.Noise = -1 }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mod(cfg)
		if _, err := cfg.Experiment(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}

	cfg := DefaultConfig()
	cfg.Fit.NanPolicy = "ignore"
	if _, err := cfg.Experiment(); !errors.Is(err, fit.ErrUnknownPolicy) {
		t.Errorf("expected ErrUnknownPolicy, got %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decayfit.yaml")

	cfg := DefaultConfig()
	cfg.Seed = 99
	fixed := false
	cfg.Params[3].Vary = &fixed
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Seed != 99 {
		t.Errorf("expected seed 99, got %d", loaded.Seed)
	}
	if loaded.Params[3].Vary == nil || *loaded.Params[3].Vary {
		t.Error("expected t2 to stay fixed")
	}
	if loaded.Params[0].Min != nil {
		t.Error("expected a1 to stay unbounded")
	}
	if *loaded.NoiseParam.Max != 2 {
		t.Errorf("expected noise max 2, got %g", *loaded.NoiseParam.Max)
	}
	if loaded.Data.Truth["a2"] != -5 {
		t.Errorf("expected truth a2 -5, got %g", loaded.Data.Truth["a2"])
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("double_exp", "quick")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Sampler.Walkers != 32 {
		t.Errorf("expected 32 walkers, got %d", cfg.Sampler.Walkers)
	}

	cfg.Params[0].Value = 100
	if GetPreset("double_exp", "quick").Params[0].Value == 100 {
		t.Error("preset was modified through a returned copy")
	}

	single := GetPreset("single_exp", "single")
	if single == nil || single.Model != "single_exp" {
		t.Fatal("expected single_exp preset")
	}
	if _, err := single.Experiment(); err != nil {
		t.Errorf("single preset does not convert: %v", err)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if GetPreset("double_exp", "nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if GetPreset("nonexistent", "quick") != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("double_exp")
	want := []string{"noisy", "precise", "quick", "tutorial"}
	if len(presets) != len(want) {
		t.Fatalf("expected %v, got %v", want, presets)
	}
	for i := range want {
		if presets[i] != want[i] {
			t.Errorf("expected %v, got %v", want, presets)
		}
	}

	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestSetParam(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.SetParam("t1", 5); err != nil {
		t.Fatal(err)
	}
	if cfg.Params[2].Value != 5 {
		t.Errorf("expected t1 = 5, got %g", cfg.Params[2].Value)
	}
	if err := cfg.SetParam("zz", 1); err == nil {
		t.Error("expected error for unknown parameter")
	}
}
