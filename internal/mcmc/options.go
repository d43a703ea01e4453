package mcmc

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
)

// Observer is notified after every ensemble step.
type Observer interface {
	OnStep(step, total int, acceptance float64)
}

type Options struct {
	Walkers int
	Steps   int
	Burn    int
	Thin    int

	// Stretch is the scale a of the proposal g(z) ~ 1/sqrt(z) on [1/a, a].
	Stretch float64

	// Workers bounds concurrent log-probability evaluations.
	Workers int

	// Names labels the parameter axis of the returned chain.
	Names []string

	Rand     *rand.Rand
	Observer Observer
	Logger   *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		Walkers: 100,
		Steps:   1000,
		Burn:    300,
		Thin:    20,
		Stretch: 2,
		Workers: runtime.NumCPU(),
	}
}

func (o Options) withDefaults() Options {
	if o.Thin == 0 {
		o.Thin = 1
	}
	if o.Stretch <= 1 {
		o.Stretch = 2
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) validate(dim int) error {
	if o.Walkers%2 != 0 || o.Walkers < 2*dim || o.Walkers < 2 {
		return fmt.Errorf("%w: %d walkers for %d dimensions", ErrTooFewWalkers, o.Walkers, dim)
	}
	if o.Steps <= 0 || o.Burn < 0 || o.Burn >= o.Steps || o.Thin < 1 {
		return fmt.Errorf("%w: steps=%d burn=%d thin=%d", ErrInvalidSchedule, o.Steps, o.Burn, o.Thin)
	}
	return nil
}

// Retained returns how many steps survive burn-in and thinning.
func (o Options) Retained() int {
	if o.Steps <= o.Burn || o.Thin < 1 {
		return 0
	}
	return (o.Steps - o.Burn + o.Thin - 1) / o.Thin
}
