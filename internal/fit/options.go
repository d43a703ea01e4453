package fit

import (
	"fmt"
	"log/slog"
)

// NanPolicy selects how non-finite residuals are treated.
type NanPolicy string

const (
	NanRaise     NanPolicy = "raise"
	NanPropagate NanPolicy = "propagate"
	NanOmit      NanPolicy = "omit"
)

func ParseNanPolicy(s string) (NanPolicy, error) {
	switch NanPolicy(s) {
	case NanRaise, NanPropagate, NanOmit:
		return NanPolicy(s), nil
	case "":
		return NanOmit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

type Options struct {
	// MaxFev caps objective evaluations. Zero means 2000*(nvarys+1).
	MaxFev int

	NanPolicy NanPolicy

	// FTol is the relative improvement below which restarts stop.
	FTol float64

	// Restarts re-seeds the simplex around the best point this many times.
	Restarts int

	// SimplexScale is the relative size of the initial simplex.
	SimplexScale float64

	Logger *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		NanPolicy:    NanOmit,
		FTol:         1e-10,
		Restarts:     3,
		SimplexScale: 0.05,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.NanPolicy == "" {
		o.NanPolicy = d.NanPolicy
	}
	if o.FTol <= 0 {
		o.FTol = d.FTol
	}
	if o.Restarts < 0 {
		o.Restarts = 0
	}
	if o.SimplexScale <= 0 {
		o.SimplexScale = d.SimplexScale
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
