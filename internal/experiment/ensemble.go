package experiment

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/decayfit/internal/posterior"
)

// Ensemble repeats an experiment over consecutive seeds.
type Ensemble struct {
	cfg       Config
	registry  *Registry
	numRuns   int
	seedStart uint64
	workers   int
	logger    *slog.Logger
}

func NewEnsemble(cfg Config, registry *Registry, numRuns int, seedStart uint64, workers int, logger *slog.Logger) *Ensemble {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ensemble{cfg: cfg, registry: registry, numRuns: numRuns, seedStart: seedStart, workers: workers, logger: logger}
}

// Run executes every member and returns their results in seed order.
func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, e.numRuns)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			cfg := e.cfg
			cfg.Seed = e.seedStart + uint64(i)

			m, err := e.registry.GetModel(cfg.Model)
			if err != nil {
				return err
			}
			exp := New(cfg, e.logger.With("seed", cfg.Seed))
			if err := exp.Setup(m); err != nil {
				return err
			}
			results[i], err = exp.Run(gctx)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Coverage returns, per parameter with a known true value, the fraction of
// results whose central interval [q, 1-q] contains it.
func Coverage(results []*Result, truth map[string]float64, q float64) map[string]float64 {
	hits := make(map[string]int)
	for _, res := range results {
		for d, name := range res.Chain.Names {
			v, ok := truth[name]
			if !ok {
				continue
			}
			iv := posterior.Percentiles(res.Chain.Param(d), []float64{q, 1 - q})
			n := hits[name]
			if iv[0] <= v && v <= iv[1] {
				n++
			}
			hits[name] = n
		}
	}

	out := make(map[string]float64, len(hits))
	for name, n := range hits {
		out[name] = float64(n) / float64(len(results))
	}
	return out
}
