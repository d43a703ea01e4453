// Package mcmc implements the affine-invariant ensemble sampler of Goodman
// and Weare with the stretch move.
//
// The ensemble is split into two halves; each half is updated with
// proposals built from walkers of the other half. Within a half the
// log-probability evaluations are independent and run concurrently:
//
//	s, _ := mcmc.New(logProb, mcmc.Options{Walkers: 100, Steps: 1000, Burn: 300, Thin: 20, Rand: rng})
//	chain, err := s.Run(ctx, mcmc.Ball(start, lo, hi, 100, 1e-4, rng))
//
// # Determinism
//
// Every random draw is taken serially from Options.Rand before the
// concurrent evaluations start, so two runs with equally seeded sources and
// identical inputs produce identical chains for any worker count. A nil
// Rand uses a randomly seeded source and runs are not reproducible.
package mcmc
