// Package params defines named, optionally bounded model parameters.
//
// A [Parameters] set keeps insertion order, which fixes the layout of the
// free-parameter vectors handed to the optimizer and the sampler:
//
//	ps := params.New()
//	ps.MustAdd("a1", 4)
//	ps.MustAdd("t1", 3, params.WithMin(0))
//	ps.MustAdd("noise", 0.1, params.WithBounds(0.001, 2))
//
// Bounds default to (-Inf, +Inf). A parameter added with [Fixed] keeps its
// value and is excluded from the free vector.
package params
