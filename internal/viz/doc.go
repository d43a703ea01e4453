// Package viz renders fits and sampler output in the terminal.
//
//   - [FitPlot], [TracePlot], [LogProbPlot]: asciigraph line plots
//   - [Corner]: marginal histograms and pairwise scatter panels drawn on
//     braille [Canvas] grids
//   - [ProgressModel]: Bubble Tea view of a running sampler
package viz
