// Package analysis provides spectral tools for judging sampler output.
//
//   - [Autocorrelation]: normalized autocorrelation of a series, computed
//     with a zero-padded real FFT
//   - [IntegratedTime]: integrated autocorrelation time with automatic
//     windowing, averaged over walkers
//
// # Reading the autocorrelation time
//
// A chain of length N with integrated time tau carries roughly N/tau
// independent samples. Thinning by about tau loses little information:
//
//	tau := analysis.IntegratedTime(walkerSeries, 5)
//	if float64(steps) < 50*tau {
//	    // run longer before trusting the error bars
//	}
package analysis
