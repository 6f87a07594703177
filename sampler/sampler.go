package sampler

// Run phases reported through the progress side channel.
const (
	PhaseBurnin   = "burnin"
	PhaseSampling = "sampling"
)

// ProgressFunc is an optional side channel for progress reporting. It
// is called after each completed iteration with the running acceptance
// rate of the retained (beta = 1) rung. Correctness never depends on it.
type ProgressFunc func(phase string, done, total int, acceptRate float64)
