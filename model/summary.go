package model

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// TraceSummary holds per-parameter posterior summaries for a sampled
// trace (iterations x parameters) plus the log-likelihood range seen.
type TraceSummary struct {
	Mean   []float64
	SD     []float64
	Q025   []float64
	Median []float64
	Q975   []float64

	MinLoglike float64
	MaxLoglike float64
}

// NewTraceSummary computes summaries for every parameter column of the
// theta trace, along with the range of the log-likelihood trace.
func NewTraceSummary(theta [][]float64, loglike []float64) (*TraceSummary, error) {
	if len(theta) < 1 {
		return nil, errors.Errorf("Can not summarize an empty trace")
	}
	if len(loglike) != len(theta) {
		return nil, errors.Errorf(
			"Trace length mismatch: %d theta rows, %d loglike values",
			len(theta), len(loglike),
		)
	}

	d := len(theta[0])
	ts := &TraceSummary{
		Mean:   make([]float64, d),
		SD:     make([]float64, d),
		Q025:   make([]float64, d),
		Median: make([]float64, d),
		Q975:   make([]float64, d),

		MinLoglike: floats.Min(loglike),
		MaxLoglike: floats.Max(loglike),
	}

	col := make(stats.Float64Data, len(theta))
	for j := 0; j < d; j++ {
		for i, row := range theta {
			if len(row) != d {
				return nil, errors.Errorf("Ragged trace: row %d has %d values, want %d", i, len(row), d)
			}
			col[i] = row[j]
		}

		var err error
		if ts.Mean[j], err = stats.Mean(col); err != nil {
			return nil, errors.Wrapf(err, "Could not summarize parameter %d", j)
		}
		if ts.SD[j], err = stats.StandardDeviationSample(col); err != nil {
			return nil, errors.Wrapf(err, "Could not summarize parameter %d", j)
		}
		if ts.Q025[j], err = stats.Percentile(col, 2.5); err != nil {
			return nil, errors.Wrapf(err, "Could not summarize parameter %d", j)
		}
		if ts.Median[j], err = stats.Median(col); err != nil {
			return nil, errors.Wrapf(err, "Could not summarize parameter %d", j)
		}
		if ts.Q975[j], err = stats.Percentile(col, 97.5); err != nil {
			return nil, errors.Wrapf(err, "Could not summarize parameter %d", j)
		}
	}

	return ts, nil
}
