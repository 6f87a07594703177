package model

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/interp"
)

// SplineCurve evaluates a natural cubic spline (zero second derivative
// at both ends) through the given knots at every query point, writing
// into out. With a single knot the curve is constant. The result is
// numerically load-bearing for the likelihood, so this must stay a
// standard natural-spline fit.
func SplineCurve(knotX, knotY, queryX, out []float64) error {
	if len(knotX) != len(knotY) {
		return errors.Errorf("Knot arrays disagree: %d x values, %d y values", len(knotX), len(knotY))
	}
	if len(queryX) != len(out) {
		return errors.Errorf("Query/output length mismatch: %d != %d", len(queryX), len(out))
	}
	if len(knotX) < 1 {
		return errors.Errorf("At least one knot required")
	}

	if len(knotX) == 1 {
		for i := range out {
			out[i] = knotY[0]
		}
		return nil
	}

	var nc interp.NaturalCubic
	if err := nc.Fit(knotX, knotY); err != nil {
		return errors.Wrap(err, "Could not fit natural cubic spline")
	}
	for i, x := range queryX {
		out[i] = nc.Predict(x)
	}
	return nil
}
