package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Delay distribution constants. Means and coefficients of variation are
// discretised to 1/100 steps; beyond MaxDelayDay the tail mass is
// treated as DelayFloor so logs stay finite.
const (
	DelayFloor   = 1e-200
	MaxMeanIndex = 2000
	MaxCVIndex   = 100
	MaxDelayDay  = 100
)

// DelayDist supplies the discretised gamma delay distribution: the
// probability mass on day x and the tail mass past day x, for a given
// mean and coefficient of variation. Implementations are chosen once at
// startup (lookup table vs direct computation) and must be safe for
// concurrent read-only use.
type DelayDist interface {
	Density(day int, mean, cv float64) (float64, error)
	Tail(day int, mean, cv float64) (float64, error)
}

// DelayTable is the lookup-accelerated DelayDist, backed by two
// precomputed 3-D tables indexed by (floor(mean*100), floor(cv*100), day).
type DelayTable struct {
	density [][][]float64
	tail    [][][]float64
}

// NewDelayTable wraps prebuilt density and tail tables, checking that
// every dimension covers the full valid index domain so lookups can
// never step outside a user-supplied table.
func NewDelayTable(density, tail [][][]float64) (*DelayTable, error) {
	tables := []struct {
		name string
		tab  [][][]float64
	}{
		{"density", density},
		{"tail", tail},
	}
	for _, tt := range tables {
		name, tab := tt.name, tt.tab
		if len(tab) <= MaxMeanIndex {
			return nil, errors.Errorf(
				"Delay %s table must cover mean indices 0..%d: got %d",
				name, MaxMeanIndex, len(tab),
			)
		}
		for mi, byCV := range tab[:MaxMeanIndex+1] {
			if len(byCV) <= MaxCVIndex {
				return nil, errors.Errorf(
					"Delay %s table at mean index %d must cover cv indices 0..%d: got %d",
					name, mi, MaxCVIndex, len(byCV),
				)
			}
			for ci, byDay := range byCV[:MaxCVIndex+1] {
				if len(byDay) <= MaxDelayDay {
					return nil, errors.Errorf(
						"Delay %s table at mean index %d, cv index %d must cover days 0..%d: got %d",
						name, mi, ci, MaxDelayDay, len(byDay),
					)
				}
			}
		}
	}
	return &DelayTable{density: density, tail: tail}, nil
}

func delayIndices(day int, mean, cv float64) (int, int, error) {
	mi := int(math.Floor(mean * 100))
	ci := int(math.Floor(cv * 100))
	if mi < 0 || mi > MaxMeanIndex || ci < 0 || ci > MaxCVIndex || day < 0 {
		return 0, 0, errors.Errorf(
			"Delay lookup outside valid range: day=%d mean=%v cv=%v (indices %d, %d)",
			day, mean, cv, mi, ci,
		)
	}
	return mi, ci, nil
}

// Density returns the delay probability mass on the given day.
func (t *DelayTable) Density(day int, mean, cv float64) (float64, error) {
	mi, ci, err := delayIndices(day, mean, cv)
	if err != nil {
		return 0, err
	}
	if day > MaxDelayDay {
		return DelayFloor, nil
	}
	return t.density[mi][ci][day], nil
}

// Tail returns the delay probability mass past the given day.
func (t *DelayTable) Tail(day int, mean, cv float64) (float64, error) {
	mi, ci, err := delayIndices(day, mean, cv)
	if err != nil {
		return 0, err
	}
	if day > MaxDelayDay {
		return DelayFloor, nil
	}
	return t.tail[mi][ci][day], nil
}

// DirectGamma computes delay masses straight from the gamma CDF with
// shape 1/cv^2 and scale mean*cv^2. Slower than the table but exact;
// useful for table-free runs and for cross-checking the tables.
type DirectGamma struct{}

// Density returns P(day <= X < day+1) under the gamma delay. A zero
// mean or coefficient of variation is degenerate and collapses to a
// point mass at the mean.
func (DirectGamma) Density(day int, mean, cv float64) (float64, error) {
	if _, _, err := delayIndices(day, mean, cv); err != nil {
		return 0, err
	}
	if mean == 0 || cv == 0 {
		if day == int(math.Floor(mean)) {
			return 1.0, nil
		}
		return DelayFloor, nil
	}
	g := distuv.Gamma{Alpha: 1 / (cv * cv), Beta: 1 / (mean * cv * cv)}
	ret := g.CDF(float64(day+1)) - g.CDF(float64(day))
	if ret < DelayFloor || math.IsNaN(ret) {
		ret = DelayFloor
	}
	return ret, nil
}

// Tail returns P(X >= day+1) under the gamma delay.
func (DirectGamma) Tail(day int, mean, cv float64) (float64, error) {
	if _, _, err := delayIndices(day, mean, cv); err != nil {
		return 0, err
	}
	if mean == 0 || cv == 0 {
		if float64(day+1) <= mean {
			return 1.0, nil
		}
		return DelayFloor, nil
	}
	g := distuv.Gamma{Alpha: 1 / (cv * cv), Beta: 1 / (mean * cv * cv)}
	ret := 1 - g.CDF(float64(day+1))
	if ret < DelayFloor || math.IsNaN(ret) {
		ret = DelayFloor
	}
	return ret, nil
}

// BuildDelayTables fills lookup tables over the full valid index domain
// from the direct gamma computation. A zero coefficient of variation is
// degenerate (point mass at the mean) and is tabulated as such.
func BuildDelayTables() (*DelayTable, error) {
	direct := DirectGamma{}

	density := make([][][]float64, MaxMeanIndex+1)
	tail := make([][][]float64, MaxMeanIndex+1)
	for mi := 0; mi <= MaxMeanIndex; mi++ {
		density[mi] = make([][]float64, MaxCVIndex+1)
		tail[mi] = make([][]float64, MaxCVIndex+1)
		mean := float64(mi) / 100
		for ci := 0; ci <= MaxCVIndex; ci++ {
			density[mi][ci] = make([]float64, MaxDelayDay+1)
			tail[mi][ci] = make([]float64, MaxDelayDay+1)
			cv := float64(ci) / 100
			for day := 0; day <= MaxDelayDay; day++ {
				d, err := direct.Density(day, mean, cv)
				if err != nil {
					return nil, errors.Wrap(err, "Could not build density table")
				}
				t, err := direct.Tail(day, mean, cv)
				if err != nil {
					return nil, errors.Wrap(err, "Could not build tail table")
				}
				density[mi][ci][day] = d
				tail[mi][ci][day] = t
			}
		}
	}

	return NewDelayTable(density, tail)
}
