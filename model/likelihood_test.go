package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// testModelData builds a tiny but complete dataset: one spline node per
// family, two age groups, a handful of observations.
func testModelData() *ModelData {
	d := NumFamilies*1 + NumDurFamilies

	m := &ModelData{
		D:         d,
		TransType: make([]int, d),
		ThetaMin:  make([]float64, d),
		ThetaMax:  make([]float64, d),
		ThetaInit: make([]float64, d),
		SkipParam: make([]bool, d),

		NNode: 1,
		NodeX: []float64{0.5},

		MaxAge: 1,

		PAINumer: []int{1, 2}, PAIDenom: []int{3, 5},
		PADNumer: []int{0, 1}, PADDenom: []int{2, 4},
		PIDNumer: []int{1, 0}, PIDDenom: []int{2, 3},

		MAICount: [][]int{{0, 2, 1}, {1, 0, 0}},
		MADCount: [][]int{{1, 1, 0}, {0, 2, 0}},
		MACCount: [][]int{{0, 0, 1}, {0, 1, 1}},
		MIDCount: [][]int{{2, 0, 0}, {1, 1, 0}},
		MISCount: [][]int{{0, 1, 0}, {0, 0, 2}},
		MSCCount: [][]int{{1, 0, 1}, {2, 0, 0}},
	}

	// Node parameters start at 0 (probability 0.5, duration 10); the
	// six coefficients of variation start at 0.5
	for i := NumFamilies; i < d; i++ {
		m.ThetaInit[i] = 0.5
		m.TransType[i] = TransBoth
		m.ThetaMin[i] = 0.1
		m.ThetaMax[i] = 0.9
	}

	return m
}

func TestEngineLoglikeFinite(t *testing.T) {
	assert := assert.New(t)

	data := testModelData()
	e, err := NewEngine(data, DirectGamma{})
	assert.NoError(err)

	ll, err := e.Loglike(data.ThetaInit)
	assert.NoError(err)
	assert.False(math.IsNaN(ll) || math.IsInf(ll, 0))
	assert.True(ll < 0)

	// Evaluation is a pure function of theta
	e2, err := NewEngine(data, DirectGamma{})
	assert.NoError(err)
	ll2, err := e2.Loglike(data.ThetaInit)
	assert.NoError(err)
	assert.Equal(ll, ll2)
}

func TestEngineLoglikeEmptyDataIsZero(t *testing.T) {
	assert := assert.New(t)

	data := testModelData()
	zero2 := [][]int{{}, {}}
	data.PAINumer = []int{0, 0}
	data.PAIDenom = []int{0, 0}
	data.PADNumer = []int{0, 0}
	data.PADDenom = []int{0, 0}
	data.PIDNumer = []int{0, 0}
	data.PIDDenom = []int{0, 0}
	data.MAICount, data.MADCount, data.MACCount = zero2, zero2, zero2
	data.MIDCount, data.MISCount, data.MSCCount = zero2, zero2, zero2

	e, err := NewEngine(data, DirectGamma{})
	assert.NoError(err)

	ll, err := e.Loglike(data.ThetaInit)
	assert.NoError(err)
	assert.Equal(0.0, ll)
}

func TestEngineLoglikeHandComputed(t *testing.T) {
	assert := assert.New(t)

	data := testModelData()

	// Single age, a single binomial observation and a single delay bucket
	data.MaxAge = 0
	data.PAINumer = []int{1}
	data.PAIDenom = []int{2}
	data.PADNumer, data.PADDenom = []int{0}, []int{0}
	data.PIDNumer, data.PIDDenom = []int{0}, []int{0}
	data.MAICount = [][]int{{0, 3}}
	empty := [][]int{{}}
	data.MADCount, data.MACCount = empty, empty
	data.MIDCount, data.MISCount, data.MSCCount = empty, empty, empty

	e, err := NewEngine(data, DirectGamma{})
	assert.NoError(err)

	ll, err := e.Loglike(data.ThetaInit)
	assert.NoError(err)

	// Node value 0 gives p = 0.5 and mean duration 10
	dens, err := DirectGamma{}.Density(1, 10.0, 0.5)
	assert.NoError(err)
	want := math.Log(2*0.5*0.5) + 3*math.Log(dens)
	assert.InDelta(want, ll, 1e-10)
}

func TestEngineNonFiniteIsFatal(t *testing.T) {
	assert := assert.New(t)

	data := testModelData()
	e, err := NewEngine(data, DirectGamma{})
	assert.NoError(err)

	// A huge node value drives the transition probability to exactly
	// 1.0 in floating point, so an observed failure has log-density
	// -Inf: a region the prior should have excluded
	theta := append([]float64(nil), data.ThetaInit...)
	theta[0] = 1000.0
	_, err = e.Loglike(theta)
	assert.Error(err)

	// A coefficient of variation past the lookup domain is a
	// configuration error
	theta = append([]float64(nil), data.ThetaInit...)
	theta[NumFamilies] = 1.5
	_, err = e.Loglike(theta)
	assert.Error(err)
}

func TestEnginePriorSingleNodeReduction(t *testing.T) {
	assert := assert.New(t)

	data := testModelData()
	e, err := NewEngine(data, DirectGamma{})
	assert.NoError(err)

	// With one node per group the prior is exactly the sum of the
	// standard-logistic log-densities of the nine first nodes
	theta := append([]float64(nil), data.ThetaInit...)
	vals := []float64{-1.5, 0.0, 0.25, 2.0, -0.75, 1.1, 0.4, -2.2, 0.9}
	copy(theta, vals)

	lp, err := e.Logprior(theta)
	assert.NoError(err)

	want := 0.0
	for _, x := range vals {
		want += -x - 2*math.Log(1+math.Exp(-x))
	}
	assert.InDelta(want, lp, 1e-12)
}

func TestEnginePriorSmoothness(t *testing.T) {
	assert := assert.New(t)

	data := testModelData()
	data.NNode = 2
	data.NodeX = []float64{0.0, 1.0}
	data.D = NumFamilies*2 + NumDurFamilies
	data.TransType = make([]int, data.D)
	data.ThetaMin = make([]float64, data.D)
	data.ThetaMax = make([]float64, data.D)
	data.ThetaInit = make([]float64, data.D)
	data.SkipParam = make([]bool, data.D)
	for i := NumFamilies * 2; i < data.D; i++ {
		data.ThetaInit[i] = 0.5
		data.TransType[i] = TransBoth
		data.ThetaMin[i] = 0.1
		data.ThetaMax[i] = 0.9
	}

	e, err := NewEngine(data, DirectGamma{})
	assert.NoError(err)

	// Moving a second node away from its predecessor can only lower
	// the smoothness prior
	theta := append([]float64(nil), data.ThetaInit...)
	base, err := e.Logprior(theta)
	assert.NoError(err)

	theta[1] = 2.0 // second node of the first group
	moved, err := e.Logprior(theta)
	assert.NoError(err)
	assert.True(moved < base)
}
