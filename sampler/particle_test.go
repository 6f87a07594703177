package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/epifit/hospfit/model"
	"github.com/epifit/hospfit/rand"
)

// testData builds a tiny but complete dataset: one spline node per
// family, two age groups, a few observations per outcome.
func testData() *model.ModelData {
	d := model.NumFamilies + model.NumDurFamilies

	m := &model.ModelData{
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

	// Coefficients of variation are bounded away from the lookup edges
	for i := model.NumFamilies; i < d; i++ {
		m.ThetaInit[i] = 0.5
		m.TransType[i] = model.TransBoth
		m.ThetaMin[i] = 0.1
		m.ThetaMax[i] = 0.9
	}

	return m
}

func newTestParticle(t *testing.T, seed int64) *Particle {
	gen, err := rand.NewGenerator(seed)
	assert.NoError(t, err)

	p, err := NewParticle(testData(), model.DirectGamma{}, 1.0, 1.0, gen)
	assert.NoError(t, err)
	return p
}

func TestParticleInit(t *testing.T) {
	assert := assert.New(t)

	data := testData()
	p := newTestParticle(t, 1)

	assert.Equal(data.ThetaInit, p.Theta)

	// Phi is the transform of theta
	phi := make([]float64, data.D)
	assert.NoError(data.ThetaToPhi(p.Theta, phi))
	assert.Equal(phi, p.Phi)

	// Stored likelihood and prior match a fresh evaluation
	e, err := model.NewEngine(data, model.DirectGamma{})
	assert.NoError(err)
	ll, err := e.Loglike(p.Theta)
	assert.NoError(err)
	assert.Equal(ll, p.Loglike)
	lp, err := e.Logprior(p.Theta)
	assert.NoError(err)
	assert.Equal(lp, p.Logprior)
}

func TestParticleUpdateConsistency(t *testing.T) {
	assert := assert.New(t)

	data := testData()
	p := newTestParticle(t, 7)

	for i := 0; i < 25; i++ {
		assert.NoError(p.Update())
	}

	// Theta and phi stay mutually consistent after sweeps
	phi := make([]float64, data.D)
	assert.NoError(data.ThetaToPhi(p.Theta, phi))
	assert.InDeltaSlice(phi, p.Phi, 1e-10)

	// Stored likelihood matches a recomputation from scratch
	e, err := model.NewEngine(data, model.DirectGamma{})
	assert.NoError(err)
	ll, err := e.Loglike(p.Theta)
	assert.NoError(err)
	assert.InDelta(ll, p.Loglike, 1e-10)
}

func TestParticleSkipParams(t *testing.T) {
	assert := assert.New(t)

	data := testData()
	data.SkipParam[0] = true
	data.SkipParam[5] = true

	gen, err := rand.NewGenerator(3)
	assert.NoError(err)
	p, err := NewParticle(data, model.DirectGamma{}, 1.0, 1.0, gen)
	assert.NoError(err)

	for i := 0; i < 10; i++ {
		assert.NoError(p.Update())
	}
	assert.Equal(data.ThetaInit[0], p.Theta[0])
	assert.Equal(data.ThetaInit[5], p.Theta[5])
}

func TestParticleDeterminism(t *testing.T) {
	assert := assert.New(t)

	p1 := newTestParticle(t, 99)
	p2 := newTestParticle(t, 99)

	for i := 0; i < 20; i++ {
		assert.NoError(p1.Update())
		assert.NoError(p2.Update())
	}

	assert.Equal(p1.Theta, p2.Theta)
	assert.Equal(p1.Loglike, p2.Loglike)
	assert.Equal(p1.AcceptCount, p2.AcceptCount)
}

func TestParticleAdaptsTowardTargetRate(t *testing.T) {
	assert := assert.New(t)

	p := newTestParticle(t, 17)

	// Let the Robbins-Monro scheme settle, then measure
	for i := 0; i < 400; i++ {
		assert.NoError(p.Update())
	}
	before := p.AcceptCount

	const sweeps = 400
	for i := 0; i < sweeps; i++ {
		assert.NoError(p.Update())
	}

	rate := float64(p.AcceptCount-before) / float64(sweeps*len(p.Theta))
	assert.InDelta(0.234, rate, 0.1)
}
