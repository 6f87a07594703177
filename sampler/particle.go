package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/epifit/hospfit/buffer"
	"github.com/epifit/hospfit/model"
	"github.com/epifit/hospfit/rand"
)

// Robbins-Monro target acceptance rate for the per-parameter bandwidth
// adaptation.
const targetAccept = 0.234

// Window (in sweeps) for the running acceptance-rate diagnostic.
const acceptWindow = 50

// Particle is one tempered chain: its parameter vector in natural and
// transformed space, the current log-likelihood and log-prior, and the
// per-parameter adaptive proposal bandwidths. The ModelData behind the
// engine is shared and read-only; everything else is owned by this
// particle and mutated in place by Update.
type Particle struct {
	data   *model.ModelData
	engine *model.Engine
	gen    *rand.Generator

	// BetaRaised is this rung's inverse-temperature power applied to
	// the log-likelihood.
	BetaRaised float64

	Theta []float64 // Current parameter vector, natural space
	Phi   []float64 // Current parameter vector, transformed space

	thetaProp []float64
	phiProp   []float64

	Loglike  float64
	Logprior float64

	bw         []float64 // Per-parameter proposal bandwidth
	bwIndex    []int     // Robbins-Monro update counter per parameter
	bwStepsize float64

	// AcceptCount accumulates single-parameter acceptances. Resetting
	// it between phases is the coordinator's job, not the particle's.
	AcceptCount int64

	recentAccept *buffer.CircularFloat64
}

// NewParticle creates a chain at the given inverse-temperature power,
// initialised at the data's initial parameter vector with its matching
// likelihood and prior.
func NewParticle(data *model.ModelData, delay model.DelayDist, betaRaised, bwStepsize float64, gen *rand.Generator) (*Particle, error) {
	if gen == nil {
		return nil, errors.Errorf("Random generator required")
	}

	engine, err := model.NewEngine(data, delay)
	if err != nil {
		return nil, err
	}

	p := &Particle{
		data:   data,
		engine: engine,
		gen:    gen,

		BetaRaised: betaRaised,

		Theta:     make([]float64, data.D),
		Phi:       make([]float64, data.D),
		thetaProp: make([]float64, data.D),
		phiProp:   make([]float64, data.D),

		bw:         make([]float64, data.D),
		bwIndex:    make([]int, data.D),
		bwStepsize: bwStepsize,

		recentAccept: buffer.NewCircularFloat64(acceptWindow),
	}

	copy(p.Theta, data.ThetaInit)
	if err := data.ThetaToPhi(p.Theta, p.Phi); err != nil {
		return nil, errors.Wrap(err, "Could not transform initial parameters")
	}
	copy(p.thetaProp, p.Theta)
	copy(p.phiProp, p.Phi)

	for i := range p.bw {
		p.bw[i] = 1.0
		p.bwIndex[i] = 1
	}

	if p.Loglike, err = engine.Loglike(p.Theta); err != nil {
		return nil, errors.Wrap(err, "Could not evaluate initial likelihood")
	}
	if p.Logprior, err = engine.Logprior(p.Theta); err != nil {
		return nil, errors.Wrap(err, "Could not evaluate initial prior")
	}

	return p, nil
}

// Update performs one full sweep of single-parameter Metropolis steps
// with Robbins-Monro bandwidth adaptation. Parameters flagged skip are
// left untouched.
func (p *Particle) Update() error {
	d := p.data.D
	proposed, accepted := 0, 0

	// The proposal buffers must mirror the current state before the
	// sweep: a coupling swap replaces Theta and Phi wholesale
	copy(p.thetaProp, p.Theta)
	copy(p.phiProp, p.Phi)

	for i := 0; i < d; i++ {
		if p.data.SkipParam[i] {
			continue
		}
		proposed++

		// Symmetric random walk in transformed space
		p.phiProp[i] = p.Phi[i] + p.bw[i]*p.gen.NormFloat64()

		thetaProp, err := p.data.PhiToTheta(i, p.phiProp[i])
		if err != nil {
			return err
		}
		p.thetaProp[i] = thetaProp

		adj, err := p.data.Adjustment(i, p.Theta[i], thetaProp)
		if err != nil {
			return err
		}

		loglikeProp, err := p.engine.Loglike(p.thetaProp)
		if err != nil {
			return err
		}
		logpriorProp, err := p.engine.Logprior(p.thetaProp)
		if err != nil {
			return err
		}

		mh := p.BetaRaised*(loglikeProp-p.Loglike) + (logpriorProp - p.Logprior) + adj

		rm := p.bwStepsize / math.Sqrt(float64(p.bwIndex[i]))
		if math.Log(p.gen.Float64()) < mh {
			p.Theta[i] = p.thetaProp[i]
			p.Phi[i] = p.phiProp[i]
			p.Loglike = loglikeProp
			p.Logprior = logpriorProp

			p.bw[i] = math.Exp(math.Log(p.bw[i]) + rm*(1-targetAccept))
			p.AcceptCount++
			accepted++
		} else {
			p.thetaProp[i] = p.Theta[i]
			p.phiProp[i] = p.Phi[i]

			p.bw[i] = math.Exp(math.Log(p.bw[i]) - rm*targetAccept)
		}
		p.bwIndex[i]++
	}

	if proposed > 0 {
		p.recentAccept.Add(float64(accepted) / float64(proposed))
	}

	return nil
}

// RecentAcceptRate reports the mean acceptance fraction over the last
// few sweeps. Diagnostic only.
func (p *Particle) RecentAcceptRate() float64 {
	return p.recentAccept.Mean()
}
