package sampler

import (
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/epifit/hospfit/model"
	"github.com/epifit/hospfit/rand"
)

// Config holds the run parameters supplied by the orchestrator.
type Config struct {
	Burnin  int // Burn-in iterations (the first stores the initial state)
	Samples int // Sampling iterations

	Rungs      int     // Temperature rungs; 1 disables tempering
	GTIPow     float64 // Exponent shaping the inverse-temperature ladder
	CouplingOn bool    // Propose adjacent-rung swaps each iteration

	BWStepsize float64 // Robbins-Monro adaptation step size
	Seed       int64   // Base random seed; rung r draws from Seed+r
	Chain      int     // Chain identifier carried into the output
}

// Output collects everything a run produces: per-iteration traces for
// both phases and every rung, plus the final acceptance counters.
type Output struct {
	Chain      int
	BetaRaised []float64

	LoglikeBurnin  [][]float64
	LogpriorBurnin [][]float64
	ThetaBurnin    [][][]float64

	LoglikeSampling  [][]float64
	LogpriorSampling [][]float64
	ThetaSampling    [][][]float64

	AcceptBurnin   []int64 // Metropolis acceptances per rung, burn-in
	AcceptSampling []int64 // Metropolis acceptances per rung, sampling

	MCAcceptBurnin   []int64 // Coupling acceptances per adjacent pair, burn-in
	MCAcceptSampling []int64 // Coupling acceptances per adjacent pair, sampling
}

// Ensemble owns the temperature ladder of particles and coordinates
// their sweeps and adjacent-rung swaps. Rung 0 is the hottest; the last
// rung runs at beta 1 and its samples are the ones of interest.
type Ensemble struct {
	data *model.ModelData
	cfg  Config

	Particles []*Particle
	gen       *rand.Generator // Coupling draws only; sweep draws are per-particle

	// Progress, if set, is invoked after every iteration.
	Progress ProgressFunc
}

// BetaSchedule returns the inverse-temperature power for each rung:
// a power ladder from 0 (hottest, prior only) up to 1. A single rung
// always runs at 1.
func BetaSchedule(rungs int, gtiPow float64) ([]float64, error) {
	if rungs < 1 {
		return nil, errors.Errorf("At least one rung required, got %d", rungs)
	}

	beta := make([]float64, rungs)
	if rungs == 1 {
		beta[0] = 1.0
		return beta, nil
	}
	for r := range beta {
		beta[r] = math.Pow(float64(r)/float64(rungs-1), gtiPow)
	}
	return beta, nil
}

// NewEnsemble builds the particle ladder. Every particle shares the
// same read-only data and delay strategy but owns its generator and
// scratch state.
func NewEnsemble(data *model.ModelData, delay model.DelayDist, cfg Config) (*Ensemble, error) {
	if cfg.Burnin < 1 {
		return nil, errors.Errorf("At least one burn-in iteration required")
	}
	if cfg.Samples < 0 {
		return nil, errors.Errorf("Negative sample count %d", cfg.Samples)
	}
	if cfg.BWStepsize <= 0 {
		return nil, errors.Errorf("Adaptation step size must be positive, got %v", cfg.BWStepsize)
	}

	beta, err := BetaSchedule(cfg.Rungs, cfg.GTIPow)
	if err != nil {
		return nil, err
	}

	e := &Ensemble{
		data:      data,
		cfg:       cfg,
		Particles: make([]*Particle, cfg.Rungs),
	}

	if e.gen, err = rand.NewGenerator(cfg.Seed + int64(cfg.Rungs)); err != nil {
		return nil, err
	}

	for r := range e.Particles {
		gen, err := rand.NewGenerator(cfg.Seed + int64(r))
		if err != nil {
			return nil, err
		}
		p, err := NewParticle(data, delay, beta[r], cfg.BWStepsize, gen)
		if err != nil {
			return nil, errors.Wrapf(err, "Could not initialise rung %d", r)
		}
		e.Particles[r] = p
	}

	return e, nil
}

// sweep runs one Update per rung concurrently and waits for all of them
// before returning. Chains never touch each other's state here, so the
// only coordination needed is the final join.
func (e *Ensemble) sweep() error {
	errs := make([]error, len(e.Particles))

	var wg sync.WaitGroup
	for r, p := range e.Particles {
		wg.Add(1)
		go func(r int, p *Particle) {
			defer wg.Done()
			errs[r] = p.Update()
		}(r, p)
	}
	wg.Wait()

	for r, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "Sweep failed on rung %d", r)
		}
	}
	return nil
}

// couple proposes one swap per adjacent rung pair, hottest first. Swaps
// exchange the full sampled state; adaptation state stays with its
// rung. Must run sequentially: each proposal sees the outcome of the
// previous pair's swap.
func (e *Ensemble) couple(mcAccept []int64) {
	for i := 0; i < len(e.Particles)-1; i++ {
		p1 := e.Particles[i]
		p2 := e.Particles[i+1]

		// Standard tempering exchange criterion; no Jacobian term since
		// entire state vectors swap symmetrically.
		acceptance := (p2.Loglike*p1.BetaRaised + p1.Loglike*p2.BetaRaised) -
			(p1.Loglike*p1.BetaRaised + p2.Loglike*p2.BetaRaised)

		if math.Log(e.gen.Float64()) < acceptance {
			p1.Theta, p2.Theta = p2.Theta, p1.Theta
			p1.Phi, p2.Phi = p2.Phi, p1.Phi
			p1.Loglike, p2.Loglike = p2.Loglike, p1.Loglike
			p1.Logprior, p2.Logprior = p2.Logprior, p1.Logprior
			mcAccept[i]++
		}
	}
}

// Run executes the configured burn-in and sampling phases to
// completion. Any error aborts the whole run; there is no partial
// recovery.
func (e *Ensemble) Run() (*Output, error) {
	rungs := e.cfg.Rungs
	d := e.data.D

	out := &Output{
		Chain:      e.cfg.Chain,
		BetaRaised: make([]float64, rungs),

		LoglikeBurnin:  makeTrace(rungs, e.cfg.Burnin),
		LogpriorBurnin: makeTrace(rungs, e.cfg.Burnin),
		ThetaBurnin:    makeThetaTrace(rungs, e.cfg.Burnin, d),

		LoglikeSampling:  makeTrace(rungs, e.cfg.Samples),
		LogpriorSampling: makeTrace(rungs, e.cfg.Samples),
		ThetaSampling:    makeThetaTrace(rungs, e.cfg.Samples, d),

		AcceptBurnin:     make([]int64, rungs),
		AcceptSampling:   make([]int64, rungs),
		MCAcceptBurnin:   make([]int64, maxInt(rungs-1, 0)),
		MCAcceptSampling: make([]int64, maxInt(rungs-1, 0)),
	}
	for r, p := range e.Particles {
		out.BetaRaised[r] = p.BetaRaised
	}

	// The user-supplied initial state is the first stored burn-in row
	for r, p := range e.Particles {
		out.LoglikeBurnin[r][0] = p.Loglike
		out.LogpriorBurnin[r][0] = p.Logprior
		copy(out.ThetaBurnin[r][0], p.Theta)
	}
	e.report(PhaseBurnin, 1, e.cfg.Burnin)

	for rep := 1; rep < e.cfg.Burnin; rep++ {
		if err := e.sweep(); err != nil {
			return nil, errors.Wrap(err, "Failure during burn-in")
		}
		for r, p := range e.Particles {
			out.LoglikeBurnin[r][rep] = p.Loglike
			out.LogpriorBurnin[r][rep] = p.Logprior
			copy(out.ThetaBurnin[r][rep], p.Theta)
		}
		if e.cfg.CouplingOn {
			e.couple(out.MCAcceptBurnin)
		}
		e.report(PhaseBurnin, rep+1, e.cfg.Burnin)
	}

	// Acceptance counters reset between phases
	for r, p := range e.Particles {
		out.AcceptBurnin[r] = p.AcceptCount
		p.AcceptCount = 0
	}

	for rep := 0; rep < e.cfg.Samples; rep++ {
		if err := e.sweep(); err != nil {
			return nil, errors.Wrap(err, "Failure during sampling")
		}
		for r, p := range e.Particles {
			out.LoglikeSampling[r][rep] = p.Loglike
			out.LogpriorSampling[r][rep] = p.Logprior
			copy(out.ThetaSampling[r][rep], p.Theta)
		}
		if e.cfg.CouplingOn {
			e.couple(out.MCAcceptSampling)
		}
		e.report(PhaseSampling, rep+1, e.cfg.Samples)
	}

	for r, p := range e.Particles {
		out.AcceptSampling[r] = p.AcceptCount
	}

	return out, nil
}

// Cold returns the retained rung (beta = 1).
func (e *Ensemble) Cold() *Particle {
	return e.Particles[len(e.Particles)-1]
}

func (e *Ensemble) report(phase string, done, total int) {
	if e.Progress != nil {
		e.Progress(phase, done, total, e.Cold().RecentAcceptRate())
	}
}

func makeTrace(rungs, iters int) [][]float64 {
	t := make([][]float64, rungs)
	for r := range t {
		t[r] = make([]float64, iters)
	}
	return t
}

func makeThetaTrace(rungs, iters, d int) [][][]float64 {
	t := make([][][]float64, rungs)
	for r := range t {
		t[r] = make([][]float64, iters)
		for i := range t[r] {
			t[r][i] = make([]float64, d)
		}
	}
	return t
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
