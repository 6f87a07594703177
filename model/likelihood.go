package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Smoothing standard deviation of the random-walk prior across adjacent
// spline nodes.
const priorSmoothSD = 0.5

// Sentinel for a log-likelihood that underflowed to non-finite: the
// Metropolis ratio downstream must always compare finite numbers.
const loglikeUnderflow = -math.MaxFloat64 / 100.0

// Engine evaluates the model log-likelihood and log-prior for a full
// parameter vector against the shared dataset. It owns scratch buffers
// for the unpacked spline-node groups and the per-age curves, so each
// chain needs its own Engine; the ModelData and DelayDist behind it are
// shared read-only.
type Engine struct {
	data  *ModelData
	delay DelayDist

	ageSeq []float64

	// Spline node scratch, one group per family
	pAINode, pADNode, pIDNode []float64
	mAINode, mADNode, mACNode []float64
	mIDNode, mISNode, mSCNode []float64

	// Per-age curve scratch
	pAI, pAD, pID []float64
	mAI, mAD, mAC []float64
	mID, mIS, mSC []float64

	// Coefficient-of-variation scalars
	sAI, sAD, sAC, sID, sIS, sSC float64
}

// NewEngine creates an evaluation engine bound to the shared data and
// the chosen delay distribution strategy.
func NewEngine(data *ModelData, delay DelayDist) (*Engine, error) {
	if data == nil {
		return nil, errors.Errorf("Model data required")
	}
	if delay == nil {
		return nil, errors.Errorf("Delay distribution required")
	}
	if err := data.Check(); err != nil {
		return nil, errors.Wrap(err, "Invalid model data")
	}

	nAge := data.MaxAge + 1
	e := &Engine{
		data:   data,
		delay:  delay,
		ageSeq: make([]float64, nAge),

		pAINode: make([]float64, data.NNode),
		pADNode: make([]float64, data.NNode),
		pIDNode: make([]float64, data.NNode),
		mAINode: make([]float64, data.NNode),
		mADNode: make([]float64, data.NNode),
		mACNode: make([]float64, data.NNode),
		mIDNode: make([]float64, data.NNode),
		mISNode: make([]float64, data.NNode),
		mSCNode: make([]float64, data.NNode),

		pAI: make([]float64, nAge),
		pAD: make([]float64, nAge),
		pID: make([]float64, nAge),
		mAI: make([]float64, nAge),
		mAD: make([]float64, nAge),
		mAC: make([]float64, nAge),
		mID: make([]float64, nAge),
		mIS: make([]float64, nAge),
		mSC: make([]float64, nAge),
	}
	for i := range e.ageSeq {
		e.ageSeq[i] = float64(i)
	}

	return e, nil
}

// unpack copies theta into the node-group scratch buffers and the CV
// scalars, in the fixed block order.
func (e *Engine) unpack(theta []float64) error {
	if len(theta) != e.data.D {
		return errors.Errorf("Parameter vector length %d != dimension %d", len(theta), e.data.D)
	}

	pi := 0
	for _, grp := range [][]float64{
		e.pAINode, e.pADNode, e.pIDNode,
		e.mAINode, e.mADNode, e.mACNode,
		e.mIDNode, e.mISNode, e.mSCNode,
	} {
		pi += copy(grp, theta[pi:pi+e.data.NNode])
	}

	e.sAI = theta[pi]
	e.sAD = theta[pi+1]
	e.sAC = theta[pi+2]
	e.sID = theta[pi+3]
	e.sIS = theta[pi+4]
	e.sSC = theta[pi+5]

	return nil
}

// curve expands one node group into a per-age curve: natural cubic
// spline over the knots, then a logistic map onto (0, scale).
func (e *Engine) curve(nodes, out []float64, scale float64) error {
	if err := SplineCurve(e.data.NodeX, nodes, e.ageSeq, out); err != nil {
		return err
	}
	for i, v := range out {
		out[i] = scale / (1.0 + math.Exp(-v))
	}
	return nil
}

// curves rebuilds every per-age curve from the current scratch nodes.
// Transition probabilities map onto (0,1), duration means onto (0,20).
func (e *Engine) curves() error {
	type fam struct {
		nodes, out []float64
		scale      float64
	}
	for _, f := range []fam{
		{e.pAINode, e.pAI, 1.0},
		{e.pADNode, e.pAD, 1.0},
		{e.pIDNode, e.pID, 1.0},
		{e.mAINode, e.mAI, 20.0},
		{e.mADNode, e.mAD, 20.0},
		{e.mACNode, e.mAC, 20.0},
		{e.mIDNode, e.mID, 20.0},
		{e.mISNode, e.mIS, 20.0},
		{e.mSCNode, e.mSC, 20.0},
	} {
		if err := e.curve(f.nodes, f.out, f.scale); err != nil {
			return err
		}
	}
	return nil
}

// delayTerms accumulates count * log(density(day)) over one age's
// observed day-count histogram.
func (e *Engine) delayTerms(counts []int, mean, cv float64) (float64, error) {
	ret := 0.0
	for day, c := range counts {
		if c <= 0 {
			continue
		}
		dens, err := e.delay.Density(day, mean, cv)
		if err != nil {
			return 0, err
		}
		ret += float64(c) * math.Log(dens)
	}
	return ret, nil
}

// Loglike evaluates the individual-level log-likelihood of theta. A
// non-finite intermediate sum is a fatal numerical degeneracy; a final
// non-finite total is clamped to a large negative sentinel.
func (e *Engine) Loglike(theta []float64) (float64, error) {
	if err := e.unpack(theta); err != nil {
		return 0, err
	}
	if err := e.curves(); err != nil {
		return 0, err
	}

	d := e.data
	ret := 0.0

	type delay struct {
		counts []int
		mean   float64
		cv     float64
	}

	for age := 0; age <= d.MaxAge; age++ {
		// Binomial terms for the three transition outcomes
		ret += distuv.Binomial{N: float64(d.PAIDenom[age]), P: e.pAI[age]}.LogProb(float64(d.PAINumer[age]))
		ret += distuv.Binomial{N: float64(d.PADDenom[age]), P: e.pAD[age]}.LogProb(float64(d.PADNumer[age]))
		ret += distuv.Binomial{N: float64(d.PIDDenom[age]), P: e.pID[age]}.LogProb(float64(d.PIDNumer[age]))

		// Delay histogram terms for the six duration types
		for _, dl := range []delay{
			{d.MAICount[age], e.mAI[age], e.sAI},
			{d.MADCount[age], e.mAD[age], e.sAD},
			{d.MACCount[age], e.mAC[age], e.sAC},
			{d.MIDCount[age], e.mID[age], e.sID},
			{d.MISCount[age], e.mIS[age], e.sIS},
			{d.MSCCount[age], e.mSC[age], e.sSC},
		} {
			t, err := e.delayTerms(dl.counts, dl.mean, dl.cv)
			if err != nil {
				return 0, err
			}
			ret += t
		}

		if math.IsNaN(ret) || math.IsInf(ret, 0) {
			return 0, errors.Errorf("Non-finite log-likelihood at age %d", age)
		}
	}

	// Catch underflow
	if math.IsNaN(ret) || math.IsInf(ret, 0) {
		ret = loglikeUnderflow
	}

	return ret, nil
}

// Logprior evaluates the smoothness log-prior of theta: each node
// group's first node carries a standard-logistic marginal, and every
// later node a Gaussian random walk centered on its predecessor.
func (e *Engine) Logprior(theta []float64) (float64, error) {
	if err := e.unpack(theta); err != nil {
		return 0, err
	}

	ret := 0.0
	for _, grp := range [][]float64{
		e.pAINode, e.pADNode, e.pIDNode,
		e.mAINode, e.mADNode, e.mACNode,
		e.mIDNode, e.mISNode, e.mSCNode,
	} {
		for i, x := range grp {
			if i == 0 {
				ret += -x - 2*math.Log(1+math.Exp(-x))
			} else {
				ret += distuv.Normal{Mu: grp[i-1], Sigma: priorSmoothSD}.LogProb(x)
			}
		}
	}

	return ret, nil
}
