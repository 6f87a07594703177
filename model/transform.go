package model

import (
	"math"

	"github.com/pkg/errors"
)

// Transform kinds mapping a possibly-bounded natural parameter theta to
// an unconstrained phi, so the random-walk proposal is symmetric in a
// space where it is well-behaved.
const (
	TransIdentity = 0 // Unbounded
	TransUpper    = 1 // Upper bound only: phi = log(max - theta)
	TransLower    = 2 // Lower bound only: phi = log(theta - min)
	TransBoth     = 3 // Both bounds: logit-like
)

// ThetaToPhi fills phi with the transformed value of every parameter.
func (m *ModelData) ThetaToPhi(theta, phi []float64) error {
	for i := range theta {
		switch m.TransType[i] {
		case TransIdentity:
			phi[i] = theta[i]
		case TransUpper:
			phi[i] = math.Log(m.ThetaMax[i] - theta[i])
		case TransLower:
			phi[i] = math.Log(theta[i] - m.ThetaMin[i])
		case TransBoth:
			phi[i] = math.Log(theta[i]-m.ThetaMin[i]) - math.Log(m.ThetaMax[i]-theta[i])
		default:
			return errors.Errorf("Unknown transform kind %d for parameter %d", m.TransType[i], i)
		}
	}
	return nil
}

// PhiToTheta maps a single transformed value back to natural space.
func (m *ModelData) PhiToTheta(i int, phi float64) (float64, error) {
	switch m.TransType[i] {
	case TransIdentity:
		return phi, nil
	case TransUpper:
		return m.ThetaMax[i] - math.Exp(phi), nil
	case TransLower:
		return math.Exp(phi) + m.ThetaMin[i], nil
	case TransBoth:
		e := math.Exp(phi)
		return (m.ThetaMax[i]*e + m.ThetaMin[i]) / (1 + e), nil
	default:
		return 0, errors.Errorf("Unknown transform kind %d for parameter %d", m.TransType[i], i)
	}
}

// Adjustment returns the log-Jacobian correction for a proposal on
// parameter i: the log-ratio of |d theta/d phi| at the proposed vs the
// current point. Added to the Metropolis-Hastings log-ratio so the
// transformed-space walk targets the correct natural-space density.
func (m *ModelData) Adjustment(i int, theta, thetaProp float64) (float64, error) {
	switch m.TransType[i] {
	case TransIdentity:
		return 0, nil
	case TransUpper:
		return math.Log(m.ThetaMax[i]-thetaProp) - math.Log(m.ThetaMax[i]-theta), nil
	case TransLower:
		return math.Log(thetaProp-m.ThetaMin[i]) - math.Log(theta-m.ThetaMin[i]), nil
	case TransBoth:
		return math.Log(m.ThetaMax[i]-thetaProp) + math.Log(thetaProp-m.ThetaMin[i]) -
			math.Log(m.ThetaMax[i]-theta) - math.Log(theta-m.ThetaMin[i]), nil
	default:
		return 0, errors.Errorf("Unknown transform kind %d for parameter %d", m.TransType[i], i)
	}
}
