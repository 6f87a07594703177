package model

import (
	"github.com/pkg/errors"
)

// Parameter vector block order. The vector is 9 spline-node groups (3
// transition probabilities, 6 duration means) followed by 6 scalar
// coefficients of variation.
const (
	NumProbFamilies = 3
	NumDurFamilies  = 6
	NumFamilies     = NumProbFamilies + NumDurFamilies
)

// ModelData is the shared, immutable input to every chain: the
// individual-level dataset, the per-parameter transform specification,
// and the spline knot positions. Built once by the loader and read-only
// for the duration of a run.
type ModelData struct {
	D         int       // Parameter vector dimension
	TransType []int     // Transform kind per parameter (see transform.go)
	ThetaMin  []float64 // Lower bound per parameter (kinds 2, 3)
	ThetaMax  []float64 // Upper bound per parameter (kinds 1, 3)
	ThetaInit []float64 // Initial parameter vector in natural space
	SkipParam []bool    // Parameters left untouched by the sweep

	NNode int       // Spline nodes per family
	NodeX []float64 // Knot positions, strictly increasing

	MaxAge int // Ages are discretised 0..MaxAge

	// Per-age numerator/denominator pairs for the three binary
	// transition outcomes (admission->ICU, admission->death, ICU->death)
	PAINumer, PAIDenom []int
	PADNumer, PADDenom []int
	PIDNumer, PIDDenom []int

	// Per-age histograms of observed day counts for the six delay types
	MAICount, MADCount, MACCount [][]int
	MIDCount, MISCount, MSCCount [][]int
}

// Check returns an error if the data violates the model contract.
func (m *ModelData) Check() error {
	if m.D < 1 {
		return errors.Errorf("Invalid dimension %d", m.D)
	}
	if m.NNode < 1 {
		return errors.Errorf("Invalid node count %d", m.NNode)
	}
	if NumFamilies*m.NNode+NumDurFamilies != m.D {
		return errors.Errorf(
			"Block sizes do not sum to dimension: %d families of %d nodes + %d CVs != %d",
			NumFamilies, m.NNode, NumDurFamilies, m.D,
		)
	}

	for _, a := range [][]float64{m.ThetaMin, m.ThetaMax, m.ThetaInit} {
		if len(a) != m.D {
			return errors.Errorf("Parameter array length %d != dimension %d", len(a), m.D)
		}
	}
	if len(m.TransType) != m.D || len(m.SkipParam) != m.D {
		return errors.Errorf("Transform/skip array length mismatch with dimension %d", m.D)
	}
	for i, k := range m.TransType {
		if k < TransIdentity || k > TransBoth {
			return errors.Errorf("Unknown transform kind %d for parameter %d", k, i)
		}
	}

	if len(m.NodeX) != m.NNode {
		return errors.Errorf("Knot array length %d != node count %d", len(m.NodeX), m.NNode)
	}
	for i := 1; i < len(m.NodeX); i++ {
		if m.NodeX[i] <= m.NodeX[i-1] {
			return errors.Errorf("Knot positions not strictly increasing at index %d", i)
		}
	}

	if m.MaxAge < 0 {
		return errors.Errorf("Invalid max age %d", m.MaxAge)
	}
	n := m.MaxAge + 1
	for _, a := range [][]int{
		m.PAINumer, m.PAIDenom, m.PADNumer, m.PADDenom, m.PIDNumer, m.PIDDenom,
	} {
		if len(a) != n {
			return errors.Errorf("Transition count array length %d != age count %d", len(a), n)
		}
	}
	for _, h := range [][][]int{
		m.MAICount, m.MADCount, m.MACCount, m.MIDCount, m.MISCount, m.MSCCount,
	} {
		if len(h) != n {
			return errors.Errorf("Delay histogram count %d != age count %d", len(h), n)
		}
	}

	return nil
}
