// Package boringness scores how structurally dull a compound is.  Flat
// aromatic carbocycles and floppy methylene chains raise the score;
// three-dimensional ring systems and heterocycles lower it.  Low scorers are
// the compounds worth keeping.
package boringness

import (
	"github.com/moleculab/synthon-sieve/internal/chem"
)

// Weights are the per-feature contributions to the boringness score.
type Weights struct {
	// AromaticCarbocycle is added per all-carbon aromatic ring unit.
	AromaticCarbocycle float64
	// AcyclicMethylene is added per non-ring CH2.
	AcyclicMethylene float64
	// AlicyclicUnit is added per saturated, bridged, spiro or fused
	// all-carbon ring unit.
	AlicyclicUnit float64
	// Heterocycle is added per ring unit containing a heteroatom.
	Heterocycle float64
}

// DefaultWeights returns the stock scoring weights: benzene rings +1,
// acyclic CH2 +1/4, alicyclic units -1, heterocycles -1/2.
func DefaultWeights() Weights {
	return Weights{
		AromaticCarbocycle: 1,
		AcyclicMethylene:   0.25,
		AlicyclicUnit:      -1,
		Heterocycle:        -0.5,
	}
}

// Filter scores molecules and applies the retention rule.  The zero value is
// unusable; construct with New.
type Filter struct {
	w Weights
}

// New builds a Filter.  Zero-valued Weights select DefaultWeights.
func New(w Weights) *Filter {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return &Filter{w: w}
}

// Score computes the boringness of m.  Bridged and ortho-fused ring systems
// sharing three or more atoms count as a single ring unit, and each unit
// lands in exactly one category.  The molecule must parse; perception runs
// as needed.
func (f *Filter) Score(m *chem.Mol) (float64, error) {
	if err := m.Perceive(); err != nil {
		return 0, err
	}
	stats := m.ComputeRingStats()
	score := f.w.AromaticCarbocycle*float64(stats.AromaticCarbocycles) +
		f.w.AcyclicMethylene*float64(stats.AcyclicMethylenes) +
		f.w.AlicyclicUnit*float64(stats.AlicyclicUnits) +
		f.w.Heterocycle*float64(stats.Heterocycles)
	return score, nil
}

// Retained reports whether m passes the filter: strictly negative boringness.
// A score of exactly zero is rejected.
func (f *Filter) Retained(m *chem.Mol) (bool, error) {
	score, err := f.Score(m)
	if err != nil {
		return false, err
	}
	return score < 0, nil
}
