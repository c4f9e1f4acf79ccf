// Package subsetting orchestrates the end-to-end catalogue sieve: compounds
// stream in from a Source, are decomposed, scored for amicability and
// boringness, judged against cutoffs, and the verdicts stream out to a Sink.
package subsetting

import (
	"fmt"
)

// Tier labels, binned on amicability per heavy atom against TierBounds.
const (
	TierZ0  = "Z0-05"
	TierZ05 = "Z05-08"
	TierZ08 = "Z08-1"
	TierZ1  = "Z1"
)

// DefaultTierBounds are the ascending bin edges for tier assignment.
var DefaultTierBounds = [3]float64{0.5, 0.8, 1.0}

// TierFor bins a normalized amicability-per-heavy-atom value.
func TierFor(value float64, bounds [3]float64) string {
	switch {
	case value < bounds[0]:
		return TierZ0
	case value < bounds[1]:
		return TierZ05
	case value < bounds[2]:
		return TierZ08
	}
	return TierZ1
}

// Verdict is the full assessment of one compound.  Every computed metric is
// carried even for rejected compounds, so analysis runs can study the
// rejection surface.
type Verdict struct {
	CompoundID string `json:"compound_id"`
	SMILES     string `json:"smiles"`

	Acceptable bool   `json:"acceptable"`
	Issue      string `json:"issue,omitempty"`

	HeavyAtoms        int     `json:"heavy_atoms"`
	NumRings          int     `json:"num_rings"`
	LargestRingSize   int     `json:"largest_ring_size"`
	Methylenes        int     `json:"methylenes"`
	NumSynthons       int     `json:"num_synthons"`
	Amicability       float64 `json:"amicability"`
	AmicabilityPerHAC float64 `json:"amicability_per_hac"`
	Boringness        float64 `json:"boringness"`
	Tier              string  `json:"tier"`
}

// Cutoffs are the acceptance gates applied after scoring.  Zero-valued
// fields are inactive.
type Cutoffs struct {
	MinHeavyAtoms        int     `mapstructure:"min_heavy_atoms"`
	MaxHeavyAtoms        int     `mapstructure:"max_heavy_atoms"`
	MinRings             int     `mapstructure:"min_rings"`
	MaxLargestRingSize   int     `mapstructure:"max_largest_ring_size"`
	MaxMethylenes        int     `mapstructure:"max_methylenes"`
	MinSynthons          int     `mapstructure:"min_synthons"`
	MinAmicability       float64 `mapstructure:"min_amicability"`
	MinAmicabilityPerHAC float64 `mapstructure:"min_amicability_per_hac"`
	MaxBoringness        float64 `mapstructure:"max_boringness"`
}

// Assess applies the cutoffs in a fixed order and returns the first
// violation.  The boringness retention rule (strictly negative score) is a
// separate gate applied by the pipeline; MaxBoringness here is an additional
// configurable ceiling for analysis setups that relax retention.
func (c Cutoffs) Assess(v *Verdict) (ok bool, issue string) {
	switch {
	case c.MinHeavyAtoms > 0 && v.HeavyAtoms < c.MinHeavyAtoms:
		return false, fmt.Sprintf("too few heavy atoms (%d < %d)", v.HeavyAtoms, c.MinHeavyAtoms)
	case c.MaxHeavyAtoms > 0 && v.HeavyAtoms > c.MaxHeavyAtoms:
		return false, fmt.Sprintf("too many heavy atoms (%d > %d)", v.HeavyAtoms, c.MaxHeavyAtoms)
	case c.MinRings > 0 && v.NumRings < c.MinRings:
		return false, fmt.Sprintf("too few rings (%d < %d)", v.NumRings, c.MinRings)
	case c.MaxLargestRingSize > 0 && v.LargestRingSize > c.MaxLargestRingSize:
		return false, fmt.Sprintf("largest ring size %d above %d", v.LargestRingSize, c.MaxLargestRingSize)
	case c.MaxMethylenes > 0 && v.Methylenes > c.MaxMethylenes:
		return false, fmt.Sprintf("too many methylenes (%d > %d)", v.Methylenes, c.MaxMethylenes)
	case c.MinSynthons > 0 && v.NumSynthons < c.MinSynthons:
		return false, fmt.Sprintf("too few synthons (%d < %d)", v.NumSynthons, c.MinSynthons)
	case c.MinAmicability > 0 && v.Amicability < c.MinAmicability:
		return false, fmt.Sprintf("amicability %.2f below %.2f", v.Amicability, c.MinAmicability)
	case c.MinAmicabilityPerHAC > 0 && v.AmicabilityPerHAC < c.MinAmicabilityPerHAC:
		return false, fmt.Sprintf("amicability per heavy atom %.3f below %.3f", v.AmicabilityPerHAC, c.MinAmicabilityPerHAC)
	case c.MaxBoringness != 0 && v.Boringness > c.MaxBoringness:
		return false, fmt.Sprintf("boringness %.2f above %.2f", v.Boringness, c.MaxBoringness)
	}
	return true, ""
}
