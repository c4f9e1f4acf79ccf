package subsetting

import (
	"github.com/moleculab/synthon-sieve/internal/chem"
)

// unwantedMotif names the first blocked substructure found in m, or returns
// the empty string for a clean molecule.  The blocklist targets groups that
// either decompose badly or mark a compound as synthetically degenerate:
// acyclic carbamates, exocyclic esters and imines, long unbranched alkane
// runs, and hydrazines.  Ring-embedded variants (lactones, cyclic carbamates,
// aromatic N-N) are deliberately allowed.
func unwantedMotif(m *chem.Mol) string {
	switch {
	case hasAcyclicCarbamate(m):
		return "carbamate"
	case hasExocyclicEster(m):
		return "exocyclic ester"
	case hasExocyclicImine(m):
		return "exocyclic imine"
	case hasAlkaneRun(m):
		return "alkane chain"
	case hasHydrazine(m):
		return "hydrazine"
	}
	return ""
}

// hasAcyclicCarbamate matches N-C(=O)-O where the nitrogen sits outside any
// ring.
func hasAcyclicCarbamate(m *chem.Mol) bool {
	for ci := range m.Atoms {
		if m.Atoms[ci].Element != "C" || m.Atoms[ci].Aromatic {
			continue
		}
		var carbonylO, singleO, acyclicN bool
		for _, bi := range m.BondsOf(ci) {
			b := &m.Bonds[bi]
			n := &m.Atoms[b.Other(ci)]
			switch {
			case n.Element == "O" && b.Order == chem.BondDouble:
				carbonylO = true
			case n.Element == "O" && b.Order == chem.BondSingle && !b.Aromatic:
				singleO = true
			case n.Element == "N" && b.Order == chem.BondSingle && !b.Aromatic && !n.InRing:
				acyclicN = true
			}
		}
		if carbonylO && singleO && acyclicN {
			return true
		}
	}
	return false
}

// hasExocyclicEster matches a non-ring carbonyl carbon bonded to a non-ring
// ester oxygen.  The oxygen must carry no hydrogen, so carboxylic acids pass.
func hasExocyclicEster(m *chem.Mol) bool {
	for ci := range m.Atoms {
		c := &m.Atoms[ci]
		if c.Element != "C" || c.Aromatic || c.InRing {
			continue
		}
		var carbonylO, esterO bool
		for _, bi := range m.BondsOf(ci) {
			b := &m.Bonds[bi]
			n := &m.Atoms[b.Other(ci)]
			if n.Element != "O" {
				continue
			}
			switch {
			case b.Order == chem.BondDouble:
				carbonylO = true
			case b.Order == chem.BondSingle && !b.Aromatic && n.HCount == 0 && !n.InRing:
				esterO = true
			}
		}
		if carbonylO && esterO {
			return true
		}
	}
	return false
}

// hasExocyclicImine matches C=N where both atoms sit outside any ring.
func hasExocyclicImine(m *chem.Mol) bool {
	for bi := range m.Bonds {
		b := &m.Bonds[bi]
		if b.Order != chem.BondDouble || b.Aromatic {
			continue
		}
		a1, a2 := &m.Atoms[b.A1], &m.Atoms[b.A2]
		if a1.InRing || a2.InRing {
			continue
		}
		if (a1.Element == "C" && a2.Element == "N") || (a1.Element == "N" && a2.Element == "C") {
			return true
		}
	}
	return false
}

// alkaneRunLength is the shortest chain of consecutive acyclic methylenes
// that marks a molecule as a floppy alkane.
const alkaneRunLength = 4

// hasAlkaneRun reports whether m contains a single-bonded path of
// alkaneRunLength acyclic CH2 carbons.  The acyclic methylenes form a forest,
// so excluding the previous atom is enough to keep the walk a simple path.
func hasAlkaneRun(m *chem.Mol) bool {
	ch2 := make([]bool, len(m.Atoms))
	for ai := range m.Atoms {
		a := &m.Atoms[ai]
		ch2[ai] = a.Element == "C" && !a.Aromatic && !a.InRing && a.HCount == 2
	}

	var extend func(ai, prev, length int) bool
	extend = func(ai, prev, length int) bool {
		if length == alkaneRunLength {
			return true
		}
		for _, bi := range m.BondsOf(ai) {
			b := &m.Bonds[bi]
			ni := b.Other(ai)
			if ni == prev || !ch2[ni] || b.Order != chem.BondSingle || b.Aromatic {
				continue
			}
			if extend(ni, ai, length+1) {
				return true
			}
		}
		return false
	}

	for ai := range m.Atoms {
		if ch2[ai] && extend(ai, -1, 1) {
			return true
		}
	}
	return false
}

// hasHydrazine matches an N-N single bond where at least one nitrogen sits
// outside any ring.
func hasHydrazine(m *chem.Mol) bool {
	for bi := range m.Bonds {
		b := &m.Bonds[bi]
		if b.Order != chem.BondSingle || b.Aromatic {
			continue
		}
		a1, a2 := &m.Atoms[b.A1], &m.Atoms[b.A2]
		if a1.Element != "N" || a2.Element != "N" {
			continue
		}
		if !a1.InRing || !a2.InRing {
			return true
		}
	}
	return false
}
