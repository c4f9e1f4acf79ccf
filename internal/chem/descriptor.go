package chem

import (
	"math"
)

// DescriptorDim is the length of the vectors produced by TopoPharmacophore:
// 4 reference atoms x 5 pharmacophore classes x 3 distance moments.
const DescriptorDim = 60

// Descriptor turns a perceived molecule into a fixed-length numeric vector
// suitable for the similarity counters.
type Descriptor interface {
	Dim() int
	Compute(m *Mol) ([]float64, error)
}

// TopoPharmacophore is a topological analogue of shape-and-feature
// descriptors: four reference atoms are picked from the bond-hop distance
// matrix (the most central atom, the two ends of a graph diameter walk, and
// the atom farthest from all three), and for each reference the hop-distance
// distribution to each pharmacophore class is condensed into its first three
// moments.  Only graph topology enters, so no 3D conformer is required and
// the vector is invariant to atom input order.
type TopoPharmacophore struct{}

// NewTopoPharmacophore returns the default descriptor implementation.
func NewTopoPharmacophore() *TopoPharmacophore {
	return &TopoPharmacophore{}
}

// Dim returns DescriptorDim.
func (t *TopoPharmacophore) Dim() int { return DescriptorDim }

// pharmacophore class selectors, in fixed vector order.
var atomClasses = []func(m *Mol, ai int) bool{
	func(_ *Mol, _ int) bool { return true }, // all heavy atoms
	func(m *Mol, ai int) bool { // hydrogen-bond donors
		a := &m.Atoms[ai]
		return (a.Element == "N" || a.Element == "O") && a.HCount > 0
	},
	func(m *Mol, ai int) bool { // hydrogen-bond acceptors
		a := &m.Atoms[ai]
		return a.Element == "N" || a.Element == "O"
	},
	func(m *Mol, ai int) bool { return m.Atoms[ai].Aromatic },
	func(m *Mol, ai int) bool { return IsHalogen(m.Atoms[ai].Element) },
}

// Compute returns the 60-dimensional descriptor for m.  The molecule must be
// perceived and non-empty.
func (t *TopoPharmacophore) Compute(m *Mol) ([]float64, error) {
	if err := m.Perceive(); err != nil {
		return nil, err
	}
	dist := m.distanceMatrix()
	refs := referenceAtoms(m, dist)

	vec := make([]float64, 0, DescriptorDim)
	for _, ref := range refs {
		for _, inClass := range atomClasses {
			var ds []float64
			for ai := range m.Atoms {
				if inClass(m, ai) && dist[ref][ai] >= 0 {
					ds = append(ds, float64(dist[ref][ai]))
				}
			}
			vec = append(vec, moments(ds)...)
		}
	}
	return vec, nil
}

// distanceMatrix returns pairwise bond-hop distances via BFS from every atom;
// -1 marks atom pairs in different components.
func (m *Mol) distanceMatrix() [][]int {
	n := len(m.Atoms)
	dist := make([][]int, n)
	for src := 0; src < n; src++ {
		row := make([]int, n)
		for i := range row {
			row[i] = -1
		}
		row[src] = 0
		queue := []int{src}
		for len(queue) > 0 {
			ai := queue[0]
			queue = queue[1:]
			for _, ni := range m.Neighbors(ai) {
				if row[ni] == -1 {
					row[ni] = row[ai] + 1
					queue = append(queue, ni)
				}
			}
		}
		dist[src] = row
	}
	return dist
}

// referenceAtoms picks the four descriptor reference atoms.  Ties are broken
// with canonical ranks so the choice does not depend on atom input order;
// atoms that remain tied after that are graph-symmetric and interchangeable.
func referenceAtoms(m *Mol, dist [][]int) [4]int {
	ranks := m.canonicalRanks()

	pick := func(score func(ai int) int) int {
		best := 0
		for ai := 1; ai < len(m.Atoms); ai++ {
			s, sb := score(ai), score(best)
			if s < sb || (s == sb && ranks[ai] < ranks[best]) {
				best = ai
			}
		}
		return best
	}
	sumTo := func(targets ...int) func(ai int) int {
		return func(ai int) int {
			total := 0
			for _, ti := range targets {
				if d := dist[ti][ai]; d > 0 {
					total += d
				}
			}
			return -total // pick minimizes, so negate to maximize
		}
	}

	// Most central atom: minimal total distance to everything reachable.
	r1 := pick(func(ai int) int {
		total := 0
		for _, d := range dist[ai] {
			if d > 0 {
				total += d
			}
		}
		return total
	})
	r2 := pick(sumTo(r1))
	r3 := pick(sumTo(r2))
	r4 := pick(sumTo(r1, r2, r3))
	return [4]int{r1, r2, r3, r4}
}

// moments condenses a distance sample into mean, population standard
// deviation, and the signed cube root of the third central moment.  An empty
// sample contributes three zeros.
func moments(ds []float64) []float64 {
	if len(ds) == 0 {
		return []float64{0, 0, 0}
	}
	n := float64(len(ds))
	mean := 0.0
	for _, d := range ds {
		mean += d
	}
	mean /= n

	m2, m3 := 0.0, 0.0
	for _, d := range ds {
		diff := d - mean
		m2 += diff * diff
		m3 += diff * diff * diff
	}
	m2 /= n
	m3 /= n
	return []float64{mean, math.Sqrt(m2), math.Cbrt(m3)}
}
