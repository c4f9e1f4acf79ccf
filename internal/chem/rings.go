package chem

import (
	"sort"
)

// markRingBonds flags every bond that lies on a cycle.  A bond is a ring bond
// iff it is not a bridge, so a single Tarjan bridge-finding pass over the
// graph suffices.
func (m *Mol) markRingBonds() {
	n := len(m.Atoms)
	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	for bi := range m.Bonds {
		m.Bonds[bi].InRing = true
	}

	timer := 0
	var dfs func(ai, parentBond int)
	dfs = func(ai, parentBond int) {
		disc[ai] = timer
		low[ai] = timer
		timer++
		for _, bi := range m.adj[ai] {
			if bi == parentBond {
				continue
			}
			ni := m.Bonds[bi].Other(ai)
			if disc[ni] == -1 {
				dfs(ni, bi)
				if low[ni] < low[ai] {
					low[ai] = low[ni]
				}
				if low[ni] > disc[ai] {
					m.Bonds[bi].InRing = false // bridge
				}
			} else if disc[ni] < low[ai] {
				low[ai] = disc[ni]
			}
		}
	}
	for ai := 0; ai < n; ai++ {
		if disc[ai] == -1 {
			dfs(ai, -1)
		}
	}
}

// findSSSR extracts a smallest set of smallest rings.  For every ring bond
// the shortest cycle through it is located by BFS with that bond removed;
// the candidate cycles are then admitted smallest-first until every ring
// bond is covered.  markRingBonds must have run already.
func (m *Mol) findSSSR() [][]int {
	var candidates [][]int
	seen := make(map[string]bool)

	for bi := range m.Bonds {
		if !m.Bonds[bi].InRing {
			continue
		}
		cycle := m.shortestCycleThrough(bi)
		if cycle == nil {
			continue
		}
		sig := cycleSignature(cycle)
		if !seen[sig] {
			seen[sig] = true
			candidates = append(candidates, cycle)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) < len(candidates[j])
		}
		return cycleSignature(candidates[i]) < cycleSignature(candidates[j])
	})

	covered := make(map[int]bool)
	var sssr [][]int
	for _, cycle := range candidates {
		fresh := false
		for i := range cycle {
			bi, _ := m.BondBetween(cycle[i], cycle[(i+1)%len(cycle)])
			if !covered[bi] {
				fresh = true
			}
		}
		if !fresh {
			continue
		}
		for i := range cycle {
			bi, _ := m.BondBetween(cycle[i], cycle[(i+1)%len(cycle)])
			covered[bi] = true
		}
		sssr = append(sssr, cycle)
	}
	return sssr
}

// shortestCycleThrough returns the atom sequence of the shortest cycle that
// contains bond bi, found as bond endpoints plus the shortest path between
// them that avoids bi itself.
func (m *Mol) shortestCycleThrough(bi int) []int {
	b := &m.Bonds[bi]
	prev := make([]int, len(m.Atoms))
	for i := range prev {
		prev[i] = -1
	}
	prev[b.A1] = b.A1
	queue := []int{b.A1}
	for len(queue) > 0 {
		ai := queue[0]
		queue = queue[1:]
		if ai == b.A2 {
			break
		}
		for _, nbi := range m.adj[ai] {
			if nbi == bi {
				continue
			}
			ni := m.Bonds[nbi].Other(ai)
			if prev[ni] == -1 {
				prev[ni] = ai
				queue = append(queue, ni)
			}
		}
	}
	if prev[b.A2] == -1 {
		return nil
	}
	var path []int
	for ai := b.A2; ai != b.A1; ai = prev[ai] {
		path = append(path, ai)
	}
	path = append(path, b.A1)
	return path
}

func cycleSignature(cycle []int) string {
	sorted := make([]int, len(cycle))
	copy(sorted, cycle)
	sort.Ints(sorted)
	sig := make([]byte, 0, len(sorted)*3)
	for _, ai := range sorted {
		sig = append(sig, byte(ai>>16), byte(ai>>8), byte(ai))
	}
	return string(sig)
}

// RingUnitKind classifies a ring unit into exactly one category.
type RingUnitKind int

const (
	// UnitHeterocycle is any ring unit containing at least one non-carbon
	// ring atom, aromatic or not.
	UnitHeterocycle RingUnitKind = iota
	// UnitAromaticCarbocycle is an all-carbon, fully aromatic ring unit.
	UnitAromaticCarbocycle
	// UnitAlicyclic covers the remaining all-carbon units: saturated,
	// partially saturated, bridged, spiro-joined, or fused ring systems.
	UnitAlicyclic
)

// RingUnit is a group of SSSR rings merged because they share three or more
// atoms (bridged and ortho-fused systems count once).  Rings that share at
// most an edge or a single spiro atom stay separate units.
type RingUnit struct {
	Kind  RingUnitKind
	Atoms []int // sorted union of the member rings' atoms
	Rings int   // number of SSSR rings merged into this unit
}

// RingStats summarizes the ring systems and the acyclic methylene content of
// a perceived molecule.
type RingStats struct {
	Units []RingUnit

	NumRings             int
	LargestRingSize      int
	Heterocycles         int
	AromaticCarbocycles  int
	AlicyclicUnits       int
	AcyclicMethylenes    int
}

// ComputeRingStats builds the ring-unit view used by the boringness filter.
// The molecule must be perceived.
func (m *Mol) ComputeRingStats() RingStats {
	stats := RingStats{NumRings: len(m.rings)}
	for _, r := range m.rings {
		if len(r) > stats.LargestRingSize {
			stats.LargestRingSize = len(r)
		}
	}

	// Union-find over rings: merge rings sharing >= 3 atoms.
	parent := make([]int, len(m.rings))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := 0; i < len(m.rings); i++ {
		for j := i + 1; j < len(m.rings); j++ {
			if sharedAtoms(m.rings[i], m.rings[j]) >= 3 {
				parent[find(i)] = find(j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := range m.rings {
		root := find(i)
		groups[root] = append(groups[root], i)
	}
	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	for _, root := range roots {
		members := groups[root]
		atomSet := make(map[int]bool)
		for _, ri := range members {
			for _, ai := range m.rings[ri] {
				atomSet[ai] = true
			}
		}
		atoms := make([]int, 0, len(atomSet))
		for ai := range atomSet {
			atoms = append(atoms, ai)
		}
		sort.Ints(atoms)

		unit := RingUnit{Atoms: atoms, Rings: len(members)}
		hetero := false
		allAromatic := true
		for _, ai := range atoms {
			if m.Atoms[ai].Element != "C" {
				hetero = true
			}
			if !m.Atoms[ai].Aromatic {
				allAromatic = false
			}
		}
		switch {
		case hetero:
			unit.Kind = UnitHeterocycle
			stats.Heterocycles++
		case allAromatic:
			unit.Kind = UnitAromaticCarbocycle
			stats.AromaticCarbocycles++
		default:
			unit.Kind = UnitAlicyclic
			stats.AlicyclicUnits++
		}
		stats.Units = append(stats.Units, unit)
	}

	stats.AcyclicMethylenes = m.countAcyclicMethylenes()
	return stats
}

// countAcyclicMethylenes counts non-ring sp3 CH2 carbons: exactly two
// implicit hydrogens and only single, non-aromatic bonds.
func (m *Mol) countAcyclicMethylenes() int {
	count := 0
	for ai := range m.Atoms {
		a := &m.Atoms[ai]
		if a.Element != "C" || a.Aromatic || a.InRing || a.HCount != 2 {
			continue
		}
		saturated := true
		for _, bi := range m.adj[ai] {
			b := &m.Bonds[bi]
			if b.Order != BondSingle || b.Aromatic {
				saturated = false
				break
			}
		}
		if saturated {
			count++
		}
	}
	return count
}

func sharedAtoms(r1, r2 []int) int {
	set := make(map[int]bool, len(r1))
	for _, ai := range r1 {
		set[ai] = true
	}
	n := 0
	for _, ai := range r2 {
		if set[ai] {
			n++
		}
	}
	return n
}
