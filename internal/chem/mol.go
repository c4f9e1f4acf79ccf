// Package chem provides the minimal cheminformatics toolkit that the
// decomposition and scoring layers are built on: an atom/bond graph with ring
// and aromaticity perception, a SMILES-subset reader, fragment extraction
// with bond cleavage, canonical-key derivation, and a topological
// pharmacophore descriptor.
//
// The package deliberately implements only what the sieve needs.  It is not a
// general-purpose chemistry library; anything beyond pattern matching, bond
// cleavage, fragment extraction, and canonical keys belongs to an external
// toolkit.
package chem

import (
	"sort"

	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// Bond orders.  Aromatic bonds carry Order 1 with the Aromatic flag set; for
// valence arithmetic they contribute 1.5.
const (
	BondSingle = 1
	BondDouble = 2
	BondTriple = 3
)

// Atom is a heavy atom in the molecular graph.  Hydrogens are implicit and
// tracked via HCount.
type Atom struct {
	// Element is the atomic symbol ("C", "N", "Cl", ...).
	Element string

	// Aromatic marks atoms that are part of an aromatic ring system.
	Aromatic bool

	// Charge is the formal charge.
	Charge int

	// HCount is the implicit hydrogen count.  A value of -1 means "derive
	// from the default valence model during Perceive".
	HCount int

	// InRing is set by Perceive when the atom belongs to at least one ring.
	InRing bool
}

// Bond connects the atoms at indices A1 and A2.
type Bond struct {
	A1, A2   int
	Order    int
	Aromatic bool

	// InRing is set by Perceive when the bond lies on a cycle.
	InRing bool
}

// Other returns the atom on the far side of the bond from origin.
func (b *Bond) Other(origin int) int {
	if b.A1 == origin {
		return b.A2
	}
	return b.A1
}

// Mol is a molecular graph.  It is mutable while being assembled (parser,
// cleavage) and must be finalized with Perceive before ring statistics,
// hydrogen counts, or canonical keys are requested.  All read paths treat a
// perceived Mol as immutable.
type Mol struct {
	Atoms []Atom
	Bonds []Bond

	adj       [][]int // bond indices per atom
	rings     [][]int // SSSR atom cycles
	perceived bool
}

// NewMol returns an empty molecule.
func NewMol() *Mol {
	return &Mol{}
}

// AddAtom appends an atom and returns its index.
func (m *Mol) AddAtom(a Atom) int {
	m.Atoms = append(m.Atoms, a)
	m.perceived = false
	return len(m.Atoms) - 1
}

// AddBond appends a bond between existing atoms and returns its index.
func (m *Mol) AddBond(a1, a2, order int, aromatic bool) int {
	m.Bonds = append(m.Bonds, Bond{A1: a1, A2: a2, Order: order, Aromatic: aromatic})
	m.perceived = false
	return len(m.Bonds) - 1
}

// RemoveBond deletes the bond at index bi.  Bond indices above bi shift down
// by one; callers holding bond indices must account for that, which is why
// the decomposition engine deletes bonds in descending index order.
func (m *Mol) RemoveBond(bi int) {
	m.Bonds = append(m.Bonds[:bi], m.Bonds[bi+1:]...)
	m.perceived = false
}

// NumHeavyAtoms returns the number of heavy atoms in the graph.
func (m *Mol) NumHeavyAtoms() int {
	return len(m.Atoms)
}

// Clone returns a deep copy in the unperceived state.
func (m *Mol) Clone() *Mol {
	c := &Mol{
		Atoms: make([]Atom, len(m.Atoms)),
		Bonds: make([]Bond, len(m.Bonds)),
	}
	copy(c.Atoms, m.Atoms)
	copy(c.Bonds, m.Bonds)
	return c
}

// BondsOf returns the indices of the bonds incident to atom ai.  The molecule
// must be perceived.
func (m *Mol) BondsOf(ai int) []int {
	return m.adj[ai]
}

// Neighbors returns the atom indices adjacent to ai, in bond-insertion order.
func (m *Mol) Neighbors(ai int) []int {
	out := make([]int, 0, len(m.adj[ai]))
	for _, bi := range m.adj[ai] {
		out = append(out, m.Bonds[bi].Other(ai))
	}
	return out
}

// BondBetween returns the index of the bond joining a1 and a2, if any.
func (m *Mol) BondBetween(a1, a2 int) (int, bool) {
	for _, bi := range m.adj[a1] {
		if m.Bonds[bi].Other(a1) == a2 {
			return bi, true
		}
	}
	return -1, false
}

// Rings returns the perceived SSSR cycles as atom-index lists.
func (m *Mol) Rings() [][]int {
	return m.rings
}

// Degree returns the heavy-atom degree of atom ai.
func (m *Mol) Degree(ai int) int {
	return len(m.adj[ai])
}

// defaultValence maps an element to its ordered list of standard valences.
// The smallest valence that accommodates the bond-order sum wins.
var defaultValence = map[string][]int{
	"B":  {3},
	"C":  {4},
	"N":  {3},
	"O":  {2},
	"P":  {3, 5},
	"S":  {2, 4, 6},
	"F":  {1},
	"Cl": {1},
	"Br": {1},
	"I":  {1},
}

// IsHalogen reports whether the element symbol is a halogen.
func IsHalogen(element string) bool {
	switch element {
	case "F", "Cl", "Br", "I":
		return true
	}
	return false
}

// bondOrderSum returns the total bond order at atom ai, counting aromatic
// bonds as 1.5 and rounding the sum up.
func (m *Mol) bondOrderSum(ai int) int {
	sum := 0.0
	for _, bi := range m.adj[ai] {
		b := &m.Bonds[bi]
		if b.Aromatic {
			sum += 1.5
		} else {
			sum += float64(b.Order)
		}
	}
	if sum != float64(int(sum)) {
		return int(sum) + 1
	}
	return int(sum)
}

// Perceive finalizes the graph: builds adjacency, marks ring bonds and atoms,
// extracts the SSSR, and derives implicit hydrogen counts for atoms whose
// HCount is unset (-1).  It is idempotent and must be called after any
// structural mutation before read paths are used.
func (m *Mol) Perceive() error {
	if m.perceived {
		return nil
	}
	if len(m.Atoms) == 0 {
		return errors.New(errors.CodeEmptyMolecule, "molecule has no atoms")
	}

	m.adj = make([][]int, len(m.Atoms))
	for bi := range m.Bonds {
		b := &m.Bonds[bi]
		if b.A1 < 0 || b.A1 >= len(m.Atoms) || b.A2 < 0 || b.A2 >= len(m.Atoms) {
			return errors.Newf(errors.CodeAtomOutOfRange, "bond %d references missing atom", bi)
		}
		m.adj[b.A1] = append(m.adj[b.A1], bi)
		m.adj[b.A2] = append(m.adj[b.A2], bi)
	}

	m.markRingBonds()
	// An aromatic bond can only live on a ring; a bond written between two
	// aromatic atoms outside any cycle (e.g. the biaryl linker) is single.
	for bi := range m.Bonds {
		if m.Bonds[bi].Aromatic && !m.Bonds[bi].InRing {
			m.Bonds[bi].Aromatic = false
			m.Bonds[bi].Order = BondSingle
		}
	}
	m.rings = m.findSSSR()
	for ai := range m.Atoms {
		m.Atoms[ai].InRing = false
		if !m.Atoms[ai].Aromatic {
			continue
		}
		hasAromaticBond := false
		for _, bi := range m.adj[ai] {
			if m.Bonds[bi].Aromatic {
				hasAromaticBond = true
				break
			}
		}
		m.Atoms[ai].Aromatic = hasAromaticBond
	}
	for bi := range m.Bonds {
		if m.Bonds[bi].InRing {
			m.Atoms[m.Bonds[bi].A1].InRing = true
			m.Atoms[m.Bonds[bi].A2].InRing = true
		}
	}

	for ai := range m.Atoms {
		if m.Atoms[ai].HCount >= 0 {
			continue
		}
		h, err := m.deriveHCount(ai)
		if err != nil {
			return err
		}
		m.Atoms[ai].HCount = h
	}

	m.perceived = true
	return nil
}

// deriveHCount applies the standard valence model: the implicit hydrogen
// count is the smallest default valence (charge-adjusted) minus the bond
// order sum, floored at zero.
func (m *Mol) deriveHCount(ai int) (int, error) {
	a := &m.Atoms[ai]
	valences, ok := defaultValence[a.Element]
	if !ok {
		return 0, errors.Newf(errors.CodeUnknownElement, "no valence model for element %q", a.Element)
	}
	sum := m.bondOrderSum(ai)
	for _, v := range valences {
		v += a.Charge
		if v >= sum {
			return v - sum, nil
		}
	}
	return 0, nil
}

// NormalizeHalogens rewrites every Br and I atom to Cl in place.  Fluorine is
// left untouched: F is rarely a leaving group, so it stays a structural
// feature rather than an interchangeable reactive handle.  Returns the number
// of atoms rewritten.
func (m *Mol) NormalizeHalogens() int {
	n := 0
	for ai := range m.Atoms {
		switch m.Atoms[ai].Element {
		case "Br", "I":
			m.Atoms[ai].Element = "Cl"
			n++
		}
	}
	if n > 0 {
		m.perceived = false
	}
	return n
}

// Fragments returns the connected components as sorted atom-index lists,
// ordered by their smallest member.
func (m *Mol) Fragments() [][]int {
	seen := make([]bool, len(m.Atoms))
	var comps [][]int
	for start := range m.Atoms {
		if seen[start] {
			continue
		}
		var comp []int
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			ai := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, ai)
			for _, ni := range m.Neighbors(ai) {
				if !seen[ni] {
					seen[ni] = true
					stack = append(stack, ni)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}

// ExtractFragment copies the induced subgraph over the given atom indices
// into a fresh, unperceived molecule.
func (m *Mol) ExtractFragment(atomIdx []int) *Mol {
	remap := make(map[int]int, len(atomIdx))
	frag := NewMol()
	for _, ai := range atomIdx {
		remap[ai] = frag.AddAtom(m.Atoms[ai])
	}
	for bi := range m.Bonds {
		b := &m.Bonds[bi]
		n1, ok1 := remap[b.A1]
		n2, ok2 := remap[b.A2]
		if ok1 && ok2 {
			frag.AddBond(n1, n2, b.Order, b.Aromatic)
		}
	}
	return frag
}
