// Package decompose implements retrosynthetic decomposition of compounds into
// canonical synthon multisets.  Each rule family reverses one robust coupling
// chemistry by cleaving the formed bond and capping the open valences with
// the reagents' leaving groups (chloride on the electrophilic side, hydrogen
// on the nucleophilic side).
package decompose

import (
	"github.com/moleculab/synthon-sieve/internal/chem"
)

// Family identifies a reaction rule family.
type Family string

const (
	FamilyAmide              Family = "amide"
	FamilySulfonamide        Family = "sulfonamide"
	FamilyBiaryl             Family = "biaryl"
	FamilyEther              Family = "ether"
	FamilyUreidation         Family = "ureidation"
	FamilyArylAmine          Family = "arylamine"
	FamilyAlkyne             Family = "alkyne"
	FamilyTriazole           Family = "triazole"
	FamilyReductiveAmination Family = "reductive_amination"
)

// DefaultEnabled returns the stock enable map: the three high-confidence
// couplings are on, the speculative families are off until explicitly
// requested in configuration.
func DefaultEnabled() map[Family]bool {
	return map[Family]bool{
		FamilyAmide:              true,
		FamilySulfonamide:        true,
		FamilyBiaryl:             true,
		FamilyEther:              false,
		FamilyUreidation:         false,
		FamilyArylAmine:          false,
		FamilyAlkyne:             false,
		FamilyTriazole:           false,
		FamilyReductiveAmination: false,
	}
}

// Cap describes how an open valence left by a cut is satisfied.  An empty
// Element means the atom gains an implicit hydrogen; otherwise a new
// single-bonded atom of that element is attached.
type Cap struct {
	Element string
}

var (
	capH  = Cap{}
	capCl = Cap{Element: "Cl"}
)

// Cut removes one bond and caps both ends.  CapA1 applies to the bond's A1
// atom, CapA2 to A2.
type Cut struct {
	Bond  int
	CapA1 Cap
	CapA2 Cap
}

// Cleavage is the action a rule proposes for a matched bond.  Most rules cut
// exactly the matched bond; ring-opening and bidentate rules (triazole,
// ureidation) cut several at once.  Every cut bond is consumed; Consumes may
// list further bonds to withhold from lower-priority rules.
type Cleavage struct {
	Cuts     []Cut
	Consumes []int
}

// orientCut builds a Cut whose caps are assigned by atom index rather than
// bond endpoint order.
func orientCut(m *chem.Mol, bi, atom1 int, cap1, cap2 Cap) Cut {
	if m.Bonds[bi].A1 == atom1 {
		return Cut{Bond: bi, CapA1: cap1, CapA2: cap2}
	}
	return Cut{Bond: bi, CapA1: cap2, CapA2: cap1}
}

// Rule matches a single bond and proposes a cleavage.  Match implementations
// must be pure: they read the perceived molecule and never mutate it.
type Rule struct {
	Family   Family
	Name     string
	Priority int
	Match    func(m *chem.Mol, bi int) (Cleavage, bool)
}

// AllRules returns every known rule in ascending priority order.
func AllRules() []Rule {
	return []Rule{
		{Family: FamilyAmide, Name: "amide coupling", Priority: 10, Match: matchAmide},
		{Family: FamilySulfonamide, Name: "sulfonamide formation", Priority: 20, Match: matchSulfonamide},
		{Family: FamilyBiaryl, Name: "biaryl coupling", Priority: 30, Match: matchBiaryl},
		{Family: FamilyUreidation, Name: "ureidation", Priority: 40, Match: matchUreidation},
		{Family: FamilyArylAmine, Name: "aryl amination", Priority: 50, Match: matchArylAmine},
		{Family: FamilyEther, Name: "ether formation", Priority: 60, Match: matchEther},
		{Family: FamilyAlkyne, Name: "alkyne coupling", Priority: 70, Match: matchAlkyne},
		{Family: FamilyTriazole, Name: "azide-alkyne cycloaddition", Priority: 80, Match: matchTriazole},
		{Family: FamilyReductiveAmination, Name: "reductive amination", Priority: 90, Match: matchReductiveAmination},
	}
}

func isPlainSingle(b *chem.Bond) bool {
	return b.Order == chem.BondSingle && !b.Aromatic
}

// splitNC returns the nitrogen and partner atom of bond bi when exactly one
// endpoint is nitrogen.
func splitNC(m *chem.Mol, bi int) (n, other int, ok bool) {
	b := &m.Bonds[bi]
	n1 := m.Atoms[b.A1].Element == "N"
	n2 := m.Atoms[b.A2].Element == "N"
	switch {
	case n1 && !n2:
		return b.A1, b.A2, true
	case n2 && !n1:
		return b.A2, b.A1, true
	}
	return 0, 0, false
}

// isCarbonyl reports whether atom ci is a non-aromatic carbon bearing a
// double-bonded oxygen.
func isCarbonyl(m *chem.Mol, ci int) bool {
	a := &m.Atoms[ci]
	if a.Element != "C" || a.Aromatic {
		return false
	}
	for _, bi := range m.BondsOf(ci) {
		b := &m.Bonds[bi]
		if b.Order == chem.BondDouble && m.Atoms[b.Other(ci)].Element == "O" {
			return true
		}
	}
	return false
}

// matchAmide reverses amide coupling: R-C(=O)-NR' becomes the acyl chloride
// and the free amine.  Guards: lactams (bond in ring) are left intact, the
// nitrogen must be secondary or tertiary, and ureas, carbamates and esters
// are excluded so the carbonyl side is a genuine acid-derived electrophile.
func matchAmide(m *chem.Mol, bi int) (Cleavage, bool) {
	b := &m.Bonds[bi]
	if !isPlainSingle(b) || b.InRing {
		return Cleavage{}, false
	}
	n, c, ok := splitNC(m, bi)
	if !ok || !isCarbonyl(m, c) {
		return Cleavage{}, false
	}
	if m.Degree(n) < 2 {
		return Cleavage{}, false
	}
	for _, nbi := range m.BondsOf(c) {
		if nbi == bi {
			continue
		}
		nb := &m.Bonds[nbi]
		other := nb.Other(c)
		if m.Atoms[other].Element == "N" {
			return Cleavage{}, false // ureido
		}
		if m.Atoms[other].Element == "O" && nb.Order == chem.BondSingle {
			return Cleavage{}, false // carbamate / ester
		}
	}
	return Cleavage{Cuts: []Cut{orientCut(m, bi, c, capCl, capH)}}, true
}

// matchSulfonamide reverses sulfonamide formation: R-S(=O)(=O)-NR' becomes
// the sulfonyl chloride and the amine.  Cyclic sulfonamides (sultams) and
// primary nitrogens are skipped.
func matchSulfonamide(m *chem.Mol, bi int) (Cleavage, bool) {
	b := &m.Bonds[bi]
	if !isPlainSingle(b) || b.InRing {
		return Cleavage{}, false
	}
	var n, s int
	switch {
	case m.Atoms[b.A1].Element == "N" && m.Atoms[b.A2].Element == "S":
		n, s = b.A1, b.A2
	case m.Atoms[b.A2].Element == "N" && m.Atoms[b.A1].Element == "S":
		n, s = b.A2, b.A1
	default:
		return Cleavage{}, false
	}
	doubleO := 0
	for _, nbi := range m.BondsOf(s) {
		nb := &m.Bonds[nbi]
		if nb.Order == chem.BondDouble && m.Atoms[nb.Other(s)].Element == "O" {
			doubleO++
		}
	}
	if doubleO < 2 || m.Degree(n) < 2 {
		return Cleavage{}, false
	}
	return Cleavage{Cuts: []Cut{orientCut(m, bi, s, capCl, capH)}}, true
}

// matchBiaryl reverses aryl-aryl cross-coupling: the single bond joining two
// aromatic carbons yields two aryl chlorides.
func matchBiaryl(m *chem.Mol, bi int) (Cleavage, bool) {
	b := &m.Bonds[bi]
	if !isPlainSingle(b) || b.InRing {
		return Cleavage{}, false
	}
	a1, a2 := &m.Atoms[b.A1], &m.Atoms[b.A2]
	if a1.Element != "C" || a2.Element != "C" || !a1.Aromatic || !a2.Aromatic {
		return Cleavage{}, false
	}
	return Cleavage{Cuts: []Cut{{Bond: bi, CapA1: capCl, CapA2: capCl}}}, true
}

// matchUreidation reverses urea formation: both N-C(=O) bonds of an acyclic
// urea are cut, yielding two amines and a phosgene-equivalent carbonyl core.
func matchUreidation(m *chem.Mol, bi int) (Cleavage, bool) {
	b := &m.Bonds[bi]
	if !isPlainSingle(b) || b.InRing {
		return Cleavage{}, false
	}
	_, c, ok := splitNC(m, bi)
	if !ok || !isCarbonyl(m, c) {
		return Cleavage{}, false
	}
	second := -1
	for _, nbi := range m.BondsOf(c) {
		if nbi == bi {
			continue
		}
		nb := &m.Bonds[nbi]
		if m.Atoms[nb.Other(c)].Element == "N" && isPlainSingle(nb) && !nb.InRing {
			second = nbi
			break
		}
	}
	if second < 0 {
		return Cleavage{}, false
	}
	return Cleavage{Cuts: []Cut{
		orientCut(m, bi, c, capCl, capH),
		orientCut(m, second, c, capCl, capH),
	}}, true
}

// matchArylAmine reverses aryl amination: Ar-NR2 yields the aryl chloride and
// the amine.  Amide and sulfonamide nitrogens are excluded so the dedicated
// families keep precedence even when they are disabled.
func matchArylAmine(m *chem.Mol, bi int) (Cleavage, bool) {
	b := &m.Bonds[bi]
	if !isPlainSingle(b) || b.InRing {
		return Cleavage{}, false
	}
	n, c, ok := splitNC(m, bi)
	if !ok || m.Atoms[n].Aromatic || !m.Atoms[c].Aromatic || m.Atoms[c].Element != "C" {
		return Cleavage{}, false
	}
	if m.Degree(n) < 2 {
		return Cleavage{}, false
	}
	for _, ni := range m.Neighbors(n) {
		if ni == c {
			continue
		}
		if isCarbonyl(m, ni) || m.Atoms[ni].Element == "S" {
			return Cleavage{}, false
		}
	}
	return Cleavage{Cuts: []Cut{orientCut(m, bi, c, capCl, capH)}}, true
}

// matchEther reverses Williamson ether (and thioether) synthesis: one C-X
// bond is cut into an alkyl chloride and the alcohol or thiol; the sibling
// C-X bond is consumed so the heteroatom is cleaved at most once.
func matchEther(m *chem.Mol, bi int) (Cleavage, bool) {
	b := &m.Bonds[bi]
	if !isPlainSingle(b) || b.InRing {
		return Cleavage{}, false
	}
	var c, x int
	switch {
	case m.Atoms[b.A1].Element == "C" && (m.Atoms[b.A2].Element == "O" || m.Atoms[b.A2].Element == "S"):
		c, x = b.A1, b.A2
	case m.Atoms[b.A2].Element == "C" && (m.Atoms[b.A1].Element == "O" || m.Atoms[b.A1].Element == "S"):
		c, x = b.A2, b.A1
	default:
		return Cleavage{}, false
	}
	if m.Atoms[x].Aromatic || m.Atoms[x].InRing || m.Degree(x) != 2 {
		return Cleavage{}, false
	}
	if m.Atoms[c].Aromatic || isCarbonyl(m, c) {
		return Cleavage{}, false
	}
	sibling := -1
	for _, nbi := range m.BondsOf(x) {
		if nbi == bi {
			continue
		}
		nb := &m.Bonds[nbi]
		other := nb.Other(x)
		if m.Atoms[other].Element != "C" || !isPlainSingle(nb) || isCarbonyl(m, other) {
			return Cleavage{}, false // ester or exotic linkage
		}
		sibling = nbi
	}
	if sibling < 0 {
		return Cleavage{}, false
	}
	return Cleavage{
		Cuts:     []Cut{orientCut(m, bi, c, capCl, capH)},
		Consumes: []int{sibling},
	}, true
}

// matchAlkyne reverses Sonogashira-type coupling: the single bond between an
// aromatic carbon and an sp carbon yields the aryl chloride and the terminal
// alkyne.
func matchAlkyne(m *chem.Mol, bi int) (Cleavage, bool) {
	b := &m.Bonds[bi]
	if !isPlainSingle(b) || b.InRing {
		return Cleavage{}, false
	}
	var aryl, sp int
	switch {
	case m.Atoms[b.A1].Aromatic && m.Atoms[b.A1].Element == "C":
		aryl, sp = b.A1, b.A2
	case m.Atoms[b.A2].Aromatic && m.Atoms[b.A2].Element == "C":
		aryl, sp = b.A2, b.A1
	default:
		return Cleavage{}, false
	}
	if m.Atoms[sp].Element != "C" || m.Atoms[sp].Aromatic {
		return Cleavage{}, false
	}
	hasTriple := false
	for _, nbi := range m.BondsOf(sp) {
		if m.Bonds[nbi].Order == chem.BondTriple {
			hasTriple = true
		}
	}
	if !hasTriple {
		return Cleavage{}, false
	}
	return Cleavage{Cuts: []Cut{orientCut(m, bi, aryl, capCl, capH)}}, true
}

// matchTriazole reverses azide-alkyne cycloaddition on a 1,2,3-triazole: the
// two ring C-N bonds flanking the N3 run are opened and hydrogen-capped,
// separating the azide-derived and alkyne-derived halves.
func matchTriazole(m *chem.Mol, bi int) (Cleavage, bool) {
	b := &m.Bonds[bi]
	if !b.Aromatic || !b.InRing {
		return Cleavage{}, false
	}
	if _, _, ok := splitNC(m, bi); !ok {
		return Cleavage{}, false
	}
	for _, ring := range m.Rings() {
		if len(ring) != 5 || !ringContainsBond(m, ring, bi) {
			continue
		}
		elems := make([]string, len(ring))
		aromatic := true
		for i, ai := range ring {
			elems[i] = m.Atoms[ai].Element
			aromatic = aromatic && m.Atoms[ai].Aromatic
		}
		if !aromatic {
			continue
		}
		// Locate the n-n-n run of a 1,2,3-triazole.
		start := -1
		for i := range ring {
			if elems[i] == "N" && elems[(i+1)%5] == "N" && elems[(i+2)%5] == "N" &&
				elems[(i+3)%5] == "C" && elems[(i+4)%5] == "C" {
				start = i
				break
			}
		}
		if start < 0 {
			continue
		}
		n1, n3 := ring[start], ring[(start+2)%5]
		c4, c5 := ring[(start+3)%5], ring[(start+4)%5]
		b1, ok1 := m.BondBetween(n3, c4)
		b2, ok2 := m.BondBetween(c5, n1)
		if !ok1 || !ok2 {
			continue
		}
		return Cleavage{Cuts: []Cut{
			orientCut(m, b1, n3, capH, capH),
			orientCut(m, b2, c5, capH, capH),
		}}, true
	}
	return Cleavage{}, false
}

// matchReductiveAmination reverses reductive amination: an acyclic N-CHx bond
// is cut into the amine and a chloride surrogate for the carbonyl partner.
func matchReductiveAmination(m *chem.Mol, bi int) (Cleavage, bool) {
	b := &m.Bonds[bi]
	if !isPlainSingle(b) || b.InRing {
		return Cleavage{}, false
	}
	n, c, ok := splitNC(m, bi)
	if !ok || m.Atoms[n].Aromatic || m.Atoms[c].Element != "C" || m.Atoms[c].Aromatic {
		return Cleavage{}, false
	}
	if m.Atoms[c].HCount < 1 || m.Degree(n) < 2 {
		return Cleavage{}, false
	}
	for _, nbi := range m.BondsOf(c) {
		if m.Bonds[nbi].Order != chem.BondSingle {
			return Cleavage{}, false // not sp3
		}
	}
	return Cleavage{Cuts: []Cut{orientCut(m, bi, c, capCl, capH)}}, true
}

func ringContainsBond(m *chem.Mol, ring []int, bi int) bool {
	for i := range ring {
		if nbi, ok := m.BondBetween(ring[i], ring[(i+1)%len(ring)]); ok && nbi == bi {
			return true
		}
	}
	return false
}
