package chem

import (
	"fmt"
	"sort"
	"strings"

	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// canonicalRanks assigns every atom a rank that depends only on the molecular
// graph, not on atom input order.  Ranks start from element-level invariants
// and are refined iteratively with sorted neighbor signatures until the
// partition stabilizes, in the manner of Weisfeiler-Lehman colour refinement.
func (m *Mol) canonicalRanks() []int {
	inv := make([]string, len(m.Atoms))
	for ai := range m.Atoms {
		a := &m.Atoms[ai]
		inv[ai] = fmt.Sprintf("%s|%t|%d|%d|%d", a.Element, a.Aromatic, a.Charge, a.HCount, len(m.adj[ai]))
	}
	return m.refineRanks(denseRanks(inv))
}

// refineRanks iterates colour refinement from the given starting partition
// until the class count stops growing.
func (m *Mol) refineRanks(ranks []int) []int {
	n := len(m.Atoms)
	for iter := 0; iter < n; iter++ {
		next := make([]string, n)
		for ai := range m.Atoms {
			sigs := make([]string, 0, len(m.adj[ai]))
			for _, bi := range m.adj[ai] {
				b := &m.Bonds[bi]
				code := b.Order
				if b.Aromatic {
					code = 4
				}
				sigs = append(sigs, fmt.Sprintf("%d:%06d", code, ranks[b.Other(ai)]))
			}
			sort.Strings(sigs)
			next[ai] = fmt.Sprintf("%06d|%s", ranks[ai], strings.Join(sigs, ","))
		}
		refined := denseRanks(next)
		if classCount(refined) == classCount(ranks) {
			break
		}
		ranks = refined
	}
	return ranks
}

func denseRanks(inv []string) []int {
	sorted := make([]string, len(inv))
	copy(sorted, inv)
	sort.Strings(sorted)
	rank := make(map[string]int, len(inv))
	for _, s := range sorted {
		if _, ok := rank[s]; !ok {
			rank[s] = len(rank)
		}
	}
	out := make([]int, len(inv))
	for i, s := range inv {
		out[i] = rank[s]
	}
	return out
}

func classCount(ranks []int) int {
	seen := make(map[int]bool, len(ranks))
	for _, r := range ranks {
		seen[r] = true
	}
	return len(seen)
}

func denseInts(vals []int) []int {
	sorted := make([]int, len(vals))
	copy(sorted, vals)
	sort.Ints(sorted)
	rank := make(map[int]int, len(vals))
	for _, v := range sorted {
		if _, ok := rank[v]; !ok {
			rank[v] = len(rank)
		}
	}
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = rank[v]
	}
	return out
}

// promoteAtom splits atom ai into its own rank class just below its former
// classmates and re-refines.  This resolves ties that colour refinement alone
// cannot break.
func (m *Mol) promoteAtom(ranks []int, ai int) []int {
	doubled := make([]int, len(ranks))
	for i, r := range ranks {
		doubled[i] = 2*r + 1
	}
	doubled[ai] = 2 * ranks[ai]
	return m.refineRanks(denseInts(doubled))
}

// CanonicalKey serializes the molecule into a canonical SMILES-like string.
// Two structurally identical fragments yield byte-identical keys regardless
// of atom input order.  Disconnected components are serialized independently
// and joined with '.' in sorted order.  The molecule must be perceived.
func (m *Mol) CanonicalKey() (string, error) {
	if !m.perceived {
		if err := m.Perceive(); err != nil {
			return "", errors.Wrap(err, errors.CodeCanonicalizeFailed, "perception before canonicalization failed")
		}
	}
	ranks := m.canonicalRanks()

	var parts []string
	for _, comp := range m.Fragments() {
		s, err := m.componentKey(comp, ranks)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	sort.Strings(parts)
	return strings.Join(parts, "."), nil
}

// componentKey serializes one connected component.  Colour refinement can
// leave several atoms sharing a rank: for truly equivalent atoms any choice
// between them yields the same string, but on regular scaffolds the class may
// hide structural differences.  Promoting each member of the smallest tied
// class in turn and keeping the lexicographically smallest serialization
// makes the key a function of the graph alone, independent of atom and bond
// input order.
func (m *Mol) componentKey(comp []int, ranks []int) (string, error) {
	counts := make(map[int]int, len(comp))
	for _, ai := range comp {
		counts[ranks[ai]]++
	}
	tied := -1
	for _, ai := range comp {
		if r := ranks[ai]; counts[r] > 1 && (tied == -1 || r < tied) {
			tied = r
		}
	}
	if tied >= 0 {
		best := ""
		for _, ai := range comp {
			if ranks[ai] != tied {
				continue
			}
			s, err := m.componentKey(comp, m.promoteAtom(ranks, ai))
			if err != nil {
				return "", err
			}
			if best == "" || s < best {
				best = s
			}
		}
		return best, nil
	}

	root := comp[0]
	for _, ai := range comp {
		if ranks[ai] < ranks[root] {
			root = ai
		}
	}
	return m.serializeFrom(root, ranks)
}

type keyWriter struct {
	mol       *Mol
	ranks     []int
	visited   []bool
	treeBond  []bool // bonds on the DFS spanning tree
	closures  map[int][]closure
	nextNum   int
	freedNums []int
	sb        strings.Builder
}

type closure struct {
	bond int
	num  int
}

// serializeFrom emits the component containing root as a SMILES-like string.
// A first DFS pass fixes the spanning tree and back edges under a
// rank-ordered neighbor traversal; the second pass writes tokens, emitting
// ring-closure digits at both endpoints of every back edge.
func (m *Mol) serializeFrom(root int, ranks []int) (string, error) {
	w := &keyWriter{
		mol:      m,
		ranks:    ranks,
		visited:  make([]bool, len(m.Atoms)),
		treeBond: make([]bool, len(m.Bonds)),
		closures: map[int][]closure{},
		nextNum:  1,
	}
	w.markTree(root, -1)

	for i := range w.visited {
		w.visited[i] = false
	}
	w.walk(root, -1)
	return w.sb.String(), nil
}

func (w *keyWriter) orderedBonds(ai, parentBond int) []int {
	bonds := make([]int, 0, len(w.mol.adj[ai]))
	for _, bi := range w.mol.adj[ai] {
		if bi != parentBond {
			bonds = append(bonds, bi)
		}
	}
	// Ranks are a total order within the component by the time serialization
	// runs, so neighbor rank alone decides the traversal.
	sort.Slice(bonds, func(x, y int) bool {
		return w.ranks[w.mol.Bonds[bonds[x]].Other(ai)] < w.ranks[w.mol.Bonds[bonds[y]].Other(ai)]
	})
	return bonds
}

func (w *keyWriter) markTree(ai, parentBond int) {
	w.visited[ai] = true
	for _, bi := range w.orderedBonds(ai, parentBond) {
		ni := w.mol.Bonds[bi].Other(ai)
		if w.visited[ni] {
			if !w.treeBond[bi] && !w.hasClosure(ai, bi) {
				num := w.allocNum()
				w.closures[ni] = append(w.closures[ni], closure{bond: bi, num: num})
				w.closures[ai] = append(w.closures[ai], closure{bond: bi, num: num})
			}
			continue
		}
		w.treeBond[bi] = true
		w.markTree(ni, bi)
	}
}

func (w *keyWriter) hasClosure(ai, bi int) bool {
	for _, c := range w.closures[ai] {
		if c.bond == bi {
			return true
		}
	}
	return false
}

func (w *keyWriter) allocNum() int {
	if len(w.freedNums) > 0 {
		num := w.freedNums[0]
		w.freedNums = w.freedNums[1:]
		return num
	}
	num := w.nextNum
	w.nextNum++
	return num
}

func (w *keyWriter) walk(ai, parentBond int) {
	w.visited[ai] = true
	w.sb.WriteString(w.atomToken(ai))

	for _, c := range w.closures[ai] {
		if w.visited[w.mol.Bonds[c.bond].Other(ai)] {
			// Closing side carries the bond symbol.
			w.sb.WriteString(w.bondToken(c.bond))
			w.freedNums = append(w.freedNums, c.num)
		}
		w.writeRingNum(c.num)
	}

	var children []int
	for _, bi := range w.orderedBonds(ai, parentBond) {
		if w.treeBond[bi] && !w.visited[w.mol.Bonds[bi].Other(ai)] {
			children = append(children, bi)
		}
	}
	for i, bi := range children {
		ni := w.mol.Bonds[bi].Other(ai)
		branch := i < len(children)-1
		if branch {
			w.sb.WriteByte('(')
		}
		w.sb.WriteString(w.bondToken(bi))
		w.walk(ni, bi)
		if branch {
			w.sb.WriteByte(')')
		}
	}
}

func (w *keyWriter) writeRingNum(num int) {
	if num < 10 {
		fmt.Fprintf(&w.sb, "%d", num)
		return
	}
	fmt.Fprintf(&w.sb, "%%%02d", num)
}

func (w *keyWriter) bondToken(bi int) string {
	b := &w.mol.Bonds[bi]
	if b.Aromatic {
		return ""
	}
	switch b.Order {
	case BondDouble:
		return "="
	case BondTriple:
		return "#"
	}
	// A single bond between two aromatic atoms must be explicit, otherwise a
	// reader would join the rings aromatically.
	if w.mol.Atoms[b.A1].Aromatic && w.mol.Atoms[b.A2].Aromatic {
		return "-"
	}
	return ""
}

func (w *keyWriter) atomToken(ai int) string {
	a := &w.mol.Atoms[ai]
	symbol := a.Element
	if a.Aromatic {
		symbol = strings.ToLower(symbol)
	}

	derived, err := w.mol.deriveHCount(ai)
	needBracket := a.Charge != 0 || err != nil || derived != a.HCount
	if !needBracket {
		return symbol
	}

	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(symbol)
	switch {
	case a.HCount == 1:
		sb.WriteByte('H')
	case a.HCount > 1:
		fmt.Fprintf(&sb, "H%d", a.HCount)
	}
	switch {
	case a.Charge > 1:
		fmt.Fprintf(&sb, "+%d", a.Charge)
	case a.Charge == 1:
		sb.WriteByte('+')
	case a.Charge == -1:
		sb.WriteByte('-')
	case a.Charge < -1:
		fmt.Fprintf(&sb, "-%d", -a.Charge)
	}
	sb.WriteByte(']')
	return sb.String()
}
