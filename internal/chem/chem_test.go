package chem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moleculab/synthon-sieve/pkg/errors"
)

func mustParse(t *testing.T, smiles string) *Mol {
	t.Helper()
	m, err := ParseSMILES(smiles)
	require.NoError(t, err, "smiles %q", smiles)
	return m
}

func mustKey(t *testing.T, smiles string) string {
	t.Helper()
	key, err := mustParse(t, smiles).CanonicalKey()
	require.NoError(t, err)
	return key
}

func TestParseBenzene(t *testing.T) {
	m := mustParse(t, "c1ccccc1")
	assert.Equal(t, 6, m.NumHeavyAtoms())
	assert.Len(t, m.Bonds, 6)
	for ai, a := range m.Atoms {
		assert.True(t, a.Aromatic, "atom %d", ai)
		assert.Equal(t, 1, a.HCount, "atom %d", ai)
		assert.True(t, a.InRing, "atom %d", ai)
	}
}

func TestParseBracketAtoms(t *testing.T) {
	m := mustParse(t, "c1cc[nH]c1")
	var nitrogen *Atom
	for ai := range m.Atoms {
		if m.Atoms[ai].Element == "N" {
			nitrogen = &m.Atoms[ai]
		}
	}
	require.NotNil(t, nitrogen)
	assert.Equal(t, 1, nitrogen.HCount)
	assert.True(t, nitrogen.Aromatic)

	m = mustParse(t, "[O-]C(=O)C")
	assert.Equal(t, -1, m.Atoms[0].Charge)
	assert.Equal(t, 0, m.Atoms[0].HCount)
}

func TestParseRejectsMalformedInput(t *testing.T) {
	for _, smiles := range []string{"", "c1ccc", "C(C", "C)", "[Xx]", "[C"} {
		_, err := ParseSMILES(smiles)
		require.Error(t, err, "smiles %q", smiles)
		code := errors.GetCode(err)
		assert.Contains(t, []errors.ErrorCode{
			errors.CodeInvalidSMILES, errors.CodeEmptyMolecule, errors.CodeUnknownElement,
		}, code, "smiles %q", smiles)
	}
}

func TestImplicitHydrogens(t *testing.T) {
	m := mustParse(t, "CC(=O)N")
	assert.Equal(t, 3, m.Atoms[0].HCount) // methyl
	assert.Equal(t, 0, m.Atoms[1].HCount) // carbonyl carbon
	assert.Equal(t, 0, m.Atoms[2].HCount) // carbonyl oxygen
	assert.Equal(t, 2, m.Atoms[3].HCount) // primary amide nitrogen

	m = mustParse(t, "CS(=O)(=O)C")
	assert.Equal(t, 0, m.Atoms[1].HCount) // hypervalent sulfur
}

func TestBiarylLinkerIsSingleBond(t *testing.T) {
	m := mustParse(t, "c1ccccc1c1ccccc1")
	linker := -1
	for bi := range m.Bonds {
		if !m.Bonds[bi].InRing {
			linker = bi
		}
	}
	require.GreaterOrEqual(t, linker, 0)
	assert.False(t, m.Bonds[linker].Aromatic)
	assert.Equal(t, BondSingle, m.Bonds[linker].Order)
}

func TestRingPerceptionAnthracene(t *testing.T) {
	m := mustParse(t, "c1ccc2cc3ccccc3cc2c1")
	stats := m.ComputeRingStats()
	assert.Equal(t, 3, stats.NumRings)
	assert.Equal(t, 6, stats.LargestRingSize)
	// Ortho-fused rings share only an edge, so each ring is its own unit.
	assert.Len(t, stats.Units, 3)
	assert.Equal(t, 3, stats.AromaticCarbocycles)
	assert.Equal(t, 0, stats.Heterocycles)
	assert.Equal(t, 0, stats.AlicyclicUnits)
}

func TestRingPerceptionNorbornane(t *testing.T) {
	m := mustParse(t, "C1CC2CCC1C2")
	stats := m.ComputeRingStats()
	assert.Equal(t, 2, stats.NumRings)
	// The bridged rings share three atoms and merge into one unit.
	require.Len(t, stats.Units, 1)
	assert.Equal(t, UnitAlicyclic, stats.Units[0].Kind)
	assert.Equal(t, 2, stats.Units[0].Rings)
	assert.Equal(t, 7, len(stats.Units[0].Atoms))
	assert.Equal(t, 0, stats.AcyclicMethylenes)
}

func TestRingPerceptionHeterocycles(t *testing.T) {
	pyridine := mustParse(t, "c1ccncc1").ComputeRingStats()
	assert.Equal(t, 1, pyridine.Heterocycles)
	assert.Equal(t, 0, pyridine.AromaticCarbocycles)

	piperidine := mustParse(t, "C1CCNCC1").ComputeRingStats()
	assert.Equal(t, 1, piperidine.Heterocycles)
	assert.Equal(t, 0, piperidine.AlicyclicUnits)
}

func TestAcyclicMethyleneCount(t *testing.T) {
	assert.Equal(t, 4, mustParse(t, "CCCCCC").ComputeRingStats().AcyclicMethylenes)
	assert.Equal(t, 0, mustParse(t, "C1CCCCC1").ComputeRingStats().AcyclicMethylenes)
	// The allylic CH2 counts; the sp2 carbons do not.
	assert.Equal(t, 1, mustParse(t, "C=CCC").ComputeRingStats().AcyclicMethylenes)
}

func TestCanonicalKeyRoundTrip(t *testing.T) {
	assert.Equal(t, "c1ccccc1", mustKey(t, "c1ccccc1"))
}

func TestCanonicalKeyOrderInvariance(t *testing.T) {
	cases := [][]string{
		{"c1ccncc1", "n1ccccc1", "c1cnccc1"},
		{"CC(=O)Nc1ccccc1", "O=C(C)Nc1ccccc1", "c1ccccc1NC(C)=O"},
		{"O=C(Cl)c1ccccc1", "ClC(=O)c1ccccc1", "c1ccccc1C(Cl)=O"},
		{"C1CC2CCC1C2", "C1C2CCC1CC2"},
		{"c1cc[nH]c1", "[nH]1cccc1"},
	}
	for _, group := range cases {
		ref := mustKey(t, group[0])
		for _, alt := range group[1:] {
			assert.Equal(t, ref, mustKey(t, alt), "%q vs %q", group[0], alt)
		}
	}
}

func TestCanonicalKeyCubaneConstructionOrder(t *testing.T) {
	// Cubane is 3-regular, so colour refinement alone cannot order its atoms;
	// the key must still come out identical for any construction order.
	edges := [][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		{4, 5}, {5, 6}, {6, 7}, {7, 4},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
	build := func(perm []int, reverseBonds bool) *Mol {
		m := NewMol()
		idx := make([]int, len(perm))
		for _, v := range perm {
			idx[v] = m.AddAtom(Atom{Element: "C", HCount: -1})
		}
		list := edges
		if reverseBonds {
			list = make([][2]int, len(edges))
			for i, e := range edges {
				list[len(edges)-1-i] = e
			}
		}
		for _, e := range list {
			m.AddBond(idx[e[0]], idx[e[1]], BondSingle, false)
		}
		require.NoError(t, m.Perceive())
		return m
	}

	a := build([]int{0, 1, 2, 3, 4, 5, 6, 7}, false)
	b := build([]int{5, 2, 7, 0, 3, 6, 1, 4}, true)

	keyA, err := a.CanonicalKey()
	require.NoError(t, err)
	keyB, err := b.CanonicalKey()
	require.NoError(t, err)
	assert.Equal(t, keyA, keyB)
}

func TestCanonicalKeyDistinguishesIsomers(t *testing.T) {
	assert.NotEqual(t, mustKey(t, "c1ccncc1"), mustKey(t, "c1ccccc1"))
	assert.NotEqual(t, mustKey(t, "CCO"), mustKey(t, "COC"))
	// Pyrrole vs pyridine-like nitrogen must stay distinct via [nH].
	assert.NotEqual(t, mustKey(t, "c1cc[nH]c1"), mustKey(t, "C1C=CC=N1"))
}

func TestNormalizeHalogens(t *testing.T) {
	m := mustParse(t, "Brc1ccc(I)cc1F")
	assert.Equal(t, 2, m.NormalizeHalogens())
	require.NoError(t, m.Perceive())

	counts := map[string]int{}
	for _, a := range m.Atoms {
		counts[a.Element]++
	}
	assert.Equal(t, 2, counts["Cl"])
	assert.Equal(t, 1, counts["F"])
	assert.Equal(t, 0, counts["Br"])
	assert.Equal(t, 0, counts["I"])

	key, err := m.CanonicalKey()
	require.NoError(t, err)
	assert.Equal(t, mustKey(t, "Clc1ccc(Cl)cc1F"), key)
}

func TestFragmentsAndExtraction(t *testing.T) {
	m := mustParse(t, "CCO.c1ccccc1")
	frags := m.Fragments()
	require.Len(t, frags, 2)

	ethanol := m.ExtractFragment(frags[0])
	require.NoError(t, ethanol.Perceive())
	key, err := ethanol.CanonicalKey()
	require.NoError(t, err)
	assert.Equal(t, mustKey(t, "CCO"), key)
}

func TestDescriptorShapeAndInvariance(t *testing.T) {
	desc := NewTopoPharmacophore()
	require.Equal(t, DescriptorDim, desc.Dim())

	v1, err := desc.Compute(mustParse(t, "CC(=O)Nc1ccccc1"))
	require.NoError(t, err)
	require.Len(t, v1, DescriptorDim)

	v2, err := desc.Compute(mustParse(t, "c1ccccc1NC(C)=O"))
	require.NoError(t, err)
	assert.InDeltaSlice(t, v1, v2, 1e-12)
}

func TestDescriptorBenzene(t *testing.T) {
	vec, err := NewTopoPharmacophore().Compute(mustParse(t, "c1ccccc1"))
	require.NoError(t, err)

	// All-atom mean hop distance from any benzene atom is (0+1+1+2+2+3)/6.
	assert.InDelta(t, 1.5, vec[0], 1e-12)
	// Benzene has no donors, acceptors, or halogens: those blocks are zero.
	for ref := 0; ref < 4; ref++ {
		base := ref * 15
		for _, off := range []int{3, 4, 5, 6, 7, 8, 12, 13, 14} {
			assert.Zero(t, vec[base+off], "ref %d offset %d", ref, off)
		}
	}
}
