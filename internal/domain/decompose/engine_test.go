package decompose

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moleculab/synthon-sieve/internal/chem"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	return e
}

func defaultEngine(t *testing.T) *Engine {
	return newTestEngine(t, DefaultConfig())
}

func parse(t *testing.T, smiles string) *chem.Mol {
	t.Helper()
	m, err := chem.ParseSMILES(smiles)
	require.NoError(t, err, "smiles %q", smiles)
	return m
}

func key(t *testing.T, smiles string) string {
	t.Helper()
	k, err := parse(t, smiles).CanonicalKey()
	require.NoError(t, err)
	return k
}

func keysOf(synthons []Synthon) []string {
	out := make([]string, len(synthons))
	for i, s := range synthons {
		out[i] = s.Key
	}
	return out
}

func TestAmideCleavage(t *testing.T) {
	synthons, err := defaultEngine(t).Decompose(parse(t, "O=C(Nc1ccccc1)c1ccccc1"))
	require.NoError(t, err)
	require.Len(t, synthons, 2)
	assert.ElementsMatch(t,
		[]string{key(t, "O=C(Cl)c1ccccc1"), key(t, "Nc1ccccc1")},
		keysOf(synthons))
}

func TestLactamLeftIntact(t *testing.T) {
	m := parse(t, "O=C1CCCCCN1")
	synthons, err := defaultEngine(t).Decompose(m)
	require.NoError(t, err)
	require.Len(t, synthons, 1)
	assert.Equal(t, key(t, "O=C1CCCCCN1"), synthons[0].Key)
	assert.Equal(t, m.NumHeavyAtoms(), synthons[0].HeavyAtoms)
}

func TestPrimaryAmideLeftIntact(t *testing.T) {
	synthons, err := defaultEngine(t).Decompose(parse(t, "NC(=O)c1ccccc1"))
	require.NoError(t, err)
	assert.Len(t, synthons, 1)
}

func TestUreidoGuardBlocksAmideRule(t *testing.T) {
	synthons, err := defaultEngine(t).Decompose(parse(t, "O=C(Nc1ccccc1)Nc1ccccc1"))
	require.NoError(t, err)
	assert.Len(t, synthons, 1)
}

func TestCarbamateGuardBlocksAmideRule(t *testing.T) {
	synthons, err := defaultEngine(t).Decompose(parse(t, "COC(=O)Nc1ccccc1"))
	require.NoError(t, err)
	assert.Len(t, synthons, 1)
}

func TestSulfonamideCleavage(t *testing.T) {
	synthons, err := defaultEngine(t).Decompose(parse(t, "CN(C)S(=O)(=O)c1ccccc1"))
	require.NoError(t, err)
	require.Len(t, synthons, 2)
	assert.ElementsMatch(t,
		[]string{key(t, "O=S(=O)(Cl)c1ccccc1"), key(t, "CNC")},
		keysOf(synthons))
}

func TestSultamLeftIntact(t *testing.T) {
	synthons, err := defaultEngine(t).Decompose(parse(t, "O=S1(=O)CCCN1C"))
	require.NoError(t, err)
	assert.Len(t, synthons, 1)
}

func TestBiarylCleavage(t *testing.T) {
	synthons, err := defaultEngine(t).Decompose(parse(t, "c1ccc(-c2ccncc2)cc1"))
	require.NoError(t, err)
	require.Len(t, synthons, 2)
	assert.ElementsMatch(t,
		[]string{key(t, "Clc1ccccc1"), key(t, "Clc1ccncc1")},
		keysOf(synthons))
}

func TestSimultaneousCleavages(t *testing.T) {
	// One amide bond and one biaryl bond: a single pass over the original
	// molecule must cut both and yield three synthons.
	synthons, err := defaultEngine(t).Decompose(parse(t, "CC(=O)Nc1ccc(-c2ccccc2)cc1"))
	require.NoError(t, err)
	require.Len(t, synthons, 3)
	assert.ElementsMatch(t,
		[]string{key(t, "CC(=O)Cl"), key(t, "Nc1ccc(Cl)cc1"), key(t, "Clc1ccccc1")},
		keysOf(synthons))
}

func TestDuplicateSynthonsPreserved(t *testing.T) {
	// A symmetric dianilide releases aniline twice; the multiset keeps both.
	synthons, err := defaultEngine(t).Decompose(parse(t, "O=C(Nc1ccccc1)c1ccc(C(=O)Nc2ccccc2)cc1"))
	require.NoError(t, err)
	require.Len(t, synthons, 3)

	aniline := key(t, "Nc1ccccc1")
	count := 0
	for _, s := range synthons {
		if s.Key == aniline {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestResultSortedByKey(t *testing.T) {
	synthons, err := defaultEngine(t).Decompose(parse(t, "CC(=O)Nc1ccc(-c2ccccc2)cc1"))
	require.NoError(t, err)
	keys := keysOf(synthons)
	assert.True(t, sort.StringsAreSorted(keys), "keys %v", keys)
}

func TestNoMatchReturnsNormalizedMolecule(t *testing.T) {
	synthons, err := defaultEngine(t).Decompose(parse(t, "Ic1ccccc1"))
	require.NoError(t, err)
	require.Len(t, synthons, 1)
	assert.Equal(t, key(t, "Clc1ccccc1"), synthons[0].Key)
}

func TestHalogenNormalizationToggle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NormalizeHalogens = false
	engine := newTestEngine(t, cfg)

	synthons, err := engine.Decompose(parse(t, "Brc1ccc(-c2ccccc2)cc1"))
	require.NoError(t, err)
	require.Len(t, synthons, 2)
	assert.Contains(t, keysOf(synthons), key(t, "Brc1ccc(Cl)cc1"))
}

func TestInputMoleculeNotMutated(t *testing.T) {
	m := parse(t, "O=C(Nc1ccccc1)c1ccccc1")
	atoms, bonds := len(m.Atoms), len(m.Bonds)
	_, err := defaultEngine(t).Decompose(m)
	require.NoError(t, err)
	assert.Equal(t, atoms, len(m.Atoms))
	assert.Equal(t, bonds, len(m.Bonds))
}

func TestDisabledFamilyDoesNotFire(t *testing.T) {
	synthons, err := defaultEngine(t).Decompose(parse(t, "CCOCC"))
	require.NoError(t, err)
	assert.Len(t, synthons, 1)
}

func TestEtherFamilyWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled[FamilyEther] = true
	engine := newTestEngine(t, cfg)

	synthons, err := engine.Decompose(parse(t, "CCOCC"))
	require.NoError(t, err)
	require.Len(t, synthons, 2)
	assert.ElementsMatch(t,
		[]string{key(t, "CCCl"), key(t, "CCO")},
		keysOf(synthons))
}

func TestEsterGuardBlocksEtherRule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled[FamilyEther] = true
	engine := newTestEngine(t, cfg)

	synthons, err := engine.Decompose(parse(t, "CC(=O)OC"))
	require.NoError(t, err)
	assert.Len(t, synthons, 1)
}

func TestUreidationWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled[FamilyUreidation] = true
	engine := newTestEngine(t, cfg)

	synthons, err := engine.Decompose(parse(t, "O=C(Nc1ccccc1)Nc1ccccc1"))
	require.NoError(t, err)
	require.Len(t, synthons, 3)

	aniline := key(t, "Nc1ccccc1")
	count := 0
	for _, s := range synthons {
		if s.Key == aniline {
			count++
		}
	}
	assert.Equal(t, 2, count)
	assert.Contains(t, keysOf(synthons), key(t, "O=C(Cl)Cl"))
}

func TestArylAmineSkipsAmideNitrogen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled[FamilyArylAmine] = true
	engine := newTestEngine(t, cfg)

	// Acetanilide: the N-aryl bond must not be touched because the nitrogen
	// belongs to an amide; only the amide rule fires.
	synthons, err := engine.Decompose(parse(t, "CC(=O)Nc1ccccc1"))
	require.NoError(t, err)
	require.Len(t, synthons, 2)
	assert.ElementsMatch(t,
		[]string{key(t, "CC(=O)Cl"), key(t, "Nc1ccccc1")},
		keysOf(synthons))
}

func TestArylAmineWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled[FamilyArylAmine] = true
	engine := newTestEngine(t, cfg)

	synthons, err := engine.Decompose(parse(t, "CN(C)c1ccccc1"))
	require.NoError(t, err)
	require.Len(t, synthons, 2)
	assert.ElementsMatch(t,
		[]string{key(t, "Clc1ccccc1"), key(t, "CNC")},
		keysOf(synthons))
}

func TestReductiveAminationWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled[FamilyReductiveAmination] = true
	engine := newTestEngine(t, cfg)

	synthons, err := engine.Decompose(parse(t, "C1CCN(Cc2ccccc2)CC1"))
	require.NoError(t, err)
	require.Len(t, synthons, 2)
	assert.ElementsMatch(t,
		[]string{key(t, "ClCc1ccccc1"), key(t, "C1CCNCC1")},
		keysOf(synthons))
}

func TestAlkyneCouplingWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled[FamilyAlkyne] = true
	engine := newTestEngine(t, cfg)

	synthons, err := engine.Decompose(parse(t, "CC#Cc1ccccc1"))
	require.NoError(t, err)
	require.Len(t, synthons, 2)
	assert.ElementsMatch(t,
		[]string{key(t, "Clc1ccccc1"), key(t, "CC#C")},
		keysOf(synthons))
}

func TestTriazoleWhenEnabled(t *testing.T) {
	enabled := map[Family]bool{}
	for fam := range DefaultEnabled() {
		enabled[fam] = false
	}
	enabled[FamilyTriazole] = true
	engine := newTestEngine(t, Config{Enabled: enabled, NormalizeHalogens: true})

	synthons, err := engine.Decompose(parse(t, "Cc1cn(C)nn1"))
	require.NoError(t, err)
	require.Len(t, synthons, 2)

	nitrogens := func(m *chem.Mol) int {
		n := 0
		for _, a := range m.Atoms {
			if a.Element == "N" {
				n++
			}
		}
		return n
	}
	// One half carries the whole azide-derived N3 run, the other none.
	counts := []int{nitrogens(synthons[0].Mol), nitrogens(synthons[1].Mol)}
	assert.ElementsMatch(t, []int{3, 0}, counts)
}

func TestUnknownFamilyRejected(t *testing.T) {
	_, err := NewEngine(Config{Enabled: map[Family]bool{"bogus": true}}, logging.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeUnknownRuleFamily))
}

func TestFamiliesReflectConfig(t *testing.T) {
	engine := defaultEngine(t)
	assert.Equal(t, []Family{FamilyAmide, FamilySulfonamide, FamilyBiaryl}, engine.Families())
}
