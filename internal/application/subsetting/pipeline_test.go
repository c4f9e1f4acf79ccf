package subsetting

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moleculab/synthon-sieve/internal/chem"
	"github.com/moleculab/synthon-sieve/internal/domain/amicability"
	"github.com/moleculab/synthon-sieve/internal/domain/boringness"
	"github.com/moleculab/synthon-sieve/internal/domain/decompose"
	"github.com/moleculab/synthon-sieve/internal/domain/library"
	"github.com/moleculab/synthon-sieve/internal/domain/similarity"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
)

type recordingMetrics struct {
	mu        sync.Mutex
	processed int
	accepted  int
	failed    int
	observed  int
}

func (m *recordingMetrics) CompoundProcessed(acceptable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed++
	if acceptable {
		m.accepted++
	}
}

func (m *recordingMetrics) CompoundFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
}

func (m *recordingMetrics) ObserveScoringDuration(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed++
}

func testPipeline(t *testing.T, cfg Config, metrics Metrics) *Pipeline {
	t.Helper()
	engine, err := decompose.NewEngine(decompose.DefaultConfig(), logging.NewNopLogger())
	require.NoError(t, err)

	desc := chem.NewTopoPharmacophore()
	builder := library.NewBuilder(engine, desc,
		library.BuilderConfig{NormalizeTo: 0, MinSampleSize: 1}, logging.NewNopLogger())

	sample := []string{"CC(=O)Nc1ccncc1", "CC(=O)Nc1ccccc1"}
	mols := make([]*chem.Mol, len(sample))
	for i, s := range sample {
		m, err := chem.ParseSMILES(s)
		require.NoError(t, err)
		mols[i] = m
	}
	lib, err := builder.Build(context.Background(), mols, nil)
	require.NoError(t, err)

	counter := similarity.NewParallelCounter(similarity.NewMomentDistance(), similarity.Options{Threshold: 0.7}, 2)
	scorer := amicability.NewScorer(engine, desc, counter, lib, nil, logging.NewNopLogger())
	return NewPipeline(scorer, boringness.New(boringness.Weights{}), cfg, metrics, logging.NewNopLogger())
}

func compounds() []Compound {
	return []Compound{
		{ID: "keep-1", SMILES: "CC(=O)Nc1ccncc1"},  // pyridine: boringness -0.5
		{ID: "drop-1", SMILES: "CC(=O)Nc1ccccc1"},  // benzene: boringness +1
		{ID: "keep-2", SMILES: "CCC(=O)Nc1ccncc1"}, // pyridine again
	}
}

func TestRunFiltersBoringCompounds(t *testing.T) {
	p := testPipeline(t, Config{Workers: 2}, nil)
	sink := NewSliceSink()

	summary, err := p.Run(context.Background(), NewSliceSource(compounds()), sink)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Retained)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.Issues["boring structure"])
	assert.NotEmpty(t, summary.RunID)

	got := sink.Verdicts()
	require.Len(t, got, 2, "normal mode forwards only acceptable verdicts")
	for _, v := range got {
		assert.True(t, v.Acceptable)
		assert.Negative(t, v.Boringness)
		assert.Greater(t, v.Amicability, 0.0)
		assert.Greater(t, v.NumSynthons, 1)
	}
}

func TestRunAnalysisModeForwardsEverything(t *testing.T) {
	p := testPipeline(t, Config{Workers: 2, AnalysisMode: true}, nil)
	sink := NewSliceSink()

	_, err := p.Run(context.Background(), NewSliceSource(compounds()), sink)
	require.NoError(t, err)

	got := sink.Verdicts()
	require.Len(t, got, 3)
	rejected := 0
	for _, v := range got {
		if !v.Acceptable {
			rejected++
			assert.Equal(t, "boring structure", v.Issue)
			assert.Greater(t, v.Amicability, 0.0, "rejected verdicts still carry metrics")
		}
	}
	assert.Equal(t, 1, rejected)
}

func TestRunIsolatesPerCompoundFailures(t *testing.T) {
	metrics := &recordingMetrics{}
	p := testPipeline(t, Config{Workers: 2}, metrics)

	in := append(compounds(), Compound{ID: "bad", SMILES: "not_a_smiles"})
	summary, err := p.Run(context.Background(), NewSliceSource(in), NewSliceSink())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Retained)
	assert.Equal(t, 1, metrics.failed)
	assert.Equal(t, 3, metrics.processed)
	assert.Equal(t, 2, metrics.accepted)
}

func TestRunAppliesCutoffs(t *testing.T) {
	cfg := Config{Workers: 1, Cutoffs: Cutoffs{MaxHeavyAtoms: 5}}
	p := testPipeline(t, cfg, nil)
	sink := NewSliceSink()

	summary, err := p.Run(context.Background(), NewSliceSource(compounds()), sink)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Retained)
	assert.Len(t, sink.Verdicts(), 0)
	// Boringness is judged before size, so only the non-boring compounds
	// report the heavy-atom issue.
	total := 0
	for issue, n := range summary.Issues {
		total += n
		assert.Contains(t, []string{"boring structure", "too many heavy atoms (10 > 5)", "too many heavy atoms (11 > 5)"}, issue)
	}
	assert.Equal(t, 3, total)
}

func TestAssessRejectsUnwantedMotifs(t *testing.T) {
	p := testPipeline(t, Config{}, nil)

	v, err := p.Assess(context.Background(), Compound{ID: "hz", SMILES: "CNNc1ccncc1"})
	require.NoError(t, err)
	assert.False(t, v.Acceptable)
	assert.Equal(t, "contains hydrazine", v.Issue)
}

func TestAssessLargestRingCutoff(t *testing.T) {
	p := testPipeline(t, Config{Cutoffs: Cutoffs{MaxLargestRingSize: 8}}, nil)

	// Cyclononane survives the boringness gate (alicyclic units score
	// negative) but its macrocycle trips the ring-size cutoff.
	v, err := p.Assess(context.Background(), Compound{ID: "c9", SMILES: "C1CCCCCCCC1"})
	require.NoError(t, err)
	assert.False(t, v.Acceptable)
	assert.Equal(t, "largest ring size 9 above 8", v.Issue)
	assert.Equal(t, 1, v.NumRings)
	assert.Equal(t, 9, v.LargestRingSize)
	assert.Equal(t, 0, v.Methylenes)
}

func TestCutoffsAssessOrder(t *testing.T) {
	c := Cutoffs{MinHeavyAtoms: 5, MinRings: 1, MaxMethylenes: 6, MinSynthons: 2, MinAmicability: 10}

	v := &Verdict{HeavyAtoms: 3, NumRings: 0, Methylenes: 9, NumSynthons: 1, Amicability: 1}
	ok, issue := c.Assess(v)
	assert.False(t, ok)
	assert.Contains(t, issue, "heavy atoms")

	v.HeavyAtoms = 6
	_, issue = c.Assess(v)
	assert.Contains(t, issue, "rings")

	v.NumRings = 1
	_, issue = c.Assess(v)
	assert.Contains(t, issue, "methylenes")

	v.Methylenes = 2
	_, issue = c.Assess(v)
	assert.Contains(t, issue, "synthons")

	v.NumSynthons = 3
	_, issue = c.Assess(v)
	assert.Contains(t, issue, "amicability")

	v.Amicability = 11
	ok, issue = c.Assess(v)
	assert.True(t, ok)
	assert.Empty(t, issue)
}

func TestTierFor(t *testing.T) {
	bounds := DefaultTierBounds
	assert.Equal(t, TierZ0, TierFor(0.2, bounds))
	assert.Equal(t, TierZ05, TierFor(0.6, bounds))
	assert.Equal(t, TierZ08, TierFor(0.9, bounds))
	assert.Equal(t, TierZ1, TierFor(1.5, bounds))
}

func TestLineSource(t *testing.T) {
	input := "# header comment\nCC(=O)Nc1ccccc1\tCMPD-1\n\nc1ccncc1\n"
	src := NewLineSource(strings.NewReader(input))

	first, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, Compound{ID: "CMPD-1", SMILES: "CC(=O)Nc1ccccc1"}, first)

	second, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "c1ccncc1", second.SMILES)
	assert.Equal(t, "line-4", second.ID)

	_, err = src.Next()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestTSVSinkFormat(t *testing.T) {
	var buf bytes.Buffer
	sink := NewTSVSink(&buf)

	v := Verdict{CompoundID: "c1", SMILES: "CCO", Acceptable: true, HeavyAtoms: 3, NumSynthons: 1, Tier: TierZ0}
	require.NoError(t, sink.Write(context.Background(), v))
	require.NoError(t, sink.Close(context.Background()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "compound_id\tsmiles"))
	assert.Contains(t, lines[1], "c1\tCCO\ttrue")
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := NewSliceSink(), NewSliceSink()
	multi := NewMultiSink(a, b)

	require.NoError(t, multi.Write(context.Background(), Verdict{CompoundID: "x"}))
	require.NoError(t, multi.Close(context.Background()))
	assert.Len(t, a.Verdicts(), 1)
	assert.Len(t, b.Verdicts(), 1)
}
