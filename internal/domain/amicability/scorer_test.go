package amicability

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moleculab/synthon-sieve/internal/chem"
	"github.com/moleculab/synthon-sieve/internal/domain/decompose"
	"github.com/moleculab/synthon-sieve/internal/domain/library"
	"github.com/moleculab/synthon-sieve/internal/domain/similarity"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]float64
	gets    int
	hits    int
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]float64)}
}

func (c *memoryCache) Get(_ context.Context, key string) (float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, tally float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = tally
	return nil
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (float64, bool, error) {
	return 0, false, assert.AnError
}
func (failingCache) Set(context.Context, string, float64) error { return assert.AnError }

type countingCounter struct {
	inner similarity.Counter
	calls int
}

func (c *countingCounter) NeighborTallies(ctx context.Context, queries [][]float64, lib *library.Library) ([]float64, error) {
	c.calls++
	return c.inner.NeighborTallies(ctx, queries, lib)
}

func testEngine(t *testing.T) *decompose.Engine {
	t.Helper()
	e, err := decompose.NewEngine(decompose.DefaultConfig(), logging.NewNopLogger())
	require.NoError(t, err)
	return e
}

func parse(t *testing.T, smiles string) *chem.Mol {
	t.Helper()
	m, err := chem.ParseSMILES(smiles)
	require.NoError(t, err)
	return m
}

// buildLibrary decomposes the given compounds into a normalization-free
// library, optionally spiking extra synthons.
func buildLibrary(t *testing.T, engine *decompose.Engine, sample []string, spikes []library.SpikeIn) *library.Library {
	t.Helper()
	builder := library.NewBuilder(engine, chem.NewTopoPharmacophore(),
		library.BuilderConfig{NormalizeTo: 0, MinSampleSize: 1, SpikeInWeight: 100},
		logging.NewNopLogger())
	mols := make([]*chem.Mol, len(sample))
	for i, s := range sample {
		mols[i] = parse(t, s)
	}
	lib, err := builder.Build(context.Background(), mols, spikes)
	require.NoError(t, err)
	return lib
}

func newTestScorer(t *testing.T, lib *library.Library, cache TallyCache, counter similarity.Counter) *Scorer {
	t.Helper()
	if counter == nil {
		counter = similarity.NewScanCounter(similarity.NewMomentDistance(), similarity.Options{Threshold: 0.7})
	}
	return NewScorer(testEngine(t), chem.NewTopoPharmacophore(), counter, lib, cache, logging.NewNopLogger())
}

func TestScoreCountsMultiplicity(t *testing.T) {
	engine := testEngine(t)
	lib := buildLibrary(t, engine, []string{"CC(=O)Nc1ccccc1"}, nil)
	scorer := newTestScorer(t, lib, nil, nil)

	single, err := scorer.Score(context.Background(), parse(t, "CC(=O)Nc1ccccc1"))
	require.NoError(t, err)
	// The symmetric dianilide releases aniline twice; its tally must count
	// twice in the sum.
	double, err := scorer.Score(context.Background(), parse(t, "O=C(Nc1ccccc1)c1ccc(C(=O)Nc2ccccc2)cc1"))
	require.NoError(t, err)

	anilineKey := mustCanonical(t, "Nc1ccccc1")
	anilineTally := single.PerSynthon[anilineKey]
	require.Greater(t, anilineTally, 0.0)
	assert.InDelta(t, 2*anilineTally, double.Score-double.PerSynthon[otherKey(double, anilineKey)], 1e-9)
}

func otherKey(r Result, exclude string) string {
	for k := range r.PerSynthon {
		if k != exclude {
			return k
		}
	}
	return ""
}

func mustCanonical(t *testing.T, smiles string) string {
	t.Helper()
	m, err := chem.ParseSMILES(smiles)
	require.NoError(t, err)
	k, err := m.CanonicalKey()
	require.NoError(t, err)
	return k
}

func TestSmallSynthonsExcluded(t *testing.T) {
	engine := testEngine(t)
	lib := buildLibrary(t, engine, []string{"CC(=O)NC"}, nil)
	scorer := newTestScorer(t, lib, nil, nil)

	// N-methylacetamide cleaves into methylamine (2 heavy atoms, excluded)
	// and acetyl chloride (scored).
	res, err := scorer.Score(context.Background(), parse(t, "CC(=O)NC"))
	require.NoError(t, err)
	require.Len(t, res.Synthons, 2)
	assert.Len(t, res.PerSynthon, 1)
	assert.Contains(t, res.PerSynthon, mustCanonical(t, "CC(=O)Cl"))
}

func TestSpikeInGuaranteesScore(t *testing.T) {
	engine := testEngine(t)
	spikes := []library.SpikeIn{{Mol: parse(t, "Nc1ccccc1")}}
	lib := buildLibrary(t, engine, []string{"c1ccc(-c2ccncc2)cc1"}, spikes)
	scorer := newTestScorer(t, lib, nil, nil)

	// Aniline was never produced by the sample, only spiked in; any compound
	// releasing it must still score at least the spike weight.
	res, err := scorer.Score(context.Background(), parse(t, "CC(=O)Nc1ccccc1"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.PerSynthon[mustCanonical(t, "Nc1ccccc1")], 100.0)
}

func TestCacheHitSkipsCounter(t *testing.T) {
	engine := testEngine(t)
	lib := buildLibrary(t, engine, []string{"CC(=O)Nc1ccccc1"}, nil)
	cache := newMemoryCache()
	counter := &countingCounter{inner: similarity.NewScanCounter(similarity.NewMomentDistance(), similarity.Options{Threshold: 0.7})}
	scorer := newTestScorer(t, lib, cache, counter)

	first, err := scorer.Score(context.Background(), parse(t, "CC(=O)Nc1ccccc1"))
	require.NoError(t, err)
	require.Equal(t, 1, counter.calls)
	require.Equal(t, 2, cache.sets)

	second, err := scorer.Score(context.Background(), parse(t, "CC(=O)Nc1ccccc1"))
	require.NoError(t, err)
	assert.Equal(t, 1, counter.calls, "warm cache must not invoke the counter")
	assert.Equal(t, 2, cache.hits)
	assert.Equal(t, first.Score, second.Score)
}

func TestFailingCacheDegradesGracefully(t *testing.T) {
	engine := testEngine(t)
	lib := buildLibrary(t, engine, []string{"CC(=O)Nc1ccccc1"}, nil)
	scorer := newTestScorer(t, lib, failingCache{}, nil)

	res, err := scorer.Score(context.Background(), parse(t, "CC(=O)Nc1ccccc1"))
	require.NoError(t, err)
	assert.Greater(t, res.Score, 0.0)
}

// clusteredDescriptor crowds small molecules onto nearly coincident points
// while large ones land far apart, mimicking how real descriptor magnitudes
// grow with size.
type clusteredDescriptor struct{}

func (clusteredDescriptor) Dim() int { return 1 }
func (clusteredDescriptor) Compute(m *chem.Mol) ([]float64, error) {
	hac := m.NumHeavyAtoms()
	if hac <= 5 {
		return []float64{float64(hac) / 20}, nil
	}
	return []float64{float64(hac)}, nil
}

// axisDescriptor places each molecule at its heavy-atom count, so library
// entries spaced one unit apart only ever match themselves at the default
// threshold.
type axisDescriptor struct{}

func (axisDescriptor) Dim() int { return 1 }
func (axisDescriptor) Compute(m *chem.Mol) ([]float64, error) {
	return []float64{float64(m.NumHeavyAtoms())}, nil
}

func TestScoreFavorsSmallSynthons(t *testing.T) {
	lib := library.New(1)
	for i, v := range []float64{0.15, 0.16, 0.17, 0.2, 0.21} {
		require.NoError(t, lib.Add(fmt.Sprintf("small-%d", i), 1, []float64{v}))
	}
	require.NoError(t, lib.Add("large-10", 1, []float64{10}))
	require.NoError(t, lib.Add("large-14", 1, []float64{14}))

	counter := similarity.NewScanCounter(similarity.NewMomentDistance(), similarity.Options{Threshold: 0.7})
	scorer := NewScorer(testEngine(t), clusteredDescriptor{}, counter, lib, nil, logging.NewNopLogger())

	small, err := scorer.Score(context.Background(), parse(t, "CCO"))
	require.NoError(t, err)
	large, err := scorer.Score(context.Background(), parse(t, "CCCCCCCCCC"))
	require.NoError(t, err)

	// The small fragment sits in the dense region and collects every
	// clustered neighbor; the large chain only finds itself.
	assert.Equal(t, 5.0, small.Score)
	assert.Equal(t, 1.0, large.Score)
	assert.Greater(t, small.Score/3, large.Score/10,
		"per-heavy-atom normalization must not erase the small-fragment bias")
}

func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	mx, my := sx/n, sy/n
	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	return cov / math.Sqrt(vx*vy)
}

func topSet(scores []float64, k int) map[int]bool {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	top := make(map[int]bool, k)
	for _, i := range order[:k] {
		top[i] = true
	}
	return top
}

func TestScoreRankingAcrossSimilarLibraries(t *testing.T) {
	// Two libraries that agree on almost every tally but swap the weight of
	// two entries.  Scores must stay tightly rank-correlated while the
	// top-k selections drift apart, so subset comparisons should rely on
	// correlation rather than exact set overlap.
	const n = 20
	libA := library.New(1)
	libB := library.New(1)
	for i := 0; i < n; i++ {
		vec := []float64{float64(i + 3)}
		tallyB := float64(100 - 4*i)
		switch i {
		case 4:
			tallyB = 78
		case 5:
			tallyB = 86
		}
		require.NoError(t, libA.Add(fmt.Sprintf("syn-%d", i), float64(100-4*i), vec))
		require.NoError(t, libB.Add(fmt.Sprintf("syn-%d", i), tallyB, vec))
	}

	counter := similarity.NewScanCounter(similarity.NewMomentDistance(), similarity.Options{Threshold: 0.7})
	engine := testEngine(t)
	scorerA := NewScorer(engine, axisDescriptor{}, counter, libA, nil, logging.NewNopLogger())
	scorerB := NewScorer(engine, axisDescriptor{}, counter, libB, nil, logging.NewNopLogger())

	scoresA := make([]float64, n)
	scoresB := make([]float64, n)
	for i := 0; i < n; i++ {
		m := parse(t, strings.Repeat("C", i+3))
		ra, err := scorerA.Score(context.Background(), m)
		require.NoError(t, err)
		rb, err := scorerB.Score(context.Background(), m)
		require.NoError(t, err)
		scoresA[i], scoresB[i] = ra.Score, rb.Score
	}

	assert.Greater(t, pearson(scoresA, scoresB), 0.9)

	topA := topSet(scoresA, 5)
	topB := topSet(scoresB, 5)
	inter := 0
	for i := range topA {
		if topB[i] {
			inter++
		}
	}
	jaccard := float64(inter) / float64(len(topA)+len(topB)-inter)
	assert.Less(t, jaccard, 1.0, "top sets must disagree somewhere")
	assert.Greater(t, jaccard, 0.3, "top sets must still mostly agree")
}

type recordingMeter struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (m *recordingMeter) CacheLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func TestMeterCacheReportsLookups(t *testing.T) {
	engine := testEngine(t)
	lib := buildLibrary(t, engine, []string{"CC(=O)Nc1ccccc1"}, nil)
	meter := &recordingMeter{}
	scorer := newTestScorer(t, lib, MeterCache(newMemoryCache(), meter), nil)

	_, err := scorer.Score(context.Background(), parse(t, "CC(=O)Nc1ccccc1"))
	require.NoError(t, err)
	require.Equal(t, 2, meter.misses)
	require.Equal(t, 0, meter.hits)

	_, err = scorer.Score(context.Background(), parse(t, "CC(=O)Nc1ccccc1"))
	require.NoError(t, err)
	assert.Equal(t, 2, meter.misses)
	assert.Equal(t, 2, meter.hits)
}

func TestNilCacheDefaultsToNop(t *testing.T) {
	engine := testEngine(t)
	lib := buildLibrary(t, engine, []string{"CC(=O)Nc1ccccc1"}, nil)
	scorer := NewScorer(engine, chem.NewTopoPharmacophore(),
		similarity.NewScanCounter(similarity.NewMomentDistance(), similarity.Options{}),
		lib, nil, logging.NewNopLogger())

	_, err := scorer.Score(context.Background(), parse(t, "CC(=O)Nc1ccccc1"))
	assert.NoError(t, err)
}
