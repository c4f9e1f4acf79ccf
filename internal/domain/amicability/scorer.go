// Package amicability aggregates per-synthon neighbor tallies into a
// compound-level sociability score: how well a compound's building blocks are
// represented in the reference catalogue.
package amicability

import (
	"context"

	"github.com/moleculab/synthon-sieve/internal/chem"
	"github.com/moleculab/synthon-sieve/internal/domain/decompose"
	"github.com/moleculab/synthon-sieve/internal/domain/library"
	"github.com/moleculab/synthon-sieve/internal/domain/similarity"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
)

// MinSynthonHeavyAtoms excludes trivially small synthons (caps, water-sized
// leftovers) from scoring.  Synthons at or below this size match half the
// catalogue and would drown the signal.
const MinSynthonHeavyAtoms = 2

// TallyCache is the deja-vu store for per-synthon neighbor tallies.  Synthon
// keys recur heavily across a catalogue, so a cache in front of the counter
// removes most of the scoring cost.  Implementations must be safe for
// concurrent use; a miss is (0, false, nil), never an error.
type TallyCache interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, tally float64) error
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (float64, bool, error) { return 0, false, nil }
func (nopCache) Set(context.Context, string, float64) error        { return nil }

// NopCache returns a TallyCache that never hits.
func NopCache() TallyCache { return nopCache{} }

// CacheMeter observes cache lookup outcomes.  The pipeline metrics sinks
// satisfy it.
type CacheMeter interface {
	CacheLookup(hit bool)
}

type meteredCache struct {
	inner TallyCache
	meter CacheMeter
}

// MeterCache wraps a TallyCache so every lookup is reported to meter.  A read
// error counts as a miss, matching how Score treats it.
func MeterCache(c TallyCache, meter CacheMeter) TallyCache {
	return &meteredCache{inner: c, meter: meter}
}

func (m *meteredCache) Get(ctx context.Context, key string) (float64, bool, error) {
	tally, ok, err := m.inner.Get(ctx, key)
	m.meter.CacheLookup(ok && err == nil)
	return tally, ok, err
}

func (m *meteredCache) Set(ctx context.Context, key string, tally float64) error {
	return m.inner.Set(ctx, key, tally)
}

// Result is the amicability verdict for one compound.
type Result struct {
	// Score is the sum of neighbor tallies over all scored synthons,
	// counting multiset multiplicity.
	Score float64

	// Synthons is the full decomposition, including synthons too small to
	// score.
	Synthons []decompose.Synthon

	// PerSynthon maps each scored synthon key to its neighbor tally.
	PerSynthon map[string]float64
}

// Scorer wires decomposition, descriptors, a similarity counter, and the
// tally cache into the compound-level score.
//
// Small synthons carry small descriptors and therefore find more neighbors
// above threshold, so compounds cleaving into common tiny pieces score
// systematically high.  That bias is accepted: popular small building blocks
// genuinely are the cheap, well-stocked ones.
type Scorer struct {
	engine  *decompose.Engine
	desc    chem.Descriptor
	counter similarity.Counter
	lib     *library.Library
	cache   TallyCache
	log     logging.Logger
}

// NewScorer wires a Scorer.  A nil cache disables deja-vu lookups.
func NewScorer(
	engine *decompose.Engine,
	desc chem.Descriptor,
	counter similarity.Counter,
	lib *library.Library,
	cache TallyCache,
	log logging.Logger,
) *Scorer {
	if cache == nil {
		cache = NopCache()
	}
	return &Scorer{
		engine:  engine,
		desc:    desc,
		counter: counter,
		lib:     lib,
		cache:   cache,
		log:     log.Named("amicability"),
	}
}

// Library exposes the reference library the scorer runs against.
func (s *Scorer) Library() *library.Library { return s.lib }

// Score decomposes m and sums the neighbor tallies of every synthon with
// more than MinSynthonHeavyAtoms heavy atoms.  Cache hits skip the counter;
// all misses are resolved in one batched counter call and written back.
// Cache failures degrade to recomputation, never to a scoring error.
func (s *Scorer) Score(ctx context.Context, m *chem.Mol) (Result, error) {
	synthons, err := s.engine.Decompose(m)
	if err != nil {
		return Result{}, err
	}

	res := Result{Synthons: synthons, PerSynthon: make(map[string]float64)}

	type miss struct {
		key string
		mol *chem.Mol
	}
	var misses []miss
	seen := make(map[string]bool)
	for _, syn := range synthons {
		if syn.HeavyAtoms <= MinSynthonHeavyAtoms {
			continue
		}
		if _, done := res.PerSynthon[syn.Key]; done || seen[syn.Key] {
			continue
		}
		tally, ok, cerr := s.cache.Get(ctx, syn.Key)
		if cerr != nil {
			s.log.Warn("tally cache read failed", logging.String("key", syn.Key), logging.Err(cerr))
			ok = false
		}
		if ok {
			res.PerSynthon[syn.Key] = tally
			continue
		}
		seen[syn.Key] = true
		misses = append(misses, miss{key: syn.Key, mol: syn.Mol})
	}

	if len(misses) > 0 {
		queries := make([][]float64, len(misses))
		for i, ms := range misses {
			vec, err := s.desc.Compute(ms.mol)
			if err != nil {
				return Result{}, err
			}
			queries[i] = vec
		}
		tallies, err := s.counter.NeighborTallies(ctx, queries, s.lib)
		if err != nil {
			return Result{}, err
		}
		for i, ms := range misses {
			res.PerSynthon[ms.key] = tallies[i]
			if cerr := s.cache.Set(ctx, ms.key, tallies[i]); cerr != nil {
				s.log.Warn("tally cache write failed", logging.String("key", ms.key), logging.Err(cerr))
			}
		}
	}

	for _, syn := range synthons {
		if tally, ok := res.PerSynthon[syn.Key]; ok {
			res.Score += tally
		}
	}
	return res, nil
}
