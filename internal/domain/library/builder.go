package library

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/moleculab/synthon-sieve/internal/chem"
	"github.com/moleculab/synthon-sieve/internal/domain/decompose"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
)

// BuilderConfig controls library construction.
type BuilderConfig struct {
	// NormalizeTo rescales raw tallies as if the sample had this many
	// compounds, so libraries built from different sample sizes are
	// comparable.  Zero disables normalization.
	NormalizeTo float64

	// MinSampleSize is the smallest sample considered statistically sound.
	// Smaller samples still build, but the library is flagged.
	MinSampleSize int

	// SpikeInWeight is the tally added per spike-in synthon occurrence when
	// the spike-in carries no explicit weight.
	SpikeInWeight float64

	// Workers caps build parallelism; zero means GOMAXPROCS.
	Workers int
}

// DefaultBuilderConfig returns the stock build parameters.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		NormalizeTo:   1_000_000,
		MinSampleSize: 100,
		SpikeInWeight: 100,
	}
}

// SpikeIn is a compound whose synthons are forced into the library with a
// fixed weight, regardless of how often the sample produced them.  Weight
// zero falls back to BuilderConfig.SpikeInWeight.
type SpikeIn struct {
	Mol    *chem.Mol
	Weight float64
}

// Builder decomposes a compound sample into synthons and accumulates their
// popularity tallies into a Library.
type Builder struct {
	engine *decompose.Engine
	desc   chem.Descriptor
	cfg    BuilderConfig
	log    logging.Logger
}

// NewBuilder wires a Builder from its dependencies.
func NewBuilder(engine *decompose.Engine, desc chem.Descriptor, cfg BuilderConfig, log logging.Logger) *Builder {
	return &Builder{engine: engine, desc: desc, cfg: cfg, log: log.Named("library")}
}

// Build decomposes every sample compound in parallel, tallies synthon
// occurrences (multiset multiplicity counts), normalizes the tallies to the
// configured virtual sample size, and finally folds in the spike-ins.
// Spike-ins are applied after normalization so their weights land in the
// library exactly as configured.
//
// Compounds that fail decomposition are skipped with a warning rather than
// aborting the build; a corrupt record must not cost an hours-long run.
func (b *Builder) Build(ctx context.Context, sample []*chem.Mol, spikes []SpikeIn) (*Library, error) {
	workers := b.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(sample) && len(sample) > 0 {
		workers = len(sample)
	}

	shards := make([]*Library, workers)
	failures := make([]int, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			shard := New(b.desc.Dim())
			for i := w; i < len(sample); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := b.addCompound(shard, sample[i]); err != nil {
					failures[w]++
					b.log.Warn("sample compound skipped", logging.Int("index", i), logging.Err(err))
				}
			}
			shards[w] = shard
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lib := New(b.desc.Dim())
	for _, shard := range shards {
		if shard == nil {
			continue
		}
		if err := lib.Merge(shard); err != nil {
			return nil, err
		}
	}

	if b.cfg.NormalizeTo > 0 && len(sample) > 0 {
		lib.Scale(b.cfg.NormalizeTo / float64(len(sample)))
	}

	for _, spike := range spikes {
		weight := spike.Weight
		if weight == 0 {
			weight = b.cfg.SpikeInWeight
		}
		synthons, err := b.engine.Decompose(spike.Mol)
		if err != nil {
			return nil, err
		}
		for _, s := range synthons {
			vec, err := b.desc.Compute(s.Mol)
			if err != nil {
				return nil, err
			}
			if err := lib.Add(s.Key, weight, vec); err != nil {
				return nil, err
			}
		}
	}

	if len(sample) < b.cfg.MinSampleSize {
		lib.InsufficientSample = true
		b.log.Warn("sample below configured minimum",
			logging.Int("sample_size", len(sample)),
			logging.Int("min_sample_size", b.cfg.MinSampleSize))
	}

	totalFailures := 0
	for _, f := range failures {
		totalFailures += f
	}
	b.log.Info("library built",
		logging.Int("sample_size", len(sample)),
		logging.Int("unique_synthons", lib.Len()),
		logging.Int("spike_ins", len(spikes)),
		logging.Int("failures", totalFailures))
	return lib, nil
}

func (b *Builder) addCompound(shard *Library, m *chem.Mol) error {
	synthons, err := b.engine.Decompose(m)
	if err != nil {
		return err
	}
	for _, s := range synthons {
		if _, ok := shard.Get(s.Key); ok {
			if err := shard.Add(s.Key, 1, nil); err != nil {
				return err
			}
			continue
		}
		vec, err := b.desc.Compute(s.Mol)
		if err != nil {
			return err
		}
		if err := shard.Add(s.Key, 1, vec); err != nil {
			return err
		}
	}
	return nil
}
