package cli

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/moleculab/synthon-sieve/internal/application/subsetting"
	"github.com/moleculab/synthon-sieve/internal/chem"
	"github.com/moleculab/synthon-sieve/internal/config"
	"github.com/moleculab/synthon-sieve/internal/domain/amicability"
	"github.com/moleculab/synthon-sieve/internal/domain/boringness"
	"github.com/moleculab/synthon-sieve/internal/domain/decompose"
	"github.com/moleculab/synthon-sieve/internal/domain/library"
	"github.com/moleculab/synthon-sieve/internal/domain/similarity"
	redisinfra "github.com/moleculab/synthon-sieve/internal/infrastructure/database/redis"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
	milvusinfra "github.com/moleculab/synthon-sieve/internal/infrastructure/search/milvus"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// NewEngine builds the decomposition engine from configuration.
func NewEngine(cfg *config.Config, log logging.Logger) (*decompose.Engine, error) {
	enabled := make(map[decompose.Family]bool, len(cfg.Decompose.Families))
	for name, on := range cfg.Decompose.Families {
		enabled[decompose.Family(name)] = on
	}
	return decompose.NewEngine(decompose.Config{
		Enabled:           enabled,
		NormalizeHalogens: cfg.Decompose.NormalizeHalogens,
	}, log)
}

// NewMetric builds the similarity metric from configuration.
func NewMetric(cfg *config.Config) (similarity.Metric, error) {
	return similarity.NewMetric(cfg.Similarity.Metric,
		cfg.Similarity.TverskyAlpha, cfg.Similarity.TverskyBeta)
}

// NewCounter builds the configured similarity backend.  The returned closer
// releases backend resources and may be nil for the in-process backends.
func NewCounter(ctx context.Context, cfg *config.Config, lib *library.Library, log logging.Logger) (similarity.Counter, func() error, error) {
	metric, err := NewMetric(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := similarity.Options{
		Threshold:        cfg.Similarity.Threshold,
		ExcludeIdentical: cfg.Similarity.ExcludeIdentical,
	}

	switch cfg.Similarity.Backend {
	case similarity.BackendScan:
		return similarity.NewScanCounter(metric, opts), nil, nil
	case similarity.BackendParallel, "":
		return similarity.NewParallelCounter(metric, opts, cfg.Similarity.Workers), nil, nil
	case similarity.BackendMilvus:
		client, err := milvusinfra.NewClient(ctx, cfg.Milvus, log)
		if err != nil {
			return nil, nil, err
		}
		counter, err := milvusinfra.NewCounter(client, cfg.Milvus, metric, opts, log)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		if err := counter.SyncLibrary(ctx, lib); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return counter, client.Close, nil
	}
	return nil, nil, errors.Newf(errors.CodeBackendUnknown,
		"unknown similarity backend %q", cfg.Similarity.Backend)
}

// NewTallyCache builds the deja-vu cache when Redis is enabled; otherwise nil,
// which the scorer treats as no cache.
func NewTallyCache(ctx context.Context, cfg *config.Config) (amicability.TallyCache, func() error, error) {
	if !cfg.Redis.Enabled {
		return nil, nil, nil
	}
	client, err := redisinfra.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	cache := redisinfra.NewTallyCache(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
	return cache, client.Close, nil
}

// NewPipeline assembles the full scoring pipeline around a loaded library.
func NewPipeline(
	cfg *config.Config,
	engine *decompose.Engine,
	counter similarity.Counter,
	lib *library.Library,
	cache amicability.TallyCache,
	metrics subsetting.Metrics,
	runID string,
	log logging.Logger,
) *subsetting.Pipeline {
	desc := chem.NewTopoPharmacophore()
	if cache != nil && metrics != nil {
		if meter, ok := metrics.(amicability.CacheMeter); ok {
			cache = amicability.MeterCache(cache, meter)
		}
	}
	scorer := amicability.NewScorer(engine, desc, counter, lib, cache, log)
	filter := boringness.New(boringness.Weights{
		AromaticCarbocycle: cfg.Boringness.AromaticCarbocycle,
		AcyclicMethylene:   cfg.Boringness.AcyclicMethylene,
		AlicyclicUnit:      cfg.Boringness.AlicyclicUnit,
		Heterocycle:        cfg.Boringness.Heterocycle,
	})

	pcfg := subsetting.Config{
		Workers:      cfg.Pipeline.Workers,
		AnalysisMode: cfg.Pipeline.AnalysisMode,
		RunID:        runID,
		Cutoffs: subsetting.Cutoffs{
			MinHeavyAtoms:        cfg.Pipeline.Cutoffs.MinHeavyAtoms,
			MaxHeavyAtoms:        cfg.Pipeline.Cutoffs.MaxHeavyAtoms,
			MinRings:             cfg.Pipeline.Cutoffs.MinRings,
			MaxLargestRingSize:   cfg.Pipeline.Cutoffs.MaxLargestRingSize,
			MaxMethylenes:        cfg.Pipeline.Cutoffs.MaxMethylenes,
			MinSynthons:          cfg.Pipeline.Cutoffs.MinSynthons,
			MinAmicability:       cfg.Pipeline.Cutoffs.MinAmicability,
			MinAmicabilityPerHAC: cfg.Pipeline.Cutoffs.MinAmicabilityPerHAC,
			MaxBoringness:        cfg.Pipeline.Cutoffs.MaxBoringness,
		},
	}
	if len(cfg.Pipeline.TierBounds) == 3 {
		copy(pcfg.TierBounds[:], cfg.Pipeline.TierBounds)
	}
	return subsetting.NewPipeline(scorer, filter, pcfg, metrics, log)
}

// libraryFile is the on-disk JSON layout for a reference library.
type libraryFile struct {
	Dim                int             `json:"dim"`
	InsufficientSample bool            `json:"insufficient_sample"`
	Entries            []library.Entry `json:"entries"`
}

// SaveLibraryFile writes lib as JSON to path.
func SaveLibraryFile(path string, lib *library.Library) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create library file")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	return enc.Encode(libraryFile{
		Dim:                lib.Dim(),
		InsufficientSample: lib.InsufficientSample,
		Entries:            lib.Entries(),
	})
}

// LoadLibraryFile reads a JSON library written by SaveLibraryFile.
func LoadLibraryFile(path string) (*library.Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeLibraryNotFound, "open library file")
	}
	defer f.Close()

	var lf libraryFile
	if err := json.NewDecoder(f).Decode(&lf); err != nil {
		return nil, errors.Wrap(err, errors.CodeLibraryCorrupt, "decode library file")
	}
	lib, err := library.FromEntries(lf.Dim, lf.Entries)
	if err != nil {
		return nil, err
	}
	lib.InsufficientSample = lf.InsufficientSample
	return lib, nil
}

// readMols parses one molecule per non-comment line of a SMILES file.
func readMols(path string) ([]*chem.Mol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "read sample file")
	}
	var mols []*chem.Mol
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		smiles := strings.Fields(line)[0]
		m, err := chem.ParseSMILES(smiles)
		if err != nil {
			return nil, err
		}
		mols = append(mols, m)
	}
	return mols, nil
}

// readSpikes parses "SMILES [weight]" lines into spike-in records.
func readSpikes(path string) ([]library.SpikeIn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "read spike-in file")
	}
	var spikes []library.SpikeIn
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		m, err := chem.ParseSMILES(fields[0])
		if err != nil {
			return nil, err
		}
		spike := library.SpikeIn{Mol: m}
		if len(fields) > 1 {
			w, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeInvalidParam, "invalid spike-in weight")
			}
			spike.Weight = w
		}
		spikes = append(spikes, spike)
	}
	return spikes, nil
}
