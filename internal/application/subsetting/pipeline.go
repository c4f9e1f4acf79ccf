package subsetting

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/moleculab/synthon-sieve/internal/chem"
	"github.com/moleculab/synthon-sieve/internal/domain/amicability"
	"github.com/moleculab/synthon-sieve/internal/domain/boringness"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
	stderrors "github.com/moleculab/synthon-sieve/pkg/errors"
)

// Config tunes a pipeline run.
type Config struct {
	// Workers sizes the scoring pool; zero means GOMAXPROCS.
	Workers int

	// Cutoffs gate acceptance after scoring.
	Cutoffs Cutoffs

	// AnalysisMode forwards every verdict to the sink, including rejected
	// compounds, so the full metric distribution can be studied.  In normal
	// mode only acceptable verdicts are written.
	AnalysisMode bool

	// TierBounds override the default amicability-per-heavy-atom bin edges.
	TierBounds [3]float64

	// RunID overrides the generated run identifier.  Callers that construct
	// sinks keyed by run (object-store prefixes, event envelopes) set this so
	// sinks and summary agree.
	RunID string
}

// Summary reports the outcome of a pipeline run.
type Summary struct {
	RunID     string
	Processed int
	Retained  int
	Failed    int
	Issues    map[string]int
	Elapsed   time.Duration
}

// Pipeline streams compounds through decomposition, scoring, and filtering.
// One Pipeline may serve many Run calls; each run gets its own identifier.
type Pipeline struct {
	scorer  *amicability.Scorer
	filter  *boringness.Filter
	cfg     Config
	metrics Metrics
	log     logging.Logger
}

// NewPipeline wires a Pipeline.  A nil metrics falls back to NopMetrics.
func NewPipeline(scorer *amicability.Scorer, filter *boringness.Filter, cfg Config, metrics Metrics, log logging.Logger) *Pipeline {
	if metrics == nil {
		metrics = NopMetrics()
	}
	if cfg.TierBounds == ([3]float64{}) {
		cfg.TierBounds = DefaultTierBounds
	}
	return &Pipeline{
		scorer:  scorer,
		filter:  filter,
		cfg:     cfg,
		metrics: metrics,
		log:     log.Named("pipeline"),
	}
}

// Run drains src through the worker pool into sink and returns the run
// summary.  A compound that fails parsing or scoring is logged, counted, and
// skipped; only source and sink failures abort the run.  The sink sees
// verdicts in completion order, which varies between runs.
func (p *Pipeline) Run(ctx context.Context, src Source, sink Sink) (*Summary, error) {
	start := time.Now()
	runID := p.cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	log := p.log.With(logging.String("run_id", runID))

	workers := p.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log.Info("subsetting run started", logging.Int("workers", workers))

	compounds := make(chan Compound, workers)
	type outcome struct {
		verdict Verdict
		err     error
	}
	outcomes := make(chan outcome, workers)

	g, gctx := errgroup.WithContext(ctx)

	// Producer: drain the source.
	g.Go(func() error {
		defer close(compounds)
		for {
			c, err := src.Next()
			if err != nil {
				if stderrors.IsCode(err, stderrors.CodeSourceExhausted) {
					return nil
				}
				return err
			}
			select {
			case compounds <- c:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	// Scoring pool.
	var wg errgroup.Group
	for w := 0; w < workers; w++ {
		wg.Go(func() error {
			for c := range compounds {
				v, err := p.assess(gctx, c)
				select {
				case outcomes <- outcome{verdict: v, err: err}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		_ = wg.Wait()
		close(outcomes)
	}()

	summary := &Summary{RunID: runID, Issues: make(map[string]int)}

	// Collector: single goroutine owns the sink and the summary.
	g.Go(func() error {
		for o := range outcomes {
			summary.Processed++
			if o.err != nil {
				summary.Failed++
				p.metrics.CompoundFailed()
				log.Warn("compound skipped",
					logging.String("compound_id", o.verdict.CompoundID),
					logging.Err(o.err))
				continue
			}
			p.metrics.CompoundProcessed(o.verdict.Acceptable)
			if o.verdict.Acceptable {
				summary.Retained++
			} else {
				summary.Issues[o.verdict.Issue]++
			}
			if o.verdict.Acceptable || p.cfg.AnalysisMode {
				if err := sink.Write(gctx, o.verdict); err != nil {
					return stderrors.Wrap(err, stderrors.CodeSinkFailed, "verdict write failed")
				}
			}
		}
		return nil
	})

	runErr := g.Wait()
	if err := sink.Close(ctx); err != nil && runErr == nil {
		runErr = stderrors.Wrap(err, stderrors.CodeSinkFailed, "sink close failed")
	}
	if runErr != nil {
		return nil, runErr
	}

	summary.Elapsed = time.Since(start)
	log.Info("subsetting run finished",
		logging.Int("processed", summary.Processed),
		logging.Int("retained", summary.Retained),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

// Assess scores a single compound through the same gates a full run applies.
// The HTTP API uses this for interactive lookups.
func (p *Pipeline) Assess(ctx context.Context, c Compound) (Verdict, error) {
	return p.assess(ctx, c)
}

// assess scores one compound and applies every gate.
func (p *Pipeline) assess(ctx context.Context, c Compound) (Verdict, error) {
	begin := time.Now()
	v := Verdict{CompoundID: c.ID, SMILES: c.SMILES}

	mol, err := chem.ParseSMILES(c.SMILES)
	if err != nil {
		return v, err
	}
	v.HeavyAtoms = mol.NumHeavyAtoms()

	res, err := p.scorer.Score(ctx, mol)
	if err != nil {
		return v, err
	}
	v.NumSynthons = len(res.Synthons)
	v.Amicability = res.Score
	if v.HeavyAtoms > 0 {
		v.AmicabilityPerHAC = res.Score / float64(v.HeavyAtoms)
	}

	score, err := p.filter.Score(mol)
	if err != nil {
		return v, err
	}
	v.Boringness = score
	v.Tier = TierFor(v.AmicabilityPerHAC, p.cfg.TierBounds)

	stats := mol.ComputeRingStats()
	v.NumRings = stats.NumRings
	v.LargestRingSize = stats.LargestRingSize
	v.Methylenes = stats.AcyclicMethylenes

	retained, err := p.filter.Retained(mol)
	if err != nil {
		return v, err
	}
	motif := unwantedMotif(mol)
	switch {
	case !retained:
		v.Acceptable = false
		v.Issue = "boring structure"
	case motif != "":
		v.Acceptable = false
		v.Issue = "contains " + motif
	default:
		v.Acceptable, v.Issue = p.cfg.Cutoffs.Assess(&v)
	}

	p.metrics.ObserveScoringDuration(time.Since(begin))
	return v, nil
}
