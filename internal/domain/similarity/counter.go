package similarity

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/moleculab/synthon-sieve/internal/domain/library"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// Counter backend names.
const (
	BackendScan     = "scan"
	BackendParallel = "parallel"
	BackendMilvus   = "milvus"
)

// DefaultThreshold gates which library synthons count as neighbors.
const DefaultThreshold = 0.7

// Counter sums the tallies of every library synthon whose similarity to each
// query vector reaches the threshold.  Backends must agree on results; only
// their execution strategy differs.
type Counter interface {
	// NeighborTallies returns one tally sum per query vector.
	NeighborTallies(ctx context.Context, queries [][]float64, lib *library.Library) ([]float64, error)
}

// Options are shared by all counter backends.
type Options struct {
	// Threshold is the minimum similarity for a library synthon to count.
	// Zero selects DefaultThreshold.
	Threshold float64

	// ExcludeIdentical skips library entries whose vector equals the query
	// byte for byte.  Off by default: a query synthon present in the library
	// contributes its own tally.
	ExcludeIdentical bool
}

func (o Options) threshold() float64 {
	if o.Threshold == 0 {
		return DefaultThreshold
	}
	return o.Threshold
}

// ScanCounter is the reference backend: a sequential scan over the whole
// library per query.  It defines the semantics the other backends must match.
type ScanCounter struct {
	metric Metric
	opts   Options
}

// NewScanCounter builds the reference backend.
func NewScanCounter(metric Metric, opts Options) *ScanCounter {
	return &ScanCounter{metric: metric, opts: opts}
}

// NeighborTallies implements Counter.
func (c *ScanCounter) NeighborTallies(ctx context.Context, queries [][]float64, lib *library.Library) ([]float64, error) {
	if err := checkDims(queries, lib); err != nil {
		return nil, err
	}
	out := make([]float64, len(queries))
	for qi, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[qi] = scanOne(q, lib, c.metric, c.opts)
	}
	return out, nil
}

// ParallelCounter fans the queries out over a bounded worker group.  Results
// are written to fixed slots, so output order matches query order exactly as
// in ScanCounter.
type ParallelCounter struct {
	metric  Metric
	opts    Options
	workers int
}

// NewParallelCounter builds the concurrent backend; workers <= 0 means
// GOMAXPROCS.
func NewParallelCounter(metric Metric, opts Options, workers int) *ParallelCounter {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &ParallelCounter{metric: metric, opts: opts, workers: workers}
}

// NeighborTallies implements Counter.
func (c *ParallelCounter) NeighborTallies(ctx context.Context, queries [][]float64, lib *library.Library) ([]float64, error) {
	if err := checkDims(queries, lib); err != nil {
		return nil, err
	}
	out := make([]float64, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for qi := range queries {
		qi := qi
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[qi] = scanOne(queries[qi], lib, c.metric, c.opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// checkDims fails fast on any query whose dimension differs from the
// library's.  A mismatch is a hard error: silently truncating or padding
// would produce scores that look plausible and are wrong.
func checkDims(queries [][]float64, lib *library.Library) error {
	for qi, q := range queries {
		if len(q) != lib.Dim() {
			return errors.Newf(errors.CodeVectorDimMismatch,
				"query %d has dim %d, library dim %d", qi, len(q), lib.Dim())
		}
	}
	return nil
}

func scanOne(query []float64, lib *library.Library, metric Metric, opts Options) float64 {
	threshold := opts.threshold()
	total := 0.0
	for _, e := range lib.Entries() {
		if opts.ExcludeIdentical && vectorsEqual(query, e.Vector) {
			continue
		}
		if metric.Similarity(query, e.Vector) >= threshold {
			total += e.Tally
		}
	}
	return total
}

func vectorsEqual(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
