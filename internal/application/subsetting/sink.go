package subsetting

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Sink receives verdicts from the pipeline.  Write is called from a single
// collector goroutine, in completion order; Close flushes any buffered state
// after the last verdict.
type Sink interface {
	Write(ctx context.Context, v Verdict) error
	Close(ctx context.Context) error
}

// SliceSink collects verdicts in memory, mainly for tests and the HTTP API.
type SliceSink struct {
	mu       sync.Mutex
	verdicts []Verdict
}

// NewSliceSink returns an empty in-memory sink.
func NewSliceSink() *SliceSink { return &SliceSink{} }

// Write implements Sink.
func (s *SliceSink) Write(_ context.Context, v Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts = append(s.verdicts, v)
	return nil
}

// Close implements Sink.
func (s *SliceSink) Close(context.Context) error { return nil }

// Verdicts returns a copy of everything written so far.
func (s *SliceSink) Verdicts() []Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Verdict, len(s.verdicts))
	copy(out, s.verdicts)
	return out
}

// TSVSink writes verdicts as tab-separated rows with a header, the exchange
// format downstream catalogue tooling ingests.
type TSVSink struct {
	w           io.Writer
	wroteHeader bool
}

// NewTSVSink wraps a writer.
func NewTSVSink(w io.Writer) *TSVSink { return &TSVSink{w: w} }

var tsvColumns = []string{
	"compound_id", "smiles", "acceptable", "issue",
	"heavy_atoms", "num_rings", "largest_ring_size", "methylenes",
	"num_synthons", "amicability", "amicability_per_hac",
	"boringness", "tier",
}

// Write implements Sink.
func (s *TSVSink) Write(_ context.Context, v Verdict) error {
	if !s.wroteHeader {
		if _, err := fmt.Fprintln(s.w, strings.Join(tsvColumns, "\t")); err != nil {
			return err
		}
		s.wroteHeader = true
	}
	_, err := fmt.Fprintf(s.w, "%s\t%s\t%t\t%s\t%d\t%d\t%d\t%d\t%d\t%g\t%g\t%g\t%s\n",
		v.CompoundID, v.SMILES, v.Acceptable, v.Issue,
		v.HeavyAtoms, v.NumRings, v.LargestRingSize, v.Methylenes,
		v.NumSynthons, v.Amicability, v.AmicabilityPerHAC,
		v.Boringness, v.Tier)
	return err
}

// Close implements Sink.
func (s *TSVSink) Close(context.Context) error { return nil }

// MultiSink fans every verdict out to all children, failing on the first
// error.  Close closes every child even if one fails.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...Sink) *MultiSink { return &MultiSink{sinks: sinks} }

// Write implements Sink.
func (s *MultiSink) Write(ctx context.Context, v Verdict) error {
	for _, child := range s.sinks {
		if err := child.Write(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Sink.
func (s *MultiSink) Close(ctx context.Context) error {
	var firstErr error
	for _, child := range s.sinks {
		if err := child.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
