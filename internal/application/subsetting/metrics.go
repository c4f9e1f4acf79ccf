package subsetting

import "time"

// Metrics is the pipeline's observability port, implemented by the
// prometheus infrastructure and by a no-op for tests and CLI one-shots.
type Metrics interface {
	CompoundProcessed(acceptable bool)
	CompoundFailed()
	ObserveScoringDuration(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) CompoundProcessed(bool)               {}
func (nopMetrics) CompoundFailed()                      {}
func (nopMetrics) ObserveScoringDuration(time.Duration) {}

// NopMetrics returns a Metrics implementation that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }
