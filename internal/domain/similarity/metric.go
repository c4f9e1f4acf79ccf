// Package similarity provides the descriptor-space similarity metrics and the
// threshold-gated neighbor counters that turn a reference library into
// per-synthon popularity scores.
package similarity

import (
	"math"

	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// Metric names accepted by NewMetric.
const (
	MetricMoment  = "moment"
	MetricTversky = "tversky"
)

// Default Tversky asymmetry weights: the query side dominates, so a query
// synthon embedded in a larger library synthon still scores as similar.
const (
	DefaultTverskyAlpha = 0.7
	DefaultTverskyBeta  = 0.3
)

// Metric scores the similarity of two equal-length descriptor vectors.
// Implementations return values in [0, 1], higher meaning more similar, and
// must be free of hidden state so counters can call them from many
// goroutines.
type Metric interface {
	Name() string
	Similarity(a, b []float64) float64
}

// MomentDistance maps the mean absolute component difference d to 1/(1+d).
// Identical vectors score exactly 1.
type MomentDistance struct{}

// NewMomentDistance returns the moment-distance metric.
func NewMomentDistance() MomentDistance { return MomentDistance{} }

// Name returns "moment".
func (MomentDistance) Name() string { return MetricMoment }

// Similarity implements Metric.
func (MomentDistance) Similarity(a, b []float64) float64 {
	if len(a) == 0 {
		return 1
	}
	sum := 0.0
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return 1 / (1 + sum/float64(len(a)))
}

// Tversky is the asymmetric set-overlap similarity generalized to continuous
// non-negative features.  With Alpha weighting the query-only mass and Beta
// the reference-only mass, Alpha > Beta rewards queries contained in the
// reference.  Negative vector components are clamped to zero.
type Tversky struct {
	Alpha float64
	Beta  float64
}

// NewTversky returns a Tversky metric, substituting the default weights when
// both are zero.
func NewTversky(alpha, beta float64) Tversky {
	if alpha == 0 && beta == 0 {
		alpha, beta = DefaultTverskyAlpha, DefaultTverskyBeta
	}
	return Tversky{Alpha: alpha, Beta: beta}
}

// Name returns "tversky".
func (Tversky) Name() string { return MetricTversky }

// Similarity implements Metric.
func (m Tversky) Similarity(a, b []float64) float64 {
	var common, onlyA, onlyB float64
	for i := range a {
		x, y := math.Max(a[i], 0), math.Max(b[i], 0)
		mn := math.Min(x, y)
		common += mn
		onlyA += x - mn
		onlyB += y - mn
	}
	denom := common + m.Alpha*onlyA + m.Beta*onlyB
	if denom == 0 {
		return 1 // two all-zero vectors are identical
	}
	return common / denom
}

// NewMetric resolves a metric by name.  Tversky weights of zero select the
// defaults.
func NewMetric(name string, alpha, beta float64) (Metric, error) {
	switch name {
	case MetricMoment, "":
		return NewMomentDistance(), nil
	case MetricTversky:
		return NewTversky(alpha, beta), nil
	}
	return nil, errors.Newf(errors.CodeUnknownMetric, "unknown similarity metric %q", name)
}
