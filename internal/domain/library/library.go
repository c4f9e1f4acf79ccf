// Package library holds the reference synthon library: the canonical-key to
// popularity-tally mapping, with one descriptor vector per unique synthon,
// against which query compounds are scored.
package library

import (
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// Entry is one unique synthon in the library.
type Entry struct {
	// Key is the canonical synthon serialization.
	Key string `json:"key"`
	// Tally is the normalized popularity count.
	Tally float64 `json:"tally"`
	// Vector is the synthon's descriptor, of the library's dimension.
	Vector []float64 `json:"vector"`
}

// Library is an in-memory reference library.  It is not safe for concurrent
// mutation; build it once, then share it read-only across scorers.
type Library struct {
	dim     int
	entries []Entry
	index   map[string]int

	// InsufficientSample flags a library built from fewer compounds than the
	// configured minimum.  Scoring against it still works; downstream
	// consumers decide how much to trust the tallies.
	InsufficientSample bool
}

// New returns an empty library whose vectors have the given dimension.
func New(dim int) *Library {
	return &Library{dim: dim, index: make(map[string]int)}
}

// FromEntries builds a library from a flat entry list, merging duplicate keys
// additively.  The first vector seen for a key wins.
func FromEntries(dim int, entries []Entry) (*Library, error) {
	l := New(dim)
	for _, e := range entries {
		if err := l.Add(e.Key, e.Tally, e.Vector); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Dim returns the descriptor dimension.
func (l *Library) Dim() int { return l.dim }

// Len returns the number of unique synthons.
func (l *Library) Len() int { return len(l.entries) }

// Entries exposes the backing entry slice in insertion order.  Callers must
// treat it as read-only.
func (l *Library) Entries() []Entry { return l.entries }

// Get returns the entry for key.
func (l *Library) Get(key string) (Entry, bool) {
	i, ok := l.index[key]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Add accumulates tally onto key, registering the vector if the key is new.
// Adding is commutative and associative in the tallies, which is what makes
// shard-and-merge builds and incremental updates order-independent.
func (l *Library) Add(key string, tally float64, vec []float64) error {
	if i, ok := l.index[key]; ok {
		l.entries[i].Tally += tally
		return nil
	}
	if len(vec) != l.dim {
		return errors.Newf(errors.CodeVectorDimMismatch,
			"vector dim %d does not match library dim %d", len(vec), l.dim).
			WithDetail("key=" + key)
	}
	l.index[key] = len(l.entries)
	l.entries = append(l.entries, Entry{Key: key, Tally: tally, Vector: vec})
	return nil
}

// Scale multiplies every tally by factor.
func (l *Library) Scale(factor float64) {
	for i := range l.entries {
		l.entries[i].Tally *= factor
	}
}

// Merge folds other into l additively.  Dimensions must match; the
// InsufficientSample flag is sticky across merges.
func (l *Library) Merge(other *Library) error {
	if other.dim != l.dim {
		return errors.Newf(errors.CodeVectorDimMismatch,
			"cannot merge library dim %d into dim %d", other.dim, l.dim)
	}
	for _, e := range other.entries {
		if err := l.Add(e.Key, e.Tally, e.Vector); err != nil {
			return err
		}
	}
	l.InsufficientSample = l.InsufficientSample || other.InsufficientSample
	return nil
}
