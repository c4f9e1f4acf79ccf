package subsetting

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// Compound is one catalogue record awaiting assessment.
type Compound struct {
	ID     string
	SMILES string
}

// ErrExhausted is returned by Source.Next once the stream ends.
var ErrExhausted = errors.New(errors.CodeSourceExhausted, "compound source exhausted")

// Source streams compounds into the pipeline.  Next returns ErrExhausted
// after the last record; implementations must be safe for a single consumer
// goroutine.
type Source interface {
	Next() (Compound, error)
}

// SliceSource serves an in-memory compound list.
type SliceSource struct {
	mu        sync.Mutex
	compounds []Compound
	pos       int
}

// NewSliceSource wraps a compound slice.
func NewSliceSource(compounds []Compound) *SliceSource {
	return &SliceSource{compounds: compounds}
}

// Next implements Source.
func (s *SliceSource) Next() (Compound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.compounds) {
		return Compound{}, ErrExhausted
	}
	c := s.compounds[s.pos]
	s.pos++
	return c, nil
}

// LineSource reads tab- or space-separated "SMILES [id]" lines, the layout
// of catalogue CXSMILES exports.  Blank lines and lines starting with '#'
// are skipped; a missing id falls back to the 1-based line number.
type LineSource struct {
	scanner *bufio.Scanner
	line    int
}

// NewLineSource wraps a reader of catalogue lines.  Lines up to 4 MiB are
// supported; catalogue CXSMILES rows stay far below that.
func NewLineSource(r io.Reader) *LineSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &LineSource{scanner: sc}
}

// Next implements Source.
func (s *LineSource) Next() (Compound, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		c := Compound{SMILES: fields[0]}
		if len(fields) > 1 {
			c.ID = fields[1]
		} else {
			c.ID = "line-" + strconv.Itoa(s.line)
		}
		return c, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Compound{}, errors.Wrap(err, errors.CodeInternal, "compound stream read failed")
	}
	return Compound{}, ErrExhausted
}
