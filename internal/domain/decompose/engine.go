package decompose

import (
	"sort"

	"github.com/moleculab/synthon-sieve/internal/chem"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// Synthon is one element of the decomposition result.  Key is the canonical
// serialization of the capped fragment; equal keys denote interchangeable
// building blocks.
type Synthon struct {
	Key        string
	Mol        *chem.Mol
	HeavyAtoms int
}

// Config controls which rule families fire and whether heavy halogens are
// collapsed before canonicalization.
type Config struct {
	// Enabled overrides the per-family enable flags.  Families absent from
	// the map keep their DefaultEnabled value.
	Enabled map[Family]bool

	// NormalizeHalogens rewrites Br and I to Cl on every synthon, so that
	// compounds differing only in leaving-group halogen map to the same
	// building blocks.  Defaults to on via DefaultConfig.
	NormalizeHalogens bool
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{Enabled: DefaultEnabled(), NormalizeHalogens: true}
}

// Engine decomposes molecules with a fixed, priority-ordered rule set.  It is
// immutable after construction and safe for concurrent use.
type Engine struct {
	rules             []Rule
	normalizeHalogens bool
	log               logging.Logger
}

// NewEngine validates cfg and builds an Engine holding only the enabled rule
// families, sorted by ascending priority.
func NewEngine(cfg Config, log logging.Logger) (*Engine, error) {
	enabled := DefaultEnabled()
	for fam, on := range cfg.Enabled {
		if _, known := enabled[fam]; !known {
			return nil, errors.Newf(errors.CodeUnknownRuleFamily, "unknown rule family %q", fam)
		}
		enabled[fam] = on
	}

	var rules []Rule
	for _, r := range AllRules() {
		if enabled[r.Family] {
			rules = append(rules, r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })

	return &Engine{
		rules:             rules,
		normalizeHalogens: cfg.NormalizeHalogens,
		log:               log.Named("decompose"),
	}, nil
}

// Families returns the enabled families in priority order.
func (e *Engine) Families() []Family {
	out := make([]Family, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Family
	}
	return out
}

// Decompose returns the canonical synthon multiset of m, sorted by key.  All
// matches are collected against the original, unmodified molecule with
// first-match-wins semantics per bond, then applied simultaneously; a
// molecule no rule touches comes back as its own single synthon.  The input
// molecule is never mutated.
func (e *Engine) Decompose(m *chem.Mol) ([]Synthon, error) {
	work := m.Clone()
	if err := work.Perceive(); err != nil {
		return nil, err
	}

	consumed := make(map[int]bool)
	var cleavages []Cleavage
	for _, rule := range e.rules {
		for bi := range work.Bonds {
			if consumed[bi] {
				continue
			}
			cl, ok := rule.Match(work, bi)
			if !ok {
				continue
			}
			conflict := false
			for _, cut := range cl.Cuts {
				if consumed[cut.Bond] {
					conflict = true
				}
			}
			if conflict {
				continue
			}
			for _, cut := range cl.Cuts {
				consumed[cut.Bond] = true
			}
			for _, cbi := range cl.Consumes {
				consumed[cbi] = true
			}
			cleavages = append(cleavages, cl)
			e.log.Debug("bond matched",
				logging.String("family", string(rule.Family)),
				logging.Int("bond", bi),
				logging.Int("cuts", len(cl.Cuts)))
		}
	}

	if len(cleavages) > 0 {
		if err := applyCleavages(work, cleavages); err != nil {
			return nil, err
		}
	}
	if e.normalizeHalogens {
		work.NormalizeHalogens()
	}
	if err := work.Perceive(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCleavageFailed, "capped molecule failed perception")
	}

	var synthons []Synthon
	for _, comp := range work.Fragments() {
		frag := work.ExtractFragment(comp)
		if err := frag.Perceive(); err != nil {
			return nil, errors.Wrap(err, errors.CodeCleavageFailed, "fragment failed perception")
		}
		key, err := frag.CanonicalKey()
		if err != nil {
			return nil, err
		}
		synthons = append(synthons, Synthon{Key: key, Mol: frag, HeavyAtoms: frag.NumHeavyAtoms()})
	}
	sort.Slice(synthons, func(i, j int) bool { return synthons[i].Key < synthons[j].Key })
	return synthons, nil
}

// applyCleavages removes all cut bonds and attaches the caps.  Bonds are
// removed in descending index order so earlier indices stay valid; cap
// targets are atom indices, which bond removal never shifts.
func applyCleavages(work *chem.Mol, cleavages []Cleavage) error {
	type capTarget struct {
		atom int
		cap  Cap
	}
	var caps []capTarget
	var bonds []int
	for _, cl := range cleavages {
		for _, cut := range cl.Cuts {
			b := work.Bonds[cut.Bond]
			bonds = append(bonds, cut.Bond)
			caps = append(caps, capTarget{atom: b.A1, cap: cut.CapA1}, capTarget{atom: b.A2, cap: cut.CapA2})
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(bonds)))
	for i, bi := range bonds {
		if i > 0 && bonds[i-1] == bi {
			return errors.New(errors.CodeCleavageFailed, "bond cut twice")
		}
		work.RemoveBond(bi)
	}
	for _, ct := range caps {
		if ct.cap.Element == "" {
			work.Atoms[ct.atom].HCount++
			continue
		}
		capIdx := work.AddAtom(chem.Atom{Element: ct.cap.Element, HCount: 0})
		work.AddBond(ct.atom, capIdx, chem.BondSingle, false)
	}
	return nil
}
