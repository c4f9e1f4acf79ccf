package chem

import (
	"strings"

	"github.com/moleculab/synthon-sieve/pkg/errors"
)

// ParseSMILES reads a SMILES string covering the organic subset (B, C, N, O,
// P, S, F, Cl, Br, I and their aromatic forms), bracket atoms with charge and
// explicit hydrogen counts, branches, ring closures (including %nn), and dot
// disconnections.  Stereo markers (/, \, @) are accepted and ignored; isotope
// labels are accepted and discarded.  The returned molecule is perceived.
func ParseSMILES(s string) (*Mol, error) {
	p := &smilesParser{input: s, mol: NewMol(), ringOpen: map[int]ringBond{}}
	if err := p.run(); err != nil {
		return nil, err
	}
	if err := p.mol.Perceive(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidSMILES, "perception failed").WithDetail("smiles=" + s)
	}
	return p.mol, nil
}

type ringBond struct {
	atom  int
	order int // 0 = unspecified
}

type smilesParser struct {
	input    string
	pos      int
	mol      *Mol
	prev     int   // index of the atom awaiting the next bond, -1 if none
	stack    []int // branch return points
	pending  int   // explicit bond order for the next bond, 0 = unspecified
	aromPend bool  // next bond written as ':'
	ringOpen map[int]ringBond
}

func (p *smilesParser) fail(msg string) error {
	return errors.Newf(errors.CodeInvalidSMILES, "%s at position %d", msg, p.pos).
		WithDetail("smiles=" + p.input)
}

func (p *smilesParser) run() error {
	p.prev = -1
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == ' ' || c == '\t':
			// SMILES ends at the first whitespace; anything after is a title.
			p.pos = len(p.input)
		case c == '(':
			if p.prev < 0 {
				return p.fail("branch before any atom")
			}
			p.stack = append(p.stack, p.prev)
			p.pos++
		case c == ')':
			if len(p.stack) == 0 {
				return p.fail("unmatched closing parenthesis")
			}
			p.prev = p.stack[len(p.stack)-1]
			p.stack = p.stack[:len(p.stack)-1]
			p.pos++
		case c == '-':
			p.pending = BondSingle
			p.pos++
		case c == '=':
			p.pending = BondDouble
			p.pos++
		case c == '#':
			p.pending = BondTriple
			p.pos++
		case c == ':':
			p.aromPend = true
			p.pos++
		case c == '/' || c == '\\':
			p.pending = BondSingle
			p.pos++
		case c == '.':
			p.prev = -1
			p.pending = 0
			p.aromPend = false
			p.pos++
		case c == '%':
			if p.pos+2 >= len(p.input) || !isDigit(p.input[p.pos+1]) || !isDigit(p.input[p.pos+2]) {
				return p.fail("malformed %nn ring closure")
			}
			num := int(p.input[p.pos+1]-'0')*10 + int(p.input[p.pos+2]-'0')
			p.pos += 3
			if err := p.ringClosure(num); err != nil {
				return err
			}
		case isDigit(c):
			p.pos++
			if err := p.ringClosure(int(c - '0')); err != nil {
				return err
			}
		case c == '[':
			if err := p.bracketAtom(); err != nil {
				return err
			}
		default:
			if err := p.organicAtom(); err != nil {
				return err
			}
		}
	}
	if len(p.stack) != 0 {
		return p.fail("unclosed branch")
	}
	if len(p.ringOpen) != 0 {
		return p.fail("unbalanced ring closure")
	}
	if len(p.mol.Atoms) == 0 {
		return errors.New(errors.CodeEmptyMolecule, "empty SMILES input")
	}
	return nil
}

func (p *smilesParser) organicAtom() error {
	rest := p.input[p.pos:]
	var element string
	aromatic := false
	switch {
	case strings.HasPrefix(rest, "Cl"):
		element = "Cl"
	case strings.HasPrefix(rest, "Br"):
		element = "Br"
	case rest[0] == 'B' || rest[0] == 'C' || rest[0] == 'N' || rest[0] == 'O' ||
		rest[0] == 'P' || rest[0] == 'S' || rest[0] == 'F' || rest[0] == 'I':
		element = rest[:1]
	case rest[0] == 'b' || rest[0] == 'c' || rest[0] == 'n' || rest[0] == 'o' ||
		rest[0] == 'p' || rest[0] == 's':
		element = strings.ToUpper(rest[:1])
		aromatic = true
	default:
		return p.fail("unexpected character")
	}
	p.pos += len(element)
	p.placeAtom(Atom{Element: element, Aromatic: aromatic, HCount: -1})
	return nil
}

func (p *smilesParser) bracketAtom() error {
	end := strings.IndexByte(p.input[p.pos:], ']')
	if end < 0 {
		return p.fail("unterminated bracket atom")
	}
	body := p.input[p.pos+1 : p.pos+end]
	start := p.pos
	p.pos += end + 1

	i := 0
	for i < len(body) && isDigit(body[i]) { // isotope, discarded
		i++
	}
	if i == len(body) {
		p.pos = start
		return p.fail("bracket atom missing element")
	}

	var element string
	aromatic := false
	if i+1 < len(body) && body[i] >= 'A' && body[i] <= 'Z' && body[i+1] >= 'a' && body[i+1] <= 'z' {
		two := body[i : i+2]
		if _, ok := defaultValence[two]; ok {
			element = two
			i += 2
		}
	}
	if element == "" {
		ch := body[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			element = string(ch)
			i++
		case ch >= 'a' && ch <= 'z':
			element = strings.ToUpper(string(ch))
			aromatic = true
			i++
		default:
			p.pos = start
			return p.fail("bracket atom missing element")
		}
	}
	if _, ok := defaultValence[element]; !ok {
		return errors.Newf(errors.CodeUnknownElement, "unsupported element %q", element).
			WithDetail("smiles=" + p.input)
	}

	hcount := 0
	charge := 0
	for i < len(body) {
		switch body[i] {
		case '@': // chirality, ignored
			i++
		case 'H':
			i++
			hcount = 1
			if i < len(body) && isDigit(body[i]) {
				hcount = int(body[i] - '0')
				i++
			}
		case '+', '-':
			sign := 1
			if body[i] == '-' {
				sign = -1
			}
			i++
			mag := 1
			if i < len(body) && isDigit(body[i]) {
				mag = int(body[i] - '0')
				i++
			} else {
				for i < len(body) && body[i] == body[i-1] {
					mag++
					i++
				}
			}
			charge = sign * mag
		default:
			p.pos = start
			return p.fail("unsupported bracket atom token")
		}
	}

	p.placeAtom(Atom{Element: element, Aromatic: aromatic, Charge: charge, HCount: hcount})
	return nil
}

func (p *smilesParser) placeAtom(a Atom) {
	ai := p.mol.AddAtom(a)
	if p.prev >= 0 {
		order, aromatic := p.takePendingBond(p.prev, ai)
		p.mol.AddBond(p.prev, ai, order, aromatic)
	}
	p.prev = ai
}

func (p *smilesParser) ringClosure(num int) error {
	if p.prev < 0 {
		return p.fail("ring closure before any atom")
	}
	open, ok := p.ringOpen[num]
	if !ok {
		p.ringOpen[num] = ringBond{atom: p.prev, order: p.takeExplicitOrder()}
		return nil
	}
	delete(p.ringOpen, num)
	order := p.takeExplicitOrder()
	if order == 0 {
		order = open.order
	}
	aromatic := false
	if order == 0 {
		order = BondSingle
		if p.mol.Atoms[open.atom].Aromatic && p.mol.Atoms[p.prev].Aromatic {
			aromatic = true
		}
	}
	p.mol.AddBond(open.atom, p.prev, order, aromatic)
	return nil
}

// takePendingBond resolves the bond between two just-connected atoms from any
// explicit bond symbol, defaulting to aromatic when both ends are aromatic.
func (p *smilesParser) takePendingBond(a1, a2 int) (order int, aromatic bool) {
	if p.aromPend {
		p.aromPend = false
		return BondSingle, true
	}
	if p.pending != 0 {
		order = p.pending
		p.pending = 0
		return order, false
	}
	if p.mol.Atoms[a1].Aromatic && p.mol.Atoms[a2].Aromatic {
		return BondSingle, true
	}
	return BondSingle, false
}

// takeExplicitOrder consumes a pending explicit bond symbol for a ring
// closure digit, returning 0 when none was written.
func (p *smilesParser) takeExplicitOrder() int {
	if p.aromPend {
		p.aromPend = false
		return BondSingle
	}
	order := p.pending
	p.pending = 0
	return order
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
