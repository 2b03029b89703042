package aiger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Load reads the AIGER file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("aiger: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses an AIGER circuit in ASCII or binary form.
func Read(r io.Reader) (*File, error) {
	p := &parser{r: bufio.NewReader(r), line: 1}
	return p.parse()
}

type parser struct {
	r    *bufio.Reader
	line int
}

func (p *parser) parse() (*File, error) {
	header, err := p.readLine()
	if err != nil {
		return nil, parseErr(p.line, "missing header")
	}
	fields := strings.Fields(header)
	if len(fields) < 6 || len(fields) > 10 {
		return nil, parseErr(1, "malformed header %q", header)
	}
	binary := false
	switch fields[0] {
	case "aig":
		binary = true
	case "aag":
	default:
		return nil, parseErr(1, "unknown format %q", fields[0])
	}

	var counts [9]uint // M I L O A B C J F
	for i := 1; i < len(fields); i++ {
		n, err := parseUint(fields[i])
		if err != nil {
			return nil, parseErr(1, "bad header field %q", fields[i])
		}
		counts[i-1] = n
	}
	m, ni, nl, no, na := counts[0], counts[1], counts[2], counts[3], counts[4]
	nb, nc, nj, nf := counts[5], counts[6], counts[7], counts[8]
	if m < ni+nl+na {
		return nil, parseErr(1, "maximum variable index %d too small", m)
	}
	if binary && m != ni+nl+na {
		return nil, parseErr(1, "binary file must be reencoded")
	}

	f := &File{MaxVar: m}

	// inputs
	if binary {
		for i := uint(0); i < ni; i++ {
			f.Inputs = append(f.Inputs, 2*(i+1))
		}
	} else {
		for i := uint(0); i < ni; i++ {
			lits, err := p.readLits(1)
			if err != nil {
				return nil, err
			}
			f.Inputs = append(f.Inputs, lits[0])
		}
	}

	// latches: "[lit] next [reset]"; reset defaults to 0
	for i := uint(0); i < nl; i++ {
		lits, err := p.readLitLine()
		if err != nil {
			return nil, err
		}
		var l Latch
		if binary {
			l.Lit = 2 * (ni + i + 1)
			switch len(lits) {
			case 1:
				l.Next, l.Reset = lits[0], 0
			case 2:
				l.Next, l.Reset = lits[0], lits[1]
			default:
				return nil, parseErr(p.line-1, "malformed latch definition")
			}
		} else {
			switch len(lits) {
			case 2:
				l.Lit, l.Next, l.Reset = lits[0], lits[1], 0
			case 3:
				l.Lit, l.Next, l.Reset = lits[0], lits[1], lits[2]
			default:
				return nil, parseErr(p.line-1, "malformed latch definition")
			}
		}
		if l.Reset != 0 && l.Reset != 1 && l.Reset != l.Lit {
			return nil, parseErr(p.line-1, "latch reset %d must be 0, 1 or the latch itself", l.Reset)
		}
		f.Latches = append(f.Latches, l)
	}

	readSection := func(n uint, dst *[]uint) error {
		for i := uint(0); i < n; i++ {
			lits, err := p.readLits(1)
			if err != nil {
				return err
			}
			*dst = append(*dst, lits[0])
		}
		return nil
	}
	if err := readSection(no, &f.Outputs); err != nil {
		return nil, err
	}
	if err := readSection(nb, &f.Bad); err != nil {
		return nil, err
	}
	if err := readSection(nc, &f.Constraints); err != nil {
		return nil, err
	}

	// justice: J size lines, then the literals of each property
	sizes := make([]uint, 0, nj)
	for i := uint(0); i < nj; i++ {
		lits, err := p.readLits(1)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, lits[0])
	}
	for _, sz := range sizes {
		var prop []uint
		if err := readSection(sz, &prop); err != nil {
			return nil, err
		}
		f.Justice = append(f.Justice, prop)
	}
	if err := readSection(nf, &f.Fairness); err != nil {
		return nil, err
	}

	// and-gates
	if binary {
		lhs := 2 * (ni + nl)
		for i := uint(0); i < na; i++ {
			lhs += 2
			d0, err := p.readVarint()
			if err != nil {
				return nil, err
			}
			d1, err := p.readVarint()
			if err != nil {
				return nil, err
			}
			if d0 > lhs {
				return nil, parseErr(p.line, "invalid and-gate delta")
			}
			rhs0 := lhs - d0
			if d1 > rhs0 {
				return nil, parseErr(p.line, "invalid and-gate delta")
			}
			f.Ands = append(f.Ands, And{LHS: lhs, RHS0: rhs0, RHS1: rhs0 - d1})
		}
	} else {
		for i := uint(0); i < na; i++ {
			lits, err := p.readLits(3)
			if err != nil {
				return nil, err
			}
			if Sign(lits[0]) {
				return nil, parseErr(p.line-1, "and-gate output %d must be even", lits[0])
			}
			f.Ands = append(f.Ands, And{LHS: lits[0], RHS0: lits[1], RHS1: lits[2]})
		}
	}

	p.readTrailer(f)

	for _, lists := range [][]uint{f.Inputs, f.Outputs, f.Bad, f.Constraints} {
		for _, l := range lists {
			if Var(l) > m {
				return nil, parseErr(p.line, "literal %d exceeds maximum variable %d", l, m)
			}
		}
	}
	return f, nil
}

// readTrailer consumes the optional symbol table and comments.
func (p *parser) readTrailer(f *File) {
	inComments := false
	for {
		line, err := p.readLine()
		if err != nil {
			return
		}
		if inComments {
			f.Comments = append(f.Comments, line)
			continue
		}
		if line == "c" {
			inComments = true
			continue
		}
		// symbol entries ("i0 name", "l2 name", ...) are tolerated and
		// dropped; anything else ends the scan
		if len(line) == 0 {
			continue
		}
		switch line[0] {
		case 'i', 'l', 'o', 'b', 'c', 'j', 'f':
		default:
			return
		}
	}
}

func (p *parser) readLine() (string, error) {
	s, err := p.r.ReadString('\n')
	if err != nil && len(s) == 0 {
		return "", err
	}
	p.line++
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *parser) readLitLine() ([]uint, error) {
	line, err := p.readLine()
	if err != nil {
		return nil, parseErr(p.line, "unexpected end of file")
	}
	fields := strings.Fields(line)
	lits := make([]uint, 0, len(fields))
	for _, fld := range fields {
		n, err := parseUint(fld)
		if err != nil {
			return nil, parseErr(p.line-1, "bad literal %q", fld)
		}
		lits = append(lits, n)
	}
	return lits, nil
}

func (p *parser) readLits(n int) ([]uint, error) {
	lits, err := p.readLitLine()
	if err != nil {
		return nil, err
	}
	if len(lits) != n {
		return nil, parseErr(p.line-1, "expected %d literals, got %d", n, len(lits))
	}
	return lits, nil
}

// readVarint decodes the 7-bit little-endian delta encoding of the
// binary and-gate section.
func (p *parser) readVarint() (uint, error) {
	var x uint
	var shift uint
	for {
		b, err := p.r.ReadByte()
		if err != nil {
			return 0, parseErr(p.line, "truncated and-gate section")
		}
		x |= uint(b&0x7f) << shift
		if b&0x80 == 0 {
			return x, nil
		}
		shift += 7
		if shift > 63 {
			return 0, parseErr(p.line, "varint overflow in and-gate section")
		}
	}
}

func parseUint(s string) (uint, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("empty")
	}
	var n uint
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a number")
		}
		n = n*10 + uint(c-'0')
	}
	return n, nil
}
