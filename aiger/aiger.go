// Package aiger reads and writes AIGER 1.9 circuit files in both the
// ASCII (aag) and binary (aig) formats.
//
// Literals follow the AIGER convention: even literals are positive
// variable occurrences (variable = literal/2), odd literals are
// negations; 0 is constant false and 1 constant true.
package aiger

import (
	"errors"
	"fmt"
)

// ErrParse wraps all malformed-input failures.
var ErrParse = errors.New("aiger: parse error")

// Latch is a state-holding element. Reset is 0, 1, or the latch's own
// literal (meaning uninitialized).
type Latch struct {
	Lit   uint
	Next  uint
	Reset uint
}

// And is a two-input and-gate. LHS is always an even literal.
type And struct {
	LHS  uint
	RHS0 uint
	RHS1 uint
}

// File is a parsed AIGER circuit.
type File struct {
	MaxVar uint

	Inputs      []uint
	Latches     []Latch
	Outputs     []uint
	Ands        []And
	Bad         []uint
	Constraints []uint
	Justice     [][]uint
	Fairness    []uint

	Comments []string
}

// Not flips a literal.
func Not(l uint) uint { return l ^ 1 }

// Sign reports whether the literal is negated.
func Sign(l uint) bool { return l&1 == 1 }

// Strip removes the sign from a literal.
func Strip(l uint) uint { return l &^ 1 }

// Var is the variable index of a literal.
func Var(l uint) uint { return l >> 1 }

// Lit builds the positive literal of a variable.
func Lit(v uint) uint { return v << 1 }

// NumInputs returns the number of inputs.
func (f *File) NumInputs() int { return len(f.Inputs) }

// NumLatches returns the number of latches.
func (f *File) NumLatches() int { return len(f.Latches) }

// IsAnd returns the gate driving the stripped literal, if any.
func (f *File) IsAnd(l uint) (And, bool) {
	v := Var(Strip(l))
	base := uint(len(f.Inputs)+len(f.Latches)) + 1
	if v < base || v > f.MaxVar {
		return And{}, false
	}
	i := int(v - base)
	if i >= len(f.Ands) {
		return And{}, false
	}
	// only valid on reencoded files, where gate i drives var base+i
	if Var(f.Ands[i].LHS) == v {
		return f.Ands[i], true
	}
	for _, a := range f.Ands {
		if Var(a.LHS) == v {
			return a, true
		}
	}
	return And{}, false
}

// IsReencoded reports whether the file is in the canonical topological
// encoding: inputs first, then latches, then and-gates with ascending
// left-hand sides that only reference smaller literals.
func (f *File) IsReencoded() bool {
	lit := uint(2)
	for _, in := range f.Inputs {
		if in != lit {
			return false
		}
		lit += 2
	}
	for _, l := range f.Latches {
		if l.Lit != lit {
			return false
		}
		lit += 2
	}
	for _, a := range f.Ands {
		if a.LHS != lit || a.RHS0 >= a.LHS || a.RHS1 > a.RHS0 {
			return false
		}
		lit += 2
	}
	return true
}

func parseErr(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrParse, line, fmt.Sprintf(format, args...))
}
