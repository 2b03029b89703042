// Package sat is the uniform SAT interface of the checker: incremental
// queries with assumptions, unsat cores from failed assumptions,
// scoped temporary clauses and per-frame activation literals, over
// exchangeable back-ends.
package sat

import (
	"errors"

	"github.com/crillab/gophersat/solver"
	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/settings"
)

// ErrUnknown is returned when a back-end gives up on a query. It is
// fatal: engines surface it to the driver as an Unknown result.
var ErrUnknown = errors.New("sat: solver returned unknown")

// backend is the minimal capability set a concrete solver provides.
type backend interface {
	AddClause(cls logic.Clause)
	// Solve decides the clauses under the given assumptions.
	Solve(assumptions []int) (bool, error)
	// Value reads the model after a satisfiable Solve.
	Value(id int) bool
	// FailedAssumptions returns the subset of the last assumptions the
	// conflict was derived from, or nil when unsupported.
	FailedAssumptions() []int
	// Incremental reports whether cores and learnt state persist.
	Incremental() bool
}

// giniBackend is the incremental CDCL back-end.
type giniBackend struct {
	g    *gini.Gini
	last []int
}

func newGiniBackend() *giniBackend { return &giniBackend{g: gini.New()} }

func (b *giniBackend) AddClause(cls logic.Clause) {
	for _, l := range cls {
		b.g.Add(z.Dimacs2Lit(l))
	}
	b.g.Add(z.LitNull)
}

func (b *giniBackend) Solve(assumptions []int) (bool, error) {
	b.last = assumptions
	for _, a := range assumptions {
		b.g.Assume(z.Dimacs2Lit(a))
	}
	switch b.g.Solve() {
	case 1:
		return true, nil
	case -1:
		return false, nil
	}
	return false, ErrUnknown
}

func (b *giniBackend) Value(id int) bool {
	v := b.g.Value(z.Dimacs2Lit(logic.Abs(id)))
	if id < 0 {
		return !v
	}
	return v
}

func (b *giniBackend) FailedAssumptions() []int {
	why := b.g.Why(nil)
	out := make([]int, 0, len(why))
	for _, l := range why {
		out = append(out, l.Dimacs())
	}
	return out
}

func (b *giniBackend) Incremental() bool { return true }

// gophersatBackend is the one-shot back-end used by BMC. Every Solve
// rebuilds a fresh solver over the accumulated clauses plus the
// assumptions as units.
type gophersatBackend struct {
	clauses [][]int
	model   []bool
}

func newGophersatBackend() *gophersatBackend { return &gophersatBackend{} }

func (b *gophersatBackend) AddClause(cls logic.Clause) {
	b.clauses = append(b.clauses, logic.Clone(cls))
}

func (b *gophersatBackend) Solve(assumptions []int) (bool, error) {
	cnf := make([][]int, 0, len(b.clauses)+len(assumptions))
	cnf = append(cnf, b.clauses...)
	for _, a := range assumptions {
		cnf = append(cnf, []int{a})
	}
	s := solver.New(solver.ParseSlice(cnf))
	switch s.Solve() {
	case solver.Sat:
		b.model = s.Model()
		return true, nil
	case solver.Unsat:
		return false, nil
	}
	return false, ErrUnknown
}

func (b *gophersatBackend) Value(id int) bool {
	v := logic.Abs(id)
	val := false
	if v-1 < len(b.model) {
		val = b.model[v-1]
	}
	if id < 0 {
		return !val
	}
	return val
}

func (b *gophersatBackend) FailedAssumptions() []int { return nil }

func (b *gophersatBackend) Incremental() bool { return false }

func newBackend(kind settings.Backend) backend {
	if kind == settings.Gophersat {
		return newGophersatBackend()
	}
	return newGiniBackend()
}
