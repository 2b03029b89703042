package sat

import (
	"sort"

	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/settings"
)

// Solver is the engine-facing facade: a back-end plus the model-aware
// operations (transition loading, prime-aware assignments and cores,
// frame activation flags, scoped temporary clauses).
type Solver struct {
	m  *model.Model
	be backend

	assumptions []int
	frameFlags  []int
	tempLit     int
	maxID       int
}

// New creates a facade over the chosen back-end. Fresh activation and
// guard variables are allocated above the model's id space.
func New(m *model.Model, kind settings.Backend) *Solver {
	return &Solver{m: m, be: newBackend(kind), maxID: m.MaxID() + 1}
}

// NewVar allocates a fresh solver-local variable.
func (s *Solver) NewVar() int {
	s.maxID++
	return s.maxID
}

// Incremental reports whether the back-end supports cores and reuse.
func (s *Solver) Incremental() bool { return s.be.Incremental() }

// AddClause forwards a clause to the back-end.
func (s *Solver) AddClause(cls logic.Clause) { s.be.AddClause(cls) }

// AddTrans loads the simplified transition CNF.
func (s *Solver) AddTrans() {
	for _, c := range s.m.SimpClauses() {
		s.be.AddClause(c)
	}
}

// AddPrimedCopy loads the transition CNF renamed one step forward, so
// the property cone can be evaluated over the successor state.
func (s *Solver) AddPrimedCopy() {
	for _, c := range s.m.SimpClauses() {
		primed := make(logic.Clause, len(c))
		for i, l := range c {
			primed[i] = s.m.PrimeK(l, 1)
		}
		s.be.AddClause(primed)
	}
	if s.maxID <= s.m.MaxID() {
		s.maxID = s.m.MaxID() + 1
	}
}

// AddInitialClauses loads the initial-state units and the binding
// clauses of gate-reset latches.
func (s *Solver) AddInitialClauses() {
	for _, l := range s.m.InitialState() {
		s.be.AddClause(logic.Clause{l})
	}
	for _, c := range s.m.InitialClauses() {
		s.be.AddClause(c)
	}
}

// AddProperty pins the property ¬bad in the current state.
func (s *Solver) AddProperty() { s.be.AddClause(logic.Clause{s.m.Property()}) }

// PushAssumption appends a persistent assumption.
func (s *Solver) PushAssumption(a int) { s.assumptions = append(s.assumptions, a) }

// PopAssumption removes and returns the newest assumption.
func (s *Solver) PopAssumption() int {
	a := s.assumptions[len(s.assumptions)-1]
	s.assumptions = s.assumptions[:len(s.assumptions)-1]
	return a
}

// ClearAssumptions drops all persistent assumptions.
func (s *Solver) ClearAssumptions() { s.assumptions = s.assumptions[:0] }

// Solve decides under the persistent assumptions (plus the temporary
// clause guard, when one is active).
func (s *Solver) Solve() (bool, error) {
	assumptions := s.assumptions
	if s.tempLit != 0 {
		assumptions = append(append([]int(nil), assumptions...), s.tempLit)
	}
	return s.be.Solve(assumptions)
}

// SolveCube replaces the assumptions with the cube and solves.
func (s *Solver) SolveCube(c logic.Cube) (bool, error) {
	s.ClearAssumptions()
	s.assumptions = append(s.assumptions, c...)
	return s.Solve()
}

// frameFlag returns the activation literal of a frame, allocating the
// missing levels.
func (s *Solver) frameFlag(lvl int) int {
	for len(s.frameFlags) <= lvl {
		s.frameFlags = append(s.frameFlags, s.NewVar())
	}
	return s.frameFlags[lvl]
}

// FrameFlag exposes the activation literal bound to a frame level.
func (s *Solver) FrameFlag(lvl int) int { return s.frameFlag(lvl) }

// SolveFrame decides the cube against the clauses of frame lvl.
func (s *Solver) SolveFrame(c logic.Cube, lvl int) (bool, error) {
	s.ClearAssumptions()
	s.assumptions = append(s.assumptions, s.frameFlag(lvl))
	s.assumptions = append(s.assumptions, c...)
	return s.Solve()
}

// AddUC installs a blocking cube as a frame-activated clause. When
// primed is set the clause speaks about the successor state.
func (s *Solver) AddUC(uc logic.Cube, lvl int, primed bool) {
	cls := make(logic.Clause, 0, len(uc)+1)
	cls = append(cls, -s.frameFlag(lvl))
	for _, l := range uc {
		if primed {
			cls = append(cls, -s.m.Prime(l))
		} else {
			cls = append(cls, -l)
		}
	}
	s.be.AddClause(cls)
}

// AddTempClause installs a clause valid until ReleaseTempClause. At
// most one may be active; violating the protocol is a programming
// error.
func (s *Solver) AddTempClause(cls logic.Clause) {
	if s.tempLit != 0 {
		panic("sat: temporary clause already active")
	}
	s.tempLit = s.NewVar()
	guarded := make(logic.Clause, 0, len(cls)+1)
	guarded = append(guarded, cls...)
	guarded = append(guarded, -s.tempLit)
	s.be.AddClause(guarded)
}

// ReleaseTempClause retires the active temporary clause.
func (s *Solver) ReleaseTempClause() {
	if s.tempLit == 0 {
		panic("sat: no temporary clause to release")
	}
	s.be.AddClause(logic.Clause{-s.tempLit})
	s.tempLit = 0
}

// Value reads one signed id from the current model.
func (s *Solver) Value(id int) bool { return s.be.Value(id) }

// Assignment extracts the input and state cubes of the current model.
// With prime set, latch and innard values are read through the prime
// map, giving the successor state in current-state variables.
func (s *Solver) Assignment(prime bool) (inputs, latches logic.Cube) {
	for _, i := range s.m.ModelInputs() {
		if s.be.Value(i) {
			inputs = append(inputs, i)
		} else {
			inputs = append(inputs, -i)
		}
	}
	read := func(i int) {
		id := i
		if prime {
			id = s.m.Prime(i)
		}
		if s.be.Value(id) {
			latches = append(latches, i)
		} else {
			latches = append(latches, -i)
		}
	}
	for _, i := range s.m.ModelLatches() {
		read(i)
	}
	for _, i := range s.m.Innards() {
		read(i)
	}
	return inputs, latches
}

// PrimeInputs reads the one-step-renamed input variables, as assumed
// by lift queries against the primed property cone.
func (s *Solver) PrimeInputs() logic.Cube {
	var out logic.Cube
	for _, i := range s.m.ModelInputs() {
		p := s.m.PrimeK(i, 1)
		if s.be.Value(p) {
			out = append(out, p)
		} else {
			out = append(out, -p)
		}
	}
	return out
}

// UnsatCore extracts the state literals of the conflicting assumption
// subset. With prime set, primed assumption literals are mapped back
// to the current-state literals they stand for. An empty core means
// the query was contradictory independent of the state: the property
// holds trivially in that context.
func (s *Solver) UnsatCore(prime bool) logic.Cube {
	var uc logic.Cube
	for _, val := range s.be.FailedAssumptions() {
		if prime {
			uc = append(uc, s.m.PrevOfPrime(val)...)
		} else if s.m.IsLatch(val) || s.m.IsInnard(val) {
			uc = append(uc, val)
		}
	}
	logic.SortCube(uc)
	return dedupe(uc)
}

// UnsatCoreFromBad keeps the latch literals of the core, dropping the
// bad assumption itself; used by the backward engine's level -1
// queries.
func (s *Solver) UnsatCoreFromBad(badID int) logic.Cube {
	var uc logic.Cube
	for _, val := range s.be.FailedAssumptions() {
		if s.m.IsLatch(val) && val != badID {
			uc = append(uc, val)
		}
	}
	logic.SortCube(uc)
	return dedupe(uc)
}

// AddConstraintOr asserts that the state lies inside at least one cube
// of the frame.
func (s *Solver) AddConstraintOr(frame []logic.Cube) {
	cls := make(logic.Clause, 0, len(frame))
	for _, c := range frame {
		flag := s.NewVar()
		cls = append(cls, flag)
		for _, l := range c {
			s.be.AddClause(logic.Clause{-flag, l})
		}
	}
	s.be.AddClause(cls)
}

// AddConstraintAnd assumes that the state avoids every cube of the
// frame; FlipLastConstraint retires the assumption.
func (s *Solver) AddConstraintAnd(frame []logic.Cube) {
	flag := s.NewVar()
	for _, c := range frame {
		cls := make(logic.Clause, 0, len(c)+1)
		for _, l := range c {
			cls = append(cls, -l)
		}
		cls = append(cls, -flag)
		s.be.AddClause(cls)
	}
	s.PushAssumption(flag)
}

// FlipLastConstraint pops the newest assumption and pins it false.
func (s *Solver) FlipLastConstraint() {
	f := s.PopAssumption()
	s.be.AddClause(logic.Clause{-f})
}

func dedupe(c logic.Cube) logic.Cube {
	if len(c) < 2 {
		return c
	}
	out := c[:1]
	for _, l := range c[1:] {
		if l != out[len(out)-1] {
			out = append(out, l)
		}
	}
	return out
}

// SortByAbs orders a cube by magnitude for solver-facing assumptions.
func SortByAbs(c logic.Cube) {
	sort.Slice(c, func(i, j int) bool { return logic.Abs(c[i]) < logic.Abs(c[j]) })
}
