package model

import (
	"sort"
	"strconv"
	"strings"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"github.com/carbide-mc/carbide/circuit"
	"github.com/carbide-mc/carbide/logic"
)

// sigChunks*64 random cycles feed each equivalence signature.
const sigChunks = 4

type signature [sigChunks]uint64

func (s signature) not() signature {
	var out signature
	for i, c := range s {
		out[i] = ^c
	}
	return out
}

// eqSolver is the raw confirmation solver for simulation-guessed
// equivalences. It is recycled after 2000 unsats to discharge the
// accumulated learnt state.
type eqSolver struct {
	g *gini.Gini
}

func newEqSolver(clauses []logic.Clause) *eqSolver {
	s := &eqSolver{g: gini.New()}
	for _, c := range clauses {
		s.addClause(c)
	}
	return s
}

func (s *eqSolver) addClause(cls logic.Clause) {
	for _, l := range cls {
		s.g.Add(z.Dimacs2Lit(l))
	}
	s.g.Add(z.LitNull)
}

func (s *eqSolver) solveAssume(lits ...int) bool {
	for _, l := range lits {
		s.g.Assume(z.Dimacs2Lit(l))
	}
	return s.g.Solve() == 1
}

// simplifyByTernarySimulation looks for equivalent signals via ternary
// signatures; it only applies when the simulation closes a cycle, so
// no SAT confirmation is needed.
func (m *Model) simplifyByTernarySimulation() bool {
	m.log.L(1, "Simplify model by ternary simulation")

	sim := circuit.NewSimulator(m.Graph)
	sim.Simulate(250)
	if !sim.CycleReached() {
		return false
	}

	count := m.mergeBySignatures(sim.States())
	m.log.L(1, "Found ", count, " equivalent latches")
	count = m.mergeBySignatures(sim.GateStates())
	m.log.L(1, "Found ", count, " equivalent gates")
	return true
}

// mergeBySignatures groups signals by their defined-location strings
// across all reached steps and merges each group into its smallest
// member.
func (m *Model) mergeBySignatures(states [][]int) int {
	locations := make(map[int][]int)
	for i, state := range states {
		for _, v := range state {
			locations[v] = append(locations[v], i+1)
			locations[-v] = append(locations[-v], -i-1)
		}
	}

	groups := make(map[string][]int)
	for v, locs := range locations {
		if len(locs) < len(states) {
			continue // undefined at some step
		}
		var b strings.Builder
		for _, l := range locs {
			b.WriteString(strconv.Itoa(l))
			b.WriteByte(' ')
		}
		groups[b.String()] = append(groups[b.String()], v)
	}

	merged := 0
	for _, vars := range groups {
		if len(vars) < 2 {
			continue
		}
		if m.equiv.Has(vars[0]) || m.equiv.Has(vars[1]) {
			continue // the complemented copy of a processed group
		}
		sort.Slice(vars, func(i, j int) bool { return logic.Cmp(vars[i], vars[j]) })
		for i := 1; i < len(vars); i++ {
			m.equiv.Add(vars[0], vars[i])
			merged++
		}
	}
	return merged
}

// simplifyByRandomSimulation guesses equivalences from random
// signatures and keeps only the SAT-confirmed ones.
func (m *Model) simplifyByRandomSimulation() {
	m.log.L(1, "Simplify model by random simulation")

	sim := circuit.NewSimulator(m.Graph)
	sim.SimulateRandom(sigChunks * 64)

	latchEq, latchMay := m.confirmGroups(sim.Values(), m.Graph.ModelLatches, m.checkLatchEquivalenceBySAT)
	m.log.L(1, "Found ", latchEq, "/", latchMay, " equivalent latches")

	// TrueID rides along so constant gates fold into the constants
	gateVars := append(append([]int(nil), m.Graph.ModelGates...), m.Graph.TrueID)
	gateEq, gateMay := m.confirmGroups(sim.Values(), gateVars, m.checkGateEquivalenceBySAT)
	m.log.L(1, "Found ", gateEq, "/", gateMay, " equivalent gates")
}

func (m *Model) confirmGroups(values []map[int]circuit.TBool, vars []int, confirm func(a, b int) bool) (eq, may int) {
	groups := make(map[signature][]int)
	for _, v := range vars {
		var sig signature
		for i, vmap := range values {
			j := i / 64
			sig[j] <<= 1
			if vmap[v] == circuit.TTrue {
				sig[j] |= 1
			}
		}
		groups[sig] = append(groups[sig], v)
		groups[sig.not()] = append(groups[sig.not()], -v)
	}

	processed := make(map[signature]struct{})
	for sig, cand := range groups {
		if len(cand) < 2 {
			continue
		}
		if _, ok := processed[sig]; ok {
			continue
		}
		sort.Slice(cand, func(i, j int) bool { return logic.Cmp(cand[i], cand[j]) })
		for i := 1; i < len(cand); i++ {
			may++
			if !m.equiv.IsEquivalent(cand[0], cand[i]) && confirm(cand[0], cand[i]) {
				eq++
				m.equiv.Add(cand[0], cand[i])
			}
		}
		processed[sig] = struct{}{}
		processed[sig.not()] = struct{}{}
	}
	return eq, may
}

// refreshEqSolver rebuilds the confirmation solver over the current
// rewritten CNF.
func (m *Model) refreshEqSolver() {
	if m.eqSolver != nil && m.eqSolverUnsats <= 2000 {
		return
	}
	m.applyEquivalence()
	m.collectNextValueMapping()
	m.collectClauses()
	m.eqSolver = newEqSolver(m.clauses)
	m.eqSolverUnsats = 0
}

// checkLatchEquivalenceBySAT requires identical resets and an unsat
// inductive condition (a↔b) ∧ ¬(a'↔b').
func (m *Model) checkLatchEquivalenceBySAT(a, b int) bool {
	resetA, okA := m.Graph.LatchReset[logic.Abs(a)]
	resetB, okB := m.Graph.LatchReset[logic.Abs(b)]
	if !okA || !okB {
		return false
	}
	if a < 0 {
		resetA = -resetA
	}
	if b < 0 {
		resetB = -resetB
	}
	if resetA != resetB {
		return false
	}

	m.refreshEqSolver()

	aPrime, bPrime := m.Prime(a), m.Prime(b)
	nv := m.newID()
	m.eqSolver.addClause(logic.Clause{-nv, a, -b})
	m.eqSolver.addClause(logic.Clause{-nv, -a, b})
	m.eqSolver.addClause(logic.Clause{-nv, aPrime, bPrime})
	m.eqSolver.addClause(logic.Clause{-nv, -aPrime, -bPrime})
	sat := m.eqSolver.solveAssume(nv)
	if !sat {
		m.eqSolver.addClause(logic.Clause{a, -b})
		m.eqSolver.addClause(logic.Clause{-a, b})
		m.eqSolverUnsats++
	}
	return !sat
}

// checkGateEquivalenceBySAT requires ¬(a↔b) unsat under the CNF.
func (m *Model) checkGateEquivalenceBySAT(a, b int) bool {
	m.refreshEqSolver()

	nv := m.newID()
	m.eqSolver.addClause(logic.Clause{-nv, a, b})
	m.eqSolver.addClause(logic.Clause{-nv, -a, -b})
	sat := m.eqSolver.solveAssume(nv)
	if !sat {
		m.eqSolver.addClause(logic.Clause{a, -b})
		m.eqSolver.addClause(logic.Clause{-a, b})
		m.eqSolverUnsats++
	}
	return !sat
}
