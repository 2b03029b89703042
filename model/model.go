package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/carbide-mc/carbide/circuit"
	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/settings"
)

// Model is the compiled transition system: the equivalence-reduced
// circuit graph, its initial state, the prime variable maps, the
// innard bookkeeping and the emitted CNF. It is built once and read
// only afterwards, except for the lazily growing k-step prime maps.
type Model struct {
	Graph *circuit.Graph

	cfg settings.Settings
	log *logging.Logger

	maxID int
	bad   int

	initialState   logic.Cube
	initialClauses []logic.Clause

	clauses     []logic.Clause
	simpClauses []logic.Clause

	primeMaps   []map[int]int
	prevOfPrime map[int][]int

	dependencyMap map[int][]int

	equiv *Equivalences

	innards    map[int]struct{}
	innardsVec []int
	innardsLvl map[int]int

	eqSolver       *eqSolver
	eqSolverUnsats int
}

// New compiles the graph under the given settings.
func New(cfg settings.Settings, log *logging.Logger, g *circuit.Graph) (*Model, error) {
	m := &Model{
		Graph:      g,
		cfg:        cfg,
		log:        log,
		maxID:      g.TrueID,
		equiv:      NewEquivalences(),
		innards:    make(map[int]struct{}),
		innardsLvl: make(map[int]int),
	}

	log.L(1, "Model initialized: ", g.NumInputs, " inputs, ", g.NumLatches, " latches, ",
		g.NumAnds, " gates, ", g.NumConstraints, " constraints.")

	log.Tick()
	switch cfg.Equivalence {
	case settings.EqTernaryRandom:
		if !m.simplifyByTernarySimulation() || m.equiv.Size() == 0 {
			m.simplifyByRandomSimulation()
		}
	case settings.EqTernary:
		m.simplifyByTernarySimulation()
	case settings.EqRandom:
		m.simplifyByRandomSimulation()
	}
	log.StatSimulation()

	m.applyEquivalence()
	m.updateDependencyMap()
	m.collectInitialState()

	m.bad = m.equiv.Find(g.Bad[0])

	m.collectNextValueMapping()
	if cfg.Innards {
		m.collectInnards()
	}
	m.collectClauses()
	m.simpClauses = simplifyClauses(m.clauses, m.frozenVars())
	m.buildPrevOfPrime()

	if m.maxID >= math.MaxInt32 {
		return nil, fmt.Errorf("model: variable id space exhausted at %d", m.maxID)
	}

	log.L(1, "Model reduced: ", len(g.ModelInputs), " inputs, ", len(g.ModelLatches),
		" latches, ", len(g.ModelGates), " gates.")
	log.L(1, "Transformed model: ", len(m.clauses), " clauses, ", len(m.simpClauses), " simplified clauses.")
	return m, nil
}

// TrueID is the constant-true signal after equivalence rewriting.
func (m *Model) TrueID() int { return m.equiv.Find(m.Graph.TrueID) }

// IsTrue reports whether id collapsed to constant true.
func (m *Model) IsTrue(id int) bool { return m.equiv.Find(id) == m.TrueID() }

// IsFalse reports whether id collapsed to constant false.
func (m *Model) IsFalse(id int) bool { return m.equiv.Find(id) == -m.TrueID() }

// IsConstant reports whether id is constant either way.
func (m *Model) IsConstant(id int) bool { return m.IsTrue(id) || m.IsFalse(id) }

// IsLatch forwards to the graph.
func (m *Model) IsLatch(id int) bool { return m.Graph.IsLatch(id) }

// IsInput forwards to the graph.
func (m *Model) IsInput(id int) bool { return m.Graph.IsInput(id) }

// IsInnard reports whether id is a primed internal signal.
func (m *Model) IsInnard(id int) bool {
	if !m.cfg.Innards {
		return false
	}
	_, ok := m.innards[logic.Abs(id)]
	return ok
}

// Innards lists the internal signals in ascending order.
func (m *Model) Innards() []int { return m.innardsVec }

// InnardLevel is the logic depth of an innard from latches/constants.
func (m *Model) InnardLevel(id int) int { return m.innardsLvl[logic.Abs(id)] }

// NumInputs is the input count of the original encoding.
func (m *Model) NumInputs() int { return m.Graph.NumInputs }

// NumLatches is the latch count of the original encoding.
func (m *Model) NumLatches() int { return m.Graph.NumLatches }

// Bad is the (rewritten) bad literal.
func (m *Model) Bad() int { return m.bad }

// Property is the negation of the bad literal.
func (m *Model) Property() int { return -m.bad }

// InitialState is the cube of constant-reset latch literals.
func (m *Model) InitialState() logic.Cube { return m.initialState }

// InitialClauses bind latches whose reset is an internal signal.
func (m *Model) InitialClauses() []logic.Clause { return m.initialClauses }

// Clauses is the raw Tseitin CNF.
func (m *Model) Clauses() []logic.Clause { return m.clauses }

// SimpClauses is the pre-simplified CNF used by the main solvers.
func (m *Model) SimpClauses() []logic.Clause { return m.simpClauses }

// Constraints returns the rewritten environment constraints.
func (m *Model) Constraints() []int { return m.Graph.Constraints }

// MaxID is the highest allocated variable id; solvers allocate flags
// above it.
func (m *Model) MaxID() int { return m.maxID }

// ModelInputs forwards the COI-refined inputs.
func (m *Model) ModelInputs() []int { return m.Graph.ModelInputs }

// ModelLatches forwards the COI-refined latches.
func (m *Model) ModelLatches() []int { return m.Graph.ModelLatches }

// ModelGates forwards the COI-refined gates.
func (m *Model) ModelGates() []int { return m.Graph.ModelGates }

// Prime maps id to its next-state variable; 0 when none exists.
func (m *Model) Prime(id int) int {
	p, ok := m.primeMaps[0][logic.Abs(id)]
	if !ok {
		return 0
	}
	if id < 0 {
		return -p
	}
	return p
}

// PrimeCube maps every literal of c through Prime.
func (m *Model) PrimeCube(c logic.Cube) logic.Cube {
	out := make(logic.Cube, len(c))
	for i, l := range c {
		out[i] = m.Prime(l)
	}
	return out
}

// PrimeK renames id to its k-step copy, allocating fresh ids for
// non-latch signals on first use. Constants map to themselves.
func (m *Model) PrimeK(id, k int) int {
	if k == 0 {
		return id
	}
	if logic.Abs(id) == logic.Abs(m.TrueID()) {
		return id
	}
	for k >= len(m.primeMaps) {
		m.primeMaps = append(m.primeMaps, make(map[int]int))
	}
	if m.IsLatch(id) {
		return m.PrimeK(m.Prime(id), k-1)
	}
	kmap := m.primeMaps[k-1]
	p, ok := kmap[logic.Abs(id)]
	if !ok {
		p = m.newID()
		kmap[logic.Abs(id)] = p
	}
	if id < 0 {
		return -p
	}
	return p
}

// PrevOfPrime maps a primed variable back to the current-state
// literals it stands for.
func (m *Model) PrevOfPrime(id int) []int {
	prevs := m.prevOfPrime[logic.Abs(id)]
	if id >= 0 {
		return prevs
	}
	out := make([]int, len(prevs))
	for i, p := range prevs {
		out[i] = -p
	}
	return out
}

// COIDomain closes c's variables under the dependency map.
func (m *Model) COIDomain(c logic.Cube) logic.Cube {
	coi := make(map[int]struct{}, len(c))
	var todo []int
	for _, v := range c {
		coi[logic.Abs(v)] = struct{}{}
		todo = append(todo, logic.Abs(v))
	}
	for len(todo) > 0 {
		v := todo[0]
		todo = todo[1:]
		for _, d := range m.dependencyMap[v] {
			if _, ok := coi[d]; !ok {
				coi[d] = struct{}{}
				todo = append(todo, d)
			}
		}
	}
	domain := make(logic.Cube, 0, len(coi)+1)
	for v := range coi {
		domain = append(domain, v)
	}
	sort.Ints(domain)
	domain = append(domain, m.TrueID())
	return domain
}

// RelevantInnards selects the innard literals of a blocked state whose
// dependency cone lies inside the learned cube's COI domain.
func (m *Model) RelevantInnards(c logic.Cube, stateInnards logic.Cube) logic.Cube {
	domain := make(map[int]struct{})
	for _, v := range m.COIDomain(c) {
		domain[v] = struct{}{}
	}
	var out logic.Cube
	for _, l := range stateInnards {
		if !m.IsInnard(l) {
			continue
		}
		inside := true
		for _, d := range m.dependencyMap[logic.Abs(l)] {
			if _, ok := domain[d]; !ok {
				inside = false
				break
			}
		}
		if inside && !logic.ContainsVar(c, l) {
			out = append(out, l)
		}
	}
	return out
}

func (m *Model) newID() int {
	if m.maxID >= math.MaxInt32-1 {
		panic("model: variable id overflow; circuit exceeds the 31-bit id design limit")
	}
	m.maxID++
	return m.maxID
}

// applyEquivalence rewrites latch next/reset, gate fanins, bad and
// constraints through the union-find, dropping merged latches/gates.
func (m *Model) applyEquivalence() {
	g := m.Graph

	kept := g.ModelLatches[:0]
	for _, l := range g.ModelLatches {
		g.LatchReset[l] = m.equiv.Find(g.LatchReset[l])
		g.LatchNext[l] = m.equiv.Find(g.LatchNext[l])
		if !m.equiv.Has(l) {
			kept = append(kept, l)
		}
	}
	g.ModelLatches = kept

	keptGates := g.ModelGates[:0]
	for _, gid := range g.ModelGates {
		if m.equiv.Has(gid) {
			continue
		}
		gate := g.Gates[gid]
		fanins := make([]int, len(gate.Fanins))
		for i, f := range gate.Fanins {
			fanins[i] = m.equiv.Find(f)
		}
		gate.Fanins = fanins
		g.Gates[gid] = gate
		keptGates = append(keptGates, gid)
	}
	g.ModelGates = keptGates

	for i := range g.Bad {
		g.Bad[i] = m.equiv.Find(g.Bad[i])
	}
	for i := range g.Constraints {
		g.Constraints[i] = m.equiv.Find(g.Constraints[i])
	}
}

// updateDependencyMap rebuilds the fanin dependencies and re-derives
// the model inputs and property-COI inputs after rewriting.
func (m *Model) updateDependencyMap() {
	g := m.Graph
	m.dependencyMap = make(map[int][]int)

	coi := make(map[int]struct{})
	pcoi := make(map[int]struct{})
	for _, l := range g.ModelLatches {
		coi[l] = struct{}{}
		coi[logic.Abs(g.LatchNext[l])] = struct{}{}
	}
	for _, c := range g.Constraints {
		coi[logic.Abs(c)] = struct{}{}
		pcoi[logic.Abs(c)] = struct{}{}
	}
	for _, b := range g.Bad {
		coi[logic.Abs(b)] = struct{}{}
		pcoi[logic.Abs(b)] = struct{}{}
	}

	for i := len(g.ModelGates) - 1; i >= 0; i-- {
		gid := g.ModelGates[i]
		if _, ok := coi[gid]; ok {
			for _, fanin := range g.Gates[gid].Fanins {
				coi[logic.Abs(fanin)] = struct{}{}
				m.dependencyMap[gid] = append(m.dependencyMap[gid], logic.Abs(fanin))
			}
		}
		if _, ok := pcoi[gid]; ok {
			for _, fanin := range g.Gates[gid].Fanins {
				pcoi[logic.Abs(fanin)] = struct{}{}
			}
		}
	}

	g.ModelInputs = g.ModelInputs[:0]
	for id := range coi {
		if g.IsInput(id) {
			g.ModelInputs = append(g.ModelInputs, id)
		}
	}
	sort.Ints(g.ModelInputs)

	g.PropertyCOIInputs = g.PropertyCOIInputs[:0]
	for id := range pcoi {
		if g.IsInput(id) {
			g.PropertyCOIInputs = append(g.PropertyCOIInputs, id)
		}
	}
	sort.Ints(g.PropertyCOIInputs)
}

// collectInitialState derives the initial cube and the binding clauses
// for latches reset by an internal signal.
func (m *Model) collectInitialState() {
	m.initialState = nil
	m.initialClauses = nil
	trueID := m.TrueID()
	for _, l := range m.Graph.ModelLatches {
		reset := m.Graph.LatchReset[l]
		switch {
		case reset == trueID:
			m.initialState = append(m.initialState, l)
		case reset == -trueID:
			m.initialState = append(m.initialState, -l)
		case reset != l && m.Graph.IsAnd(reset):
			m.initialClauses = append(m.initialClauses, logic.Clause{l, -reset})
			m.initialClauses = append(m.initialClauses, logic.Clause{-l, reset})
		}
	}
}

// collectNextValueMapping binds every latch to its next-state id.
func (m *Model) collectNextValueMapping() {
	m.maxID = m.Graph.TrueID
	m.primeMaps = []map[int]int{make(map[int]int, len(m.Graph.Latches))}
	for _, l := range m.Graph.Latches {
		m.primeMaps[0][l] = m.Graph.LatchNext[l]
	}
}

// collectInnards marks gates whose fanins are all constants, latches
// or earlier innards, gives them prime ids and duplicates their gate
// definitions over primed fanins.
func (m *Model) collectInnards() {
	g := m.Graph
	numGates := len(g.ModelGates)
	for i := 0; i < numGates; i++ {
		gid := g.ModelGates[i]

		isInnard := true
		for _, fanin := range g.Gates[gid].Fanins {
			if !m.IsConstant(fanin) && !m.IsLatch(fanin) && !m.isKnownInnard(fanin) {
				isInnard = false
				break
			}
		}
		if !isInnard {
			continue
		}

		m.innards[gid] = struct{}{}
		m.innardLevelDFS(gid)

		if m.Prime(gid) == 0 {
			m.primeMaps[0][gid] = m.newID()
		}
		pFanout := m.Prime(gid)

		src := g.Gates[gid]
		pFanins := make([]int, len(src.Fanins))
		for j, fanin := range src.Fanins {
			switch {
			case m.IsLatch(fanin):
				pFanins[j] = m.Prime(fanin)
			case m.IsTrue(fanin):
				pFanins[j] = m.TrueID()
			case m.IsFalse(fanin):
				pFanins[j] = -m.TrueID()
			default:
				pFanins[j] = m.Prime(fanin)
			}
		}
		g.Gates[pFanout] = circuit.Gate{Type: src.Type, Fanout: pFanout, Fanins: pFanins}
	}
	for gid := range m.innards {
		m.innardsVec = append(m.innardsVec, gid)
	}
	sort.Ints(m.innardsVec)
	for _, gid := range m.innardsVec {
		g.ModelGates = append(g.ModelGates, m.Prime(gid))
	}
}

func (m *Model) isKnownInnard(id int) bool {
	_, ok := m.innards[logic.Abs(id)]
	return ok
}

func (m *Model) innardLevelDFS(id int) int {
	id = logic.Abs(id)
	if lvl, ok := m.innardsLvl[id]; ok {
		return lvl
	}
	lvl := 0
	if m.Graph.IsAnd(id) {
		for _, fanin := range m.Graph.Gates[id].Fanins {
			if fl := m.innardLevelDFS(fanin) + 1; fl > lvl {
				lvl = fl
			}
		}
	}
	m.innardsLvl[id] = lvl
	return lvl
}

// collectClauses emits the Tseitin CNF: three clauses per AND, four
// per XOR and ITE, the constraint units and the constant-true unit.
func (m *Model) collectClauses() {
	m.clauses = nil
	for _, gid := range m.Graph.ModelGates {
		g := m.Graph.Gates[gid]
		fanout := g.Fanout
		f0, f1 := g.Fanins[0], g.Fanins[1]
		switch g.Type {
		case circuit.AND:
			m.clauses = append(m.clauses,
				logic.Clause{fanout, -f0, -f1},
				logic.Clause{-fanout, f0},
				logic.Clause{-fanout, f1})
		case circuit.XOR:
			m.clauses = append(m.clauses,
				logic.Clause{fanout, -f0, f1},
				logic.Clause{fanout, f0, -f1},
				logic.Clause{-fanout, f0, f1},
				logic.Clause{-fanout, -f0, -f1})
		case circuit.ITE:
			f2 := g.Fanins[2]
			m.clauses = append(m.clauses,
				logic.Clause{fanout, -f0, -f1},
				logic.Clause{fanout, f0, -f2},
				logic.Clause{-fanout, -f0, f1},
				logic.Clause{-fanout, f0, f2})
		}
	}
	for _, c := range m.Graph.Constraints {
		m.clauses = append(m.clauses, logic.Clause{c})
	}
	m.clauses = append(m.clauses, logic.Clause{m.TrueID()})
}

// frozenVars are the variables the simplifier must not eliminate.
func (m *Model) frozenVars() map[int]struct{} {
	frozen := make(map[int]struct{})
	add := func(id int) {
		if id != 0 {
			frozen[logic.Abs(id)] = struct{}{}
		}
	}
	for _, v := range m.Graph.ModelInputs {
		add(v)
	}
	for _, v := range m.Graph.ModelLatches {
		add(v)
		add(m.Prime(v))
	}
	for _, c := range m.Graph.Constraints {
		add(c)
	}
	if m.cfg.Innards {
		for _, v := range m.innardsVec {
			add(v)
			add(m.Prime(v))
		}
	}
	add(m.TrueID())
	add(m.bad)
	for _, c := range m.initialClauses {
		for _, l := range c {
			add(l)
		}
	}
	return frozen
}

// buildPrevOfPrime inverts the level-0 prime map for core un-priming.
func (m *Model) buildPrevOfPrime() {
	m.prevOfPrime = make(map[int][]int)
	for _, l := range m.Graph.ModelLatches {
		next := m.Prime(l)
		if next == 0 {
			continue
		}
		if next > 0 {
			m.prevOfPrime[next] = append(m.prevOfPrime[next], l)
		} else {
			m.prevOfPrime[-next] = append(m.prevOfPrime[-next], -l)
		}
	}
	for _, inn := range m.innardsVec {
		p := m.Prime(inn)
		if p > 0 {
			m.prevOfPrime[p] = append(m.prevOfPrime[p], inn)
		}
	}
}
