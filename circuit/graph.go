// Package circuit builds the typed gate graph of an AIGER circuit and
// simulates it over three-valued logic.
//
// Signals are signed ids: inputs occupy 1..I, latches I+1..I+L,
// and-gates the remaining variables, and TrueID = maxvar+1 is the
// constant-true signal. Negative ids are negations.
package circuit

import (
	"errors"
	"fmt"
	"sort"

	"github.com/carbide-mc/carbide/aiger"
	"github.com/carbide-mc/carbide/logic"
)

// ErrUnsupported marks property structures the checker rejects.
var ErrUnsupported = errors.New("circuit: unsupported input")

// GateType classifies a recognized gate.
type GateType int

// Gate kinds. XOR and ITE are synthesized from and-gate idioms.
const (
	AND GateType = iota
	XOR
	ITE
)

// Gate is a typed gate with its fanout id and two or three fanins.
type Gate struct {
	Type   GateType
	Fanout int
	Fanins []int
}

// Graph is the typed view of a reencoded AIGER circuit.
type Graph struct {
	// Aig is the reencoded source file, kept for witness emission.
	Aig *aiger.File

	NumVar         int
	NumInputs      int
	NumLatches     int
	NumAnds        int
	NumConstraints int

	TrueID int

	Inputs      []int
	Latches     []int
	Ands        []int
	Bad         []int
	Constraints []int

	LatchNext  map[int]int
	LatchReset map[int]int

	// Gates holds every gate in the cone of property, constraints and
	// next-state logic, keyed by fanout id.
	Gates map[int]Gate

	// COI-refined views.
	ModelInputs       []int
	ModelLatches      []int
	ModelGates        []int
	PropertyCOIInputs []int

	inputSet map[int]struct{}
	latchSet map[int]struct{}
	andSet   map[int]struct{}
}

// New builds the typed graph from a reencoded AIGER file. Outputs and
// bad signals are folded into one bad list; more than one, or any
// justice/fairness section, is rejected.
func New(f *aiger.File) (*Graph, error) {
	if len(f.Justice) > 0 || len(f.Fairness) > 0 {
		return nil, fmt.Errorf("%w: justice/fairness properties", ErrUnsupported)
	}
	if !f.IsReencoded() {
		f = f.Reencode()
	}

	g := &Graph{
		Aig:            f,
		NumVar:         int(f.MaxVar),
		NumInputs:      len(f.Inputs),
		NumLatches:     len(f.Latches),
		NumAnds:        len(f.Ands),
		NumConstraints: len(f.Constraints),
		LatchNext:      make(map[int]int, len(f.Latches)),
		LatchReset:     make(map[int]int, len(f.Latches)),
		Gates:          make(map[int]Gate, len(f.Ands)),
		inputSet:       make(map[int]struct{}, len(f.Inputs)),
		latchSet:       make(map[int]struct{}, len(f.Latches)),
		andSet:         make(map[int]struct{}, len(f.Ands)),
	}
	g.TrueID = g.NumVar + 1

	for i := range f.Inputs {
		id := i + 1
		g.Inputs = append(g.Inputs, id)
		g.inputSet[id] = struct{}{}
	}
	for _, l := range f.Latches {
		id := g.carID(l.Lit)
		g.Latches = append(g.Latches, id)
		g.latchSet[id] = struct{}{}
		g.LatchNext[id] = g.carID(l.Next)
		g.LatchReset[id] = g.carID(l.Reset)
	}
	for _, a := range f.Ands {
		id := g.carID(a.LHS)
		g.Ands = append(g.Ands, id)
		g.andSet[id] = struct{}{}
	}
	for _, o := range f.Outputs {
		g.Bad = append(g.Bad, g.carID(o))
	}
	for _, b := range f.Bad {
		g.Bad = append(g.Bad, g.carID(b))
	}
	for _, c := range f.Constraints {
		g.Constraints = append(g.Constraints, g.carID(c))
	}

	if len(g.Bad) == 0 {
		return nil, fmt.Errorf("%w: no safety property to check", ErrUnsupported)
	}
	if len(g.Bad) > 1 {
		return nil, fmt.Errorf("%w: more than one safety property to check", ErrUnsupported)
	}

	g.buildGates(f)

	g.ModelInputs = append([]int(nil), g.Inputs...)
	g.ModelLatches = append([]int(nil), g.Latches...)
	g.ModelGates = append([]int(nil), g.Ands...)
	g.coiRefine()
	g.collectPropertyCOIInputs()

	return g, nil
}

// IsInput reports whether |id| names an input.
func (g *Graph) IsInput(id int) bool {
	_, ok := g.inputSet[logic.Abs(id)]
	return ok
}

// IsLatch reports whether |id| names a latch.
func (g *Graph) IsLatch(id int) bool {
	_, ok := g.latchSet[logic.Abs(id)]
	return ok
}

// IsAnd reports whether |id| names an and-gate.
func (g *Graph) IsAnd(id int) bool {
	_, ok := g.andSet[logic.Abs(id)]
	return ok
}

// carID converts an AIGER literal to a signed id.
func (g *Graph) carID(lit uint) int {
	switch lit {
	case 0:
		return -g.TrueID
	case 1:
		return g.TrueID
	}
	if aiger.Sign(lit) {
		return -int(aiger.Var(lit))
	}
	return int(aiger.Var(lit))
}

// buildGates scans the and-gates in reverse topological order,
// recognizing XOR and ITE idioms; the two ands absorbed by a
// synthesized gate never enter the cone themselves.
func (g *Graph) buildGates(f *aiger.File) {
	coiLits := make(map[uint]struct{})
	for _, l := range f.Latches {
		coiLits[aiger.Strip(l.Next)] = struct{}{}
	}
	for _, c := range f.Constraints {
		coiLits[aiger.Strip(c)] = struct{}{}
	}
	for _, o := range f.Outputs {
		coiLits[aiger.Strip(o)] = struct{}{}
	}
	for _, b := range f.Bad {
		coiLits[aiger.Strip(b)] = struct{}{}
	}

	for i := len(f.Ands) - 1; i >= 0; i-- {
		a := f.Ands[i]
		if _, ok := coiLits[a.LHS]; !ok {
			continue
		}
		if g.tryMakeXOR(f, a, coiLits) {
			continue
		}
		if g.tryMakeITE(f, a, coiLits) {
			continue
		}
		g.makeAnd(a, coiLits)
	}
}

// tryMakeXOR matches a = ¬(x∧y) ∧ ¬(¬x∧¬y) and synthesizes XOR(x,y),
// with x and y taken as the children of the and on a's first fanin.
func (g *Graph) tryMakeXOR(f *aiger.File, a aiger.And, coiLits map[uint]struct{}) bool {
	if !aiger.Sign(a.RHS0) || !aiger.Sign(a.RHS1) {
		return false
	}
	aa0, ok0 := f.IsAnd(a.RHS0)
	aa1, ok1 := f.IsAnd(a.RHS1)
	if !ok0 || !ok1 {
		return false
	}
	a00, a01 := aa0.RHS0, aa0.RHS1
	a10, a11 := aa1.RHS0, aa1.RHS1
	if a00 != aiger.Not(a10) || a01 != aiger.Not(a11) || a00 == a01 {
		return false
	}
	fanout := g.carID(a.LHS)
	g.Gates[fanout] = Gate{Type: XOR, Fanout: fanout, Fanins: []int{g.carID(a00), g.carID(a01)}}
	coiLits[aiger.Strip(a00)] = struct{}{}
	coiLits[aiger.Strip(a01)] = struct{}{}
	return true
}

// tryMakeITE matches the four if-then-else signatures.
func (g *Graph) tryMakeITE(f *aiger.File, a aiger.And, coiLits map[uint]struct{}) bool {
	if !aiger.Sign(a.RHS0) || !aiger.Sign(a.RHS1) {
		return false
	}
	aa0, ok0 := f.IsAnd(a.RHS0)
	aa1, ok1 := f.IsAnd(a.RHS1)
	if !ok0 || !ok1 {
		return false
	}
	a00, a01 := aa0.RHS0, aa0.RHS1
	a10, a11 := aa1.RHS0, aa1.RHS1

	var ite [3]uint
	switch {
	case a00 == aiger.Not(a10):
		ite = [3]uint{a00, aiger.Not(a01), aiger.Not(a11)}
	case a00 == aiger.Not(a11):
		ite = [3]uint{a00, aiger.Not(a01), aiger.Not(a10)}
	case a01 == aiger.Not(a10):
		ite = [3]uint{a01, aiger.Not(a00), aiger.Not(a11)}
	case a01 == aiger.Not(a11):
		ite = [3]uint{a01, aiger.Not(a00), aiger.Not(a10)}
	default:
		return false
	}

	fanout := g.carID(a.LHS)
	g.Gates[fanout] = Gate{
		Type:   ITE,
		Fanout: fanout,
		Fanins: []int{g.carID(ite[0]), g.carID(ite[1]), g.carID(ite[2])},
	}
	for _, l := range ite {
		coiLits[aiger.Strip(l)] = struct{}{}
	}
	return true
}

func (g *Graph) makeAnd(a aiger.And, coiLits map[uint]struct{}) {
	fanout := g.carID(a.LHS)
	g.Gates[fanout] = Gate{Type: AND, Fanout: fanout, Fanins: []int{g.carID(a.RHS0), g.carID(a.RHS1)}}
	coiLits[aiger.Strip(a.RHS0)] = struct{}{}
	coiLits[aiger.Strip(a.RHS1)] = struct{}{}
}

// coiRefine restricts the model views to the ids reachable backward
// from bad, constraints and the next-state functions of kept latches.
func (g *Graph) coiRefine() {
	coi := make(map[int]struct{})
	var todo []int
	push := func(id int) {
		id = logic.Abs(id)
		if _, ok := coi[id]; !ok {
			coi[id] = struct{}{}
			todo = append(todo, id)
		}
	}
	for _, id := range g.Constraints {
		push(id)
	}
	for _, id := range g.Bad {
		push(id)
	}
	for len(todo) > 0 {
		id := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		if g.IsAnd(id) {
			for _, fanin := range g.Gates[id].Fanins {
				push(fanin)
			}
		} else if g.IsLatch(id) {
			push(g.LatchNext[id])
		}
	}

	keep := func(ids []int) []int {
		var out []int
		for _, id := range ids {
			if _, ok := coi[id]; ok {
				out = append(out, id)
			}
		}
		sort.Ints(out)
		return out
	}
	g.ModelInputs = keep(g.ModelInputs)
	g.ModelLatches = keep(g.ModelLatches)
	g.ModelGates = keep(g.ModelGates)
}

// collectPropertyCOIInputs records the inputs reachable through bad
// and constraints only, ignoring next-state logic.
func (g *Graph) collectPropertyCOIInputs() {
	coi := make(map[int]struct{})
	for _, id := range g.Constraints {
		coi[logic.Abs(id)] = struct{}{}
	}
	for _, id := range g.Bad {
		coi[logic.Abs(id)] = struct{}{}
	}
	for i := len(g.ModelGates) - 1; i >= 0; i-- {
		id := g.ModelGates[i]
		if _, ok := coi[id]; ok {
			for _, fanin := range g.Gates[id].Fanins {
				coi[logic.Abs(fanin)] = struct{}{}
			}
		}
	}
	for id := range coi {
		if g.IsInput(id) {
			g.PropertyCOIInputs = append(g.PropertyCOIInputs, id)
		}
	}
	sort.Ints(g.PropertyCOIInputs)
}
