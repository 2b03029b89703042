package circuit

import (
	"math/rand"

	"github.com/carbide-mc/carbide/logic"
)

// Simulator steps the COI-refined circuit over three-valued values.
// It keeps the full valuation of every simulated step so callers can
// derive per-signal signatures.
type Simulator struct {
	graph *Graph

	values []map[int]TBool

	states     [][]int // per-step defined latch literals + TrueID
	gateStates [][]int // per-step defined gate literals + TrueID

	step       int
	cycleStart int
	seed       int64
}

// NewSimulator prepares a simulator over the graph.
func NewSimulator(g *Graph) *Simulator {
	s := &Simulator{graph: g, cycleStart: -1, seed: 42}
	s.reset()
	return s
}

func (s *Simulator) reset() {
	s.values = s.values[:0]
	s.values = append(s.values, s.freshStep())
	s.states = nil
	s.gateStates = nil
	s.step = 0
	s.cycleStart = -1
}

func (s *Simulator) freshStep() map[int]TBool {
	m := make(map[int]TBool, len(s.graph.ModelGates)+len(s.graph.ModelLatches)+len(s.graph.ModelInputs)+1)
	m[s.graph.TrueID] = TTrue
	return m
}

func (s *Simulator) val(id int, vmap map[int]TBool) TBool {
	v := vmap[logic.Abs(id)]
	if id < 0 {
		return v.Not()
	}
	return v
}

// CycleReached reports whether ternary simulation closed a loop.
func (s *Simulator) CycleReached() bool { return s.cycleStart >= 0 }

// States returns the per-step latch signature states.
func (s *Simulator) States() [][]int { return s.states }

// GateStates returns the per-step gate signature states.
func (s *Simulator) GateStates() [][]int { return s.gateStates }

// Values returns every step's full valuation.
func (s *Simulator) Values() []map[int]TBool { return s.values }

// stepOnce evaluates every gate of the current step in topological
// order, defaulting undriven inputs and latches to X.
func (s *Simulator) stepOnce() {
	vmap := s.values[s.step]
	for _, id := range s.graph.ModelInputs {
		if _, ok := vmap[id]; !ok {
			vmap[id] = TUndef
		}
	}
	for _, id := range s.graph.ModelLatches {
		if _, ok := vmap[id]; !ok {
			vmap[id] = TUndef
		}
	}
	for _, gid := range s.graph.ModelGates {
		g := s.graph.Gates[gid]
		switch g.Type {
		case XOR:
			vmap[gid] = s.val(g.Fanins[0], vmap).Xor(s.val(g.Fanins[1], vmap))
		case ITE:
			vmap[gid] = TIte(s.val(g.Fanins[0], vmap), s.val(g.Fanins[1], vmap), s.val(g.Fanins[2], vmap))
		default:
			vmap[gid] = s.val(g.Fanins[0], vmap).And(s.val(g.Fanins[1], vmap))
		}
	}
}

func (s *Simulator) setLatchesFromNext() {
	prev := s.values[s.step-1]
	vmap := s.values[s.step]
	for _, id := range s.graph.ModelLatches {
		vmap[id] = s.val(s.graph.LatchNext[id], prev)
	}
}

// Simulate runs ternary simulation from the reset state for up to
// maxSteps cycles, stopping early when every latch is unknown or a
// previously seen latch state repeats.
func (s *Simulator) Simulate(maxSteps int) {
	s.reset()
	vmap := s.values[0]
	for _, id := range s.graph.ModelLatches {
		switch s.graph.LatchReset[id] {
		case -s.graph.TrueID:
			vmap[id] = TFalse
		case s.graph.TrueID:
			vmap[id] = TTrue
		default:
			vmap[id] = TUndef
		}
	}

	for s.step < maxSteps {
		if s.step > 0 {
			s.setLatchesFromNext()
		}
		s.stepOnce()
		s.states = append(s.states, s.snapshot(s.graph.ModelLatches))
		s.gateStates = append(s.gateStates, s.snapshot(s.graph.ModelGates))

		if len(s.states[len(s.states)-1]) == 1 {
			// only TrueID left: every latch is X
			break
		}
		if s.detectCycle() {
			s.states = s.states[:len(s.states)-1]
			s.gateStates = s.gateStates[:len(s.gateStates)-1]
			break
		}
		s.step++
		s.values = append(s.values, s.freshStep())
	}
}

// SimulateRandom runs steps cycles with concrete random inputs and
// random values for uninitialized latches.
func (s *Simulator) SimulateRandom(steps int) {
	s.reset()
	rng := rand.New(rand.NewSource(s.seed))
	s.seed++

	vmap := s.values[0]
	for _, id := range s.graph.ModelLatches {
		switch s.graph.LatchReset[id] {
		case -s.graph.TrueID:
			vmap[id] = TFalse
		case s.graph.TrueID:
			vmap[id] = TTrue
		default:
			vmap[id] = FromBool(rng.Intn(2) == 1)
		}
	}

	for s.step < steps {
		if s.step > 0 {
			s.values = append(s.values, s.freshStep())
			s.setLatchesFromNext()
		}
		vmap := s.values[s.step]
		for _, id := range s.graph.ModelInputs {
			vmap[id] = FromBool(rng.Intn(2) == 1)
		}
		s.stepOnce()
		s.step++
	}
}

// snapshot records the defined literals of the given signals plus the
// constant-true marker used to catch constant signals.
func (s *Simulator) snapshot(ids []int) []int {
	vmap := s.values[s.step]
	var out []int
	for _, id := range ids {
		switch vmap[id] {
		case TTrue:
			out = append(out, id)
		case TFalse:
			out = append(out, -id)
		}
	}
	out = append(out, s.graph.TrueID)
	return out
}

func (s *Simulator) detectCycle() bool {
	last := s.states[len(s.states)-1]
	for i := 0; i < len(s.states)-1; i++ {
		if logic.CubeEqual(s.states[i], last) {
			s.cycleStart = i
			return true
		}
	}
	return false
}
