package checker

import (
	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/sat"
	"github.com/carbide-mc/carbide/settings"
)

// Backward is the backward CAR engine: frames over-approximate the
// states that can reach bad, and obligations grow forward from the
// initial state. An obligation that reaches level -1 and satisfies bad
// is a counterexample.
type Backward struct {
	cfg settings.Settings
	m   *model.Model
	log *logging.Logger

	ord       *orderer
	branching *Branching
	restart   *Restart

	over  *OverSequence
	under UnderSequence

	mainSolver *sat.Solver

	initialState   *State
	minUpdateLevel int
	badID          int
	lastUC         map[int]logic.Cube

	lastState *State
	invFrames [][]logic.Cube
	result    Result
}

// NewBackward prepares the engine.
func NewBackward(cfg settings.Settings, m *model.Model, log *logging.Logger) *Backward {
	bc := &Backward{cfg: cfg, m: m, log: log, branching: NewBranching(cfg.Branching)}
	bc.ord = newOrderer(cfg, m, bc.branching)
	bc.restart = NewRestart(cfg)
	bc.initialState = &State{Latches: logic.Clone(m.InitialState())}
	bc.lastUC = make(map[int]logic.Cube)
	return bc
}

func (bc *Backward) buildSolvers() {
	bc.mainSolver = sat.New(bc.m, bc.cfg.Backend)
	bc.mainSolver.AddTrans()
}

// Run decides the property.
func (bc *Backward) Run() (Result, error) {
	bc.badID = bc.m.Bad()
	if bc.m.IsTrue(bc.badID) {
		bc.lastState = bc.initialState
		bc.result = Unsafe
		return Unsafe, nil
	}
	if bc.m.IsFalse(bc.badID) {
		bc.result = Safe
		return Safe, nil
	}

	bc.over = NewOverSequence(bc.m, bc.log)
	bc.buildSolvers()

	// 0-step: the initial state may already satisfy bad
	assumption := append(logic.Clone(bc.m.InitialState()), bc.badID)
	bc.log.Tick()
	ok, err := bc.mainSolver.SolveCube(assumption)
	bc.log.StatMainSolver()
	if err != nil {
		return Unknown, err
	}
	if ok {
		inputs, _ := bc.mainSolver.Assignment(false)
		bc.lastState = &State{Pre: bc.initialState, Inputs: inputs, Latches: logic.Clone(bc.m.InitialState()), Depth: 1}
		bc.result = Unsafe
		return Unsafe, nil
	}

	// seed frame 0 with the core that keeps init away from bad
	uc := bc.mainSolver.UnsatCoreFromBad(bc.badID)
	if len(uc) == 0 {
		return bc.proved(0)
	}
	bc.addUCSimple(uc, 0)
	bc.over.EffectiveLevel = 0
	bc.under.Push(bc.initialState)

	frameStep := 0
	var stack taskStack
	for {
		bc.log.L(1, bc.over.FramesInfo())
		bc.minUpdateLevel = bc.over.Len()
		bc.seedStack(&stack, frameStep)

		for !stack.empty() {
			if bc.cfg.TimeLimit > 0 && bc.log.Timeout() {
				bc.log.L(0, "time out!!!")
				return Unknown, ErrTimeout
			}
			task := stack.top()

			if !task.IsLocated {
				bc.log.Tick()
				task.FrameLevel = bc.newLevel(task.State, task.FrameLevel+1)
				bc.log.StatGetNewLevel()
				if task.FrameLevel > bc.over.EffectiveLevel {
					stack.pop()
					continue
				}
			}
			task.IsLocated = false

			if task.FrameLevel == -1 {
				// the state escaped every frame: ask bad directly
				assumption := append(bc.orderedLatches(task.State, 0), bc.badID)
				bc.log.Tick()
				ok, err := bc.mainSolver.SolveCube(assumption)
				bc.log.StatMainSolver()
				if err != nil {
					return Unknown, err
				}
				if ok {
					inputs, _ := bc.mainSolver.Assignment(false)
					bc.lastState = &State{Pre: task.State, Inputs: inputs, Latches: logic.Clone(task.State.Latches), Depth: task.State.Depth + 1}
					bc.result = Unsafe
					return Unsafe, nil
				}
				uc := bc.mainSolver.UnsatCoreFromBad(bc.badID)
				if len(uc) == 0 {
					return bc.proved(0)
				}
				bc.branching.Update(uc)
				bc.restart.Bump()
				bc.log.Tick()
				bc.addUC(uc, 0)
				bc.log.StatUpdateUC()
				task.FrameLevel++
				continue
			}

			assumption := bc.orderedLatches(task.State, task.FrameLevel)
			bc.log.Tick()
			ok, err := bc.mainSolver.SolveFrame(assumption, task.FrameLevel)
			bc.log.StatMainSolver()
			if err != nil {
				return Unknown, err
			}

			if ok {
				// the successor is read through the prime map
				inputs, succLatches := bc.mainSolver.Assignment(true)
				newState := &State{Pre: task.State, Inputs: inputs, Latches: succLatches, Depth: task.State.Depth + 1}
				bc.under.Push(newState)
				lvl := bc.newLevel(newState, 0)
				stack.push(Task{State: newState, FrameLevel: lvl, IsLocated: true})
				continue
			}

			uc := bc.mainSolver.UnsatCore(false)
			if len(uc) == 0 {
				return bc.proved(task.FrameLevel)
			}
			bc.branching.Update(uc)
			bc.restart.Bump()
			bc.log.Tick()
			bc.addUC(uc, task.FrameLevel+1)
			bc.log.StatUpdateUC()
			task.FrameLevel++
		}

		if bc.cfg.Restart && bc.restart.Check() {
			bc.doRestart(&stack)
			bc.restart.Next()
		}

		frameStep++
		if bc.cfg.Propagation {
			bc.log.Tick()
			if err := bc.propagation(); err != nil {
				return Unknown, err
			}
			bc.log.StatPropagation()
		}
		bc.over.EffectiveLevel++

		bc.log.Tick()
		found, err := invariantFound(bc.cfg, bc.m, bc.log, bc.over, bc.minUpdateLevel)
		bc.log.StatInvSolver()
		if err != nil {
			return Unknown, err
		}
		if found {
			return bc.proved(bc.over.InvariantLevel())
		}
	}
}

func (bc *Backward) proved(invLevel int) (Result, error) {
	bc.over.SetInvariantLevel(invLevel)
	for i := 0; i <= invLevel && i < bc.over.Len(); i++ {
		bc.invFrames = append(bc.invFrames, bc.over.Frame(i))
	}
	bc.result = Safe
	return Safe, nil
}

func (bc *Backward) seedStack(stack *taskStack, frameStep int) {
	stack.clear()
	if bc.cfg.DeepFirst {
		for i := bc.under.Len() - 1; i >= 0; i-- {
			states := bc.under.At(i)
			for j := len(states) - 1; j >= 0; j-- {
				stack.push(Task{State: states[j], FrameLevel: frameStep, IsLocated: false})
			}
		}
		return
	}
	for i := 0; i < bc.under.Len(); i++ {
		for _, s := range bc.under.At(i) {
			stack.push(Task{State: s, FrameLevel: frameStep, IsLocated: false})
		}
	}
}

func (bc *Backward) newLevel(state *State, start int) int {
	for i := start; i < bc.over.Len(); i++ {
		if !bc.over.IsBlockedLazy(state.Latches, i) {
			return i - 1
		}
	}
	return bc.over.Len() - 1
}

// orderedLatches builds the (unprimed) assumption cube with rotation
// or activity ordering.
func (bc *Backward) orderedLatches(state *State, lvl int) logic.Cube {
	base := logic.Clone(state.Latches)
	if bc.cfg.ReferSkip {
		if template, ok := bc.lastUC[lvl+1]; ok {
			Rotate(base, template)
			return base
		}
	}
	bc.ord.Order(base)
	return base
}

// addUCSimple installs a cube without propagation.
func (bc *Backward) addUCSimple(uc logic.Cube, lvl int) {
	bc.mainSolver.AddUC(uc, lvl, true)
	if lvl < bc.minUpdateLevel {
		bc.minUpdateLevel = lvl
	}
	bc.lastUC[lvl] = uc
	bc.over.Insert(uc, lvl)
}

// addUC installs a cube and propagates it upward while inductive.
func (bc *Backward) addUC(uc logic.Cube, lvl int) {
	bc.addUCSimple(uc, lvl)
	bc.propagateUC(uc, lvl)
}

// propagateUC pushes the cube while its unprimed query stays unsat.
func (bc *Backward) propagateUC(uc logic.Cube, lvl int) {
	for lvl <= bc.over.EffectiveLevel {
		assumption := logic.Clone(uc)
		bc.ord.Order(assumption)
		ok, err := bc.mainSolver.SolveFrame(assumption, lvl)
		if err != nil || ok {
			return
		}
		lvl++
		bc.mainSolver.AddUC(uc, lvl, true)
		bc.over.Insert(uc, lvl)
	}
}

// propagation sweeps every frame once.
func (bc *Backward) propagation() error {
	for lvl := 1; lvl <= bc.over.EffectiveLevel && lvl < bc.over.Len(); lvl++ {
		for _, c := range bc.over.Frame(lvl) {
			ok, err := bc.mainSolver.SolveFrame(c, lvl)
			if err != nil {
				return err
			}
			if !ok {
				if bc.over.Insert(c, lvl+1) {
					bc.mainSolver.AddUC(c, lvl+1, true)
				}
			}
		}
	}
	return nil
}

func (bc *Backward) doRestart(stack *taskStack) {
	bc.log.L(1, "Restarting: rebuilding solvers.")
	bc.log.Stats.Restarts++
	bc.buildSolvers()
	for lvl := 0; lvl < bc.over.Len(); lvl++ {
		for _, c := range bc.over.Frame(lvl) {
			bc.mainSolver.AddUC(c, lvl, true)
		}
	}
	stack.clear()
}

// Witness writes the counterexample or the invariant witness circuit.
func (bc *Backward) Witness() error {
	if bc.cfg.WitnessDir == "" {
		return nil
	}
	switch bc.result {
	case Unsafe:
		return writeCounterExample(bc.cfg, bc.m, bc.cexTrace())
	case Safe:
		return writeWitnessCircuit(bc.cfg, bc.m, bc.invFrames)
	}
	return nil
}

// cexTrace walks the Pre chain back to the initial state and replays
// it forward.
func (bc *Backward) cexTrace() trace {
	t := trace{latches: bc.m.InitialState()}
	if bc.lastState == nil {
		t.inputRows = []logic.Cube{nil}
		return t
	}
	var chain []*State
	for s := bc.lastState; s != nil; s = s.Pre {
		chain = append(chain, s)
	}
	// chain is bad-side first; replay from the initial state
	for i := len(chain) - 2; i >= 1; i-- {
		t.inputRows = append(t.inputRows, chain[i].Inputs)
	}
	if len(chain) >= 1 {
		// the final query's inputs witness the bad observation
		if len(bc.m.Graph.PropertyCOIInputs) > 0 || len(t.inputRows) == 0 {
			t.inputRows = append(t.inputRows, chain[0].Inputs)
		}
	}
	if len(t.inputRows) == 0 {
		t.inputRows = []logic.Cube{nil}
	}
	return t
}
