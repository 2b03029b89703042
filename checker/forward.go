package checker

import (
	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/sat"
	"github.com/carbide-mc/carbide/settings"
)

// startSolver enumerates states satisfying bad that are not yet
// excluded by the frontier. A rotating activation flag retires the
// exclusions of earlier frontiers.
type startSolver struct {
	s       *sat.Solver
	flag    int
	hasFlag bool
}

func newStartSolver(cfg settings.Settings, m *model.Model, badID int) *startSolver {
	s := sat.New(m, cfg.Backend)
	s.AddTrans()
	s.PushAssumption(badID)
	return &startSolver{s: s}
}

// UpdateFlag opens a fresh activation scope; clauses tied to the old
// flag stop constraining the enumeration.
func (ss *startSolver) UpdateFlag() {
	if !ss.hasFlag {
		ss.flag = ss.s.NewVar()
		ss.s.PushAssumption(ss.flag)
		ss.hasFlag = true
		return
	}
	ss.s.PopAssumption()
	ss.s.PushAssumption(-ss.flag)
	ss.flag = ss.s.NewVar()
	ss.s.PushAssumption(ss.flag)
}

// Block excludes a state cube under the current flag.
func (ss *startSolver) Block(uc logic.Cube) {
	cls := make(logic.Clause, 0, len(uc)+1)
	cls = append(cls, -ss.flag)
	cls = append(cls, logic.Negate(uc)...)
	ss.s.AddClause(cls)
}

// Forward is the forward CAR engine: frames over-approximate the
// states reachable from the initial state; start states satisfy bad
// and are chased backward toward the initial state.
type Forward struct {
	cfg settings.Settings
	m   *model.Model
	log *logging.Logger

	ord       *orderer
	branching *Branching
	restart   *Restart

	over  *OverSequence
	under UnderSequence

	mainSolver *sat.Solver
	liftSolver *sat.Solver
	badLift    *sat.Solver
	start      *startSolver

	initialState   *State
	minUpdateLevel int
	badID          int
	lastUC         map[int]logic.Cube

	lastState *State
	invFrames [][]logic.Cube
	result    Result
}

// NewForward prepares the engine.
func NewForward(cfg settings.Settings, m *model.Model, log *logging.Logger) *Forward {
	fc := &Forward{cfg: cfg, m: m, log: log, branching: NewBranching(cfg.Branching)}
	fc.ord = newOrderer(cfg, m, fc.branching)
	fc.restart = NewRestart(cfg)
	fc.initialState = &State{Latches: logic.Clone(m.InitialState())}
	fc.lastUC = make(map[int]logic.Cube)
	return fc
}

func (fc *Forward) buildSolvers() {
	fc.mainSolver = sat.New(fc.m, fc.cfg.Backend)
	fc.mainSolver.AddTrans()
	fc.liftSolver = sat.New(fc.m, fc.cfg.Backend)
	fc.liftSolver.AddTrans()
	fc.badLift = sat.New(fc.m, fc.cfg.Backend)
	fc.badLift.AddTrans()
	fc.start = newStartSolver(fc.cfg, fc.m, fc.badID)
}

// Run decides the property.
func (fc *Forward) Run() (Result, error) {
	fc.badID = fc.m.Bad()
	if fc.m.IsTrue(fc.badID) {
		fc.lastState = fc.initialState
		fc.result = Unsafe
		return Unsafe, nil
	}
	if fc.m.IsFalse(fc.badID) {
		fc.result = Safe
		return Safe, nil
	}

	fc.over = NewOverSequence(fc.m, fc.log)
	fc.buildSolvers()

	// 0-step: an initial state may already satisfy bad
	assumption := append(logic.Clone(fc.m.InitialState()), fc.badID)
	fc.log.Tick()
	ok, err := fc.mainSolver.SolveCube(assumption)
	fc.log.StatMainSolver()
	if err != nil {
		return Unknown, err
	}
	if ok {
		inputs, _ := fc.mainSolver.Assignment(false)
		fc.initialState.Inputs = inputs
		fc.lastState = fc.initialState
		fc.result = Unsafe
		return Unsafe, nil
	}

	// every further query stays inside the property
	fc.mainSolver.AddClause(logic.Clause{-fc.badID})

	// frame 0 is exactly the initial states
	for _, l := range fc.m.InitialState() {
		uc := logic.Cube{-l}
		fc.over.Insert(uc, 0)
		fc.mainSolver.AddUC(uc, 0, false)
	}
	fc.over.EffectiveLevel = 0
	fc.start.UpdateFlag()

	frameStep := 0
	var stack taskStack
	for {
		fc.log.L(1, fc.over.FramesInfo())
		fc.log.Dump("over-sequence", fc.over.frames)
		fc.minUpdateLevel = fc.over.Len()

		fc.seedStack(&stack, frameStep)

		fc.log.Tick()
		startState, err := fc.enumerateStartState()
		fc.log.StatStartSolver()
		if err != nil {
			return Unknown, err
		}
		if startState == nil {
			return fc.proved(frameStep)
		}

		for startState != nil {
			stack.push(Task{State: startState, FrameLevel: frameStep, IsLocated: true})

			for !stack.empty() {
				if fc.cfg.TimeLimit > 0 && fc.log.Timeout() {
					fc.log.L(0, "time out!!!")
					return Unknown, ErrTimeout
				}
				task := stack.top()

				if !task.IsLocated {
					fc.log.Tick()
					task.FrameLevel = fc.newLevel(task.State, task.FrameLevel+1)
					fc.log.StatGetNewLevel()
					if task.FrameLevel > fc.over.EffectiveLevel {
						stack.pop()
						continue
					}
				}
				task.IsLocated = false

				if task.FrameLevel == -1 {
					// the obligation reached the initial states
					fc.lastState = task.State
					fc.result = Unsafe
					return Unsafe, nil
				}

				assumption := fc.assumption(task.State, task.FrameLevel)
				fc.log.Tick()
				ok, err := fc.mainSolver.SolveFrame(assumption, task.FrameLevel)
				fc.log.StatMainSolver()
				if err != nil {
					return Unknown, err
				}

				if ok {
					inputs, latches := fc.mainSolver.Assignment(false)
					partial, err := fc.liftPredecessor(inputs, latches, task.State)
					if err != nil {
						return Unknown, err
					}
					newState := &State{Pre: task.State, Inputs: inputs, Latches: partial, Depth: task.State.Depth + 1}
					fc.under.Push(newState)
					lvl := fc.newLevel(newState, 0)
					stack.push(Task{State: newState, FrameLevel: lvl, IsLocated: true})
					continue
				}

				uc := fc.mainSolver.UnsatCore(true)
				if len(uc) == 0 {
					// blocked independent of the state: nothing
					// reaches bad in this context
					return fc.proved(task.FrameLevel)
				}
				fc.branching.Update(uc)
				fc.restart.Bump()
				fc.log.Tick()
				if err := fc.addUC(uc, task.FrameLevel+1); err != nil {
					return Unknown, err
				}
				fc.log.StatUpdateUC()
				task.FrameLevel++
			}

			if fc.cfg.Restart && fc.restart.Check() {
				fc.doRestart(&stack)
				fc.restart.Next()
			}

			fc.log.Tick()
			startState, err = fc.enumerateStartState()
			fc.log.StatStartSolver()
			if err != nil {
				return Unknown, err
			}
		}

		frameStep++
		if fc.cfg.Propagation {
			fc.log.Tick()
			if err := fc.propagation(); err != nil {
				return Unknown, err
			}
			fc.log.StatPropagation()
		}
		fc.over.EffectiveLevel++
		fc.start.UpdateFlag()

		fc.log.Tick()
		found, err := invariantFound(fc.cfg, fc.m, fc.log, fc.over, fc.minUpdateLevel)
		fc.log.StatInvSolver()
		if err != nil {
			return Unknown, err
		}
		if found {
			return fc.proved(fc.over.InvariantLevel())
		}
	}
}

func (fc *Forward) proved(invLevel int) (Result, error) {
	fc.over.SetInvariantLevel(invLevel)
	for i := 0; i <= invLevel && i < fc.over.Len(); i++ {
		fc.invFrames = append(fc.invFrames, fc.over.Frame(i))
	}
	fc.result = Safe
	return Safe, nil
}

// seedStack replays the known under-sequence states, shallow-first or
// deep-first.
func (fc *Forward) seedStack(stack *taskStack, frameStep int) {
	stack.clear()
	if fc.cfg.DeepFirst {
		for i := fc.under.Len() - 1; i >= 0; i-- {
			states := fc.under.At(i)
			for j := len(states) - 1; j >= 0; j-- {
				stack.push(Task{State: states[j], FrameLevel: frameStep, IsLocated: false})
			}
		}
		return
	}
	for i := 0; i < fc.under.Len(); i++ {
		for _, s := range fc.under.At(i) {
			stack.push(Task{State: s, FrameLevel: frameStep, IsLocated: false})
		}
	}
}

// newLevel re-locates a state to the first frame that does not block
// it, minus one.
func (fc *Forward) newLevel(state *State, start int) int {
	for i := start; i < fc.over.Len(); i++ {
		if !fc.over.IsBlockedLazy(state.Latches, i) {
			return i - 1
		}
	}
	return fc.over.Len() - 1
}

// assumption builds the primed assumption cube, ordered by rotation
// (refer-skipping) or activity.
func (fc *Forward) assumption(state *State, lvl int) logic.Cube {
	base := logic.Clone(state.Latches)
	if fc.cfg.ReferSkip {
		if template, ok := fc.lastUC[lvl+1]; ok {
			Rotate(base, template)
			return fc.m.PrimeCube(base)
		}
	}
	fc.ord.Order(base)
	return fc.m.PrimeCube(base)
}

// liftPredecessor shrinks a concrete predecessor to a partial cube
// whose every completion still transitions into the successor.
func (fc *Forward) liftPredecessor(inputs, latches logic.Cube, succ *State) (logic.Cube, error) {
	fc.liftSolver.AddTempClause(logic.Negate(fc.m.PrimeCube(succ.Latches)))
	defer fc.liftSolver.ReleaseTempClause()

	partial := latches
	for {
		assumption := make(logic.Cube, 0, len(partial)+len(inputs))
		assumption = append(assumption, partial...)
		assumption = append(assumption, inputs...)
		ok, err := fc.liftSolver.SolveCube(assumption)
		if err != nil {
			return nil, err
		}
		if ok {
			panic("checker: predecessor lift query satisfiable")
		}
		core := fc.liftSolver.UnsatCore(false)
		if len(core) == 0 || len(core) >= len(partial) {
			break
		}
		partial = core
	}
	return partial, nil
}

// liftStartState shrinks an enumerated bad state against the bad
// signal itself.
func (fc *Forward) liftStartState(inputs, latches logic.Cube) (logic.Cube, error) {
	fc.badLift.AddTempClause(logic.Clause{-fc.badID})
	defer fc.badLift.ReleaseTempClause()

	partial := latches
	for {
		assumption := make(logic.Cube, 0, len(partial)+len(inputs))
		assumption = append(assumption, partial...)
		assumption = append(assumption, inputs...)
		ok, err := fc.badLift.SolveCube(assumption)
		if err != nil {
			return nil, err
		}
		if ok {
			panic("checker: start-state lift query satisfiable")
		}
		core := fc.badLift.UnsatCore(false)
		if len(core) == 0 || len(core) >= len(partial) {
			break
		}
		partial = core
	}
	return partial, nil
}

// enumerateStartState yields the next bad state outside the frontier,
// excluding it from later enumerations.
func (fc *Forward) enumerateStartState() (*State, error) {
	ok, err := fc.start.s.Solve()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	inputs, latches := fc.start.s.Assignment(false)
	partial, err := fc.liftStartState(inputs, latches)
	if err != nil {
		return nil, err
	}
	fc.start.Block(partial)
	return &State{Inputs: inputs, Latches: partial, Depth: 0}, nil
}

// addUC installs a learned blocking cube everywhere it is tracked and
// pushes it forward while it stays inductive.
func (fc *Forward) addUC(uc logic.Cube, lvl int) error {
	fc.mainSolver.AddUC(uc, lvl, false)
	if lvl > fc.over.EffectiveLevel {
		fc.start.Block(uc)
	}
	if lvl < fc.minUpdateLevel {
		fc.minUpdateLevel = lvl
	}
	fc.lastUC[lvl] = uc
	if !fc.over.Insert(uc, lvl) {
		return nil
	}
	return fc.propagateUC(uc, lvl)
}

// propagateUC pushes one cube to higher frames while the inductive
// check stays unsat.
func (fc *Forward) propagateUC(uc logic.Cube, lvl int) error {
	for lvl <= fc.over.EffectiveLevel {
		assumption := logic.Clone(uc)
		fc.ord.Order(assumption)
		ok, err := fc.mainSolver.SolveFrame(fc.m.PrimeCube(assumption), lvl)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		lvl++
		fc.mainSolver.AddUC(uc, lvl, false)
		if lvl > fc.over.EffectiveLevel {
			fc.start.Block(uc)
		}
		fc.over.Insert(uc, lvl)
	}
	return nil
}

// propagation sweeps every frame once, pushing inductive cubes up.
func (fc *Forward) propagation() error {
	for lvl := 1; lvl <= fc.over.EffectiveLevel && lvl < fc.over.Len(); lvl++ {
		for _, c := range fc.over.Frame(lvl) {
			ok, err := fc.mainSolver.SolveFrame(fc.m.PrimeCube(c), lvl)
			if err != nil {
				return err
			}
			if !ok {
				if fc.over.Insert(c, lvl+1) {
					fc.mainSolver.AddUC(c, lvl+1, false)
					if lvl+1 > fc.over.EffectiveLevel {
						fc.start.Block(c)
					}
				}
			}
		}
	}
	return nil
}

// doRestart rebuilds the incremental solvers from the surviving
// frames and abandons the in-flight task stack. Both sequences keep
// their contents.
func (fc *Forward) doRestart(stack *taskStack) {
	fc.log.L(1, "Restarting: rebuilding solvers.")
	fc.log.Stats.Restarts++
	fc.buildSolvers()
	fc.mainSolver.AddClause(logic.Clause{-fc.badID})
	for lvl := 0; lvl < fc.over.Len(); lvl++ {
		for _, c := range fc.over.Frame(lvl) {
			fc.mainSolver.AddUC(c, lvl, false)
		}
	}
	fc.start.UpdateFlag()
	for lvl := fc.over.EffectiveLevel + 1; lvl < fc.over.Len(); lvl++ {
		for _, c := range fc.over.Frame(lvl) {
			fc.start.Block(c)
		}
	}
	stack.clear()
}

// Witness writes the counterexample or the invariant witness circuit.
func (fc *Forward) Witness() error {
	if fc.cfg.WitnessDir == "" {
		return nil
	}
	switch fc.result {
	case Unsafe:
		return writeCounterExample(fc.cfg, fc.m, fc.cexTrace())
	case Safe:
		return writeWitnessCircuit(fc.cfg, fc.m, fc.invFrames)
	}
	return nil
}

// cexTrace walks the Pre chain from the initial-state side toward the
// bad state.
func (fc *Forward) cexTrace() trace {
	t := trace{latches: fc.m.InitialState()}
	if fc.lastState == nil {
		t.inputRows = []logic.Cube{nil}
		return t
	}
	var chain []*State
	for s := fc.lastState; s != nil; s = s.Pre {
		chain = append(chain, s)
	}
	for _, s := range chain[:len(chain)-1] {
		t.inputRows = append(t.inputRows, s.Inputs)
	}
	if len(fc.m.Graph.PropertyCOIInputs) > 0 {
		t.inputRows = append(t.inputRows, chain[len(chain)-1].Inputs)
	}
	if len(t.inputRows) == 0 {
		t.inputRows = []logic.Cube{nil}
	}
	return t
}
