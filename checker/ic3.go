package checker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/sat"
	"github.com/carbide-mc/carbide/settings"
)

// ic3Frame is one IC3 frame: its border cubes and its own solver
// carrying T, the primed property copy, P and the learned lemmas.
type ic3Frame struct {
	cubes  []logic.Cube
	solver *sat.Solver
}

// insert adds a canonical cube, rejecting duplicates.
func (f *ic3Frame) insert(c logic.Cube) bool {
	for _, e := range f.cubes {
		if logic.CubeEqual(e, c) {
			return false
		}
	}
	f.cubes = append(f.cubes, c)
	return true
}

// IC3 is the property-directed reachability engine.
type IC3 struct {
	cfg settings.Settings
	m   *model.Model
	log *logging.Logger

	ord       *orderer
	branching *Branching

	frames []*ic3Frame
	lift   *sat.Solver

	initSet  map[int]struct{}
	badPrime int
	k        int

	earliest int
	trivial  bool

	cexState *State
	invCubes []logic.Cube
	result   Result
}

// NewIC3 prepares the engine; solvers are created per frame as the
// sequence grows.
func NewIC3(cfg settings.Settings, m *model.Model, log *logging.Logger) *IC3 {
	r := &IC3{cfg: cfg, m: m, log: log, branching: NewBranching(cfg.Branching)}
	r.ord = newOrderer(cfg, m, r.branching)
	r.initSet = make(map[int]struct{}, len(m.InitialState()))
	for _, l := range m.InitialState() {
		r.initSet[l] = struct{}{}
	}
	return r
}

// Run decides the property.
func (r *IC3) Run() (Result, error) {
	if r.m.IsTrue(r.m.Bad()) {
		r.cexState = &State{Latches: logic.Clone(r.m.InitialState())}
		r.result = Unsafe
		return Unsafe, nil
	}
	if r.m.IsFalse(r.m.Bad()) {
		r.result = Safe
		return Safe, nil
	}

	r.badPrime = r.m.PrimeK(r.m.Bad(), 1)

	r.lift = sat.New(r.m, r.cfg.Backend)
	r.lift.AddTrans()
	r.lift.AddPrimedCopy()

	unsafe, err := r.baseCases()
	if err != nil {
		return Unknown, err
	}
	if unsafe {
		r.result = Unsafe
		return Unsafe, nil
	}
	r.log.L(1, "Base cases passed. Starting main IC3 loop.")

	// F_0 is exactly the initial states.
	r.addNewFrame()
	for _, cls := range r.m.InitialClauses() {
		r.frames[0].solver.AddClause(cls)
	}
	for _, l := range r.m.InitialState() {
		r.frames[0].solver.AddClause(logic.Clause{l})
		r.addBlockingCube(logic.Cube{-l}, 0)
	}

	for r.k = 1; ; r.k++ {
		r.log.L(1, "==================== k=", r.k, " ====================")
		r.log.L(1, r.framesInfo())
		for len(r.frames) <= r.k+1 {
			r.addNewFrame()
		}

		ok, err := r.strengthen()
		if err != nil {
			return Unknown, err
		}
		if !ok {
			r.log.L(1, "UNSAFE: CEX found during strengthening of F_", r.k)
			r.result = Unsafe
			return Unsafe, nil
		}

		proved, err := r.propagate()
		if err != nil {
			return Unknown, err
		}
		if proved {
			r.log.L(1, "SAFE: Proof found at F_", r.k)
			r.result = Safe
			return Safe, nil
		}

		if r.log.Timeout() {
			return Unknown, ErrTimeout
		}
	}
}

// baseCases covers the 0-step and 1-step reachability of bad.
func (r *IC3) baseCases() (bool, error) {
	base := sat.New(r.m, r.cfg.Backend)
	base.AddTrans()
	base.AddPrimedCopy()
	base.AddInitialClauses()

	assumption := append(logic.Clone(r.m.InitialState()), r.m.Bad())
	r.log.Tick()
	ok, err := base.SolveCube(assumption)
	r.log.StatMainSolver()
	if err != nil {
		return false, err
	}
	if ok {
		r.log.L(0, "UNSAFE: Property fails in initial states.")
		inputs, _ := base.Assignment(false)
		r.cexState = &State{Inputs: inputs, Latches: logic.Clone(r.m.InitialState())}
		return true, nil
	}

	assumption = append(logic.Clone(r.m.InitialState()), r.badPrime)
	r.log.Tick()
	ok, err = base.SolveCube(assumption)
	r.log.StatMainSolver()
	if err != nil {
		return false, err
	}
	if ok {
		r.log.L(0, "UNSAFE: Property fails at step 1.")
		inputs, _ := base.Assignment(false)
		r.cexState = &State{
			Inputs:      inputs,
			Latches:     logic.Clone(r.m.InitialState()),
			PrimeInputs: base.PrimeInputs(),
		}
		return true, nil
	}
	return false, nil
}

func (r *IC3) addNewFrame() {
	r.log.L(2, "Adding new frame F_", len(r.frames))
	s := sat.New(r.m, r.cfg.Backend)
	s.AddTrans()
	s.AddPrimedCopy()
	s.AddProperty()
	r.frames = append(r.frames, &ic3Frame{solver: s})
}

// addBlockingCube stores the cube at the frame and pushes the lemma
// clause into every frame solver it strengthens.
func (r *IC3) addBlockingCube(c logic.Cube, lvl int) {
	if !r.frames[lvl].insert(c) {
		return
	}
	if lvl < r.earliest {
		r.earliest = lvl
	}
	r.log.L(2, "Frame ", lvl, ": ", cubeStr(c))

	lemma := logic.Negate(c)
	for i := 1; i <= lvl; i++ {
		r.frames[i].solver.AddClause(lemma)
	}
}

// strengthen blocks every CTI of the frontier frame.
func (r *IC3) strengthen() (bool, error) {
	r.trivial = true
	r.earliest = r.k + 1

	for {
		solver := r.frames[r.k].solver
		r.log.Tick()
		ok, err := solver.SolveCube(logic.Cube{r.badPrime})
		r.log.StatMainSolver()
		if err != nil {
			return false, err
		}
		if !ok {
			r.log.L(1, "No more CTIs at level ", r.k, ". Frame is strengthened.")
			return true, nil
		}
		r.trivial = false

		inputs, latches := solver.Assignment(false)
		cti := &State{Inputs: inputs, Latches: latches, PrimeInputs: solver.PrimeInputs(), Depth: 1}
		if err := r.generalizePredecessor(cti, nil); err != nil {
			return false, err
		}

		var obligations obligationQueue
		obligations.Add(cti, r.k-1, 1)
		ok, err = r.handleObligations(&obligations)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
}

func (r *IC3) handleObligations(obligations *obligationQueue) (bool, error) {
	for obligations.Len() > 0 {
		ob := obligations.Peek()
		r.log.L(2, "Handling obligation for state at level ", ob.Level, " with depth ", ob.Depth)
		r.log.Dump("obligation state", ob.State)

		solver := r.frames[ob.Level].solver
		r.log.Tick()
		ok, err := solver.SolveCube(r.m.PrimeCube(ob.State.Latches))
		r.log.StatMainSolver()
		if err != nil {
			return false, err
		}

		if !ok {
			obligations.Remove()

			uc, err := r.validateUC(solver, ob.State.Latches)
			if err != nil {
				return false, err
			}
			r.log.Tick()
			if err := r.generalize(&uc, ob.Level); err != nil {
				return false, err
			}
			r.log.StatGeneralize()
			r.branching.Update(uc)

			pushLevel, err := r.pushLemmaForward(uc, ob.Level+1)
			if err != nil {
				return false, err
			}
			r.log.L(2, "Learned clause and pushed to frame ", pushLevel)
			r.addBlockingCube(uc, pushLevel)

			if pushLevel <= r.k {
				obligations.Add(ob.State, pushLevel, ob.Depth)
			}

			if r.cfg.Innards {
				if err := r.innardsPass(uc, ob.State, pushLevel); err != nil {
					return false, err
				}
			}
			continue
		}

		// a predecessor exists relative to F_{ob.Level}
		inputs, latches := solver.Assignment(false)
		pred := &State{
			Next:        ob.State,
			Inputs:      inputs,
			Latches:     latches,
			PrimeInputs: solver.PrimeInputs(),
			Depth:       ob.Depth + 1,
		}

		if ob.Level == 0 {
			r.log.L(0, "UNSAFE: Found a path from the initial state.")
			r.cexState = pred
			return false, nil
		}

		if err := r.generalizePredecessor(pred, ob.State); err != nil {
			return false, err
		}
		r.log.L(2, "Found predecessor for CTI. New obligation at level ", ob.Level-1)
		obligations.Add(pred, ob.Level-1, ob.Depth+1)
	}
	return true, nil
}

// innardsPass retries generalization with the state's related internal
// signals; the stronger lemma is kept only when its latch projection
// strictly shrinks.
func (r *IC3) innardsPass(uc logic.Cube, state *State, pushLevel int) error {
	var stateInnards logic.Cube
	for _, l := range state.Latches {
		if r.m.IsInnard(l) {
			stateInnards = append(stateInnards, l)
		}
	}
	innards := r.m.RelevantInnards(uc, stateInnards)
	if len(innards) == 0 {
		return nil
	}
	r.log.L(3, "Innards: ", cubeStr(innards))

	withInnards := append(logic.Clone(uc), innards...)
	logic.SortCube(withInnards)
	if err := r.generalize(&withInnards, pushLevel-1); err != nil {
		return err
	}

	var latchProjection logic.Cube
	for _, l := range withInnards {
		if !r.m.IsInnard(l) {
			latchProjection = append(latchProjection, l)
		}
	}
	if len(latchProjection) >= len(uc) {
		return nil
	}
	r.log.L(3, "Lemma with innards is more abstract: ", len(uc), " -> ", len(latchProjection))
	lvl, err := r.pushLemmaForward(withInnards, pushLevel)
	if err != nil {
		return err
	}
	r.addBlockingCube(withInnards, lvl)
	return nil
}

// generalize minimizes the cube by dropping literals while keeping
// initiation and relative inductiveness (MIC).
func (r *IC3) generalize(c *logic.Cube, level int) error {
	r.log.L(3, "Generalizing cube: ", cubeStr(*c), ", at level ", level)
	gen := logic.Clone(*c)
	r.ord.Order(gen)
	tried := make(map[int]struct{})

	for i := len(gen) - 1; i >= 0; i-- {
		if i >= len(gen) {
			i = len(gen) - 1
		}
		lit := gen[i]
		if _, ok := tried[lit]; ok {
			continue
		}

		temp := make(logic.Cube, 0, len(gen)-1)
		temp = append(temp, gen[:i]...)
		temp = append(temp, gen[i+1:]...)

		disjoint, err := r.initiationCheck(temp)
		if err != nil {
			return err
		}
		if !disjoint {
			tried[lit] = struct{}{}
			continue
		}

		solver := r.frames[level].solver
		solver.AddTempClause(logic.Negate(temp))
		r.ord.Order(temp)

		ok, err := solver.SolveCube(r.m.PrimeCube(temp))
		if err != nil {
			solver.ReleaseTempClause()
			return err
		}
		if !ok {
			gen, err = r.validateUC(solver, temp)
			if err != nil {
				solver.ReleaseTempClause()
				return err
			}
			r.ord.Order(gen)
		} else {
			tried[lit] = struct{}{}
		}
		solver.ReleaseTempClause()
	}

	logic.SortCube(gen)
	r.log.L(3, "Generalized cube: ", cubeStr(gen))
	*c = gen
	return nil
}

// generalizePredecessor lifts a concrete predecessor to a minimal cube
// still forced into the successor (or into bad') under its inputs.
func (r *IC3) generalizePredecessor(pred *State, succ *State) error {
	r.log.L(3, "Generalizing predecessor. Initial latch size: ", len(pred.Latches))

	var blocker logic.Clause
	if succ != nil {
		blocker = logic.Negate(r.m.PrimeCube(succ.Latches))
	} else {
		blocker = logic.Clause{-r.badPrime}
	}
	r.lift.AddTempClause(blocker)
	defer r.lift.ReleaseTempClause()

	partial := logic.Clone(pred.Latches)
	for {
		assumption := make(logic.Cube, 0, len(partial)+len(pred.Inputs)+len(pred.PrimeInputs))
		assumption = append(assumption, partial...)
		assumption = append(assumption, pred.Inputs...)
		assumption = append(assumption, pred.PrimeInputs...)

		ok, err := r.lift.SolveCube(assumption)
		if err != nil {
			return err
		}
		if ok {
			panic("checker: lift query satisfiable; transition copy out of sync")
		}

		core := r.lift.UnsatCore(false)
		r.log.L(3, "Core size: ", len(core), ", partial latch size: ", len(partial))
		if len(core) == 0 || len(core) >= len(partial) {
			break
		}
		partial = core
	}

	pred.Latches = partial
	r.log.L(3, "Generalized predecessor. Final latch size: ", len(pred.Latches))
	return nil
}

// initiationCheck proves the cube disjoint from the initial states:
// syntactically when no innards are involved, by SAT against F_0
// otherwise.
func (r *IC3) initiationCheck(c logic.Cube) (bool, error) {
	hasInnards := false
	for _, l := range c {
		if r.m.IsInnard(l) {
			hasInnards = true
			break
		}
	}
	if !hasInnards {
		for _, l := range c {
			if _, ok := r.initSet[-l]; ok {
				return true, nil
			}
		}
		return false, nil
	}
	ok, err := r.frames[0].solver.SolveCube(c)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// validateUC extracts the unsat core and falls back to the pre-query
// cube when the core is empty or intersects the initial states.
func (r *IC3) validateUC(solver *sat.Solver, fallback logic.Cube) (logic.Cube, error) {
	core := solver.UnsatCore(true)
	r.log.L(3, "Got UNSAT core: ", cubeStr(core))
	if len(core) == 0 {
		return logic.Clone(fallback), nil
	}
	disjoint, err := r.initiationCheck(core)
	if err != nil {
		return nil, err
	}
	if !disjoint {
		r.log.L(3, "Core intersects the initial states; reverting to the pre-query cube.")
		return logic.Clone(fallback), nil
	}
	return core, nil
}

// pushLemmaForward pushes the cube as long as it stays inductive.
func (r *IC3) pushLemmaForward(c logic.Cube, startLevel int) (int, error) {
	lvl := startLevel
	for lvl <= r.k {
		ok, err := r.frames[lvl].solver.SolveCube(r.m.PrimeCube(c))
		if err != nil {
			return 0, err
		}
		if ok {
			break
		}
		lvl++
	}
	return lvl, nil
}

// propagate pushes inductive cubes one frame up; an emptied frame is
// an inductive invariant.
func (r *IC3) propagate() (bool, error) {
	r.log.L(1, "Phase 3: Propagating clauses.")
	r.log.Tick()
	defer r.log.StatPropagation()

	// cubes stored at a higher frame subsume their lower copies
	seen := make(map[string]struct{})
	for i := r.k + 1; i >= r.earliest && i >= 0; i-- {
		frame := r.frames[i]
		remaining := frame.cubes[:0]
		for _, c := range frame.cubes {
			if _, ok := seen[cubeStr(c)]; !ok {
				remaining = append(remaining, c)
			}
		}
		frame.cubes = remaining
		for _, c := range frame.cubes {
			seen[cubeStr(c)] = struct{}{}
		}
	}

	start := 1
	if r.trivial {
		start = r.k
	}
	for i := start; i <= r.k; i++ {
		frame := r.frames[i]
		kept := frame.cubes[:0]
		propagated := 0
		for _, c := range frame.cubes {
			ok, err := frame.solver.SolveCube(r.m.PrimeCube(c))
			if err != nil {
				return false, err
			}
			if ok {
				kept = append(kept, c)
				continue
			}
			smaller, err := r.validateUC(frame.solver, c)
			if err != nil {
				return false, err
			}
			r.addBlockingCube(smaller, i+1)
			propagated++
		}
		frame.cubes = kept
		r.log.L(2, "Frame ", i, " propagation: ", propagated, " propagated, ", len(kept), " kept.")

		if len(frame.cubes) == 0 {
			r.log.L(0, "SAFE: Frame F_", i, " is an inductive invariant.")
			for j := i + 1; j < len(r.frames); j++ {
				r.invCubes = append(r.invCubes, r.frames[j].cubes...)
			}
			return true, nil
		}
	}
	return false, nil
}

func (r *IC3) framesInfo() string {
	var b strings.Builder
	b.WriteString("Frames: ")
	for i, f := range r.frames {
		fmt.Fprintf(&b, "F%d[%d] ", i, len(f.cubes))
	}
	return b.String()
}

// Witness writes the counterexample or the invariant-strengthened
// circuit, depending on the result.
func (r *IC3) Witness() error {
	if r.cfg.WitnessDir == "" {
		return nil
	}
	switch r.result {
	case Unsafe:
		return writeCounterExample(r.cfg, r.m, r.cexTrace())
	case Safe:
		var frames [][]logic.Cube
		if len(r.invCubes) > 0 {
			frames = [][]logic.Cube{r.invCubes}
		}
		return writeWitnessCircuit(r.cfg, r.m, frames)
	}
	return nil
}

// cexTrace converts the Next-linked state chain into the latch line
// and the per-step input rows.
func (r *IC3) cexTrace() trace {
	t := trace{latches: r.m.InitialState()}
	if r.cexState == nil {
		t.inputRows = []logic.Cube{nil}
		return t
	}
	t.latches = r.cexState.Latches
	last := r.cexState
	for s := r.cexState; s != nil; s = s.Next {
		t.inputRows = append(t.inputRows, s.Inputs)
		last = s
	}
	// the bad-cone inputs of the final step matter only when the
	// property actually reads inputs
	if len(r.m.Graph.PropertyCOIInputs) > 0 && last.PrimeInputs != nil {
		t.inputRows = append(t.inputRows, unprimeInputs(r.m, last.PrimeInputs))
	}
	if len(t.inputRows) == 0 {
		t.inputRows = []logic.Cube{nil}
	}
	return t
}

func cubeStr(c logic.Cube) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, l := range c {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(l))
	}
	b.WriteByte('}')
	return b.String()
}
