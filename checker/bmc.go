package checker

import (
	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/sat"
	"github.com/carbide-mc/carbide/settings"
)

// BMC unrolls the transition relation bound by bound. With the
// incremental back-end each bound extends one solver; with the
// one-shot back-end several bounds are batched per solver instance
// under a disjunctive bad clause.
type BMC struct {
	cfg settings.Settings
	m   *model.Model
	log *logging.Logger

	solver *sat.Solver
	k      int
	maxK   int
	step   int

	// stored accumulates the clauses of finished bounds for the
	// one-shot back-end's next batch.
	stored []logic.Clause

	foundK int
	result Result
}

// NewBMC prepares the engine.
func NewBMC(cfg settings.Settings, m *model.Model, log *logging.Logger) *BMC {
	step := cfg.BMCStep
	if step < 1 {
		step = 1
	}
	return &BMC{cfg: cfg, m: m, log: log, maxK: cfg.BMCBound, step: step, foundK: -1}
}

// Run searches for a bad reachability witness up to the bound.
func (b *BMC) Run() (Result, error) {
	if b.m.IsTrue(b.m.Bad()) {
		b.foundK = 0
		b.result = Unsafe
		return Unsafe, nil
	}
	if b.m.IsFalse(b.m.Bad()) {
		b.result = Safe
		return Safe, nil
	}

	var (
		found bool
		err   error
	)
	if b.cfg.Backend == settings.Gophersat {
		found, err = b.checkOneShot()
	} else {
		found, err = b.checkIncremental()
	}
	if err != nil {
		return Unknown, err
	}
	if found {
		b.result = Unsafe
		return Unsafe, nil
	}
	return Unknown, nil
}

func (b *BMC) initSolver() {
	b.solver = sat.New(b.m, b.cfg.Backend)
	for _, l := range b.m.InitialState() {
		b.solver.AddClause(logic.Clause{l})
	}
	b.solver.AddInitialClauses()
}

func (b *BMC) clausesK(k int) []logic.Clause {
	src := b.m.SimpClauses()
	out := make([]logic.Clause, 0, len(src))
	for _, c := range src {
		ck := make(logic.Clause, len(c))
		for i, v := range c {
			ck[i] = b.m.PrimeK(v, k)
		}
		out = append(out, ck)
	}
	return out
}

func (b *BMC) badK(k int) int { return b.m.PrimeK(b.m.Bad(), k) }

func (b *BMC) constraintsK(k int) []int {
	var out []int
	for _, c := range b.m.Constraints() {
		out = append(out, b.m.PrimeK(c, k))
	}
	return out
}

func (b *BMC) checkIncremental() (bool, error) {
	b.initSolver()
	for {
		b.log.L(1, "BMC Bound: ", b.k)

		for _, c := range b.clausesK(b.k) {
			b.solver.AddClause(c)
		}

		kBad := b.badK(b.k)
		assumption := logic.Cube{kBad}
		assumption = append(assumption, b.constraintsK(b.k)...)

		b.log.Tick()
		ok, err := b.solver.SolveCube(assumption)
		b.log.StatMainSolver()
		if err != nil {
			return false, err
		}
		if ok {
			b.foundK = b.k
			return true, nil
		}

		for _, c := range b.constraintsK(b.k) {
			b.solver.AddClause(logic.Clause{c})
		}
		b.solver.AddClause(logic.Clause{-kBad})

		b.k++
		if b.maxK != -1 && b.k > b.maxK {
			return false, nil
		}
		if b.log.Timeout() {
			return false, ErrTimeout
		}
	}
}

// checkOneShot batches step bounds per solver instance, asking for
// any of the batched bad signals at once.
func (b *BMC) checkOneShot() (bool, error) {
	for {
		b.initSolver()
		for _, c := range b.stored {
			b.solver.AddClause(c)
		}

		var badClause logic.Clause
		for s := 0; s < b.step; s++ {
			b.log.L(1, "BMC Bound: ", b.k)

			for _, c := range b.clausesK(b.k) {
				b.solver.AddClause(c)
				b.stored = append(b.stored, c)
			}

			kBad := b.badK(b.k)
			badClause = append(badClause, kBad)
			for _, c := range b.constraintsK(b.k) {
				b.solver.AddClause(logic.Clause{c})
				b.stored = append(b.stored, logic.Clause{c})
			}
			// later batches exclude the bounds already refuted
			b.stored = append(b.stored, logic.Clause{-kBad})

			b.k++
			if b.maxK != -1 && b.k > b.maxK {
				return b.solveBatch(badClause)
			}
		}

		found, err := b.solveBatch(badClause)
		if err != nil || found {
			return found, err
		}
		if b.log.Timeout() {
			return false, ErrTimeout
		}
	}
}

func (b *BMC) solveBatch(badClause logic.Clause) (bool, error) {
	b.solver.AddClause(badClause)
	b.log.Tick()
	ok, err := b.solver.Solve()
	b.log.StatMainSolver()
	if err != nil || !ok {
		return false, err
	}
	// locate the first bound whose bad signal fired
	for j := 0; j < b.k; j++ {
		if b.solver.Value(b.m.PrimeK(b.m.Bad(), j)) {
			b.foundK = j
			break
		}
	}
	if b.foundK < 0 {
		b.foundK = b.k - 1
	}
	return true, nil
}

// Witness writes the counterexample extracted from the unrolled model.
func (b *BMC) Witness() error {
	if b.cfg.WitnessDir == "" || b.result != Unsafe {
		return nil
	}
	t := trace{latches: b.m.InitialState()}
	if b.solver != nil {
		var latches logic.Cube
		for _, v := range b.m.ModelLatches() {
			if b.solver.Value(v) {
				latches = append(latches, v)
			} else {
				latches = append(latches, -v)
			}
		}
		t.latches = latches
		for j := 0; j <= b.foundK; j++ {
			var row logic.Cube
			for _, v := range b.m.ModelInputs() {
				if b.solver.Value(b.m.PrimeK(v, j)) {
					row = append(row, v)
				} else {
					row = append(row, -v)
				}
			}
			t.inputRows = append(t.inputRows, row)
		}
	}
	if len(t.inputRows) == 0 {
		t.inputRows = []logic.Cube{nil}
	}
	return writeCounterExample(b.cfg, b.m, t)
}
