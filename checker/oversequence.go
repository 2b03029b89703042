package checker

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/sat"
	"github.com/carbide-mc/carbide/settings"
)

// blockedQueryThreshold is the number of lazy queries after which a
// large frame times the linear scan against the SAT path and commits
// to the cheaper one.
const blockedQueryThreshold = 1000

// largeFrameSize is the frame size below which the linear scan always
// wins and no timing is attempted.
const largeFrameSize = 3000

// OverSequence is the over-approximation frame sequence: ordered sets
// of blocking cubes with subsumption on insert, a parallel blocking
// solver, and lazy blocked-state checks.
type OverSequence struct {
	m   *model.Model
	log *logging.Logger

	frames       [][]logic.Cube
	blockCounter []int

	blockSolver *sat.Solver

	invariantLevel int

	// EffectiveLevel is the CAR frontier: tasks located past it are
	// dropped until the next frame opens.
	EffectiveLevel int
}

// NewOverSequence creates an empty sequence with its blocking solver.
func NewOverSequence(m *model.Model, log *logging.Logger) *OverSequence {
	return &OverSequence{
		m:           m,
		log:         log,
		blockSolver: sat.New(m, settings.Gini),
	}
}

// Len is the number of frames.
func (o *OverSequence) Len() int { return len(o.frames) }

// SetInvariantLevel records the proof frame.
func (o *OverSequence) SetInvariantLevel(lvl int) { o.invariantLevel = lvl }

// InvariantLevel is the recorded proof frame.
func (o *OverSequence) InvariantLevel() int { return o.invariantLevel }

// Frame returns a copy of the cubes stored at lvl.
func (o *OverSequence) Frame(lvl int) []logic.Cube {
	if lvl >= len(o.frames) {
		return nil
	}
	out := make([]logic.Cube, len(o.frames[lvl]))
	for i, c := range o.frames[lvl] {
		out[i] = logic.Clone(c)
	}
	return out
}

// Insert stores a canonical blocking cube at the given frame. It is a
// silent no-op when an existing cube subsumes uc; strictly weaker
// cubes are evicted. The negated cube is forwarded to the blocking
// solver as a frame clause.
func (o *OverSequence) Insert(uc logic.Cube, lvl int) bool {
	for len(o.frames) <= lvl {
		o.frames = append(o.frames, nil)
		o.blockCounter = append(o.blockCounter, 0)
	}

	frame := o.frames[lvl]
	kept := frame[:0]
	for _, c := range frame {
		if logic.Implies(c, uc) {
			return false // uc is weaker than a stored cube
		}
		if logic.Implies(uc, c) {
			continue // evict the weaker cube
		}
		kept = append(kept, c)
	}
	idx := sort.Search(len(kept), func(i int) bool { return !logic.CubeLess(kept[i], uc) })
	kept = append(kept, nil)
	copy(kept[idx+1:], kept[idx:])
	kept[idx] = uc
	o.frames[lvl] = kept

	o.blockSolver.AddUC(uc, lvl, false)
	return true
}

// IsBlocked reports whether the latch assignment falls into a stored
// cube of the frame, by linear scan.
func (o *OverSequence) IsBlocked(latches logic.Cube, lvl int) bool {
	for _, c := range o.frames[lvl] {
		if logic.Implies(c, latches) {
			return true
		}
	}
	return false
}

// IsBlockedSAT asks the blocking solver instead of scanning.
func (o *OverSequence) IsBlockedSAT(latches logic.Cube, lvl int) bool {
	ok, err := o.blockSolver.SolveFrame(latches, lvl)
	if err != nil {
		// the blocking solver only ever sees pure propositional
		// queries; treat unknown as not blocked
		return false
	}
	return !ok
}

// IsBlockedLazy picks between the linear and SAT paths: small frames
// always scan; after enough queries on a large frame both paths are
// timed once and the winner is kept for that frame.
func (o *OverSequence) IsBlockedLazy(latches logic.Cube, lvl int) bool {
	counter := &o.blockCounter[lvl]
	switch *counter {
	case -1:
		return o.IsBlockedSAT(latches, lvl)
	case -2:
		return o.IsBlocked(latches, lvl)
	}
	if len(o.frames[lvl]) > largeFrameSize {
		*counter++
	}
	if *counter > blockedQueryThreshold {
		start := time.Now()
		satBlocked := o.IsBlockedSAT(latches, lvl)
		satTime := time.Since(start)

		start = time.Now()
		linBlocked := o.IsBlocked(latches, lvl)
		linTime := time.Since(start)

		if satTime > linTime {
			*counter = -2
		} else {
			*counter = -1
		}
		_ = linBlocked
		return satBlocked
	}
	return o.IsBlocked(latches, lvl)
}

// Blockers collects the stored cubes of a frame that block the latch
// assignment; refer-skipping reuses them as ordering templates.
func (o *OverSequence) Blockers(latches logic.Cube, lvl int) []logic.Cube {
	if lvl >= len(o.frames) {
		return nil
	}
	var out []logic.Cube
	for _, c := range o.frames[lvl] {
		if logic.Implies(c, latches) {
			out = append(out, c)
		}
	}
	return out
}

// FrameEqual reports set equality of two adjacent frames modulo
// subsumption; a frame equal to its successor is inductive.
func (o *OverSequence) FrameEqual(i, j int) bool {
	if i >= len(o.frames) || j >= len(o.frames) {
		return false
	}
	fi, fj := o.frames[i], o.frames[j]
	if len(fi) != len(fj) {
		return false
	}
	for k := range fi {
		if !logic.CubeEqual(fi[k], fj[k]) {
			return false
		}
	}
	return true
}

// FramesInfo renders the per-frame cube counts.
func (o *OverSequence) FramesInfo() string {
	var b strings.Builder
	b.WriteString("Frames: ")
	for i, f := range o.frames {
		fmt.Fprintf(&b, "F%d[%d] ", i, len(f))
	}
	return b.String()
}

// FramesDetail renders every stored cube, for high-verbosity dumps.
func (o *OverSequence) FramesDetail() string {
	var b strings.Builder
	for i, f := range o.frames {
		fmt.Fprintf(&b, "F%d:\n", i)
		for _, c := range f {
			fmt.Fprintf(&b, "  %v\n", c)
		}
	}
	return b.String()
}
