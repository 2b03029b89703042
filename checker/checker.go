// Package checker hosts the model-checking engines: IC3/PDR, forward
// and backward CAR, and bounded model checking.
package checker

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/settings"
)

// Result is the verdict of an engine run.
type Result int

// Verdicts. Unknown is only produced by timeouts, bounded runs and
// solver failures.
const (
	Unknown Result = iota
	Safe
	Unsafe
)

func (r Result) String() string {
	switch r {
	case Safe:
		return "Safe"
	case Unsafe:
		return "Unsafe"
	default:
		return "Unknown"
	}
}

// ErrTimeout marks a run cut short by the soft time limit.
var ErrTimeout = errors.New("checker: time limit reached")

// Checker is one configured engine over one compiled model.
type Checker interface {
	// Run decides the property.
	Run() (Result, error)
	// Witness writes the counterexample or safe-witness files when a
	// witness directory is configured.
	Witness() error
}

// New selects the engine for the configured algorithm.
func New(cfg settings.Settings, m *model.Model, log *logging.Logger) Checker {
	switch cfg.Algorithm {
	case settings.IC3:
		return NewIC3(cfg, m, log)
	case settings.BackwardCAR:
		return NewBackward(cfg, m, log)
	case settings.BMC:
		return NewBMC(cfg, m, log)
	default:
		return NewForward(cfg, m, log)
	}
}

// orderer arranges assumption cubes before they reach the solver:
// seeded shuffle, innard-level order, or branching activity, in that
// priority.
type orderer struct {
	cfg       settings.Settings
	m         *model.Model
	branching *Branching
	rng       *rand.Rand
}

func newOrderer(cfg settings.Settings, m *model.Model, b *Branching) *orderer {
	o := &orderer{cfg: cfg, m: m, branching: b}
	if cfg.Seed > 0 {
		o.rng = rand.New(rand.NewSource(int64(cfg.Seed)))
	}
	return o
}

// Order rearranges c in place.
func (o *orderer) Order(c logic.Cube) {
	if o.rng != nil {
		o.rng.Shuffle(len(c), func(i, j int) { c[i], c[j] = c[j], c[i] })
		return
	}
	if o.cfg.Innards {
		sort.SliceStable(c, func(i, j int) bool {
			return o.m.InnardLevel(c[i]) > o.m.InnardLevel(c[j])
		})
		return
	}
	if o.cfg.Branching == 0 {
		return
	}
	sort.SliceStable(c, func(i, j int) bool {
		return o.branching.PriorityOf(c[i]) > o.branching.PriorityOf(c[j])
	})
}

// Rotate reorders c so the literals shared with the template come
// first, in template order; used by the refer-skipping heuristic.
func Rotate(c logic.Cube, template logic.Cube) {
	pos := make(map[int]int, len(template))
	for i, l := range template {
		pos[l] = i + 1
	}
	sort.SliceStable(c, func(i, j int) bool {
		pi, pj := pos[c[i]], pos[c[j]]
		if (pi > 0) != (pj > 0) {
			return pi > 0
		}
		return pi < pj
	})
}
