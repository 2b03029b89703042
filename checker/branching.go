package checker

import "github.com/carbide-mc/carbide/logic"

// Branching keeps per-variable activity counters fed by unsat cores
// and used to order assumption literals.
//
// Modes: 0 static (no-op), 1 VSIDS (global 0.99 decay then bump),
// 2 summed with periodic halving, 3 ACIDS (average with the conflict
// index).
type Branching struct {
	mode          int
	conflictIndex int
	mini          int
	counts        []float64
}

// NewBranching creates counters for the given mode.
func NewBranching(mode int) *Branching {
	return &Branching{mode: mode, conflictIndex: 1, mini: 1 << 20}
}

// Update records one unsat core. The cube must be in canonical order.
func (b *Branching) Update(uc logic.Cube) {
	if len(uc) == 0 {
		return
	}
	b.conflictIndex++
	switch b.mode {
	case 1:
		b.Decay()
	case 2:
		if b.conflictIndex == 256 {
			for i := b.mini; i < len(b.counts); i++ {
				b.counts[i] *= 0.5
			}
			b.conflictIndex = 0
		}
	}
	b.grow(uc)
	for _, l := range uc {
		v := logic.Abs(l)
		switch b.mode {
		case 1, 2:
			b.counts[v]++
		case 3:
			b.counts[v] = (b.counts[v] + float64(b.conflictIndex)) / 2
		}
	}
}

// Decay scales every tracked counter by 0.99.
func (b *Branching) Decay() {
	for i := b.mini; i < len(b.counts); i++ {
		b.counts[i] *= 0.99
	}
}

// DecayGap damps the counters of one cube proportionally to how far
// it was propagated.
func (b *Branching) DecayGap(uc logic.Cube, gap int) {
	if len(uc) == 0 {
		return
	}
	b.conflictIndex++
	b.grow(uc)
	for _, l := range uc {
		b.counts[logic.Abs(l)] *= 1 - 0.01*float64(gap-1)
	}
}

// PriorityOf reads a literal's activity.
func (b *Branching) PriorityOf(lit int) float64 {
	v := logic.Abs(lit)
	if v >= len(b.counts) {
		return 0
	}
	return b.counts[v]
}

func (b *Branching) grow(uc logic.Cube) {
	top := logic.Abs(uc[len(uc)-1])
	if top >= len(b.counts) {
		b.counts = append(b.counts, make([]float64, top+1-len(b.counts))...)
	}
	if lo := logic.Abs(uc[0]); lo < b.mini {
		b.mini = lo
	}
}
