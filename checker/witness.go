package checker

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carbide-mc/carbide/aiger"
	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/settings"
)

// trace is a finished counterexample: the initial latch assignment and
// one input row per step.
type trace struct {
	latches   logic.Cube
	inputRows []logic.Cube
}

func witnessBase(cfg settings.Settings) string {
	base := filepath.Base(cfg.AigFilePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// writeCounterExample emits the aiger-style counterexample file:
// result line, property line, latch bits, one input bit row per step,
// and the terminating dot. Missing assignments print as 0.
func writeCounterExample(cfg settings.Settings, m *model.Model, t trace) error {
	path := filepath.Join(cfg.WitnessDir, witnessBase(cfg)+".cex")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("checker: %w", err)
	}
	w := bufio.NewWriter(f)

	fmt.Fprintln(w, "1")
	fmt.Fprintln(w, "b0")
	fmt.Fprintln(w, latchBits(m, t.latches))
	for _, row := range t.inputRows {
		fmt.Fprintln(w, inputBits(m, row))
	}
	fmt.Fprintln(w, ".")

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("checker: %w", err)
	}
	return f.Close()
}

func latchBits(m *model.Model, latches logic.Cube) string {
	var b strings.Builder
	numInputs, numLatches := m.NumInputs(), m.NumLatches()
	b.Grow(numLatches)
	j := 0
	for i := 0; i < numLatches; i++ {
		v := numInputs + i + 1
		for j < len(latches) && logic.Abs(latches[j]) < v {
			j++
		}
		if j < len(latches) && logic.Abs(latches[j]) == v && latches[j] > 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// unprimeInputs converts a prime-input literal row back to literals
// over the input variables, positionally along the model inputs.
func unprimeInputs(m *model.Model, primed logic.Cube) logic.Cube {
	inputs := m.ModelInputs()
	if len(primed) != len(inputs) {
		return nil
	}
	out := make(logic.Cube, len(inputs))
	for i, v := range inputs {
		if primed[i] > 0 {
			out[i] = v
		} else {
			out[i] = -v
		}
	}
	return out
}

// writeWitnessCircuit emits a copy of the source circuit whose output
// is conjoined with the inductive invariant: the new bad signal is
// ¬(¬bad ∧ (O₀ ∨ … ∨ O_i)), each O_j rebuilt from the frame's cubes
// as and-gates with inversions.
func writeWitnessCircuit(cfg settings.Settings, m *model.Model, frames [][]logic.Cube) error {
	path := filepath.Join(cfg.WitnessDir, witnessBase(cfg)+".w.aag")
	orig := m.Graph.Aig

	if len(frames) == 0 {
		return orig.Save(path)
	}

	w := &aiger.File{MaxVar: orig.MaxVar}
	w.Inputs = append(w.Inputs, orig.Inputs...)
	w.Latches = append(w.Latches, orig.Latches...)
	w.Ands = append(w.Ands, orig.Ands...)
	w.Constraints = append(w.Constraints, orig.Constraints...)

	// andChain folds literals into a single and-gate cone; the empty
	// conjunction is constant true
	andChain := func(lits []uint) uint {
		if len(lits) == 0 {
			return 1
		}
		acc := lits[0]
		for _, l := range lits[1:] {
			acc = w.AddAnd(acc, l)
		}
		return acc
	}

	toAigerLit := func(id int) uint {
		if id > 0 {
			return uint(2 * id)
		}
		return uint(2*-id + 1)
	}

	var invLits []uint
	for _, frame := range frames {
		var frameLits []uint
		for _, cube := range frame {
			cubeLits := make([]uint, len(cube))
			for i, l := range cube {
				cubeLits[i] = toAigerLit(l)
			}
			frameLits = append(frameLits, aiger.Not(andChain(cubeLits)))
		}
		invLits = append(invLits, aiger.Not(andChain(frameLits)))
	}
	inv := aiger.Not(andChain(invLits))

	badLit := toAigerLit(m.Bad())
	pPrime := andChain([]uint{aiger.Not(badLit), inv})

	if len(orig.Bad) == 1 {
		w.Bad = []uint{aiger.Not(pPrime)}
	} else {
		w.Outputs = []uint{aiger.Not(pPrime)}
	}

	return w.Reencode().Save(path)
}
