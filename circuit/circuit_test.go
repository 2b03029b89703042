package circuit_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbide-mc/carbide/aiger"
	"github.com/carbide-mc/carbide/circuit"
)

func mustGraph(t *testing.T, src string) *circuit.Graph {
	t.Helper()
	f, err := aiger.Read(strings.NewReader(src))
	require.NoError(t, err)
	g, err := circuit.New(f)
	require.NoError(t, err)
	return g
}

func TestGraphClassification(t *testing.T) {
	// one input, one latch (next = input), bad = latch
	g := mustGraph(t, "aag 2 1 1 0 0 1\n2\n4 2\n4\n")

	assert.Equal(t, 3, g.TrueID)
	assert.True(t, g.IsInput(1))
	assert.True(t, g.IsLatch(2))
	assert.True(t, g.IsLatch(-2))
	assert.False(t, g.IsAnd(2))
	assert.Equal(t, 1, g.LatchNext[2])
	assert.Equal(t, -g.TrueID, g.LatchReset[2])
	assert.Equal(t, []int{2}, g.Bad)
	assert.Equal(t, []int{1}, g.ModelInputs)
	assert.Equal(t, []int{2}, g.ModelLatches)
}

func TestRejectsJusticeAndMultipleBad(t *testing.T) {
	f, err := aiger.Read(strings.NewReader("aag 1 1 0 0 0 0 0 1\n2\n1\n2\n"))
	require.NoError(t, err)
	_, err = circuit.New(f)
	assert.ErrorIs(t, err, circuit.ErrUnsupported)

	f, err = aiger.Read(strings.NewReader("aag 1 1 0 2 0\n2\n2\n3\n"))
	require.NoError(t, err)
	_, err = circuit.New(f)
	assert.ErrorIs(t, err, circuit.ErrUnsupported)

	f, err = aiger.Read(strings.NewReader("aag 1 1 0 0 0\n2\n"))
	require.NoError(t, err)
	_, err = circuit.New(f)
	assert.ErrorIs(t, err, circuit.ErrUnsupported)
}

func TestXORIdiom(t *testing.T) {
	// bad = x xor y, built from the two-and idiom
	src := "aag 5 2 0 0 3 1\n2\n4\n10\n6 4 2\n8 5 3\n10 9 7\n"
	g := mustGraph(t, src)

	gate, ok := g.Gates[5]
	require.True(t, ok)
	assert.Equal(t, circuit.XOR, gate.Type)
	assert.Equal(t, []int{1, 2}, gate.Fanins)
	// the absorbed ands never enter the cone
	assert.Equal(t, []int{5}, g.ModelGates)
}

func TestITEIdiom(t *testing.T) {
	// bad = ite over three inputs: 12 = !(2&5) & !(7&3) rearranged
	src := "aag 6 3 0 0 3 1\n2\n4\n6\n12\n8 5 2\n10 7 3\n12 11 9\n"
	g := mustGraph(t, src)

	gate, ok := g.Gates[6]
	require.True(t, ok)
	assert.Equal(t, circuit.ITE, gate.Type)
	require.Len(t, gate.Fanins, 3)
}

func TestCOIRefineDropsUnreachable(t *testing.T) {
	// two latches; only the first is in the property cone
	src := "aag 3 1 2 0 0 1\n2\n4 4\n6 2\n4\n"
	g := mustGraph(t, src)
	assert.Equal(t, []int{2}, g.ModelLatches)
	assert.Empty(t, g.ModelInputs, "input only feeds the dropped latch")
}

func TestPropertyCOIInputs(t *testing.T) {
	// bad = input1 & latch; input2 feeds only the latch next
	src := "aag 5 2 1 0 1 1\n2\n4\n6 4\n8\n8 6 2\n"
	g := mustGraph(t, src)
	assert.Equal(t, []int{1}, g.PropertyCOIInputs)
	assert.Equal(t, []int{1, 2}, g.ModelInputs)
}

func TestTernaryTables(t *testing.T) {
	assert.Equal(t, circuit.TFalse, circuit.TUndef.And(circuit.TFalse))
	assert.Equal(t, circuit.TUndef, circuit.TUndef.And(circuit.TTrue))
	assert.Equal(t, circuit.TUndef, circuit.TUndef.And(circuit.TUndef))
	assert.Equal(t, circuit.TUndef, circuit.TUndef.Not())
	assert.Equal(t, circuit.TFalse, circuit.TTrue.Not())
	assert.Equal(t, circuit.TUndef, circuit.TTrue.Xor(circuit.TUndef))
	assert.Equal(t, circuit.TTrue, circuit.TTrue.Xor(circuit.TFalse))

	assert.Equal(t, circuit.TTrue, circuit.TIte(circuit.TTrue, circuit.TTrue, circuit.TFalse))
	assert.Equal(t, circuit.TFalse, circuit.TIte(circuit.TFalse, circuit.TTrue, circuit.TFalse))
	assert.Equal(t, circuit.TUndef, circuit.TIte(circuit.TUndef, circuit.TTrue, circuit.TFalse))
	assert.Equal(t, circuit.TTrue, circuit.TIte(circuit.TUndef, circuit.TTrue, circuit.TTrue))
}

func TestTernarySimulationDetectsCycle(t *testing.T) {
	// toggle latch: next = !self, reset 0
	g := mustGraph(t, "aag 1 0 1 1 0\n2 3\n2\n")
	sim := circuit.NewSimulator(g)
	sim.Simulate(250)

	require.True(t, sim.CycleReached())
	states := sim.States()
	require.Len(t, states, 2)
	assert.Equal(t, []int{-1, 2}, states[0])
	assert.Equal(t, []int{1, 2}, states[1])
}

func TestTernarySimulationAllUndef(t *testing.T) {
	// latch with self-loop and no reset: stays X, simulation abandons
	g := mustGraph(t, "aag 1 0 1 1 0\n2 2 2\n2\n")
	sim := circuit.NewSimulator(g)
	sim.Simulate(250)

	assert.False(t, sim.CycleReached())
	require.Len(t, sim.States(), 1)
	assert.Equal(t, []int{g.TrueID}, sim.States()[0])
}

func TestRandomSimulationProducesFullValuations(t *testing.T) {
	// latch copies the input
	g := mustGraph(t, "aag 2 1 1 0 0 1\n2\n4 2\n4\n")
	sim := circuit.NewSimulator(g)
	sim.SimulateRandom(64)

	values := sim.Values()
	require.Len(t, values, 64)
	for _, vmap := range values {
		assert.NotEqual(t, circuit.TUndef, vmap[1])
		assert.NotEqual(t, circuit.TUndef, vmap[2])
		assert.Equal(t, circuit.TTrue, vmap[g.TrueID])
	}
	// the latch at step k equals the input at step k-1
	for k := 1; k < 64; k++ {
		assert.Equal(t, values[k-1][1], values[k][2])
	}
}
