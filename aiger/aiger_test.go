package aiger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbide-mc/carbide/aiger"
)

const toggleAAG = `aag 1 0 1 1 0
2 3
2
`

func TestReadASCIIToggle(t *testing.T) {
	f, err := aiger.Read(strings.NewReader(toggleAAG))
	require.NoError(t, err)
	assert.Equal(t, uint(1), f.MaxVar)
	require.Len(t, f.Latches, 1)
	assert.Equal(t, aiger.Latch{Lit: 2, Next: 3, Reset: 0}, f.Latches[0])
	assert.Equal(t, []uint{2}, f.Outputs)
	assert.True(t, f.IsReencoded())
}

func TestReadASCIIWithBadAndConstraint(t *testing.T) {
	src := `aag 3 1 1 0 1 1 1
2
4 6 0
6
2
6 4 2
`
	f, err := aiger.Read(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, f.Inputs)
	assert.Equal(t, []uint{6}, f.Bad)
	assert.Equal(t, []uint{2}, f.Constraints)
	require.Len(t, f.Ands, 1)
	assert.Equal(t, aiger.And{LHS: 6, RHS0: 4, RHS1: 2}, f.Ands[0])
}

func TestReadBinary(t *testing.T) {
	// aig 3 1 1 0 1 1: one input (var 1), one latch (var 2, next 6,
	// reset 0), one bad (6), one and 6 = 4 & 2 encoded as deltas 2, 2.
	var buf bytes.Buffer
	buf.WriteString("aig 3 1 1 0 1 1\n")
	buf.WriteString("6 0\n")
	buf.WriteString("6\n")
	buf.Write([]byte{2, 2})

	f, err := aiger.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, f.Inputs)
	require.Len(t, f.Latches, 1)
	assert.Equal(t, aiger.Latch{Lit: 4, Next: 6, Reset: 0}, f.Latches[0])
	assert.Equal(t, []uint{6}, f.Bad)
	require.Len(t, f.Ands, 1)
	assert.Equal(t, aiger.And{LHS: 6, RHS0: 4, RHS1: 2}, f.Ands[0])
	assert.True(t, f.IsReencoded())
}

func TestReadBinaryMultiByteVarint(t *testing.T) {
	// 200 inputs force a delta above 127 for the single and-gate.
	var hdr bytes.Buffer
	hdr.WriteString("aig 201 200 0 1 1\n")
	hdr.WriteString("402\n")
	// and 402 = 2 & 2: delta0 = 400 = 0x90,0x03; delta1 = 0.
	hdr.Write([]byte{0x90, 0x03, 0x00})

	f, err := aiger.Read(&hdr)
	require.NoError(t, err)
	require.Len(t, f.Ands, 1)
	assert.Equal(t, aiger.And{LHS: 402, RHS0: 2, RHS1: 2}, f.Ands[0])
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"bad magic":       "abc 1 0 0 0 0\n",
		"short header":    "aag 1 0\n",
		"odd and lhs":     "aag 1 0 0 0 1\n3 0 0\n",
		"maxvar too low":  "aag 0 1 0 0 0\n2\n",
		"bad latch reset": "aag 2 1 1 0 0\n2\n4 2 6\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := aiger.Read(strings.NewReader(src))
			require.Error(t, err)
			assert.ErrorIs(t, err, aiger.ErrParse)
		})
	}
}

func TestJusticeSection(t *testing.T) {
	src := `aag 1 1 0 0 0 0 0 1
2
1
2
`
	f, err := aiger.Read(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, f.Justice, 1)
	assert.Equal(t, []uint{2}, f.Justice[0])
}

func TestWriteRoundTrip(t *testing.T) {
	f, err := aiger.Read(strings.NewReader(toggleAAG))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.WriteASCII(&buf))

	g, err := aiger.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, f.MaxVar, g.MaxVar)
	assert.Equal(t, f.Latches, g.Latches)
	assert.Equal(t, f.Outputs, g.Outputs)
}

func TestReencode(t *testing.T) {
	// scrambled variable numbering: input is var 3, gate var 1 feeds
	// the output, latch is var 2.
	src := `aag 3 1 1 1 1
6
4 2 1
2
2 6 5
`
	f, err := aiger.Read(strings.NewReader(src))
	require.NoError(t, err)
	require.False(t, f.IsReencoded())

	g := f.Reencode()
	assert.True(t, g.IsReencoded())
	assert.Equal(t, f.MaxVar, g.MaxVar)
	require.Len(t, g.Ands, 1)
	// input becomes var 1, latch var 2, gate var 3
	assert.Equal(t, []uint{2}, g.Inputs)
	assert.Equal(t, uint(4), g.Latches[0].Lit)
	assert.Equal(t, uint(6), g.Ands[0].LHS)
}

func TestAddAnd(t *testing.T) {
	f, err := aiger.Read(strings.NewReader(toggleAAG))
	require.NoError(t, err)
	lhs := f.AddAnd(2, 3)
	assert.Equal(t, uint(4), lhs)
	assert.Equal(t, uint(2), f.MaxVar)
}
