package aiger

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// WriteASCII emits the circuit in aag form.
func (f *File) WriteASCII(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "aag %d %d %d %d %d", f.MaxVar, len(f.Inputs), len(f.Latches), len(f.Outputs), len(f.Ands))
	if len(f.Bad) > 0 || len(f.Constraints) > 0 || len(f.Justice) > 0 || len(f.Fairness) > 0 {
		fmt.Fprintf(bw, " %d", len(f.Bad))
	}
	if len(f.Constraints) > 0 || len(f.Justice) > 0 || len(f.Fairness) > 0 {
		fmt.Fprintf(bw, " %d", len(f.Constraints))
	}
	if len(f.Justice) > 0 || len(f.Fairness) > 0 {
		fmt.Fprintf(bw, " %d", len(f.Justice))
	}
	if len(f.Fairness) > 0 {
		fmt.Fprintf(bw, " %d", len(f.Fairness))
	}
	fmt.Fprintln(bw)

	for _, in := range f.Inputs {
		fmt.Fprintln(bw, in)
	}
	for _, l := range f.Latches {
		if l.Reset == 0 {
			fmt.Fprintf(bw, "%d %d\n", l.Lit, l.Next)
		} else {
			fmt.Fprintf(bw, "%d %d %d\n", l.Lit, l.Next, l.Reset)
		}
	}
	for _, o := range f.Outputs {
		fmt.Fprintln(bw, o)
	}
	for _, b := range f.Bad {
		fmt.Fprintln(bw, b)
	}
	for _, c := range f.Constraints {
		fmt.Fprintln(bw, c)
	}
	for _, j := range f.Justice {
		fmt.Fprintln(bw, len(j))
	}
	for _, j := range f.Justice {
		for _, l := range j {
			fmt.Fprintln(bw, l)
		}
	}
	for _, fl := range f.Fairness {
		fmt.Fprintln(bw, fl)
	}
	for _, a := range f.Ands {
		fmt.Fprintf(bw, "%d %d %d\n", a.LHS, a.RHS0, a.RHS1)
	}
	if len(f.Comments) > 0 {
		fmt.Fprintln(bw, "c")
		for _, c := range f.Comments {
			fmt.Fprintln(bw, c)
		}
	}
	return bw.Flush()
}

// Save writes the circuit in aag form to path.
func (f *File) Save(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("aiger: %w", err)
	}
	if err := f.WriteASCII(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// AddAnd appends a fresh and-gate over the two literals and returns
// its positive output literal.
func (f *File) AddAnd(rhs0, rhs1 uint) uint {
	f.MaxVar++
	lhs := Lit(f.MaxVar)
	f.Ands = append(f.Ands, And{LHS: lhs, RHS0: rhs0, RHS1: rhs1})
	return lhs
}

// Reencode returns an equivalent circuit in the canonical topological
// encoding: inputs get variables 1..I, latches I+1..I+L, and-gates
// follow in an order where every fanin precedes its fanout. Files that
// are already reencoded are returned unchanged.
func (f *File) Reencode() *File {
	if f.IsReencoded() {
		return f
	}

	gates := make(map[uint]And, len(f.Ands))
	for _, a := range f.Ands {
		gates[Var(a.LHS)] = a
	}

	remap := make(map[uint]uint, f.MaxVar+1)
	remap[0] = 0
	next := uint(1)
	for _, in := range f.Inputs {
		remap[Var(in)] = next
		next++
	}
	for _, l := range f.Latches {
		remap[Var(l.Lit)] = next
		next++
	}

	// recursive DFS over the gate fanin graph
	var order []uint
	visited := make(map[uint]bool, len(gates))
	var visit func(v uint)
	visit = func(v uint) {
		if visited[v] {
			return
		}
		g, ok := gates[v]
		if !ok {
			return
		}
		visited[v] = true
		visit(Var(g.RHS0))
		visit(Var(g.RHS1))
		order = append(order, v)
	}
	for _, l := range f.Latches {
		visit(Var(l.Next))
	}
	for _, o := range f.Outputs {
		visit(Var(o))
	}
	for _, b := range f.Bad {
		visit(Var(b))
	}
	for _, c := range f.Constraints {
		visit(Var(c))
	}
	for _, j := range f.Justice {
		for _, l := range j {
			visit(Var(l))
		}
	}
	for _, fl := range f.Fairness {
		visit(Var(fl))
	}
	for _, a := range f.Ands {
		visit(Var(a.LHS))
	}
	for _, v := range order {
		remap[v] = next
		next++
	}

	ml := func(old uint) uint {
		return Lit(remap[Var(old)]) | old&1
	}

	out := &File{MaxVar: next - 1, Comments: f.Comments}
	for i := range f.Inputs {
		out.Inputs = append(out.Inputs, Lit(uint(i+1)))
	}
	for _, l := range f.Latches {
		nl := Latch{Lit: ml(l.Lit), Next: ml(l.Next)}
		switch l.Reset {
		case 0, 1:
			nl.Reset = l.Reset
		default:
			nl.Reset = nl.Lit
		}
		out.Latches = append(out.Latches, nl)
	}
	for _, o := range f.Outputs {
		out.Outputs = append(out.Outputs, ml(o))
	}
	for _, b := range f.Bad {
		out.Bad = append(out.Bad, ml(b))
	}
	for _, c := range f.Constraints {
		out.Constraints = append(out.Constraints, ml(c))
	}
	for _, j := range f.Justice {
		nj := make([]uint, len(j))
		for i, l := range j {
			nj[i] = ml(l)
		}
		out.Justice = append(out.Justice, nj)
	}
	for _, fl := range f.Fairness {
		out.Fairness = append(out.Fairness, ml(fl))
	}
	for _, v := range order {
		g := gates[v]
		r0, r1 := ml(g.RHS0), ml(g.RHS1)
		if r0 < r1 {
			r0, r1 = r1, r0
		}
		out.Ands = append(out.Ands, And{LHS: Lit(remap[v]), RHS0: r0, RHS1: r1})
	}
	return out
}
