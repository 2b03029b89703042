// Package logic provides the signed-literal primitives shared by the
// circuit, model and checker packages.
//
// A literal is a non-zero signed int: the magnitude names a variable,
// the sign marks negation. A Cube is a conjunction of literals, a
// Clause a disjunction; both are plain []int so they can be handed to
// SAT back-ends without conversion.
package logic

import "sort"

// Cube is a conjunction of literals.
type Cube = []int

// Clause is a disjunction of literals.
type Clause = []int

// Cmp orders literals by magnitude, positive before negative on equal
// magnitude. This is the canonical literal order for stored cubes.
func Cmp(a, b int) bool {
	if abs(a) != abs(b) {
		return abs(a) < abs(b)
	}
	return a > b
}

// SortCube brings a cube into canonical order in place.
func SortCube(c Cube) {
	sort.Slice(c, func(i, j int) bool { return Cmp(c[i], c[j]) })
}

// SortVars orders a cube by magnitude only, keeping the original order
// of complementary pairs stable.
func SortVars(c Cube) {
	sort.SliceStable(c, func(i, j int) bool { return abs(c[i]) < abs(c[j]) })
}

// CubeLess is the frame storage order: shorter cubes first, ties
// broken lexicographically under Cmp.
func CubeLess(c1, c2 Cube) bool {
	if len(c1) != len(c2) {
		return len(c1) < len(c2)
	}
	for i := range c1 {
		v1, v2 := c1[i], c2[i]
		if abs(v1) != abs(v2) {
			return abs(v1) < abs(v2)
		}
		if v1 != v2 {
			return v1 > v2
		}
	}
	return false
}

// CubeEqual reports whether two cubes hold the same literals in the
// same order.
func CubeEqual(c1, c2 Cube) bool {
	if len(c1) != len(c2) {
		return false
	}
	for i := range c1 {
		if c1[i] != c2[i] {
			return false
		}
	}
	return true
}

// Implies reports whether cube a subsumes cube b, i.e. every literal
// of a occurs in b. Both cubes must be in canonical order.
func Implies(a, b Cube) bool {
	if len(a) > len(b) {
		return false
	}
	j := 0
	for _, la := range a {
		for j < len(b) && abs(b[j]) < abs(la) {
			j++
		}
		if j == len(b) || b[j] != la {
			return false
		}
		j++
	}
	return true
}

// Negate returns the clause ¬c for a cube c (or the cube ¬c for a
// clause c).
func Negate(c Cube) Clause {
	n := make(Clause, len(c))
	for i, l := range c {
		n[i] = -l
	}
	return n
}

// Clone returns a copy of c.
func Clone(c Cube) Cube {
	n := make(Cube, len(c))
	copy(n, c)
	return n
}

// ContainsVar reports whether the variable of lit occurs in c.
func ContainsVar(c Cube, lit int) bool {
	for _, l := range c {
		if abs(l) == abs(lit) {
			return true
		}
	}
	return false
}

// Contains reports whether the exact literal occurs in c.
func Contains(c Cube, lit int) bool {
	for _, l := range c {
		if l == lit {
			return true
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Abs exports the literal magnitude.
func Abs(x int) int { return abs(x) }
