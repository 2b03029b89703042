// Package model compiles a circuit graph into the transition model the
// engines consume: equivalence-reduced signals, initial state, prime
// variable maps and CNF.
package model

import "github.com/carbide-mc/carbide/logic"

// Equivalences is a union-find over signed signals. Keys are positive
// variable ids; the stored value is the signed representative, so the
// relation is closed under negation. After merging, the representative
// of a class is always its smallest magnitude.
type Equivalences struct {
	parent map[int]int
}

// NewEquivalences returns an empty relation.
func NewEquivalences() *Equivalences {
	return &Equivalences{parent: make(map[int]int)}
}

// Find resolves a to its signed representative, compressing the path
// while preserving parity.
func (e *Equivalences) Find(a int) int {
	sign := 1
	if a < 0 {
		sign = -1
	}
	root, rsign := e.findRoot(logic.Abs(a))
	return root * rsign * sign
}

func (e *Equivalences) findRoot(key int) (int, int) {
	next, ok := e.parent[key]
	if !ok {
		return key, 1
	}
	sign := 1
	if next < 0 {
		sign = -1
	}
	root, rsign := e.findRoot(logic.Abs(next))
	e.parent[key] = root * rsign * sign
	return root, rsign * sign
}

// Add merges the classes of a and b so that the smaller-magnitude
// representative wins.
func (e *Equivalences) Add(a, b int) {
	rootA := e.Find(a)
	rootB := e.Find(b)
	if rootA == rootB {
		return
	}
	keyA, keyB := logic.Abs(rootA), logic.Abs(rootB)
	if keyA < keyB {
		if rootB > 0 {
			e.parent[keyB] = rootA
		} else {
			e.parent[keyB] = -rootA
		}
	} else {
		if rootA > 0 {
			e.parent[keyA] = rootB
		} else {
			e.parent[keyA] = -rootB
		}
	}
}

// IsEquivalent reports whether a and b resolve to the same signed
// representative.
func (e *Equivalences) IsEquivalent(a, b int) bool { return e.Find(a) == e.Find(b) }

// Has reports whether |a| was merged into another class.
func (e *Equivalences) Has(a int) bool {
	_, ok := e.parent[logic.Abs(a)]
	return ok
}

// Size is the number of merged keys.
func (e *Equivalences) Size() int { return len(e.parent) }
