package model

import (
	"testing"

	"github.com/carbide-mc/carbide/logic"
)

func frozen(vars ...int) map[int]struct{} {
	m := make(map[int]struct{}, len(vars))
	for _, v := range vars {
		m[v] = struct{}{}
	}
	return m
}

func TestSimplifyPropagatesUnits(t *testing.T) {
	clauses := []logic.Clause{{5}, {-5, 2, 3}, {-2}}
	out := simplifyClauses(clauses, frozen(2, 3, 5))

	want := []logic.Clause{{-2}, {3}, {5}}
	if len(out) != len(want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	for i := range want {
		if !logic.CubeEqual(out[i], want[i]) {
			t.Fatalf("got %v, want %v", out, want)
		}
	}
}

func TestSimplifyDropsNonFrozenUnits(t *testing.T) {
	out := simplifyClauses([]logic.Clause{{4}, {-4, 1, 2}}, frozen(1, 2))
	if len(out) != 0 {
		t.Fatalf("expected empty simplified CNF, got %v", out)
	}
}

func TestSimplifyRemovesTautologiesAndDuplicates(t *testing.T) {
	out := simplifyClauses([]logic.Clause{{1, -1, 2}, {3, 3, 4}}, frozen(1, 2, 3, 4))
	if len(out) != 1 || !logic.CubeEqual(out[0], logic.Clause{3, 4}) {
		t.Fatalf("got %v", out)
	}
}

func TestSimplifySubsumption(t *testing.T) {
	out := simplifyClauses([]logic.Clause{{1, 2, 3}, {1, 3}, {2, 3, 4}}, frozen(1, 2, 3, 4))
	if len(out) != 2 {
		t.Fatalf("expected subsumed clause removed, got %v", out)
	}
}

func TestSimplifyConflictYieldsEmptyClause(t *testing.T) {
	out := simplifyClauses([]logic.Clause{{1}, {-1}}, frozen(1))
	if len(out) != 1 || len(out[0]) != 0 {
		t.Fatalf("expected the empty clause, got %v", out)
	}
}
