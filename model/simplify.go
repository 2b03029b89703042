package model

import (
	"sort"

	"github.com/carbide-mc/carbide/logic"
)

// simplifyClauses produces the reduced CNF used by the main solvers:
// tautology and duplicate removal, unit propagation to fixpoint, and
// forward subsumption. Frozen variables keep their unit clauses in the
// output so solver-visible semantics are unchanged; eliminated
// non-frozen variables vanish entirely.
func simplifyClauses(clauses []logic.Clause, frozen map[int]struct{}) []logic.Clause {
	assign := make(map[int]bool) // var -> value

	work := make([]logic.Clause, 0, len(clauses))
	for _, c := range clauses {
		if cls, keep := normalizeClause(c); keep {
			work = append(work, cls)
		}
	}

	// unit propagation to fixpoint
	for {
		progress := false
		next := work[:0]
		for _, c := range work {
			cls, keep, conflict := applyAssignment(c, assign)
			if conflict {
				return []logic.Clause{{}}
			}
			if !keep {
				progress = true
				continue
			}
			if len(cls) == 1 {
				l := cls[0]
				if val, ok := assign[logic.Abs(l)]; ok {
					if val != (l > 0) {
						return []logic.Clause{{}}
					}
				} else {
					assign[logic.Abs(l)] = l > 0
				}
				progress = true
				continue
			}
			next = append(next, cls)
		}
		work = next
		if !progress {
			break
		}
	}

	work = subsume(work)

	// frozen units survive in the output
	units := make([]int, 0, len(assign))
	for v, val := range assign {
		if _, ok := frozen[v]; !ok {
			continue
		}
		if val {
			units = append(units, v)
		} else {
			units = append(units, -v)
		}
	}
	sort.Ints(units)

	out := make([]logic.Clause, 0, len(units)+len(work))
	for _, u := range units {
		out = append(out, logic.Clause{u})
	}
	out = append(out, work...)
	return out
}

// normalizeClause drops duplicate literals and reports tautologies.
func normalizeClause(c logic.Clause) (logic.Clause, bool) {
	seen := make(map[int]struct{}, len(c))
	out := make(logic.Clause, 0, len(c))
	for _, l := range c {
		if _, ok := seen[-l]; ok {
			return nil, false // tautology
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out, true
}

// applyAssignment evaluates c under the current partial assignment.
func applyAssignment(c logic.Clause, assign map[int]bool) (out logic.Clause, keep, conflict bool) {
	out = make(logic.Clause, 0, len(c))
	for _, l := range c {
		val, ok := assign[logic.Abs(l)]
		if !ok {
			out = append(out, l)
			continue
		}
		if val == (l > 0) {
			return nil, false, false // satisfied
		}
		// falsified literal dropped
	}
	if len(out) == 0 {
		return nil, false, true
	}
	return out, true, false
}

// subsume removes clauses that contain another clause.
func subsume(clauses []logic.Clause) []logic.Clause {
	sorted := make([]logic.Clause, len(clauses))
	for i, c := range clauses {
		s := logic.Clone(c)
		sort.Ints(s)
		sorted[i] = s
	}
	order := make([]int, len(clauses))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return len(sorted[order[i]]) < len(sorted[order[j]]) })

	// occurrence lists over every literal of the kept clauses limit the
	// candidate checks to clauses sharing a literal
	occ := make(map[int][]int)
	dead := make([]bool, len(clauses))
	var kept []int
	for _, idx := range order {
		c := sorted[idx]
		sub := false
		for _, l := range c {
			for _, k := range occ[l] {
				if sortedImplies(sorted[k], c) {
					sub = true
					break
				}
			}
			if sub {
				break
			}
		}
		if sub {
			dead[idx] = true
			continue
		}
		kept = append(kept, idx)
		for _, l := range c {
			occ[l] = append(occ[l], idx)
		}
	}

	out := make([]logic.Clause, 0, len(kept))
	for i, c := range clauses {
		if !dead[i] {
			out = append(out, c)
		}
	}
	return out
}

// sortedImplies reports a ⊆ b for int-sorted clauses.
func sortedImplies(a, b logic.Clause) bool {
	if len(a) > len(b) {
		return false
	}
	j := 0
	for _, la := range a {
		for j < len(b) && b[j] < la {
			j++
		}
		if j == len(b) || b[j] != la {
			return false
		}
		j++
	}
	return true
}
