package checker

import (
	"container/heap"
	"strings"

	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/model"
)

// State is one concrete (possibly lifted) state discovered by an
// engine. States are shared immutable records: the CAR engines chain
// them through Pre, IC3 through Next; either link is set exactly once
// when the state is created, so traces are lists, never cycles.
type State struct {
	Pre  *State
	Next *State

	Inputs  logic.Cube
	Latches logic.Cube
	// PrimeInputs holds the successor-step input literals over the
	// one-step-renamed variables; only IC3 populates it.
	PrimeInputs logic.Cube

	Depth int
}

// LatchString renders the latch cube as a dense bit string; latches
// dropped by lifting or reduction print as x.
func (s *State) LatchString(m *model.Model) string {
	var b strings.Builder
	numInputs, numLatches := m.NumInputs(), m.NumLatches()
	b.Grow(numLatches)
	j := 0
	for i := 0; i < numLatches; i++ {
		v := numInputs + i + 1
		for j < len(s.Latches) && logic.Abs(s.Latches[j]) < v {
			j++
		}
		if j < len(s.Latches) && logic.Abs(s.Latches[j]) == v {
			if s.Latches[j] > 0 {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
			j++
		} else {
			b.WriteByte('x')
		}
	}
	return b.String()
}

// InputString renders the input cube as a dense bit string.
func (s *State) InputString(m *model.Model) string {
	return inputBits(m, s.Inputs)
}

func inputBits(m *model.Model, inputs logic.Cube) string {
	var b strings.Builder
	numInputs := m.NumInputs()
	b.Grow(numInputs)
	j := 0
	for i := 1; i <= numInputs; i++ {
		for j < len(inputs) && logic.Abs(inputs[j]) < i {
			j++
		}
		if j < len(inputs) && logic.Abs(inputs[j]) == i {
			if inputs[j] > 0 {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
			j++
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// UnderSequence indexes discovered states by their depth from the
// initial state.
type UnderSequence struct {
	seq [][]*State
}

// Push files the state at its depth.
func (u *UnderSequence) Push(s *State) {
	for len(u.seq) <= s.Depth {
		u.seq = append(u.seq, nil)
	}
	u.seq[s.Depth] = append(u.seq[s.Depth], s)
}

// Len is the number of populated depths.
func (u *UnderSequence) Len() int { return len(u.seq) }

// At returns the states of one depth.
func (u *UnderSequence) At(i int) []*State { return u.seq[i] }

// Task is one CAR work item: a state to discharge against a frame.
type Task struct {
	State      *State
	FrameLevel int
	IsLocated  bool
}

// taskStack is the CAR working stack.
type taskStack struct {
	tasks []Task
}

func (ts *taskStack) push(t Task) { ts.tasks = append(ts.tasks, t) }
func (ts *taskStack) empty() bool { return len(ts.tasks) == 0 }
func (ts *taskStack) top() *Task  { return &ts.tasks[len(ts.tasks)-1] }
func (ts *taskStack) pop()        { ts.tasks = ts.tasks[:len(ts.tasks)-1] }
func (ts *taskStack) clear()      { ts.tasks = ts.tasks[:0] }

// Obligation is an IC3 proof obligation: block state at frame level.
type Obligation struct {
	State *State
	Level int
	Depth int
	seq   int
}

// obligationQueue is a min-heap on (level, depth, insertion order).
type obligationQueue struct {
	items []Obligation
	next  int
}

func (q *obligationQueue) Len() int { return len(q.items) }

func (q *obligationQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	return a.seq < b.seq
}

func (q *obligationQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *obligationQueue) Push(x any) { q.items = append(q.items, x.(Obligation)) }

func (q *obligationQueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	q.items = old[:n-1]
	return it
}

// Add enqueues an obligation with a fresh tiebreak counter.
func (q *obligationQueue) Add(state *State, level, depth int) {
	q.next++
	heap.Push(q, Obligation{State: state, Level: level, Depth: depth, seq: q.next})
}

// Peek returns the minimum obligation without removing it.
func (q *obligationQueue) Peek() Obligation { return q.items[0] }

// Remove pops the minimum obligation.
func (q *obligationQueue) Remove() Obligation { return heap.Pop(q).(Obligation) }
