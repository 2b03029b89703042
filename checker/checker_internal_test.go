package checker

import (
	"strings"
	"testing"

	"github.com/carbide-mc/carbide/aiger"
	"github.com/carbide-mc/carbide/circuit"
	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/settings"
)

func testModel(t *testing.T) *model.Model {
	t.Helper()
	src := "aag 2 1 1 0 0 1\n2\n4 2\n4\n"
	f, err := aiger.Read(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	g, err := circuit.New(f)
	if err != nil {
		t.Fatal(err)
	}
	cfg := settings.Defaults()
	cfg.Equivalence = settings.EqOff
	m, err := model.New(cfg, logging.New(0, nil), g)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestOverSequenceInsertSubsumption(t *testing.T) {
	m := testModel(t)
	o := NewOverSequence(m, logging.New(0, nil))

	if !o.Insert(logic.Cube{2, 3}, 0) {
		t.Fatal("fresh cube rejected")
	}
	if o.Insert(logic.Cube{2, 3, 4}, 0) {
		t.Fatal("weaker cube accepted")
	}
	if !o.Insert(logic.Cube{2}, 0) {
		t.Fatal("stronger cube rejected")
	}
	frame := o.Frame(0)
	if len(frame) != 1 || !logic.CubeEqual(frame[0], logic.Cube{2}) {
		t.Fatalf("expected the stronger cube to evict, got %v", frame)
	}
}

func TestOverSequenceBlockedPaths(t *testing.T) {
	m := testModel(t)
	o := NewOverSequence(m, logging.New(0, nil))
	o.Insert(logic.Cube{-2}, 0)

	state := logic.Cube{-2}
	if !o.IsBlocked(state, 0) {
		t.Fatal("linear path missed the blocker")
	}
	if !o.IsBlockedSAT(state, 0) {
		t.Fatal("SAT path missed the blocker")
	}
	if !o.IsBlockedLazy(state, 0) {
		t.Fatal("lazy path missed the blocker")
	}
	other := logic.Cube{2}
	if o.IsBlocked(other, 0) || o.IsBlockedSAT(other, 0) {
		t.Fatal("unblocked state reported blocked")
	}

	blockers := o.Blockers(state, 0)
	if len(blockers) != 1 {
		t.Fatalf("expected one blocker, got %d", len(blockers))
	}
}

func TestOverSequenceFrameEqual(t *testing.T) {
	m := testModel(t)
	o := NewOverSequence(m, logging.New(0, nil))
	o.Insert(logic.Cube{2}, 0)
	o.Insert(logic.Cube{2}, 1)
	if !o.FrameEqual(0, 1) {
		t.Fatal("identical frames not equal")
	}
	o.Insert(logic.Cube{-2}, 1)
	if o.FrameEqual(0, 1) {
		t.Fatal("diverged frames still equal")
	}
}

func TestBranchingModes(t *testing.T) {
	uc := logic.Cube{2, 3}

	sum := NewBranching(2)
	sum.Update(uc)
	sum.Update(uc)
	if sum.PriorityOf(2) != 2 {
		t.Fatalf("sum mode: got %v", sum.PriorityOf(2))
	}

	vsids := NewBranching(1)
	vsids.Update(uc)
	vsids.Update(logic.Cube{2})
	if !(vsids.PriorityOf(2) > vsids.PriorityOf(3)) {
		t.Fatal("vsids: repeated literal should outrank decayed one")
	}

	acids := NewBranching(3)
	acids.Update(uc)
	if acids.PriorityOf(2) != 1 {
		t.Fatalf("acids: got %v", acids.PriorityOf(2))
	}

	static := NewBranching(0)
	static.Update(uc)
	if static.PriorityOf(2) != 0 {
		t.Fatal("static mode must not accumulate")
	}
}

func TestLubySequence(t *testing.T) {
	var l luby
	want := []int{1, 1, 2, 1, 1, 2, 4, 1, 1, 2}
	for i, w := range want {
		if got := l.next(); got != w {
			t.Fatalf("luby[%d] = %d, want %d", i, got, w)
		}
	}
}

func TestRestartSchedule(t *testing.T) {
	cfg := settings.Defaults()
	cfg.RestartThreshold = 2
	cfg.RestartGrowthRate = 2
	r := NewRestart(cfg)

	r.Bump()
	r.Bump()
	if r.Check() {
		t.Fatal("threshold not yet exceeded")
	}
	r.Bump()
	if !r.Check() {
		t.Fatal("threshold exceeded but not tripped")
	}
	r.Next()
	if r.Check() {
		t.Fatal("counter must reset after Next")
	}
}

func TestObligationQueueOrder(t *testing.T) {
	var q obligationQueue
	s := &State{}
	q.Add(s, 2, 1)
	q.Add(s, 1, 5)
	q.Add(s, 1, 2)
	q.Add(s, 1, 2)

	got := []Obligation{q.Remove(), q.Remove(), q.Remove(), q.Remove()}
	if got[0].Level != 1 || got[0].Depth != 2 {
		t.Fatalf("wrong head: %+v", got[0])
	}
	if got[1].Level != 1 || got[1].Depth != 2 || got[1].seq < got[0].seq {
		t.Fatal("equal keys must pop in insertion order")
	}
	if got[2].Depth != 5 || got[3].Level != 2 {
		t.Fatalf("wrong tail order: %+v", got)
	}
}

func TestRotatePutsTemplateFirst(t *testing.T) {
	c := logic.Cube{-5, 1, 3, -2}
	Rotate(c, logic.Cube{3, -2})
	if c[0] != 3 || c[1] != -2 {
		t.Fatalf("template literals not leading: %v", c)
	}
}

func TestStateBitStrings(t *testing.T) {
	m := testModel(t) // 1 input, 1 latch
	s := &State{Inputs: logic.Cube{1}, Latches: logic.Cube{-2}}
	if got := s.InputString(m); got != "1" {
		t.Fatalf("inputs: %q", got)
	}
	if got := s.LatchString(m); got != "0" {
		t.Fatalf("latches: %q", got)
	}
	empty := &State{}
	if got := empty.LatchString(m); got != "x" {
		t.Fatalf("missing latch: %q", got)
	}
}
