package sat_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/carbide-mc/carbide/aiger"
	"github.com/carbide-mc/carbide/circuit"
	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/sat"
	"github.com/carbide-mc/carbide/settings"
)

// shift latch: the latch copies the input, bad = latch.
const shiftAAG = `aag 2 1 1 0 0 1
2
4 2
4
`

func compileShift() *model.Model {
	f, err := aiger.Read(strings.NewReader(shiftAAG))
	Expect(err).NotTo(HaveOccurred())
	g, err := circuit.New(f)
	Expect(err).NotTo(HaveOccurred())
	cfg := settings.Defaults()
	cfg.Equivalence = settings.EqOff
	m, err := model.New(cfg, logging.New(0, GinkgoWriter), g)
	Expect(err).NotTo(HaveOccurred())
	return m
}

var _ = Describe("Solver facade", func() {
	var m *model.Model
	var s *sat.Solver

	BeforeEach(func() {
		m = compileShift()
		s = sat.New(m, settings.Gini)
	})

	It("should solve plain clauses", func() {
		s.AddClause(logic.Clause{1, 2})
		s.AddClause(logic.Clause{-1})
		ok, err := s.Solve()
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(s.Value(2)).To(BeTrue())

		ok, err = s.SolveCube(logic.Cube{-2})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("should extract assignments over model variables", func() {
		s.AddTrans()
		s.AddInitialClauses()
		ok, err := s.SolveCube(logic.Cube{-2, -1})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		inputs, latches := s.Assignment(false)
		Expect(inputs).To(Equal(logic.Cube{-1}))
		Expect(latches).To(Equal(logic.Cube{-2}))
	})

	It("should read successor states through the prime map", func() {
		s.AddTrans()
		// input = 1 forces the latch's next value to 1
		ok, err := s.SolveCube(logic.Cube{1})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		_, next := s.Assignment(true)
		Expect(next).To(Equal(logic.Cube{2}))
	})

	It("should map primed unsat cores back to latches", func() {
		s.AddTrans()
		// next(latch) = input; pin the input false and assume latch' true
		s.AddClause(logic.Clause{-1})
		ok, err := s.SolveCube(logic.Cube{m.Prime(2)})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(s.UnsatCore(true)).To(Equal(logic.Cube{2}))
	})

	It("should block cubes per frame through activation flags", func() {
		s.AddTrans()
		s.AddUC(logic.Cube{2}, 0, false)

		ok, err := s.SolveFrame(logic.Cube{2}, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse(), "frame 0 blocks the cube")

		ok, err = s.SolveFrame(logic.Cube{2}, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue(), "frame 1 has no clauses yet")
	})

	It("should scope temporary clauses to a release", func() {
		s.AddClause(logic.Clause{1, 2})
		s.AddTempClause(logic.Clause{-1})

		ok, err := s.SolveCube(logic.Cube{-2})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse(), "temp clause forces 1 false, clause forces 2")

		s.ReleaseTempClause()
		ok, err = s.SolveCube(logic.Cube{-2})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue(), "released guard no longer constrains")
	})

	It("should enforce the temporary clause protocol", func() {
		Expect(func() { s.ReleaseTempClause() }).To(Panic())
		s.AddTempClause(logic.Clause{1})
		Expect(func() { s.AddTempClause(logic.Clause{2}) }).To(Panic())
	})
})

var _ = Describe("Gophersat backend", func() {
	It("should decide one-shot queries without cores", func() {
		m := compileShift()
		s := sat.New(m, settings.Gophersat)
		Expect(s.Incremental()).To(BeFalse())

		s.AddClause(logic.Clause{1, 2})
		s.AddClause(logic.Clause{-1, 2})
		ok, err := s.Solve()
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(s.Value(2)).To(BeTrue())

		ok, err = s.SolveCube(logic.Cube{-2})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})
