package model_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/carbide-mc/carbide/aiger"
	"github.com/carbide-mc/carbide/circuit"
	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/logic"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/settings"
)

// counterAAG is a 3-bit up-counter with bad = "value == 111".
const counterAAG = `aag 11 0 3 0 8 1
2 3 0
4 15 0
6 21 0
22
8 4 2
10 4 3
12 5 2
14 13 11
16 9 6
18 8 7
20 19 17
22 8 6
`

// twinLatchAAG has two latches both copying the input, with
// bad = l1 & !l2 (constant false once the latches are merged).
const twinLatchAAG = `aag 4 1 2 0 1 1
2
4 2
6 2
8
8 7 4
`

func compile(src string, cfg settings.Settings) *model.Model {
	f, err := aiger.Read(strings.NewReader(src))
	Expect(err).NotTo(HaveOccurred())
	g, err := circuit.New(f)
	Expect(err).NotTo(HaveOccurred())
	m, err := model.New(cfg, logging.New(0, GinkgoWriter), g)
	Expect(err).NotTo(HaveOccurred())
	return m
}

var _ = Describe("Equivalences", func() {
	It("should be idempotent and closed under negation", func() {
		e := model.NewEquivalences()
		e.Add(3, 7)
		e.Add(7, -9)
		e.Add(1, 3)

		for _, x := range []int{1, 3, 7, 9, -1, -3, -7, -9} {
			Expect(e.Find(e.Find(x))).To(Equal(e.Find(x)))
			Expect(e.Find(-x)).To(Equal(-e.Find(x)))
		}
		Expect(e.Find(7)).To(Equal(1))
		Expect(e.Find(9)).To(Equal(-1), "9 entered negated")
	})

	It("should keep the smallest magnitude as representative", func() {
		e := model.NewEquivalences()
		e.Add(10, 4)
		Expect(e.Find(10)).To(Equal(4))
		e.Add(4, 2)
		Expect(e.Find(10)).To(Equal(2))
		Expect(e.Has(10)).To(BeTrue())
		Expect(e.Has(2)).To(BeFalse())
	})
})

var _ = Describe("Model compilation", func() {
	var m *model.Model

	BeforeEach(func() {
		cfg := settings.Defaults()
		cfg.Equivalence = settings.EqOff
		m = compile(counterAAG, cfg)
	})

	It("should collect an all-zero initial state", func() {
		Expect(m.InitialState()).To(Equal(logic.Cube{-1, -2, -3}))
		Expect(m.InitialClauses()).To(BeEmpty())
	})

	It("should bind latch primes to their next functions", func() {
		Expect(m.Prime(1)).To(Equal(-1), "bit0 toggles")
		Expect(m.Prime(2)).To(Equal(-7), "bit1 is the negated xor gate")
		Expect(m.Prime(3)).To(Equal(-10))
		Expect(m.Prime(-2)).To(Equal(7))
	})

	It("should recognize the counter xor idioms", func() {
		Expect(m.Graph.Gates[7].Type).To(Equal(circuit.XOR))
		Expect(m.Graph.Gates[10].Type).To(Equal(circuit.XOR))
		Expect(m.Graph.Gates[11].Type).To(Equal(circuit.AND))
	})

	It("should emit Tseitin clauses plus the constant-true unit", func() {
		clauses := m.Clauses()
		Expect(clauses).NotTo(BeEmpty())
		Expect(clauses[len(clauses)-1]).To(Equal(logic.Clause{m.TrueID()}))
		// 2 ANDs x3 + 2 XORs x4 + true unit
		Expect(clauses).To(HaveLen(2*3 + 2*4 + 1))
	})

	It("should unprime cores through PrevOfPrime", func() {
		Expect(m.PrevOfPrime(m.Prime(1))).To(Equal([]int{1}))
		Expect(m.PrevOfPrime(-m.Prime(2))).To(Equal([]int{-2}))
	})

	Describe("PrimeK", func() {
		It("should be the identity at k=0 and for constants", func() {
			Expect(m.PrimeK(5, 0)).To(Equal(5))
			Expect(m.PrimeK(m.TrueID(), 3)).To(Equal(m.TrueID()))
		})

		It("should chase latch next chains", func() {
			Expect(m.PrimeK(1, 1)).To(Equal(-1))
			Expect(m.PrimeK(1, 2)).To(Equal(1))
		})

		It("should allocate stable fresh copies for gates and respect negation", func() {
			p1 := m.PrimeK(11, 1)
			Expect(p1).To(BeNumerically(">", m.Graph.TrueID))
			Expect(m.PrimeK(11, 1)).To(Equal(p1))
			Expect(m.PrimeK(-11, 1)).To(Equal(-p1))
			p2 := m.PrimeK(11, 2)
			Expect(p2).NotTo(Equal(p1))
		})
	})
})

var _ = Describe("Equivalence discovery", func() {
	It("should merge twin latches and collapse the bad gate", func() {
		cfg := settings.Defaults()
		cfg.Equivalence = settings.EqRandom
		m := compile(twinLatchAAG, cfg)

		// latches 2 and 3 copy the input; the second folds into the first
		Expect(m.ModelLatches()).To(Equal([]int{2}))
		// bad = l1 & !l2 rewrites to a constant-false signal
		Expect(m.IsFalse(m.Bad())).To(BeTrue())
	})

	It("should find toggle-phase equivalences by ternary simulation", func() {
		// two toggle latches starting in opposite phase: l2 == !l1
		src := "aag 2 0 2 0 0 1\n2 3 0\n4 5 1\n4\n"
		cfg := settings.Defaults()
		cfg.Equivalence = settings.EqTernary
		m := compile(src, cfg)

		Expect(m.ModelLatches()).To(HaveLen(1))
		Expect(m.Bad()).To(Equal(-1), "bad latch rewrites to the negation of the survivor")
	})
})

var _ = Describe("Innards", func() {
	It("should prime gates over latches only and track logic levels", func() {
		cfg := settings.Defaults()
		cfg.Equivalence = settings.EqOff
		cfg.Innards = true
		m := compile(counterAAG, cfg)

		// every gate of the counter depends only on latches
		Expect(m.Innards()).To(Equal([]int{4, 7, 10, 11}))
		Expect(m.InnardLevel(4)).To(Equal(1))
		Expect(m.InnardLevel(10)).To(Equal(2), "xor over the carry gate")
		for _, inn := range m.Innards() {
			Expect(m.Prime(inn)).To(BeNumerically(">", 0))
			_, ok := m.Graph.Gates[m.Prime(inn)]
			Expect(ok).To(BeTrue(), "primed duplicate gate exists")
		}
	})
})
