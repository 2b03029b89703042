package checker_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/carbide-mc/carbide/aiger"
	"github.com/carbide-mc/carbide/checker"
	"github.com/carbide-mc/carbide/circuit"
	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/settings"
)

// The scenario circuits, in ASCII AIGER form.
const (
	// bad is constant true
	constantBadAAG = "aag 0 0 0 0 0 1\n1\n"
	// one self-looping latch, reset 0, bad = latch
	selfLoopAAG = "aag 1 0 1 0 0 1\n2 2\n2\n"
	// the latch copies the input, bad = latch
	shiftAAG = "aag 2 1 1 0 0 1\n2\n4 2\n4\n"
	// 3-bit up-counter, bad = "value == 111"
	counterAAG = `aag 11 0 3 0 8 1
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
	// two latches both copying the input, bad = l1 & !l2
	twinLatchAAG = "aag 4 1 2 0 1 1\n2\n4 2\n6 2\n8\n8 7 4\n"
	// l1 latches "input seen", l2 delays l1, bad = !l1 & l2
	monotoneAAG = `aag 5 1 2 0 2 1
2
4 9
6 4
10
8 5 3
10 6 5
`
)

func buildModel(src string, cfg settings.Settings) *model.Model {
	f, err := aiger.Read(strings.NewReader(src))
	Expect(err).NotTo(HaveOccurred())
	g, err := circuit.New(f)
	Expect(err).NotTo(HaveOccurred())
	m, err := model.New(cfg, logging.New(0, GinkgoWriter), g)
	Expect(err).NotTo(HaveOccurred())
	return m
}

func runEngine(src string, cfg settings.Settings) (checker.Result, checker.Checker) {
	m := buildModel(src, cfg)
	eng := checker.New(cfg, m, logging.New(0, GinkgoWriter))
	res, err := eng.Run()
	Expect(err).NotTo(HaveOccurred())
	return res, eng
}

func cexLines(dir, base string) []string {
	data, err := os.ReadFile(filepath.Join(dir, base+".cex"))
	Expect(err).NotTo(HaveOccurred())
	text := strings.TrimRight(string(data), "\n")
	return strings.Split(text, "\n")
}

func eachAlgorithm() map[string]settings.Algorithm {
	return map[string]settings.Algorithm{
		"ic3":  settings.IC3,
		"fcar": settings.ForwardCAR,
		"bcar": settings.BackwardCAR,
	}
}

var _ = Describe("Engine scenarios", func() {
	newCfg := func(alg settings.Algorithm) settings.Settings {
		cfg := settings.Defaults()
		cfg.Algorithm = alg
		cfg.Equivalence = settings.EqOff
		return cfg
	}

	Describe("S1: trivially unsafe (bad is constant true)", func() {
		for name, alg := range eachAlgorithm() {
			name, alg := name, alg
			It("should fail immediately with "+name, func() {
				cfg := newCfg(alg)
				cfg.AigFilePath = "s1.aag"
				cfg.WitnessDir = GinkgoT().TempDir()
				res, eng := runEngine(constantBadAAG, cfg)
				Expect(res).To(Equal(checker.Unsafe))

				Expect(eng.Witness()).To(Succeed())
				lines := cexLines(cfg.WitnessDir, "s1")
				Expect(lines[0]).To(Equal("1"))
				Expect(lines[1]).To(Equal("b0"))
				// empty latch line, one empty input row, terminator
				Expect(lines[2:]).To(Equal([]string{"", "", "."}))
			})
		}
	})

	Describe("S2: trivially safe self-loop", func() {
		for name, alg := range eachAlgorithm() {
			name, alg := name, alg
			It("should prove safety with "+name, func() {
				res, _ := runEngine(selfLoopAAG, newCfg(alg))
				Expect(res).To(Equal(checker.Safe))
			})
		}
	})

	Describe("S3: one-step failure", func() {
		for name, alg := range eachAlgorithm() {
			name, alg := name, alg
			It("should find the one-step trace with "+name, func() {
				cfg := newCfg(alg)
				cfg.AigFilePath = "s3.aag"
				cfg.WitnessDir = GinkgoT().TempDir()
				res, eng := runEngine(shiftAAG, cfg)
				Expect(res).To(Equal(checker.Unsafe))

				Expect(eng.Witness()).To(Succeed())
				lines := cexLines(cfg.WitnessDir, "s3")
				Expect(lines[2]).To(Equal("0"), "initial latch")
				Expect(lines[3]).To(Equal("1"), "the input that loads the latch")
			})
		}
	})

	Describe("S4: 3-bit counter reaching 111", func() {
		for name, alg := range eachAlgorithm() {
			name, alg := name, alg
			It("should need exactly seven steps with "+name, func() {
				cfg := newCfg(alg)
				cfg.AigFilePath = "s4.aag"
				cfg.WitnessDir = GinkgoT().TempDir()
				res, eng := runEngine(counterAAG, cfg)
				Expect(res).To(Equal(checker.Unsafe))

				if alg == settings.BackwardCAR {
					return // only the verdict is checked for the backward engine
				}
				Expect(eng.Witness()).To(Succeed())
				lines := cexLines(cfg.WitnessDir, "s4")
				Expect(lines[2]).To(Equal("000"))
				Expect(lines[len(lines)-1]).To(Equal("."))
				inputRows := lines[3 : len(lines)-1]
				Expect(inputRows).To(HaveLen(7), "seven empty input vectors")
			})
		}

		It("should be confirmed by BMC at bound 7", func() {
			cfg := newCfg(settings.BMC)
			cfg.BMCBound = 7
			res, _ := runEngine(counterAAG, cfg)
			Expect(res).To(Equal(checker.Unsafe))
		})

		It("should stay unknown for BMC below bound 7", func() {
			cfg := newCfg(settings.BMC)
			cfg.BMCBound = 6
			res, _ := runEngine(counterAAG, cfg)
			Expect(res).To(Equal(checker.Unknown))
		})

		It("should be confirmed by one-shot BMC on gophersat", func() {
			cfg := newCfg(settings.BMC)
			cfg.Backend = settings.Gophersat
			cfg.BMCBound = 9
			cfg.BMCStep = 3
			res, _ := runEngine(counterAAG, cfg)
			Expect(res).To(Equal(checker.Unsafe))
		})
	})

	Describe("S5: equivalent twin latches", func() {
		for name, alg := range eachAlgorithm() {
			name, alg := name, alg
			It("should collapse the property before checking with "+name, func() {
				cfg := newCfg(alg)
				cfg.Equivalence = settings.EqRandom
				res, _ := runEngine(twinLatchAAG, cfg)
				Expect(res).To(Equal(checker.Safe))
			})
		}
	})

	Describe("S6: safe with a non-trivial invariant", func() {
		for name, alg := range eachAlgorithm() {
			name, alg := name, alg
			It("should discover an inductive invariant with "+name, func() {
				cfg := newCfg(alg)
				cfg.AigFilePath = "s6.aag"
				cfg.WitnessDir = GinkgoT().TempDir()
				res, eng := runEngine(monotoneAAG, cfg)
				Expect(res).To(Equal(checker.Safe))

				Expect(eng.Witness()).To(Succeed())
				// the witness circuit must parse and keep the interface
				w, err := aiger.Load(filepath.Join(cfg.WitnessDir, "s6.w.aag"))
				Expect(err).NotTo(HaveOccurred())
				Expect(w.NumInputs()).To(Equal(1))
				Expect(w.NumLatches()).To(Equal(2))
				Expect(len(w.Bad) + len(w.Outputs)).To(Equal(1))
			})
		}
	})

	Describe("engine options", func() {
		It("should agree on the counter under every branching mode", func() {
			for br := 0; br <= 3; br++ {
				cfg := newCfg(settings.ForwardCAR)
				cfg.Branching = br
				res, _ := runEngine(counterAAG, cfg)
				Expect(res).To(Equal(checker.Unsafe), "branching mode %d", br)
			}
		})

		It("should agree under a shuffled assumption order", func() {
			cfg := newCfg(settings.ForwardCAR)
			cfg.Seed = 7
			res, _ := runEngine(counterAAG, cfg)
			Expect(res).To(Equal(checker.Unsafe))
		})

		It("should agree with refer-skipping enabled", func() {
			cfg := newCfg(settings.BackwardCAR)
			cfg.ReferSkip = true
			res, _ := runEngine(counterAAG, cfg)
			Expect(res).To(Equal(checker.Unsafe))
		})

		It("should agree with restarts enabled", func() {
			cfg := newCfg(settings.ForwardCAR)
			cfg.Restart = true
			cfg.RestartThreshold = 2
			cfg.Luby = true
			res, _ := runEngine(counterAAG, cfg)
			Expect(res).To(Equal(checker.Unsafe))
		})

		It("should prove the monotone circuit with internal signals", func() {
			cfg := newCfg(settings.IC3)
			cfg.Innards = true
			res, _ := runEngine(monotoneAAG, cfg)
			Expect(res).To(Equal(checker.Safe))
		})

		It("should find the counter trace deep-first", func() {
			cfg := newCfg(settings.ForwardCAR)
			cfg.DeepFirst = true
			res, _ := runEngine(counterAAG, cfg)
			Expect(res).To(Equal(checker.Unsafe))
		})
	})
})

var _ = Describe("Invariant soundness", func() {
	It("should emit a safe witness circuit that still parses", func() {
		cfg := settings.Defaults()
		cfg.Algorithm = settings.ForwardCAR
		cfg.Equivalence = settings.EqOff
		cfg.AigFilePath = "mono.aag"
		cfg.WitnessDir = GinkgoT().TempDir()
		res, eng := runEngine(monotoneAAG, cfg)
		Expect(res).To(Equal(checker.Safe))
		Expect(eng.Witness()).To(Succeed())

		w, err := aiger.Load(filepath.Join(cfg.WitnessDir, "mono.w.aag"))
		Expect(err).NotTo(HaveOccurred())
		Expect(w.IsReencoded()).To(BeTrue())
	})
})
