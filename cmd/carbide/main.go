// Package main provides the carbide command line entry point.
// carbide is a bit-level safety model checker for AIGER circuits with
// IC3/PDR, forward/backward CAR and BMC engines.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carbide-mc/carbide/aiger"
	"github.com/carbide-mc/carbide/checker"
	"github.com/carbide-mc/carbide/circuit"
	"github.com/carbide-mc/carbide/logging"
	"github.com/carbide-mc/carbide/model"
	"github.com/carbide-mc/carbide/settings"
)

var (
	witnessDir = flag.String("w", "", "Witness output directory")
	algorithm  = flag.String("a", "fcar", "Engine: fcar, bcar, bmc, ic3")
	backend    = flag.String("s", "gini", "SAT back-end: gini, gophersat")
	bmcBound   = flag.Int("k", -1, "BMC bound (-1 = unbounded)")
	branching  = flag.Int("br", 1, "Branching mode: 1 VSIDS, 2 sum, 3 ACIDS")
	seed       = flag.Int("seed", 0, "Random assumption ordering seed")
	referSkip  = flag.Bool("rs", false, "Enable refer-skipping")
	innards    = flag.Bool("is", false, "Enable internal signals")
	restart    = flag.Bool("restart", false, "Enable the restart loop")
	restartTh  = flag.Int("restart_threshold", 128, "Initial unsat-core count before a restart")
	restartGr  = flag.Float64("restart_growth_rate", 1.5, "Geometric restart growth factor")
	luby       = flag.Bool("luby", false, "Use the Luby restart schedule")
	eqMode     = flag.Int("eq", 1, "Equivalence strategy: 0 off, 1 ternary+random, 2 ternary, 3 random")
	verbosity  = flag.Int("v", 0, "Verbosity")
	timeout    = flag.Int("timeout", 0, "Soft time limit in seconds (0 = none)")
	configPath = flag.String("config", "", "Path to a JSON settings file")
)

const (
	exitSafe    = 0
	exitUnsafe  = 1
	exitUnknown = 2
	exitError   = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: carbide [options] <circuit.aig>\n\nOptions:\n")
		flag.PrintDefaults()
		return exitError
	}

	cfg := settings.Defaults()
	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitError
		}
	}
	cfg.AigFilePath = flag.Arg(0)
	cfg.WitnessDir = *witnessDir
	cfg.BMCBound = *bmcBound
	cfg.Branching = *branching
	cfg.Seed = *seed
	cfg.ReferSkip = *referSkip
	cfg.Innards = *innards
	cfg.Restart = *restart
	cfg.RestartThreshold = *restartTh
	cfg.RestartGrowthRate = *restartGr
	cfg.Luby = *luby
	cfg.Equivalence = settings.EqStrategy(*eqMode)
	cfg.Verbosity = *verbosity
	cfg.TimeLimit = *timeout

	var err error
	if cfg.Algorithm, err = settings.ParseAlgorithm(*algorithm); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	if cfg.Backend, err = settings.ParseBackend(*backend); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	if err = cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	log := logging.New(cfg.Verbosity, os.Stdout)
	log.SetTimeLimit(cfg.TimeLimit)

	// SIGINT flushes statistics and aborts without a result
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.PrintStatistics()
		os.Exit(exitUnknown)
	}()

	aig, err := aiger.Load(cfg.AigFilePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	graph, err := circuit.New(aig)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	m, err := model.New(cfg, log, graph)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	engine := checker.New(cfg, m, log)
	result, err := engine.Run()
	if err != nil && !errors.Is(err, checker.ErrTimeout) {
		fmt.Fprintln(os.Stderr, err)
		log.PrintStatistics()
		return exitUnknown
	}

	fmt.Println(result)
	log.PrintStatistics()

	if cfg.WitnessDir != "" {
		if werr := engine.Witness(); werr != nil {
			fmt.Fprintln(os.Stderr, werr)
			return exitError
		}
	}

	switch result {
	case checker.Safe:
		return exitSafe
	case checker.Unsafe:
		return exitUnsafe
	default:
		return exitUnknown
	}
}
