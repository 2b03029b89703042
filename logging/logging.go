// Package logging provides the verbosity-gated logger and the run
// statistics shared by all engines.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kr/pretty"
)

// Logger writes verbosity-gated messages and accumulates statistics.
// Level 0 is always printed; higher levels are progressively chattier.
type Logger struct {
	verbosity int
	out       io.Writer

	Stats Statistics

	begin    time.Time
	tick     time.Time
	deadline time.Time
}

// New returns a logger printing messages at or below the given
// verbosity to out. A nil out defaults to stdout.
func New(verbosity int, out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{verbosity: verbosity, out: out, begin: time.Now()}
}

// L prints args as one line when the logger verbosity is at least lvl.
func (l *Logger) L(lvl int, args ...any) {
	if lvl > l.verbosity {
		return
	}
	fmt.Fprintln(l.out, fmt.Sprint(args...))
}

// Dump pretty-prints v at verbosity 4 and above.
func (l *Logger) Dump(label string, v any) {
	if l.verbosity < 4 {
		return
	}
	fmt.Fprintf(l.out, "%s %# v\n", label, pretty.Formatter(v))
}

// ResetClock restarts the total-time clock and clears the statistics.
func (l *Logger) ResetClock() {
	l.begin = time.Now()
	l.Stats = Statistics{}
}

// SetTimeLimit arms the soft timeout; seconds <= 0 disables it.
func (l *Logger) SetTimeLimit(seconds int) {
	if seconds <= 0 {
		l.deadline = time.Time{}
		return
	}
	l.deadline = time.Now().Add(time.Duration(seconds) * time.Second)
}

// Timeout reports whether the soft deadline has passed.
func (l *Logger) Timeout() bool {
	return !l.deadline.IsZero() && time.Now().After(l.deadline)
}

// Tick starts a duration measurement closed by one of the Stat
// methods.
func (l *Logger) Tick() { l.tick = time.Now() }

func (l *Logger) lap() time.Duration { return time.Since(l.tick) }

// StatMainSolver closes a Tick around a main-solver call.
func (l *Logger) StatMainSolver() {
	l.Stats.MainSolverCalls++
	l.Stats.MainSolverTime += l.lap()
}

// StatInvSolver closes a Tick around an invariant-solver call.
func (l *Logger) StatInvSolver() {
	l.Stats.InvSolverCalls++
	l.Stats.InvSolverTime += l.lap()
}

// StatStartSolver closes a Tick around a start-state enumeration.
func (l *Logger) StatStartSolver() {
	l.Stats.StartSolverCalls++
	l.Stats.StartSolverTime += l.lap()
}

// StatGetNewLevel closes a Tick around a frame re-location.
func (l *Logger) StatGetNewLevel() { l.Stats.GetNewLevelTime += l.lap() }

// StatUpdateUC closes a Tick around an unsat-core installation.
func (l *Logger) StatUpdateUC() { l.Stats.UpdateUCTime += l.lap() }

// StatGeneralize closes a Tick around cube generalization.
func (l *Logger) StatGeneralize() { l.Stats.GeneralizeTime += l.lap() }

// StatPropagation closes a Tick around a propagation phase.
func (l *Logger) StatPropagation() { l.Stats.PropagationTime += l.lap() }

// StatSimulation closes a Tick around circuit simulation.
func (l *Logger) StatSimulation() { l.Stats.SimulationTime += l.lap() }

// Statistics accumulates engine counters. All durations are wall
// clock.
type Statistics struct {
	MainSolverCalls  int
	InvSolverCalls   int
	StartSolverCalls int
	Restarts         int

	MainSolverTime  time.Duration
	InvSolverTime   time.Duration
	StartSolverTime time.Duration
	GetNewLevelTime time.Duration
	UpdateUCTime    time.Duration
	GeneralizeTime  time.Duration
	PropagationTime time.Duration
	SimulationTime  time.Duration
}

// PrintStatistics flushes the accumulated statistics. It is called on
// normal exit, on timeout, and from the SIGINT handler.
func (l *Logger) PrintStatistics() {
	s := &l.Stats
	fmt.Fprintln(l.out)
	fmt.Fprintf(l.out, "MainSolverCalls:\t%d\n", s.MainSolverCalls)
	fmt.Fprintf(l.out, "MainSolver takes:\t%.3f seconds\n", s.MainSolverTime.Seconds())
	fmt.Fprintf(l.out, "InvSolver takes:\t%.3f seconds\n", s.InvSolverTime.Seconds())
	fmt.Fprintf(l.out, "StartSolver takes:\t%.3f seconds\n", s.StartSolverTime.Seconds())
	fmt.Fprintf(l.out, "GetNewLevel takes:\t%.3f seconds\n", s.GetNewLevelTime.Seconds())
	fmt.Fprintf(l.out, "Update uc takes:\t%.3f seconds\n", s.UpdateUCTime.Seconds())
	fmt.Fprintf(l.out, "Generalize takes:\t%.3f seconds\n", s.GeneralizeTime.Seconds())
	fmt.Fprintf(l.out, "Propagation takes:\t%.3f seconds\n", s.PropagationTime.Seconds())
	fmt.Fprintf(l.out, "Simulation takes:\t%.3f seconds\n", s.SimulationTime.Seconds())
	fmt.Fprintf(l.out, "Restart times:\t%d\n", s.Restarts)
	fmt.Fprintf(l.out, "Total Time:\t%.3f seconds\n", time.Since(l.begin).Seconds())
}
