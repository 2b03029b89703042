// Package settings holds the run configuration shared by the model and
// the checking engines.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
)

// Algorithm selects the checking engine.
type Algorithm int

// Engines.
const (
	ForwardCAR Algorithm = iota
	BackwardCAR
	BMC
	IC3
)

// Backend selects the SAT back-end.
type Backend int

// SAT back-ends. Gini is the incremental CDCL solver used by IC3 and
// CAR; Gophersat is a one-shot solver usable only for BMC.
const (
	Gini Backend = iota
	Gophersat
)

// EqStrategy selects how equivalent signals are searched before CNF
// emission.
type EqStrategy int

// Equivalence strategies.
const (
	EqOff           EqStrategy = iota
	EqTernaryRandom            // ternary first, random if nothing found
	EqTernary
	EqRandom
)

// Settings is the full run configuration. The zero value plus
// Defaults() mirrors the CLI defaults.
type Settings struct {
	AigFilePath string `json:"aig_file"`
	WitnessDir  string `json:"witness_dir"`

	Algorithm Algorithm `json:"-"`
	Backend   Backend   `json:"-"`

	BMCBound int `json:"bmc_bound"` // -1 = unbounded
	BMCStep  int `json:"bmc_step"`  // bounds per one-shot solver instance

	Branching int  `json:"branching"` // 0 static, 1 VSIDS, 2 sum, 3 ACIDS
	Seed      int  `json:"seed"`      // >0 enables shuffled assumption order
	ReferSkip bool `json:"refer_skip"`
	Innards   bool `json:"internal_signals"`

	Restart           bool    `json:"restart"`
	RestartThreshold  int     `json:"restart_threshold"`
	RestartGrowthRate float64 `json:"restart_growth_rate"`
	Luby              bool    `json:"luby"`

	Propagation bool `json:"propagation"`
	DeepFirst   bool `json:"deep_first"` // seed CAR tasks from the deep end

	Equivalence EqStrategy `json:"equivalence"`

	Verbosity int `json:"verbosity"`
	TimeLimit int `json:"time_limit"` // seconds, 0 = none
}

// Defaults returns the settings the CLI starts from.
func Defaults() Settings {
	return Settings{
		Algorithm:         ForwardCAR,
		Backend:           Gini,
		BMCBound:          -1,
		BMCStep:           10,
		Branching:         1,
		RestartThreshold:  128,
		RestartGrowthRate: 1.5,
		Equivalence:       EqTernaryRandom,
		Propagation:       true,
	}
}

// LoadFile overlays the JSON settings file at path onto s.
func (s *Settings) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("settings: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("settings: parsing %s: %w", path, err)
	}
	return nil
}

// ParseAlgorithm maps a CLI name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "fcar":
		return ForwardCAR, nil
	case "bcar":
		return BackwardCAR, nil
	case "bmc":
		return BMC, nil
	case "ic3":
		return IC3, nil
	}
	return 0, fmt.Errorf("settings: unknown algorithm %q", name)
}

// ParseBackend maps a CLI name to a Backend.
func ParseBackend(name string) (Backend, error) {
	switch name {
	case "gini":
		return Gini, nil
	case "gophersat":
		return Gophersat, nil
	}
	return 0, fmt.Errorf("settings: unknown SAT back-end %q", name)
}

// Validate rejects inconsistent combinations before any work starts.
func (s Settings) Validate() error {
	if s.Backend == Gophersat && s.Algorithm != BMC {
		return fmt.Errorf("settings: the gophersat back-end has no unsat-core support and only serves bmc")
	}
	if s.Branching < 0 || s.Branching > 3 {
		return fmt.Errorf("settings: branching mode %d out of range", s.Branching)
	}
	if s.Equivalence < EqOff || s.Equivalence > EqRandom {
		return fmt.Errorf("settings: equivalence strategy %d out of range", s.Equivalence)
	}
	return nil
}
