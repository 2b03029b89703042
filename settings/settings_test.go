package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbide-mc/carbide/settings"
)

func TestDefaults(t *testing.T) {
	s := settings.Defaults()
	assert.Equal(t, settings.ForwardCAR, s.Algorithm)
	assert.Equal(t, settings.Gini, s.Backend)
	assert.Equal(t, -1, s.BMCBound)
	assert.Equal(t, 1, s.Branching)
	assert.Equal(t, 128, s.RestartThreshold)
	assert.InDelta(t, 1.5, s.RestartGrowthRate, 1e-9)
	assert.Equal(t, settings.EqTernaryRandom, s.Equivalence)
}

func TestParseAlgorithm(t *testing.T) {
	for name, want := range map[string]settings.Algorithm{
		"fcar": settings.ForwardCAR,
		"bcar": settings.BackwardCAR,
		"bmc":  settings.BMC,
		"ic3":  settings.IC3,
	} {
		got, err := settings.ParseAlgorithm(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := settings.ParseAlgorithm("pdr")
	assert.Error(t, err)
}

func TestParseBackend(t *testing.T) {
	got, err := settings.ParseBackend("gini")
	require.NoError(t, err)
	assert.Equal(t, settings.Gini, got)
	_, err = settings.ParseBackend("minisat")
	assert.Error(t, err)
}

func TestValidateRejectsGophersatOutsideBMC(t *testing.T) {
	s := settings.Defaults()
	s.Backend = settings.Gophersat
	assert.Error(t, s.Validate())
	s.Algorithm = settings.BMC
	assert.NoError(t, s.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carbide.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"branching":3,"luby":true,"restart_threshold":64}`), 0o644))

	s := settings.Defaults()
	require.NoError(t, s.LoadFile(path))
	assert.Equal(t, 3, s.Branching)
	assert.True(t, s.Luby)
	assert.Equal(t, 64, s.RestartThreshold)
	// untouched fields keep their defaults
	assert.Equal(t, -1, s.BMCBound)
}

func TestLoadFileErrors(t *testing.T) {
	s := settings.Defaults()
	assert.Error(t, s.LoadFile(filepath.Join(t.TempDir(), "missing.json")))
}
