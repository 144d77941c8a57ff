package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "days", cfg.Analysis.TimeVar)
	assert.Contains(t, cfg.Analysis.Covariates, "icept")
	assert.True(t, cfg.Plots.Enabled)
}

func TestLoadMissingFile(t *testing.T) {

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Input, cfg.Input)
}

func TestLoadOverrides(t *testing.T) {

	text := `
input: mydata.csv
analysis:
  time_var: days
  group_vars: [drug]
  covariates: [icept, bilirubin]
  hypothetical:
    bilirubin: 2.5
plots:
  enabled: false
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mydata.csv", cfg.Input)
	assert.Equal(t, []string{"icept", "bilirubin"}, cfg.Analysis.Covariates)
	assert.False(t, cfg.Plots.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadBadYAML(t *testing.T) {

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {

	cfg := DefaultConfig()
	cfg.Input = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Analysis.Covariates = nil
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Analysis.Covariates = append(cfg.Analysis.Covariates, "platelets")
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platelets")
}
