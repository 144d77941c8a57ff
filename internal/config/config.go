// Package config holds the configuration of the survival report
// pipeline, loaded from a YAML file with sensible defaults for the
// Mayo PBC trial data.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all pipeline configuration.
type Config struct {
	// Path to the trial data in csv format
	Input string `yaml:"input"`

	// Directory receiving the report and plots
	OutDir string `yaml:"outdir"`

	Analysis AnalysisConfig `yaml:"analysis"`

	Plots PlotsConfig `yaml:"plots"`
}

// AnalysisConfig selects the variables entering each stage of the
// analysis.
type AnalysisConfig struct {
	// Name of the follow-up time variable
	TimeVar string `yaml:"time_var"`

	// Grouping variables for the descriptive table, stratified
	// survival curves, and log-rank tests
	GroupVars []string `yaml:"group_vars"`

	// Regression covariates; include "icept" for an intercept
	Covariates []string `yaml:"covariates"`

	// Variables summarized in the descriptive table
	Continuous  []string `yaml:"continuous"`
	Categorical []string `yaml:"categorical"`

	// Covariate values of a hypothetical patient for survival
	// prediction, keyed by covariate name
	Hypothetical map[string]float64 `yaml:"hypothetical"`

	// Number of points on the predicted survival-quantile curve
	QuantilePoints int `yaml:"quantile_points"`
}

// PlotsConfig configures plot generation.
type PlotsConfig struct {
	Enabled bool    `yaml:"enabled"`
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
}

// DefaultConfig returns the default configuration, set up for the
// PBC trial file layout.
func DefaultConfig() *Config {
	return &Config{
		Input:  "pbc.csv",
		OutDir: "pbc-report",

		Analysis: AnalysisConfig{
			TimeVar:   "days",
			GroupVars: []string{"drug", "sex"},
			Covariates: []string{
				"icept", "AgeYears", "Female", "edema",
				"bilirubin", "albumin", "prothrombin",
			},
			Continuous: []string{
				"AgeYears", "bilirubin", "albumin", "prothrombin",
			},
			Categorical: []string{"sex", "stage"},
			Hypothetical: map[string]float64{
				"AgeYears":    50,
				"Female":      1,
				"edema":       0,
				"bilirubin":   1.0,
				"albumin":     3.5,
				"prothrombin": 10.0,
			},
			QuantilePoints: 99,
		},

		Plots: PlotsConfig{
			Enabled: true,
			Width:   5,
			Height:  4,
		},
	}
}

// Load loads configuration from a YAML file, layered over the
// defaults.  A missing file returns the defaults.
func Load(path string) (*Config, error) {

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (cfg *Config) Validate() error {

	if cfg.Input == "" {
		return fmt.Errorf("config: input file not set")
	}
	if cfg.OutDir == "" {
		return fmt.Errorf("config: output directory not set")
	}
	if cfg.Analysis.TimeVar == "" {
		return fmt.Errorf("config: time variable not set")
	}
	if len(cfg.Analysis.Covariates) == 0 {
		return fmt.Errorf("config: no regression covariates")
	}

	for _, na := range cfg.Analysis.Covariates {
		if na == "icept" {
			continue
		}
		if _, ok := cfg.Analysis.Hypothetical[na]; !ok {
			return fmt.Errorf("config: hypothetical patient is missing covariate '%s'", na)
		}
	}

	return nil
}
