package config

import (
	"slices"

	"github.com/caarlos0/env/v11"

	"github.com/tensorplex-labs/brainscore/internal/errs"
	"github.com/tensorplex-labs/brainscore/internal/metrics"
)

// NoStratification is the SCORING_STRATIFY_COORD value that turns
// stratified splitting off.
const NoStratification = "none"

func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.ScoringEnvConfig.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no metric can run with.
func (c ScoringEnvConfig) Validate() error {
	if !slices.Contains(metrics.Names(), c.Metric) {
		return errs.Configurationf("SCORING_METRIC %q is not one of %v", c.Metric, metrics.Names())
	}
	if c.Splits < 1 {
		return errs.Configurationf("SCORING_SPLITS must be at least 1, got %d", c.Splits)
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return errs.Configurationf("SCORING_TEST_FRACTION must be in (0, 1), got %v", c.TestFraction)
	}
	if c.RDMTestFraction <= 0 || c.RDMTestFraction >= 1 {
		return errs.Configurationf("SCORING_RDM_TEST_FRACTION must be in (0, 1), got %v", c.RDMTestFraction)
	}
	if c.Workers < 1 {
		return errs.Configurationf("SCORING_WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.PLSComponents < 1 {
		return errs.Configurationf("SCORING_PLS_COMPONENTS must be at least 1, got %d", c.PLSComponents)
	}
	if c.RidgeAlpha < 0 {
		return errs.Configurationf("SCORING_RIDGE_ALPHA must be non-negative, got %v", c.RidgeAlpha)
	}
	return nil
}

// Options converts the environment settings into metric options.
func (c ScoringEnvConfig) Options() metrics.Options {
	stratify := c.StratifyCoord
	if stratify == NoStratification {
		stratify = ""
	}
	return metrics.Options{
		Splits:          c.Splits,
		TestFraction:    c.TestFraction,
		RDMTestFraction: c.RDMTestFraction,
		StratifyCoord:   stratify,
		Seed:            c.Seed,
		Workers:         c.Workers,
		PLSComponents:   c.PLSComponents,
		RidgeAlpha:      c.RidgeAlpha,
	}
}
