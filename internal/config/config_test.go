package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/brainscore/internal/errs"
	"github.com/tensorplex-labs/brainscore/internal/metrics"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, metrics.PLSPearson, cfg.Metric)
	assert.Equal(t, 10, cfg.Splits)
	assert.InDelta(t, 0.1, cfg.TestFraction, 1e-12)
	assert.InDelta(t, 0.5, cfg.RDMTestFraction, 1e-12)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "object_name", cfg.StratifyCoord)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8888, cfg.Port)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SCORING_METRIC", metrics.RDMName)
	t.Setenv("SCORING_SPLITS", "3")
	t.Setenv("SCORING_SEED", "42")
	t.Setenv("SCORING_STRATIFY_COORD", NoStratification)
	t.Setenv("SCORING_SERVER_PORT", "9000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, metrics.RDMName, cfg.Metric)
	assert.Equal(t, 9000, cfg.Port)

	opts := cfg.Options()
	assert.Equal(t, 3, opts.Splits)
	assert.Equal(t, uint64(42), opts.Seed)
	assert.Empty(t, opts.StratifyCoord)
	assert.Equal(t, 25, opts.PLSComponents)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"SCORING_METRIC":        "nope",
		"SCORING_SPLITS":        "0",
		"SCORING_TEST_FRACTION": "1.5",
		"SCORING_WORKERS":       "-2",
		"SCORING_RIDGE_ALPHA":   "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.ErrorIs(t, err, errs.ErrConfiguration)
		})
	}
}

func TestLoadConfig_ParseError(t *testing.T) {
	t.Setenv("SCORING_SPLITS", "ten")
	_, err := LoadConfig()
	assert.Error(t, err)
}
