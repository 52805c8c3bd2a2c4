// Package config defines environment configuration structs and loaders.
package config

import (
	"time"
)

type AppConfig struct {
	ScoringEnvConfig
	ServerEnvConfig
	Environment string `env:"ENVIRONMENT" envDefault:"prod"`
}

// ScoringEnvConfig parameterizes the registered metrics.
// SCORING_STRATIFY_COORD=none disables stratified splitting.
type ScoringEnvConfig struct {
	Metric          string  `env:"SCORING_METRIC" envDefault:"pls-pearson"`
	Splits          int     `env:"SCORING_SPLITS" envDefault:"10"`
	TestFraction    float64 `env:"SCORING_TEST_FRACTION" envDefault:"0.1"`
	RDMTestFraction float64 `env:"SCORING_RDM_TEST_FRACTION" envDefault:"0.5"`
	Seed            uint64  `env:"SCORING_SEED" envDefault:"0"`
	Workers         int     `env:"SCORING_WORKERS" envDefault:"4"`
	StratifyCoord   string  `env:"SCORING_STRATIFY_COORD" envDefault:"object_name"`
	PLSComponents   int     `env:"SCORING_PLS_COMPONENTS" envDefault:"25"`
	RidgeAlpha      float64 `env:"SCORING_RIDGE_ALPHA" envDefault:"1"`
}

// ServerEnvConfig configures the scoring server.
type ServerEnvConfig struct {
	Host      string `env:"SCORING_SERVER_HOST" envDefault:"0.0.0.0"`
	Port      int    `env:"SCORING_SERVER_PORT" envDefault:"8888"`
	BodyLimit int    `env:"SCORING_SERVER_BODY_LIMIT" envDefault:"67108864"`
}

// CatalogEnvConfig configures the assembly catalog client. It is read with
// go-envconfig by the catalog package.
type CatalogEnvConfig struct {
	CatalogURL   string        `env:"ASSEMBLY_CATALOG_URL, default=http://127.0.0.1:5005"`
	Timeout      time.Duration `env:"ASSEMBLY_CATALOG_TIMEOUT, default=60s"`
	RetryMax     int           `env:"ASSEMBLY_CATALOG_RETRY_MAX, default=5"`
	RetryWaitMin time.Duration `env:"ASSEMBLY_CATALOG_RETRY_WAIT_MIN, default=500ms"`
	RetryWaitMax time.Duration `env:"ASSEMBLY_CATALOG_RETRY_WAIT_MAX, default=20s"`
	CacheDir     string        `env:"ASSEMBLY_CACHE_DIR, default=.brainscore/assemblies"`
}

// ClientEnvConfig configures clients of the scoring server. It is read with
// go-envconfig by the server package.
type ClientEnvConfig struct {
	ServerURL string        `env:"SCORING_SERVER_URL, default=http://127.0.0.1:8888"`
	Timeout   time.Duration `env:"SCORING_CLIENT_TIMEOUT, default=300s"`
}
