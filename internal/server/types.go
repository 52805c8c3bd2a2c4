package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tensorplex-labs/brainscore/internal/config"
	"github.com/tensorplex-labs/brainscore/internal/metrics"
	"github.com/tensorplex-labs/brainscore/internal/store"
)

const (
	DefaultServerHost = "0.0.0.0"
	DefaultServerPort = 8888
	DefaultBodyLimit  = 64 * 1024 * 1024 // 64MB, assemblies are large
)

// Server wraps the fiber app serving the metric registry.
type Server struct {
	App     *fiber.App
	config  config.ServerEnvConfig
	metric  string
	options metrics.Options
}

// StdResponse represents the standardized response structure
type StdResponse[T any] struct {
	Body  T       `json:"body"`
	Error *string `json:"error,omitempty"`
}

// ScoreRequest asks for one metric evaluation. Empty fields fall back to the
// server defaults; Options fields left out of the JSON keep their defaults.
type ScoreRequest struct {
	Metric  string               `json:"metric"`
	Source  store.AssemblyRecord `json:"source"`
	Target  store.AssemblyRecord `json:"target"`
	Options *metrics.Options     `json:"options,omitempty"`
}

type MetricsResponse struct {
	Default string   `json:"default"`
	Names   []string `json:"names"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// createResponse creates a StdResponse with the given body and error
func createResponse[T any](body T, err error) StdResponse[T] {
	if err != nil {
		errMsg := err.Error()
		return StdResponse[T]{Body: body, Error: &errMsg}
	}
	return StdResponse[T]{Body: body}
}
