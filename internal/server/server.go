// Package server exposes the metric registry over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/brainscore/internal/config"
	"github.com/tensorplex-labs/brainscore/internal/errs"
	"github.com/tensorplex-labs/brainscore/internal/metrics"
	"github.com/tensorplex-labs/brainscore/internal/store"
	"github.com/tensorplex-labs/brainscore/internal/utils/logger"
)

// NewServer builds the app and registers its routes. A nil cfg serves the
// default metric with default options on DefaultServerPort.
func NewServer(cfg *config.AppConfig) *Server {
	s := &Server{
		config: config.ServerEnvConfig{
			Host:      DefaultServerHost,
			Port:      DefaultServerPort,
			BodyLimit: DefaultBodyLimit,
		},
		metric:  metrics.PLSPearson,
		options: metrics.DefaultOptions(),
	}
	if cfg != nil {
		s.config = cfg.ServerEnvConfig
		s.metric = cfg.Metric
		s.options = cfg.ScoringEnvConfig.Options()
	}

	logger.Sugar().Infow("Server configuration loaded",
		"host", s.config.Host,
		"port", s.config.Port,
		"body_limit", s.config.BodyLimit,
		"metric", s.metric,
	)

	app := fiber.New(fiber.Config{
		Prefork:      false,
		ErrorHandler: fiberErrHandler,
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
		BodyLimit:    s.config.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestCompression}))
	app.Use(ZstdMiddleware([]string{"/health"}))

	app.Get("/health", s.health)
	app.Get("/metrics", s.listMetrics)
	app.Post("/score", s.score)

	s.App = app
	return s
}

func fiberErrHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	log.Error().
		Err(err).
		Int("status_code", code).
		Str("path", ctx.Path()).
		Str("method", ctx.Method()).
		Msg("Fiber error handler triggered")

	return ctx.Status(code).JSON(createResponse(map[string]any{}, err))
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrConfiguration), errors.Is(err, errs.ErrAlignment):
		return fiber.StatusBadRequest
	case errors.Is(err, errs.ErrNumeric), errors.Is(err, errs.ErrUnfittedModel):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(createResponse(HealthResponse{Status: "ok"}, nil))
}

func (s *Server) listMetrics(c *fiber.Ctx) error {
	return c.JSON(createResponse(MetricsResponse{Default: s.metric, Names: metrics.Names()}, nil))
}

func (s *Server) score(c *fiber.Ctx) error {
	opts := s.options
	req := ScoreRequest{Options: &opts}
	if err := c.BodyParser(&req); err != nil {
		log.Error().Err(err).Str("route", c.Path()).Msg("Failed to parse request body")
		return c.Status(fiber.StatusBadRequest).JSON(createResponse(store.ScoreRecord{}, err))
	}
	if req.Metric == "" {
		req.Metric = s.metric
	}
	if req.Options == nil {
		req.Options = &s.options
	}

	record, err := s.evaluate(c.UserContext(), req)
	if err != nil {
		code := statusFor(err)
		log.Error().
			Err(err).
			Int("status_code", code).
			Str("metric", req.Metric).
			Msg("Scoring request failed")
		return c.Status(code).JSON(createResponse(store.ScoreRecord{}, err))
	}
	return c.JSON(createResponse(record, nil))
}

func (s *Server) evaluate(ctx context.Context, req ScoreRequest) (store.ScoreRecord, error) {
	metric, err := metrics.New(req.Metric, req.Options.WithDefaults(s.options))
	if err != nil {
		return store.ScoreRecord{}, err
	}
	source, err := req.Source.Assembly()
	if err != nil {
		return store.ScoreRecord{}, fmt.Errorf("source: %w", err)
	}
	target, err := req.Target.Assembly()
	if err != nil {
		return store.ScoreRecord{}, fmt.Errorf("target: %w", err)
	}

	score, err := metric.Score(ctx, source, target)
	if err != nil {
		return store.ScoreRecord{}, err
	}
	log.Info().
		Str("metric", req.Metric).
		Float64("center", score.Center()).
		Float64("error", score.Error()).
		Msg("Scored request")
	return store.NewScoreRecord(score), nil
}

// Start blocks serving on the configured host and port.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	log.Info().Str("addr", addr).Msg("Starting scoring server")
	return s.App.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.App.ShutdownWithContext(ctx)
}
