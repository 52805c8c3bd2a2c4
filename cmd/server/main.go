package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/brainscore/internal/config"
	"github.com/tensorplex-labs/brainscore/internal/server"
	"github.com/tensorplex-labs/brainscore/internal/utils/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init()
	log.Info().Msg("Starting scoring server...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}

	s := server.NewServer(cfg)

	// setup signal handling for graceful shutdown before serving
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("shutdown signal received, stopping server")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	if err := s.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
	log.Info().Msg("server stopped")
}
