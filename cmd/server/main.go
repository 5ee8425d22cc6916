// Package main is the entry point for the riskcast risk prediction service.
// It serves point, entity and hotspot risk queries from the active model
// bundle and runs background training jobs on request or on a schedule.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tourguard/riskcast/internal/config"
	"github.com/tourguard/riskcast/internal/di"
	"github.com/tourguard/riskcast/internal/scheduler"
	"github.com/tourguard/riskcast/internal/server"
	"github.com/tourguard/riskcast/pkg/logger"
)

// main wires the container, starts the HTTP server and the scheduler, then
// waits for SIGINT/SIGTERM and shuts everything down in reverse order.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting riskcast")

	sched := scheduler.New(log)

	container, _, err := di.Wire(context.Background(), cfg, log, sched)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		Coordinator: container.Coordinator,
		Predictions: container.Predictions,
		Holder:      container.Holder,
		DB:          container.DB,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := container.Coordinator.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Training job did not stop in time")
	}

	log.Info().Msg("Server stopped")
}
