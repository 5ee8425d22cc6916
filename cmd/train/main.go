// Package main runs one synchronous training job and exits.
//
// Usage: train [epochs] [batch_size]
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/config"
	"github.com/tourguard/riskcast/internal/di"
	"github.com/tourguard/riskcast/internal/domain"
	"github.com/tourguard/riskcast/internal/training"
	"github.com/tourguard/riskcast/pkg/logger"
)

// argInt reads positional argument i, keeping fallback when absent or malformed.
func argInt(log zerolog.Logger, i int, name string, fallback int) int {
	if len(os.Args) <= i {
		return fallback
	}
	v, err := strconv.Atoi(os.Args[i])
	if err != nil {
		log.Warn().Str(name, os.Args[i]).Int("default", fallback).Msg("Invalid argument, using default")
		return fallback
	}
	return v
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, _, err := di.Wire(ctx, cfg, log, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	os.Exit(run(ctx, container, training.Request{
		Epochs:    argInt(log, 1, "epochs", cfg.Training.DefaultEpochs),
		BatchSize: argInt(log, 2, "batch_size", cfg.Training.DefaultBatchSize),
	}, log))
}

// run trains once and returns the process exit code.
func run(ctx context.Context, container *di.Container, req training.Request, log zerolog.Logger) int {
	defer container.Close()
	defer container.Coordinator.Shutdown(context.Background())

	stream, err := container.Coordinator.Subscribe()
	if err != nil {
		log.Error().Err(err).Msg("Failed to subscribe to progress")
		return 1
	}
	defer stream.Close()

	info, err := container.Coordinator.Start(req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to start training")
		return 1
	}
	log.Info().
		Str("job_id", info.ID).
		Int("epochs", info.Epochs).
		Int("batch_size", info.BatchSize).
		Int("sequence_length", container.Windower.Length()).
		Msg("Training started")

	for {
		msg, err := stream.Next(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Training interrupted")
			return 1
		}
		if msg.Heartbeat {
			continue
		}

		ev := msg.Event
		entry := log.Info()
		if ev.Status == domain.StatusError {
			entry = log.Error()
		}
		entry.
			Str("status", ev.Status).
			Int("progress", ev.Progress).
			Interface("details", ev.Details).
			Msg(ev.Message)

		if msg.Terminal() {
			if ev.Status == domain.StatusError {
				return 1
			}
			return 0
		}
	}
}
