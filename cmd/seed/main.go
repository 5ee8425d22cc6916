// Package main fills the record store with synthetic tourists and alerts.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/tourguard/riskcast/internal/config"
	"github.com/tourguard/riskcast/internal/di"
	"github.com/tourguard/riskcast/internal/seed"
	"github.com/tourguard/riskcast/pkg/logger"
)

func main() {
	tourists := flag.Int("tourists", 500, "number of tourist documents")
	alerts := flag.Int("alerts", 200, "number of alert documents")
	days := flag.Int("days", 30, "spread timestamps over this many past days")
	randSeed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	ctx := context.Background()
	container, err := di.InitializeDatabases(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer container.Close()

	if err := di.InitializeServices(ctx, container, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	g := seed.NewGenerator(*randSeed, time.Now().UTC(), time.Duration(*days)*24*time.Hour)
	if err := g.Run(ctx, container.Records, *tourists, *alerts, log); err != nil {
		log.Fatal().Err(err).Msg("Seeding failed")
	}

	entities, events, err := container.Records.Counts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count records")
	}
	log.Info().
		Int("entities", entities).
		Int("events", events).
		Int64("seed", *randSeed).
		Msg("Database seeded")
}
