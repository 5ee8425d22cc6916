package di

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/config"
	"github.com/tourguard/riskcast/internal/database"
)

// InitializeDatabases opens the record store and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	db, err := database.New(database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.SQLitePath(),
		DSN:    cfg.Database.DSN,
		Name:   "riskcast",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	container.DB = db

	log.Info().
		Str("driver", db.Driver()).
		Str("name", db.Name()).
		Msg("Database initialized")

	return container, nil
}
