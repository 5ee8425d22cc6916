package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker is implemented by *database.DB.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Name() string
}

// CheckDatabaseJob verifies the record store is reachable and intact
type CheckDatabaseJob struct {
	db      HealthChecker
	timeout time.Duration
	log     zerolog.Logger
}

// NewCheckDatabaseJob creates a new CheckDatabaseJob
func NewCheckDatabaseJob(db HealthChecker) *CheckDatabaseJob {
	return &CheckDatabaseJob{
		db:      db,
		timeout: 30 * time.Second,
		log:     zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *CheckDatabaseJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *CheckDatabaseJob) Name() string {
	return "check_database"
}

// Run executes the database check
func (j *CheckDatabaseJob) Run(ctx context.Context) error {
	if j.db == nil {
		return Skip("database not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().
			Err(err).
			Str("database", j.db.Name()).
			Msg("Database health check failed")
		return fmt.Errorf("database %s is unhealthy: %w", j.db.Name(), err)
	}

	j.log.Debug().Str("database", j.db.Name()).Msg("Database health OK")
	return nil
}
