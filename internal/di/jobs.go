package di

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/config"
	"github.com/tourguard/riskcast/internal/scheduler"
	"github.com/tourguard/riskcast/internal/training"
)

// databaseCheckSchedule runs the record store check at the top of every hour.
const databaseCheckSchedule = "0 0 * * * *"

// RegisterJobs creates the scheduler jobs and registers them when sched is non-nil.
// The retrain job is only scheduled when RETRAIN_SCHEDULE is set.
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{}

	jobs.CheckDatabase = scheduler.NewCheckDatabaseJob(container.DB)
	jobs.CheckDatabase.SetLogger(log.With().Str("job", "check_database").Logger())

	jobs.Retrain = scheduler.NewRetrainJob(container.Coordinator, training.Request{})
	jobs.Retrain.SetLogger(log.With().Str("job", "retrain_model").Logger())

	if sched == nil {
		return jobs, nil
	}

	if err := sched.AddJob(databaseCheckSchedule, jobs.CheckDatabase); err != nil {
		return nil, fmt.Errorf("failed to register check_database job: %w", err)
	}
	if cfg.RetrainSchedule != "" {
		if err := sched.AddJob(cfg.RetrainSchedule, jobs.Retrain); err != nil {
			return nil, fmt.Errorf("failed to register retrain_model job: %w", err)
		}
	}

	return jobs, nil
}
