package scheduler

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/domain"
	"github.com/tourguard/riskcast/internal/training"
)

// Admitter starts training jobs.
type Admitter interface {
	Start(req training.Request) (*training.JobInfo, error)
}

// RetrainJob asks the coordinator for a training run with the default parameters.
// A run that is already in flight is not an error; the tick is skipped.
type RetrainJob struct {
	coordinator Admitter
	request     training.Request
	log         zerolog.Logger
}

// NewRetrainJob creates a RetrainJob. Zero fields in req take the coordinator defaults.
func NewRetrainJob(coordinator Admitter, req training.Request) *RetrainJob {
	return &RetrainJob{
		coordinator: coordinator,
		request:     req,
		log:         zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *RetrainJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *RetrainJob) Name() string {
	return "retrain_model"
}

// Run admits a training job without waiting for it to finish. The job runs
// under the coordinator's lifetime, not ctx.
func (j *RetrainJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return Skip("scheduler stopping")
	}
	info, err := j.coordinator.Start(j.request)
	var running *domain.JobAlreadyRunningError
	if errors.As(err, &running) {
		return Skip("training job " + running.JobID + " already running")
	}
	if err != nil {
		return err
	}

	j.log.Info().
		Str("job_id", info.ID).
		Int("epochs", info.Epochs).
		Int("batch_size", info.BatchSize).
		Msg("Scheduled retrain admitted")
	return nil
}
