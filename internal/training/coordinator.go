// Package training coordinates the single background training job and its progress stream.
package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/domain"
	"github.com/tourguard/riskcast/internal/modules/artifacts"
	"github.com/tourguard/riskcast/internal/modules/features"
	"github.com/tourguard/riskcast/internal/modules/proximity"
	"github.com/tourguard/riskcast/internal/modules/riskmodel"
	"github.com/tourguard/riskcast/internal/modules/sequences"
)

// Coordinator states.
const (
	StateIdle int32 = iota
	StateRunning
)

// Source lists the documents a training run is built from.
type Source interface {
	ListEntities(ctx context.Context) ([]domain.RawRecord, error)
	ListEvents(ctx context.Context) ([]domain.RawRecord, error)
}

// Pipeline groups the preprocessing and model collaborators of a run.
type Pipeline struct {
	Normalizer *features.Normalizer
	Index      *proximity.Index
	Windower   *sequences.Windower
	Trainer    riskmodel.Trainer
	Store      artifacts.Store
	Holder     *riskmodel.Holder
}

// Config holds coordinator defaults.
type Config struct {
	DefaultEpochs    int
	DefaultBatchSize int
	ValidationSplit  float64
	Heartbeat        time.Duration
}

// Coordinator admits at most one training job at a time.
type Coordinator struct {
	state    atomic.Int32
	current  atomic.Pointer[job]
	consumer atomic.Bool

	// changed is closed and replaced on every admission so idle streams rebind.
	changedMu sync.Mutex
	changed   chan struct{}

	source   Source
	pipeline Pipeline
	cfg      Config
	clock    func() time.Time

	// admitMu orders wg.Add in Start against cancel in Shutdown.
	admitMu sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     zerolog.Logger
}

// ErrShutDown is returned by Start after Shutdown.
var ErrShutDown = errors.New("training coordinator is shut down")

// NewCoordinator creates an idle coordinator.
func NewCoordinator(source Source, pipeline Pipeline, cfg Config, log zerolog.Logger) *Coordinator {
	if cfg.DefaultEpochs < 1 {
		cfg.DefaultEpochs = 50
	}
	if cfg.DefaultBatchSize < 1 {
		cfg.DefaultBatchSize = 32
	}
	if cfg.ValidationSplit <= 0 || cfg.ValidationSplit >= 1 {
		cfg.ValidationSplit = 0.2
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		changed:  make(chan struct{}),
		source:   source,
		pipeline: pipeline,
		cfg:      cfg,
		clock:    pipeline.Normalizer.Now,
		ctx:      ctx,
		cancel:   cancel,
		log:      log.With().Str("component", "training_coordinator").Logger(),
	}
}

// Defaults fills zero fields of req from the configured defaults.
func (c *Coordinator) Defaults(req Request) Request {
	if req.Epochs == 0 {
		req.Epochs = c.cfg.DefaultEpochs
	}
	if req.BatchSize == 0 {
		req.BatchSize = c.cfg.DefaultBatchSize
	}
	return req
}

// Start admits a job and runs it in the background. It fails with
// JobAlreadyRunningError while another job holds the coordinator.
func (c *Coordinator) Start(req Request) (*JobInfo, error) {
	req = c.Defaults(req)
	if req.Epochs < 1 || req.Epochs > 10000 {
		return nil, &domain.ValidationError{Field: "epochs", Message: "must be between 1 and 10000"}
	}
	if req.BatchSize < 1 {
		return nil, &domain.ValidationError{Field: "batch_size", Message: "must be positive"}
	}
	c.admitMu.Lock()
	defer c.admitMu.Unlock()
	if c.ctx.Err() != nil {
		return nil, ErrShutDown
	}

	if !c.state.CompareAndSwap(StateIdle, StateRunning) {
		running := &domain.JobAlreadyRunningError{}
		if j := c.current.Load(); j != nil {
			running.JobID = j.info.ID
		}
		return nil, running
	}

	j := newJob(JobInfo{
		ID:        uuid.New().String(),
		Epochs:    req.Epochs,
		BatchSize: req.BatchSize,
		StartedAt: c.clock(),
	})
	c.current.Store(j)
	c.notifyChanged()

	c.log.Info().
		Str("job_id", j.info.ID).
		Int("epochs", req.Epochs).
		Int("batch_size", req.BatchSize).
		Msg("Training job admitted")

	c.wg.Add(1)
	go c.run(j)

	info := j.info
	return &info, nil
}

func (c *Coordinator) notifyChanged() {
	c.changedMu.Lock()
	close(c.changed)
	c.changed = make(chan struct{})
	c.changedMu.Unlock()
}

func (c *Coordinator) changes() <-chan struct{} {
	c.changedMu.Lock()
	defer c.changedMu.Unlock()
	return c.changed
}

// State returns StateIdle or StateRunning.
func (c *Coordinator) State() int32 {
	return c.state.Load()
}

// run executes every stage. The coordinator is released before the terminal
// event is published, so a consumer that sees completed/error can admit again.
func (c *Coordinator) run(j *job) {
	defer c.wg.Done()
	defer close(j.done)

	var result map[string]interface{}
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				c.log.Error().
					Str("job_id", j.info.ID).
					Interface("panic", p).
					Str("stack", string(debug.Stack())).
					Msg("Training job panicked")
				err = fmt.Errorf("training panicked: %v", p)
			}
		}()
		result, err = c.execute(c.ctx, j)
		return err
	}()

	c.state.Store(StateIdle)

	if err != nil {
		c.log.Error().Err(err).Str("job_id", j.info.ID).Str("error_kind", domain.KindOf(err)).Msg("Training job failed")
		c.emit(j, domain.StatusError, 0, err.Error(), map[string]interface{}{
			"error_kind": domain.KindOf(err),
		})
		return
	}

	c.log.Info().Str("job_id", j.info.ID).Interface("metrics", result).Msg("Training job completed")
	c.emit(j, domain.StatusCompleted, 100, "Training completed successfully", result)
}

func (c *Coordinator) execute(ctx context.Context, j *job) (map[string]interface{}, error) {
	p := c.pipeline

	c.emit(j, domain.StatusStarting, 0, "Initializing training...", nil)

	c.emit(j, domain.StatusFetchingData, 5, "Fetching entity and event data...", nil)
	entityDocs, err := c.source.ListEntities(ctx)
	if err != nil {
		return nil, wrapSource("list entities", err)
	}
	eventDocs, err := c.source.ListEvents(ctx)
	if err != nil {
		return nil, wrapSource("list events", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.emit(j, domain.StatusPreprocessing, 15, "Preprocessing data...", map[string]interface{}{
		"entities": len(entityDocs),
		"events":   len(eventDocs),
	})
	observations, warnings := p.Normalizer.NormalizeAll(entityDocs)
	events := p.Normalizer.NormalizeEvents(eventDocs)
	observations = p.Index.Apply(observations, events)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.emit(j, domain.StatusCreatingSequences, 25, "Creating training sequences...", nil)
	set, err := p.Windower.Build(observations)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, set.Warnings...)

	c.emit(j, domain.StatusBuildingModel, 30, "Building model...", map[string]interface{}{
		"sequences":       set.Len(),
		"sequence_length": set.SequenceLength,
	})
	opts := riskmodel.DefaultTrainOptions()
	opts.Epochs = j.info.Epochs
	opts.BatchSize = j.info.BatchSize
	opts.ValidationSplit = c.cfg.ValidationSplit

	c.emit(j, domain.StatusTraining, 30, "Training model...", nil)
	res, err := p.Trainer.Train(ctx, set, opts, func(m riskmodel.EpochMetrics) {
		c.emit(j, domain.StatusTraining, 30+m.Epoch*60/m.TotalEpochs,
			fmt.Sprintf("Epoch %d/%d", m.Epoch, m.TotalEpochs),
			map[string]interface{}{
				"epoch":        m.Epoch,
				"total_epochs": m.TotalEpochs,
				"loss":         m.Loss,
				"val_loss":     m.ValLoss,
			})
	})
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	c.emit(j, domain.StatusSaving, 95, "Saving model...", nil)
	metrics := map[string]float64{
		"final_loss":     res.FinalLoss,
		"final_val_loss": res.FinalValLoss,
		"test_mse":       res.TestMSE,
		"test_mae":       res.TestMAE,
	}
	for name, v := range metrics {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("training diverged: %s is %v", name, v)
		}
	}
	bundle, err := riskmodel.NewBundle(res.Model, set.Scaler, set.SequenceLength, p.Normalizer.Schema().Version, metrics, c.clock())
	if err != nil {
		return nil, fmt.Errorf("assemble bundle: %w", err)
	}
	if _, err := p.Store.Save(ctx, bundle); err != nil {
		return nil, fmt.Errorf("save bundle: %w", err)
	}
	p.Holder.Swap(bundle)

	return map[string]interface{}{
		"final_loss":       res.FinalLoss,
		"final_val_loss":   res.FinalValLoss,
		"epochs_completed": res.EpochsCompleted,
		"stopped_early":    res.StoppedEarly,
		"test_mse":         res.TestMSE,
		"test_mae":         res.TestMAE,
		"sequences":        set.Len(),
		"sequence_length":  set.SequenceLength,
		"bundle_version":   bundle.Version,
		"warnings":         warnings,
	}, nil
}

func wrapSource(op string, err error) error {
	var ds *domain.DataSourceError
	if errors.As(err, &ds) {
		return err
	}
	return &domain.DataSourceError{Op: op, Err: err}
}

// emit publishes an event on the job's channel. The channel is sized for the
// whole run; a full channel means an accounting bug and is logged.
func (c *Coordinator) emit(j *job, status string, progress int, message string, details map[string]interface{}) {
	ev := domain.ProgressEvent{
		JobID:    j.info.ID,
		Status:   status,
		Progress: progress,
		Message:  message,
		Details:  details,
		Time:     c.clock(),
	}

	j.mu.Lock()
	j.last = ev
	j.mu.Unlock()

	select {
	case j.events <- ev:
	default:
		c.log.Error().Str("job_id", j.info.ID).Str("status", status).Msg("Progress buffer full")
	}

	c.log.Debug().Str("job_id", j.info.ID).Str("status", status).Int("progress", progress).Msg(message)
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State     string                `json:"state"`
	Job       *JobInfo              `json:"job,omitempty"`
	LastEvent *domain.ProgressEvent `json:"last_event,omitempty"`
}

// Status reports the current state and the most recent job's last event.
func (c *Coordinator) Status() Status {
	st := Status{State: "idle"}
	if c.State() == StateRunning {
		st.State = "running"
	}
	if j := c.current.Load(); j != nil {
		info := j.info
		st.Job = &info
		if last := j.lastEvent(); last.Status != "" {
			st.LastEvent = &last
		}
	}
	return st
}

// Wait blocks until the most recently admitted job finishes.
func (c *Coordinator) Wait(ctx context.Context) error {
	j := c.current.Load()
	if j == nil {
		return nil
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops admitting jobs, cancels the running one between stages and
// waits for it to finish.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.admitMu.Lock()
	c.cancel()
	c.admitMu.Unlock()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
