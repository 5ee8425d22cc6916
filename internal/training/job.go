package training

import (
	"sync"
	"time"

	"github.com/tourguard/riskcast/internal/domain"
)

// stageEvents is the number of non-epoch events a job can emit:
// starting, fetching_data, preprocessing, creating_sequences, building_model,
// training, saving and one terminal event.
const stageEvents = 8

// Request configures a training run.
type Request struct {
	Epochs    int `json:"epochs"`
	BatchSize int `json:"batch_size"`
}

// JobInfo is the acknowledgment returned on admission.
type JobInfo struct {
	ID        string    `json:"job_id"`
	Epochs    int       `json:"epochs"`
	BatchSize int       `json:"batch_size"`
	StartedAt time.Time `json:"started_at"`
}

// job carries one run's progress channel. The channel holds every event the
// run can produce, so the producer never blocks and nothing is dropped.
type job struct {
	info   JobInfo
	events chan domain.ProgressEvent
	done   chan struct{}

	mu   sync.Mutex
	last domain.ProgressEvent
}

func newJob(info JobInfo) *job {
	return &job{
		info:   info,
		events: make(chan domain.ProgressEvent, info.Epochs+stageEvents),
		done:   make(chan struct{}),
	}
}

func (j *job) lastEvent() domain.ProgressEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

func (j *job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// drained reports whether the job is over and its consumer has read every event.
func (j *job) drained() bool {
	return j.finished() && len(j.events) == 0
}
