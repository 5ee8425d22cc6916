package server

import (
	"net/http"

	"github.com/tourguard/riskcast/internal/training"
)

// handleTrain admits a background training job.
// POST /api/ml/train {"epochs": 50, "batch_size": 32}
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req training.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	info, err := s.coordinator.Start(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":    true,
		"message":    "Training started",
		"job_id":     info.ID,
		"epochs":     info.Epochs,
		"batch_size": info.BatchSize,
		"started_at": info.StartedAt,
	})
}

// handleTrainStatus reports the coordinator state and the latest job event.
func (s *Server) handleTrainStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.coordinator.Status())
}
