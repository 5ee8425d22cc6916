package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/tourguard/riskcast/internal/domain"
)

const serviceName = "riskcast"

// handleRoot describes the service and its endpoints.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": serviceName,
		"version": "1.0.0",
		"status":  "running",
		"endpoints": map[string]string{
			"health":            "/api/ml/health",
			"train":             "/api/ml/train (POST)",
			"train_status":      "/api/ml/train/status",
			"train_progress":    "/api/ml/train/progress (SSE)",
			"train_progress_ws": "/api/ml/train/progress/ws (websocket)",
			"predict_risk":      "/api/ml/predict/risk (POST)",
			"predict_hotspots":  "/api/ml/predict/hotspots (POST)",
			"predict_entity":    "/api/ml/predict/entity (POST)",
			"predict_batch":     "/api/ml/predict/batch (POST)",
		},
		"model_loaded": s.holder.Ready(),
		"timestamp":    s.clock().Format(time.RFC3339),
	})
}

// handleHealth handles liveness checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": serviceName,
	})
}

// handleMLHealth reports model, coordinator, store and host state.
func (s *Server) handleMLHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":       "healthy",
		"model_loaded": s.holder.Ready(),
		"training":     s.coordinator.Status().State,
		"timestamp":    s.clock().Format(time.RFC3339),
	}

	if bundle, err := s.holder.Snapshot(); err == nil {
		response["model"] = map[string]interface{}{
			"version":         bundle.Version,
			"kind":            bundle.Model.Kind,
			"created_at":      bundle.CreatedAt,
			"sequence_length": bundle.SequenceLength,
			"metrics":         bundle.Metrics,
		}
	}

	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("Record store health check failed")
			response["status"] = "degraded"
			response["database"] = err.Error()
		} else {
			response["database"] = "ok"
		}
	}

	cpuPercent, memPercent := s.systemStats()
	response["system"] = map[string]float64{
		"cpu_percent": cpuPercent,
		"ram_percent": memPercent,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// hostStats returns CPU and RAM usage percentages, sampling CPU over 100ms.
func (s *Server) hostStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindEntityNotFound:
		return http.StatusNotFound
	case domain.KindJobAlreadyRunning, domain.KindArtifactMismatch:
		// A mismatched bundle conflicts with the running schema; retraining resolves it.
		return http.StatusConflict
	case domain.KindInsufficientData:
		return http.StatusUnprocessableEntity
	case domain.KindDataSource:
		return http.StatusBadGateway
	case domain.KindModelNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the standard failure body for err.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
	}
	s.writeJSON(w, status, map[string]interface{}{
		"success":    false,
		"error_kind": domain.KindOf(err),
		"error":      err.Error(),
	})
}

// decodeJSON reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return &domain.ValidationError{Message: "invalid JSON body: " + err.Error()}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
