package server

import (
	"net/http"
	"time"

	"github.com/tourguard/riskcast/internal/modules/hotspots"
	"github.com/tourguard/riskcast/internal/modules/prediction"
)

// entityRequest accepts the legacy tourist_id spelling as well.
type entityRequest struct {
	EntityID  string `json:"entity_id"`
	TouristID string `json:"tourist_id"`
}

func (r entityRequest) id() string {
	if r.EntityID != "" {
		return r.EntityID
	}
	return r.TouristID
}

type batchRequest struct {
	EntityIDs  []string `json:"entity_ids"`
	TouristIDs []string `json:"tourist_ids"`
}

func (r batchRequest) ids() []string {
	if len(r.EntityIDs) > 0 {
		return r.EntityIDs
	}
	return r.TouristIDs
}

// handlePredictRisk scores one location.
// POST /api/ml/predict/risk {"lat": .., "lng": .., "hour": ..}
func (s *Server) handlePredictRisk(w http.ResponseWriter, r *http.Request) {
	var q prediction.PointQuery
	if err := decodeJSON(r, &q); err != nil {
		s.writeError(w, err)
		return
	}

	p, err := s.predictions.PredictPoint(q)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"risk_score":    p.RiskScore,
		"risk_level":    p.RiskLevel,
		"location":      p.Features.Location(),
		"features":      p.Features,
		"model_version": p.Bundle,
		"timestamp":     s.clock().Format(time.RFC3339),
	})
}

// handlePredictHotspots ranks locations over a forecast horizon.
// POST /api/ml/predict/hotspots {"locations": [...], "time_window": 24}
func (s *Server) handlePredictHotspots(w http.ResponseWriter, r *http.Request) {
	var q prediction.HotspotQuery
	if err := decodeJSON(r, &q); err != nil {
		s.writeError(w, err)
		return
	}

	forecasts, err := s.predictions.Hotspots(q)
	if err != nil {
		s.writeError(w, err)
		return
	}

	window := hotspots.DefaultHorizon
	if q.TimeWindow != nil {
		window = *q.TimeWindow
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"hotspots":          forecasts,
		"time_window_hours": window,
		"timestamp":         s.clock().Format(time.RFC3339),
	})
}

// handlePredictEntity scores one stored entity.
// POST /api/ml/predict/entity {"entity_id": ".."}
func (s *Server) handlePredictEntity(w http.ResponseWriter, r *http.Request) {
	var req entityRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	p, err := s.predictions.PredictEntity(r.Context(), req.id())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"entity_id":   p.EntityID,
		"name":        p.Name,
		"risk_score":  p.RiskScore,
		"risk_level":  p.RiskLevel,
		"location":    p.Location,
		"observed_at": p.Timestamp,
		"timestamp":   s.clock().Format(time.RFC3339),
	})
}

// handlePredictBatch scores many stored entities, skipping unknown ids.
// POST /api/ml/predict/batch {"entity_ids": [..]}
func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.predictions.PredictBatch(r.Context(), req.ids())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"predictions": res.Predictions,
		"total":       res.Total,
		"failures":    res.Failures,
		"timestamp":   s.clock().Format(time.RFC3339),
	})
}
