// Package prediction answers risk queries against the active model bundle.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/domain"
	"github.com/tourguard/riskcast/internal/modules/features"
	"github.com/tourguard/riskcast/internal/modules/hotspots"
	"github.com/tourguard/riskcast/internal/modules/riskmodel"
)

// Risk levels reported alongside a score.
const (
	LevelLow      = "low"
	LevelMedium   = "medium"
	LevelHigh     = "high"
	LevelCritical = "critical"
)

// RiskLevel buckets a score: <0.3 low, <0.6 medium, <0.8 high, else critical.
func RiskLevel(score float64) string {
	switch {
	case score < 0.3:
		return LevelLow
	case score < 0.6:
		return LevelMedium
	case score < 0.8:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// EntityFinder resolves an entity document by id.
type EntityFinder interface {
	FindEntity(ctx context.Context, id string) (domain.RawRecord, error)
}

// PointQuery is a single-location risk query. Missing calendar fields default from the clock.
type PointQuery struct {
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
	Hour       *int     `json:"hour,omitempty"`
	DayOfWeek  *int     `json:"day_of_week,omitempty"`
	DayOfMonth *int     `json:"day_of_month,omitempty"`
	Month      *int     `json:"month,omitempty"`
}

// PointPrediction is the answer to a PointQuery.
type PointPrediction struct {
	RiskScore float64              `json:"risk_score"`
	RiskLevel string               `json:"risk_level"`
	Features  domain.FeatureVector `json:"features"`
	Bundle    string               `json:"model_version"`
}

// EntityPrediction is the risk of one resolved entity.
type EntityPrediction struct {
	EntityID  string        `json:"entity_id"`
	Name      string        `json:"name,omitempty"`
	Location  domain.LatLng `json:"location"`
	RiskScore float64       `json:"risk_score"`
	RiskLevel string        `json:"risk_level"`
	Timestamp time.Time     `json:"timestamp"`
}

// BatchFailure describes an id skipped by a batch query.
type BatchFailure struct {
	EntityID  string `json:"entity_id"`
	ErrorKind string `json:"error_kind"`
	Error     string `json:"error"`
}

// BatchResult holds the resolved predictions; Total counts only those.
type BatchResult struct {
	Predictions []EntityPrediction `json:"predictions"`
	Total       int                `json:"total"`
	Failures    []BatchFailure     `json:"failures"`
}

// Service answers point, entity and hotspot queries.
type Service struct {
	holder     *riskmodel.Holder
	normalizer *features.Normalizer
	forecaster *hotspots.Forecaster
	entities   EntityFinder
	log        zerolog.Logger
}

// NewService creates the prediction service.
func NewService(holder *riskmodel.Holder, normalizer *features.Normalizer, forecaster *hotspots.Forecaster, entities EntityFinder, log zerolog.Logger) *Service {
	return &Service{
		holder:     holder,
		normalizer: normalizer,
		forecaster: forecaster,
		entities:   entities,
		log:        log.With().Str("component", "prediction_service").Logger(),
	}
}

// PredictPoint scores a single location.
func (s *Service) PredictPoint(q PointQuery) (*PointPrediction, error) {
	if q.Lat == nil || q.Lng == nil {
		return nil, &domain.ValidationError{Field: "lat/lng", Message: "lat and lng are required"}
	}

	v := s.normalizer.VectorAt(domain.LatLng{Lat: *q.Lat, Lng: *q.Lng}, s.normalizer.Now(), 0)
	if err := override(&v.Hour, q.Hour, "hour", 0, 23); err != nil {
		return nil, err
	}
	if err := override(&v.DayOfWeek, q.DayOfWeek, "day_of_week", 0, 6); err != nil {
		return nil, err
	}
	if err := override(&v.DayOfMonth, q.DayOfMonth, "day_of_month", 1, 31); err != nil {
		return nil, err
	}
	if err := override(&v.Month, q.Month, "month", 1, 12); err != nil {
		return nil, err
	}

	bundle, err := s.holder.Snapshot()
	if err != nil {
		return nil, err
	}
	score, err := bundle.PredictVector(v)
	if err != nil {
		return nil, fmt.Errorf("predict point: %w", err)
	}

	return &PointPrediction{
		RiskScore: score,
		RiskLevel: RiskLevel(score),
		Features:  v,
		Bundle:    bundle.Version,
	}, nil
}

func override(dst *int, src *int, field string, lo, hi int) error {
	if src == nil {
		return nil
	}
	if *src < lo || *src > hi {
		return &domain.ValidationError{Field: field, Message: fmt.Sprintf("must be between %d and %d", lo, hi)}
	}
	*dst = *src
	return nil
}

// PredictEntity resolves an entity and scores its latest location and time.
func (s *Service) PredictEntity(ctx context.Context, id string) (*EntityPrediction, error) {
	if id == "" {
		return nil, &domain.ValidationError{Field: "entity_id", Message: "entity_id is required"}
	}
	bundle, err := s.holder.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.predictEntity(ctx, bundle, id)
}

func (s *Service) predictEntity(ctx context.Context, bundle *riskmodel.Bundle, id string) (*EntityPrediction, error) {
	rec, err := s.entities.FindEntity(ctx, id)
	if err != nil {
		return nil, err
	}

	obs, _ := s.normalizer.Normalize(rec)
	score, err := bundle.PredictVector(obs.Vector)
	if err != nil {
		return nil, fmt.Errorf("predict entity %s: %w", id, err)
	}

	name, _ := rec["name"].(string)
	return &EntityPrediction{
		EntityID:  id,
		Name:      name,
		Location:  obs.Vector.Location(),
		RiskScore: score,
		RiskLevel: RiskLevel(score),
		Timestamp: obs.Time,
	}, nil
}

// PredictBatch scores many entities with one bundle snapshot. Ids that do not
// resolve are skipped and listed in Failures; data-source failures abort the batch.
func (s *Service) PredictBatch(ctx context.Context, ids []string) (*BatchResult, error) {
	if len(ids) == 0 {
		return nil, &domain.ValidationError{Field: "entity_ids", Message: "entity_ids is required"}
	}
	bundle, err := s.holder.Snapshot()
	if err != nil {
		return nil, err
	}

	res := &BatchResult{
		Predictions: make([]EntityPrediction, 0, len(ids)),
		Failures:    []BatchFailure{},
	}
	for _, id := range ids {
		p, err := s.predictEntity(ctx, bundle, id)
		var notFound *domain.EntityNotFoundError
		switch {
		case err == nil:
			res.Predictions = append(res.Predictions, *p)
		case errors.As(err, &notFound):
			s.log.Debug().Str("entity", id).Msg("Skipping unresolved entity")
			res.Failures = append(res.Failures, BatchFailure{EntityID: id, ErrorKind: domain.KindOf(err), Error: err.Error()})
		default:
			return nil, err
		}
	}
	res.Total = len(res.Predictions)
	return res, nil
}

// HotspotQuery asks for a ranked forecast over several locations.
type HotspotQuery struct {
	Locations  []hotspots.Location `json:"locations"`
	TimeWindow *int                `json:"time_window,omitempty"`
}

// Hotspots runs the forecaster with the default horizon when none is given.
func (s *Service) Hotspots(q HotspotQuery) ([]hotspots.Forecast, error) {
	if len(q.Locations) == 0 {
		return nil, &domain.ValidationError{Field: "locations", Message: "locations are required"}
	}
	horizon := hotspots.DefaultHorizon
	if q.TimeWindow != nil {
		horizon = *q.TimeWindow
	}
	return s.forecaster.Forecast(q.Locations, horizon)
}
