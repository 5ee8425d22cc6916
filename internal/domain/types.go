// Package domain holds the types and errors shared by the riskcast pipeline.
package domain

import "time"

// RawRecord is a schemaless document as returned by the record store.
type RawRecord map[string]interface{}

// LatLng is a coordinate pair; the zero value means "no location".
type LatLng struct {
	Lat float64 `json:"lat" msgpack:"lat"`
	Lng float64 `json:"lng" msgpack:"lng"`
}

// IsZero reports whether the pair is the (0,0) no-location sentinel.
func (p LatLng) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Priority is the ordinal severity of an event.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// FeatureVector is the normalized, fixed-order feature row for one observation.
type FeatureVector struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Hour       int     `json:"hour"`
	DayOfWeek  int     `json:"day_of_week"`
	DayOfMonth int     `json:"day_of_month"`
	Month      int     `json:"month"`
	RiskScore  float64 `json:"risk_score"`
}

// Values returns the vector in canonical column order.
func (v FeatureVector) Values() []float64 {
	return []float64{
		v.Lat,
		v.Lng,
		float64(v.Hour),
		float64(v.DayOfWeek),
		float64(v.DayOfMonth),
		float64(v.Month),
		v.RiskScore,
	}
}

// Location returns the coordinate pair of the vector.
func (v FeatureVector) Location() LatLng {
	return LatLng{Lat: v.Lat, Lng: v.Lng}
}

// FeatureColumns is the canonical column order. Scaler, model and forecaster all depend on it.
var FeatureColumns = []string{"lat", "lng", "hour", "day_of_week", "day_of_month", "month", "risk_score"}

// RiskColumn is the index of the risk_score column, the training target.
const RiskColumn = 6

// Observation is a normalized entity record.
type Observation struct {
	ID        string
	Vector    FeatureVector
	Time      time.Time
	TimeField string // empty when the clock fallback was used
}

// Event is a normalized alert/incident record.
type Event struct {
	ID       string
	Type     string
	Location LatLng
	Time     time.Time
	Priority Priority
}

// ProgressEvent is one status update of a training job.
type ProgressEvent struct {
	JobID    string                 `json:"job_id,omitempty"`
	Status   string                 `json:"status"`
	Progress int                    `json:"progress"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Time     time.Time              `json:"timestamp"`
}

// Progress statuses emitted by the training coordinator.
const (
	StatusStarting          = "starting"
	StatusFetchingData      = "fetching_data"
	StatusPreprocessing     = "preprocessing"
	StatusCreatingSequences = "creating_sequences"
	StatusBuildingModel     = "building_model"
	StatusTraining          = "training"
	StatusSaving            = "saving"
	StatusCompleted         = "completed"
	StatusError             = "error"
)

// Terminal reports whether the event ends a training job.
func (e ProgressEvent) Terminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusError
}
