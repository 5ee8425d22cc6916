package features

import (
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourguard/riskcast/internal/domain"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(SchemaV1, time.UTC, func() time.Time { return fixedNow }, zerolog.Nop())
}

func TestExtractLocation(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name string
		rec  domain.RawRecord
		want domain.LatLng
	}{
		{"nested object", domain.RawRecord{"location": map[string]interface{}{"lat": 26.1, "lng": 91.7}}, domain.LatLng{Lat: 26.1, Lng: 91.7}},
		{"missing location", domain.RawRecord{}, domain.LatLng{}},
		{"missing lng", domain.RawRecord{"location": map[string]interface{}{"lat": 5.0}}, domain.LatLng{Lat: 5}},
		{"string coordinates", domain.RawRecord{"location": map[string]interface{}{"lat": "1.5", "lng": "2.5"}}, domain.LatLng{Lat: 1.5, Lng: 2.5}},
		{"not an object", domain.RawRecord{"location": "somewhere"}, domain.LatLng{}},
		{"nan string", domain.RawRecord{"location": map[string]interface{}{"lat": "NaN", "lng": 2.0}}, domain.LatLng{Lng: 2}},
		{"infinite strings", domain.RawRecord{"location": map[string]interface{}{"lat": "Inf", "lng": "-Infinity"}}, domain.LatLng{}},
		{"nan number", domain.RawRecord{"location": map[string]interface{}{"lat": math.NaN(), "lng": math.Inf(1)}}, domain.LatLng{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.ExtractLocation(tt.rec))
		})
	}
}

func TestNormalize_NonFiniteCoordinatesDefaultToZero(t *testing.T) {
	n := newTestNormalizer()
	obs, warnings := n.Normalize(domain.RawRecord{
		"lastUpdate": "2024-01-01T10:00:00Z",
		"location":   map[string]interface{}{"lat": "NaN", "lng": "Infinity"},
	})

	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "lat")
	assert.Contains(t, warnings[1], "lng")
	assert.Equal(t, 0.0, obs.Vector.Lat)
	assert.Equal(t, 0.0, obs.Vector.Lng)
	for _, v := range obs.Vector.Values() {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}

	e, warnings := n.NormalizeEvent(domain.RawRecord{
		"timestamp": "2024-01-01T10:00:00Z",
		"location":  map[string]interface{}{"lat": 1.0, "lng": "nan"},
	})
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.LatLng{Lat: 1}, e.Location)
}

func TestParseTimestamp_RejectsNonFiniteEpoch(t *testing.T) {
	_, err := ParseTimestamp("NaN")
	assert.Error(t, err)
	_, err = ParseTimestamp(math.Inf(1))
	assert.Error(t, err)
}

func TestNormalize_FirstPresentFieldWins(t *testing.T) {
	n := newTestNormalizer()
	rec := domain.RawRecord{
		"lastSeen":    "2024-01-01T10:00:00Z",
		"checkInDate": "2023-12-31T08:00:00Z",
	}

	obs, warnings := n.Normalize(rec)
	assert.Empty(t, warnings)
	assert.Equal(t, "lastSeen", obs.TimeField)
	assert.Equal(t, 10, obs.Vector.Hour)
	// 2024-01-01 is a Monday
	assert.Equal(t, 0, obs.Vector.DayOfWeek)
	assert.Equal(t, 1, obs.Vector.DayOfMonth)
	assert.Equal(t, 1, obs.Vector.Month)
	assert.Equal(t, 0.0, obs.Vector.RiskScore)
}

func TestNormalize_MissingTimestampUsesClock(t *testing.T) {
	n := newTestNormalizer()
	obs, warnings := n.Normalize(domain.RawRecord{"location": map[string]interface{}{"lat": 1.0, "lng": 1.0}})

	require.Len(t, warnings, 1)
	assert.Equal(t, "", obs.TimeField)
	assert.Equal(t, fixedNow, obs.Time)
	assert.Equal(t, 9, obs.Vector.Hour)
	// 2024-03-15 is a Friday
	assert.Equal(t, 4, obs.Vector.DayOfWeek)
}

func TestNormalize_UnparseableTimestampUsesClock(t *testing.T) {
	n := newTestNormalizer()
	obs, warnings := n.Normalize(domain.RawRecord{"lastUpdate": "not a date", "lastSeen": "2024-01-01T10:00:00Z"})

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "lastUpdate")
	assert.Equal(t, fixedNow, obs.Time)
}

func TestNormalize_EmptyFieldIsSkipped(t *testing.T) {
	n := newTestNormalizer()
	obs, warnings := n.Normalize(domain.RawRecord{"lastUpdate": "", "timestamp": "2024-06-02T23:15:00Z"})

	assert.Empty(t, warnings)
	assert.Equal(t, "timestamp", obs.TimeField)
	assert.Equal(t, 23, obs.Vector.Hour)
	// Sunday
	assert.Equal(t, 6, obs.Vector.DayOfWeek)
}

func TestCalendar_UsesConfiguredTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	n := NewNormalizer(SchemaV1, loc, nil, zerolog.Nop())

	hour, _, _, _ := n.Calendar(time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, hour)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  interface{}
	}{
		{"rfc3339", "2024-01-01T10:00:00Z"},
		{"naive", "2024-01-01T10:00:00"},
		{"space separated", "2024-01-01 10:00:00"},
		{"epoch seconds", float64(want.Unix())},
		{"epoch millis", float64(want.UnixMilli())},
		{"epoch int", want.Unix()},
		{"firestore object", map[string]interface{}{"_seconds": float64(want.Unix()), "_nanoseconds": 0.0}},
		{"time value", want},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %v", got)
		})
	}

	_, err := ParseTimestamp(true)
	assert.Error(t, err)
	_, err = ParseTimestamp(map[string]interface{}{"foo": 1})
	assert.Error(t, err)
}

func TestNormalizeEvent(t *testing.T) {
	n := newTestNormalizer()
	e, warnings := n.NormalizeEvent(domain.RawRecord{
		"type":      "panic",
		"priority":  "High",
		"location":  map[string]interface{}{"lat": 1.0, "lng": 2.0},
		"timestamp": "2024-01-01T10:00:00Z",
	})
	assert.Empty(t, warnings)
	assert.Equal(t, "panic", e.Type)
	assert.Equal(t, domain.PriorityHigh, e.Priority)
	assert.Equal(t, domain.LatLng{Lat: 1, Lng: 2}, e.Location)

	e, _ = n.NormalizeEvent(domain.RawRecord{"priority": "urgent"})
	assert.Equal(t, "unknown", e.Type)
	assert.Equal(t, domain.PriorityLow, e.Priority)
	assert.Equal(t, fixedNow, e.Time)
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, domain.PriorityLow, ParsePriority("low"))
	assert.Equal(t, domain.PriorityMedium, ParsePriority("medium"))
	assert.Equal(t, domain.PriorityCritical, ParsePriority("CRITICAL"))
	assert.Equal(t, domain.PriorityHigh, ParsePriority(2.0))
	assert.Equal(t, domain.PriorityLow, ParsePriority(nil))
	assert.Equal(t, domain.PriorityLow, ParsePriority(9))
}

func TestNormalizeAll_CollectsWarnings(t *testing.T) {
	n := newTestNormalizer()
	obs, warnings := n.NormalizeAll([]domain.RawRecord{
		{"touristId": "a", "lastUpdate": "2024-01-01T10:00:00Z"},
		{"touristId": "b"},
	})
	require.Len(t, obs, 2)
	assert.Equal(t, "a", obs[0].ID)
	assert.Len(t, warnings, 1)
}
