package hotspots

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourguard/riskcast/internal/domain"
	"github.com/tourguard/riskcast/internal/modules/features"
	"github.com/tourguard/riskcast/internal/modules/riskmodel"
	"github.com/tourguard/riskcast/internal/modules/sequences"
)

var now = time.Date(2024, 5, 6, 22, 0, 0, 0, time.UTC)

// latBundle weights only the lat column (and, with hourWeight, the hour column).
func latBundle(t *testing.T, length int, hourWeight float64) *riskmodel.Bundle {
	t.Helper()
	features := len(domain.FeatureColumns)
	weights := make([]float64, length*features)
	for r := 0; r < length; r++ {
		weights[r*features] = 2
		weights[r*features+2] = hourWeight
	}
	rng := make([]float64, features)
	for i := range rng {
		rng[i] = 1
	}
	rng[2] = 23
	b, err := riskmodel.NewBundle(
		&riskmodel.Linear{Weights: weights, Bias: -1},
		&sequences.Scaler{Min: make([]float64, features), Range: rng},
		length, 1, nil, now,
	)
	require.NoError(t, err)
	return b
}

func newForecaster(t *testing.T, b *riskmodel.Bundle) *Forecaster {
	holder := riskmodel.NewHolder()
	if b != nil {
		holder.Swap(b)
	}
	n := features.NewNormalizer(features.SchemaV1, time.UTC, func() time.Time { return now }, zerolog.Nop())
	return NewForecaster(holder, n, zerolog.Nop())
}

func TestForecast_ThreeLocationsRanked(t *testing.T) {
	f := newForecaster(t, latBundle(t, 4, 0))
	locs := []Location{
		{Lat: 0.1, Lng: 1, Name: "low"},
		{Lat: 0.5, Lng: 1, Name: "high"},
		{Lat: 0.3, Lng: 1, Name: "mid"},
	}

	out, err := f.Forecast(locs, 24)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, []string{"high", "mid", "low"}, []string{out[0].Location.Name, out[1].Location.Name, out[2].Location.Name})
	for i, fc := range out {
		assert.Len(t, fc.RiskTrend, 24)
		assert.GreaterOrEqual(t, fc.MaxRisk, fc.AvgRisk)
		if i > 0 {
			assert.GreaterOrEqual(t, out[i-1].AvgRisk, fc.AvgRisk)
		}
	}
}

func TestForecast_TiesKeepInputOrder(t *testing.T) {
	f := newForecaster(t, latBundle(t, 2, 0))
	locs := []Location{
		{Lat: 0.2, Lng: 1, Name: "first"},
		{Lat: 0.2, Lng: 1, Name: "second"},
		{Lat: 0.2, Lng: 1, Name: "third"},
	}

	out, err := f.Forecast(locs, 3)
	require.NoError(t, err)
	assert.Equal(t, "first", out[0].Location.Name)
	assert.Equal(t, "second", out[1].Location.Name)
	assert.Equal(t, "third", out[2].Location.Name)
}

func TestForecast_TrendFollowsClockHours(t *testing.T) {
	f := newForecaster(t, latBundle(t, 2, 1))

	out, err := f.Forecast([]Location{{Lat: 0.2, Lng: 1}}, 4)
	require.NoError(t, err)
	trend := out[0].RiskTrend

	// hours 22, 23, 0, 1: risk rises, drops at midnight, then rises again
	assert.Greater(t, trend[1], trend[0])
	assert.Less(t, trend[2], trend[1])
	assert.Greater(t, trend[3], trend[2])
	assert.Equal(t, 1, out[0].PeakHourOffset)
}

func TestForecast_SlopeSign(t *testing.T) {
	f := newForecaster(t, latBundle(t, 2, 1))
	now = time.Date(2024, 5, 6, 2, 0, 0, 0, time.UTC)
	defer func() { now = time.Date(2024, 5, 6, 22, 0, 0, 0, time.UTC) }()

	out, err := f.Forecast([]Location{{Lat: 0.2, Lng: 1}}, 6)
	require.NoError(t, err)
	assert.Positive(t, out[0].TrendSlope)
}

func TestForecast_ModelNotReady(t *testing.T) {
	f := newForecaster(t, nil)
	out, err := f.Forecast([]Location{{Lat: 1, Lng: 1}}, 24)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, domain.ErrModelNotReady))
}

func TestForecast_InvalidHorizon(t *testing.T) {
	f := newForecaster(t, latBundle(t, 2, 0))
	for _, h := range []int{0, -1, MaxHorizon + 1} {
		_, err := f.Forecast([]Location{{Lat: 1, Lng: 1}}, h)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err), "horizon %d", h)
	}
}

func TestForecast_UsesHistoryWhenLongEnough(t *testing.T) {
	f := newForecaster(t, latBundle(t, 3, 0))
	history := []domain.FeatureVector{{Lat: 0.9, Lng: 1}, {Lat: 0.9, Lng: 1}}

	plain, err := f.Forecast([]Location{{Lat: 0.1, Lng: 1}}, 1)
	require.NoError(t, err)
	withHistory, err := f.Forecast([]Location{{Lat: 0.1, Lng: 1, History: history}}, 1)
	require.NoError(t, err)

	assert.Greater(t, withHistory[0].AvgRisk, plain[0].AvgRisk)
	assert.Nil(t, withHistory[0].Location.History)
}
