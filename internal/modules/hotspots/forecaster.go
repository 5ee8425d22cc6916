// Package hotspots ranks locations by predicted risk over a future horizon.
package hotspots

import (
	"fmt"
	"sort"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/domain"
	"github.com/tourguard/riskcast/internal/modules/features"
	"github.com/tourguard/riskcast/internal/modules/riskmodel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MaxHorizon bounds the forecast horizon to one week of hourly steps.
const MaxHorizon = 168

// DefaultHorizon is used when a query omits time_window.
const DefaultHorizon = 24

// Location is a site to forecast. History, when it holds at least
// SequenceLength-1 vectors, provides real trailing context for each window.
type Location struct {
	Lat     float64                `json:"lat"`
	Lng     float64                `json:"lng"`
	Name    string                 `json:"name,omitempty"`
	History []domain.FeatureVector `json:"history,omitempty"`
}

// Forecast is the aggregated prediction for one location.
type Forecast struct {
	Location       Location  `json:"location"`
	AvgRisk        float64   `json:"avg_risk"`
	MaxRisk        float64   `json:"max_risk"`
	RiskTrend      []float64 `json:"risk_trend"`
	TrendSlope     float64   `json:"trend_slope"`
	PeakHourOffset int       `json:"peak_hour_offset"`
}

// Forecaster drives the active model over future hours.
type Forecaster struct {
	holder     *riskmodel.Holder
	normalizer *features.Normalizer
	log        zerolog.Logger
}

// NewForecaster creates a forecaster reading the model from holder.
func NewForecaster(holder *riskmodel.Holder, normalizer *features.Normalizer, log zerolog.Logger) *Forecaster {
	return &Forecaster{
		holder:     holder,
		normalizer: normalizer,
		log:        log.With().Str("component", "hotspot_forecaster").Logger(),
	}
}

// Forecast predicts every location for hour offsets 0..horizon-1 and ranks the
// results by avg_risk descending, keeping input order on ties. Nothing is
// returned unless every prediction succeeds.
func (f *Forecaster) Forecast(locations []Location, horizon int) ([]Forecast, error) {
	if horizon < 1 || horizon > MaxHorizon {
		return nil, &domain.ValidationError{Field: "time_window", Message: fmt.Sprintf("must be between 1 and %d", MaxHorizon)}
	}

	bundle, err := f.holder.Snapshot()
	if err != nil {
		return nil, err
	}

	now := f.normalizer.Now()
	out := make([]Forecast, 0, len(locations))
	for _, loc := range locations {
		fc, err := f.forecastOne(bundle, loc, now, horizon)
		if err != nil {
			return nil, fmt.Errorf("forecast %s: %w", label(loc), err)
		}
		out = append(out, fc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AvgRisk > out[j].AvgRisk
	})

	f.log.Debug().
		Int("locations", len(locations)).
		Int("horizon", horizon).
		Str("bundle", bundle.Version).
		Msg("Forecast hotspots")

	return out, nil
}

func (f *Forecaster) forecastOne(bundle *riskmodel.Bundle, loc Location, now time.Time, horizon int) (Forecast, error) {
	site := domain.LatLng{Lat: loc.Lat, Lng: loc.Lng}
	trend := make([]float64, horizon)
	useHistory := len(loc.History) >= bundle.SequenceLength-1 && bundle.SequenceLength > 1

	for h := 0; h < horizon; h++ {
		v := f.normalizer.VectorAt(site, now.Add(time.Duration(h)*time.Hour), 0)

		var (
			risk float64
			err  error
		)
		if useHistory {
			tail := loc.History[len(loc.History)-(bundle.SequenceLength-1):]
			window := append(append(make([]domain.FeatureVector, 0, bundle.SequenceLength), tail...), v)
			risk, err = bundle.PredictSequence(window)
		} else {
			risk, err = bundle.PredictVector(v)
		}
		if err != nil {
			return Forecast{}, err
		}
		trend[h] = risk
	}

	out := loc
	out.History = nil
	return Forecast{
		Location:       out,
		AvgRisk:        stat.Mean(trend, nil),
		MaxRisk:        floats.Max(trend),
		RiskTrend:      trend,
		TrendSlope:     slope(trend),
		PeakHourOffset: floats.MaxIdx(trend),
	}, nil
}

// slope is the least-squares slope of the trend per hour; 0 for a single point.
func slope(trend []float64) float64 {
	if len(trend) < 2 {
		return 0
	}
	s := talib.LinearRegSlope(trend, len(trend))
	return s[len(s)-1]
}

func label(loc Location) string {
	if loc.Name != "" {
		return loc.Name
	}
	return fmt.Sprintf("(%g, %g)", loc.Lat, loc.Lng)
}
