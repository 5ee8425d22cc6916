package sequences

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourguard/riskcast/internal/domain"
	"gonum.org/v1/gonum/mat"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func corpus(n int) []domain.Observation {
	obs := make([]domain.Observation, n)
	for i := 0; i < n; i++ {
		at := t0.Add(time.Duration(i) * time.Hour)
		obs[i] = domain.Observation{
			Vector: domain.FeatureVector{
				Lat: 10 + float64(i), Lng: 20, Hour: at.Hour(), DayOfWeek: 0, DayOfMonth: 1, Month: 1,
				RiskScore: float64(i) / float64(n),
			},
			Time:      at,
			TimeField: "lastUpdate",
		}
	}
	return obs
}

func TestBuild_WindowCountAndTargets(t *testing.T) {
	w := NewWindower(3, zerolog.Nop())
	ts, err := w.Build(corpus(10))
	require.NoError(t, err)

	assert.Equal(t, 7, ts.Len())
	assert.Equal(t, 3, ts.SequenceLength)
	assert.Len(t, ts.Windows[0], 3*len(domain.FeatureColumns))
	assert.Empty(t, ts.Warnings)

	// risk column scales to i/9 over 0..9, target of window i is vector i+3
	for i, target := range ts.Targets {
		assert.InDelta(t, float64(i+3)/9, target, 1e-9)
	}
}

func TestBuild_ShrinksLength(t *testing.T) {
	w := NewWindower(24, zerolog.Nop())
	ts, err := w.Build(corpus(10))
	require.NoError(t, err)

	assert.Equal(t, 5, ts.SequenceLength)
	assert.Equal(t, 5, ts.Len())
	require.Len(t, ts.Warnings, 1)
	assert.Contains(t, ts.Warnings[0], "using sequence length 5")
}

func TestBuild_ExactlyLPlusOne(t *testing.T) {
	w := NewWindower(4, zerolog.Nop())
	ts, err := w.Build(corpus(5))
	require.NoError(t, err)
	assert.Equal(t, 1, ts.Len())
	assert.Equal(t, 4, ts.SequenceLength)
}

func TestBuild_InsufficientData(t *testing.T) {
	w := NewWindower(24, zerolog.Nop())

	for _, n := range []int{0, 1} {
		_, err := w.Build(corpus(n))
		var insufficient *domain.InsufficientDataError
		require.True(t, errors.As(err, &insufficient), "n=%d", n)
		assert.Equal(t, 2, insufficient.Required)
		assert.Equal(t, n, insufficient.Available)
	}

	ts, err := w.Build(corpus(2))
	require.NoError(t, err)
	assert.Equal(t, 1, ts.SequenceLength)
	assert.Equal(t, 1, ts.Len())
}

func TestOrder_SortsByTime(t *testing.T) {
	w := NewWindower(2, zerolog.Nop())
	obs := corpus(4)
	shuffled := []domain.Observation{obs[2], obs[0], obs[3], obs[1]}

	ordered, warnings := w.Order(shuffled)
	assert.Empty(t, warnings)
	for i := range ordered {
		assert.Equal(t, obs[i].Time, ordered[i].Time)
	}
}

func TestOrder_NoTimestampsKeepsInputOrder(t *testing.T) {
	w := NewWindower(2, zerolog.Nop())
	obs := corpus(3)
	for i := range obs {
		obs[i].TimeField = ""
		obs[i].Time = t0
	}
	obs[0].Vector.Lat = 99

	ordered, warnings := w.Order(obs)
	assert.Len(t, warnings, 1)
	assert.Equal(t, 99.0, ordered[0].Vector.Lat)
}

func TestScaler_FitTransform(t *testing.T) {
	data := mat.NewDense(3, 2, []float64{
		0, 5,
		5, 5,
		10, 5,
	})
	s := FitScaler(data)
	require.NoError(t, s.Validate())
	assert.Equal(t, []float64{0, 5}, s.Min)
	assert.Equal(t, []float64{10, 1}, s.Range)

	scaled := s.Transform(data)
	assert.Equal(t, 0.5, scaled.At(1, 0))
	assert.Equal(t, 0.0, scaled.At(2, 1), "constant column maps to 0")

	assert.Equal(t, []float64{2, 1}, s.TransformRow([]float64{20, 6}))
	assert.Equal(t, 7.5, s.InverseValue(0, 0.75))
}

func TestScaler_ValidateRejectsNonFinite(t *testing.T) {
	s := &Scaler{Min: []float64{0, math.NaN()}, Range: []float64{1, 1}}
	assert.Error(t, s.Validate())

	s = &Scaler{Min: []float64{0, 0}, Range: []float64{1, math.Inf(1)}}
	assert.Error(t, s.Validate())
}

func TestBuild_RejectsNonFiniteFeatures(t *testing.T) {
	w := NewWindower(3, zerolog.Nop())
	obs := corpus(10)
	obs[4].Vector.Lat = math.NaN()

	_, err := w.Build(obs)
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestRepeatWindow(t *testing.T) {
	s := &Scaler{Min: make([]float64, 7), Range: []float64{1, 1, 1, 1, 1, 1, 1}}
	v := domain.FeatureVector{Lat: 1, Lng: 2, Hour: 3}
	window := RepeatWindow(v, 4, s)

	require.Len(t, window, 28)
	assert.Equal(t, window[:7], window[21:])
	assert.Equal(t, 3.0, window[2])
}

func TestScaler_RoundTrip(t *testing.T) {
	data := mat.NewDense(4, 3, []float64{
		26.14, 91.73, 0,
		26.18, 91.70, 0.4,
		27.00, 92.10, 1,
		26.50, 91.90, 0.1,
	})
	s := FitScaler(data)
	back := s.InverseTransform(s.Transform(data))
	assert.True(t, mat.EqualApprox(data, back, 1e-12))
}
