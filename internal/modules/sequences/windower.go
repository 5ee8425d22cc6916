// Package sequences builds fixed-length training windows from normalized observations.
package sequences

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// TrainingSet holds the windows, targets and the scaler fitted to produce them.
type TrainingSet struct {
	// Windows are flattened row-major SequenceLength x Features slices in scaled space.
	Windows        [][]float64
	Targets        []float64
	SequenceLength int
	Features       int
	Scaler         *Scaler
	Warnings       []string
}

// Len is the number of windows.
func (ts *TrainingSet) Len() int {
	return len(ts.Windows)
}

// Windower slices a time-ordered corpus into overlapping windows.
type Windower struct {
	length int
	log    zerolog.Logger
}

// NewWindower creates a windower with the configured sequence length.
func NewWindower(length int, log zerolog.Logger) *Windower {
	if length < 1 {
		length = 1
	}
	return &Windower{
		length: length,
		log:    log.With().Str("component", "sequence_windower").Logger(),
	}
}

// Length returns the configured sequence length.
func (w *Windower) Length() int {
	return w.length
}

// Order sorts observations by time. Records without a real timestamp keep their
// clock fallback time; when no record has one the input order is kept.
func (w *Windower) Order(obs []domain.Observation) ([]domain.Observation, []string) {
	sorted := make([]domain.Observation, len(obs))
	copy(sorted, obs)

	timed := 0
	for _, o := range sorted {
		if o.TimeField != "" {
			timed++
		}
	}
	if timed == 0 && len(sorted) > 0 {
		msg := "no record has a timestamp field; using input order"
		w.log.Warn().Int("records", len(sorted)).Msg(msg)
		return sorted, []string{msg}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return sorted, nil
}

// EffectiveLength returns the window length used for a corpus of n vectors.
// When n < L+1 the length shrinks to max(1, n/2).
func (w *Windower) EffectiveLength(n int) int {
	if n >= w.length+1 {
		return w.length
	}
	l := n / 2
	if l < 1 {
		l = 1
	}
	return l
}

// Build orders the corpus, fits the scaler on the full matrix and emits N-L windows.
// The target of window i is the scaled risk score of vector i+L.
func (w *Windower) Build(obs []domain.Observation) (*TrainingSet, error) {
	ordered, warnings := w.Order(obs)
	n := len(ordered)
	features := len(domain.FeatureColumns)

	l := w.EffectiveLength(n)
	if l != w.length {
		msg := fmt.Sprintf("only %d data points for sequence length %d; using sequence length %d", n, w.length, l)
		w.log.Warn().Int("available", n).Int("configured", w.length).Int("effective", l).Msg("Shrinking sequence length")
		warnings = append(warnings, msg)
	}

	if n-l <= 0 {
		return nil, &domain.InsufficientDataError{Required: l + 1, Available: n}
	}

	raw := mat.NewDense(n, features, nil)
	for i, o := range ordered {
		values := o.Vector.Values()
		for j, v := range values {
			if !finite(v) {
				return nil, &domain.ValidationError{
					Field:   domain.FeatureColumns[j],
					Message: fmt.Sprintf("record %q has non-finite value %v", o.ID, v),
				}
			}
		}
		raw.SetRow(i, values)
	}
	scaler := FitScaler(raw)
	if err := scaler.Validate(); err != nil {
		return nil, &domain.ValidationError{Field: "features", Message: err.Error()}
	}
	scaled := scaler.Transform(raw)

	count := n - l
	ts := &TrainingSet{
		Windows:        make([][]float64, count),
		Targets:        make([]float64, count),
		SequenceLength: l,
		Features:       features,
		Scaler:         scaler,
		Warnings:       warnings,
	}
	for i := 0; i < count; i++ {
		window := make([]float64, 0, l*features)
		for r := i; r < i+l; r++ {
			window = append(window, scaled.RawRowView(r)...)
		}
		ts.Windows[i] = window
		ts.Targets[i] = scaled.At(i+l, domain.RiskColumn)
	}

	w.log.Info().
		Int("vectors", n).
		Int("windows", count).
		Int("sequence_length", l).
		Msg("Built training windows")

	return ts, nil
}

// WindowFrom scales and flattens an explicit sequence of vectors.
func WindowFrom(vectors []domain.FeatureVector, scaler *Scaler) []float64 {
	window := make([]float64, 0, len(vectors)*scaler.Width())
	for _, v := range vectors {
		window = append(window, scaler.TransformRow(v.Values())...)
	}
	return window
}

// RepeatWindow builds a window that repeats a single vector length times.
func RepeatWindow(v domain.FeatureVector, length int, scaler *Scaler) []float64 {
	vectors := make([]domain.FeatureVector, length)
	for i := range vectors {
		vectors[i] = v
	}
	return WindowFrom(vectors, scaler)
}
