package sequences

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Scaler is a per-column min-max scaler. It is fitted once on the training matrix
// and reused unchanged for every inference call.
type Scaler struct {
	Min   []float64 `msgpack:"min" json:"min"`
	Range []float64 `msgpack:"range" json:"range"`
}

// FitScaler learns per-column minimum and range from data. Constant columns get range 1.
func FitScaler(data mat.Matrix) *Scaler {
	rows, cols := data.Dims()
	s := &Scaler{
		Min:   make([]float64, cols),
		Range: make([]float64, cols),
	}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, data)
		lo, hi := floats.Min(col), floats.Max(col)
		s.Min[j] = lo
		s.Range[j] = hi - lo
		if s.Range[j] == 0 {
			s.Range[j] = 1
		}
	}
	return s
}

// Width is the number of columns the scaler was fitted on.
func (s *Scaler) Width() int {
	return len(s.Min)
}

// Validate checks the internal consistency of a decoded scaler.
func (s *Scaler) Validate() error {
	if len(s.Min) == 0 || len(s.Min) != len(s.Range) {
		return fmt.Errorf("scaler has %d minimums and %d ranges", len(s.Min), len(s.Range))
	}
	for j, r := range s.Range {
		if r == 0 {
			return fmt.Errorf("scaler column %d has zero range", j)
		}
		if !finite(r) || !finite(s.Min[j]) {
			return fmt.Errorf("scaler column %d is not finite (min %v, range %v)", j, s.Min[j], r)
		}
	}
	return nil
}

// Transform scales every row of data into a new matrix.
func (s *Scaler) Transform(data mat.Matrix) *mat.Dense {
	rows, cols := data.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Min[j]) / s.Range[j]
	}, data)
	return out
}

// TransformRow scales a single row.
func (s *Scaler) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Min[j]) / s.Range[j]
	}
	return out
}

// InverseValue maps a scaled value of column j back to raw units.
func (s *Scaler) InverseValue(j int, v float64) float64 {
	return v*s.Range[j] + s.Min[j]
}

// InverseTransform maps a scaled matrix back to raw units.
func (s *Scaler) InverseTransform(data mat.Matrix) *mat.Dense {
	rows, cols := data.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return s.InverseValue(j, v)
	}, data)
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
