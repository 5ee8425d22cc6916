package riskmodel

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourguard/riskcast/internal/domain"
	"github.com/tourguard/riskcast/internal/modules/sequences"
	"github.com/vmihailenco/msgpack/v5"
)

// syntheticSet returns windows whose target is the mean of the window's first feature.
func syntheticSet(n, length int) *sequences.TrainingSet {
	features := len(domain.FeatureColumns)
	ts := &sequences.TrainingSet{
		SequenceLength: length,
		Features:       features,
		Scaler:         &sequences.Scaler{Min: make([]float64, features), Range: ones(features)},
	}
	for i := 0; i < n; i++ {
		x := float64(i%10) / 10
		window := make([]float64, length*features)
		for r := 0; r < length; r++ {
			window[r*features] = x
		}
		ts.Windows = append(ts.Windows, window)
		ts.Targets = append(ts.Targets, x)
	}
	return ts
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func TestLinearTrainer_ReducesLossAndReportsEpochs(t *testing.T) {
	set := syntheticSet(100, 3)
	opts := DefaultTrainOptions()
	opts.Epochs = 30
	opts.BatchSize = 16

	var epochs []EpochMetrics
	res, err := NewLinearTrainer(zerolog.Nop()).Train(context.Background(), set, opts, func(m EpochMetrics) {
		epochs = append(epochs, m)
	})
	require.NoError(t, err)

	require.NotEmpty(t, epochs)
	assert.Equal(t, len(epochs), res.EpochsCompleted)
	for i, m := range epochs {
		assert.Equal(t, i+1, m.Epoch)
		assert.Equal(t, 30, m.TotalEpochs)
		assert.False(t, math.IsNaN(m.Loss))
	}
	assert.Less(t, epochs[len(epochs)-1].Loss, epochs[0].Loss)
	assert.Equal(t, 20, res.TestSize)
	assert.Equal(t, 64, res.TrainSize)
	assert.Equal(t, 16, res.ValidationSize)
	assert.Equal(t, 21, res.Model.InputWidth())
}

func TestLinearTrainer_DeterministicWithSeed(t *testing.T) {
	set := syntheticSet(40, 2)
	opts := DefaultTrainOptions()
	opts.Epochs = 5

	a, err := NewLinearTrainer(zerolog.Nop()).Train(context.Background(), set, opts, nil)
	require.NoError(t, err)
	b, err := NewLinearTrainer(zerolog.Nop()).Train(context.Background(), set, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Model.(*Linear).Weights, b.Model.(*Linear).Weights)
}

func TestLinearTrainer_SingleWindow(t *testing.T) {
	res, err := NewLinearTrainer(zerolog.Nop()).Train(context.Background(), syntheticSet(1, 1), DefaultTrainOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TestSize)
	assert.Equal(t, 1, res.TrainSize)
	assert.False(t, math.IsNaN(res.FinalValLoss))
}

func TestLinearTrainer_RejectsBadOptions(t *testing.T) {
	opts := DefaultTrainOptions()
	opts.BatchSize = 0
	_, err := NewLinearTrainer(zerolog.Nop()).Train(context.Background(), syntheticSet(10, 1), opts, nil)
	assert.Error(t, err)
}

func TestLinearTrainer_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLinearTrainer(zerolog.Nop()).Train(ctx, syntheticSet(10, 1), DefaultTrainOptions(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinear_PredictInUnitInterval(t *testing.T) {
	m := &Linear{Weights: []float64{100, -100}, Bias: 3}
	for _, w := range [][]float64{{1, 0}, {0, 1}, {0, 0}} {
		p, err := m.Predict(w)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
	_, err := m.Predict([]float64{1})
	assert.Error(t, err)
}

func testBundle(t *testing.T, length int) *Bundle {
	t.Helper()
	features := len(domain.FeatureColumns)
	model := &Linear{Weights: make([]float64, length*features), Bias: 0}
	scaler := &sequences.Scaler{Min: make([]float64, features), Range: ones(features)}
	b, err := NewBundle(model, scaler, length, 1, map[string]float64{"test_mse": 0.01}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return b
}

func TestBundle_RoundTrip(t *testing.T) {
	b := testBundle(t, 4)
	data, err := b.Encode()
	require.NoError(t, err)

	decoded, err := DecodeBundle(data)
	require.NoError(t, err)
	assert.Equal(t, b.Version, decoded.Version)
	assert.Equal(t, 4, decoded.SequenceLength)
	assert.Equal(t, domain.FeatureColumns, decoded.Columns)

	p, err := decoded.PredictVector(domain.FeatureVector{Lat: 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-9)
}

func TestDecodeBundle_RejectsMismatches(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *Bundle)
	}{
		{"format version", func(b *Bundle) { b.FormatVersion = 99 }},
		{"column order", func(b *Bundle) { b.Columns[0], b.Columns[1] = b.Columns[1], b.Columns[0] }},
		{"missing scaler", func(b *Bundle) { b.Scaler = nil }},
		{"scaler width", func(b *Bundle) { b.Scaler = &sequences.Scaler{Min: []float64{0}, Range: []float64{1}} }},
		{"sequence length vs model", func(b *Bundle) { b.SequenceLength = 5 }},
		{"unknown model kind", func(b *Bundle) { b.Model.Kind = "lstm" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBundle(t, 4)
			tt.mutate(b)
			data, err := msgpack.Marshal(b)
			require.NoError(t, err)

			_, err = DecodeBundle(data)
			var mismatch *domain.ArtifactMismatchError
			assert.True(t, errors.As(err, &mismatch), "got %v", err)
		})
	}

	_, err := DecodeBundle([]byte("garbage"))
	assert.Equal(t, domain.KindArtifactMismatch, domain.KindOf(err))
}

func TestBundle_PredictSequenceLength(t *testing.T) {
	b := testBundle(t, 2)
	_, err := b.PredictSequence([]domain.FeatureVector{{}})
	assert.Error(t, err)
	_, err = b.PredictSequence([]domain.FeatureVector{{}, {}})
	assert.NoError(t, err)
}

func TestHolder_NotReadyThenSwap(t *testing.T) {
	h := NewHolder()
	_, err := h.Snapshot()
	assert.ErrorIs(t, err, domain.ErrModelNotReady)
	assert.False(t, h.Ready())

	first := testBundle(t, 2)
	assert.Nil(t, h.Swap(first))
	second := testBundle(t, 3)
	assert.Same(t, first, h.Swap(second))

	snap, err := h.Snapshot()
	require.NoError(t, err)
	assert.Same(t, second, snap)
}

func TestHolder_ConcurrentReadersSeeWholeBundles(t *testing.T) {
	h := NewHolder()
	bundles := []*Bundle{testBundle(t, 2), testBundle(t, 5)}
	h.Swap(bundles[0])

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			h.Swap(bundles[i%2])
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				b, err := h.Snapshot()
				if !assert.NoError(t, err) {
					return
				}
				_, err = b.PredictVector(domain.FeatureVector{})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
