package riskmodel

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/modules/sequences"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// KindLinear identifies the logistic window regressor.
const KindLinear = "linear_sigmoid"

// Linear is sigmoid(w·x + b) over the flattened window.
type Linear struct {
	Weights []float64 `msgpack:"weights"`
	Bias    float64   `msgpack:"bias"`
}

// Kind implements Model.
func (m *Linear) Kind() string { return KindLinear }

// InputWidth implements Model.
func (m *Linear) InputWidth() int { return len(m.Weights) }

// Predict implements Model.
func (m *Linear) Predict(window []float64) (float64, error) {
	if len(window) != len(m.Weights) {
		return 0, fmt.Errorf("window width %d does not match model width %d", len(window), len(m.Weights))
	}
	return sigmoid(floats.Dot(m.Weights, window) + m.Bias), nil
}

// MarshalState implements Model.
func (m *Linear) MarshalState() ([]byte, error) {
	return msgpack.Marshal(m)
}

func (m *Linear) clone() *Linear {
	w := make([]float64, len(m.Weights))
	copy(w, m.Weights)
	return &Linear{Weights: w, Bias: m.Bias}
}

func decodeLinear(state []byte) (Model, error) {
	var m Linear
	if err := msgpack.Unmarshal(state, &m); err != nil {
		return nil, fmt.Errorf("failed to decode linear model: %w", err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("linear model has no weights")
	}
	return &m, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// LinearTrainer fits Linear models with mini-batch gradient descent on squared error.
type LinearTrainer struct {
	log zerolog.Logger
}

// NewLinearTrainer creates a trainer.
func NewLinearTrainer(log zerolog.Logger) *LinearTrainer {
	return &LinearTrainer{log: log.With().Str("component", "linear_trainer").Logger()}
}

// Train implements Trainer. It holds out a shuffled test split, then takes the
// tail of the remaining windows as validation, and stops early on a stalled val_loss,
// restoring the best weights seen.
func (t *LinearTrainer) Train(ctx context.Context, set *sequences.TrainingSet, opts TrainOptions, onEpoch func(EpochMetrics)) (*TrainResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	n := set.Len()
	if n == 0 {
		return nil, fmt.Errorf("training set is empty")
	}
	width := len(set.Windows[0])

	rng := rand.New(rand.NewSource(opts.Seed))
	order := rng.Perm(n)

	testN := int(math.Ceil(float64(n) * opts.TestSplit))
	if testN >= n {
		testN = n - 1
	}
	testIdx, fitIdx := order[:testN], order[testN:]

	trainN := len(fitIdx) - int(math.Round(float64(len(fitIdx))*opts.ValidationSplit))
	if trainN < 1 {
		trainN = 1
	}
	trainIdx, valIdx := fitIdx[:trainN], fitIdx[trainN:]

	model := &Linear{Weights: make([]float64, width)}
	best := model.clone()
	bestVal := math.Inf(1)
	wait := 0

	result := &TrainResult{
		TrainSize:      len(trainIdx),
		ValidationSize: len(valIdx),
		TestSize:       len(testIdx),
	}

	grad := make([]float64, width)
	batch := make([]int, len(trainIdx))
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		copy(batch, trainIdx)
		rng.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })

		for start := 0; start < len(batch); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(batch) {
				end = len(batch)
			}
			t.step(model, set, batch[start:end], grad, opts.LearningRate)
		}

		loss := meanSquaredError(model, set, trainIdx)
		valLoss := loss
		if len(valIdx) > 0 {
			valLoss = meanSquaredError(model, set, valIdx)
		}
		result.EpochsCompleted = epoch + 1
		result.FinalLoss = loss
		result.FinalValLoss = valLoss

		if onEpoch != nil {
			onEpoch(EpochMetrics{Epoch: epoch + 1, TotalEpochs: opts.Epochs, Loss: loss, ValLoss: valLoss})
		}

		if valLoss < bestVal {
			bestVal = valLoss
			best = model.clone()
			wait = 0
		} else if opts.Patience > 0 {
			wait++
			if wait >= opts.Patience {
				result.StoppedEarly = true
				t.log.Info().Int("epoch", epoch+1).Float64("best_val_loss", bestVal).Msg("Early stopping")
				break
			}
		}
	}

	result.Model = best
	evalIdx := testIdx
	if len(evalIdx) == 0 {
		evalIdx = trainIdx
	}
	result.TestMSE, result.TestMAE = evaluate(best, set, evalIdx)

	t.log.Info().
		Int("epochs", result.EpochsCompleted).
		Float64("loss", result.FinalLoss).
		Float64("val_loss", result.FinalValLoss).
		Float64("test_mse", result.TestMSE).
		Float64("test_mae", result.TestMAE).
		Msg("Training finished")

	return result, nil
}

// step applies one gradient update for a batch. d/dz of (p-y)^2 is 2(p-y)p(1-p).
func (t *LinearTrainer) step(m *Linear, set *sequences.TrainingSet, batch []int, grad []float64, lr float64) {
	for i := range grad {
		grad[i] = 0
	}
	gradBias := 0.0
	for _, idx := range batch {
		x := set.Windows[idx]
		p := sigmoid(floats.Dot(m.Weights, x) + m.Bias)
		dz := 2 * (p - set.Targets[idx]) * p * (1 - p)
		floats.AddScaled(grad, dz, x)
		gradBias += dz
	}
	scale := -lr / float64(len(batch))
	floats.AddScaled(m.Weights, scale, grad)
	m.Bias += scale * gradBias
}

func meanSquaredError(m *Linear, set *sequences.TrainingSet, idx []int) float64 {
	mse, _ := evaluate(m, set, idx)
	return mse
}

func evaluate(m *Linear, set *sequences.TrainingSet, idx []int) (mse, mae float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	sq := make([]float64, len(idx))
	abs := make([]float64, len(idx))
	for i, id := range idx {
		p := sigmoid(floats.Dot(m.Weights, set.Windows[id]) + m.Bias)
		d := p - set.Targets[id]
		sq[i] = d * d
		abs[i] = math.Abs(d)
	}
	return stat.Mean(sq, nil), stat.Mean(abs, nil)
}
