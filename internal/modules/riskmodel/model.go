// Package riskmodel defines the sequence-regressor boundary, a baseline
// implementation, and the versioned bundle that co-versions model and scaler.
package riskmodel

import (
	"context"
	"fmt"

	"github.com/tourguard/riskcast/internal/modules/sequences"
)

// Model maps one scaled, flattened window to a risk value in [0,1].
type Model interface {
	Kind() string
	InputWidth() int
	Predict(window []float64) (float64, error)
	MarshalState() ([]byte, error)
}

// TrainOptions controls a training run.
type TrainOptions struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64 // fraction of the training split held out for val_loss
	TestSplit       float64 // fraction of all windows held out for final metrics
	Patience        int     // epochs without val_loss improvement before stopping
	LearningRate    float64
	Seed            int64
}

// DefaultTrainOptions mirrors the service defaults.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Epochs:          50,
		BatchSize:       32,
		ValidationSplit: 0.2,
		TestSplit:       0.2,
		Patience:        10,
		LearningRate:    0.5,
		Seed:            42,
	}
}

func (o TrainOptions) validate() error {
	if o.Epochs < 1 {
		return fmt.Errorf("epochs must be positive, got %d", o.Epochs)
	}
	if o.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive, got %d", o.BatchSize)
	}
	if o.ValidationSplit < 0 || o.ValidationSplit >= 1 || o.TestSplit < 0 || o.TestSplit >= 1 {
		return fmt.Errorf("splits must be in [0,1)")
	}
	if o.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}
	return nil
}

// EpochMetrics is reported after every completed epoch.
type EpochMetrics struct {
	Epoch       int // 1-based
	TotalEpochs int
	Loss        float64
	ValLoss     float64
}

// TrainResult summarizes a finished training run.
type TrainResult struct {
	Model           Model
	EpochsCompleted int
	FinalLoss       float64
	FinalValLoss    float64
	TestMSE         float64
	TestMAE         float64
	StoppedEarly    bool
	TrainSize       int
	ValidationSize  int
	TestSize        int
}

// Trainer fits a Model to a training set.
type Trainer interface {
	Train(ctx context.Context, set *sequences.TrainingSet, opts TrainOptions, onEpoch func(EpochMetrics)) (*TrainResult, error)
}

type decoder func(state []byte) (Model, error)

var decoders = map[string]decoder{
	KindLinear: decodeLinear,
}

// DecodeModel restores a model of the given kind from its serialized state.
func DecodeModel(kind string, state []byte) (Model, error) {
	dec, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
	return dec(state)
}
