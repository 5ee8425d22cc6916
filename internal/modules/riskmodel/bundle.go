package riskmodel

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tourguard/riskcast/internal/domain"
	"github.com/tourguard/riskcast/internal/modules/sequences"
	"github.com/vmihailenco/msgpack/v5"
)

// FormatVersion is bumped whenever the bundle layout changes.
const FormatVersion = 1

// ModelState is a serialized model tagged with its kind.
type ModelState struct {
	Kind    string `msgpack:"kind"`
	Payload []byte `msgpack:"payload"`
}

// Bundle is the unit of persistence and swap: scaler, model, column order and
// sequence length always travel together.
type Bundle struct {
	FormatVersion  int                `msgpack:"format_version"`
	Version        string             `msgpack:"version"`
	CreatedAt      time.Time          `msgpack:"created_at"`
	SchemaVersion  int                `msgpack:"schema_version"`
	Columns        []string           `msgpack:"columns"`
	SequenceLength int                `msgpack:"sequence_length"`
	Scaler         *sequences.Scaler  `msgpack:"scaler"`
	Model          ModelState         `msgpack:"model"`
	Metrics        map[string]float64 `msgpack:"metrics"`

	model Model
}

// NewBundle assembles a validated bundle around a trained model.
func NewBundle(model Model, scaler *sequences.Scaler, sequenceLength, schemaVersion int, metrics map[string]float64, now time.Time) (*Bundle, error) {
	payload, err := model.MarshalState()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize model: %w", err)
	}
	columns := make([]string, len(domain.FeatureColumns))
	copy(columns, domain.FeatureColumns)

	b := &Bundle{
		FormatVersion:  FormatVersion,
		Version:        uuid.New().String(),
		CreatedAt:      now.UTC(),
		SchemaVersion:  schemaVersion,
		Columns:        columns,
		SequenceLength: sequenceLength,
		Scaler:         scaler,
		Model:          ModelState{Kind: model.Kind(), Payload: payload},
		Metrics:        metrics,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Encode serializes the bundle.
func (b *Bundle) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bundle %s: %w", b.Version, err)
	}
	return data, nil
}

// DecodeBundle deserializes and validates a bundle. Any partial or mismatched
// bundle is rejected with an ArtifactMismatchError.
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := msgpack.Unmarshal(data, &b); err != nil {
		return nil, &domain.ArtifactMismatchError{Reason: fmt.Sprintf("undecodable bundle: %v", err)}
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks that every part of the bundle agrees with the others and with
// the running column order, and decodes the model.
func (b *Bundle) Validate() error {
	mismatch := func(format string, args ...interface{}) error {
		return &domain.ArtifactMismatchError{Reason: fmt.Sprintf(format, args...)}
	}

	if b.FormatVersion != FormatVersion {
		return mismatch("format version %d, want %d", b.FormatVersion, FormatVersion)
	}
	if b.Version == "" {
		return mismatch("missing version")
	}
	if len(b.Columns) != len(domain.FeatureColumns) {
		return mismatch("bundle has %d columns, want %d", len(b.Columns), len(domain.FeatureColumns))
	}
	for i, c := range domain.FeatureColumns {
		if b.Columns[i] != c {
			return mismatch("column %d is %q, want %q", i, b.Columns[i], c)
		}
	}
	if b.SequenceLength < 1 {
		return mismatch("sequence length %d", b.SequenceLength)
	}
	if b.Scaler == nil {
		return mismatch("missing scaler")
	}
	if err := b.Scaler.Validate(); err != nil {
		return mismatch("%v", err)
	}
	if b.Scaler.Width() != len(b.Columns) {
		return mismatch("scaler width %d, want %d", b.Scaler.Width(), len(b.Columns))
	}

	model, err := DecodeModel(b.Model.Kind, b.Model.Payload)
	if err != nil {
		return mismatch("%v", err)
	}
	if want := b.SequenceLength * len(b.Columns); model.InputWidth() != want {
		return mismatch("model width %d, want %d", model.InputWidth(), want)
	}
	b.model = model
	return nil
}

// Predict runs the bundle's model on a window built with the bundle's scaler.
func (b *Bundle) Predict(window []float64) (float64, error) {
	if b.model == nil {
		return 0, &domain.ArtifactMismatchError{Reason: "bundle was not validated"}
	}
	return b.model.Predict(window)
}

// PredictVector scores a single vector repeated over the bundle's sequence length.
func (b *Bundle) PredictVector(v domain.FeatureVector) (float64, error) {
	return b.Predict(sequences.RepeatWindow(v, b.SequenceLength, b.Scaler))
}

// PredictSequence scores an explicit sequence; it must be exactly SequenceLength long.
func (b *Bundle) PredictSequence(vectors []domain.FeatureVector) (float64, error) {
	if len(vectors) != b.SequenceLength {
		return 0, fmt.Errorf("sequence has %d vectors, bundle expects %d", len(vectors), b.SequenceLength)
	}
	return b.Predict(sequences.WindowFrom(vectors, b.Scaler))
}
