package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_ResolvesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("predict: %w", &ModelNotReadyError{})
	assert.Equal(t, KindModelNotReady, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, ErrModelNotReady))

	ds := &DataSourceError{Op: "list entities", Err: errors.New("disk gone")}
	assert.Equal(t, KindDataSource, KindOf(fmt.Errorf("fetch: %w", ds)))
	assert.Equal(t, "disk gone", errors.Unwrap(ds).Error())

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "", KindOf(nil))
}

func TestJobAlreadyRunning_IsIgnoresJobID(t *testing.T) {
	err := &JobAlreadyRunningError{JobID: "abc"}
	assert.True(t, errors.Is(err, ErrJobAlreadyRunning))
	assert.Contains(t, err.Error(), "abc")
}

func TestInsufficientDataError_Message(t *testing.T) {
	err := &InsufficientDataError{Required: 2, Available: 1}
	assert.Equal(t, "could not create any sequences: need at least 2 data points, got 1", err.Error())
	var target *InsufficientDataError
	assert.True(t, errors.As(fmt.Errorf("x: %w", err), &target))
	assert.Equal(t, 2, target.Required)
}

func TestFeatureVector_ValuesFollowColumnOrder(t *testing.T) {
	v := FeatureVector{Lat: 1, Lng: 2, Hour: 3, DayOfWeek: 4, DayOfMonth: 5, Month: 6, RiskScore: 0.7}
	vals := v.Values()
	assert.Len(t, vals, len(FeatureColumns))
	assert.Equal(t, 0.7, vals[RiskColumn])
	assert.Equal(t, "risk_score", FeatureColumns[RiskColumn])
}
