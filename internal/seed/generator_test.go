package seed

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tourguard/riskcast/internal/modules/features"
	"github.com/tourguard/riskcast/internal/modules/records"
	testutil "github.com/tourguard/riskcast/internal/testing"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestGenerator_Reproducible(t *testing.T) {
	a := NewGenerator(7, now, 30*24*time.Hour)
	b := NewGenerator(7, now, 30*24*time.Hour)

	idA, docA := a.Tourist(1)
	idB, docB := b.Tourist(1)
	assert.Equal(t, "T000001", idA)
	assert.Equal(t, idA, idB)
	assert.Equal(t, docA, docB)
}

func TestGenerator_DocumentsNormalize(t *testing.T) {
	g := NewGenerator(1, now, 7*24*time.Hour)
	n := features.NewNormalizer(features.SchemaV1, time.UTC, testutil.FixedClock(now), zerolog.Nop())

	_, tourist := g.Tourist(3)
	obs, warnings := n.Normalize(tourist)
	assert.Empty(t, warnings)
	assert.False(t, obs.Vector.Location().IsZero())
	assert.Equal(t, "lastUpdate", obs.TimeField)

	_, alert := g.Alert(1, "T000003")
	ev, warnings := n.NormalizeEvent(alert)
	assert.Empty(t, warnings)
	assert.NotEqual(t, "unknown", ev.Type)
	assert.True(t, ev.Time.Before(now) || ev.Time.Equal(now))
}

func TestGenerator_RunWritesRecords(t *testing.T) {
	db := testutil.NewTestDB(t, "seed")
	repo := records.NewRepository(db, zerolog.Nop())
	ctx := context.Background()

	g := NewGenerator(42, now, 7*24*time.Hour)
	require.NoError(t, g.Run(ctx, repo, 20, 10, zerolog.Nop()))

	entities, events, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, entities)
	assert.Equal(t, 10, events)

	_, err = repo.FindEntity(ctx, "T000005")
	assert.NoError(t, err)
}

func TestGenerator_AlertsNeedTourists(t *testing.T) {
	db := testutil.NewTestDB(t, "seed_empty")
	repo := records.NewRepository(db, zerolog.Nop())
	err := NewGenerator(1, now, time.Hour).Run(context.Background(), repo, 0, 3, zerolog.Nop())
	assert.Error(t, err)
}
