package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RISKCAST_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5001, cfg.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 24, cfg.Pipeline.SequenceLength)
	assert.Equal(t, 0.01, cfg.Pipeline.ProximityDegrees)
	assert.Equal(t, 50, cfg.Training.DefaultEpochs)
	assert.Equal(t, 32, cfg.Training.DefaultBatchSize)
	assert.Equal(t, time.Second, cfg.Training.ProgressHeartbeat)
	assert.False(t, cfg.Artifacts.MirrorEnabled())
	assert.Contains(t, cfg.SQLitePath(), "riskcast.db")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RISKCAST_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "6000")
	t.Setenv("SEQUENCE_LENGTH", "12")
	t.Setenv("PROGRESS_HEARTBEAT", "250ms")
	t.Setenv("TIMEZONE", "Asia/Kolkata")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Port)
	assert.Equal(t, 12, cfg.Pipeline.SequenceLength)
	assert.Equal(t, 250*time.Millisecond, cfg.Training.ProgressHeartbeat)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("RISKCAST_DATA_DIR", t.TempDir())
	t.Setenv("DEFAULT_EPOCHS", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Training.DefaultEpochs)
}

func TestValidate(t *testing.T) {
	t.Setenv("RISKCAST_DATA_DIR", t.TempDir())
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"zero sequence length", func(c *Config) { c.Pipeline.SequenceLength = 0 }},
		{"split out of range", func(c *Config) { c.Training.ValidationSplit = 1 }},
		{"bad timezone", func(c *Config) { c.Pipeline.Timezone = "Mars/Olympus" }},
		{"bucket without keys", func(c *Config) { c.Artifacts.S3Bucket = "models" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base.Validate())
}
