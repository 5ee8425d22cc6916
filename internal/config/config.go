// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for the embedded database (always absolute)
	LogLevel  string
	LogPretty bool
	Port      int
	DevMode   bool

	Database  DatabaseConfig
	Pipeline  PipelineConfig
	Training  TrainingConfig
	Artifacts ArtifactConfig

	RetrainSchedule string // cron spec with seconds field; empty disables scheduled retraining
}

// DatabaseConfig selects the record/artifact store backend
type DatabaseConfig struct {
	Driver string // sqlite or postgres
	DSN    string // postgres DSN; sqlite derives its path from DataDir
}

// PipelineConfig holds preprocessing parameters shared by training and inference
type PipelineConfig struct {
	SequenceLength    int
	ProximityDegrees  float64
	ProximityRadiusKm float64 // >0 switches to the haversine predicate
	Timezone          string
}

// TrainingConfig holds the defaults of a training request
type TrainingConfig struct {
	DefaultEpochs     int
	DefaultBatchSize  int
	ValidationSplit   float64
	ProgressHeartbeat time.Duration
}

// ArtifactConfig configures the optional S3 mirror of model bundles
type ArtifactConfig struct {
	S3Bucket    string
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string
}

// MirrorEnabled reports whether bundles should be mirrored to S3
func (a ArtifactConfig) MirrorEnabled() bool {
	return a.S3Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("RISKCAST_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		Port:      getEnvAsInt("PORT", 5001),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:    getEnv("DB_DSN", ""),
		},
		Pipeline: PipelineConfig{
			SequenceLength:    getEnvAsInt("SEQUENCE_LENGTH", 24),
			ProximityDegrees:  getEnvAsFloat("PROXIMITY_DEGREES", 0.01),
			ProximityRadiusKm: getEnvAsFloat("PROXIMITY_RADIUS_KM", 0),
			Timezone:          getEnv("TIMEZONE", "UTC"),
		},
		Training: TrainingConfig{
			DefaultEpochs:     getEnvAsInt("DEFAULT_EPOCHS", 50),
			DefaultBatchSize:  getEnvAsInt("DEFAULT_BATCH_SIZE", 32),
			ValidationSplit:   getEnvAsFloat("VALIDATION_SPLIT", 0.2),
			ProgressHeartbeat: getEnvAsDuration("PROGRESS_HEARTBEAT", time.Second),
		},
		Artifacts: ArtifactConfig{
			S3Bucket:    getEnv("ARTIFACT_S3_BUCKET", ""),
			S3Endpoint:  getEnv("ARTIFACT_S3_ENDPOINT", ""),
			S3Region:    getEnv("ARTIFACT_S3_REGION", "auto"),
			S3AccessKey: getEnv("ARTIFACT_S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("ARTIFACT_S3_SECRET_KEY", ""),
			S3Prefix:    getEnv("ARTIFACT_S3_PREFIX", "riskcast/"),
		},
		RetrainSchedule: getEnv("RETRAIN_SCHEDULE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SQLitePath returns the database file used when the sqlite driver is selected
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "riskcast.db")
}

// Location resolves the configured calendar timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Pipeline.Timezone, err)
	}
	return loc, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Pipeline.SequenceLength < 1 {
		return fmt.Errorf("SEQUENCE_LENGTH must be positive, got %d", c.Pipeline.SequenceLength)
	}
	if c.Pipeline.ProximityDegrees <= 0 {
		return fmt.Errorf("PROXIMITY_DEGREES must be positive")
	}
	if c.Pipeline.ProximityRadiusKm < 0 {
		return fmt.Errorf("PROXIMITY_RADIUS_KM must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Training.DefaultEpochs < 1 || c.Training.DefaultBatchSize < 1 {
		return fmt.Errorf("DEFAULT_EPOCHS and DEFAULT_BATCH_SIZE must be positive")
	}
	if c.Training.ValidationSplit <= 0 || c.Training.ValidationSplit >= 1 {
		return fmt.Errorf("VALIDATION_SPLIT must be in (0,1), got %v", c.Training.ValidationSplit)
	}
	if c.Training.ProgressHeartbeat <= 0 {
		return fmt.Errorf("PROGRESS_HEARTBEAT must be positive")
	}
	if c.Artifacts.MirrorEnabled() && (c.Artifacts.S3AccessKey == "" || c.Artifacts.S3SecretKey == "") {
		return fmt.Errorf("ARTIFACT_S3_ACCESS_KEY and ARTIFACT_S3_SECRET_KEY are required when ARTIFACT_S3_BUCKET is set")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
