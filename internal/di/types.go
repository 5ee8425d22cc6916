package di

import (
	"github.com/tourguard/riskcast/internal/database"
	"github.com/tourguard/riskcast/internal/modules/artifacts"
	"github.com/tourguard/riskcast/internal/modules/features"
	"github.com/tourguard/riskcast/internal/modules/hotspots"
	"github.com/tourguard/riskcast/internal/modules/prediction"
	"github.com/tourguard/riskcast/internal/modules/proximity"
	"github.com/tourguard/riskcast/internal/modules/records"
	"github.com/tourguard/riskcast/internal/modules/riskmodel"
	"github.com/tourguard/riskcast/internal/modules/sequences"
	"github.com/tourguard/riskcast/internal/scheduler"
	"github.com/tourguard/riskcast/internal/training"
)

// Container holds all application dependencies
type Container struct {
	// Database
	DB *database.DB

	// Repositories and stores
	Records   *records.Repository
	Artifacts artifacts.Store

	// Pipeline
	Normalizer *features.Normalizer
	Index      *proximity.Index
	Windower   *sequences.Windower
	Trainer    riskmodel.Trainer

	// Model and services
	Holder      *riskmodel.Holder
	Coordinator *training.Coordinator
	Forecaster  *hotspots.Forecaster
	Predictions *prediction.Service
}

// JobInstances holds the scheduler jobs
type JobInstances struct {
	Retrain       *scheduler.RetrainJob
	CheckDatabase *scheduler.CheckDatabaseJob
}

// Close releases the container's database connection
func (c *Container) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
