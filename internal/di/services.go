package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/config"
	"github.com/tourguard/riskcast/internal/modules/artifacts"
	"github.com/tourguard/riskcast/internal/modules/features"
	"github.com/tourguard/riskcast/internal/modules/hotspots"
	"github.com/tourguard/riskcast/internal/modules/prediction"
	"github.com/tourguard/riskcast/internal/modules/proximity"
	"github.com/tourguard/riskcast/internal/modules/records"
	"github.com/tourguard/riskcast/internal/modules/riskmodel"
	"github.com/tourguard/riskcast/internal/modules/sequences"
	"github.com/tourguard/riskcast/internal/training"
)

// InitializeServices builds the pipeline, coordinator and prediction service
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Records = records.NewRepository(container.DB, log)

	var store artifacts.Store = artifacts.NewSQLStore(container.DB, log)
	if cfg.Artifacts.MirrorEnabled() {
		objects, err := artifacts.NewS3Objects(ctx, artifacts.S3Config{
			Bucket:    cfg.Artifacts.S3Bucket,
			Endpoint:  cfg.Artifacts.S3Endpoint,
			Region:    cfg.Artifacts.S3Region,
			AccessKey: cfg.Artifacts.S3AccessKey,
			SecretKey: cfg.Artifacts.S3SecretKey,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		store = artifacts.NewMirror(store, objects, cfg.Artifacts.S3Prefix, log)
		log.Info().Str("bucket", cfg.Artifacts.S3Bucket).Msg("Artifact mirror enabled")
	}
	container.Artifacts = store

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	container.Normalizer = features.NewNormalizer(features.SchemaV1, loc, nil, log)

	var predicate proximity.Predicate = proximity.BoxPredicate{Degrees: cfg.Pipeline.ProximityDegrees}
	if cfg.Pipeline.ProximityRadiusKm > 0 {
		predicate = proximity.RadiusPredicate{Km: cfg.Pipeline.ProximityRadiusKm}
	}
	container.Index = proximity.NewIndex(predicate, log)
	container.Windower = sequences.NewWindower(cfg.Pipeline.SequenceLength, log)
	container.Trainer = riskmodel.NewLinearTrainer(log)
	container.Holder = riskmodel.NewHolder()

	container.Coordinator = training.NewCoordinator(container.Records, training.Pipeline{
		Normalizer: container.Normalizer,
		Index:      container.Index,
		Windower:   container.Windower,
		Trainer:    container.Trainer,
		Store:      container.Artifacts,
		Holder:     container.Holder,
	}, training.Config{
		DefaultEpochs:    cfg.Training.DefaultEpochs,
		DefaultBatchSize: cfg.Training.DefaultBatchSize,
		ValidationSplit:  cfg.Training.ValidationSplit,
		Heartbeat:        cfg.Training.ProgressHeartbeat,
	}, log)

	container.Forecaster = hotspots.NewForecaster(container.Holder, container.Normalizer, log)
	container.Predictions = prediction.NewService(container.Holder, container.Normalizer, container.Forecaster, container.Records, log)

	return nil
}

// LoadLatestModel installs the newest saved bundle. A missing or mismatched
// bundle leaves the holder empty so predictions answer model_not_ready.
func LoadLatestModel(ctx context.Context, container *Container, log zerolog.Logger) {
	bundle, err := container.Artifacts.Latest(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load saved model, starting without one")
		return
	}
	if bundle == nil {
		log.Warn().Msg("No trained model found, train the model first")
		return
	}

	container.Holder.Swap(bundle)
	log.Info().
		Str("version", bundle.Version).
		Int("sequence_length", bundle.SequenceLength).
		Time("created_at", bundle.CreatedAt).
		Msg("Model loaded")
}
