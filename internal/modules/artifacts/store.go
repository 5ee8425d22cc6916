// Package artifacts persists model bundles as single versioned blobs.
package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/database"
	"github.com/tourguard/riskcast/internal/modules/riskmodel"
)

// ErrNotFound is returned by Load when no bundle has the requested version.
var ErrNotFound = errors.New("artifact not found")

// Handle identifies a saved bundle.
type Handle struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Size      int       `json:"size"`
}

// Store saves and restores bundles. A bundle is written as one blob so a
// reader never sees a model without its scaler.
type Store interface {
	Save(ctx context.Context, b *riskmodel.Bundle) (Handle, error)
	Load(ctx context.Context, version string) (*riskmodel.Bundle, error)
	// Latest returns the newest bundle, or nil when none has been saved.
	Latest(ctx context.Context) (*riskmodel.Bundle, error)
}

// SQLStore keeps bundles in the artifacts table.
type SQLStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSQLStore creates a database-backed artifact store.
func NewSQLStore(db *database.DB, log zerolog.Logger) *SQLStore {
	return &SQLStore{
		db:  db,
		log: log.With().Str("repo", "artifacts").Logger(),
	}
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, b *riskmodel.Bundle) (Handle, error) {
	payload, err := b.Encode()
	if err != nil {
		return Handle{}, err
	}

	query := s.db.Rebind("INSERT INTO artifacts (version, format_version, created_at, payload) VALUES (?, ?, ?, ?)")
	err = database.WithTransaction(s.db.Conn(), func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query, b.Version, b.FormatVersion, b.CreatedAt.UnixNano(), payload)
		return err
	})
	if err != nil {
		return Handle{}, fmt.Errorf("failed to save bundle %s: %w", b.Version, err)
	}

	s.log.Info().Str("version", b.Version).Int("bytes", len(payload)).Msg("Saved model bundle")
	return Handle{Version: b.Version, CreatedAt: b.CreatedAt, Size: len(payload)}, nil
}

// Load implements Store.
func (s *SQLStore) Load(ctx context.Context, version string) (*riskmodel.Bundle, error) {
	var payload []byte
	query := s.db.Rebind("SELECT payload FROM artifacts WHERE version = ?")
	err := s.db.Conn().GetContext(ctx, &payload, query, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bundle %s: %w", version, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bundle %s: %w", version, err)
	}
	return riskmodel.DecodeBundle(payload)
}

// Latest implements Store.
func (s *SQLStore) Latest(ctx context.Context) (*riskmodel.Bundle, error) {
	var payload []byte
	err := s.db.Conn().GetContext(ctx, &payload, "SELECT payload FROM artifacts ORDER BY created_at DESC, version DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest bundle: %w", err)
	}
	return riskmodel.DecodeBundle(payload)
}

// List returns handles of all saved bundles, newest first.
func (s *SQLStore) List(ctx context.Context) ([]Handle, error) {
	var rows []struct {
		Version   string `db:"version"`
		CreatedAt int64  `db:"created_at"`
		Size      int    `db:"size"`
	}
	err := s.db.Conn().SelectContext(ctx, &rows, "SELECT version, created_at, LENGTH(payload) AS size FROM artifacts ORDER BY created_at DESC, version DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}
	out := make([]Handle, len(rows))
	for i, r := range rows {
		out[i] = Handle{Version: r.Version, CreatedAt: time.Unix(0, r.CreatedAt).UTC(), Size: r.Size}
	}
	return out, nil
}
