// Package records stores the schemaless entity and event documents the pipeline trains on.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tourguard/riskcast/internal/database"
	"github.com/tourguard/riskcast/internal/domain"
)

// Repository reads and writes documents in the entities and events tables.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a record repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "records").Logger(),
	}
}

type docRow struct {
	DocID string `db:"doc_id"`
	Doc   []byte `db:"doc"`
}

// ListEntities returns every entity document.
func (r *Repository) ListEntities(ctx context.Context) ([]domain.RawRecord, error) {
	return r.list(ctx, "list entities", "SELECT doc_id, doc FROM entities ORDER BY updated_at, doc_id")
}

// ListEvents returns every event document.
func (r *Repository) ListEvents(ctx context.Context) ([]domain.RawRecord, error) {
	return r.list(ctx, "list events", "SELECT doc_id, doc FROM events ORDER BY created_at, doc_id")
}

func (r *Repository) list(ctx context.Context, op, query string) ([]domain.RawRecord, error) {
	var rows []docRow
	if err := r.db.Conn().SelectContext(ctx, &rows, query); err != nil {
		return nil, &domain.DataSourceError{Op: op, Err: err}
	}

	out := make([]domain.RawRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeDoc(row)
		if err != nil {
			return nil, &domain.DataSourceError{Op: op, Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

// FindEntity resolves an entity by document id or external id.
func (r *Repository) FindEntity(ctx context.Context, id string) (domain.RawRecord, error) {
	var row docRow
	query := r.db.Rebind("SELECT doc_id, doc FROM entities WHERE doc_id = ? OR external_id = ? ORDER BY doc_id LIMIT 1")
	err := r.db.Conn().GetContext(ctx, &row, query, id, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.EntityNotFoundError{ID: id}
	}
	if err != nil {
		return nil, &domain.DataSourceError{Op: "find entity", Err: err}
	}

	rec, err := decodeDoc(row)
	if err != nil {
		return nil, &domain.DataSourceError{Op: "find entity", Err: err}
	}
	return rec, nil
}

// UpsertEntity inserts or replaces an entity document.
func (r *Repository) UpsertEntity(ctx context.Context, docID, externalID string, doc domain.RawRecord) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode entity %s: %w", docID, err)
	}
	query := r.db.Rebind(`
		INSERT INTO entities (doc_id, external_id, doc, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (doc_id) DO UPDATE SET
			external_id = excluded.external_id,
			doc = excluded.doc,
			updated_at = excluded.updated_at
	`)
	if _, err := r.db.Conn().ExecContext(ctx, query, docID, externalID, string(payload), time.Now().Unix()); err != nil {
		return &domain.DataSourceError{Op: "upsert entity", Err: err}
	}
	return nil
}

// UpsertEvent inserts or replaces an event document.
func (r *Repository) UpsertEvent(ctx context.Context, docID string, doc domain.RawRecord) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", docID, err)
	}
	query := r.db.Rebind(`
		INSERT INTO events (doc_id, doc, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (doc_id) DO UPDATE SET
			doc = excluded.doc
	`)
	if _, err := r.db.Conn().ExecContext(ctx, query, docID, string(payload), time.Now().Unix()); err != nil {
		return &domain.DataSourceError{Op: "upsert event", Err: err}
	}
	return nil
}

// Counts returns the number of stored entities and events.
func (r *Repository) Counts(ctx context.Context) (entities, events int, err error) {
	if err := r.db.Conn().GetContext(ctx, &entities, "SELECT COUNT(*) FROM entities"); err != nil {
		return 0, 0, &domain.DataSourceError{Op: "count entities", Err: err}
	}
	if err := r.db.Conn().GetContext(ctx, &events, "SELECT COUNT(*) FROM events"); err != nil {
		return 0, 0, &domain.DataSourceError{Op: "count events", Err: err}
	}
	return entities, events, nil
}

func decodeDoc(row docRow) (domain.RawRecord, error) {
	var rec domain.RawRecord
	if err := json.Unmarshal(row.Doc, &rec); err != nil {
		return nil, fmt.Errorf("document %s is not a JSON object: %w", row.DocID, err)
	}
	if rec == nil {
		rec = domain.RawRecord{}
	}
	if _, ok := rec["id"]; !ok {
		rec["id"] = row.DocID
	}
	return rec, nil
}
