// Package storage persists the upload journal: one record per
// completed send operation.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Algernon72/PDF2PACS/internal/models"
)

// SendJournal records send outcomes and lists the recent ones. The
// Postgres store and the in-memory fallback both satisfy it; handlers
// depend on the interface so tests can substitute their own.
type SendJournal interface {
	RecordSend(ctx context.Context, rec models.SendRecord) error
	ListRecent(ctx context.Context, limit int) ([]models.SendRecord, error)
	Ping(ctx context.Context) error
}

// Store is the Postgres-backed journal.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store over an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("database pool cannot be nil")
	}
	return &Store{pool: pool}
}

// RecordSend inserts one journal row.
func (s *Store) RecordSend(ctx context.Context, rec models.SendRecord) error {
	query := `
        INSERT INTO send_log (study_instance_uid, patient_id, instance_count, ok, message, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := s.pool.Exec(ctx, query,
		rec.StudyUID, rec.PatientID, rec.Instances, rec.OK, rec.Message, rec.CreatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record send", "studyUID", rec.StudyUID, "error", err)
		return fmt.Errorf("record send: %w", err)
	}
	slog.DebugContext(ctx, "recorded send", "studyUID", rec.StudyUID, "ok", rec.OK)
	return nil
}

// ListRecent returns up to limit records, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]models.SendRecord, error) {
	query := `
        SELECT study_instance_uid, patient_id, instance_count, ok, message, created_at
        FROM send_log
        ORDER BY created_at DESC
        LIMIT $1
    `
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent sends: %w", err)
	}
	defer rows.Close()

	var records []models.SendRecord
	for rows.Next() {
		var rec models.SendRecord
		if err := rows.Scan(&rec.StudyUID, &rec.PatientID, &rec.Instances, &rec.OK, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan send record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate send records: %w", err)
	}
	return records, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
