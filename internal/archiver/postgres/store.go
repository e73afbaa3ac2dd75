// Package postgres implements a durable Postgres destination for archived snapshots.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cedarwud/stagegate/internal/archiver"
	"github.com/cedarwud/stagegate/pkg/types"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS snapshots (
    snapshot_id   TEXT PRIMARY KEY,
    stage_id      TEXT NOT NULL,
    status        TEXT NOT NULL,
    quality_score DOUBLE PRECISION,
    data          JSONB NOT NULL,
    timestamp     TIMESTAMPTZ NOT NULL,
    archived_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_snapshots_stage ON snapshots (stage_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON snapshots (timestamp);

CREATE TABLE IF NOT EXISTS archive_cursors (
    name       TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const cursorName = "snapshots"

// Store is a Postgres-backed archival destination.
type Store struct {
	pool *pgxpool.Pool
}

var _ archiver.Destination = (*Store)(nil)

// New creates a new Postgres Store and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate runs the schema DDL to create tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// UpsertSnapshot upserts a snapshot into the snapshots table.
func (s *Store) UpsertSnapshot(ctx context.Context, snap types.ExecutionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO snapshots (snapshot_id, stage_id, status, quality_score, data, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (snapshot_id) DO UPDATE SET
			status        = EXCLUDED.status,
			quality_score = EXCLUDED.quality_score,
			data          = EXCLUDED.data,
			archived_at   = NOW()
	`, snap.SnapshotID, snap.StageID, string(snap.ExecutionStatus),
		snap.QualityMetrics["quality_score"], data, snap.Timestamp)
	return err
}

// GetCursor returns the ID of the last archived snapshot, or "" if none.
func (s *Store) GetCursor(ctx context.Context) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM archive_cursors WHERE name = $1`, cursorName).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// SetCursor records the ID of the last archived snapshot.
func (s *Store) SetCursor(ctx context.Context, snapshotID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO archive_cursors (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			value      = EXCLUDED.value,
			updated_at = NOW()
	`, cursorName, snapshotID)
	return err
}

// QueryStageHistory returns archived snapshot summaries for a stage, most recent first.
func (s *Store) QueryStageHistory(ctx context.Context, stageID string, limit int) ([]types.SnapshotSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT snapshot_id, stage_id, status, COALESCE(quality_score, 0), timestamp
		FROM snapshots
		WHERE stage_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, stageID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []types.SnapshotSummary
	for rows.Next() {
		var sum types.SnapshotSummary
		if err := rows.Scan(&sum.SnapshotID, &sum.StageID, &sum.ExecutionStatus,
			&sum.QualityScore, &sum.Timestamp); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}
