package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"fleet-platform/internal/workflow"
	"fleet-platform/pkg/utils"
)

// Schema creates the service_requests table. The record lives in doc; the other
// columns are projections for filtering and the version guard.
const Schema = `
CREATE TABLE IF NOT EXISTS service_requests (
	id          TEXT PRIMARY KEY,
	code        TEXT NOT NULL,
	cost_center TEXT NOT NULL,
	stage       TEXT NOT NULL,
	doc         JSONB NOT NULL,
	version     BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS service_requests_cost_center_idx ON service_requests (cost_center, created_at);
`

// PostgresStore keeps records as JSONB rows. Update locks the row, merges the
// patch in Go and writes back guarded by the version column.
type PostgresStore struct {
	db        *sql.DB
	feed      *workflow.Feed
	publisher Publisher
	log       *slog.Logger
}

func NewPostgresStore(db *sql.DB, feed *workflow.Feed, pub Publisher, log *slog.Logger) *PostgresStore {
	if feed == nil {
		feed = workflow.NewFeed()
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresStore{db: db, feed: feed, publisher: pub, log: log}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, rec workflow.RequestRecord) (string, error) {
	if rec.ID == "" {
		return "", fmt.Errorf("%w: id required", workflow.ErrInvalidPayload)
	}
	rec.Version = 1
	doc, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO service_requests (id, code, cost_center, stage, doc, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Code, rec.CostCenter, string(rec.Stage), doc, rec.Version, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return "", unavailable(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", fmt.Errorf("%w: %s already exists", workflow.ErrConflict, rec.ID)
	}
	broadcast(ctx, s.feed, s.publisher, s.log, rec)
	return rec.ID, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (workflow.RequestRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT doc, version FROM service_requests WHERE id = $1`, id)
	return scanRecord(row)
}

func (s *PostgresStore) List(ctx context.Context, f workflow.Filter) ([]workflow.RequestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT doc, version FROM service_requests
WHERE ($1 = '' OR cost_center = $1)
ORDER BY created_at, id`, f.CostCenter)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := make([]workflow.RequestRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, u workflow.Update) (workflow.RequestRecord, error) {
	var acked workflow.RequestRecord
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := scanRecord(tx.QueryRowContext(ctx, `SELECT doc, version FROM service_requests WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		next, err := workflow.ApplyUpdate(cur, u)
		if err != nil {
			return err
		}
		doc, err := json.Marshal(next)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
UPDATE service_requests SET stage = $2, doc = $3, version = $4, updated_at = $5
WHERE id = $1 AND version = $6`,
			id, string(next.Stage), doc, next.Version, next.UpdatedAt, cur.Version)
		if err != nil {
			return unavailable(err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("%w: %s changed during update", workflow.ErrConflict, id)
		}
		acked = next
		return nil
	})
	if err != nil {
		return workflow.RequestRecord{}, classify(err)
	}
	broadcast(ctx, s.feed, s.publisher, s.log, acked)
	return acked, nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, f workflow.Filter) (workflow.Subscription, error) {
	return subscribe(ctx, s.feed, f, s.List)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (workflow.RequestRecord, error) {
	var (
		doc     []byte
		version int64
	)
	if err := row.Scan(&doc, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.RequestRecord{}, workflow.ErrNotFound
		}
		return workflow.RequestRecord{}, unavailable(err)
	}
	var rec workflow.RequestRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return workflow.RequestRecord{}, fmt.Errorf("%w: corrupt document: %v", workflow.ErrStoreUnavailable, err)
	}
	rec.Version = version
	return rec, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", workflow.ErrStoreUnavailable, err)
}

// classify maps transaction errors onto the workflow taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, workflow.ErrConflict),
		errors.Is(err, workflow.ErrNotFound),
		errors.Is(err, workflow.ErrInvalidPayload),
		errors.Is(err, workflow.ErrStoreUnavailable):
		return err
	case utils.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", workflow.ErrConflict, err)
	default:
		return unavailable(err)
	}
}
