package audit

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Schema creates the ops_events table. Rows are only ever inserted.
const Schema = `
CREATE TABLE IF NOT EXISTS ops_events (
	id            UUID PRIMARY KEY,
	type          TEXT NOT NULL,
	request_id    TEXT NOT NULL,
	actor_user_id TEXT NOT NULL DEFAULT '',
	actor_role    TEXT NOT NULL DEFAULT '',
	from_stage    TEXT NOT NULL DEFAULT '',
	to_stage      TEXT NOT NULL DEFAULT '',
	message       TEXT NOT NULL DEFAULT '',
	metadata      TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ops_events_request_idx ON ops_events (request_id, created_at DESC);
`

// PostgresRepo persists events through database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ops_events (id, type, request_id, actor_user_id, actor_role, from_stage, to_stage, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, string(e.Type), e.RequestID, e.ActorUserID, e.ActorRole, e.FromStage, e.ToStage, e.Message, e.Metadata, e.CreatedAt)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	if q.RequestID != "" {
		args = append(args, q.RequestID)
		where = append(where, "request_id = $"+strconv.Itoa(len(args)))
	}
	if q.Type != "" {
		args = append(args, string(q.Type))
		where = append(where, "type = $"+strconv.Itoa(len(args)))
	}
	query := `SELECT id, type, request_id, actor_user_id, actor_role, from_stage, to_stage, message, metadata, created_at FROM ops_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e  Event
			tp string
		)
		if err := rows.Scan(&e.ID, &tp, &e.RequestID, &e.ActorUserID, &e.ActorRole, &e.FromStage, &e.ToStage, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(tp)
		out = append(out, e)
	}
	return out, rows.Err()
}
