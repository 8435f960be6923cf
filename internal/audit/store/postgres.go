package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/rate-gate/internal/audit"
)

// Schema creates the verdict table. It matches migrations/001_rate_limit_events.sql.
const Schema = `
CREATE TABLE IF NOT EXISTS rate_limit_events (
	id             TEXT PRIMARY KEY,
	client_key     TEXT NOT NULL,
	client_ip      TEXT NOT NULL,
	method         TEXT NOT NULL,
	path           TEXT NOT NULL,
	decision       TEXT NOT NULL,
	reason         TEXT NOT NULL,
	count          BIGINT NOT NULL,
	max_requests   BIGINT NOT NULL,
	retry_after_ms BIGINT NOT NULL,
	occurred_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS rate_limit_events_client_key_idx ON rate_limit_events (client_key, occurred_at);
`

// Postgres is a PostgreSQL implementation of audit.Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a new PostgreSQL-backed audit store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, Schema)

	return err
}

// SaveVerdict inserts the event. Redelivered events are ignored.
func (p *Postgres) SaveVerdict(ctx context.Context, event *audit.VerdictEvent) error {
	query := `
		INSERT INTO rate_limit_events
			(id, client_key, client_ip, method, path, decision, reason, count, max_requests, retry_after_ms, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := p.pool.Exec(ctx, query,
		event.ID,
		event.ClientKey,
		event.ClientIP,
		event.Method,
		event.Path,
		event.Decision,
		event.Reason,
		event.Count,
		event.Limit,
		event.RetryAfterMs,
		event.OccurredAt,
	)

	return err
}

// CountByClientKey returns how many events were stored for key.
func (p *Postgres) CountByClientKey(ctx context.Context, key string) (int64, error) {
	var n int64

	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM rate_limit_events WHERE client_key = $1`, key,
	).Scan(&n)

	return n, err
}

// Shutdown closes the pool.
func (p *Postgres) Shutdown() error {
	p.pool.Close()

	return nil
}
