// Package journal persists every committed ledger event to Postgres. The
// in-memory ledger stays the single authoritative instance; the journal is
// its recovery log and audit trail, replayed once at startup.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aliashahi/secure-online-shop/internal/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_events (
	seq            BIGSERIAL PRIMARY KEY,
	event_id       UUID NOT NULL UNIQUE,
	event_type     TEXT NOT NULL,
	event_version  INT  NOT NULL,
	occurred_at    TIMESTAMPTZ NOT NULL,
	producer       TEXT NOT NULL,
	correlation_id TEXT NOT NULL DEFAULT '',
	payload        JSONB NOT NULL
)`

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pool.Ping: %w", err)
	}
	return pool, nil
}

type Journal struct{ DB *pgxpool.Pool }

func New(pool *pgxpool.Pool) *Journal {
	return &Journal{DB: pool}
}

// Init creates the events table when it does not exist yet.
func (j *Journal) Init(ctx context.Context) error {
	if _, err := j.DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create ledger_events: %w", err)
	}
	return nil
}

// Append stores one envelope. Appends are idempotent on event_id, so a
// retried emission never duplicates a journal row.
func (j *Journal) Append(ctx context.Context, env ledger.Envelope) error {
	_, err := j.DB.Exec(ctx, `
		INSERT INTO ledger_events(event_id, event_type, event_version, occurred_at, producer, correlation_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		env.EventID, env.EventType, env.EventVersion, env.OccurredAt, env.Producer, env.CorrelationID, []byte(env.Payload),
	)
	if err != nil {
		return fmt.Errorf("insert ledger_events: %w", err)
	}
	return nil
}

// Replay streams all journaled envelopes in commit order through fn and
// returns how many were applied. A failing fn stops the replay: partial
// state would violate the ledger's invariants.
func (j *Journal) Replay(ctx context.Context, fn func(ledger.Envelope) error) (int, error) {
	rows, err := j.DB.Query(ctx, `
		SELECT event_id, event_type, event_version, occurred_at, producer, correlation_id, payload
		FROM ledger_events ORDER BY seq`)
	if err != nil {
		return 0, fmt.Errorf("select ledger_events: %w", err)
	}
	defer rows.Close()

	applied := 0
	for rows.Next() {
		var env ledger.Envelope
		var payload []byte
		if err := rows.Scan(&env.EventID, &env.EventType, &env.EventVersion, &env.OccurredAt, &env.Producer, &env.CorrelationID, &payload); err != nil {
			return applied, fmt.Errorf("scan ledger_events: %w", err)
		}
		env.Payload = payload
		if err := fn(env); err != nil {
			return applied, fmt.Errorf("apply event %s: %w", env.EventID, err)
		}
		applied++
	}
	if err := rows.Err(); err != nil {
		return applied, fmt.Errorf("iterate ledger_events: %w", err)
	}
	return applied, nil
}

// Count reports the number of journaled events.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := j.DB.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ledger_events: %w", err)
	}
	return n, nil
}
