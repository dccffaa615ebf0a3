package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// New opens a PostgreSQL pool for the portfolio store and verifies connectivity.
func New(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS clients (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	trade_name TEXT,
	ruc        TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	regime     TEXT NOT NULL DEFAULT '',
	is_active  BOOLEAN,
	deleted    BOOLEAN NOT NULL DEFAULT FALSE,
	phones     TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS declarations (
	client_id      TEXT NOT NULL REFERENCES clients(id),
	period         TEXT NOT NULL,
	status         TEXT NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	declared_at    TIMESTAMPTZ,
	paid_at        TIMESTAMPTZ,
	transaction_id TEXT,
	amount         NUMERIC(12,2),
	PRIMARY KEY (client_id, period)
);

CREATE INDEX IF NOT EXISTS declarations_transaction_idx ON declarations (transaction_id);
`

// EnsureSchema creates the portfolio tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("platform/db: ensure schema: %w", err)
	}
	return nil
}
