package db

import (
	"context"
	"time"

	"backend-runtracker/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	newPoolFn  = pgxpool.New
	pingPoolFn = func(ctx context.Context, pool *pgxpool.Pool) error { return pool.Ping(ctx) }
)

func ConnectPostgres(cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := newPoolFn(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	if err := pingPoolFn(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Schema creates the tables used by the kv store and the session archive.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS running_sessions (
	id                 TEXT PRIMARY KEY,
	started_at         TIMESTAMPTZ NOT NULL,
	ended_at           TIMESTAMPTZ,
	total_distance_m   DOUBLE PRECISION NOT NULL,
	elapsed_sec        BIGINT NOT NULL,
	last_heart_rate    DOUBLE PRECISION,
	last_cadence       DOUBLE PRECISION,
	calories           DOUBLE PRECISION,
	shoe_id            TEXT,
	status             TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS session_segments (
	session_id     TEXT NOT NULL REFERENCES running_sessions(id) ON DELETE CASCADE,
	segment_id     INT NOT NULL,
	order_index    INT NOT NULL,
	distance_m     DOUBLE PRECISION NOT NULL,
	duration_sec   DOUBLE PRECISION NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	heart_rate     DOUBLE PRECISION,
	cadence        DOUBLE PRECISION,
	calories       DOUBLE PRECISION,
	path           JSONB NOT NULL,
	PRIMARY KEY (session_id, segment_id)
);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, q Querier) error {
	_, err := q.Exec(ctx, Schema)
	return err
}
