package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS shipping_method_settings (
		instance_id BIGINT PRIMARY KEY,
		services    TEXT NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS trackers (
		id                    UUID PRIMARY KEY,
		carrier_tracking_code TEXT NOT NULL UNIQUE,
		status                TEXT NOT NULL DEFAULT 'unknown',
		last_event_at         TIMESTAMPTZ,
		metadata              JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE TABLE IF NOT EXISTS tracking_events (
		id          BIGSERIAL PRIMARY KEY,
		tracker_id  UUID NOT NULL REFERENCES trackers(id) ON DELETE CASCADE,
		occurred_at TIMESTAMPTZ NOT NULL,
		status      TEXT,
		description TEXT,
		location    JSONB NOT NULL DEFAULT '{}'::jsonb,
		raw         JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS tracking_events_dedup
		ON tracking_events (tracker_id, occurred_at, COALESCE(status, ''), COALESCE(description, ''))`,
}

// Migrate creates the tables the service needs if they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
