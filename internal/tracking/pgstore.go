package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps trackers and their events in Postgres.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore { return &PGStore{db: db} }

// Record ensures the tracker exists, inserts the event and updates the tracker status.
// Concurrent first events and redeliveries resolve through ON CONFLICT, so a
// lost race leaves the transaction usable.
func (s *PGStore) Record(ctx context.Context, code string, ev Event) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO trackers (id, carrier_tracking_code, status, last_event_at, metadata)
		VALUES ($1, $2, COALESCE($3, 'unknown'), $4, '{}'::jsonb)
		ON CONFLICT (carrier_tracking_code) DO NOTHING
	`, uuid.New(), code, nullIfEmpty(ev.Status), ev.OccurredAt)
	if err != nil {
		return err
	}
	var trackerID uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM trackers WHERE carrier_tracking_code = $1`, code).Scan(&trackerID); err != nil {
		return err
	}

	// Idempotency: tracking_events_dedup covers tracker_id + occurred_at + status + description
	_, err = tx.Exec(ctx, `
		INSERT INTO tracking_events (tracker_id, occurred_at, status, description, location, raw)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb)
		ON CONFLICT DO NOTHING
	`, trackerID, ev.OccurredAt, nullIfEmpty(ev.Status), ev.Description, jsonOrEmpty(ev.Location), jsonOrEmpty(ev.Raw))
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `UPDATE trackers SET status = COALESCE($2, status), last_event_at = $3 WHERE id = $1`, trackerID, nullIfEmpty(ev.Status), ev.OccurredAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Get(ctx context.Context, code string) (Tracker, error) {
	var (
		status       *string
		lastEventAt  *time.Time
		lastEventRaw *string
	)
	err := s.db.QueryRow(ctx, `
		SELECT t.status,
		       t.last_event_at,
		       (SELECT to_jsonb(e) FROM tracking_events e
		         WHERE e.tracker_id = t.id
		         ORDER BY e.occurred_at DESC
		         LIMIT 1)::text AS last_event
		FROM trackers t
		WHERE t.carrier_tracking_code = $1
	`, code).Scan(&status, &lastEventAt, &lastEventRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tracker{}, ErrNotFound
		}
		return Tracker{}, err
	}
	t := Tracker{Code: code}
	if status != nil {
		t.Status = *status
	}
	if lastEventAt != nil {
		at := lastEventAt.UTC()
		t.LastEventAt = &at
	}
	if lastEventRaw != nil {
		t.LastEvent = json.RawMessage(*lastEventRaw)
	}
	return t, nil
}

func nullIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func jsonOrEmpty(b json.RawMessage) string {
	if len(b) == 0 {
		return "{}"
	}
	return string(b)
}
