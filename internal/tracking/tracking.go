package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no tracker exists for a code.
	ErrNotFound = errors.New("tracker not found")
	// ErrInvalidOccurredAt is returned when an event timestamp is not RFC 3339.
	ErrInvalidOccurredAt = errors.New("invalid occurred_at")
)

// Payload is a tracking event as posted by a client or carrier, before validation.
type Payload struct {
	Status      string          `json:"status"`
	Description string          `json:"description"`
	Location    json.RawMessage `json:"location"`
	OccurredAt  string          `json:"occurred_at"`
	Raw         json.RawMessage `json:"raw"`
}

// Event is a validated tracking event. Status holds the carrier status code.
type Event struct {
	Status      string
	Description string
	Location    json.RawMessage
	OccurredAt  time.Time
	Raw         json.RawMessage
}

// Tracker is the latest known state of a tracking code.
type Tracker struct {
	Code        string
	Status      string
	LastEventAt *time.Time
	LastEvent   json.RawMessage
}

// Store records and reads tracking events.
type Store interface {
	Record(ctx context.Context, code string, ev Event) error
	Get(ctx context.Context, code string) (Tracker, error)
}

// Event validates the payload. A blank occurred_at means now.
func (p Payload) Event(now time.Time) (Event, error) {
	ev := Event{
		Status:      strings.TrimSpace(p.Status),
		Description: p.Description,
		Location:    p.Location,
		Raw:         p.Raw,
	}
	if ev.Location == nil {
		ev.Location = json.RawMessage("{}")
	}
	if ev.Raw == nil {
		ev.Raw = json.RawMessage("{}")
	}
	if strings.TrimSpace(p.OccurredAt) == "" {
		ev.OccurredAt = now.UTC()
		return ev, nil
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(p.OccurredAt))
	if err != nil {
		return Event{}, ErrInvalidOccurredAt
	}
	ev.OccurredAt = t.UTC()
	return ev, nil
}
