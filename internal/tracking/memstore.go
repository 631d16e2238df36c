package tracking

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store with the same idempotency rule as PGStore.
type MemoryStore struct {
	mu       sync.Mutex
	trackers map[string]*memTracker
}

type memTracker struct {
	status string
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trackers: make(map[string]*memTracker)}
}

func (m *MemoryStore) Record(_ context.Context, code string, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackers[code]
	if !ok {
		t = &memTracker{status: "unknown"}
		m.trackers[code] = t
	}
	for _, e := range t.events {
		if e.OccurredAt.Equal(ev.OccurredAt) && e.Status == ev.Status && e.Description == ev.Description {
			return nil
		}
	}
	t.events = append(t.events, ev)
	if ev.Status != "" {
		t.status = ev.Status
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, code string) (Tracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackers[code]
	if !ok {
		return Tracker{}, ErrNotFound
	}
	out := Tracker{Code: code, Status: t.status}
	if len(t.events) == 0 {
		return out, nil
	}
	latest := t.events[0]
	for _, e := range t.events[1:] {
		if e.OccurredAt.After(latest.OccurredAt) {
			latest = e
		}
	}
	at := latest.OccurredAt
	out.LastEventAt = &at
	out.LastEvent, _ = json.Marshal(map[string]any{
		"status":      latest.Status,
		"description": latest.Description,
		"occurred_at": latest.OccurredAt,
		"location":    latest.Location,
	})
	return out, nil
}

// Events returns how many distinct events were recorded for code.
func (m *MemoryStore) Events(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.trackers[code]; ok {
		return len(t.events)
	}
	return 0
}
