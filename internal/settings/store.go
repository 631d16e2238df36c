package settings

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists the service table of each shipping method instance.
type Store interface {
	Load(ctx context.Context, instanceID int64) ([]Entry, error)
	Save(ctx context.Context, instanceID int64, entries []Entry) error
}

// PGStore keeps service tables in Postgres. The table is stored as text, not
// jsonb, because jsonb does not keep key order.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore { return &PGStore{db: db} }

func (s *PGStore) Load(ctx context.Context, instanceID int64) ([]Entry, error) {
	var raw string
	err := s.db.QueryRow(ctx, `SELECT services FROM shipping_method_settings WHERE instance_id = $1`, instanceID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return Decode([]byte(raw))
}

func (s *PGStore) Save(ctx context.Context, instanceID int64, entries []Entry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO shipping_method_settings (instance_id, services, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (instance_id) DO UPDATE
		SET services = EXCLUDED.services, updated_at = EXCLUDED.updated_at
	`, instanceID, string(Encode(entries)), time.Now().UTC())
	return err
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[int64][]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[int64][]Entry)}
}

func (m *MemoryStore) Load(_ context.Context, instanceID int64) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries, ok := m.tables[instanceID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]Entry(nil), entries...), nil
}

func (m *MemoryStore) Save(_ context.Context, instanceID int64, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[instanceID] = append([]Entry(nil), entries...)
	return nil
}
