package tracking

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pakettikauppa/internal/db"
)

func TestPGStore_RecordAndGet(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
		return
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, dbURL, db.PoolOptions{})
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, db.Migrate(ctx, pool))

	s := NewPGStore(pool)
	code := "ITEST-" + uuid.NewString()

	_, err = s.Get(ctx, code)
	require.ErrorIs(t, err, ErrNotFound)

	ev := Event{
		Status:      "22",
		Description: "In transit",
		Location:    []byte(`{"city":"Vantaa"}`),
		Raw:         []byte(`{}`),
		OccurredAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.Record(ctx, code, ev))
	require.NoError(t, s.Record(ctx, code, ev))

	var n int
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT count(*) FROM tracking_events e JOIN trackers t ON t.id = e.tracker_id
		WHERE t.carrier_tracking_code = $1`, code).Scan(&n))
	require.Equal(t, 1, n)

	tr, err := s.Get(ctx, code)
	require.NoError(t, err)
	require.Equal(t, "22", tr.Status)
	require.NotNil(t, tr.LastEventAt)
	require.Contains(t, string(tr.LastEvent), "In transit")
}

func TestPGStore_ConcurrentRecordOfSameEvent(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
		return
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, dbURL, db.PoolOptions{MaxConns: 8})
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, db.Migrate(ctx, pool))

	s := NewPGStore(pool)
	code := "ITEST-RACE-" + uuid.NewString()
	ev := Event{
		Status:      "31",
		Description: "In transport",
		OccurredAt:  time.Now().UTC().Truncate(time.Second),
	}

	const writers = 6
	start := make(chan struct{})
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- s.Record(ctx, code, ev)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var trackers, events int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM trackers WHERE carrier_tracking_code = $1`, code).Scan(&trackers))
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT count(*) FROM tracking_events e JOIN trackers t ON t.id = e.tracker_id
		WHERE t.carrier_tracking_code = $1`, code).Scan(&events))
	require.Equal(t, 1, trackers)
	require.Equal(t, 1, events)

	tr, err := s.Get(ctx, code)
	require.NoError(t, err)
	require.Equal(t, "31", tr.Status)
}
