package method

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"pakettikauppa/internal/carrier"
	"pakettikauppa/internal/obs"
	"pakettikauppa/internal/settings"
	"pakettikauppa/internal/shipment"
	"pakettikauppa/internal/tracking"
)

type failingClient struct{ err error }

func (f failingClient) ListShippingMethods(context.Context) ([]carrier.Service, error) {
	return nil, f.err
}

func (f failingClient) SearchPickupPoints(context.Context, carrier.PickupQuery) ([]carrier.PickupPoint, error) {
	return nil, f.err
}

func (f failingClient) TrackingEvents(context.Context, string) ([]carrier.TrackingEvent, error) {
	return nil, f.err
}

type fixture struct {
	svc      *Service
	store    *settings.MemoryStore
	tracking *tracking.MemoryStore
	metrics  *obs.Metrics
}

func newFixture(t *testing.T, cfg Config, client carrier.Client) fixture {
	t.Helper()
	store := settings.NewMemoryStore()
	trk := tracking.NewMemoryStore()
	metrics := obs.NewMetrics("test", prometheus.NewRegistry())
	svc := New(cfg, Deps{
		Settings: store,
		Catalog:  carrier.NewCatalog(client, nil, 0, "test", zerolog.Nop()),
		Carrier:  client,
		Tracking: trk,
		Metrics:  metrics,
		Logger:   zerolog.Nop(),
	})
	return fixture{svc: svc, store: store, tracking: trk, metrics: metrics}
}

func TestRates_UsesSavedTableAndCarrierNames(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, carrier.MockClient{})
	require.NoError(t, f.store.Save(ctx, 7, []settings.Entry{
		{Code: "90010", Active: "yes", Price: "4.90", PriceFree: "50"},
		{Code: "2104", Active: "no", Price: "9"},
		{Code: "2103", Active: "yes", Price: "5.95", PriceFree: "0"},
		{Code: "1234", Active: "yes", Price: "3"},
	}))

	quotes, err := f.svc.Rates(ctx, 7, decimal.RequireFromString("60"))
	require.NoError(t, err)
	require.Len(t, quotes, 3)

	require.Equal(t, "pakettikauppa:90010", quotes[0].ID)
	require.Equal(t, "Matkahuolto Lähellä-paketti", quotes[0].Label)
	require.True(t, quotes[0].Cost.IsZero())

	require.Equal(t, "pakettikauppa:2103", quotes[1].ID)
	require.True(t, quotes[1].Cost.Equal(decimal.RequireFromString("5.95")))

	require.True(t, quotes[2].MissingLabel)
	require.Equal(t, "1234", quotes[2].Label)

	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MissingLabelsTotal.WithLabelValues("1234")))
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QuotesTotal.WithLabelValues("2103")))
}

func TestRates_NoSettingsMeansNoRates(t *testing.T) {
	f := newFixture(t, Config{}, carrier.MockClient{})
	quotes, err := f.svc.Rates(context.Background(), 99, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Empty(t, quotes)
}

func TestRates_CarrierDownStillQuotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{MethodID: "pk"}, failingClient{err: carrier.ErrUnavailable})
	require.NoError(t, f.store.Save(ctx, 1, []settings.Entry{{Code: "2103", Active: "yes", Price: "5"}}))

	quotes, err := f.svc.Rates(ctx, 1, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	require.Equal(t, "pk:2103", quotes[0].ID)
	require.True(t, quotes[0].MissingLabel)
}

func TestRates_MalformedSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, carrier.MockClient{})
	require.NoError(t, f.store.Save(ctx, 1, []settings.Entry{{Code: "2103", Active: "yes", Price: "cheap"}}))

	_, err := f.svc.Rates(ctx, 1, decimal.NewFromInt(10))
	require.ErrorIs(t, err, settings.ErrInvalidOffering)
}

func TestServiceTable_MergesDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, carrier.MockClient{})
	require.NoError(t, f.store.Save(ctx, 3, []settings.Entry{{Code: "2104", Active: "yes", Price: "8", PriceFree: "100"}}))

	rows, err := f.svc.ServiceTable(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, settings.Row{Code: "2103", Title: "Posti Postipaketti", Price: settings.DefaultPrice, PriceFree: "0"}, rows[0])
	require.Equal(t, settings.Row{Code: "2104", Title: "Posti Kotipaketti", Active: true, Price: "8", PriceFree: "100"}, rows[1])
}

func TestSaveServiceTable_NormalizesBeforeSaving(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, carrier.MockClient{})

	saved, err := f.svc.SaveServiceTable(ctx, 5, []settings.Entry{
		{Code: "2103", Active: "yes", Price: " 5,50 ", PriceFree: `4\0`},
	})
	require.NoError(t, err)
	require.Equal(t, []settings.Entry{{Code: "2103", Active: "yes", Price: "5.5", PriceFree: "40"}}, saved)

	loaded, err := f.store.Load(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, saved, loaded)

	_, err = f.svc.SaveServiceTable(ctx, 5, []settings.Entry{{Code: "2103", Active: "yes", Price: "-1"}})
	require.ErrorIs(t, err, settings.ErrInvalidOffering)
}

func TestServices_CarrierFailure(t *testing.T) {
	f := newFixture(t, Config{}, failingClient{err: carrier.ErrAuthentication})
	_, err := f.svc.Services(context.Background())
	require.ErrorIs(t, err, ErrCarrierUnavailable)
	require.ErrorIs(t, err, carrier.ErrAuthentication)
	require.Contains(t, err.Error(), "Unable to connect to Pakettikauppa service.")
}

func TestPickupPoints_TruncatedToSearchLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, carrier.MockClient{})
	points, err := f.svc.PickupPoints(ctx, carrier.PickupQuery{Postcode: "00100"})
	require.NoError(t, err)
	require.Len(t, points, DefaultSearchLimit)

	f = newFixture(t, Config{SearchLimit: 20}, carrier.MockClient{})
	points, err = f.svc.PickupPoints(ctx, carrier.PickupQuery{Postcode: "00100"})
	require.NoError(t, err)
	require.Len(t, points, 8)

	_, err = f.svc.PickupPoints(ctx, carrier.PickupQuery{})
	require.ErrorIs(t, err, carrier.ErrInvalidQuery)

	f = newFixture(t, Config{}, failingClient{err: errors.New("dial tcp: timeout")})
	_, err = f.svc.PickupPoints(ctx, carrier.PickupQuery{Postcode: "00100"})
	require.ErrorIs(t, err, ErrCarrierUnavailable)
}

func TestLiveTracking_DescribesAndRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{}, carrier.MockClient{})
	events, err := f.svc.LiveTracking(ctx, "JJFI123")
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, shipment.StatusText(68), events[0].StatusText)
	require.Equal(t, "Item has been handed over to the recipient", events[2].StatusText)

	tr, err := f.tracking.Get(ctx, "JJFI123")
	require.NoError(t, err)
	require.Equal(t, "22", tr.Status)

	_, err = f.svc.LiveTracking(ctx, "JJFI123")
	require.NoError(t, err)
	require.Equal(t, 3, f.tracking.Events("JJFI123"))
}

type countingClient struct {
	carrier.MockClient
	calls int
}

func (c *countingClient) ListShippingMethods(ctx context.Context) ([]carrier.Service, error) {
	c.calls++
	return c.MockClient.ListShippingMethods(ctx)
}

func TestRefreshServices_BypassesCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	client := &countingClient{}
	svc := New(Config{}, Deps{
		Settings: settings.NewMemoryStore(),
		Catalog:  carrier.NewCatalog(client, cache, 0, "test", zerolog.Nop()),
		Carrier:  client,
		Logger:   zerolog.Nop(),
	})

	_, err := svc.Services(ctx)
	require.NoError(t, err)
	_, err = svc.Services(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, client.calls)

	services, err := svc.RefreshServices(ctx)
	require.NoError(t, err)
	require.Len(t, services, 4)
	require.Equal(t, 2, client.calls)
}

func TestRates_MetricLabelsShareServiceCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{MethodID: "pk"}, carrier.MockClient{})
	require.NoError(t, f.store.Save(ctx, 1, []settings.Entry{{Code: "5555", Active: "yes", Price: "1"}}))

	_, err := f.svc.Rates(ctx, 1, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QuotesTotal.WithLabelValues("5555")))
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MissingLabelsTotal.WithLabelValues("5555")))
}
