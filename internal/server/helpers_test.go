package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"pakettikauppa/internal/carrier"
	"pakettikauppa/internal/method"
	"pakettikauppa/internal/obs"
	"pakettikauppa/internal/settings"
	"pakettikauppa/internal/tracking"
)

const testWebhookSecret = "testsecret"

var fixedNow = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	handler  http.Handler
	settings settings.Store
	tracking tracking.Store
}

func newTestEnv(t *testing.T, settingsStore settings.Store, trackingStore tracking.Store, client carrier.Client) testEnv {
	t.Helper()
	if settingsStore == nil {
		settingsStore = settings.NewMemoryStore()
	}
	if trackingStore == nil {
		trackingStore = tracking.NewMemoryStore()
	}
	if client == nil {
		client = carrier.MockClient{}
	}
	reg := prometheus.NewRegistry()
	metrics := obs.NewMetrics("test", reg)
	svc := method.New(method.Config{AddTrackingToEmail: true}, method.Deps{
		Settings: settingsStore,
		Catalog:  carrier.NewCatalog(client, nil, 0, "test", zerolog.Nop()),
		Carrier:  client,
		Tracking: trackingStore,
		Metrics:  metrics,
		Logger:   zerolog.Nop(),
	})
	h := New(Options{
		Method:         svc,
		Tracking:       trackingStore,
		WebhookSecrets: map[string]string{"pakettikauppa": testWebhookSecret, "unconfigured": ""},
		Gatherer:       reg,
		Logger:         zerolog.Nop(),
		Now:            func() time.Time { return fixedNow },
	})
	return testEnv{handler: h, settings: settingsStore, tracking: trackingStore}
}

func (e testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
