package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRequestLoggerWritesRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "debug")

	r := chi.NewRouter()
	r.Use(RequestLogger{Logger: logger}.Middleware)
	r.Get("/trackers/{code}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/trackers/ABC", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, buf.String())
	}
	if line["route"] != "/trackers/{code}" {
		t.Fatalf("unexpected route: %v", line["route"])
	}
	if line["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected status: %v", line["status"])
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Quote("2103")
	m.MissingLabel("2103")
	m.CarrierRequest("list", "ok")
}

func TestMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.Quote("2103")
	m.Quote("2103")
	m.CarrierRequest("/pickup-points/search", "error")
	if got := testutil.ToFloat64(m.QuotesTotal.WithLabelValues("2103")); got != 2 {
		t.Fatalf("expected 2 quotes, got %v", got)
	}
	if got := testutil.ToFloat64(m.CarrierRequestsTotal.WithLabelValues("/pickup-points/search", "error")); got != 1 {
		t.Fatalf("expected 1 carrier request, got %v", got)
	}
}
