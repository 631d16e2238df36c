package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pakettikauppa/internal/carrier"
	"pakettikauppa/internal/method"
	"pakettikauppa/internal/obs"
	"pakettikauppa/internal/rate"
	"pakettikauppa/internal/settings"
	"pakettikauppa/internal/shipment"
	"pakettikauppa/internal/tracking"
)

const maxBodyBytes = 1 << 20

// Options wires the API to its collaborators.
type Options struct {
	Method   *method.Service
	Tracking tracking.Store
	// WebhookSecrets maps a webhook source name to its HMAC secret.
	WebhookSecrets map[string]string
	Gatherer       prometheus.Gatherer
	Logger         zerolog.Logger
	Now            func() time.Time
}

type Server struct {
	method   *method.Service
	tracking tracking.Store
	secrets  map[string]string
	log      zerolog.Logger
	now      func() time.Time
}

func New(opts Options) http.Handler {
	s := &Server{
		method:   opts.Method,
		tracking: opts.Tracking,
		secrets:  make(map[string]string, len(opts.WebhookSecrets)),
		log:      opts.Logger,
		now:      opts.Now,
	}
	for k, v := range opts.WebhookSecrets {
		s.secrets[strings.ToLower(strings.TrimSpace(k))] = v
	}
	if s.now == nil {
		s.now = time.Now
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	// Observability: Request ID and structured request log
	r.Use(requestIDMiddleware)
	r.Use(obs.RequestLogger{Logger: opts.Logger}.Middleware)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/rates", s.handleGetRates)
	r.Get("/services", s.handleGetServices)
	r.Post("/services/refresh", s.handleRefreshServices)
	r.Get("/settings/{instance}/services", s.handleGetServiceTable)
	r.Put("/settings/{instance}/services", s.handlePutServiceTable)
	r.Get("/pickup-points", s.handleGetPickupPoints)
	r.Post("/orders/{id}/shipment-details", s.handleShipmentDetails)
	r.Get("/status-codes/{code}", s.handleGetStatusCode)
	r.Get("/trackers/{code}", s.handleGetTracker)
	r.Get("/trackers/{code}/live", s.handleGetLiveTracking)
	r.Post("/trackers/{code}/events", s.handlePostTrackerEvent)
	r.Post("/webhooks/{source}", s.handleWebhook)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Rates
type RatesResponse struct {
	InstanceID int64        `json:"instance_id"`
	CartTotal  string       `json:"cart_total"`
	Rates      []rate.Quote `json:"rates"`
}

func (s *Server) handleGetRates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	instanceID, err := strconv.ParseInt(strings.TrimSpace(q.Get("instance_id")), 10, 64)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "instance_id required")
		return
	}
	total := decimal.Zero
	if raw := strings.TrimSpace(q.Get("cart_total")); raw != "" {
		total, err = decimal.NewFromString(raw)
		if err != nil || total.IsNegative() {
			writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "invalid cart_total")
			return
		}
	}
	quotes, err := s.method.Rates(r.Context(), instanceID, total)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RatesResponse{InstanceID: instanceID, CartTotal: total.String(), Rates: quotes})
}

func (s *Server) handleGetServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.method.Services(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeServices(w, services)
}

func (s *Server) handleRefreshServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.method.RefreshServices(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeServices(w, services)
}

func writeServices(w http.ResponseWriter, services []carrier.Service) {
	type item struct {
		carrier.Service
		Title string `json:"title"`
	}
	out := make([]item, 0, len(services))
	for _, svc := range services {
		out = append(out, item{Service: svc, Title: svc.Title()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": out})
}

// Service table
func (s *Server) handleGetServiceTable(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := instanceParam(w, r)
	if !ok {
		return
	}
	rows, err := s.method.ServiceTable(r.Context(), instanceID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instance_id": instanceID, "services": rows})
}

func (s *Server) handlePutServiceTable(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := instanceParam(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "read_error", "read error")
		return
	}
	entries, err := settings.Decode(body)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_settings", err.Error())
		return
	}
	saved, err := s.method.SaveServiceTable(r.Context(), instanceID, entries)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(settings.Encode(saved))
}

func (s *Server) handleGetPickupPoints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := carrier.PickupQuery{
		Postcode:        strings.TrimSpace(q.Get("postcode")),
		StreetAddress:   strings.TrimSpace(q.Get("street_address")),
		Country:         strings.TrimSpace(q.Get("country")),
		ServiceProvider: strings.TrimSpace(q.Get("service_provider")),
	}
	if query.Postcode == "" {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "postcode required")
		return
	}
	points, err := s.method.PickupPoints(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pickup_points": points})
}

func (s *Server) handleShipmentDetails(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "numeric order id required")
		return
	}
	var req method.OrderRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	req.OrderID = orderID
	details, err := s.method.ShipmentDetails(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type StatusCodeResponse struct {
	Code       string `json:"code"`
	StatusText string `json:"status_text"`
	Known      bool   `json:"known"`
}

func (s *Server) handleGetStatusCode(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	n, err := strconv.Atoi(code)
	writeJSON(w, http.StatusOK, StatusCodeResponse{
		Code:       code,
		StatusText: shipment.StatusTextFromString(code),
		Known:      err == nil && shipment.KnownStatus(n),
	})
}

// Tracker detail
type TrackerResponse struct {
	Code        string          `json:"code"`
	Status      string          `json:"status"`
	StatusText  string          `json:"status_text"`
	TrackingURL string          `json:"tracking_url"`
	LastEventAt string          `json:"last_event_at,omitempty"`
	LastEvent   json.RawMessage `json:"last_event,omitempty"`
}

func (s *Server) handleGetTracker(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if strings.TrimSpace(code) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "code required")
		return
	}
	t, err := s.tracking.Get(r.Context(), code)
	if err != nil {
		if errors.Is(err, tracking.ErrNotFound) {
			writeErrorJSON(w, http.StatusNotFound, "resource_not_found", "not found")
			return
		}
		s.log.Error().Err(err).Str("code", code).Msg("get tracker")
		writeErrorJSON(w, http.StatusInternalServerError, "db_error", "db error")
		return
	}
	resp := TrackerResponse{
		Code:        t.Code,
		Status:      t.Status,
		StatusText:  shipment.StatusTextFromString(t.Status),
		TrackingURL: shipment.TrackingURL(t.Code),
		LastEvent:   t.LastEvent,
	}
	if t.LastEventAt != nil {
		resp.LastEventAt = t.LastEventAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetLiveTracking(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if strings.TrimSpace(code) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "code required")
		return
	}
	events, err := s.method.LiveTracking(r.Context(), code)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"code": code, "events": events})
}

// Tracker event ingestion
type TrackerEventResponse struct {
	Code       string `json:"code"`
	Status     string `json:"status"`
	OccurredAt string `json:"occurred_at"`
}

func (s *Server) handlePostTrackerEvent(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if strings.TrimSpace(code) == "" {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "code required")
		return
	}
	var p tracking.Payload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&p); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	s.recordEvent(w, r, code, p)
}

// handleWebhook ingests HMAC-signed carrier callbacks. Each source has its own secret.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	source := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "source")))
	if source == "" {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "source required")
		return
	}
	secret, ok := s.secrets[source]
	if !ok {
		writeErrorJSON(w, http.StatusNotFound, "unsupported_source", "unsupported source")
		return
	}

	// Read raw body for signature verification
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "read_error", "read error")
		return
	}
	if err := tracking.VerifySignature(secret, body, r.Header.Get("X-Signature")); err != nil {
		writeErrorJSON(w, http.StatusUnauthorized, signatureErrorCode(err), err.Error())
		return
	}

	code, p, err := tracking.NewNormalizer(source).Normalize(body)
	if err != nil {
		if errors.Is(err, tracking.ErrMissingCode) {
			writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "code required")
		} else {
			writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
		}
		return
	}
	s.recordEvent(w, r, code, p)
}

func (s *Server) recordEvent(w http.ResponseWriter, r *http.Request, code string, p tracking.Payload) {
	ev, err := p.Event(s.now())
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_occurred_at", "invalid occurred_at")
		return
	}
	if err := s.tracking.Record(r.Context(), code, ev); err != nil {
		s.log.Error().Err(err).Str("code", code).Msg("record tracking event")
		writeErrorJSON(w, http.StatusInternalServerError, "db_error", "db error")
		return
	}
	writeJSON(w, http.StatusOK, TrackerEventResponse{
		Code:       code,
		Status:     orDefault(ev.Status, "unknown"),
		OccurredAt: ev.OccurredAt.Format(time.RFC3339),
	})
}

func signatureErrorCode(err error) string {
	switch {
	case errors.Is(err, tracking.ErrSecretNotConfigured):
		return "secret_not_configured"
	case errors.Is(err, tracking.ErrMissingSignature):
		return "missing_signature"
	case errors.Is(err, tracking.ErrInvalidSignatureFormat):
		return "invalid_signature_format"
	default:
		return "signature_mismatch"
	}
}

// writeServiceError maps errors from the shipping method to HTTP responses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, method.ErrCarrierUnavailable):
		writeErrorJSON(w, http.StatusBadGateway, "carrier_unavailable", method.ErrCarrierUnavailable.Error())
	case errors.Is(err, rate.ErrInvalidOffering):
		writeErrorJSON(w, http.StatusUnprocessableEntity, "invalid_settings", err.Error())
	case errors.Is(err, carrier.ErrInvalidQuery), errors.Is(err, shipment.ErrInvalidOrderID),
		errors.Is(err, shipment.ErrInvalidItem):
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, method.ErrCODNotConfigured):
		writeErrorJSON(w, http.StatusUnprocessableEntity, "cod_not_configured", err.Error())
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeErrorJSON(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func instanceParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "instance"), 10, 64)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "numeric instance id required")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorJSON writes a standardized JSON error response:
// {"error": {"code": string, "message": string}}
func writeErrorJSON(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// requestIDMiddleware ensures X-Request-ID is set on the response.
// If provided in the request header, it is propagated; otherwise a UUID is generated.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

func orDefault(s, d string) string {
	if strings.TrimSpace(s) == "" {
		return d
	}
	return s
}
