package carrier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pakettikauppa/internal/obs"
)

const (
	TestBaseURL       = "https://apitest.pakettikauppa.fi"
	ProductionBaseURL = "https://api.pakettikauppa.fi"

	pathShippingMethods = "/shipping-methods/list"
	pathPickupPoints    = "/pickup-points/search"
	pathShipmentStatus  = "/shipment/status"

	maxBodyBytes = 4 << 20
)

// Options configures HTTPClient.
type Options struct {
	Mode       string // "production" or anything else for the test environment
	BaseURL    string // overrides the URL picked by Mode
	APIKey     string
	Secret     string
	RPS        float64
	HTTPClient *http.Client
	Metrics    *obs.Metrics
	Now        func() time.Time
}

// HTTPClient calls the carrier API over HTTPS.
type HTTPClient struct {
	baseURL string
	apiKey  string
	secret  string
	http    *http.Client
	limiter *rate.Limiter
	metrics *obs.Metrics
	now     func() time.Time
}

func NewHTTPClient(opts Options) *HTTPClient {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = TestBaseURL
		if strings.EqualFold(strings.TrimSpace(opts.Mode), "production") {
			base = ProductionBaseURL
		}
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	limit := rate.Inf
	burst := 1
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
		burst = max(1, int(opts.RPS))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &HTTPClient{
		baseURL: base,
		apiKey:  opts.APIKey,
		secret:  opts.Secret,
		http:    hc,
		limiter: rate.NewLimiter(limit, burst),
		metrics: opts.Metrics,
		now:     now,
	}
}

func (c *HTTPClient) ListShippingMethods(ctx context.Context) ([]Service, error) {
	var out []Service
	if err := c.post(ctx, pathShippingMethods, url.Values{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) SearchPickupPoints(ctx context.Context, q PickupQuery) ([]PickupPoint, error) {
	if strings.TrimSpace(q.Postcode) == "" {
		return nil, fmt.Errorf("%w: postcode required", ErrInvalidQuery)
	}
	params := url.Values{}
	params.Set("postcode", strings.TrimSpace(q.Postcode))
	setIfNotEmpty(params, "address", q.StreetAddress)
	setIfNotEmpty(params, "country", q.Country)
	setIfNotEmpty(params, "service_provider", q.ServiceProvider)
	var out []PickupPoint
	if err := c.post(ctx, pathPickupPoints, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) TrackingEvents(ctx context.Context, trackingCode string) ([]TrackingEvent, error) {
	if strings.TrimSpace(trackingCode) == "" {
		return nil, fmt.Errorf("%w: tracking code required", ErrInvalidQuery)
	}
	params := url.Values{}
	params.Set("tracking_code", strings.TrimSpace(trackingCode))
	var out []TrackingEvent
	if err := c.post(ctx, pathShipmentStatus, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, params url.Values, dst any) error {
	outcome := "error"
	defer func() { c.metrics.CarrierRequest(path, outcome) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	params.Set("api_key", c.apiKey)
	params.Set("timestamp", strconv.FormatInt(c.now().Unix(), 10))
	params.Set("hash", Sign(c.secret, params))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrUnavailable, path, err)
	}

	switch {
	case isAuthError(body), resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		outcome = "auth_error"
		return ErrAuthentication
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s: %s", ErrUnavailable, path, resp.Status)
	case resp.StatusCode >= 400:
		return fmt.Errorf("carrier: %s: %s", path, resp.Status)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("carrier: decode %s: %w", path, err)
	}
	outcome = "ok"
	return nil
}

// Sign computes the request hash: HMAC-SHA256 over the parameter values
// ordered by key and joined with "&". The hash parameter itself is excluded.
func Sign(secret string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, params.Get(k))
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(values, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// isAuthError detects the API's plain "Authentication error" reply, which may
// arrive as a bare or JSON-quoted string.
func isAuthError(body []byte) bool {
	s := strings.Trim(strings.TrimSpace(string(body)), `"`)
	return strings.EqualFold(s, "Authentication error")
}

func setIfNotEmpty(v url.Values, key, value string) {
	if s := strings.TrimSpace(value); s != "" {
		v.Set(key, s)
	}
}
