package tracking

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Normalizer maps provider-specific webhook payloads into a Payload.
type Normalizer interface {
	Normalize(body []byte) (code string, p Payload, err error)
}

// ErrMissingCode is returned when a payload cannot produce a tracker code.
var ErrMissingCode = errors.New("missing tracker code")

// NewNormalizer selects a normalizer for the given source.
// Currently returns DefaultNormalizer for all sources.
func NewNormalizer(source string) Normalizer { return &DefaultNormalizer{} }

// DefaultNormalizer attempts to extract common fields from diverse payloads.
type DefaultNormalizer struct{}

func (n *DefaultNormalizer) Normalize(body []byte) (string, Payload, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", Payload{}, err
	}
	code := getString(payload, []string{"tracking_code", "code", "tracking_number", "shipment.tracking_code", "id"})
	code = strings.TrimSpace(code)
	if code == "" {
		return "", Payload{}, ErrMissingCode
	}

	status := getString(payload, []string{"status_code", "status", "event.status_code", "event.status", "tracking_status"})
	description := getString(payload, []string{"description", "event.description", "message", "event.message"})
	occurredAt := getString(payload, []string{"occurred_at", "event.occurred_at", "event_time", "timestamp"})

	locRaw := json.RawMessage("{}")
	if v := getAny(payload, []string{"location", "event.location", "address", "place"}); v != nil {
		if b, err := json.Marshal(v); err == nil {
			locRaw = json.RawMessage(b)
		}
	}

	return code, Payload{
		Status:      status,
		Description: description,
		Location:    locRaw,
		OccurredAt:  occurredAt,
		Raw:         json.RawMessage(body),
	}, nil
}

// getString returns the first non-empty string from the candidate keys.
// Whole numbers are accepted too, since carriers send status codes as numbers.
func getString(m map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := getPath(m, k).(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case float64:
			if v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10)
			}
		}
	}
	return ""
}

// getAny returns the first non-nil value from the candidate keys.
func getAny(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v := getPath(m, k); v != nil {
			return v
		}
	}
	return nil
}

// getPath navigates a dot-separated key into nested maps.
func getPath(m map[string]any, path string) any {
	var cur any = m
	for _, p := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := mm[p]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}
