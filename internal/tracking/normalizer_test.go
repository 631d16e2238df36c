package tracking

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultNormalizer_NestedPakettikauppaPayload(t *testing.T) {
	body := []byte(`{"tracking_code":"JJFI6437..","event":{"status_code":22,"description":"Shipment in transit","location":{"city":"Vantaa"},"occurred_at":"2026-03-01T10:00:00Z"}}`)
	code, p, err := NewNormalizer("pakettikauppa").Normalize(body)
	require.NoError(t, err)
	require.Equal(t, "JJFI6437..", code)
	require.Equal(t, "22", p.Status)
	require.Equal(t, "Shipment in transit", p.Description)
	require.Equal(t, "2026-03-01T10:00:00Z", p.OccurredAt)
	require.JSONEq(t, `{"city":"Vantaa"}`, string(p.Location))
	require.Equal(t, json.RawMessage(body), p.Raw)
}

func TestDefaultNormalizer_FlatPayload(t *testing.T) {
	code, p, err := NewNormalizer("other").Normalize([]byte(`{"code":"ABC","status":"in_transit"}`))
	require.NoError(t, err)
	require.Equal(t, "ABC", code)
	require.Equal(t, "in_transit", p.Status)
	require.JSONEq(t, `{}`, string(p.Location))
}

func TestDefaultNormalizer_Errors(t *testing.T) {
	_, _, err := NewNormalizer("x").Normalize([]byte(`{"status":"x"}`))
	require.True(t, errors.Is(err, ErrMissingCode))

	_, _, err = NewNormalizer("x").Normalize([]byte(`not json`))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrMissingCode))
}

func TestGetString_IgnoresFractionalNumbers(t *testing.T) {
	require.Equal(t, "", getString(map[string]any{"status": 1.5}, []string{"status"}))
	require.Equal(t, "45", getString(map[string]any{"status": float64(45)}, []string{"status"}))
}
