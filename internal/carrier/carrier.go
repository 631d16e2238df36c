// Package carrier talks to the Pakettikauppa shipping API.
package carrier

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrAuthentication is returned when the API rejects the configured credentials.
	ErrAuthentication = errors.New("carrier: authentication error")
	// ErrUnavailable is returned when the API cannot be reached or fails.
	ErrUnavailable = errors.New("carrier: service unavailable")
	// ErrInvalidQuery is returned for requests the API would reject anyway.
	ErrInvalidQuery = errors.New("carrier: invalid query")
)

// Service is a shipping product offered by the carrier.
type Service struct {
	Code     string `json:"shipping_method_code"`
	Provider string `json:"service_provider"`
	Name     string `json:"name"`
}

// Title is the name shown to customers, e.g. "Posti Postipaketti".
func (s Service) Title() string {
	return strings.TrimSpace(s.Provider + " " + s.Name)
}

// PickupQuery selects pickup points near an address.
type PickupQuery struct {
	Postcode        string `json:"postcode"`
	StreetAddress   string `json:"street_address,omitempty"`
	Country         string `json:"country,omitempty"`
	ServiceProvider string `json:"service_provider,omitempty"`
}

// PickupPoint is a parcel locker or service point.
type PickupPoint struct {
	ID             string `json:"pickup_point_id"`
	Provider       string `json:"provider"`
	Name           string `json:"name"`
	StreetAddress  string `json:"street_address"`
	Postcode       string `json:"postcode"`
	City           string `json:"city"`
	Country        string `json:"country"`
	Description    string `json:"description,omitempty"`
	DistanceMeters int    `json:"distance_in_meters,omitempty"`
}

// TrackingEvent is one step in a parcel's journey.
type TrackingEvent struct {
	StatusCode  int       `json:"status_code"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Client is the subset of the carrier API this service uses.
type Client interface {
	ListShippingMethods(ctx context.Context) ([]Service, error)
	SearchPickupPoints(ctx context.Context, q PickupQuery) ([]PickupPoint, error)
	TrackingEvents(ctx context.Context, trackingCode string) ([]TrackingEvent, error)
}

// NewByName returns a Client by provider name.
// "mock" selects MockClient; anything else talks to the real API.
func NewByName(name string, opts Options) Client {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mock", "dummy":
		return MockClient{}
	default:
		return NewHTTPClient(opts)
	}
}
