package carrier

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MockClient returns canned carrier data and is useful for tests and local runs.
type MockClient struct{}

var mockServices = []Service{
	{Code: "2103", Provider: "Posti", Name: "Postipaketti"},
	{Code: "2104", Provider: "Posti", Name: "Kotipaketti"},
	{Code: "90010", Provider: "Matkahuolto", Name: "Lähellä-paketti"},
	{Code: "80010", Provider: "DB Schenker", Name: "Noutopistepaketti"},
}

func (MockClient) ListShippingMethods(ctx context.Context) ([]Service, error) {
	return append([]Service(nil), mockServices...), nil
}

// SearchPickupPoints returns eight points near the postcode, two per provider.
func (MockClient) SearchPickupPoints(ctx context.Context, q PickupQuery) ([]PickupPoint, error) {
	postcode := strings.TrimSpace(q.Postcode)
	if postcode == "" {
		return nil, fmt.Errorf("%w: postcode required", ErrInvalidQuery)
	}
	country := strings.ToUpper(strings.TrimSpace(q.Country))
	if country == "" {
		country = "FI"
	}
	var out []PickupPoint
	for _, provider := range []string{"Posti", "Matkahuolto", "DB Schenker", "PostNord"} {
		if q.ServiceProvider != "" && !strings.EqualFold(q.ServiceProvider, provider) {
			continue
		}
		for i := 0; i < 2; i++ {
			n := len(out) + 1
			out = append(out, PickupPoint{
				ID:             fmt.Sprintf("%s-%s-%d", strings.ReplaceAll(strings.ToLower(provider), " ", ""), postcode, n),
				Provider:       provider,
				Name:           fmt.Sprintf("%s pickup point %d", provider, n),
				StreetAddress:  fmt.Sprintf("Testikatu %d", n),
				Postcode:       postcode,
				City:           "Helsinki",
				Country:        country,
				DistanceMeters: n * 250,
			})
		}
	}
	return out, nil
}

func (MockClient) TrackingEvents(ctx context.Context, trackingCode string) ([]TrackingEvent, error) {
	if strings.TrimSpace(trackingCode) == "" {
		return nil, fmt.Errorf("%w: tracking code required", ErrInvalidQuery)
	}
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return []TrackingEvent{
		{StatusCode: 68, Description: "Pre-information received", Location: "Helsinki", OccurredAt: base},
		{StatusCode: 31, Description: "In transport", Location: "Vantaa", OccurredAt: base.Add(20 * time.Hour)},
		{StatusCode: 22, Description: "Delivered", Location: "Tampere", OccurredAt: base.Add(44 * time.Hour)},
	}, nil
}
