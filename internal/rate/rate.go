package rate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidOffering is returned when an offering cannot be priced.
var ErrInvalidOffering = errors.New("invalid offering configuration")

// ServiceOffering is one carrier service as configured for a shipping method instance.
type ServiceOffering struct {
	Code                  string
	Label                 string
	FlatPrice             decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	Active                bool
}

// Quote is a rate offered to the customer at checkout.
type Quote struct {
	ID           string          `json:"id"`
	Label        string          `json:"label"`
	Cost         decimal.Decimal `json:"cost"`
	MissingLabel bool            `json:"missing_label,omitempty"`
}

// LabelLookup resolves the display name of a service code.
type LabelLookup func(code string) (string, bool)

// Calculate returns one quote per active offering, in configuration order.
// A zero threshold disables the free tier; otherwise the cart total must
// exceed it for the cost to drop to zero.
func Calculate(cartTotal decimal.Decimal, offerings []ServiceOffering, methodID string, labels LabelLookup) ([]Quote, error) {
	if cartTotal.IsNegative() {
		return nil, fmt.Errorf("%w: negative cart total %s", ErrInvalidOffering, cartTotal)
	}
	if err := validate(offerings); err != nil {
		return nil, err
	}

	quotes := make([]Quote, 0, len(offerings))
	for _, o := range offerings {
		if !o.Active {
			continue
		}
		cost := o.FlatPrice
		if o.FreeShippingThreshold.IsPositive() && cartTotal.GreaterThan(o.FreeShippingThreshold) {
			cost = decimal.Zero
		}

		q := Quote{ID: methodID + ":" + o.Code, Cost: cost}
		label, ok := "", false
		if labels != nil {
			label, ok = labels(o.Code)
		}
		if ok && strings.TrimSpace(label) != "" {
			q.Label = label
		} else {
			q.MissingLabel = true
			q.Label = orDefault(o.Label, o.Code)
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func validate(offerings []ServiceOffering) error {
	seen := make(map[string]struct{}, len(offerings))
	for i, o := range offerings {
		code := strings.TrimSpace(o.Code)
		if code == "" {
			return fmt.Errorf("%w: offering %d has no service code", ErrInvalidOffering, i)
		}
		if _, dup := seen[code]; dup {
			return fmt.Errorf("%w: duplicate service code %q", ErrInvalidOffering, code)
		}
		seen[code] = struct{}{}
		if o.FlatPrice.IsNegative() {
			return fmt.Errorf("%w: %s: negative price %s", ErrInvalidOffering, code, o.FlatPrice)
		}
		if o.FreeShippingThreshold.IsNegative() {
			return fmt.Errorf("%w: %s: negative free shipping threshold %s", ErrInvalidOffering, code, o.FreeShippingThreshold)
		}
	}
	return nil
}

// MissingLabels lists the service codes of quotes emitted without a resolved label.
func MissingLabels(quotes []Quote, methodID string) []string {
	var out []string
	prefix := methodID + ":"
	for _, q := range quotes {
		if q.MissingLabel {
			out = append(out, strings.TrimPrefix(q.ID, prefix))
		}
	}
	return out
}

func orDefault(s, d string) string {
	if strings.TrimSpace(s) == "" {
		return d
	}
	return s
}
