// Package settings converts the persisted per-instance service table into
// rate offerings, and stores it.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"pakettikauppa/internal/carrier"
	"pakettikauppa/internal/rate"
)

// DefaultPrice is offered for services the merchant has not configured yet.
const DefaultPrice = "5.95"

var (
	// ErrInvalidOffering is returned for service settings that cannot be parsed.
	ErrInvalidOffering = rate.ErrInvalidOffering
	// ErrNotFound is returned when an instance has no saved service table.
	ErrNotFound = errors.New("shipping method settings not found")
)

// Entry is one service row as persisted: values stay text until parsed.
type Entry struct {
	Code      string `json:"-" validate:"required"`
	Active    string `json:"active" validate:"oneof=yes no"`
	Price     string `json:"price"`
	PriceFree string `json:"price_free"`
}

// Row is an admin view of a carrier service merged with its saved settings.
type Row struct {
	Code      string `json:"code"`
	Title     string `json:"title"`
	Active    bool   `json:"active"`
	Price     string `json:"price"`
	PriceFree string `json:"price_free"`
}

var validate = validator.New()

// Decode reads a service table, keeping the order of its keys.
func Decode(raw []byte) ([]Entry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOffering, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: service table must be an object", ErrInvalidOffering)
	}
	var entries []Entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOffering, err)
		}
		code, _ := tok.(string)
		var v struct {
			Active    text `json:"active"`
			Price     text `json:"price"`
			PriceFree text `json:"price_free"`
		}
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOffering, code, err)
		}
		entries = append(entries, Entry{Code: code, Active: string(v.Active), Price: string(v.Price), PriceFree: string(v.PriceFree)})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOffering, err)
	}
	return entries, nil
}

// Encode writes entries back as a JSON object in slice order.
func Encode(entries []Entry) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(e.Code)
		v, _ := json.Marshal(e)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// Offerings parses entries into rate offerings.
func Offerings(entries []Entry) ([]rate.ServiceOffering, error) {
	out := make([]rate.ServiceOffering, 0, len(entries))
	for _, e := range entries {
		price, err := parseAmount(e.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: price: %v", ErrInvalidOffering, e.Code, err)
		}
		free, err := parseAmount(e.PriceFree)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: price_free: %v", ErrInvalidOffering, e.Code, err)
		}
		out = append(out, rate.ServiceOffering{
			Code:                  e.Code,
			FlatPrice:             price,
			FreeShippingThreshold: free,
			Active:                e.Active == "yes",
		})
	}
	return out, nil
}

// Normalize cleans entries submitted from the admin form before they are saved.
func Normalize(entries []Entry) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		n := Entry{Code: strings.TrimSpace(e.Code), Active: "no"}
		if strings.EqualFold(strings.TrimSpace(e.Active), "yes") {
			n.Active = "yes"
		}
		if _, dup := seen[n.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate service code %q", ErrInvalidOffering, n.Code)
		}
		seen[n.Code] = struct{}{}
		price, err := parseAmount(e.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: price: %v", ErrInvalidOffering, n.Code, err)
		}
		free, err := parseAmount(e.PriceFree)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: price_free: %v", ErrInvalidOffering, n.Code, err)
		}
		n.Price = price.String()
		n.PriceFree = free.String()
		if err := validate.Struct(n); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOffering, n.Code, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Merge lists every carrier service with its saved settings, or the defaults
// for services that have none. Saved entries for services the carrier no
// longer offers are dropped.
func Merge(services []carrier.Service, entries []Entry) []Row {
	byCode := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byCode[e.Code] = e
	}
	rows := make([]Row, 0, len(services))
	for _, s := range services {
		row := Row{Code: s.Code, Title: s.Title(), Price: DefaultPrice, PriceFree: "0"}
		if e, ok := byCode[s.Code]; ok {
			row.Active = e.Active == "yes"
			row.Price = e.Price
			row.PriceFree = e.PriceFree
		}
		rows = append(rows, row)
	}
	return rows
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, `\`, ""))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %s", d)
	}
	return d, nil
}

// text accepts strings, numbers and booleans from stored settings.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case bytes.Equal(b, []byte("true")):
		*t = "yes"
	case bytes.Equal(b, []byte("false")):
		*t = "no"
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*t = text(n.String())
	}
	return nil
}
