package shipment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DimensionUnit is the unit product dimensions are stored in.
type DimensionUnit string

const (
	Millimeter DimensionUnit = "mm"
	Centimeter DimensionUnit = "cm"
	Decimeter  DimensionUnit = "dm"
	Meter      DimensionUnit = "m"
)

// ParseDimensionUnit maps a configured unit name to a DimensionUnit.
// Unrecognised names are treated as meters.
func ParseDimensionUnit(s string) DimensionUnit {
	switch DimensionUnit(strings.ToLower(strings.TrimSpace(s))) {
	case Millimeter:
		return Millimeter
	case Centimeter:
		return Centimeter
	case Decimeter:
		return Decimeter
	default:
		return Meter
	}
}

// ToMeters returns the factor converting one unit of length into meters.
func (u DimensionUnit) ToMeters() decimal.Decimal {
	switch u {
	case Millimeter:
		return decimal.New(1, -3)
	case Centimeter:
		return decimal.New(1, -2)
	case Decimeter:
		return decimal.New(1, -1)
	default:
		return decimal.New(1, 0)
	}
}

// Item is an order line as far as shipping is concerned.
// ProductID <= 0 means the line has no physical product behind it.
type Item struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Weight    decimal.Decimal `json:"weight" validate:"gte=0"`
	Width     decimal.Decimal `json:"width" validate:"gte=0"`
	Height    decimal.Decimal `json:"height" validate:"gte=0"`
	Length    decimal.Decimal `json:"length" validate:"gte=0"`
	Virtual   bool            `json:"virtual"`
}

// ErrInvalidItem is returned for order lines with a non-positive quantity
// or a negative weight or dimension.
var ErrInvalidItem = errors.New("invalid order item")

// ValidateItems checks every order line before weight and volume are summed.
func ValidateItems(items []Item) error {
	for i, it := range items {
		err := validate.Struct(it)
		if err == nil {
			continue
		}
		fields, ok := failedFields(err)
		if !ok {
			return err
		}
		return fmt.Errorf("%w: item %d: %s", ErrInvalidItem, i, strings.Join(fields, ", "))
	}
	return nil
}

func (it Item) ships() bool {
	return it.ProductID > 0 && !it.Virtual
}

// OrderWeight sums weight times quantity over shippable items.
func OrderWeight(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if !it.ships() {
			continue
		}
		total = total.Add(it.Weight.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// OrderVolume sums the volume of shippable items in cubic meters.
func OrderVolume(items []Item, unit DimensionUnit) decimal.Decimal {
	m := unit.ToMeters()
	cube := m.Mul(m).Mul(m)
	total := decimal.Zero
	for _, it := range items {
		if !it.ships() {
			continue
		}
		v := cube.Mul(it.Width).Mul(it.Height).Mul(it.Length).Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(v)
	}
	return total
}
