package shipment

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// DefaultService is used when an order does not name a carrier service.
const DefaultService = "2103"

const trackingBaseURL = "https://pakettikauppa.fi/seuranta/"

// ErrIncompleteReceiver is returned when an order lacks shipping details.
var ErrIncompleteReceiver = errors.New("incomplete shipping receiver")

// Receiver is the shipping address of an order.
type Receiver struct {
	Name     string `json:"name" validate:"required"`
	Address1 string `json:"address_1" validate:"required_without=Address2"`
	Address2 string `json:"address_2" validate:"required_without=Address1"`
	Postcode string `json:"postcode" validate:"required"`
	City     string `json:"city" validate:"required"`
	Country  string `json:"country" validate:"required"`
}

var validate = newValidator()

// newValidator lets numeric tags such as gte=0 apply to decimal fields.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// failedFields lists the struct fields named in a validation error.
func failedFields(err error) ([]string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields, true
}

// ValidateReceiver checks that the receiver can be put on a shipping label.
func ValidateReceiver(r Receiver) error {
	r = Receiver{
		Name:     strings.TrimSpace(r.Name),
		Address1: strings.TrimSpace(r.Address1),
		Address2: strings.TrimSpace(r.Address2),
		Postcode: strings.TrimSpace(r.Postcode),
		City:     strings.TrimSpace(r.City),
		Country:  strings.TrimSpace(r.Country),
	}
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	fields, ok := failedFields(err)
	if !ok {
		return err
	}
	return fmt.Errorf("%w: missing %s", ErrIncompleteReceiver, strings.Join(fields, ", "))
}

// ServiceOrDefault returns code, or DefaultService when code is blank.
func ServiceOrDefault(code string) string {
	if strings.TrimSpace(code) == "" {
		return DefaultService
	}
	return strings.TrimSpace(code)
}

// TrackingURL links to the public tracking page for a tracking code.
func TrackingURL(trackingCode string) string {
	return trackingBaseURL + "?" + url.QueryEscape(strings.TrimSpace(trackingCode))
}
