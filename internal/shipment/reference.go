package shipment

import (
	"errors"
	"math"
	"strconv"
)

// ErrInvalidOrderID is returned for order ids that cannot produce a reference.
var ErrInvalidOrderID = errors.New("invalid order id for invoice reference")

// referenceOffset is added to the order id before the check digit is computed.
const referenceOffset = 100

var referenceWeights = [3]int{7, 3, 1}

// InvoiceReference returns the Finnish bank reference (viitenumero) for an order:
// the digits of orderID+100 followed by their check digit.
func InvoiceReference(orderID int64) (string, error) {
	if orderID < 0 || orderID > math.MaxInt64-referenceOffset {
		return "", ErrInvalidOrderID
	}
	base := strconv.FormatInt(orderID+referenceOffset, 10)
	return base + strconv.Itoa(checkDigit(base)), nil
}

// VerifyReference reports whether the last digit of ref is the check digit of the rest.
func VerifyReference(ref string) bool {
	if len(ref) < 2 {
		return false
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return false
		}
	}
	base, last := ref[:len(ref)-1], int(ref[len(ref)-1]-'0')
	return checkDigit(base) == last
}

// checkDigit weights the digits 7, 3, 1, 7, ... starting from the rightmost one.
func checkDigit(digits string) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		d := int(digits[len(digits)-1-i] - '0')
		sum += d * referenceWeights[i%len(referenceWeights)]
	}
	return (10 - sum%10) % 10
}
