package shipment

import (
	"fmt"
	"strconv"
	"strings"
)

var statusTexts = map[int]string{
	13: "Item is collected from sender - picked up",
	20: "Exception",
	22: "Item has been handed over to the recipient",
	31: "Item is in transport",
	38: "C.O.D payment is paid to the sender",
	45: "Informed consignee of arrival",
	48: "Item is loaded onto a means of transport",
	56: "Item not delivered – delivery attempt made",
	68: "Pre-information is received from sender",
	71: "Item is ready for delivery transportation",
	77: "Item is returning to the sender",
	91: "Item is arrived to a post office",
	99: "Outbound",
}

// StatusText describes a carrier status code. Unknown codes are reported verbatim.
func StatusText(code int) string {
	if s, ok := statusTexts[code]; ok {
		return s
	}
	return fmt.Sprintf("Unknown status: %d", code)
}

// StatusTextFromString is StatusText for codes received as text.
func StatusTextFromString(code string) string {
	code = strings.TrimSpace(code)
	n, err := strconv.Atoi(code)
	if err != nil {
		return "Unknown status: " + code
	}
	return StatusText(n)
}

// KnownStatus reports whether code is in the carrier's status table.
func KnownStatus(code int) bool {
	_, ok := statusTexts[code]
	return ok
}
