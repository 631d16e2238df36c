package shipment

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateReceiver(t *testing.T) {
	ok := Receiver{Name: "Matti Meikäläinen", Address1: "Mannerheimintie 1", Postcode: "00100", City: "Helsinki", Country: "FI"}
	if err := ValidateReceiver(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	onlySecondLine := ok
	onlySecondLine.Address1 = ""
	onlySecondLine.Address2 = "PL 12"
	if err := ValidateReceiver(onlySecondLine); err != nil {
		t.Fatalf("second address line should be enough: %v", err)
	}

	missing := Receiver{Name: "  ", Postcode: "00100", Country: "FI"}
	err := ValidateReceiver(missing)
	if !errors.Is(err, ErrIncompleteReceiver) {
		t.Fatalf("expected ErrIncompleteReceiver, got %v", err)
	}
	for _, field := range []string{"Name", "Address1", "City"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q should name %s", err, field)
		}
	}
}

func TestServiceOrDefault(t *testing.T) {
	if got := ServiceOrDefault(""); got != DefaultService {
		t.Fatalf("expected default service, got %q", got)
	}
	if got := ServiceOrDefault(" 90010 "); got != "90010" {
		t.Fatalf("expected 90010, got %q", got)
	}
}

func TestTrackingURL(t *testing.T) {
	if got := TrackingURL("JJFI6406123"); got != "https://pakettikauppa.fi/seuranta/?JJFI6406123" {
		t.Fatalf("unexpected url: %s", got)
	}
}
