package method

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"pakettikauppa/internal/shipment"
)

// OrderRequest carries what is known about an order when preparing its shipment.
type OrderRequest struct {
	OrderID      int64             `json:"-"`
	Service      string            `json:"service"`
	Receiver     shipment.Receiver `json:"receiver"`
	Items        []shipment.Item   `json:"items"`
	CODAmount    decimal.Decimal   `json:"cod_amount"`
	TrackingCode string            `json:"tracking_code"`
}

// CODDetails is the cash-on-delivery block of a shipment.
type CODDetails struct {
	Amount    decimal.Decimal `json:"amount"`
	IBAN      string          `json:"iban"`
	BIC       string          `json:"bic"`
	Reference string          `json:"reference"`
}

// Details is everything the carrier needs to know about an order's shipment.
type Details struct {
	OrderID       int64             `json:"order_id"`
	Reference     string            `json:"reference"`
	Service       string            `json:"service"`
	ServiceTitle  string            `json:"service_title,omitempty"`
	Weight        decimal.Decimal   `json:"weight"`
	Volume        decimal.Decimal   `json:"volume"`
	Receiver      shipment.Receiver `json:"receiver"`
	Ready         bool              `json:"ready"`
	ReceiverError string            `json:"receiver_error,omitempty"`
	Sender        Sender            `json:"sender"`
	COD           *CODDetails       `json:"cod,omitempty"`
	TrackingURL   string            `json:"tracking_url,omitempty"`
}

// ShipmentDetails assembles the shipment of an order. An incomplete receiver
// does not fail the call; Ready is false and ReceiverError says what is missing.
func (s *Service) ShipmentDetails(ctx context.Context, req OrderRequest) (Details, error) {
	ref, err := shipment.InvoiceReference(req.OrderID)
	if err != nil {
		return Details{}, err
	}
	if err := shipment.ValidateItems(req.Items); err != nil {
		return Details{}, err
	}
	d := Details{
		OrderID:   req.OrderID,
		Reference: ref,
		Service:   shipment.ServiceOrDefault(req.Service),
		Weight:    shipment.OrderWeight(req.Items),
		Volume:    shipment.OrderVolume(req.Items, s.cfg.DimensionUnit),
		Receiver:  req.Receiver,
		Ready:     true,
		Sender:    s.cfg.Sender,
	}
	if err := shipment.ValidateReceiver(req.Receiver); err != nil {
		d.Ready = false
		d.ReceiverError = err.Error()
	}

	if labels, err := s.catalog.Lookup(ctx); err == nil {
		d.ServiceTitle, _ = labels(d.Service)
	} else {
		s.log.Warn().Err(err).Int64("order_id", req.OrderID).Msg("service name unavailable")
	}

	if req.CODAmount.IsPositive() {
		if strings.TrimSpace(s.cfg.COD.IBAN) == "" {
			return Details{}, ErrCODNotConfigured
		}
		d.COD = &CODDetails{
			Amount:    req.CODAmount,
			IBAN:      s.cfg.COD.IBAN,
			BIC:       s.cfg.COD.BIC,
			Reference: ref,
		}
	}
	if s.cfg.AddTrackingToEmail && strings.TrimSpace(req.TrackingCode) != "" {
		d.TrackingURL = shipment.TrackingURL(req.TrackingCode)
	}
	return d, nil
}
