// Package method is the Pakettikauppa shipping method: checkout rates, the
// admin service table, pickup points and shipment preparation.
package method

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pakettikauppa/internal/carrier"
	"pakettikauppa/internal/obs"
	"pakettikauppa/internal/rate"
	"pakettikauppa/internal/settings"
	"pakettikauppa/internal/shipment"
	"pakettikauppa/internal/tracking"
)

// DefaultSearchLimit caps pickup point results when no limit is configured.
const DefaultSearchLimit = 5

var (
	// ErrCarrierUnavailable wraps every failed carrier call. Its text is shown to shoppers.
	ErrCarrierUnavailable = errors.New("Unable to connect to Pakettikauppa service.")
	// ErrCODNotConfigured is returned for cash-on-delivery orders when no IBAN is set.
	ErrCODNotConfigured = errors.New("cash on delivery requires an IBAN")
)

// Sender is the merchant address printed on labels.
type Sender struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
}

// COD holds the merchant's bank account for cash-on-delivery payments.
type COD struct {
	IBAN string
	BIC  string
}

// Config is the merchant-level configuration of the shipping method.
type Config struct {
	MethodID           string
	SearchLimit        int
	DimensionUnit      shipment.DimensionUnit
	AddTrackingToEmail bool
	Sender             Sender
	COD                COD
}

// Deps are the collaborators of a Service. Tracking and Metrics may be nil.
type Deps struct {
	Settings settings.Store
	Catalog  *carrier.Catalog
	Carrier  carrier.Client
	Tracking tracking.Store
	Metrics  *obs.Metrics
	Logger   zerolog.Logger
}

type Service struct {
	cfg      Config
	settings settings.Store
	catalog  *carrier.Catalog
	carrier  carrier.Client
	tracking tracking.Store
	metrics  *obs.Metrics
	log      zerolog.Logger
}

func New(cfg Config, deps Deps) *Service {
	if cfg.MethodID == "" {
		cfg.MethodID = "pakettikauppa"
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	if cfg.DimensionUnit == "" {
		cfg.DimensionUnit = shipment.Meter
	}
	return &Service{
		cfg:      cfg,
		settings: deps.Settings,
		catalog:  deps.Catalog,
		carrier:  deps.Carrier,
		tracking: deps.Tracking,
		metrics:  deps.Metrics,
		log:      deps.Logger.With().Str("component", "method").Logger(),
	}
}

// Rates quotes every active service of an instance for a cart total.
// An instance without saved settings has no rates.
func (s *Service) Rates(ctx context.Context, instanceID int64, cartTotal decimal.Decimal) ([]rate.Quote, error) {
	entries, err := s.settings.Load(ctx, instanceID)
	if errors.Is(err, settings.ErrNotFound) {
		return []rate.Quote{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	offerings, err := settings.Offerings(entries)
	if err != nil {
		return nil, err
	}

	labels, err := s.catalog.Lookup(ctx)
	if err != nil {
		s.log.Warn().Err(err).Int64("instance_id", instanceID).Msg("service names unavailable, quoting without labels")
		labels = nil
	}

	quotes, err := rate.Calculate(cartTotal, offerings, s.cfg.MethodID, labels)
	if err != nil {
		return nil, err
	}
	prefix := s.cfg.MethodID + ":"
	for _, q := range quotes {
		s.metrics.Quote(strings.TrimPrefix(q.ID, prefix))
	}
	for _, code := range rate.MissingLabels(quotes, s.cfg.MethodID) {
		s.metrics.MissingLabel(code)
		s.log.Warn().Str("service", code).Int64("instance_id", instanceID).Msg("no carrier name for configured service")
	}
	return quotes, nil
}

// Services lists the carrier's shipping services.
func (s *Service) Services(ctx context.Context) ([]carrier.Service, error) {
	services, err := s.catalog.Services(ctx)
	if err != nil {
		return nil, s.unavailable("list services", err)
	}
	return services, nil
}

// RefreshServices drops the cached service list and fetches it again from the carrier.
func (s *Service) RefreshServices(ctx context.Context) ([]carrier.Service, error) {
	if err := s.catalog.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("service cache invalidation failed")
	}
	return s.Services(ctx)
}

// ServiceTable is the admin view of an instance: every carrier service with
// its saved settings or the defaults.
func (s *Service) ServiceTable(ctx context.Context, instanceID int64) ([]settings.Row, error) {
	services, err := s.Services(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.settings.Load(ctx, instanceID)
	if err != nil && !errors.Is(err, settings.ErrNotFound) {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return settings.Merge(services, entries), nil
}

// SaveServiceTable normalizes and stores an instance's service table.
func (s *Service) SaveServiceTable(ctx context.Context, instanceID int64, entries []settings.Entry) ([]settings.Entry, error) {
	normalized, err := settings.Normalize(entries)
	if err != nil {
		return nil, err
	}
	if err := s.settings.Save(ctx, instanceID, normalized); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	s.log.Info().Int64("instance_id", instanceID).Int("services", len(normalized)).Msg("service table saved")
	return normalized, nil
}

// PickupPoints searches pickup points, keeping at most the configured number.
func (s *Service) PickupPoints(ctx context.Context, q carrier.PickupQuery) ([]carrier.PickupPoint, error) {
	points, err := s.carrier.SearchPickupPoints(ctx, q)
	if err != nil {
		if errors.Is(err, carrier.ErrInvalidQuery) {
			return nil, err
		}
		return nil, s.unavailable("search pickup points", err)
	}
	if len(points) > s.cfg.SearchLimit {
		points = points[:s.cfg.SearchLimit]
	}
	return points, nil
}

func (s *Service) unavailable(op string, err error) error {
	s.log.Error().Err(err).Str("op", op).Msg("carrier call failed")
	return fmt.Errorf("%w: %w", ErrCarrierUnavailable, err)
}
