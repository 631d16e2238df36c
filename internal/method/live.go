package method

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"pakettikauppa/internal/carrier"
	"pakettikauppa/internal/shipment"
	"pakettikauppa/internal/tracking"
)

// LiveEvent is a carrier tracking event with its status described.
type LiveEvent struct {
	carrier.TrackingEvent
	StatusText string `json:"status_text"`
}

// LiveTracking fetches a parcel's events from the carrier. When a tracking
// store is configured the events are recorded there as well.
func (s *Service) LiveTracking(ctx context.Context, code string) ([]LiveEvent, error) {
	events, err := s.carrier.TrackingEvents(ctx, code)
	if err != nil {
		if errors.Is(err, carrier.ErrInvalidQuery) {
			return nil, err
		}
		return nil, s.unavailable("tracking events", err)
	}
	out := make([]LiveEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, LiveEvent{TrackingEvent: ev, StatusText: shipment.StatusText(ev.StatusCode)})
		if s.tracking == nil {
			continue
		}
		if err := s.tracking.Record(ctx, code, toTrackingEvent(ev)); err != nil {
			s.log.Warn().Err(err).Str("code", code).Msg("recording live event failed")
		}
	}
	return out, nil
}

func toTrackingEvent(ev carrier.TrackingEvent) tracking.Event {
	loc := json.RawMessage("{}")
	if ev.Location != "" {
		loc, _ = json.Marshal(map[string]string{"name": ev.Location})
	}
	raw, _ := json.Marshal(ev)
	return tracking.Event{
		Status:      strconv.Itoa(ev.StatusCode),
		Description: ev.Description,
		Location:    loc,
		OccurredAt:  ev.OccurredAt.UTC(),
		Raw:         raw,
	}
}
