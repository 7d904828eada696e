package calendar

import (
	"context"
	"time"

	"github.com/clinicbook/clinic-booking/internal/interval"
)

// DisabledGateway stands in when no Google credentials are configured.
// Reads report an empty calendar; writes fail with ErrUnavailable, which
// the booking path downgrades to a pending-sync marker.
type DisabledGateway struct{}

func (DisabledGateway) ListBusy(ctx context.Context, calendarID string, from, to time.Time) ([]interval.Interval, error) {
	return nil, nil
}

func (DisabledGateway) InsertEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	return "", ErrUnavailable
}

func (DisabledGateway) UpdateEvent(ctx context.Context, calendarID, eventID string, ev Event) error {
	return ErrUnavailable
}

func (DisabledGateway) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return ErrUnavailable
}
