package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/clinicbook/clinic-booking/internal/interval"
)

// ErrUnavailable marks any failed or timed-out call to the external
// calendar. Write paths must downgrade it to a sync flag, never surface
// it as a hard failure.
var ErrUnavailable = errors.New("external calendar unavailable")

// Event is the slice of a reservation that gets mirrored externally.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Gateway abstracts the third-party calendar. An empty calendarID selects
// the clinic's default calendar. The remote store is independently
// mutable; callers re-validate against it immediately before committing.
type Gateway interface {
	// ListBusy returns the occupied intervals within [from, to) for the
	// given calendar, with cancelled source events excluded and all-day
	// events expanded to full-day blocks.
	ListBusy(ctx context.Context, calendarID string, from, to time.Time) ([]interval.Interval, error)

	InsertEvent(ctx context.Context, calendarID string, ev Event) (string, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, ev Event) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}
