package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic-booking/internal/interval"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// SyncStatus records whether the reservation's external calendar mirror
// succeeded. Advisory only: it never blocks reads or cancellation.
type SyncStatus string

const (
	SyncSynced     SyncStatus = "synced"
	SyncPending    SyncStatus = "sync_pending"
	SyncNoCalendar SyncStatus = "no_calendar"
)

type Doctor struct {
	ID               uuid.UUID
	Name             string
	Specialty        *string
	GoogleCalendarID *string
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasCalendar reports whether the doctor has an external calendar
// identity configured.
func (d *Doctor) HasCalendar() bool {
	return d.GoogleCalendarID != nil && *d.GoogleCalendarID != ""
}

// CalendarID returns the doctor's calendar identity, or "" for the
// clinic default.
func (d *Doctor) CalendarID() string {
	if d.GoogleCalendarID == nil {
		return ""
	}
	return *d.GoogleCalendarID
}

type Reservation struct {
	ID               uuid.UUID
	DoctorID         uuid.UUID
	UserID           uuid.UUID
	PatientName      string
	PatientEmail     string
	PatientPhone     *string
	ServiceType      string
	StartAt          time.Time
	EndAt            time.Time
	Status           Status
	SyncStatus       SyncStatus
	GoogleCalendarID *string
	GoogleEventID    *string
	Notes            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Interval returns the reservation's occupied half-open time range.
func (r *Reservation) Interval() interval.Interval {
	return interval.Interval{Start: r.StartAt, End: r.EndAt}
}
