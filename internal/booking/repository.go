package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrReservationNotFound = errors.New("reservation not found")
)

// ReservationUpdate carries optional field changes. Nil pointers leave
// the column untouched. ClearEventID distinguishes "set google_event_id
// to NULL" from "leave it alone".
type ReservationUpdate struct {
	StartAt       *time.Time
	EndAt         *time.Time
	ServiceType   *string
	Notes         *string
	Status        *Status
	SyncStatus    *SyncStatus
	GoogleEventID *string
	ClearEventID  bool
}

// ListFilter narrows reservation listings. Nil fields match everything;
// Day is interpreted as the clinic-timezone day containing it.
type ListFilter struct {
	DoctorID *uuid.UUID
	UserID   *uuid.UUID
	Status   *Status
	DayStart *time.Time
	DayEnd   *time.Time
}

// Store contains all reservation and doctor persistence the services
// need. Filtering out cancelled rows is always the caller's explicit
// choice, never implicit.
type Store interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListActiveDoctors(ctx context.Context) ([]Doctor, error)

	// InsertReservation persists a new reservation. A store-level overlap
	// constraint firing is reported as ErrSlotUnavailable.
	InsertReservation(ctx context.Context, r *Reservation) (*Reservation, error)
	GetReservationByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// ListByDoctorAndRange returns reservations whose interval overlaps
	// [from, to), optionally including cancelled rows.
	ListByDoctorAndRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time, includeCancelled bool) ([]Reservation, error)
	ListReservations(ctx context.Context, f ListFilter) ([]Reservation, error)

	// ListPendingSync returns confirmed reservations whose calendar
	// mirror is still outstanding, oldest first.
	ListPendingSync(ctx context.Context, limit int) ([]Reservation, error)

	// UpdateReservationStatus transitions status from -> to, returning
	// ErrReservationNotFound when no row is in the expected state.
	UpdateReservationStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Reservation, error)
	UpdateReservation(ctx context.Context, id uuid.UUID, upd ReservationUpdate) (*Reservation, error)
}
