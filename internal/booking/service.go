package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clinicbook/clinic-booking/internal/calendar"
	"github.com/clinicbook/clinic-booking/internal/clinichours"
	"github.com/clinicbook/clinic-booking/internal/interval"
	"github.com/clinicbook/clinic-booking/internal/notify"
	"github.com/clinicbook/clinic-booking/internal/observability/metrics"
	redisclient "github.com/clinicbook/clinic-booking/internal/redis"
)

var (
	ErrSlotUnavailable      = errors.New("requested slot is not available")
	ErrSlotBeingBooked      = errors.New("slot is currently being booked, please retry")
	ErrReservationCancelled = errors.New("reservation is cancelled")
	ErrInvalidInput         = errors.New("invalid booking input")
)

// Service is the booking write path: it re-validates availability at
// commit time, mirrors the reservation to the doctor's external
// calendar best-effort, and keeps the local store as the source of
// truth for reservation existence.
type Service struct {
	store        Store
	gateway      calendar.Gateway
	locker       redisclient.Locker
	hours        *clinichours.Policy
	availability *Availability
	email        notify.EmailSender
	metrics      *metrics.BookingMetrics
}

func NewService(store Store, gateway calendar.Gateway, locker redisclient.Locker, hours *clinichours.Policy, availability *Availability, email notify.EmailSender, m *metrics.BookingMetrics) *Service {
	return &Service{
		store:        store,
		gateway:      gateway,
		locker:       locker,
		hours:        hours,
		availability: availability,
		email:        email,
		metrics:      m,
	}
}

type CreateInput struct {
	DoctorID     uuid.UUID
	UserID       uuid.UUID
	PatientName  string
	PatientEmail string
	PatientPhone *string
	ServiceType  string
	StartAt      time.Time
	Duration     time.Duration
	Notes        *string
}

// Create books the requested interval. The local conflict check and the
// insert run under a per-doctor/day lock; the store's overlap constraint
// backstops whatever slips through. Calendar failures never abort the
// booking: the reservation commits with sync_status sync_pending.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Reservation, error) {
	if in.PatientName == "" || in.PatientEmail == "" {
		return nil, fmt.Errorf("%w: patient name and email are required", ErrInvalidInput)
	}
	if in.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}

	doctor, err := s.store.GetDoctorByID(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}

	slot := interval.Interval{Start: in.StartAt, End: in.StartAt.Add(in.Duration)}
	day := s.hours.Midnight(in.StartAt)

	var created *Reservation

	err = s.locker.WithDoctorDayLock(ctx, doctor.ID, day, func(lockCtx context.Context) error {
		// Narrow re-check against current local reservations; the slot
		// listing the client saw may be arbitrarily stale.
		free, err := s.availability.CheckSlot(lockCtx, doctor.ID, slot, uuid.Nil)
		if err != nil {
			return err
		}
		if !free {
			s.metrics.ObserveConflict("local")
			return ErrSlotUnavailable
		}

		syncStatus, eventID, err := s.mirrorCreate(lockCtx, doctor, slot, in)
		if err != nil {
			return err
		}

		r := &Reservation{
			ID:            uuid.New(),
			DoctorID:      doctor.ID,
			UserID:        in.UserID,
			PatientName:   in.PatientName,
			PatientEmail:  in.PatientEmail,
			PatientPhone:  in.PatientPhone,
			ServiceType:   in.ServiceType,
			StartAt:       slot.Start,
			EndAt:         slot.End,
			Status:        StatusConfirmed,
			SyncStatus:    syncStatus,
			GoogleEventID: eventID,
		}
		if doctor.HasCalendar() {
			r.GoogleCalendarID = doctor.GoogleCalendarID
		}

		created, err = s.store.InsertReservation(lockCtx, r)
		if err != nil {
			if errors.Is(err, ErrSlotUnavailable) {
				s.metrics.ObserveConflict("commit")
				// Undo the just-created mirror event so the calendar does
				// not show an appointment the store rejected.
				if eventID != nil {
					if delErr := s.gateway.DeleteEvent(lockCtx, doctor.CalendarID(), *eventID); delErr != nil {
						log.Warn().Err(delErr).Str("event_id", *eventID).Msg("failed to roll back calendar event after insert conflict")
					}
				}
			}
			return err
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.metrics.ObserveCreated(string(created.SyncStatus))
	s.sendConfirmation(ctx, created, doctor.Name)

	return created, nil
}

// mirrorCreate runs the external-calendar side of a creation: busy
// re-check for exactly the requested window, then event insert. Every
// gateway failure is downgraded to sync_pending; only a detected
// conflict is terminal.
func (s *Service) mirrorCreate(ctx context.Context, doctor *Doctor, slot interval.Interval, in CreateInput) (SyncStatus, *string, error) {
	if !doctor.HasCalendar() {
		return SyncNoCalendar, nil, nil
	}

	busy, err := s.gateway.ListBusy(ctx, doctor.CalendarID(), slot.Start, slot.End)
	if err != nil {
		log.Warn().Err(err).Str("doctor_id", doctor.ID.String()).Msg("busy re-check failed, booking will sync later")
		return SyncPending, nil, nil
	}
	if interval.OverlapsAny(slot, busy) {
		s.metrics.ObserveConflict("external")
		return "", nil, ErrSlotUnavailable
	}

	eventID, err := s.gateway.InsertEvent(ctx, doctor.CalendarID(), s.buildEvent(doctor, slot, in))
	if err != nil {
		log.Warn().Err(err).Str("doctor_id", doctor.ID.String()).Msg("calendar event creation failed, booking will sync later")
		return SyncPending, nil, nil
	}

	return SyncSynced, &eventID, nil
}

func (s *Service) buildEvent(doctor *Doctor, slot interval.Interval, in CreateInput) calendar.Event {
	phone := "N/A"
	if in.PatientPhone != nil {
		phone = *in.PatientPhone
	}
	notes := "None"
	if in.Notes != nil {
		notes = *in.Notes
	}
	return calendar.Event{
		Summary: fmt.Sprintf("Appointment: %s", in.PatientName),
		Description: fmt.Sprintf("Appointment with %s\n\nPatient: %s\nEmail: %s\nPhone: %s\n\nNotes: %s",
			doctor.Name, in.PatientName, in.PatientEmail, phone, notes),
		Start: slot.Start,
		End:   slot.End,
	}
}

// Cancel marks the reservation cancelled, keeping the row for audit and
// overlap history. Cancelling twice is a no-op success. The external
// event delete is best-effort: local status is the source of truth for
// the user-facing system.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	r, err := s.store.GetReservationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusCancelled {
		return r, nil
	}

	if r.GoogleEventID != nil {
		calID := ""
		if r.GoogleCalendarID != nil {
			calID = *r.GoogleCalendarID
		}
		if err := s.gateway.DeleteEvent(ctx, calID, *r.GoogleEventID); err != nil {
			log.Warn().Err(err).Str("reservation_id", id.String()).Msg("calendar event delete failed, cancelling locally anyway")
		}
	}

	updated, err := s.store.UpdateReservationStatus(ctx, id, r.Status, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			// Lost a race with another canceller; re-read and treat as done
			// if the row is cancelled now.
			if current, getErr := s.store.GetReservationByID(ctx, id); getErr == nil && current.Status == StatusCancelled {
				return current, nil
			}
		}
		return nil, err
	}

	s.metrics.ObserveCancelled()
	return updated, nil
}

type UpdateInput struct {
	StartAt     *time.Time
	Duration    *time.Duration
	ServiceType *string
	Notes       *string
}

// Update reschedules and/or edits a reservation. A changed interval goes
// through the same two-tier availability check as a creation, against
// the new interval and excluding the reservation itself.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Reservation, error) {
	r, err := s.store.GetReservationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusCancelled {
		return nil, ErrReservationCancelled
	}
	if in.Duration != nil && *in.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}

	newSlot := r.Interval()
	if in.StartAt != nil {
		duration := newSlot.End.Sub(newSlot.Start)
		newSlot = interval.Interval{Start: *in.StartAt, End: in.StartAt.Add(duration)}
	}
	if in.Duration != nil {
		newSlot.End = newSlot.Start.Add(*in.Duration)
	}

	upd := ReservationUpdate{
		ServiceType: in.ServiceType,
		Notes:       in.Notes,
	}

	intervalChanged := !newSlot.Start.Equal(r.StartAt) || !newSlot.End.Equal(r.EndAt)
	if !intervalChanged {
		return s.store.UpdateReservation(ctx, id, upd)
	}

	doctor, err := s.store.GetDoctorByID(ctx, r.DoctorID)
	if err != nil {
		return nil, err
	}

	day := s.hours.Midnight(newSlot.Start)
	var updated *Reservation

	err = s.locker.WithDoctorDayLock(ctx, doctor.ID, day, func(lockCtx context.Context) error {
		free, err := s.availability.CheckSlot(lockCtx, doctor.ID, newSlot, r.ID)
		if err != nil {
			return err
		}
		if !free {
			s.metrics.ObserveConflict("local")
			return ErrSlotUnavailable
		}

		syncStatus := r.SyncStatus
		if doctor.HasCalendar() {
			busy, err := s.gateway.ListBusy(lockCtx, doctor.CalendarID(), newSlot.Start, newSlot.End)
			if err != nil {
				log.Warn().Err(err).Str("reservation_id", id.String()).Msg("busy re-check failed during reschedule, will sync later")
				syncStatus = SyncPending
			} else {
				if interval.OverlapsAny(newSlot, busy) {
					s.metrics.ObserveConflict("external")
					return ErrSlotUnavailable
				}
				if r.GoogleEventID != nil {
					ev := calendar.Event{
						Summary: fmt.Sprintf("Appointment: %s", r.PatientName),
						Start:   newSlot.Start,
						End:     newSlot.End,
					}
					if err := s.gateway.UpdateEvent(lockCtx, doctor.CalendarID(), *r.GoogleEventID, ev); err != nil {
						log.Warn().Err(err).Str("reservation_id", id.String()).Msg("calendar event update failed, will sync later")
						syncStatus = SyncPending
					}
				}
			}
		}

		upd.StartAt = &newSlot.Start
		upd.EndAt = &newSlot.End
		upd.SyncStatus = &syncStatus

		updated, err = s.store.UpdateReservation(lockCtx, id, upd)
		if err != nil && errors.Is(err, ErrSlotUnavailable) {
			s.metrics.ObserveConflict("commit")
		}
		return err
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return updated, nil
}

// RetryPendingSync pushes outstanding calendar mirrors for confirmed
// reservations. Used by the sync worker; per-reservation failures are
// logged and skipped so one broken calendar cannot stall the batch.
func (s *Service) RetryPendingSync(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = 50
	}

	pending, err := s.store.ListPendingSync(ctx, limit)
	if err != nil {
		return fmt.Errorf("list pending sync: %w", err)
	}

	for i := range pending {
		r := &pending[i]
		calID := ""
		if r.GoogleCalendarID != nil {
			calID = *r.GoogleCalendarID
		}

		ev := calendar.Event{
			Summary:     fmt.Sprintf("Appointment: %s", r.PatientName),
			Description: fmt.Sprintf("Patient: %s\nEmail: %s", r.PatientName, r.PatientEmail),
			Start:       r.StartAt,
			End:         r.EndAt,
		}

		var syncErr error
		upd := ReservationUpdate{}
		synced := SyncSynced

		if r.GoogleEventID != nil {
			syncErr = s.gateway.UpdateEvent(ctx, calID, *r.GoogleEventID, ev)
		} else {
			var eventID string
			eventID, syncErr = s.gateway.InsertEvent(ctx, calID, ev)
			if syncErr == nil {
				upd.GoogleEventID = &eventID
			}
		}
		if syncErr != nil {
			log.Warn().Err(syncErr).Str("reservation_id", r.ID.String()).Msg("calendar sync retry failed")
			continue
		}

		upd.SyncStatus = &synced
		if _, err := s.store.UpdateReservation(ctx, r.ID, upd); err != nil {
			log.Error().Err(err).Str("reservation_id", r.ID.String()).Msg("failed to record successful calendar sync")
		}
	}

	return nil
}

func (s *Service) sendConfirmation(ctx context.Context, r *Reservation, doctorName string) {
	if s.email == nil {
		return
	}

	start := r.StartAt.In(s.hours.Location())
	msg := notify.EmailMessage{
		To:      r.PatientEmail,
		ToName:  r.PatientName,
		Subject: "Booking Confirmation",
		Body: fmt.Sprintf("Hi %s,\n\nYour %s appointment with %s is confirmed for %s at %s.\n\nSee you then!",
			r.PatientName, r.ServiceType, doctorName,
			start.Format("Monday, January 2, 2006"), start.Format("15:04")),
	}

	if err := s.email.Send(ctx, msg); err != nil {
		log.Warn().Err(err).Str("reservation_id", r.ID.String()).Msg("confirmation email failed")
	}
}
