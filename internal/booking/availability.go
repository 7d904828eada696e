package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic-booking/internal/calendar"
	"github.com/clinicbook/clinic-booking/internal/clinichours"
	"github.com/clinicbook/clinic-booking/internal/interval"
	"github.com/clinicbook/clinic-booking/internal/observability/metrics"
)

// AvailabilityConfig carries the slot-generation knobs. The generic and
// doctor-scoped listings run the same algorithm at different steps.
type AvailabilityConfig struct {
	Step            time.Duration // candidate spacing for doctor-scoped listings
	DefaultDuration time.Duration // reference appointment length
}

// Availability merges business hours, local reservations and external
// busy blocks into the set of bookable slots. Busy blocks are fetched
// fresh on every call and never cached across invocations: the external
// calendar can change underneath us at any time.
type Availability struct {
	store   Store
	gateway calendar.Gateway
	hours   *clinichours.Policy
	cfg     AvailabilityConfig
	metrics *metrics.BookingMetrics

	now func() time.Time
}

func NewAvailability(store Store, gateway calendar.Gateway, hours *clinichours.Policy, cfg AvailabilityConfig, m *metrics.BookingMetrics) *Availability {
	if cfg.Step <= 0 {
		cfg.Step = time.Hour
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = time.Hour
	}
	return &Availability{
		store:   store,
		gateway: gateway,
		hours:   hours,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
	}
}

// Slots returns the bookable start instants for the doctor on the day
// containing date, for an appointment of the given duration. A closed
// day yields an empty result, not an error.
func (a *Availability) Slots(ctx context.Context, doctorID uuid.UUID, date time.Time, duration time.Duration) ([]time.Time, error) {
	return a.SlotsWithStep(ctx, doctorID, date, duration, a.cfg.Step)
}

// SlotsWithStep is Slots with an explicit candidate spacing; the generic
// listing uses a finer step than the doctor-scoped one.
func (a *Availability) SlotsWithStep(ctx context.Context, doctorID uuid.UUID, date time.Time, duration, step time.Duration) ([]time.Time, error) {
	started := time.Now()
	defer func() {
		a.metrics.ObserveAvailability("slots", time.Since(started).Seconds())
	}()

	if duration <= 0 {
		duration = a.cfg.DefaultDuration
	}
	if step <= 0 {
		step = a.cfg.Step
	}

	doctor, err := a.store.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	day := a.hours.Midnight(date)
	window, open := a.hours.HoursFor(day)
	if !open {
		return []time.Time{}, nil
	}

	dayWindow := a.hours.DayWindow(day)
	booked, err := a.bookedIntervals(ctx, doctorID, dayWindow.Start, dayWindow.End)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}

	busy, err := a.gateway.ListBusy(ctx, doctor.CalendarID(), dayWindow.Start, dayWindow.End)
	if err != nil {
		return nil, fmt.Errorf("fetch busy blocks: %w", err)
	}

	return a.enumerate(day, window, duration, step, booked, busy, false), nil
}

// Dates returns the days of the given month with at least one free slot
// of the default duration. One store query and one busy-block fetch
// cover the whole month; both are sliced per day in memory. Days before
// today in the clinic timezone are excluded.
func (a *Availability) Dates(ctx context.Context, doctorID uuid.UUID, year int, month time.Month) ([]time.Time, error) {
	started := time.Now()
	defer func() {
		a.metrics.ObserveAvailability("dates", time.Since(started).Seconds())
	}()

	doctor, err := a.store.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	monthStart := a.hours.Date(year, month, 1)
	monthEnd := monthStart.AddDate(0, 1, 0)

	booked, err := a.bookedIntervals(ctx, doctorID, monthStart, monthEnd)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}

	busy, err := a.gateway.ListBusy(ctx, doctor.CalendarID(), monthStart, monthEnd)
	if err != nil {
		return nil, fmt.Errorf("fetch busy blocks: %w", err)
	}

	today := a.hours.Midnight(a.now())
	duration := a.cfg.DefaultDuration

	var dates []time.Time
	for day := monthStart; day.Before(monthEnd); day = day.AddDate(0, 0, 1) {
		if day.Before(today) {
			continue
		}
		window, open := a.hours.HoursFor(day)
		if !open {
			continue
		}

		dayWindow := a.hours.DayWindow(day)
		dayBooked := interval.Clip(dayWindow, booked)
		dayBusy := interval.Clip(dayWindow, busy)

		// Same step as the slot listing, so a listed date is never
		// empty when the caller follows up with Slots.
		if len(a.enumerate(day, window, duration, a.cfg.Step, dayBooked, dayBusy, true)) > 0 {
			dates = append(dates, day)
		}
	}

	return dates, nil
}

// CheckSlot reports whether the exact requested interval is free of
// local reservation conflicts. excludeID skips a reservation (its own,
// during reschedule).
func (a *Availability) CheckSlot(ctx context.Context, doctorID uuid.UUID, slot interval.Interval, excludeID uuid.UUID) (bool, error) {
	existing, err := a.store.ListByDoctorAndRange(ctx, doctorID, slot.Start, slot.End, false)
	if err != nil {
		return false, fmt.Errorf("load reservations: %w", err)
	}
	for i := range existing {
		if existing[i].ID == excludeID {
			continue
		}
		if slot.Overlaps(existing[i].Interval()) {
			return false, nil
		}
	}
	return true, nil
}

func (a *Availability) bookedIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]interval.Interval, error) {
	reservations, err := a.store.ListByDoctorAndRange(ctx, doctorID, from, to, false)
	if err != nil {
		return nil, err
	}
	booked := make([]interval.Interval, 0, len(reservations))
	for i := range reservations {
		booked = append(booked, reservations[i].Interval())
	}
	return booked, nil
}

// enumerate walks fixed-size candidates from open to close, dropping any
// that spill past closing, collide with a reservation, or overlap a busy
// block. firstOnly short-circuits after the first free candidate.
func (a *Availability) enumerate(day time.Time, window clinichours.Window, duration, step time.Duration, booked, busy []interval.Interval, firstOnly bool) []time.Time {
	openAt := a.hours.OpenAt(day, window)
	closeAt := a.hours.CloseAt(day, window)

	var free []time.Time
	for start := openAt; start.Before(closeAt); start = start.Add(step) {
		candidate := interval.Interval{Start: start, End: start.Add(duration)}
		if candidate.End.After(closeAt) {
			break
		}
		if interval.OverlapsAny(candidate, booked) {
			continue
		}
		if interval.OverlapsAny(candidate, busy) {
			continue
		}
		free = append(free, start)
		if firstOnly {
			break
		}
	}
	return free
}
