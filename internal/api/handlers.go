package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicbook/clinic-booking/internal/auth"
	"github.com/clinicbook/clinic-booking/internal/booking"
	"github.com/clinicbook/clinic-booking/internal/calendar"
	"github.com/clinicbook/clinic-booking/internal/clinichours"
	redisclient "github.com/clinicbook/clinic-booking/internal/redis"
)

// AuthService is the slice of auth.Service the handlers use.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.User, string, error)
	Login(ctx context.Context, email, password string) (*auth.User, string, error)
	GetUser(ctx context.Context, id uuid.UUID) (*auth.User, error)
}

// BookingService is the booking write path.
type BookingService interface {
	Create(ctx context.Context, in booking.CreateInput) (*booking.Reservation, error)
	Update(ctx context.Context, id uuid.UUID, in booking.UpdateInput) (*booking.Reservation, error)
	Cancel(ctx context.Context, id uuid.UUID) (*booking.Reservation, error)
}

// AvailabilityService is the read path over free slots and dates.
type AvailabilityService interface {
	SlotsWithStep(ctx context.Context, doctorID uuid.UUID, date time.Time, duration, step time.Duration) ([]time.Time, error)
	Dates(ctx context.Context, doctorID uuid.UUID, year int, month time.Month) ([]time.Time, error)
}

// Directory is the read-only store slice the handlers need.
type Directory interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*booking.Doctor, error)
	ListActiveDoctors(ctx context.Context) ([]booking.Doctor, error)
	GetReservationByID(ctx context.Context, id uuid.UUID) (*booking.Reservation, error)
	ListReservations(ctx context.Context, f booking.ListFilter) ([]booking.Reservation, error)
}

type handlers struct {
	auth         AuthService
	bookings     BookingService
	availability AvailabilityService
	directory    Directory
	hours        *clinichours.Policy

	defaultDuration time.Duration
	doctorStep      time.Duration
	genericStep     time.Duration
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.Email == "" || req.FullName == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "email, full_name, and password are required")
		return
	}

	user, token, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, "weak_password", err.Error())
		case errors.Is(err, auth.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email_taken", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: toUserResponse(user)})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: toUserResponse(user)})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	user, err := h.auth.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *handlers) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.directory.ListActiveDoctors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	resp := make([]DoctorResponse, 0, len(doctors))
	for i := range doctors {
		resp = append(resp, toDoctorResponse(&doctors[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
		return
	}

	doctor, err := h.directory.GetDoctorByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, booking.ErrDoctorNotFound) {
			writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toDoctorResponse(doctor))
}

func (h *handlers) doctorSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
		return
	}
	h.listSlots(w, r, doctorID, h.doctorStep)
}

// genericSlots is the finer-grained listing under /bookings; the doctor
// id comes from the query string instead of the path.
func (h *handlers) genericSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
		return
	}
	h.listSlots(w, r, doctorID, h.genericStep)
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request, doctorID uuid.UUID, step time.Duration) {
	dateStr := r.URL.Query().Get("date")
	date, err := time.ParseInLocation(dateLayout, dateStr, h.hours.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted YYYY-MM-DD")
		return
	}

	duration := h.defaultDuration
	if raw := r.URL.Query().Get("duration"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
			return
		}
		duration = time.Duration(minutes) * time.Minute
	}

	slots, err := h.availability.SlotsWithStep(r.Context(), doctorID, date, duration, step)
	if err != nil {
		h.handleAvailabilityError(w, err)
		return
	}

	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.In(h.hours.Location()).Format(timeLayout))
	}
	writeJSON(w, http.StatusOK, SlotsResponse{
		DoctorID:        doctorID,
		Date:            dateStr,
		DurationMinutes: int(duration / time.Minute),
		Slots:           out,
	})
}

func (h *handlers) doctorDates(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
		return
	}

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 || year > 2200 {
		writeError(w, http.StatusBadRequest, "invalid_year", "year must be a valid four-digit year")
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "invalid_month", "month must be between 1 and 12")
		return
	}

	dates, err := h.availability.Dates(r.Context(), doctorID, year, time.Month(month))
	if err != nil {
		h.handleAvailabilityError(w, err)
		return
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.In(h.hours.Location()).Format(dateLayout))
	}
	writeJSON(w, http.StatusOK, DatesResponse{DoctorID: doctorID, Year: year, Month: month, Dates: out})
}

func (h *handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
		return
	}
	if req.PatientName == "" || req.PatientEmail == "" || req.ServiceType == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "patient_name, patient_email, and service_type are required")
		return
	}

	startAt, err := h.parseLocalDateTime(req.Date, req.Time)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_datetime", "date must be YYYY-MM-DD and time HH:MM")
		return
	}

	duration := h.defaultDuration
	if req.DurationMinutes != 0 {
		if req.DurationMinutes < 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration_minutes must be positive")
			return
		}
		duration = time.Duration(req.DurationMinutes) * time.Minute
	}

	created, err := h.bookings.Create(r.Context(), booking.CreateInput{
		DoctorID:     doctorID,
		UserID:       userID,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: req.PatientPhone,
		ServiceType:  req.ServiceType,
		StartAt:      startAt,
		Duration:     duration,
		Notes:        req.Notes,
	})
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookingResponse(created))
}

func (h *handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	filter := booking.ListFilter{UserID: &userID}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := booking.Status(raw)
		switch status {
		case booking.StatusPending, booking.StatusConfirmed, booking.StatusCancelled:
			filter.Status = &status
		default:
			writeError(w, http.StatusBadRequest, "invalid_status", "status must be pending, confirmed, or cancelled")
			return
		}
	}
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := time.ParseInLocation(dateLayout, raw, h.hours.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted YYYY-MM-DD")
			return
		}
		end := day.AddDate(0, 0, 1)
		filter.DayStart = &day
		filter.DayEnd = &end
	}

	reservations, err := h.directory.ListReservations(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	resp := make([]BookingResponse, 0, len(reservations))
	for i := range reservations {
		resp = append(resp, toBookingResponse(&reservations[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	reservation, ok := h.ownedReservation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(reservation))
}

func (h *handlers) updateBooking(w http.ResponseWriter, r *http.Request) {
	reservation, ok := h.ownedReservation(w, r)
	if !ok {
		return
	}

	var req UpdateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	in := booking.UpdateInput{
		ServiceType: req.ServiceType,
		Notes:       req.Notes,
	}
	if req.Date != nil || req.Time != nil {
		if req.Date == nil || req.Time == nil {
			writeError(w, http.StatusBadRequest, "invalid_datetime", "date and time must be provided together")
			return
		}
		startAt, err := h.parseLocalDateTime(*req.Date, *req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_datetime", "date must be YYYY-MM-DD and time HH:MM")
			return
		}
		in.StartAt = &startAt
	}
	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration_minutes must be positive")
			return
		}
		d := time.Duration(*req.DurationMinutes) * time.Minute
		in.Duration = &d
	}

	updated, err := h.bookings.Update(r.Context(), reservation.ID, in)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(updated))
}

func (h *handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	reservation, ok := h.ownedReservation(w, r)
	if !ok {
		return
	}

	cancelled, err := h.bookings.Cancel(r.Context(), reservation.ID)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(cancelled))
}

// ownedReservation loads the path reservation and enforces that it
// belongs to the authenticated user. Foreign reservations read as not
// found so ids cannot be probed.
func (h *handlers) ownedReservation(w http.ResponseWriter, r *http.Request) (*booking.Reservation, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
		return nil, false
	}

	userID, _ := auth.UserID(r.Context())

	reservation, err := h.directory.GetReservationByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, booking.ErrReservationNotFound) {
			writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return nil, false
	}
	if reservation.UserID != userID {
		writeError(w, http.StatusNotFound, "booking_not_found", "booking not found")
		return nil, false
	}
	return reservation, true
}

func (h *handlers) parseLocalDateTime(date, clock string) (time.Time, error) {
	return time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+clock, h.hours.Location())
}

func (h *handlers) handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrReservationCancelled):
		writeError(w, http.StatusConflict, "booking_cancelled", err.Error())
	case errors.Is(err, booking.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, calendar.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "calendar_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (h *handlers) handleAvailabilityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, calendar.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "calendar_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
