package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbook/clinic-booking/internal/auth"
	"github.com/clinicbook/clinic-booking/internal/booking"
	"github.com/clinicbook/clinic-booking/internal/clinichours"
)

func testPolicy() *clinichours.Policy {
	return clinichours.NewPolicy(testLoc)
}

var testLoc = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

type stubAuth struct{}

func (stubAuth) Register(_ context.Context, in auth.RegisterInput) (*auth.User, string, error) {
	return &auth.User{ID: uuid.New(), Email: in.Email, FullName: in.FullName}, "token", nil
}

func (stubAuth) Login(_ context.Context, email, _ string) (*auth.User, string, error) {
	return &auth.User{ID: uuid.New(), Email: email}, "token", nil
}

func (stubAuth) GetUser(_ context.Context, id uuid.UUID) (*auth.User, error) {
	return &auth.User{ID: id, Email: "jane@example.com", FullName: "Jane Roe"}, nil
}

type stubBookings struct {
	created   *booking.CreateInput
	createErr error
	result    *booking.Reservation
}

func (s *stubBookings) Create(_ context.Context, in booking.CreateInput) (*booking.Reservation, error) {
	s.created = &in
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.result, nil
}

func (s *stubBookings) Update(_ context.Context, _ uuid.UUID, _ booking.UpdateInput) (*booking.Reservation, error) {
	return s.result, nil
}

func (s *stubBookings) Cancel(_ context.Context, _ uuid.UUID) (*booking.Reservation, error) {
	out := *s.result
	out.Status = booking.StatusCancelled
	return &out, nil
}

type stubAvailability struct {
	slots    []time.Time
	dates    []time.Time
	err      error
	lastStep time.Duration
}

func (s *stubAvailability) SlotsWithStep(_ context.Context, _ uuid.UUID, _ time.Time, _ time.Duration, step time.Duration) ([]time.Time, error) {
	s.lastStep = step
	return s.slots, s.err
}

func (s *stubAvailability) Dates(context.Context, uuid.UUID, int, time.Month) ([]time.Time, error) {
	return s.dates, s.err
}

type stubDirectory struct {
	doctors      []booking.Doctor
	reservations map[uuid.UUID]*booking.Reservation
}

func (s *stubDirectory) GetDoctorByID(_ context.Context, id uuid.UUID) (*booking.Doctor, error) {
	for i := range s.doctors {
		if s.doctors[i].ID == id {
			return &s.doctors[i], nil
		}
	}
	return nil, booking.ErrDoctorNotFound
}

func (s *stubDirectory) ListActiveDoctors(context.Context) ([]booking.Doctor, error) {
	return s.doctors, nil
}

func (s *stubDirectory) GetReservationByID(_ context.Context, id uuid.UUID) (*booking.Reservation, error) {
	r, ok := s.reservations[id]
	if !ok {
		return nil, booking.ErrReservationNotFound
	}
	return r, nil
}

func (s *stubDirectory) ListReservations(_ context.Context, _ booking.ListFilter) ([]booking.Reservation, error) {
	var out []booking.Reservation
	for _, r := range s.reservations {
		out = append(out, *r)
	}
	return out, nil
}

type routerFixture struct {
	handler      http.Handler
	bookings     *stubBookings
	availability *stubAvailability
	directory    *stubDirectory
	tokens       *auth.TokenIssuer
	userID       uuid.UUID
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	userID := uuid.New()
	doctorID := uuid.New()
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)

	reservation := &booking.Reservation{
		ID:           uuid.New(),
		DoctorID:     doctorID,
		UserID:       userID,
		PatientName:  "Jane Roe",
		PatientEmail: "jane@example.com",
		ServiceType:  "consultation",
		StartAt:      time.Date(2026, 3, 2, 14, 0, 0, 0, testLoc),
		EndAt:        time.Date(2026, 3, 2, 15, 0, 0, 0, testLoc),
		Status:       booking.StatusConfirmed,
		SyncStatus:   booking.SyncSynced,
	}

	bookings := &stubBookings{result: reservation}
	directory := &stubDirectory{
		doctors:      []booking.Doctor{{ID: doctorID, Name: "Dr. Smith", Active: true}},
		reservations: map[uuid.UUID]*booking.Reservation{reservation.ID: reservation},
	}

	availability := &stubAvailability{
		slots: []time.Time{
			time.Date(2026, 3, 2, 9, 0, 0, 0, testLoc),
			time.Date(2026, 3, 2, 10, 0, 0, 0, testLoc),
		},
		dates: []time.Time{time.Date(2026, 3, 2, 0, 0, 0, 0, testLoc)},
	}

	handler := NewRouter(RouterConfig{
		Auth:            stubAuth{},
		Bookings:        bookings,
		Availability:    availability,
		Directory:       directory,
		Tokens:          tokens,
		Hours:           testPolicy(),
		DefaultDuration: 60 * time.Minute,
		DoctorSlotStep:  60 * time.Minute,
		GenericSlotStep: 30 * time.Minute,
		Health:          NewHealthHandler("test", "dev"),
		Env:             "test",
	})

	return &routerFixture{
		handler:      handler,
		bookings:     bookings,
		availability: availability,
		directory:    directory,
		tokens:       tokens,
		userID:       userID,
	}
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		token, err := f.tokens.Issue(f.userID, "jane@example.com")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestListDoctors(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/doctors", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []DoctorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "Dr. Smith", resp[0].Name)
}

func TestDoctorSlots(t *testing.T) {
	f := newRouterFixture(t)
	doctorID := f.directory.doctors[0].ID

	rec := f.do(t, http.MethodGet, "/doctors/"+doctorID.String()+"/available-slots?date=2026-03-02", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"09:00", "10:00"}, resp.Slots)
	assert.Equal(t, 60, resp.DurationMinutes)
	assert.Equal(t, 60*time.Minute, f.availability.lastStep)
}

func TestGenericSlotsUseFinerStep(t *testing.T) {
	f := newRouterFixture(t)
	doctorID := f.directory.doctors[0].ID

	rec := f.do(t, http.MethodGet, "/bookings/available-slots?doctor_id="+doctorID.String()+"&date=2026-03-02", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"09:00", "10:00"}, resp.Slots)
	assert.Equal(t, 30*time.Minute, f.availability.lastStep)
}

func TestGenericSlotsRequireAuth(t *testing.T) {
	f := newRouterFixture(t)
	doctorID := f.directory.doctors[0].ID

	rec := f.do(t, http.MethodGet, "/bookings/available-slots?doctor_id="+doctorID.String()+"&date=2026-03-02", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDoctorSlotsBadDate(t *testing.T) {
	f := newRouterFixture(t)
	doctorID := f.directory.doctors[0].ID

	rec := f.do(t, http.MethodGet, "/doctors/"+doctorID.String()+"/available-slots?date=03-02-2026", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDoctorDates(t *testing.T) {
	f := newRouterFixture(t)
	doctorID := f.directory.doctors[0].ID

	rec := f.do(t, http.MethodGet, "/doctors/"+doctorID.String()+"/available-dates?year=2026&month=3", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"2026-03-02"}, resp.Dates)
}

func TestCreateBookingRequiresAuth(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/bookings", CreateBookingRequest{}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateBooking(t *testing.T) {
	f := newRouterFixture(t)
	doctorID := f.directory.doctors[0].ID

	rec := f.do(t, http.MethodPost, "/bookings", CreateBookingRequest{
		DoctorID:     doctorID.String(),
		PatientName:  "Jane Roe",
		PatientEmail: "jane@example.com",
		ServiceType:  "consultation",
		Date:         "2026-03-02",
		Time:         "14:00",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NotNil(t, f.bookings.created)
	assert.Equal(t, f.userID, f.bookings.created.UserID)
	assert.Equal(t, time.Date(2026, 3, 2, 14, 0, 0, 0, testLoc).Unix(), f.bookings.created.StartAt.Unix(),
		"start parsed in the clinic timezone")
	assert.Equal(t, 60*time.Minute, f.bookings.created.Duration)
}

func TestCreateBookingConflict(t *testing.T) {
	f := newRouterFixture(t)
	f.bookings.createErr = booking.ErrSlotUnavailable
	doctorID := f.directory.doctors[0].ID

	rec := f.do(t, http.MethodPost, "/bookings", CreateBookingRequest{
		DoctorID:     doctorID.String(),
		PatientName:  "Jane Roe",
		PatientEmail: "jane@example.com",
		ServiceType:  "consultation",
		Date:         "2026-03-02",
		Time:         "14:00",
	}, true)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "slot_unavailable", resp.Error)
}

func TestCreateBookingRetryable(t *testing.T) {
	f := newRouterFixture(t)
	f.bookings.createErr = booking.ErrSlotBeingBooked
	doctorID := f.directory.doctors[0].ID

	rec := f.do(t, http.MethodPost, "/bookings", CreateBookingRequest{
		DoctorID:     doctorID.String(),
		PatientName:  "Jane Roe",
		PatientEmail: "jane@example.com",
		ServiceType:  "consultation",
		Date:         "2026-03-02",
		Time:         "14:00",
	}, true)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "slot_being_booked", resp.Error)
}

func TestGetBookingForeignUser(t *testing.T) {
	f := newRouterFixture(t)

	// A different reservation owner must see a 404, not a 403.
	var id uuid.UUID
	for rid, r := range f.directory.reservations {
		id = rid
		r.UserID = uuid.New()
	}

	rec := f.do(t, http.MethodGet, "/bookings/"+id.String(), nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelBooking(t *testing.T) {
	f := newRouterFixture(t)
	var id uuid.UUID
	for rid := range f.directory.reservations {
		id = rid
	}

	rec := f.do(t, http.MethodPost, "/bookings/"+id.String()+"/cancel", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(booking.StatusCancelled), resp.Status)
}

func TestHealthLive(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/register", RegisterRequest{Email: "a@x.com"}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
