package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic-booking/internal/auth"
	"github.com/clinicbook/clinic-booking/internal/booking"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type RegisterRequest struct {
	Email    string  `json:"email"`
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone,omitempty"`
	Password string  `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Phone    *string   `json:"phone,omitempty"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type DoctorResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Specialty   *string   `json:"specialty,omitempty"`
	HasCalendar bool      `json:"has_calendar"`
}

type SlotsResponse struct {
	DoctorID        uuid.UUID `json:"doctor_id"`
	Date            string    `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
	Slots           []string  `json:"slots"`
}

type DatesResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Year     int       `json:"year"`
	Month    int       `json:"month"`
	Dates    []string  `json:"dates"`
}

type CreateBookingRequest struct {
	DoctorID        string  `json:"doctor_id"`
	PatientName     string  `json:"patient_name"`
	PatientEmail    string  `json:"patient_email"`
	PatientPhone    *string `json:"patient_phone,omitempty"`
	ServiceType     string  `json:"service_type"`
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	DurationMinutes int     `json:"duration_minutes"`
	Notes           *string `json:"notes,omitempty"`
}

type UpdateBookingRequest struct {
	Date            *string `json:"date,omitempty"`
	Time            *string `json:"time,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	ServiceType     *string `json:"service_type,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type BookingResponse struct {
	ID           uuid.UUID `json:"id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	PatientName  string    `json:"patient_name"`
	PatientEmail string    `json:"patient_email"`
	PatientPhone *string   `json:"patient_phone,omitempty"`
	ServiceType  string    `json:"service_type"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
	Status       string    `json:"status"`
	SyncStatus   string    `json:"sync_status"`
	Notes        *string   `json:"notes,omitempty"`
}

func toUserResponse(u *auth.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, FullName: u.FullName, Phone: u.Phone}
}

func toDoctorResponse(d *booking.Doctor) DoctorResponse {
	return DoctorResponse{ID: d.ID, Name: d.Name, Specialty: d.Specialty, HasCalendar: d.HasCalendar()}
}

func toBookingResponse(r *booking.Reservation) BookingResponse {
	return BookingResponse{
		ID:           r.ID,
		DoctorID:     r.DoctorID,
		PatientName:  r.PatientName,
		PatientEmail: r.PatientEmail,
		PatientPhone: r.PatientPhone,
		ServiceType:  r.ServiceType,
		StartAt:      r.StartAt,
		EndAt:        r.EndAt,
		Status:       string(r.Status),
		SyncStatus:   string(r.SyncStatus),
		Notes:        r.Notes,
	}
}
