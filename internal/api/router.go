package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicbook/clinic-booking/internal/auth"
	"github.com/clinicbook/clinic-booking/internal/clinichours"
)

type RouterConfig struct {
	Auth         AuthService
	Bookings     BookingService
	Availability AvailabilityService
	Directory    Directory
	Tokens       *auth.TokenIssuer
	Hours        *clinichours.Policy

	DefaultDuration time.Duration
	DoctorSlotStep  time.Duration
	GenericSlotStep time.Duration

	Health  *HealthHandler
	Metrics http.Handler

	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := &handlers{
		auth:            cfg.Auth,
		bookings:        cfg.Bookings,
		availability:    cfg.Availability,
		directory:       cfg.Directory,
		hours:           cfg.Hours,
		defaultDuration: cfg.DefaultDuration,
		doctorStep:      cfg.DoctorSlotStep,
		genericStep:     cfg.GenericSlotStep,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Handle("/metrics", metrics)

	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)

	r.Get("/doctors", h.listDoctors)
	r.Get("/doctors/{id}", h.getDoctor)
	r.Get("/doctors/{id}/available-slots", h.doctorSlots)
	r.Get("/doctors/{id}/available-dates", h.doctorDates)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.Tokens))

		r.Get("/auth/me", h.me)

		r.Post("/bookings", h.createBooking)
		r.Get("/bookings", h.listBookings)
		r.Get("/bookings/available-slots", h.genericSlots)
		r.Get("/bookings/{id}", h.getBooking)
		r.Patch("/bookings/{id}", h.updateBooking)
		r.Post("/bookings/{id}/cancel", h.cancelBooking)
	})

	return r
}
