package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicbook/clinic-booking/internal/api"
	"github.com/clinicbook/clinic-booking/internal/auth"
	"github.com/clinicbook/clinic-booking/internal/booking"
	"github.com/clinicbook/clinic-booking/internal/calendar"
	"github.com/clinicbook/clinic-booking/internal/clinichours"
	"github.com/clinicbook/clinic-booking/internal/config"
	"github.com/clinicbook/clinic-booking/internal/db"
	"github.com/clinicbook/clinic-booking/internal/notify"
	"github.com/clinicbook/clinic-booking/internal/observability/logging"
	"github.com/clinicbook/clinic-booking/internal/observability/metrics"
	redisclient "github.com/clinicbook/clinic-booking/internal/redis"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("api-server", cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.ClinicTimezone).Msg("invalid clinic timezone")
	}
	hours := clinichours.NewPolicy(loc)

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	var gateway calendar.Gateway = calendar.DisabledGateway{}
	if cfg.GoogleKeyfile != "" {
		gw, err := calendar.NewGoogleGateway(rootCtx, calendar.GoogleConfig{
			KeyfilePath:       cfg.GoogleKeyfile,
			DefaultCalendarID: cfg.GoogleCalendarID,
			Location:          loc,
			Timeout:           cfg.CalendarTimeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("google calendar gateway error")
		}
		gateway = gw
		log.Info().Msg("google calendar sync enabled")
	} else {
		log.Warn().Msg("no google keyfile configured, calendar sync disabled")
	}

	var email notify.EmailSender
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	}); sender != nil {
		email = sender
		log.Info().Msg("sendgrid notifications enabled")
	}

	m := metrics.NewBookingMetrics(nil)
	store := booking.NewPgStore(pgPool)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)

	availability := booking.NewAvailability(store, gateway, hours, booking.AvailabilityConfig{
		Step:            time.Duration(cfg.DoctorSlotStepMinutes) * time.Minute,
		DefaultDuration: time.Duration(cfg.DefaultDurationMinutes) * time.Minute,
	}, m)
	bookingSvc := booking.NewService(store, gateway, locker, hours, availability, email, m)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authSvc := auth.NewService(auth.NewPgUserStore(pgPool), tokens)

	health := api.NewHealthHandler(cfg.Env, version,
		api.Dependency{Name: "postgres", Critical: true, Check: pgPool.Ping},
		api.Dependency{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}},
	)

	router := api.NewRouter(api.RouterConfig{
		Auth:            authSvc,
		Bookings:        bookingSvc,
		Availability:    availability,
		Directory:       store,
		Tokens:          tokens,
		Hours:           hours,
		DefaultDuration: time.Duration(cfg.DefaultDurationMinutes) * time.Minute,
		DoctorSlotStep:  time.Duration(cfg.DoctorSlotStepMinutes) * time.Minute,
		GenericSlotStep: time.Duration(cfg.SlotStepMinutes) * time.Minute,
		Health:          health,
		Env:             cfg.Env,
		Version:         version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("api-server stopped")
}
