package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicbook/clinic-booking/internal/booking"
	"github.com/clinicbook/clinic-booking/internal/calendar"
	"github.com/clinicbook/clinic-booking/internal/clinichours"
	"github.com/clinicbook/clinic-booking/internal/config"
	"github.com/clinicbook/clinic-booking/internal/db"
	"github.com/clinicbook/clinic-booking/internal/observability/logging"
	"github.com/clinicbook/clinic-booking/internal/observability/metrics"
	redisclient "github.com/clinicbook/clinic-booking/internal/redis"
)

const syncBatchSize = 50

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Init("sync-worker", cfg.Env)
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("sync-worker starting up")

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

	if cfg.GoogleKeyfile == "" {
		log.Fatal().Msg("sync-worker needs GOOGLE_SERVICE_ACCOUNT_KEYFILE, nothing to sync without it")
	}
	gateway, err := calendar.NewGoogleGateway(rootCtx, calendar.GoogleConfig{
		KeyfilePath:       cfg.GoogleKeyfile,
		DefaultCalendarID: cfg.GoogleCalendarID,
		Location:          loc,
		Timeout:           cfg.CalendarTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("google calendar gateway error")
	}

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()

	m := metrics.NewBookingMetrics(nil)
	store := booking.NewPgStore(pgPool)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	availability := booking.NewAvailability(store, gateway, hours, booking.AvailabilityConfig{
		Step:            time.Duration(cfg.DoctorSlotStepMinutes) * time.Minute,
		DefaultDuration: time.Duration(cfg.DefaultDurationMinutes) * time.Minute,
	}, m)
	svc := booking.NewService(store, gateway, locker, hours, availability, nil, m)

	// Run once at startup
	runOnce(rootCtx, svc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping sync worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.RetryPendingSync(runCtx, syncBatchSize); err != nil {
		log.Error().Err(err).Msg("sync run error")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("sync run complete")
}
