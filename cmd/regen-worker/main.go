package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-availability-scheduling/internal/config"
	"github.com/hackgods/doctor-availability-scheduling/internal/db"
	"github.com/hackgods/doctor-availability-scheduling/internal/logging"
	redisclient "github.com/hackgods/doctor-availability-scheduling/internal/redis"
	"github.com/hackgods/doctor-availability-scheduling/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("process", "regen-worker").Logger()
	logger.Info().Str("env", cfg.Env).Str("schedule", cfg.RegenCron).Int("concurrency", cfg.RegenConcurrency).Msg("regen-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{AppName: "regen-worker", MaxConns: int32(cfg.PostgresMaxConns)})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to redis")

	repo := schedule.NewPgRepository(pgPool)
	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)
	svc := schedule.NewService(repo, locker, nil, schedule.SystemClock{Location: cfg.ClinicLocation}, logger, cfg)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.RegenTimeout, logger)

	c := cron.New(cron.WithLocation(cfg.ClinicLocation))
	if _, err := c.AddFunc(cfg.RegenCron, func() {
		runOnce(rootCtx, svc, cfg.RegenTimeout, logger)
	}); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.RegenCron).Msg("invalid REGEN_CRON")
	}
	c.Start()

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping regen worker")

	// wait for a run in progress to notice cancellation
	<-c.Stop().Done()
}

func runOnce(ctx context.Context, svc *schedule.Service, timeout time.Duration, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	summary, err := svc.RegenerateAll(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("regeneration run error")
		return
	}
	logSummary(logger, summary, time.Since(start))
}

func logSummary(logger zerolog.Logger, summary schedule.RegenerationSummary, took time.Duration) {
	logger.Info().
		Int("doctors", summary.Doctors).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("busy", summary.Busy).
		Int("failed", summary.Failed).
		Dur("took", took).
		Msg("regeneration run complete")
}
