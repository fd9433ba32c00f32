package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/makabra/mayorista-api/internal/app"
	"github.com/makabra/mayorista-api/internal/catalogsync"
	"github.com/makabra/mayorista-api/internal/config"
	"github.com/makabra/mayorista-api/internal/obs"
	"github.com/makabra/mayorista-api/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "mayorista"), nil)
	resilience.RegisterMetrics(nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.New(initCtx, cfg, logger, app.Options{ServiceName: "mayorista-worker", TraceRedis: true})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	connOpt, err := deps.RedisConnOpt()
	if err != nil {
		logger.Fatal().Err(err).Msg("asynq redis options")
	}

	srv := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Logger:      asynqLogger{logger: logger},
	})
	mux := asynq.NewServeMux()
	mux.Handle(catalogsync.TypeSyncScanntech, catalogsync.TaskHandler{Runner: deps.Sync, Logger: logger})

	var scheduler *asynq.Scheduler
	if cfg.SyncSchedule != "" {
		scheduler = asynq.NewScheduler(connOpt, &asynq.SchedulerOpts{Logger: asynqLogger{logger: logger}})
		entryID, err := scheduler.Register(cfg.SyncSchedule, catalogsync.NewSyncTask(cfg.SyncLockTTL))
		if err != nil {
			logger.Fatal().Err(err).Str("schedule", cfg.SyncSchedule).Msg("register sync schedule")
		}
		logger.Info().Str("entry", entryID).Str("schedule", cfg.SyncSchedule).Msg("sync scheduled")
		if err := scheduler.Start(); err != nil {
			logger.Fatal().Err(err).Msg("start scheduler")
		}
	}

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	if scheduler != nil {
		scheduler.Shutdown()
	}
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// asynqLogger routes asynq's internal logs through zerolog.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{}) { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{}) { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
