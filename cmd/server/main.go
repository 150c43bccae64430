// Package main is the entry point for the data-security core service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	appalert "github.com/Riareddie/CHAKSHU-sub001/internal/application/alert"
	"github.com/Riareddie/CHAKSHU-sub001/internal/application/auditlog"
	domainalert "github.com/Riareddie/CHAKSHU-sub001/internal/domain/alert"
	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/audit"
	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/config"
	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/crypto"
	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/email"
	"github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/postgres"
	redisinfra "github.com/Riareddie/CHAKSHU-sub001/internal/infrastructure/redis"
	"github.com/Riareddie/CHAKSHU-sub001/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Service failed")
	}
}

// run contains the main application logic, separated for cleaner error handling.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Setup(cfg.Logger.Level, cfg.Logger.Format)

	log.Info().
		Str("service", cfg.App.Name).
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Env).
		Msg("Starting data-security core")

	// Encryption service
	keyring, err := crypto.NewKeyringFromConfig(&cfg.Encryption, cfg.App.IsProduction())
	if err != nil {
		return err
	}
	encService := crypto.NewService(keyring)

	// Database pools
	manager, err := postgres.NewManager(&cfg.Database)
	if err != nil {
		return err
	}
	defer closeManager(manager)

	// Security cache (optional - graceful degradation)
	securityCache := setupRedis(cfg)

	// Alerting
	var notifier appalert.Notifier
	if len(cfg.Alerts.Recipients) > 0 {
		notifier = email.NewService(&cfg.Email, cfg.Alerts.Recipients)
	}
	var gate appalert.SecurityGate
	if securityCache != nil {
		gate = securityCache
	}
	var engine *appalert.Engine
	if cfg.Alerts.RealTime {
		engine = appalert.NewEngine(domainalert.DefaultCatalog(), notifier, gate, cfg.Alerts.LockDuration)
	}

	// Audit trail
	auditRepo := postgres.NewAuditRepository(manager)
	auditLogger := auditlog.New(auditRepo, engine, encService, cfg.Audit)
	manager.SetAuditSink(auditLogger)

	auditLogger.Start()
	manager.StartHealthChecks()

	scheduler := setupScheduler(cfg, auditLogger, keyring)
	scheduler.Start()

	auditLogger.LogSystemEvent(audit.SystemEvent{Event: "service_started"})

	g, gctx := errgroup.WithContext(context.Background())

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = newMetricsServer(cfg.Metrics.Address, manager)
		g.Go(func() error {
			log.Info().Str("address", cfg.Metrics.Address).Msg("Metrics listener started")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// Wait for shutdown signal
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-gctx.Done():
			return gctx.Err()
		}

		log.Info().Msg("Shutting down...")
		auditLogger.LogSystemEvent(audit.SystemEvent{Event: "service_stopping"})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Metrics listener shutdown failed")
			}
		}

		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-shutdownCtx.Done():
			log.Warn().Msg("Scheduler did not stop in time")
		}

		// Flush the audit buffer before the pools close.
		if err := auditLogger.Close(); err != nil {
			log.Warn().Err(err).Msg("Final audit flush failed; entries may remain unpersisted")
		}
		return nil
	})

	return g.Wait()
}

func setupRedis(cfg *config.Config) *redisinfra.SecurityCache {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := redisinfra.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; alert lock/disable actions degrade to log-only")
		return nil
	}
	return redisinfra.NewSecurityCache(client)
}

func setupScheduler(cfg *config.Config, auditLogger *auditlog.Logger, keyring *crypto.Keyring) *cron.Cron {
	scheduler := cron.New()

	if _, err := scheduler.AddFunc(cfg.Audit.RetentionSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := auditLogger.RunRetention(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled retention run failed")
		}
	}); err != nil {
		log.Error().Err(err).Str("schedule", cfg.Audit.RetentionSchedule).Msg("Failed to schedule retention job")
	}

	if _, err := scheduler.AddFunc(cfg.Audit.KeyAgeCheckSchedule, func() {
		for _, keyID := range keyring.CheckKeyAges(cfg.Encryption.Rotation) {
			auditLogger.LogSecurityEvent(audit.SecurityEvent{
				Event:    "key_rotation_enforced",
				Severity: audit.SeverityHigh,
				Detail:   map[string]interface{}{"rotated_key": keyID},
			})
		}
	}); err != nil {
		log.Error().Err(err).Str("schedule", cfg.Audit.KeyAgeCheckSchedule).Msg("Failed to schedule key age check")
	}

	return scheduler
}

func newMetricsServer(address string, manager *postgres.Manager) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := manager.GetPoolStats(r.Context())
		for _, pool := range stats.Pools {
			if pool.Name == "primary" && !pool.Healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	return &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func closeManager(manager *postgres.Manager) {
	if err := manager.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database pools")
	}
}
