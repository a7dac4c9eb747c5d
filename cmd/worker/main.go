// Package main provides the entrypoint for the Parkest worker. It stores
// trip events and refreshes the search delays of stored parking spots.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/candidate"
	"github.com/parkest/parkest/internal/config"
	"github.com/parkest/parkest/internal/database"
	"github.com/parkest/parkest/internal/estimate"
	"github.com/parkest/parkest/internal/planner"
	"github.com/parkest/parkest/internal/provider/resilience"
	"github.com/parkest/parkest/internal/telemetry"
	"github.com/parkest/parkest/internal/trip"
	"github.com/parkest/parkest/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "parkest-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Parkest worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Trips always live in PostgreSQL.
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	var spots worker.SpotStore = candidate.NewPostgresRepository(pool)
	if cfg.CandidateStore == config.StoreSQLite {
		db, err := database.OpenSQLite(ctx, cfg.SQLite)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open sqlite")
		}
		defer db.Close()
		if err := database.MigrateSQLite(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate sqlite")
		}
		spots = candidate.NewSQLiteRepository(db)
	}

	registry := resilience.NewRegistry()
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	var estimator planner.DelayEstimator = estimate.NewOccupancyModel(estimate.OccupancyConfig{})
	if cfg.EstimatorURL != "" {
		estimator = estimate.NewHTTPModel(estimate.HTTPConfig{
			BaseURL:  cfg.EstimatorURL,
			Registry: registry,
			Metrics:  providerMetrics,
			Logger:   log,
		})
	}

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:    worker.DefaultRefreshConfig(),
		Logger:    log,
		Spots:     spots,
		Estimator: estimator,
	})
	processor := worker.NewProcessor(worker.ProcessorConfig{
		Trips:      trip.NewPostgresRepository(pool),
		RefreshJob: refreshJob,
		Logger:     log,
	})

	// Worker also exposes health endpoints for Cloud Run
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"refresh": refreshJob.MetricsSnapshot(),
		})
	})
	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		pingCtx, pingCancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer pingCancel()
		if err := pool.Ping(pingCtx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	var handler *worker.PubSubHandler
	if cfg.PubSubEnabled() {
		handler, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubTripSubscription,
			Processor:        processor,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		go func() {
			if err := handler.Start(ctx); err != nil {
				log.Error().Err(err).Msg("pubsub receive stopped")
				cancel()
			}
		}()
	} else {
		// Without Pub/Sub there are no trip events; refresh delays on a timer.
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - running delay refresh on a timer")
		go func() {
			ticker := time.NewTicker(15 * time.Minute)
			defer ticker.Stop()
			for {
				refreshJob.Run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}
	if handler != nil {
		if err := handler.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}

	log.Info().Msg("worker stopped")
}
