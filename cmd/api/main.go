// Package main provides the entrypoint for the Parkest API server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/api"
	"github.com/parkest/parkest/internal/api/handler"
	"github.com/parkest/parkest/internal/api/middleware"
	"github.com/parkest/parkest/internal/auth"
	"github.com/parkest/parkest/internal/candidate"
	"github.com/parkest/parkest/internal/config"
	"github.com/parkest/parkest/internal/database"
	"github.com/parkest/parkest/internal/estimate"
	"github.com/parkest/parkest/internal/location"
	"github.com/parkest/parkest/internal/parking"
	"github.com/parkest/parkest/internal/planner"
	"github.com/parkest/parkest/internal/provider/resilience"
	"github.com/parkest/parkest/internal/routing"
	"github.com/parkest/parkest/internal/routing/openrouteservice"
	"github.com/parkest/parkest/internal/telemetry"
	"github.com/parkest/parkest/internal/trip"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// spotStore is a candidate source that can be seeded.
type spotStore interface {
	planner.CandidateSource
	Upsert(ctx context.Context, c parking.Candidate) error
}

func main() {
	const serviceName = "parkest-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Parkest API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.JWTSigningKey == config.DevSigningKey {
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	engineMetrics, err := telemetry.NewEngineMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize engine metrics")
		os.Exit(1)
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	checks := make(map[string]handler.CheckFunc)

	// Candidate store
	var (
		spots spotStore
		pool  *pgxpool.Pool
	)
	switch cfg.CandidateStore {
	case config.StorePostgres:
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
		spots = candidate.NewPostgresRepository(pool)
		checks["database"] = pool.Ping

	case config.StoreSQLite:
		var db *sql.DB
		db, err = database.OpenSQLite(ctx, cfg.SQLite)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open sqlite")
		}
		defer db.Close()
		if err := database.MigrateSQLite(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate sqlite")
		}
		log.Info().Str("path", cfg.SQLite.Path).Msg("sqlite opened")
		spots = candidate.NewSQLiteRepository(db)
		checks["database"] = db.PingContext

	default:
		spots = candidate.NewInMemoryRepository()
	}

	if err := seedSpots(ctx, cfg, spots); err != nil {
		log.Fatal().Err(err).Msg("failed to seed parking spots")
	}

	// Providers
	registry := resilience.NewRegistry()

	if cfg.ORSAPIKey == "" {
		log.Warn().Msg("ORS_API_KEY not set - route legs will fail")
	}
	orsClient := openrouteservice.NewClient(openrouteservice.ClientConfig{
		APIKey:   cfg.ORSAPIKey,
		BaseURL:  cfg.ORSBaseURL,
		Registry: registry,
		Metrics:  providerMetrics,
		Logger:   log,
	})
	routingService := routing.NewService(routing.ServiceConfig{
		Provider: orsClient,
		Metrics:  providerMetrics,
		Logger:   log,
	})
	resolver := routing.NewLegResolver(routing.ResolverConfig{
		Router: routingService,
		Logger: log,
	})

	var estimator planner.DelayEstimator
	if cfg.EstimatorURL != "" {
		estimator = estimate.NewHTTPModel(estimate.HTTPConfig{
			BaseURL:  cfg.EstimatorURL,
			Registry: registry,
			Metrics:  providerMetrics,
			Logger:   log,
		})
		log.Info().Str("url", cfg.EstimatorURL).Msg("remote occupancy model configured")
	} else {
		estimator = estimate.NewOccupancyModel(estimate.OccupancyConfig{})
	}

	// Trip recording
	var (
		recorder     trip.Recorder
		publisher    *trip.TopicPublisher
		pubsubClient *pubsub.Client
	)
	switch {
	case cfg.PubSubEnabled():
		pubsubClient, err = pubsub.NewClient(ctx, cfg.PubSubProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub client")
		}
		publisher = trip.NewTopicPublisher(pubsubClient, cfg.PubSubTripTopic)
		recorder = trip.NewPubSubRecorder(publisher, log)
		log.Info().Str("topic", cfg.PubSubTripTopic).Msg("trips published to pubsub")
	case pool != nil:
		recorder = trip.NewPostgresRepository(pool)
	default:
		recorder = trip.NewInMemoryRepository()
		log.Warn().Msg("trips are kept in memory only")
	}
	async := trip.NewAsyncRecorder(trip.AsyncConfig{
		Recorder: recorder,
		Logger:   log,
	})

	// Planning engine
	engine := planner.NewEngine(planner.Config{
		Location:           location.NewFallback(nil, log),
		Candidates:         spots,
		Estimator:          estimator,
		Resolver:           resolver,
		Recorder:           async,
		SearchRadiusMeters: cfg.SearchRadiusMeters,
		Metrics:            engineMetrics,
		Logger:             log,
	})
	store := planner.NewStore(planner.StoreConfig{
		Engine: engine,
		TTL:    cfg.SessionTTL,
		Logger: log,
	})

	storeCtx, stopStore := context.WithCancel(ctx)
	defer stopStore()
	go store.Run(storeCtx)

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.JWTSigningKey,
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		RequireTLS:  cfg.IsProduction(),
		Sessions:    store,
		Tokens:      jwtService,
		Registry:    registry,
		Checks:      checks,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("candidate_store", cfg.CandidateStore).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	stopStore()
	store.CloseAll()

	if err := async.Wait(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("pending trips not recorded")
	}
	if publisher != nil {
		publisher.Stop()
	}
	if pubsubClient != nil {
		if err := pubsubClient.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}

	log.Info().Msg("server stopped")
}

// seedSpots loads the seed file into the store. The in-memory store falls
// back to the built-in Munich set; persistent stores are only seeded on request.
func seedSpots(ctx context.Context, cfg config.Config, store spotStore) error {
	var seed []parking.Candidate
	switch {
	case cfg.SeedPath != "":
		f, err := os.Open(cfg.SeedPath)
		if err != nil {
			return fmt.Errorf("open seed: %w", err)
		}
		defer f.Close()
		seed, err = candidate.DecodeSeed(f)
		if err != nil {
			return err
		}
	case cfg.CandidateStore == config.StoreMemory:
		seed = candidate.MunichSeed()
	}

	for _, c := range seed {
		if err := store.Upsert(ctx, c); err != nil {
			return fmt.Errorf("seed %s: %w", c.ID, err)
		}
	}
	return nil
}
