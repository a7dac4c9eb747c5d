package planner

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/estimate"
	"github.com/parkest/parkest/internal/selection"
	"github.com/parkest/parkest/internal/telemetry"
)

// DefaultSearchRadiusMeters is used when a search gives no radius.
const DefaultSearchRadiusMeters = 1000.0

// MaxSearchRadiusMeters bounds the radius a search may ask for.
const MaxSearchRadiusMeters = 10000.0

// Config holds the collaborators shared by all sessions.
type Config struct {
	// Location resolves the origin when a session has none (optional).
	Location LocationProvider

	// Candidates returns spots near a destination (required).
	Candidates CandidateSource

	// Estimator fills in missing search delays (optional).
	Estimator DelayEstimator

	// EstimateConcurrency bounds parallel estimates per search (default: 8).
	EstimateConcurrency int

	// Resolver routes the legs of a selected spot (required).
	Resolver selection.Resolver

	// Recorder receives started trips (optional).
	Recorder TripRecorder

	// SearchRadiusMeters is the default search radius (default: 1000).
	SearchRadiusMeters float64

	// Metrics records engine metrics (optional).
	Metrics *telemetry.EngineMetrics

	// Now returns the current time (default: time.Now).
	Now func() time.Time

	// Logger for session events.
	Logger zerolog.Logger
}

// Engine creates sessions that share one set of collaborators.
type Engine struct {
	location   LocationProvider
	candidates CandidateSource
	estimates  *estimate.Service
	resolver   selection.Resolver
	recorder   TripRecorder
	radius     float64
	metrics    *telemetry.EngineMetrics
	now        func() time.Time
	logger     zerolog.Logger
}

// NewEngine creates a new engine.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		location:   cfg.Location,
		candidates: cfg.Candidates,
		resolver:   cfg.Resolver,
		recorder:   cfg.Recorder,
		radius:     cfg.SearchRadiusMeters,
		metrics:    cfg.Metrics,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
	if cfg.Estimator != nil {
		e.estimates = estimate.NewService(estimate.ServiceConfig{
			Estimator:   cfg.Estimator,
			Concurrency: cfg.EstimateConcurrency,
			Logger:      cfg.Logger,
		})
	}
	if e.radius <= 0 {
		e.radius = DefaultSearchRadiusMeters
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}
