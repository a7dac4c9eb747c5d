package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
	"github.com/parkest/parkest/internal/planner"
)

// SpotStore reads and writes parking spots.
type SpotStore interface {
	planner.CandidateSource
	Upsert(ctx context.Context, c parking.Candidate) error
}

// RefreshJob recomputes the stored search delay of the spots around each target.
type RefreshJob struct {
	config    RefreshConfig
	logger    zerolog.Logger
	spots     SpotStore
	estimator planner.DelayEstimator

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRefreshes    int64
	SuccessfulRefresh int64
	FailedRefreshes   int64
	SpotsUpdated      int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config    RefreshConfig
	Logger    zerolog.Logger
	Spots     SpotStore
	Estimator planner.DelayEstimator
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config = DefaultRefreshConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RadiusMeters <= 0 {
		config.RadiusMeters = 1000
	}

	return &RefreshJob{
		config:    config,
		logger:    cfg.Logger,
		spots:     cfg.Spots,
		estimator: cfg.Estimator,
		metrics:   &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh operation.
type RefreshResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalPoints  int
	Successful   int
	Failed       int
	SpotsUpdated int
	Errors       []RefreshError
}

// RefreshError represents an error during refresh.
type RefreshError struct {
	Point  geo.Coordinate
	SpotID string
	Error  string
}

// Run executes the refresh job for all configured targets. A spot shared by
// several points is estimated once per run.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{
		StartTime:   startTime,
		TotalPoints: j.config.TotalPoints(),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting delay refresh job")

	points := j.config.AllPoints()

	pointsChan := make(chan geo.Coordinate, len(points))
	resultsChan := make(chan pointResult, len(points))
	seen := &sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, seen, pointsChan, resultsChan)
		}()
	}

	for _, p := range points {
		pointsChan <- p
	}
	close(pointsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for pr := range resultsChan {
		if pr.success {
			result.Successful++
		} else {
			result.Failed++
		}
		result.SpotsUpdated += pr.updated
		result.Errors = append(result.Errors, pr.errors...)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("spots_updated", result.SpotsUpdated).
		Msg("delay refresh job completed")

	return result
}

type pointResult struct {
	success bool
	updated int
	errors  []RefreshError
}

func (j *RefreshJob) refreshWorker(ctx context.Context, seen *sync.Map, points <-chan geo.Coordinate, results chan<- pointResult) {
	for point := range points {
		select {
		case <-ctx.Done():
			results <- pointResult{errors: []RefreshError{{Point: point, Error: ctx.Err().Error()}}}
		default:
			results <- j.refreshPoint(ctx, seen, point)
		}
	}
}

func (j *RefreshJob) refreshPoint(ctx context.Context, seen *sync.Map, point geo.Coordinate) pointResult {
	result := pointResult{success: true}

	pointCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	spots, err := j.spots.FetchNear(pointCtx, point, j.config.RadiusMeters)
	if err != nil {
		result.success = false
		result.errors = append(result.errors, RefreshError{Point: point, Error: err.Error()})
		return result
	}

	for _, spot := range spots {
		if _, dup := seen.LoadOrStore(spot.ID, struct{}{}); dup {
			continue
		}

		minutes, err := j.estimator.Estimate(pointCtx, spot.Capacity, spot.Coordinate)
		if err != nil {
			// Estimate errors on single spots are non-fatal for the point.
			result.errors = append(result.errors, RefreshError{Point: point, SpotID: spot.ID, Error: err.Error()})
			continue
		}

		spot.SearchDelayMinutes = parking.Float(minutes)
		if err := j.spots.Upsert(pointCtx, spot); err != nil {
			result.success = false
			result.errors = append(result.errors, RefreshError{Point: point, SpotID: spot.ID, Error: err.Error()})
			continue
		}
		result.updated++
	}

	return result
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.SuccessfulRefresh += int64(result.Successful)
	j.metrics.FailedRefreshes += int64(result.Failed)
	j.metrics.SpotsUpdated += int64(result.SpotsUpdated)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulRefresh:   j.metrics.SuccessfulRefresh,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		SpotsUpdated:        j.metrics.SpotsUpdated,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_refreshes":  m.SuccessfulRefresh,
		"failed_refreshes":      m.FailedRefreshes,
		"spots_updated":         m.SpotsUpdated,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
