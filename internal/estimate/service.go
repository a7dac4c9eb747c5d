package estimate

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
)

// Estimator predicts the search delay in minutes for one lot.
type Estimator interface {
	Estimate(ctx context.Context, capacity int, at geo.Coordinate) (float64, error)
}

// ServiceConfig holds configuration for the estimate service.
type ServiceConfig struct {
	// Estimator performs single estimates (required).
	Estimator Estimator

	// Concurrency bounds parallel estimates per batch (default: 8).
	Concurrency int

	// Timeout bounds each estimate (default: 5 seconds).
	Timeout time.Duration

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service fills in search delays for candidate batches.
type Service struct {
	estimator   Estimator
	concurrency int
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewService creates a new estimate service.
func NewService(cfg ServiceConfig) *Service {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		estimator:   cfg.Estimator,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      cfg.Logger,
	}
}

// EstimateAll returns a copy of candidates with missing search delays filled in.
// Delays already present are kept. A failed estimate leaves the delay nil and
// never fails the batch.
func (s *Service) EstimateAll(ctx context.Context, candidates []parking.Candidate) []parking.Candidate {
	out := make([]parking.Candidate, len(candidates))
	copy(out, candidates)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range out {
		if out[i].Delay() != nil {
			continue
		}
		i := i
		g.Go(func() error {
			ectx, cancel := context.WithTimeout(gctx, s.timeout)
			defer cancel()

			minutes, err := s.estimator.Estimate(ectx, out[i].Capacity, out[i].Coordinate)
			if err != nil {
				s.logger.Warn().Err(err).
					Str("candidate_id", out[i].ID).
					Msg("search delay estimate failed")
				out[i].SearchDelayMinutes = nil
				return nil
			}
			out[i].SearchDelayMinutes = parking.Float(minutes)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	return out
}
