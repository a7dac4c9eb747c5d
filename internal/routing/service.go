package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/geo/s2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/telemetry"
)

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	// Provider is the routing data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long a route is served without asking the provider
	// (default: 5 minutes).
	CacheTTL time.Duration

	// CacheCellLevel is the S2 level endpoints are snapped to for the cache key
	// (default: 18, cells of roughly 35 m). Walking legs are short, so the
	// cells must stay small.
	CacheCellLevel int

	// StaleIfErrorTTL is how long an expired route may still answer when the
	// provider fails (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// CleanupInterval is the minimum time between cache sweeps (default: 5 minutes).
	CleanupInterval time.Duration

	// Metrics records cache lookups (optional).
	Metrics *telemetry.ProviderMetrics
}

// Service caches provider routes per pair of S2 cells. Identical requests in
// flight at the same time share one provider call; different keys run in parallel.
type Service struct {
	provider  Provider
	logger    zerolog.Logger
	ttl       time.Duration
	level     int
	staleTTL  time.Duration
	sweepTick time.Duration
	metrics   *telemetry.ProviderMetrics
	inflight  singleflight.Group

	mu        sync.RWMutex
	cache     map[string]*cachedDirections
	lastSweep time.Time
}

type cachedDirections struct {
	response  *DirectionsResponse
	fetchedAt time.Time
	expiresAt time.Time
}

func (c *cachedDirections) staleUntil(staleTTL time.Duration) time.Time {
	return c.fetchedAt.Add(staleTTL)
}

// NewService creates a new routing service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		provider:  cfg.Provider,
		logger:    cfg.Logger,
		ttl:       cfg.CacheTTL,
		level:     cfg.CacheCellLevel,
		staleTTL:  cfg.StaleIfErrorTTL,
		sweepTick: cfg.CleanupInterval,
		metrics:   cfg.Metrics,
		cache:     make(map[string]*cachedDirections),
	}
	if s.ttl <= 0 {
		s.ttl = 5 * time.Minute
	}
	if s.level <= 0 || s.level > s2.MaxLevel {
		s.level = 18
	}
	if s.staleTTL <= 0 {
		s.staleTTL = 15 * time.Minute
	}
	if s.sweepTick <= 0 {
		s.sweepTick = 5 * time.Minute
	}
	return s
}

// GetDirections returns a route between two points, from cache when fresh.
// On provider failure a stale entry is served if one is still inside the
// stale window.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	if err := validateRequest(s.provider.Name(), req); err != nil {
		return nil, err
	}

	key := s.cacheKey(req)
	name := s.provider.Name()

	s.mu.RLock()
	cached := s.cache[key]
	s.mu.RUnlock()
	if cached != nil && time.Now().Before(cached.expiresAt) {
		s.metrics.CacheLookup(ctx, name, "hit")
		return cached.response, nil
	}
	s.metrics.CacheLookup(ctx, name, "miss")

	resp, err := s.fetch(ctx, key, req)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	s.logger.Error().Err(err).
		Str("profile", string(req.Profile)).
		Str("origin", req.Origin.String()).
		Str("destination", req.Destination.String()).
		Msg("failed to fetch directions")

	if cached != nil && time.Now().Before(cached.staleUntil(s.staleTTL)) {
		s.logger.Warn().
			Time("fetched_at", cached.fetchedAt).
			Str("cache_key", key).
			Msg("serving stale directions due to provider error")
		s.metrics.CacheLookup(ctx, name, "stale")
		return cached.response, nil
	}
	return nil, err
}

// fetch asks the provider once per key, however many callers wait on it. A
// caller whose shared call was canceled by another caller retries on its own.
func (s *Service) fetch(ctx context.Context, key string, req DirectionsRequest) (*DirectionsResponse, error) {
	ch := s.inflight.DoChan(key, func() (any, error) {
		resp, err := s.provider.GetDirections(ctx, req)
		if err != nil {
			return nil, err
		}
		s.store(key, resp)
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(*DirectionsResponse), nil //nolint:forcetypeassert // only *DirectionsResponse is stored
		}
		if res.Shared && errors.Is(res.Err, context.Canceled) && ctx.Err() == nil {
			resp, err := s.provider.GetDirections(ctx, req)
			if err != nil {
				return nil, err
			}
			s.store(key, resp)
			return resp, nil
		}
		return nil, res.Err
	}
}

func (s *Service) store(key string, resp *DirectionsResponse) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = &cachedDirections{
		response:  resp,
		fetchedAt: now,
		expiresAt: now.Add(s.ttl),
	}
	s.sweepLocked(now)
}

// cacheKey is {profile}:{origin cell}:{destination cell}.
func (s *Service) cacheKey(req DirectionsRequest) string {
	cell := func(c geo.Coordinate) string {
		return s2.CellIDFromLatLng(c.LatLng()).Parent(s.level).ToToken()
	}
	return string(req.Profile) + ":" + cell(req.Origin) + ":" + cell(req.Destination)
}

// sweepLocked drops entries past the stale window. Callers hold s.mu.
func (s *Service) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.sweepTick {
		return
	}
	s.lastSweep = now

	dropped := 0
	for key, c := range s.cache {
		if now.After(c.staleUntil(s.staleTTL)) {
			delete(s.cache, key)
			dropped++
		}
	}
	if dropped > 0 {
		s.logger.Debug().Int("expired_entries", dropped).Msg("swept routing cache")
	}
}

// InvalidateCache clears all cached routes.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedDirections)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	stats := CacheStats{TotalEntries: len(s.cache), Provider: s.provider.Name()}
	for _, c := range s.cache {
		if now.Before(c.expiresAt) {
			stats.FreshEntries++
		} else if now.Before(c.staleUntil(s.staleTTL)) {
			stats.StaleEntries++
		}
	}
	return stats
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	Provider     string
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// validateRequest rejects malformed endpoints before any provider call.
func validateRequest(provider string, req DirectionsRequest) error {
	if err := req.Origin.Validate(); err != nil {
		return &Error{Provider: provider, Code: "INVALID_ORIGIN", Message: "invalid origin coordinates", Err: ErrInvalidCoordinates}
	}
	if err := req.Destination.Validate(); err != nil {
		return &Error{Provider: provider, Code: "INVALID_DESTINATION", Message: "invalid destination coordinates", Err: ErrInvalidCoordinates}
	}
	return nil
}

// ValidateEndpoints validates every coordinate and reports the first failure.
func ValidateEndpoints(points ...geo.Coordinate) error {
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: point %d: %w", ErrInvalidCoordinates, i, err)
		}
	}
	return nil
}
