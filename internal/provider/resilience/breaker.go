// Package resilience guards calls to the routing and occupancy providers with
// retries, timeouts and a per-provider circuit breaker.
package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes a provider's circuit breaker. Zero fields take defaults.
type BreakerConfig struct {
	// HalfOpenProbes is the number of requests let through while half-open (default: 1).
	HalfOpenProbes uint32

	// Window clears the counts of a closed breaker (default: 60 seconds).
	Window time.Duration

	// Cooldown is how long the breaker stays open before probing (default: 30 seconds).
	Cooldown time.Duration

	// ConsecutiveFailures trips the breaker regardless of volume (default: 5).
	ConsecutiveFailures uint32

	// MinRequests is the volume at which FailureRatio is considered (default: 10).
	MinRequests uint32

	// FailureRatio trips the breaker once MinRequests were seen (default: 0.5).
	FailureRatio float64
}

// DefaultBreakerConfig returns the breaker used for interactive providers.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		HalfOpenProbes:      1,
		Window:              60 * time.Second,
		Cooldown:            30 * time.Second,
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.5,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig()
	if c.HalfOpenProbes == 0 {
		c.HalfOpenProbes = d.HalfOpenProbes
	}
	if c.Window == 0 {
		c.Window = d.Window
	}
	if c.Cooldown == 0 {
		c.Cooldown = d.Cooldown
	}
	if c.ConsecutiveFailures == 0 {
		c.ConsecutiveFailures = d.ConsecutiveFailures
	}
	if c.MinRequests == 0 {
		c.MinRequests = d.MinRequests
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = d.FailureRatio
	}
	return c
}

// ShouldTrip reports whether counts open the breaker.
func (c BreakerConfig) ShouldTrip(counts gobreaker.Counts) bool {
	if counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

// countsAsSuccess keeps cancelled requests out of the failure counts. A leg
// request is cancelled whenever the user picks another spot.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

func newBreaker(name string, cfg BreakerConfig, onChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker[*http.Response] {
	cfg = cfg.withDefaults()
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.HalfOpenProbes,
		Interval:      cfg.Window,
		Timeout:       cfg.Cooldown,
		ReadyToTrip:   cfg.ShouldTrip,
		IsSuccessful:  countsAsSuccess,
		OnStateChange: onChange,
	})
}
