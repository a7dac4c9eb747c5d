// Package routing requests routed legs from an external routing provider.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/parkest/parkest/internal/geo"
)

var (
	// ErrProviderUnavailable means the provider is down, refused the key or its
	// breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound means the provider could not connect the two points, for
	// example because a spot lies inside a pedestrian zone.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded means the provider quota is used up.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates means an endpoint is out of range or not finite.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)

// Provider computes single routes.
type Provider interface {
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	// Name identifies the provider in logs, metrics and the health registry.
	Name() string
}

// RouteProfile selects the travel mode of a leg.
type RouteProfile string

const (
	// ProfileDriving is used from the user's position to the spot.
	ProfileDriving RouteProfile = "driving-car"
	// ProfileWalk is used from the spot to the destination.
	ProfileWalk RouteProfile = "foot-walking"
)

// DirectionsRequest asks for one route.
type DirectionsRequest struct {
	Origin      geo.Coordinate
	Destination geo.Coordinate
	Profile     RouteProfile
}

// DirectionsResponse holds the provider's routes, best first.
type DirectionsResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route is one routed leg.
type Route struct {
	GeometryPolyline string  // precision 5
	DistanceMeters   float64 // summed over all segments
	DurationSeconds  float64 // summed over all segments
}

// Error is a provider failure. Err is one of the sentinel errors above,
// possibly wrapping the transport error.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = e.Provider + " " + e.Code + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a later attempt may succeed.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
