// Package planner runs planning sessions: one event loop per user that owns a
// selection controller and feeds it location, candidates and routed legs.
package planner

import (
	"context"
	"errors"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
	"github.com/parkest/parkest/internal/trip"
)

// ErrLocationUnavailable is returned when no current position can be determined.
var ErrLocationUnavailable = errors.New("location unavailable")

// LocationProvider reports the user's current position.
type LocationProvider interface {
	CurrentPosition(ctx context.Context) (geo.Coordinate, error)
}

// CandidateSource returns parking spots near a destination. An empty slice is
// a valid answer.
type CandidateSource interface {
	FetchNear(ctx context.Context, destination geo.Coordinate, radiusMeters float64) ([]parking.Candidate, error)
}

// DelayEstimator predicts the search delay in minutes for one lot.
type DelayEstimator interface {
	Estimate(ctx context.Context, capacity int, at geo.Coordinate) (float64, error)
}

// TripRecorder receives confirmed trip starts. Calls are best effort; the
// session never waits for or acts on the outcome.
type TripRecorder interface {
	Record(ctx context.Context, t trip.Trip) error
}
