// Package parking holds the trip-cost model: parking candidates, routed legs,
// cost breakdowns and the savings comparison against the cohort average.
package parking

import (
	"errors"
	"fmt"
	"math"

	"github.com/parkest/parkest/internal/geo"
)

// Validation errors.
var (
	ErrInvalidCapacity = errors.New("capacity must not be negative")
	ErrMissingID       = errors.New("candidate id is required")
)

// Candidate is a parking spot returned near a destination.
type Candidate struct {
	ID         string
	Coordinate geo.Coordinate
	Capacity   int
	Label      string
	Address    string
	Type       string

	// SearchDelayMinutes is the predicted time to find a free space.
	// nil means the delay could not be estimated.
	SearchDelayMinutes *float64
}

// Validate checks the candidate's invariants.
func (c Candidate) Validate() error {
	if c.ID == "" {
		return ErrMissingID
	}
	if c.Capacity < 0 {
		return fmt.Errorf("candidate %s: %w", c.ID, ErrInvalidCapacity)
	}
	if err := c.Coordinate.Validate(); err != nil {
		return fmt.Errorf("candidate %s: %w", c.ID, err)
	}
	return nil
}

// Delay returns the candidate's search delay normalised so that
// non-finite values are reported as unknown.
func (c Candidate) Delay() *float64 {
	return normalize(c.SearchDelayMinutes)
}

// RouteLeg is one routed segment (driving or walking).
type RouteLeg struct {
	DurationSeconds float64
	DistanceMeters  float64
	Geometry        string // encoded polyline, not interpreted by the model
}

// Minutes returns the leg duration in minutes.
func (l RouteLeg) Minutes() float64 {
	return l.DurationSeconds / 60
}

// Float returns a pointer to v. Handy for literal delays.
func Float(v float64) *float64 {
	return &v
}

// normalize maps NaN and infinities to nil.
func normalize(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	out := *v
	return &out
}
