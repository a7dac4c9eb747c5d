// Package trip records started trips and the time they saved.
package trip

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/parkest/parkest/internal/geo"
)

// Domain errors.
var (
	ErrMissingUser    = errors.New("trip has no user")
	ErrMissingParking = errors.New("trip has no parking spot")
)

// Trip is a confirmed trip start.
type Trip struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	UserID      string         `json:"user_id"`
	ParkingID   string         `json:"parking_id"`
	Origin      geo.Coordinate `json:"origin"`
	Spot        geo.Coordinate `json:"spot"`
	Destination geo.Coordinate `json:"destination"`

	// SavedMinutes is nil when the savings could not be computed.
	SavedMinutes *int      `json:"saved_minutes"`
	TotalMinutes float64   `json:"total_minutes"`
	StartedAt    time.Time `json:"started_at"`
}

// NewID returns a fresh trip identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the fields required for persistence.
func (t Trip) Validate() error {
	if t.UserID == "" {
		return ErrMissingUser
	}
	if t.ParkingID == "" {
		return ErrMissingParking
	}
	return nil
}

// Recorder persists or forwards a started trip.
type Recorder interface {
	Record(ctx context.Context, t Trip) error
}

// Repository stores trip history.
type Repository interface {
	Recorder

	// ListByUser returns the user's most recent trips, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]Trip, error)

	// TotalSaved returns the user's cumulative saved minutes.
	TotalSaved(ctx context.Context, userID string) (int, error)
}
