// Package estimate predicts how long it takes to find a free space at a parking spot.
package estimate

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Estimation errors.
var (
	ErrNoCapacity       = errors.New("parking has no capacity")
	ErrInvalidOccupancy = errors.New("occupancy rate out of range")
)

const (
	// BaseSearchMinutes is the search time at an empty lot.
	BaseSearchMinutes = 2.0
	// MaxSearchMinutes caps the estimate for a full lot.
	MaxSearchMinutes = 60.0
	// SmallLotCapacity is the capacity below which searching takes longer.
	SmallLotCapacity = 20
	// SmallLotPenalty multiplies the estimate for small lots.
	SmallLotPenalty = 1.25

	minFreeRatio = 0.02
)

// DayType classifies a date the way the occupancy history is keyed.
type DayType string

const (
	Weekday  DayType = "WT"
	Saturday DayType = "SA"
	Sunday   DayType = "SO"
)

// DayTypeOf returns the day type of t.
func DayTypeOf(t time.Time) DayType {
	switch t.Weekday() {
	case time.Saturday:
		return Saturday
	case time.Sunday:
		return Sunday
	default:
		return Weekday
	}
}

// SearchMinutes converts an occupancy rate in [0, 1] into expected search minutes.
// Search time grows with the inverse of the free share of the lot.
func SearchMinutes(occupancy float64, capacity int) (float64, error) {
	if capacity <= 0 {
		return 0, ErrNoCapacity
	}
	if math.IsNaN(occupancy) || occupancy < 0 || occupancy > 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidOccupancy, occupancy)
	}

	free := math.Max(1-occupancy, minFreeRatio)
	minutes := BaseSearchMinutes / free
	if capacity < SmallLotCapacity {
		minutes *= SmallLotPenalty
	}
	return math.Min(minutes, MaxSearchMinutes), nil
}
