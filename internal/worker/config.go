// Package worker provides background job processing for Parkest.
package worker

import (
	"sort"
	"time"

	"github.com/parkest/parkest/internal/geo"
)

// RefreshTarget is a destination area whose parking delays are refreshed.
type RefreshTarget struct {
	// Name is the human-readable name of the target.
	Name string

	// Points are the destinations to search around.
	Points []geo.Coordinate

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// RefreshConfig holds configuration for the delay refresh job.
type RefreshConfig struct {
	// Targets are the areas to refresh.
	// If empty, uses DefaultRefreshTargets.
	Targets []RefreshTarget

	// RadiusMeters is the search radius around each point.
	// Default: 1000
	RadiusMeters float64

	// Concurrency is the number of concurrent point refreshes.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each point.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:      DefaultRefreshTargets(),
		RadiusMeters: 1000,
		Concurrency:  3,
		Timeout:      30 * time.Second,
	}
}

// DefaultRefreshTargets returns the default refresh targets for Munich.
func DefaultRefreshTargets() []RefreshTarget {
	return []RefreshTarget{
		{
			Name:     "Altstadt",
			Priority: 1,
			Points: []geo.Coordinate{
				{Lat: 48.13743, Lon: 11.57549}, // Marienplatz
				{Lat: 48.14259, Lon: 11.57561}, // Odeonsplatz
				{Lat: 48.13911, Lon: 11.56581}, // Karlsplatz (Stachus)
			},
		},
		{
			Name:     "Hauptbahnhof",
			Priority: 1,
			Points: []geo.Coordinate{
				{Lat: 48.14016, Lon: 11.55850},
			},
		},
		{
			Name:     "Schwabing",
			Priority: 2,
			Points: []geo.Coordinate{
				{Lat: 48.16137, Lon: 11.58602}, // Münchner Freiheit
				{Lat: 48.15032, Lon: 11.58037}, // Universität
			},
		},
		{
			Name:     "Maxvorstadt",
			Priority: 2,
			Points: []geo.Coordinate{
				{Lat: 48.14644, Lon: 11.56513}, // Königsplatz
			},
		},
		{
			Name:     "Haidhausen",
			Priority: 3,
			Points: []geo.Coordinate{
				{Lat: 48.12792, Lon: 11.60497}, // Ostbahnhof
			},
		},
		{
			Name:     "Olympiapark",
			Priority: 3,
			Points: []geo.Coordinate{
				{Lat: 48.17546, Lon: 11.55180},
			},
		},
	}
}

// AllPoints returns all points from all targets, ordered by priority.
func (c RefreshConfig) AllPoints() []geo.Coordinate {
	targets := make([]RefreshTarget, len(c.Targets))
	copy(targets, c.Targets)
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Priority < targets[j].Priority
	})

	var points []geo.Coordinate
	for _, target := range targets {
		points = append(points, target.Points...)
	}
	return points
}

// TotalPoints returns the total number of points to refresh.
func (c RefreshConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
