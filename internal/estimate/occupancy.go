package estimate

import (
	"context"
	"time"

	"github.com/parkest/parkest/internal/geo"
)

// Band is a coarse occupancy level as published for park-and-ride sites.
type Band string

const (
	BandGreen  Band = "green"  // 0 to 75 percent
	BandYellow Band = "yellow" // 75 to 90 percent
	BandRed    Band = "red"    // 90 to 100 percent
)

// Occupancy returns the midpoint occupancy rate of the band.
func (b Band) Occupancy() float64 {
	switch b {
	case BandRed:
		return 0.95
	case BandYellow:
		return 0.825
	default:
		return 0.375
	}
}

// HourBucket names the time window used by the occupancy history.
type HourBucket string

// HourBucketOf returns the bucket for an hour of day (0-23).
func HourBucketOf(hour int) HourBucket {
	switch {
	case hour == 6:
		return "06-07"
	case hour == 7:
		return "07-08"
	case hour == 8:
		return "08-09"
	case hour == 9:
		return "09-10"
	case hour >= 10 && hour < 12:
		return "10-12"
	case hour >= 12 && hour < 14:
		return "12-14"
	case hour >= 14 && hour < 16:
		return "14-16"
	case hour >= 16 && hour < 18:
		return "16-18"
	case hour >= 18 && hour < 20:
		return "18-20"
	default:
		return "20-06"
	}
}

// Pattern maps day type and hour bucket to an occupancy band.
// Missing entries are green.
type Pattern map[DayType]map[HourBucket]Band

// DefaultPattern is a typical city-centre weekly profile.
func DefaultPattern() Pattern {
	return Pattern{
		Weekday: {
			"06-07": BandGreen, "07-08": BandYellow, "08-09": BandRed, "09-10": BandRed,
			"10-12": BandRed, "12-14": BandYellow, "14-16": BandYellow, "16-18": BandYellow,
			"18-20": BandGreen, "20-06": BandGreen,
		},
		Saturday: {
			"10-12": BandYellow, "12-14": BandRed, "14-16": BandRed, "16-18": BandYellow,
		},
		Sunday: {
			"12-14": BandYellow, "14-16": BandYellow,
		},
	}
}

// Band returns the band for the given day and bucket.
func (p Pattern) Band(day DayType, bucket HourBucket) Band {
	if b, ok := p[day][bucket]; ok {
		return b
	}
	return BandGreen
}

// OccupancyConfig holds configuration for the local occupancy model.
type OccupancyConfig struct {
	// Pattern is the weekly occupancy profile (default: DefaultPattern).
	Pattern Pattern

	// Location is the time zone the pattern is expressed in (default: time.Local).
	Location *time.Location

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// OccupancyModel estimates search delays from a weekly occupancy profile.
type OccupancyModel struct {
	pattern  Pattern
	location *time.Location
	now      func() time.Time
}

// NewOccupancyModel creates a local delay estimator.
func NewOccupancyModel(cfg OccupancyConfig) *OccupancyModel {
	m := &OccupancyModel{
		pattern:  cfg.Pattern,
		location: cfg.Location,
		now:      cfg.Now,
	}
	if m.pattern == nil {
		m.pattern = DefaultPattern()
	}
	if m.location == nil {
		m.location = time.Local
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Estimate returns the expected search minutes for a lot of the given capacity.
func (m *OccupancyModel) Estimate(_ context.Context, capacity int, at geo.Coordinate) (float64, error) {
	if err := at.Validate(); err != nil {
		return 0, err
	}
	now := m.now().In(m.location)
	band := m.pattern.Band(DayTypeOf(now), HourBucketOf(now.Hour()))
	return SearchMinutes(band.Occupancy(), capacity)
}
