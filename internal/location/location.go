// Package location provides LocationProvider implementations.
package location

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/planner"
)

// MapCenter is the default map centre (Munich, Marienplatz).
var MapCenter = geo.Coordinate{Lat: 48.13513, Lon: 11.58198}

// Static reports a fixed position.
type Static struct {
	Position geo.Coordinate
}

// CurrentPosition returns the fixed position.
func (s Static) CurrentPosition(context.Context) (geo.Coordinate, error) {
	if err := s.Position.Validate(); err != nil {
		return geo.Coordinate{}, planner.ErrLocationUnavailable
	}
	return s.Position, nil
}

// Unavailable never has a position.
type Unavailable struct{}

// CurrentPosition always fails with planner.ErrLocationUnavailable.
func (Unavailable) CurrentPosition(context.Context) (geo.Coordinate, error) {
	return geo.Coordinate{}, planner.ErrLocationUnavailable
}

// Fallback asks Primary and answers Default when it cannot.
type Fallback struct {
	Primary planner.LocationProvider
	Default geo.Coordinate
	Logger  zerolog.Logger
}

// NewFallback returns a provider that falls back to the map centre.
func NewFallback(primary planner.LocationProvider, logger zerolog.Logger) *Fallback {
	return &Fallback{Primary: primary, Default: MapCenter, Logger: logger}
}

// CurrentPosition returns the primary position or the default.
func (f *Fallback) CurrentPosition(ctx context.Context) (geo.Coordinate, error) {
	if f.Primary != nil {
		pos, err := f.Primary.CurrentPosition(ctx)
		if err == nil {
			return pos, nil
		}
		f.Logger.Warn().Err(err).
			Str("fallback", f.Default.String()).
			Msg("location unavailable, using default position")
	}
	return f.Default, nil
}
