// Package geo provides the geographic coordinate type shared by the engine.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371008.8

// ErrInvalidCoordinate indicates a non-finite or out-of-range coordinate.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate represents a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the coordinate is finite and within valid ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return fmt.Errorf("%w: non-finite value (%v, %v)", ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

// LatLng converts the coordinate to an s2.LatLng.
func (c Coordinate) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Lat, c.Lon)
}

// DistanceMeters returns the great-circle distance to other in meters.
func (c Coordinate) DistanceMeters(other Coordinate) float64 {
	return c.LatLng().Distance(other.LatLng()).Radians() * EarthRadiusMeters
}

// String formats the coordinate as "lat,lon", the form used in map links.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// BoundingBox is a lat/lon rectangle.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// BoundsAround returns a box that contains every point within radiusMeters of center.
// It is a cheap prefilter for storage queries; callers still filter by DistanceMeters.
func BoundsAround(center Coordinate, radiusMeters float64) BoundingBox {
	angle := radiusMeters / EarthRadiusMeters
	dLat := angle * 180 / math.Pi

	cosLat := math.Cos(center.Lat * math.Pi / 180)
	dLon := 180.0
	if cosLat > 1e-9 {
		dLon = math.Min(180, dLat/cosLat)
	}

	return BoundingBox{
		MinLat: math.Max(-90, center.Lat-dLat),
		MinLon: math.Max(-180, center.Lon-dLon),
		MaxLat: math.Min(90, center.Lat+dLat),
		MaxLon: math.Min(180, center.Lon+dLon),
	}
}

// Contains reports whether c lies inside the box.
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}
