// Package polyline encodes and decodes route geometry in Google's polyline
// format (precision 5), the format returned by openrouteservice.
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"

	"github.com/parkest/parkest/internal/geo"
)

// ErrMalformed is returned when an encoded string ends mid-value or
// contains characters outside the polyline alphabet.
var ErrMalformed = errors.New("polyline: malformed input")

const precision = 1e5

// Decode decodes a polyline string into coordinates. An empty string
// decodes to nil.
func Decode(encoded string) ([]geo.Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	var coords []geo.Coordinate
	index, lat, lon := 0, 0, 0

	for index < len(encoded) {
		latDelta, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		lonDelta, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next
		lat += latDelta
		lon += lonDelta

		coords = append(coords, geo.Coordinate{
			Lat: float64(lat) / precision,
			Lon: float64(lon) / precision,
		})
	}

	return coords, nil
}

func decodeValue(encoded string, index int) (int, int, error) {
	shift, result := 0, 0

	for {
		if index >= len(encoded) {
			return 0, index, ErrMalformed
		}
		b := int(encoded[index]) - 63
		if b < 0 || b > 0x3f {
			return 0, index, ErrMalformed
		}
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// Encode encodes coordinates into a polyline string.
func Encode(coords []geo.Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(coords)*8)
	prevLat, prevLon := 0, 0

	for _, c := range coords {
		lat := int(math.Round(c.Lat * precision))
		lon := int(math.Round(c.Lon * precision))
		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lon-prevLon)
		prevLat, prevLon = lat, lon
	}

	return string(encoded)
}

func encodeValue(buf []byte, value int) []byte {
	v := value << 1
	if value < 0 {
		v = ^v
	}
	for v >= 0x20 {
		buf = append(buf, byte((0x20|(v&0x1f))+63))
		v >>= 5
	}
	return append(buf, byte(v+63))
}

// Length returns the great-circle length of the path in meters.
func Length(coords []geo.Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(coords); i++ {
		total += coords[i-1].DistanceMeters(coords[i])
	}
	return total
}

// Thin reduces a path to at most max points by keeping evenly spaced
// vertices. The first and last points are always kept.
func Thin(coords []geo.Coordinate, max int) []geo.Coordinate {
	if max < 2 || len(coords) <= max {
		return coords
	}

	out := make([]geo.Coordinate, 0, max)
	step := float64(len(coords)-1) / float64(max-1)
	for i := 0; i < max-1; i++ {
		out = append(out, coords[int(math.Round(float64(i)*step))])
	}
	return append(out, coords[len(coords)-1])
}
