// Package candidate stores parking spots and answers radius queries around a destination.
package candidate

import (
	"errors"
	"sort"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
)

// ErrInvalidRadius is returned for non-positive search radii.
var ErrInvalidRadius = errors.New("radius must be positive")

// MaxResults caps the number of candidates returned per query.
const MaxResults = 50

func validateQuery(destination geo.Coordinate, radiusMeters float64) error {
	if err := destination.Validate(); err != nil {
		return err
	}
	if radiusMeters <= 0 {
		return ErrInvalidRadius
	}
	return nil
}

// nearest keeps the candidates within radiusMeters of destination, nearest first.
func nearest(destination geo.Coordinate, radiusMeters float64, all []parking.Candidate) []parking.Candidate {
	type ranked struct {
		c    parking.Candidate
		dist float64
	}

	var within []ranked
	for _, c := range all {
		if d := destination.DistanceMeters(c.Coordinate); d <= radiusMeters {
			within = append(within, ranked{c, d})
		}
	}
	sort.SliceStable(within, func(i, j int) bool {
		if within[i].dist != within[j].dist {
			return within[i].dist < within[j].dist
		}
		return within[i].c.ID < within[j].c.ID
	})

	if len(within) > MaxResults {
		within = within[:MaxResults]
	}
	out := make([]parking.Candidate, len(within))
	for i, r := range within {
		out[i] = r.c
	}
	return out
}
