package candidate

import (
	"context"
	"sync"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
)

// InMemoryRepository is a CandidateSource over a fixed set of spots.
type InMemoryRepository struct {
	mu    sync.RWMutex
	spots map[string]parking.Candidate
}

// NewInMemoryRepository creates a repository holding spots.
func NewInMemoryRepository(spots ...parking.Candidate) *InMemoryRepository {
	r := &InMemoryRepository{spots: make(map[string]parking.Candidate, len(spots))}
	for _, s := range spots {
		r.spots[s.ID] = s
	}
	return r
}

// Upsert adds or replaces a spot.
func (r *InMemoryRepository) Upsert(_ context.Context, c parking.Candidate) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spots[c.ID] = c
	return nil
}

// FetchNear returns the spots within radiusMeters of destination, nearest first.
func (r *InMemoryRepository) FetchNear(_ context.Context, destination geo.Coordinate, radiusMeters float64) ([]parking.Candidate, error) {
	if err := validateQuery(destination, radiusMeters); err != nil {
		return nil, err
	}

	r.mu.RLock()
	all := make([]parking.Candidate, 0, len(r.spots))
	for _, s := range r.spots {
		s.SearchDelayMinutes = copyDelay(s.SearchDelayMinutes)
		all = append(all, s)
	}
	r.mu.RUnlock()

	return nearest(destination, radiusMeters, all), nil
}

func copyDelay(d *float64) *float64 {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
