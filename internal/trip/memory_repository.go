package trip

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and local runs. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	trips map[string]Trip
	saved map[string]int
}

// NewInMemoryRepository creates a new in-memory trip repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		trips: make(map[string]Trip),
		saved: make(map[string]int),
	}
}

// Record stores t. Recording the same trip ID twice is a no-op.
func (r *InMemoryRepository) Record(_ context.Context, t Trip) error {
	if err := t.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.trips[t.ID]; ok {
		return nil
	}
	r.trips[t.ID] = t
	if t.SavedMinutes != nil {
		r.saved[t.UserID] += *t.SavedMinutes
	}
	return nil
}

// ListByUser returns the user's most recent trips, newest first.
func (r *InMemoryRepository) ListByUser(_ context.Context, userID string, limit int) ([]Trip, error) {
	if limit <= 0 {
		limit = 50
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var trips []Trip
	for _, t := range r.trips {
		if t.UserID == userID {
			trips = append(trips, t)
		}
	}
	sort.Slice(trips, func(i, j int) bool { return trips[i].StartedAt.After(trips[j].StartedAt) })
	if len(trips) > limit {
		trips = trips[:limit]
	}
	return trips, nil
}

// TotalSaved returns the user's cumulative saved minutes.
func (r *InMemoryRepository) TotalSaved(_ context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saved[userID], nil
}
