// Package selection keeps the trip cost consistent while the user changes the
// selected spot or the destination with routing requests still in flight.
//
// Every change of selection or destination opens a new epoch. Leg results carry
// the epoch they were requested for and are applied only while that epoch is
// current; everything else is dropped.
package selection

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
	"github.com/parkest/parkest/internal/routing"
)

// Selection errors.
var (
	ErrUnknownCandidate = errors.New("candidate not in current set")
	ErrMissingEndpoints = errors.New("origin and destination must be set")
)

// Resolver requests the two legs of a trip and reports them through emit.
type Resolver interface {
	Resolve(ctx context.Context, epoch uint64, origin, via, destination geo.Coordinate, emit func(routing.LegResult)) error
}

// Config holds configuration for a Controller.
type Config struct {
	// Resolver routes the legs of a selected spot (required).
	Resolver Resolver

	// Emit receives leg results from resolver goroutines. It must hand them
	// back to the goroutine that owns the controller, which then calls Apply.
	Emit func(routing.LegResult)

	// Logger for selection events.
	Logger zerolog.Logger
}

// Controller owns the selection state machine. It is not safe for concurrent
// use; a single goroutine must own it.
type Controller struct {
	resolver Resolver
	emit     func(routing.LegResult)
	logger   zerolog.Logger

	epoch uint64
	state State

	origin      *geo.Coordinate
	destination *geo.Coordinate

	// searchEpoch is the epoch opened by the last BeginSearch.
	searchEpoch uint64
	candidates  []parking.Candidate
	index       map[string]int
	rejected    int
	average     *float64

	selected *parking.Candidate
	car      *routing.LegResult
	walk     *routing.LegResult
}

// New creates a Controller in StateIdle at epoch 0.
func New(cfg Config) *Controller {
	emit := cfg.Emit
	if emit == nil {
		emit = func(routing.LegResult) {}
	}
	return &Controller{
		resolver: cfg.Resolver,
		emit:     emit,
		logger:   cfg.Logger,
		index:    map[string]int{},
	}
}

// Epoch returns the current epoch.
func (c *Controller) Epoch() uint64 { return c.epoch }

// State returns the current state.
func (c *Controller) State() State { return c.state }

// SetOrigin records the user's position. If a spot is selected it is routed
// again from the new origin under a new epoch.
func (c *Controller) SetOrigin(ctx context.Context, origin geo.Coordinate) error {
	if err := origin.Validate(); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	c.origin = &origin

	if c.selected != nil {
		return c.SelectSpot(ctx, c.selected.ID)
	}
	return nil
}

// BeginSearch sets a new destination. It opens a new epoch, clears the
// selection and the candidate set, and returns the epoch that the candidate
// load for this destination must carry.
func (c *Controller) BeginSearch(destination geo.Coordinate) (uint64, error) {
	if err := destination.Validate(); err != nil {
		return c.epoch, fmt.Errorf("destination: %w", err)
	}

	c.nextEpoch()
	c.destination = &destination
	c.searchEpoch = c.epoch
	c.candidates = nil
	c.index = map[string]int{}
	c.rejected = 0
	c.average = nil
	c.resetSelection()
	c.state = StateIdle

	c.logger.Debug().
		Uint64("epoch", c.epoch).
		Str("destination", destination.String()).
		Msg("search started")
	return c.epoch, nil
}

// LoadCandidates installs the candidate set fetched for the search opened at
// epoch. Sets for any other search are dropped and false is returned. Invalid
// candidates are skipped and counted in View.RejectedCandidates.
func (c *Controller) LoadCandidates(epoch uint64, candidates []parking.Candidate) bool {
	if c.destination == nil || epoch != c.searchEpoch {
		c.logger.Debug().
			Uint64("epoch", epoch).
			Uint64("search_epoch", c.searchEpoch).
			Msg("dropping stale candidate set")
		return false
	}

	valid := make([]parking.Candidate, 0, len(candidates))
	rejected := 0
	for _, cand := range candidates {
		if err := cand.Validate(); err != nil {
			c.logger.Warn().Err(err).Str("candidate_id", cand.ID).Msg("skipping invalid candidate")
			rejected++
			continue
		}
		cand.SearchDelayMinutes = cand.Delay()
		valid = append(valid, cand)
	}

	// Repeated IDs count toward the average; only the first is selectable.
	kept := make([]parking.Candidate, 0, len(valid))
	index := make(map[string]int, len(valid))
	for _, cand := range valid {
		if _, dup := index[cand.ID]; dup {
			continue
		}
		index[cand.ID] = len(kept)
		kept = append(kept, cand)
	}

	c.candidates = kept
	c.index = index
	c.rejected = rejected
	c.average = parking.CohortAverage(valid)

	// A reload may drop the selected spot.
	if c.selected != nil {
		if i, ok := index[c.selected.ID]; ok {
			sel := kept[i]
			c.selected = &sel
		} else {
			c.ClearSelection()
		}
	}
	return true
}

// SelectSpot selects a candidate from the current set, opens a new epoch and
// requests both legs. Results of earlier epochs still in flight will be dropped.
func (c *Controller) SelectSpot(ctx context.Context, candidateID string) error {
	if c.origin == nil || c.destination == nil {
		return ErrMissingEndpoints
	}
	i, ok := c.index[candidateID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCandidate, candidateID)
	}
	cand := c.candidates[i]

	c.nextEpoch()
	c.resetSelection()
	c.selected = &cand
	c.state = StateRouting

	if err := c.resolver.Resolve(ctx, c.epoch, *c.origin, cand.Coordinate, *c.destination, c.emit); err != nil {
		c.resetSelection()
		c.state = StateIdle
		return fmt.Errorf("resolving legs for %s: %w", candidateID, err)
	}

	c.logger.Debug().
		Uint64("epoch", c.epoch).
		Str("candidate_id", candidateID).
		Msg("spot selected")
	return nil
}

// Apply stores a leg result if it belongs to the current epoch and reports
// whether it was applied.
func (c *Controller) Apply(result routing.LegResult) bool {
	if result.Epoch != c.epoch || c.selected == nil {
		c.logger.Debug().
			Uint64("epoch", result.Epoch).
			Uint64("current_epoch", c.epoch).
			Str("leg", string(result.Kind)).
			Msg("dropping stale leg result")
		return false
	}

	r := result
	switch result.Kind {
	case routing.LegCar:
		if c.car != nil {
			return false
		}
		c.car = &r
	case routing.LegWalk:
		if c.walk != nil {
			return false
		}
		c.walk = &r
	default:
		return false
	}

	switch {
	case (c.car != nil && c.car.Failed()) || (c.walk != nil && c.walk.Failed()):
		c.state = StatePartial
	case c.car != nil && c.walk != nil:
		c.state = StateReady
	}
	return true
}

// ClearSelection drops the selected spot and opens a new epoch so that
// in-flight legs are discarded. It is a no-op when nothing is selected.
func (c *Controller) ClearSelection() {
	if c.selected == nil && c.state == StateIdle {
		return
	}
	c.nextEpoch()
	c.resetSelection()
	c.state = StateIdle
}

func (c *Controller) nextEpoch() {
	c.epoch++
}

func (c *Controller) resetSelection() {
	c.selected = nil
	c.car = nil
	c.walk = nil
}
