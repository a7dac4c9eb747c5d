package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
)

// LegKind identifies which leg of a trip a result belongs to.
type LegKind string

const (
	// LegCar is the driving leg from the user's origin to the parking spot.
	LegCar LegKind = "CAR"
	// LegWalk is the walking leg from the parking spot to the destination.
	LegWalk LegKind = "WALK"
)

// Profile returns the routing profile used for the leg.
func (k LegKind) Profile() RouteProfile {
	if k == LegWalk {
		return ProfileWalk
	}
	return ProfileDriving
}

// LegResult is the outcome of one routed leg, tagged with the epoch it was requested for.
// Exactly one of Leg and Err is set.
type LegResult struct {
	Epoch uint64
	Kind  LegKind
	Leg   *parking.RouteLeg
	Err   error
}

// Failed reports whether the leg could not be routed.
func (r LegResult) Failed() bool {
	return r.Err != nil || r.Leg == nil
}

// Router is the subset of Provider the resolver needs. Both Provider
// implementations and the caching Service satisfy it.
type Router interface {
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
}

// ResolverConfig holds configuration for the leg resolver.
type ResolverConfig struct {
	// Router performs the directions requests (required).
	Router Router

	// Logger for resolver operations.
	Logger zerolog.Logger
}

// LegResolver requests the car and walk legs of a trip through a chosen parking spot.
type LegResolver struct {
	router Router
	logger zerolog.Logger
}

// NewLegResolver creates a new leg resolver.
func NewLegResolver(cfg ResolverConfig) *LegResolver {
	return &LegResolver{
		router: cfg.Router,
		logger: cfg.Logger,
	}
}

// Resolve validates the three points and then requests the car leg (origin to via)
// and the walk leg (via to destination) concurrently. It returns without waiting;
// emit is called exactly once per leg from the request goroutines, in any order.
// Invalid input returns an error and nothing is requested or emitted.
func (r *LegResolver) Resolve(ctx context.Context, epoch uint64, origin, via, destination geo.Coordinate, emit func(LegResult)) error {
	if err := ValidateEndpoints(origin, via, destination); err != nil {
		return err
	}

	r.logger.Debug().
		Uint64("epoch", epoch).
		Str("origin", origin.String()).
		Str("via", via.String()).
		Str("destination", destination.String()).
		Msg("resolving trip legs")

	go r.resolveLeg(ctx, epoch, LegCar, origin, via, emit)
	go r.resolveLeg(ctx, epoch, LegWalk, via, destination, emit)
	return nil
}

func (r *LegResolver) resolveLeg(ctx context.Context, epoch uint64, kind LegKind, from, to geo.Coordinate, emit func(LegResult)) {
	start := time.Now()
	leg, err := r.fetchLeg(ctx, kind, from, to)

	logEvent := r.logger.Debug()
	if err != nil {
		logEvent = r.logger.Error().Err(err)
	}
	logEvent.
		Uint64("epoch", epoch).
		Str("leg", string(kind)).
		Dur("duration", time.Since(start)).
		Msg("leg resolved")

	emit(LegResult{Epoch: epoch, Kind: kind, Leg: leg, Err: err})
}

func (r *LegResolver) fetchLeg(ctx context.Context, kind LegKind, from, to geo.Coordinate) (*parking.RouteLeg, error) {
	resp, err := r.router.GetDirections(ctx, DirectionsRequest{
		Origin:      from,
		Destination: to,
		Profile:     kind.Profile(),
	})
	if err != nil {
		return nil, fmt.Errorf("%s leg: %w", kind, err)
	}
	if resp == nil || len(resp.Routes) == 0 {
		return nil, fmt.Errorf("%s leg: %w", kind, ErrNoRouteFound)
	}

	route := resp.Routes[0]
	return &parking.RouteLeg{
		DurationSeconds: route.DurationSeconds,
		DistanceMeters:  route.DistanceMeters,
		Geometry:        route.GeometryPolyline,
	}, nil
}
