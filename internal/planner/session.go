package planner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
	"github.com/parkest/parkest/internal/routing"
	"github.com/parkest/parkest/internal/selection"
	"github.com/parkest/parkest/internal/trip"
)

// Session errors.
var (
	ErrSessionClosed      = errors.New("session closed")
	ErrNotReady           = errors.New("trip cost is not available yet")
	ErrTripAlreadyStarted = errors.New("trip already started for this selection")
	ErrInvalidRadius      = errors.New("search radius out of range")
)

// View is a session snapshot.
type View struct {
	selection.View

	SessionID string
	// Searching is true while the candidate set for the destination is loading.
	Searching bool
	// SearchErr is the candidate fetch failure of the current search, if any.
	SearchErr error
}

// Settled reports whether nothing is in flight for the current epoch.
func (v View) Settled() bool {
	return !v.Searching && v.State.Settled()
}

type candidateLoad struct {
	epoch      uint64
	candidates []parking.Candidate
	err        error
}

// Session is a single-user event loop. One goroutine owns the controller;
// every method hands work to that goroutine and waits for the result.
type Session struct {
	id     string
	engine *Engine
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	commands chan func()
	legs     chan routing.LegResult
	loads    chan candidateLoad

	lastActive atomic.Int64

	// Owned by the loop goroutine.
	ctrl      *selection.Controller
	searching bool
	searchErr error
	waiters   []chan View
	tripEpoch uint64
}

// NewSession starts a session loop. It runs until Close is called.
func (e *Engine) NewSession(id string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		engine:   e,
		logger:   e.logger.With().Str("session_id", id).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		commands: make(chan func()),
		legs:     make(chan routing.LegResult),
		loads:    make(chan candidateLoad),
	}
	s.ctrl = selection.New(selection.Config{
		Resolver: e.resolver,
		Emit:     s.emitLeg,
		Logger:   s.logger,
	})
	s.touch()

	e.metrics.SessionOpened(ctx)
	go s.run()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// LastActive returns the time of the last call on the session.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Done is closed once the loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the loop. In-flight fetches are cancelled and their results dropped.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) run() {
	defer close(s.done)
	defer s.engine.metrics.SessionClosed(context.Background())

	for {
		select {
		case <-s.ctx.Done():
			s.waiters = nil
			return
		case fn := <-s.commands:
			fn()
		case r := <-s.legs:
			s.applyLeg(r)
		case l := <-s.loads:
			s.applyLoad(l)
		}
		s.notifyWaiters()
	}
}

// exec runs fn on the loop goroutine and waits for it.
func (s *Session) exec(ctx context.Context, fn func()) error {
	s.touch()
	finished := make(chan struct{})
	select {
	case s.commands <- func() { fn(); close(finished) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
	<-finished
	return nil
}

func (s *Session) touch() {
	s.lastActive.Store(s.engine.now().UnixNano())
}

// emitLeg is called from resolver goroutines.
func (s *Session) emitLeg(r routing.LegResult) {
	select {
	case s.legs <- r:
	case <-s.ctx.Done():
	}
}

func (s *Session) applyLeg(r routing.LegResult) {
	outcome := "stale"
	if s.ctrl.Apply(r) {
		outcome = "applied"
		if r.Failed() {
			outcome = "failed"
		}
	}
	s.engine.metrics.LegResult(s.ctx, string(r.Kind), outcome)
}

func (s *Session) applyLoad(l candidateLoad) {
	if !s.ctrl.LoadCandidates(l.epoch, l.candidates) {
		return
	}
	s.searching = false
	s.searchErr = l.err
	s.engine.metrics.CandidateSet(s.ctx, len(l.candidates), l.err)
}

func (s *Session) view() View {
	return View{
		View:      s.ctrl.Snapshot(),
		SessionID: s.id,
		Searching: s.searching,
		SearchErr: s.searchErr,
	}
}

func (s *Session) notifyWaiters() {
	if len(s.waiters) == 0 {
		return
	}
	v := s.view()
	if !v.Settled() {
		return
	}
	for _, w := range s.waiters {
		w <- v
	}
	s.waiters = nil
}

// SetOrigin sets the user's position. A selected spot is routed again.
func (s *Session) SetOrigin(ctx context.Context, origin geo.Coordinate) error {
	var err error
	if execErr := s.exec(ctx, func() { err = s.ctrl.SetOrigin(s.ctx, origin) }); execErr != nil {
		return execErr
	}
	return err
}

// LocateOrigin asks the location provider for the user's position and uses it as origin.
func (s *Session) LocateOrigin(ctx context.Context) (geo.Coordinate, error) {
	if s.engine.location == nil {
		return geo.Coordinate{}, ErrLocationUnavailable
	}
	pos, err := s.engine.location.CurrentPosition(ctx)
	if err != nil {
		if errors.Is(err, ErrLocationUnavailable) {
			return geo.Coordinate{}, err
		}
		return geo.Coordinate{}, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}
	if err := s.SetOrigin(ctx, pos); err != nil {
		return geo.Coordinate{}, err
	}
	return pos, nil
}

// Search sets a new destination and starts loading the candidates around it.
// radiusMeters <= 0 uses the engine default. It returns the new epoch without
// waiting for the candidates; use Await for that.
func (s *Session) Search(ctx context.Context, destination geo.Coordinate, radiusMeters float64) (uint64, error) {
	if radiusMeters <= 0 {
		radiusMeters = s.engine.radius
	}
	if radiusMeters > MaxSearchRadiusMeters {
		return 0, fmt.Errorf("%w: %.0f > %.0f", ErrInvalidRadius, radiusMeters, MaxSearchRadiusMeters)
	}

	var epoch uint64
	var err error
	execErr := s.exec(ctx, func() {
		epoch, err = s.ctrl.BeginSearch(destination)
		if err != nil {
			return
		}
		s.searching = true
		s.searchErr = nil
		go s.fetchCandidates(epoch, destination, radiusMeters)
	})
	if execErr != nil {
		return 0, execErr
	}
	return epoch, err
}

func (s *Session) fetchCandidates(epoch uint64, destination geo.Coordinate, radiusMeters float64) {
	start := time.Now()
	candidates, err := s.engine.candidates.FetchNear(s.ctx, destination, radiusMeters)
	if err != nil {
		s.logger.Error().Err(err).
			Uint64("epoch", epoch).
			Str("destination", destination.String()).
			Msg("candidate fetch failed")
		candidates = nil
	} else if s.engine.estimates != nil {
		candidates = s.engine.estimates.EstimateAll(s.ctx, candidates)
	}

	s.logger.Debug().
		Uint64("epoch", epoch).
		Int("candidates", len(candidates)).
		Dur("duration", time.Since(start)).
		Msg("candidates loaded")

	select {
	case s.loads <- candidateLoad{epoch: epoch, candidates: candidates, err: err}:
	case <-s.ctx.Done():
	}
}

// Select selects a candidate of the current set and starts routing it.
func (s *Session) Select(ctx context.Context, candidateID string) error {
	var err error
	if execErr := s.exec(ctx, func() { err = s.ctrl.SelectSpot(s.ctx, candidateID) }); execErr != nil {
		return execErr
	}
	return err
}

// ClearSelection drops the selected spot.
func (s *Session) ClearSelection(ctx context.Context) error {
	return s.exec(ctx, s.ctrl.ClearSelection)
}

// Snapshot returns the current view without waiting.
func (s *Session) Snapshot(ctx context.Context) (View, error) {
	var v View
	err := s.exec(ctx, func() { v = s.view() })
	return v, err
}

// Await returns the view once the current search and selection have settled.
func (s *Session) Await(ctx context.Context) (View, error) {
	ch := make(chan View, 1)
	err := s.exec(ctx, func() {
		v := s.view()
		if v.Settled() {
			ch <- v
			return
		}
		s.waiters = append(s.waiters, ch)
	})
	if err != nil {
		return View{}, err
	}

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.done:
		return View{}, ErrSessionClosed
	}
}

// StartTrip confirms the trip for the ready selection and hands it to the
// recorder. It can be called once per selection epoch.
func (s *Session) StartTrip(ctx context.Context, userID string) (trip.Trip, View, error) {
	var (
		t   trip.Trip
		v   View
		err error
	)
	execErr := s.exec(ctx, func() {
		v = s.view()
		if v.State != selection.StateReady || v.Breakdown == nil {
			err = ErrNotReady
			return
		}
		if s.tripEpoch == v.Epoch {
			err = ErrTripAlreadyStarted
			return
		}
		s.tripEpoch = v.Epoch

		t = trip.Trip{
			ID:           trip.NewID(),
			SessionID:    s.id,
			UserID:       userID,
			ParkingID:    v.Selected.ID,
			Spot:         v.Selected.Coordinate,
			Destination:  *v.Destination,
			Origin:       *v.Origin,
			TotalMinutes: v.Breakdown.TotalMinutes,
			StartedAt:    s.engine.now().UTC(),
		}
		if v.Savings != nil {
			saved := v.Savings.SavedMinutes
			t.SavedMinutes = &saved
		}
	})
	if execErr != nil {
		return trip.Trip{}, View{}, execErr
	}
	if err != nil {
		return trip.Trip{}, v, err
	}

	s.engine.metrics.TripStarted(ctx, t.SavedMinutes != nil)
	if s.engine.recorder != nil {
		if recErr := s.engine.recorder.Record(ctx, t); recErr != nil {
			s.logger.Warn().Err(recErr).Str("trip_id", t.ID).Msg("trip recorder rejected trip")
		}
	}

	s.logger.Info().
		Str("trip_id", t.ID).
		Str("parking_id", t.ParkingID).
		Uint64("epoch", v.Epoch).
		Msg("trip started")
	return t, v, nil
}
