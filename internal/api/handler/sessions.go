package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/api/middleware"
	"github.com/parkest/parkest/internal/api/models"
	"github.com/parkest/parkest/internal/api/response"
	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/planner"
	"github.com/parkest/parkest/internal/selection"
)

// DefaultMaxWait bounds how long a request may wait for a session to settle.
const DefaultMaxWait = 10 * time.Second

// SessionStore is the subset of planner.Store used by the handler.
type SessionStore interface {
	Create() *planner.Session
	Get(id string) (*planner.Session, error)
	Delete(id string) error
}

// SessionHandlerConfig configures a SessionHandler.
type SessionHandlerConfig struct {
	Sessions SessionStore
	// MaxWait caps the ?wait parameter and the settle wait after a search.
	MaxWait time.Duration
	Logger  zerolog.Logger
}

// SessionHandler handles the planning session endpoints.
type SessionHandler struct {
	sessions SessionStore
	maxWait  time.Duration
	logger   zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(cfg SessionHandlerConfig) *SessionHandler {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	return &SessionHandler{
		sessions: cfg.Sessions,
		maxWait:  cfg.MaxWait,
		logger:   cfg.Logger,
	}
}

// CreateSession handles POST /v1/sessions.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var input models.CreateSessionRequest
	fields, err := decodeJSON(r, &input)
	if err != nil && !errors.Is(err, errEmptyBody) {
		response.BadRequest(w, r, err.Error(), fields)
		return
	}

	s := h.sessions.Create()
	ctx := r.Context()

	switch {
	case input.Origin != nil:
		err = s.SetOrigin(ctx, input.Origin.Coordinate())
	case input.Locate:
		_, err = s.LocateOrigin(ctx)
	}
	if err != nil {
		_ = h.sessions.Delete(s.ID())
		h.writeError(w, r, err)
		return
	}

	v, err := s.Snapshot(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, r, "/v1/sessions/"+s.ID(), toSession(v))
}

// GetSession handles GET /v1/sessions/{sessionId}. With ?wait=<duration>
// the response is delayed until the session settles or the wait elapses.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var wait time.Duration
	if raw := r.URL.Query().Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			response.BadRequest(w, r, "wait must be a non-negative duration such as 5s", []models.FieldError{
				{Field: "wait", Message: "is invalid", Code: "DURATION"},
			})
			return
		}
		wait = min(d, h.maxWait)
	}

	v, err := h.await(r.Context(), s, wait)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toSession(v))
}

// DeleteSession handles DELETE /v1/sessions/{sessionId}.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "sessionId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// SetOrigin handles PUT /v1/sessions/{sessionId}/origin.
func (h *SessionHandler) SetOrigin(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var input models.Point
	if fields, err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), fields)
		return
	}

	if err := s.SetOrigin(r.Context(), input.Coordinate()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSnapshot(w, r, s, http.StatusOK)
}

// Search handles POST /v1/sessions/{sessionId}/search. The response carries
// the candidate set when it loads within the wait bound, otherwise 202 with
// searching=true.
func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var input models.SearchRequest
	if fields, err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), fields)
		return
	}

	var radius float64
	if input.RadiusMeters != nil {
		radius = *input.RadiusMeters
	}
	if _, err := s.Search(r.Context(), input.Destination.Coordinate(), radius); err != nil {
		h.writeError(w, r, err)
		return
	}

	v, err := h.await(r.Context(), s, h.maxWait)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if v.Searching {
		status = http.StatusAccepted
	}
	response.JSON(w, r, status, toSession(v))
}

// Select handles PUT /v1/sessions/{sessionId}/selection. Routing continues
// in the background; clients poll with ?wait.
func (h *SessionHandler) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var input models.SelectionRequest
	if fields, err := decodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), fields)
		return
	}

	if err := s.Select(r.Context(), input.CandidateID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+s.ID()+"?wait=5s")
	h.writeSnapshot(w, r, s, http.StatusAccepted)
}

// ClearSelection handles DELETE /v1/sessions/{sessionId}/selection.
func (h *SessionHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.ClearSelection(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSnapshot(w, r, s, http.StatusOK)
}

// StartTrip handles POST /v1/sessions/{sessionId}/trips. Requires auth.
func (h *SessionHandler) StartTrip(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	t, _, err := s.StartTrip(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, r, fmt.Sprintf("/v1/sessions/%s/trips/%s", s.ID(), t.ID), toTrip(t))
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*planner.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return s, true
}

// await waits up to d for the session to settle and falls back to the
// current snapshot when it does not.
func (h *SessionHandler) await(ctx context.Context, s *planner.Session, d time.Duration) (planner.View, error) {
	if d <= 0 {
		return s.Snapshot(ctx)
	}
	waitCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := s.Await(waitCtx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return s.Snapshot(ctx)
	}
	return v, err
}

func (h *SessionHandler) writeSnapshot(w http.ResponseWriter, r *http.Request, s *planner.Session, status int) {
	v, err := s.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, status, toSession(v))
}

func (h *SessionHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := middleware.GetRequestID(r.Context())

	switch {
	case errors.Is(err, planner.ErrSessionNotFound), errors.Is(err, planner.ErrSessionClosed):
		response.NotFound(w, r, "session not found")
	case errors.Is(err, geo.ErrInvalidCoordinate):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, planner.ErrInvalidRadius):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "radiusMeters", Message: "is out of range", Code: "RANGE"},
		})
	case errors.Is(err, selection.ErrUnknownCandidate):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "candidateId", Message: "is not in the current candidate set", Code: "UNKNOWN_CANDIDATE"},
		})
	case errors.Is(err, selection.ErrMissingEndpoints):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, planner.ErrNotReady):
		response.Error(w, r, models.NewNotReady(traceID, err.Error()))
	case errors.Is(err, planner.ErrTripAlreadyStarted):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, planner.ErrLocationUnavailable):
		response.ServiceUnavailable(w, r, "current location is unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(w, r, "request timed out")
	default:
		h.logger.Error().Err(err).
			Str("request_id", traceID).
			Str("path", r.URL.Path).
			Msg("session request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
