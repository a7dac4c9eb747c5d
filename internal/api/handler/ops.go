// Package handler provides HTTP handlers for the Parkest API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/parkest/parkest/internal/api/models"
	"github.com/parkest/parkest/internal/api/response"
	"github.com/parkest/parkest/internal/provider/resilience"
)

// CheckFunc reports whether a subsystem is usable.
type CheckFunc func(ctx context.Context) error

// OpsHandlerConfig configures an OpsHandler.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string

	// Registry holds the external providers whose circuit state is reported.
	Registry *resilience.Registry

	// Checks are readiness checks keyed by subsystem name.
	Checks map[string]CheckFunc

	// Sessions reports the number of live planning sessions.
	Sessions interface{ Len() int }

	CheckTimeout time.Duration
	Now          func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsHandlerConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 2 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	details := map[string]interface{}{
		"version":   h.cfg.Version,
		"buildTime": h.cfg.BuildTime,
	}
	if h.cfg.Sessions != nil {
		details["sessions"] = h.cfg.Sessions.Len()
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(h.cfg.Now()),
		Details: details,
	})
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. It fails when
// any subsystem check fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.checkSubsystems(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.cfg.Now()),
	}
	status := http.StatusOK
	for _, s := range subsystems {
		if s.Status == models.HealthStatusFail {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"failing": s.Name}
			status = http.StatusServiceUnavailable
			break
		}
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.cfg.Now()),
		Subsystems: h.checkSubsystems(r.Context()),
		Providers:  h.providerStatuses(),
	}
	if h.cfg.Sessions != nil {
		status.ActiveSessions = h.cfg.Sessions.Len()
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		if p.Status != models.HealthStatusOK {
			status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, p.Provider+"-degraded")
			// Provider outages degrade results but never fail the service.
			status.Status = worst(status.Status, models.HealthStatusDegraded)
		}
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) checkSubsystems(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.cfg.Checks))
	for name := range h.cfg.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, h.cfg.CheckTimeout)
		err := h.cfg.Checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.cfg.Registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.cfg.Registry.All()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		ps := models.ProviderStatus{
			Provider:            ph.Name,
			Status:              models.HealthStatusOK,
			Circuit:             models.CircuitClosed,
			ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
			LastSuccessAt:       toTimestamp(ph.LastSuccessAt),
			LastFailureAt:       toTimestamp(ph.LastFailureAt),
		}
		if !ph.StateSince.IsZero() {
			ps.CircuitSince = toTimestamp(&ph.StateSince)
		}
		switch ph.Level() {
		case resilience.LevelDown:
			ps.Status = models.HealthStatusFail
			ps.Circuit = models.CircuitOpen
		case resilience.LevelDegraded:
			ps.Status = models.HealthStatusDegraded
			ps.Circuit = models.CircuitHalfOpen
		}
		if ph.LastError != "" {
			msg := ph.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

func toTimestamp(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}

var healthRank = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if healthRank[b] > healthRank[a] {
		return b
	}
	return a
}
