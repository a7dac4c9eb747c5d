package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const engineMeterName = "github.com/parkest/parkest/internal/planner"

// EngineMetrics holds the instruments for the planning engine.
// A nil *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	legResults       metric.Int64Counter
	candidateSets    metric.Int64Counter
	candidatesPerSet metric.Int64Histogram
	trips            metric.Int64Counter
	activeSessions   metric.Int64UpDownCounter
}

// NewEngineMetrics creates the engine instruments on the global meter provider.
func NewEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter(engineMeterName)

	legResults, err := meter.Int64Counter(
		"parkest.leg.results",
		metric.WithDescription("Routed leg results by kind and outcome (applied, stale, failed)"),
		metric.WithUnit("{result}"),
	)
	if err != nil {
		return nil, err
	}

	candidateSets, err := meter.Int64Counter(
		"parkest.candidate.sets",
		metric.WithDescription("Candidate sets fetched, by outcome"),
		metric.WithUnit("{set}"),
	)
	if err != nil {
		return nil, err
	}

	candidatesPerSet, err := meter.Int64Histogram(
		"parkest.candidate.set.size",
		metric.WithDescription("Number of candidates returned per search"),
		metric.WithUnit("{candidate}"),
	)
	if err != nil {
		return nil, err
	}

	trips, err := meter.Int64Counter(
		"parkest.trips.started",
		metric.WithDescription("Trips started"),
		metric.WithUnit("{trip}"),
	)
	if err != nil {
		return nil, err
	}

	activeSessions, err := meter.Int64UpDownCounter(
		"parkest.sessions.active",
		metric.WithDescription("Number of live planning sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		legResults:       legResults,
		candidateSets:    candidateSets,
		candidatesPerSet: candidatesPerSet,
		trips:            trips,
		activeSessions:   activeSessions,
	}, nil
}

// LegResult counts one leg result. outcome is "applied", "stale" or "failed".
func (m *EngineMetrics) LegResult(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	m.legResults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("leg", kind),
		attribute.String("outcome", outcome),
	))
}

// CandidateSet records a completed candidate search.
func (m *EngineMetrics) CandidateSet(ctx context.Context, size int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.candidateSets.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if err == nil {
		m.candidatesPerSet.Record(ctx, int64(size))
	}
}

// TripStarted counts a started trip.
func (m *EngineMetrics) TripStarted(ctx context.Context, hasSavings bool) {
	if m == nil {
		return
	}
	m.trips.Add(ctx, 1, metric.WithAttributes(attribute.Bool("has_savings", hasSavings)))
}

// SessionOpened increments the live session gauge.
func (m *EngineMetrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// SessionClosed decrements the live session gauge.
func (m *EngineMetrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}
