package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const providerMeterName = "github.com/parkest/parkest/internal/provider"

// Provider request outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeCanceled    = "canceled"
)

// ProviderMetrics holds the instruments for routing and occupancy provider calls.
// A nil *ProviderMetrics is valid and records nothing.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requests        metric.Int64Counter
	cacheLookups    metric.Int64Counter
}

// NewProviderMetrics creates the provider instruments on the global meter provider.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(providerMeterName)

	requestDuration, err := meter.Float64Histogram(
		"parkest.provider.request.duration",
		metric.WithDescription("Duration of provider calls including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requests, err := meter.Int64Counter(
		"parkest.provider.requests",
		metric.WithDescription("Provider calls by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"parkest.route.cache.lookups",
		metric.WithDescription("Route cache lookups by result (hit, miss, stale)"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requests:        requests,
		cacheLookups:    cacheLookups,
	}, nil
}

// Request records one provider call.
func (m *ProviderMetrics) Request(ctx context.Context, provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("outcome", outcome),
	)
	// Canceled calls may carry a done context; record against a live one.
	ctx = context.WithoutCancel(ctx)
	m.requestDuration.Record(ctx, d.Seconds(), attrs)
	m.requests.Add(ctx, 1, attrs)
}

// CacheLookup records a route cache lookup. result is "hit", "miss" or "stale".
func (m *ProviderMetrics) CacheLookup(ctx context.Context, provider, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("result", result),
	))
}
