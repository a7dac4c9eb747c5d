package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/parkest/parkest/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "parkest-api",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestProviderMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	m, err := telemetry.NewProviderMetrics()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Request(ctx, "openrouteservice", telemetry.OutcomeCanceled, 40*time.Millisecond)
	m.Request(context.Background(), "openrouteservice", telemetry.OutcomeOK, 120*time.Millisecond)
	m.CacheLookup(context.Background(), "openrouteservice", "hit")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if data, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[metric.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["parkest.provider.requests"])
	assert.Equal(t, int64(1), sums["parkest.route.cache.lookups"])
}

func TestProviderMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.ProviderMetrics
	assert.NotPanics(t, func() {
		m.Request(context.Background(), "occupancy-model", telemetry.OutcomeError, time.Second)
		m.CacheLookup(context.Background(), "openrouteservice", "miss")
	})
}

func TestEngineMetrics(t *testing.T) {
	ctx := context.Background()

	m, err := telemetry.NewEngineMetrics()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		m.LegResult(ctx, "CAR", "applied")
		m.CandidateSet(ctx, 12, nil)
		m.CandidateSet(ctx, 0, assert.AnError)
		m.TripStarted(ctx, true)
		m.SessionOpened(ctx)
		m.SessionClosed(ctx)
	})
}

func TestEngineMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.EngineMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.LegResult(ctx, "WALK", "stale")
		m.CandidateSet(ctx, 3, nil)
		m.TripStarted(ctx, false)
		m.SessionOpened(ctx)
		m.SessionClosed(ctx)
	})
}
