package estimate_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkest/parkest/internal/estimate"
	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
)

var lot = geo.Coordinate{Lat: 48.13974710476859, Lon: 11.540635988637927}

// Monday 2024-06-03 and the following weekend.
func at(day, hour int) func() time.Time {
	return func() time.Time { return time.Date(2024, 6, day, hour, 15, 0, 0, time.UTC) }
}

func TestDayTypeOf(t *testing.T) {
	assert.Equal(t, estimate.Weekday, estimate.DayTypeOf(at(3, 9)()))
	assert.Equal(t, estimate.Weekday, estimate.DayTypeOf(at(7, 9)()))
	assert.Equal(t, estimate.Saturday, estimate.DayTypeOf(at(8, 9)()))
	assert.Equal(t, estimate.Sunday, estimate.DayTypeOf(at(9, 9)()))
}

func TestHourBucketOf(t *testing.T) {
	tests := map[int]estimate.HourBucket{
		0: "20-06", 5: "20-06", 6: "06-07", 7: "07-08", 8: "08-09", 9: "09-10",
		10: "10-12", 11: "10-12", 12: "12-14", 15: "14-16", 17: "16-18", 19: "18-20",
		20: "20-06", 23: "20-06",
	}
	for hour, want := range tests {
		assert.Equal(t, want, estimate.HourBucketOf(hour), "hour %d", hour)
	}
}

func TestSearchMinutes(t *testing.T) {
	tests := []struct {
		name      string
		occupancy float64
		capacity  int
		want      float64
	}{
		{"empty lot", 0, 100, 2},
		{"green midpoint", 0.375, 100, 3.2},
		{"red midpoint", 0.95, 100, 40},
		{"full lot is capped", 1, 100, 60},
		{"small lot penalty", 0.5, 10, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := estimate.SearchMinutes(tt.occupancy, tt.capacity)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := estimate.SearchMinutes(0.5, 0)
	assert.ErrorIs(t, err, estimate.ErrNoCapacity)
	_, err = estimate.SearchMinutes(1.2, 10)
	assert.ErrorIs(t, err, estimate.ErrInvalidOccupancy)
	_, err = estimate.SearchMinutes(math.NaN(), 10)
	assert.ErrorIs(t, err, estimate.ErrInvalidOccupancy)
}

func TestOccupancyModel_Estimate(t *testing.T) {
	tests := []struct {
		name string
		now  func() time.Time
		tier parking.Tier
	}{
		{"weekday rush hour is red", at(3, 8), parking.TierHigh},
		{"weekday evening is green", at(3, 21), parking.TierLow},
		{"saturday afternoon is red", at(8, 13), parking.TierHigh},
		{"sunday morning is green", at(9, 9), parking.TierLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := estimate.NewOccupancyModel(estimate.OccupancyConfig{Now: tt.now, Location: time.UTC})
			minutes, err := m.Estimate(context.Background(), 150, lot)
			require.NoError(t, err)
			assert.Equal(t, tt.tier, parking.Classify(&minutes))
		})
	}
}

func TestOccupancyModel_CustomPattern(t *testing.T) {
	pattern := estimate.Pattern{estimate.Sunday: {"20-06": estimate.BandYellow}}
	m := estimate.NewOccupancyModel(estimate.OccupancyConfig{Pattern: pattern, Now: at(9, 22), Location: time.UTC})

	minutes, err := m.Estimate(context.Background(), 100, lot)
	require.NoError(t, err)
	assert.InDelta(t, 2/0.175, minutes, 1e-9)
}

func TestOccupancyModel_Errors(t *testing.T) {
	m := estimate.NewOccupancyModel(estimate.OccupancyConfig{Now: at(3, 8)})

	_, err := m.Estimate(context.Background(), 0, lot)
	assert.ErrorIs(t, err, estimate.ErrNoCapacity)

	_, err = m.Estimate(context.Background(), 10, geo.Coordinate{Lat: 91})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

type mockHTTPClient struct {
	client *http.Client
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.client.Do(req)
}

func TestHTTPModel_Estimate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SA", body["day_type"])
		assert.EqualValues(t, 14, body["hour"])
		assert.EqualValues(t, 10, body["total_capacity"])
		assert.InDelta(t, lot.Lat, body["latitude"], 1e-9)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"occupancy_rate": 0.9}`))
	}))
	defer server.Close()

	m := estimate.NewHTTPModel(estimate.HTTPConfig{
		BaseURL:    server.URL,
		HTTPClient: &mockHTTPClient{client: server.Client()},
		Now:        at(8, 14),
		Location:   time.UTC,
		Logger:     zerolog.Nop(),
	})

	minutes, err := m.Estimate(context.Background(), 10, lot)
	require.NoError(t, err)
	assert.InDelta(t, 2/0.1*1.25, minutes, 1e-9)
}

func TestHTTPModel_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"missing rate", http.StatusOK, `{}`},
		{"invalid rate", http.StatusOK, `{"occupancy_rate": 3}`},
		{"not json", http.StatusOK, `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			m := estimate.NewHTTPModel(estimate.HTTPConfig{
				BaseURL:    server.URL,
				HTTPClient: &mockHTTPClient{client: server.Client()},
			})
			_, err := m.Estimate(context.Background(), 100, lot)
			assert.Error(t, err)
		})
	}
}

// fakeEstimator fails for odd capacities and tracks peak concurrency.
type fakeEstimator struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
	mu       sync.Mutex
	seen     []int
}

func (f *fakeEstimator) Estimate(_ context.Context, capacity int, _ geo.Coordinate) (float64, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)

	f.mu.Lock()
	f.seen = append(f.seen, capacity)
	f.mu.Unlock()

	if capacity%2 == 1 {
		return 0, errors.New("model unavailable")
	}
	return float64(capacity) / 10, nil
}

func TestService_EstimateAll(t *testing.T) {
	est := &fakeEstimator{}
	svc := estimate.NewService(estimate.ServiceConfig{Estimator: est, Concurrency: 2})

	in := []parking.Candidate{
		{ID: "a", Coordinate: lot, Capacity: 100},
		{ID: "b", Coordinate: lot, Capacity: 101},
		{ID: "c", Coordinate: lot, Capacity: 300, SearchDelayMinutes: parking.Float(7)},
		{ID: "d", Coordinate: lot, Capacity: 200},
		{ID: "e", Coordinate: lot, Capacity: 40},
	}
	out := svc.EstimateAll(context.Background(), in)

	require.Len(t, out, 5)
	require.NotNil(t, out[0].SearchDelayMinutes)
	assert.InDelta(t, 10, *out[0].SearchDelayMinutes, 1e-9)
	assert.Nil(t, out[1].SearchDelayMinutes, "failed estimate stays unknown")
	assert.InDelta(t, 7, *out[2].SearchDelayMinutes, 1e-9, "existing delay is kept")
	assert.InDelta(t, 20, *out[3].SearchDelayMinutes, 1e-9)
	assert.InDelta(t, 4, *out[4].SearchDelayMinutes, 1e-9)

	assert.Equal(t, int32(4), est.calls.Load())
	assert.LessOrEqual(t, est.peak.Load(), int32(2))
	for _, c := range in {
		if c.ID != "c" {
			assert.Nil(t, c.SearchDelayMinutes, "input is not modified")
		}
	}
}

func TestService_EstimateAll_Empty(t *testing.T) {
	svc := estimate.NewService(estimate.ServiceConfig{Estimator: &fakeEstimator{}})
	assert.Empty(t, svc.EstimateAll(context.Background(), nil))
}
