package estimate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/provider/resilience"
	"github.com/parkest/parkest/internal/telemetry"
)

// HTTPModelName identifies the remote model in the provider registry.
const HTTPModelName = "occupancy-model"

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPConfig holds configuration for the remote occupancy model client.
type HTTPConfig struct {
	// BaseURL of the model service (required).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (default: 5 seconds).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Metrics records request durations (optional).
	Metrics *telemetry.ProviderMetrics

	// Location is the time zone the model was trained in (default: time.Local).
	Location *time.Location

	// Now returns the current time (default: time.Now).
	Now func() time.Time

	// Logger for client operations.
	Logger zerolog.Logger
}

// HTTPModel asks a remote regression model for the occupancy rate of a lot
// and converts it into search minutes.
type HTTPModel struct {
	baseURL    string
	httpClient HTTPDoer
	location   *time.Location
	now        func() time.Time
	logger     zerolog.Logger
}

type predictRequest struct {
	DayType       DayType `json:"day_type"`
	Hour          int     `json:"hour"`
	TotalCapacity int     `json:"total_capacity"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

type predictResponse struct {
	OccupancyRate *float64 `json:"occupancy_rate"`
}

// NewHTTPModel creates a remote delay estimator.
func NewHTTPModel(cfg HTTPConfig) *HTTPModel {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(HTTPModelName)
		clientCfg.Timeout = timeout
		clientCfg.MaxRetries = 2
		clientCfg.Registry = cfg.Registry
		clientCfg.Metrics = cfg.Metrics
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	m := &HTTPModel{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		location:   cfg.Location,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
	if m.location == nil {
		m.location = time.Local
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Estimate returns the expected search minutes for a lot of the given capacity.
func (m *HTTPModel) Estimate(ctx context.Context, capacity int, at geo.Coordinate) (float64, error) {
	if err := at.Validate(); err != nil {
		return 0, err
	}
	if capacity <= 0 {
		return 0, ErrNoCapacity
	}

	now := m.now().In(m.location)
	body, err := json.Marshal(predictRequest{
		DayType:       DayTypeOf(now),
		Hour:          now.Hour(),
		TotalCapacity: capacity,
		Latitude:      at.Lat,
		Longitude:     at.Lon,
	})
	if err != nil {
		return 0, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling occupancy model: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("occupancy model returned status %d", resp.StatusCode)
	}

	var pr predictResponse
	if err := json.Unmarshal(respBody, &pr); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}
	if pr.OccupancyRate == nil {
		return 0, fmt.Errorf("%w: missing occupancy_rate", ErrInvalidOccupancy)
	}

	m.logger.Debug().
		Float64("occupancy_rate", *pr.OccupancyRate).
		Int("capacity", capacity).
		Msg("received occupancy prediction")

	return SearchMinutes(*pr.OccupancyRate, capacity)
}
