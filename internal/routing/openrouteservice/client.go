// Package openrouteservice implements routing.Provider on the OpenRouteService
// directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/parkest/parkest/internal/provider/resilience"
	"github.com/parkest/parkest/internal/routing"
	"github.com/parkest/parkest/internal/telemetry"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultSnapRadiusMeters is how far a point may be from the road graph.
	// Parking garages and courtyard lots often sit well off the nearest street.
	DefaultSnapRadiusMeters = 500.0

	maxResponseBytes = 4 << 20
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL is the API base URL (default: DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client registered with Registry.
	HTTPClient HTTPDoer

	// Timeout is the per-attempt timeout of the default client (default: 10s).
	Timeout time.Duration

	// SnapRadiusMeters bounds how far endpoints are snapped onto the road graph
	// (default: DefaultSnapRadiusMeters).
	SnapRadiusMeters float64

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Metrics records request durations (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenRouteService API client.
type Client struct {
	apiKey     string
	baseURL    string
	snapRadius float64
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		snapRadius: cfg.SnapRadiusMeters,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.snapRadius <= 0 {
		c.snapRadius = DefaultSnapRadiusMeters
	}
	if c.httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = cfg.Timeout
		if clientCfg.Timeout == 0 {
			clientCfg.Timeout = DefaultTimeout
		}
		clientCfg.Registry = cfg.Registry
		clientCfg.Metrics = cfg.Metrics
		clientCfg.Logger = cfg.Logger
		c.httpClient = resilience.NewClient(clientCfg)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetDirections asks ORS for the fastest route between two points.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if err := routing.ValidateEndpoints(req.Origin, req.Destination); err != nil {
		return nil, providerError("INVALID_COORDINATES", "invalid route endpoints", err)
	}

	body, err := json.Marshal(orsRequest{
		Coordinates: [][]float64{
			{req.Origin.Lon, req.Origin.Lat},
			{req.Destination.Lon, req.Destination.Lat},
		},
		Radiuses:   []float64{c.snapRadius, c.snapRadius},
		Preference: "fastest",
		Geometry:   true,
		Units:      "m",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, req.Profile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json, application/geo+json")

	c.logger.Debug().
		Str("profile", string(req.Profile)).
		Str("origin", req.Origin.String()).
		Str("destination", req.Destination.String()).
		Msg("requesting directions from ORS")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, providerError("REQUEST_FAILED", "failed to reach routing provider",
			fmt.Errorf("%w: %w", routing.ErrProviderUnavailable, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mapErrorResponse(resp.StatusCode, respBody)
	}

	var orsResp orsResponse
	if err := json.Unmarshal(respBody, &orsResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return toDirectionsResponse(&orsResp), nil
}

func providerError(code, message string, err error) *routing.Error {
	return &routing.Error{Provider: ProviderName, Code: code, Message: message, Err: err}
}

// mapErrorResponse maps an ORS error answer to a routing error. Unroutable
// points are reported as ErrNoRouteFound so the leg fails without retries.
func mapErrorResponse(status int, body []byte) error {
	var orsErr orsErrorResponse
	if err := json.Unmarshal(body, &orsErr); err != nil {
		return providerError(fmt.Sprintf("HTTP_%d", status),
			fmt.Sprintf("routing provider returned status %d", status), routing.ErrProviderUnavailable)
	}
	msg := orsErr.Error.Message

	switch {
	case status == http.StatusTooManyRequests:
		return providerError("RATE_LIMIT", "API rate limit exceeded", routing.ErrRateLimitExceeded)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return providerError("FORBIDDEN", "API access denied - check API key configuration", routing.ErrProviderUnavailable)
	case status == http.StatusNotFound,
		orsErr.Error.Code == orsErrorCodeNotFound,
		orsErr.Error.Code == orsErrorCodePointNotFound:
		if msg == "" {
			msg = "no route found between the given points"
		}
		return providerError("NO_ROUTE", msg, routing.ErrNoRouteFound)
	case status == http.StatusBadRequest && orsErr.Error.Code == orsErrorCodeInvalidParam:
		return providerError("INVALID_PARAMETER", msg, routing.ErrInvalidCoordinates)
	case status == http.StatusBadRequest:
		return providerError("BAD_REQUEST", msg, routing.ErrInvalidCoordinates)
	case status >= http.StatusInternalServerError:
		return providerError(fmt.Sprintf("SERVER_%d", status), "routing provider is temporarily unavailable", routing.ErrProviderUnavailable)
	default:
		return providerError(fmt.Sprintf("HTTP_%d", status), msg, routing.ErrProviderUnavailable)
	}
}

// toDirectionsResponse sums durations and distances over all segments; the
// summary is used only when the provider omitted segments.
func toDirectionsResponse(resp *orsResponse) *routing.DirectionsResponse {
	routes := make([]routing.Route, 0, len(resp.Routes))
	for _, r := range resp.Routes {
		route := routing.Route{
			GeometryPolyline: r.Geometry,
			DistanceMeters:   r.Summary.Distance,
			DurationSeconds:  r.Summary.Duration,
		}
		if len(r.Segments) > 0 {
			route.DistanceMeters, route.DurationSeconds = 0, 0
			for _, seg := range r.Segments {
				route.DistanceMeters += seg.Distance
				route.DurationSeconds += seg.Duration
			}
		}
		routes = append(routes, route)
	}

	return &routing.DirectionsResponse{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}
}
