package handler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkest/parkest/internal/api/models"
	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
	"github.com/parkest/parkest/internal/planner"
	"github.com/parkest/parkest/internal/routing"
	"github.com/parkest/parkest/internal/selection"
	"github.com/parkest/parkest/pkg/polyline"
)

func TestNavigationURL(t *testing.T) {
	got := NavigationURL(
		geo.Coordinate{Lat: 48.15, Lon: 11.54},
		geo.Coordinate{Lat: 48.13561, Lon: 11.57369},
	)
	assert.Equal(t,
		"https://www.google.com/maps/dir/?api=1&destination=48.135610%2C11.573690&origin=48.150000%2C11.540000&travelmode=driving",
		got)
}

func TestToLeg(t *testing.T) {
	path := make([]geo.Coordinate, 600)
	for i := range path {
		path[i] = geo.Coordinate{Lat: 48.1 + float64(i)*1e-4, Lon: 11.5}
	}

	tests := []struct {
		name       string
		in         *selection.LegView
		wantStatus string
		wantPath   int
	}{
		{name: "pending", in: &selection.LegView{Kind: routing.LegCar, Pending: true}, wantStatus: models.LegStatusPending},
		{name: "failed", in: &selection.LegView{Kind: routing.LegWalk, Err: errors.New("upstream 503")}, wantStatus: models.LegStatusFailed},
		{
			name:       "long path is thinned",
			in:         &selection.LegView{Kind: routing.LegCar, Leg: &parking.RouteLeg{DurationSeconds: 90, Geometry: polyline.Encode(path)}},
			wantStatus: models.LegStatusOK,
			wantPath:   maxPathPoints,
		},
		{
			name:       "undecodable geometry keeps the leg",
			in:         &selection.LegView{Kind: routing.LegCar, Leg: &parking.RouteLeg{DurationSeconds: 90, Geometry: "_p~iF"}},
			wantStatus: models.LegStatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leg := toLeg(tt.in)
			require.NotNil(t, leg)
			assert.Equal(t, string(tt.in.Kind), leg.Kind)
			assert.Equal(t, tt.wantStatus, leg.Status)
			assert.Len(t, leg.Path, tt.wantPath)
			if tt.wantStatus == models.LegStatusFailed {
				assert.Equal(t, "route unavailable", leg.Error, "provider errors are not exposed")
			}
			if tt.wantStatus == models.LegStatusOK {
				require.NotNil(t, leg.DurationMinutes)
				assert.InDelta(t, 1.5, *leg.DurationMinutes, 1e-9)
			}
		})
	}

	assert.Nil(t, toLeg(nil))
}

func TestToSession_CandidateSet(t *testing.T) {
	v := planner.View{
		SessionID: "s-1",
		View: selection.View{
			State:              selection.StateIdle,
			Epoch:              3,
			CohortAverage:      parking.Float(50.0 / 3),
			RejectedCandidates: 1,
			Candidates: []selection.CandidateView{
				{Candidate: parking.Candidate{ID: "A", SearchDelayMinutes: parking.Float(20)}, Tier: parking.TierMedium},
			},
		},
	}

	got := toSession(v)
	assert.Equal(t, "s-1", got.ID)
	assert.Equal(t, 1, got.RejectedCandidates)
	require.NotNil(t, got.CohortAverageMinutes)
	assert.InDelta(t, 50.0/3, *got.CohortAverageMinutes, 1e-9)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "MEDIUM", got.Candidates[0].Tier)
	assert.Empty(t, got.SearchError)
	assert.Nil(t, got.Selection)
}
