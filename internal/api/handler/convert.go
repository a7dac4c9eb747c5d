package handler

import (
	"net/url"

	"github.com/parkest/parkest/internal/api/models"
	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
	"github.com/parkest/parkest/internal/planner"
	"github.com/parkest/parkest/internal/selection"
	"github.com/parkest/parkest/internal/trip"
	"github.com/parkest/parkest/pkg/polyline"
)

// maxPathPoints bounds the leg geometry sent to the map.
const maxPathPoints = 250

func toSession(v planner.View) models.Session {
	out := models.Session{
		ID:                   v.SessionID,
		State:                v.State.String(),
		Epoch:                v.Epoch,
		Searching:            v.Searching,
		Origin:               toPoint(v.Origin),
		Destination:          toPoint(v.Destination),
		Candidates:           make([]models.Candidate, 0, len(v.Candidates)),
		CohortAverageMinutes: v.CohortAverage,
		RejectedCandidates:   v.RejectedCandidates,
	}
	if v.SearchErr != nil {
		out.SearchError = "parking spots could not be loaded"
	}
	for _, c := range v.Candidates {
		out.Candidates = append(out.Candidates, toCandidate(c))
	}
	if v.Selected != nil {
		out.Selection = toSelection(v.View)
	}
	return out
}

func toSelection(v selection.View) *models.Selection {
	sel := &models.Selection{
		Candidate: toCandidate(*v.Selected),
		Car:       toLeg(v.Car),
		Walk:      toLeg(v.Walk),
	}
	if b := v.Breakdown; b != nil {
		sel.Breakdown = &models.Breakdown{
			CarMinutes:    b.CarMinutes,
			WalkMinutes:   b.WalkMinutes,
			SearchMinutes: b.SearchMinutes,
			TotalMinutes:  b.TotalMinutes,
		}
	}
	if v.Savings != nil {
		saved := v.Savings.SavedMinutes
		sel.SavedMinutes = &saved
	}
	if c := v.SearchComparison; c != nil {
		sel.SearchComparison = &models.Comparison{
			AverageMinutes: c.AverageMinutes,
			DiffMinutes:    c.DiffMinutes,
			Verdict:        string(c.Verdict),
		}
	}
	if c := v.TripComparison; c != nil {
		sel.TripComparison = &models.Comparison{
			AverageMinutes: c.AverageTotalMinutes,
			DiffMinutes:    c.DiffMinutes,
			Verdict:        string(c.Verdict),
		}
	}
	return sel
}

func toCandidate(c selection.CandidateView) models.Candidate {
	return models.Candidate{
		ID:                 c.ID,
		Label:              c.Label,
		Address:            c.Address,
		Type:               c.Type,
		Capacity:           c.Capacity,
		Location:           models.PointFrom(c.Coordinate),
		SearchDelayMinutes: c.SearchDelayMinutes,
		Tier:               c.Tier.String(),
		Color:              c.Tier.Color(),
	}
}

func toLeg(l *selection.LegView) *models.Leg {
	if l == nil {
		return nil
	}
	out := &models.Leg{Kind: string(l.Kind)}
	switch {
	case l.Pending:
		out.Status = models.LegStatusPending
	case l.Err != nil || l.Leg == nil:
		out.Status = models.LegStatusFailed
		out.Error = "route unavailable"
	default:
		out.Status = models.LegStatusOK
		out.DurationMinutes = parking.Float(l.Leg.Minutes())
		out.DistanceMeters = parking.Float(l.Leg.DistanceMeters)
		out.Path = toPath(l.Leg.Geometry)
	}
	return out
}

// toPath decodes leg geometry. A geometry that cannot be decoded is
// omitted; the leg itself stays usable.
func toPath(encoded string) []models.Point {
	coords, err := polyline.Decode(encoded)
	if err != nil || len(coords) == 0 {
		return nil
	}
	coords = polyline.Thin(coords, maxPathPoints)
	out := make([]models.Point, len(coords))
	for i, c := range coords {
		out[i] = models.PointFrom(c)
	}
	return out
}

func toPoint(c *geo.Coordinate) *models.Point {
	if c == nil {
		return nil
	}
	p := models.PointFrom(*c)
	return &p
}

func toTrip(t trip.Trip) models.TripResponse {
	return models.TripResponse{
		ID:            t.ID,
		SessionID:     t.SessionID,
		ParkingID:     t.ParkingID,
		SavedMinutes:  t.SavedMinutes,
		TotalMinutes:  t.TotalMinutes,
		StartedAt:     models.Timestamp(t.StartedAt),
		NavigationURL: NavigationURL(t.Origin, t.Spot),
	}
}

// NavigationURL returns a Google Maps driving directions link from origin
// to the parking spot.
func NavigationURL(origin, spot geo.Coordinate) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("origin", origin.String())
	q.Set("destination", spot.String())
	q.Set("travelmode", "driving")
	return "https://www.google.com/maps/dir/?" + q.Encode()
}
