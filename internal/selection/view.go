package selection

import (
	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
	"github.com/parkest/parkest/internal/routing"
)

// CandidateView is a candidate with its recommendation tier.
type CandidateView struct {
	parking.Candidate
	Tier parking.Tier
}

// LegView is the presentation state of one leg.
type LegView struct {
	Kind    routing.LegKind
	Pending bool
	Leg     *parking.RouteLeg
	Err     error
}

// View is an immutable snapshot of the controller.
type View struct {
	State       State
	Epoch       uint64
	Origin      *geo.Coordinate
	Destination *geo.Coordinate

	Candidates    []CandidateView
	CohortAverage *float64

	// RejectedCandidates counts candidates of the loaded set that failed validation.
	RejectedCandidates int

	Selected *CandidateView
	Car      *LegView
	Walk     *LegView

	// Breakdown is set only when both legs resolved.
	Breakdown        *parking.CostBreakdown
	Savings          *parking.SavingsResult
	SearchComparison *parking.SearchComparison
	TripComparison   *parking.TripComparison
}

// Snapshot returns the current view. The result shares no memory with the controller.
func (c *Controller) Snapshot() View {
	v := View{
		State:              c.state,
		Epoch:              c.epoch,
		Origin:             copyCoordinate(c.origin),
		Destination:        copyCoordinate(c.destination),
		CohortAverage:      copyFloat(c.average),
		RejectedCandidates: c.rejected,
		Candidates:         make([]CandidateView, 0, len(c.candidates)),
	}

	for _, cand := range c.candidates {
		v.Candidates = append(v.Candidates, candidateView(cand))
	}

	if c.selected == nil {
		return v
	}

	sel := candidateView(*c.selected)
	v.Selected = &sel
	v.Car = legView(routing.LegCar, c.car)
	v.Walk = legView(routing.LegWalk, c.walk)
	v.SearchComparison = parking.CompareSearch(sel.SearchDelayMinutes, c.average)

	if c.state == StateReady {
		b := parking.Combine(*c.car.Leg, *c.walk.Leg, sel.SearchDelayMinutes)
		v.Breakdown = &b
		v.Savings = parking.Savings(b, c.average)
		v.TripComparison = parking.CompareTrip(b, c.average)
	}
	return v
}

func candidateView(c parking.Candidate) CandidateView {
	c.SearchDelayMinutes = copyFloat(c.SearchDelayMinutes)
	return CandidateView{Candidate: c, Tier: parking.Classify(c.SearchDelayMinutes)}
}

func legView(kind routing.LegKind, r *routing.LegResult) *LegView {
	if r == nil {
		return &LegView{Kind: kind, Pending: true}
	}
	lv := &LegView{Kind: kind, Err: r.Err}
	if r.Leg != nil {
		leg := *r.Leg
		lv.Leg = &leg
	}
	return lv
}

func copyCoordinate(c *geo.Coordinate) *geo.Coordinate {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	out := *f
	return &out
}
