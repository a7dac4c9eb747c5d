package models

// CreateSessionRequest is the body of POST /v1/sessions. Both fields are
// optional; Locate asks the server-side location provider for the origin.
// PUT /v1/sessions/{sessionId}/origin takes a bare Point.
type CreateSessionRequest struct {
	Origin *Point `json:"origin,omitempty"`
	Locate bool   `json:"locate,omitempty"`
}

// SearchRequest is the body of POST /v1/sessions/{sessionId}/search.
type SearchRequest struct {
	Destination  *Point   `json:"destination" validate:"required"`
	RadiusMeters *float64 `json:"radiusMeters,omitempty" validate:"omitempty,gt=0,lte=10000"`
}

// SelectionRequest is the body of PUT /v1/sessions/{sessionId}/selection.
type SelectionRequest struct {
	CandidateID string `json:"candidateId" validate:"required,max=128"`
}

// LegStatus values.
const (
	LegStatusPending = "PENDING"
	LegStatusOK      = "OK"
	LegStatusFailed  = "FAILED"
)

// Candidate is a parking spot as rendered on the map.
type Candidate struct {
	ID                 string   `json:"id"`
	Label              string   `json:"label,omitempty"`
	Address            string   `json:"address,omitempty"`
	Type               string   `json:"type,omitempty"`
	Capacity           int      `json:"capacity"`
	Location           Point    `json:"location"`
	SearchDelayMinutes *float64 `json:"searchDelayMinutes"`
	Tier               string   `json:"tier"`
	Color              string   `json:"color"`
}

// Leg is the state of one routed leg of the selection.
type Leg struct {
	Kind            string   `json:"kind"`
	Status          string   `json:"status"`
	DurationMinutes *float64 `json:"durationMinutes,omitempty"`
	DistanceMeters  *float64 `json:"distanceMeters,omitempty"`
	Path            []Point  `json:"path,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Breakdown is the trip cost of the selection, in minutes.
type Breakdown struct {
	CarMinutes    float64  `json:"carMinutes"`
	WalkMinutes   float64  `json:"walkMinutes"`
	SearchMinutes *float64 `json:"searchMinutes"`
	TotalMinutes  float64  `json:"totalMinutes"`
}

// Comparison compares the selection against the cohort average.
type Comparison struct {
	AverageMinutes int    `json:"averageMinutes"`
	DiffMinutes    int    `json:"diffMinutes"`
	Verdict        string `json:"verdict"`
}

// Selection is the selected spot with its legs and derived figures.
type Selection struct {
	Candidate        Candidate   `json:"candidate"`
	Car              *Leg        `json:"car,omitempty"`
	Walk             *Leg        `json:"walk,omitempty"`
	Breakdown        *Breakdown  `json:"breakdown,omitempty"`
	SavedMinutes     *int        `json:"savedMinutes,omitempty"`
	SearchComparison *Comparison `json:"searchComparison,omitempty"`
	TripComparison   *Comparison `json:"tripComparison,omitempty"`
}

// Session is the session snapshot returned by every session endpoint.
type Session struct {
	ID                   string      `json:"id"`
	State                string      `json:"state"`
	Epoch                uint64      `json:"epoch"`
	Searching            bool        `json:"searching"`
	SearchError          string      `json:"searchError,omitempty"`
	Origin               *Point      `json:"origin,omitempty"`
	Destination          *Point      `json:"destination,omitempty"`
	Candidates           []Candidate `json:"candidates"`
	CohortAverageMinutes *float64    `json:"cohortAverageMinutes"`
	RejectedCandidates   int         `json:"rejectedCandidates,omitempty"`
	Selection            *Selection  `json:"selection,omitempty"`
}

// TripResponse is returned when a trip is started.
type TripResponse struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	ParkingID     string    `json:"parkingId"`
	SavedMinutes  *int      `json:"savedMinutes"`
	TotalMinutes  float64   `json:"totalMinutes"`
	StartedAt     Timestamp `json:"startedAt"`
	NavigationURL string    `json:"navigationUrl"`
}
