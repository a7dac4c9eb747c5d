package openrouteservice

// orsRequest is the body of POST /v2/directions/{profile}.
type orsRequest struct {
	Coordinates  [][]float64 `json:"coordinates"` // [lon, lat] pairs
	Radiuses     []float64   `json:"radiuses,omitempty"`
	Preference   string      `json:"preference,omitempty"`
	Instructions bool        `json:"instructions"`
	Geometry     bool        `json:"geometry"`
	Units        string      `json:"units"`
}

type orsResponse struct {
	Routes []orsRoute `json:"routes"`
}

type orsRoute struct {
	Summary struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"summary"`
	Segments []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"segments,omitempty"`
	Geometry string `json:"geometry"`
}

type orsErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ORS internal error codes returned with HTTP 400/404.
const (
	orsErrorCodeInvalidParam  = 2003
	orsErrorCodeNotFound      = 2009
	orsErrorCodePointNotFound = 2010
)
