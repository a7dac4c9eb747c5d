package candidate

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/parkest/parkest/internal/geo"
	"github.com/parkest/parkest/internal/parking"
)

// MunichSeed is a small set of public car parks around the Munich old town.
func MunichSeed() []parking.Candidate {
	return []parking.Candidate{
		{ID: "muc-001", Label: "Parkhaus Am Färbergraben", Address: "Färbergraben 5, 80331 München", Type: "garage", Capacity: 362, Coordinate: geo.Coordinate{Lat: 48.13702, Lon: 11.56987}},
		{ID: "muc-002", Label: "Tiefgarage Marienplatz", Address: "Rindermarkt 16, 80331 München", Type: "underground", Capacity: 310, Coordinate: geo.Coordinate{Lat: 48.13561, Lon: 11.57369}},
		{ID: "muc-003", Label: "Parkhaus Hofbräuhaus", Address: "Hochbrückenstraße 9, 80331 München", Type: "garage", Capacity: 400, Coordinate: geo.Coordinate{Lat: 48.13716, Lon: 11.58179}},
		{ID: "muc-004", Label: "Tiefgarage Oberanger", Address: "Oberanger 42, 80331 München", Type: "underground", Capacity: 182, Coordinate: geo.Coordinate{Lat: 48.13292, Lon: 11.56915}},
		{ID: "muc-005", Label: "Parkplatz Viktualienmarkt", Address: "Frauenstraße 3, 80469 München", Type: "surface", Capacity: 14, Coordinate: geo.Coordinate{Lat: 48.13339, Lon: 11.57705}},
		{ID: "muc-006", Label: "Tiefgarage Odeonsplatz", Address: "Salvatorplatz 2, 80333 München", Type: "underground", Capacity: 560, Coordinate: geo.Coordinate{Lat: 48.14259, Lon: 11.57561}},
	}
}

// seedRecord is the JSON shape of a seed file entry.
type seedRecord struct {
	ID                 string   `json:"id"`
	Label              string   `json:"label"`
	Address            string   `json:"address"`
	Type               string   `json:"parking_type"`
	Capacity           int      `json:"capacity"`
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
	SearchDelayMinutes *float64 `json:"search_delay_minutes"`
}

// DecodeSeed reads a JSON array of parking rows. Invalid rows fail the whole file.
func DecodeSeed(r io.Reader) ([]parking.Candidate, error) {
	var records []seedRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	spots := make([]parking.Candidate, 0, len(records))
	for i, rec := range records {
		c := parking.Candidate{
			ID:                 rec.ID,
			Label:              rec.Label,
			Address:            rec.Address,
			Type:               rec.Type,
			Capacity:           rec.Capacity,
			Coordinate:         geo.Coordinate{Lat: rec.Latitude, Lon: rec.Longitude},
			SearchDelayMinutes: rec.SearchDelayMinutes,
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("seed row %d: %w", i, err)
		}
		spots = append(spots, c)
	}
	return spots, nil
}
