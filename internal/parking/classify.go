package parking

import (
	"encoding/json"
	"fmt"
)

// Tier is a severity bucket derived from a predicted search delay.
type Tier int

const (
	TierUnknown Tier = iota
	TierLow
	TierMedium
	TierHigh
)

// Tier thresholds in minutes.
const (
	MediumDelayMinutes = 15.0
	HighDelayMinutes   = 30.0
)

// Classify maps a predicted search delay to a tier.
// A nil or non-finite delay is TierUnknown.
func Classify(delayMinutes *float64) Tier {
	d := normalize(delayMinutes)
	switch {
	case d == nil:
		return TierUnknown
	case *d < MediumDelayMinutes:
		return TierLow
	case *d < HighDelayMinutes:
		return TierMedium
	default:
		return TierHigh
	}
}

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "LOW"
	case TierMedium:
		return "MEDIUM"
	case TierHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// Color returns the marker colour the map uses for the tier.
func (t Tier) Color() string {
	switch t {
	case TierLow:
		return "#22c55e"
	case TierMedium:
		return "#f97316"
	case TierHigh:
		return "#ef4444"
	default:
		return "#9ca3af"
	}
}

// MarshalJSON encodes the tier as its name.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a tier name.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "UNKNOWN":
		*t = TierUnknown
	case "LOW":
		*t = TierLow
	case "MEDIUM":
		*t = TierMedium
	case "HIGH":
		*t = TierHigh
	default:
		return fmt.Errorf("unknown tier %q", s)
	}
	return nil
}
