package selection

import (
	"encoding/json"
	"fmt"
)

// State is the lifecycle state of the current selection.
type State int

const (
	// StateIdle means no spot is selected.
	StateIdle State = iota
	// StateRouting means a spot is selected and its legs are in flight.
	StateRouting
	// StateReady means both legs resolved and a cost breakdown exists.
	StateReady
	// StatePartial means at least one leg failed.
	StatePartial
)

var stateNames = map[State]string{
	StateIdle:    "IDLE",
	StateRouting: "ROUTING",
	StateReady:   "READY",
	StatePartial: "PARTIAL",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Settled reports whether no leg of the current epoch is still expected.
func (s State) Settled() bool {
	return s != StateRouting
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
