package client

// State is the connection phase of a Client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingMapInfo
	StateInCharSelectOrCreate
	StateInGame
)

var stateStrings = map[State]string{
	StateDisconnected:         "disconnected",
	StateConnecting:           "connecting",
	StateAwaitingMapInfo:      "awaiting_map_info",
	StateInCharSelectOrCreate: "char_select",
	StateInGame:               "in_game",
}

// String returns the lowercase name of the state.
func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return "unknown"
}

// MarshalJSON serializes State as a JSON string (e.g. "in_game").
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
