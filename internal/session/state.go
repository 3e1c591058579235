package session

import "encoding/json"

type State int

const (
	Handshaking State = iota
	Active
	Closing
	Closed
)

var stateNames = map[State]string{
	Handshaking: "handshaking",
	Active:      "active",
	Closing:     "closing",
	Closed:      "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// IsTerminal reports whether the session has begun closing.
func (s State) IsTerminal() bool {
	return s == Closing || s == Closed
}

type Phase int

const (
	Idle Phase = iota
	Armed
	Satisfied
	Expired
)

var phaseNames = map[Phase]string{
	Idle:      "idle",
	Armed:     "armed",
	Satisfied: "satisfied",
	Expired:   "expired",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}
