// internal/status/state.go
package status

import "fmt"

// State is the connection lifecycle of a client.
type State uint8

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Faulted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// transitions lists every legal edge. Disconnected is reachable from
// anywhere and handled in Transition.
var transitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Connected, Faulted},
	Connected:    {Reconnecting, Faulted},
	Reconnecting: {Reconnecting, Connected, Faulted},
	Faulted:      {Connecting, Reconnecting},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	if to == Disconnected {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition returns an error for illegal edges.
func Transition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("status: illegal transition %s -> %s", from, to)
	}
	return nil
}

// Health maps a lifecycle state onto the health code of the status block.
func (s State) Health() uint16 {
	switch s {
	case Connected:
		return HealthOK
	case Reconnecting:
		return HealthStale
	case Faulted:
		return HealthError
	case Disconnected:
		return HealthDisabled
	default:
		return HealthUnknown
	}
}
