// internal/status/event.go
package status

import (
	"encoding/json"
	"time"
)

// Event describes one state change of a client.
//
// Attempt and Delay are set on Reconnecting events: Attempt counts from 1
// and Delay is the backoff slept before the attempt.
type Event struct {
	ClientID string
	Previous State
	Current  State
	Err      error
	Attempt  int
	Delay    time.Duration
	At       time.Time
}

type eventJSON struct {
	ClientID string  `json:"client_id"`
	Previous string  `json:"previous"`
	Current  string  `json:"current"`
	Error    string  `json:"error,omitempty"`
	Attempt  int     `json:"attempt,omitempty"`
	DelayMs  float64 `json:"delay_ms,omitempty"`
	At       string  `json:"at"`
}

// MarshalJSON renders states by name and the error as text.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		ClientID: e.ClientID,
		Previous: e.Previous.String(),
		Current:  e.Current.String(),
		Attempt:  e.Attempt,
		DelayMs:  float64(e.Delay) / float64(time.Millisecond),
		At:       e.At.UTC().Format(time.RFC3339Nano),
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return json.Marshal(out)
}
