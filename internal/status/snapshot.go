// internal/status/snapshot.go
package status

import "time"

// Snapshot represents exactly what the status mirror is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	ClientID string
	State    State

	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
	Attempt        int

	LastError   string
	LastChange  time.Time
	LastSuccess time.Time
}
