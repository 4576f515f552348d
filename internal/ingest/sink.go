// internal/ingest/sink.go
package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-client/internal/poller"
	"github.com/tamzrod/modbus-client/internal/status"
)

// Batch is one delivery unit: the readings of one poll cycle and the
// client health at the time it finished.
type Batch struct {
	Device    string           `json:"device"`
	MachineID string           `json:"machine_id,omitempty"`
	At        time.Time        `json:"at"`
	Readings  []poller.Reading `json:"readings"`
	Error     string           `json:"error,omitempty"`
	Status    *StatusInfo      `json:"status,omitempty"`
}

// StatusInfo is the wire form of a status.Snapshot.
type StatusInfo struct {
	ClientID       string `json:"client_id"`
	State          string `json:"state"`
	Health         uint16 `json:"health"`
	LastErrorCode  uint16 `json:"last_error_code"`
	SecondsInError uint16 `json:"seconds_in_error"`
	LastError      string `json:"last_error,omitempty"`
}

// NewBatch flattens a poll result and the matching health snapshot.
func NewBatch(res poller.PollResult, s status.Snapshot) Batch {
	b := Batch{
		Device:    res.Device,
		MachineID: res.MachineID,
		At:        res.At.UTC(),
		Readings:  res.Readings,
		Status: &StatusInfo{
			ClientID:       s.ClientID,
			State:          s.State.String(),
			Health:         s.Health,
			LastErrorCode:  s.LastErrorCode,
			SecondsInError: s.SecondsInError,
			LastError:      s.LastError,
		},
	}
	if res.Err != nil {
		b.Error = res.Err.Error()
	}
	return b
}

// Sink delivers batches downstream. Implementations must be safe for use
// by one goroutine at a time; the bridge never calls Deliver concurrently.
type Sink interface {
	Deliver(ctx context.Context, b Batch) error
	Close() error
}

// LogSink writes each batch as a structured log line. Used when no ingest
// endpoint is configured.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "sink").Logger()}
}

func (s *LogSink) Deliver(_ context.Context, b Batch) error {
	ev := s.logger.Info()
	if b.Error != "" {
		ev = s.logger.Warn().Str("error", b.Error)
	}

	arr := zerolog.Arr()
	for _, r := range b.Readings {
		arr.Dict(zerolog.Dict().
			Str("tag", r.Tag).
			Str("value", r.Value.String()).
			Str("quality", string(r.Quality)))
	}

	ev.Str("device", b.Device).
		Time("at", b.At).
		Array("readings", arr).
		Msg("batch")
	return nil
}

func (s *LogSink) Close() error { return nil }
