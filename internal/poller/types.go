// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/modbus-client/internal/client"
	"github.com/tamzrod/modbus-client/internal/codec"
)

// Tag maps one named reading onto a register range.
type Tag struct {
	Name    string
	Table   client.Table
	Address uint16
	Type    codec.DataType
	Words   int // register width; for strings the configured length

	// engineering = raw*Scale + Offset for numeric types
	Scale  float64
	Offset float64
	Unit   string
}

func (t Tag) end() int { return int(t.Address) + t.Words }

// scaled reports whether the tag converts raw values.
func (t Tag) scaled() bool { return (t.Scale != 0 && t.Scale != 1) || t.Offset != 0 }

// ReadBlock describes one contiguous register read covering several tags.
type ReadBlock struct {
	Table    client.Table
	Address  uint16
	Quantity uint16
	Tags     []int // indices into Config.Tags
}

// Quality grades a reading.
type Quality string

const (
	QualityGood         Quality = "good"
	QualityBad          Quality = "bad"
	QualityTimeout      Quality = "timeout"
	QualityNotConnected Quality = "not_connected"
)

// Reading is one tag value handed downstream.
type Reading struct {
	Device  string      `json:"device"`
	Tag     string      `json:"tag"`
	Table   string      `json:"table"`
	Address uint16      `json:"address"`
	Value   codec.Value `json:"value"`
	Unit    string      `json:"unit,omitempty"`
	Quality Quality     `json:"quality"`
	At      time.Time   `json:"at"`
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	Device    string
	MachineID string
	At        time.Time
	Took      time.Duration

	Readings []Reading
	Err      error // non-nil when at least one block failed
}

// Good counts readings with good quality.
func (r PollResult) Good() int {
	n := 0
	for _, rd := range r.Readings {
		if rd.Quality == QualityGood {
			n++
		}
	}
	return n
}
