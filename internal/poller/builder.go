// internal/poller/builder.go
package poller

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-client/internal/client"
	"github.com/tamzrod/modbus-client/internal/codec"
	cfg "github.com/tamzrod/modbus-client/internal/config"
)

// Build constructs a Poller from a validated, normalized config.
// The client owns connection lifecycle; the poller only reads.
func Build(c cfg.Config, rc Client, cd codec.Codec, logger zerolog.Logger, obs Observer) (*Poller, error) {
	tags := make([]Tag, 0, len(c.Tags))
	for _, tc := range c.Tags {
		table, err := client.ParseTable(tc.Table)
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", tc.Name, err)
		}
		dt, err := codec.ParseDataType(tc.Type)
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", tc.Name, err)
		}
		tags = append(tags, Tag{
			Name:    tc.Name,
			Table:   table,
			Address: tc.Address,
			Type:    dt,
			Words:   cfg.TagWords(dt, tc.Length),
			Scale:   tc.Scale,
			Offset:  tc.Offset,
			Unit:    tc.Unit,
		})
	}

	return New(
		Config{
			Device:    c.Device.ID,
			MachineID: c.Device.MachineID,
			Interval:  time.Duration(c.Poll.IntervalMs) * time.Millisecond,
			MaxGap:    c.Poll.MaxGap,
			Codec:     cd,
			Tags:      tags,
		},
		rc,
		logger,
		obs,
	)
}
