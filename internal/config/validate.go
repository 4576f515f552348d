// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/tamzrod/modbus-client/internal/codec"
	"github.com/tamzrod/modbus-client/internal/status"
)

// Register tables a tag may read from.
const (
	TableHolding = "holding"
	TableInput   = "input"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
//
// Omitted client fields are legal here; Normalize fills them and the
// resulting ClientOptions are validated again by the client.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// CLIENT
	// ------------------------------------------------------------

	c := cfg.Client
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("client: host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("client: port must be in [1,65535], got %d", c.Port)
	}
	if c.ConnectTimeoutMs < 0 || c.RequestTimeoutMs < 0 || c.MaxRetryDelayMs < 0 {
		return fmt.Errorf("client: timeouts must not be negative")
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return fmt.Errorf("client: max_retries must be >= 0, got %d", *c.MaxRetries)
	}
	if c.ReconnectDelayMs != nil && *c.ReconnectDelayMs < 0 {
		return fmt.Errorf("client: reconnect_delay_ms must be >= 0, got %d", *c.ReconnectDelayMs)
	}
	if j := c.RetryJitterFactor; j != nil && !(*j >= 0 && *j <= 1) {
		return fmt.Errorf("client: retry_jitter_factor must be in [0,1], got %g", *j)
	}
	if _, err := codec.ParseEndianness(c.Endianness); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if _, err := codec.ParseWordOrder(c.WordOrder); err != nil {
		return fmt.Errorf("client: %w", err)
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	for i := 0; i < len(cfg.Device.Name); i++ {
		if cfg.Device.Name[i] > 0x7F {
			return fmt.Errorf("device: name must contain ASCII characters only")
		}
	}

	// ------------------------------------------------------------
	// POLL + TAGS
	// ------------------------------------------------------------

	if len(cfg.Tags) > 0 && cfg.Poll.IntervalMs <= 0 {
		return fmt.Errorf("poll: interval_ms must be > 0 when tags are defined")
	}
	if cfg.Poll.MaxGap < 0 {
		return fmt.Errorf("poll: max_gap must not be negative")
	}

	type span struct {
		start int
		end   int // inclusive
		owner string
	}
	var holding []span

	seen := make(map[string]struct{}, len(cfg.Tags))
	for i, t := range cfg.Tags {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("tag #%d: name is required", i)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("tag %q: duplicate name", t.Name)
		}
		seen[t.Name] = struct{}{}

		table := strings.ToLower(t.Table)
		if table != TableHolding && table != TableInput {
			return fmt.Errorf("tag %q: table must be %q or %q, got %q", t.Name, TableHolding, TableInput, t.Table)
		}

		dt, err := codec.ParseDataType(t.Type)
		if err != nil {
			return fmt.Errorf("tag %q: %w", t.Name, err)
		}

		words := TagWords(dt, t.Length)
		if dt == codec.TypeString && t.Length <= 0 {
			return fmt.Errorf("tag %q: string tags require length > 0", t.Name)
		}
		if words > 125 {
			return fmt.Errorf("tag %q: %d registers exceeds a single read", t.Name, words)
		}
		if int(t.Address)+words > 65536 {
			return fmt.Errorf("tag %q: address %d + %d registers exceeds the register space", t.Name, t.Address, words)
		}

		if table == TableHolding {
			holding = append(holding, span{
				start: int(t.Address),
				end:   int(t.Address) + words - 1,
				owner: t.Name,
			})
		}
	}

	// ------------------------------------------------------------
	// STATUS MIRROR (OPT-IN)
	// ------------------------------------------------------------

	if cfg.Status != nil {
		start := int(cfg.Status.Slot) * status.SlotsPerDevice
		end := start + status.SlotsPerDevice - 1
		if end > 65535 {
			return fmt.Errorf("status: slot %d exceeds the register space", cfg.Status.Slot)
		}

		// overlap check (inclusive)
		for _, s := range holding {
			if !(end < s.start || start > s.end) {
				return fmt.Errorf(
					"status: slot %d range=%d-%d overlaps tag %q range=%d-%d",
					cfg.Status.Slot, start, end, s.owner, s.start, s.end,
				)
			}
		}
	}

	// ------------------------------------------------------------
	// INGEST / LOG
	// ------------------------------------------------------------

	if cfg.Ingest != nil {
		if strings.TrimSpace(cfg.Ingest.Endpoint) == "" {
			return fmt.Errorf("ingest: endpoint is required")
		}
		if cfg.Ingest.TimeoutMs < 0 {
			return fmt.Errorf("ingest: timeout_ms must not be negative")
		}
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log: format must be console or json, got %q", cfg.Log.Format)
	}

	return nil
}

// TagWords is the register width of a tag of type dt.
func TagWords(dt codec.DataType, length int) int {
	if dt == codec.TypeString {
		return length
	}
	return dt.Words()
}
