// internal/config/validate_test.go
package config

import (
	"strings"
	"testing"
)

// helper to build a minimal valid config quickly
func base(tags ...TagConfig) *Config {
	return &Config{
		Client: ClientConfig{Host: "127.0.0.1"},
		Poll:   PollConfig{IntervalMs: 1000},
		Tags:   tags,
	}
}

func tag(name, table string, addr uint16, typ string) TagConfig {
	return TagConfig{Name: name, Table: table, Address: addr, Type: typ}
}

// ---- tests ----

func TestValidate_Minimal(t *testing.T) {
	if err := Validate(base()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_HostRequired(t *testing.T) {
	cfg := base()
	cfg.Client.Host = " "

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected host error, got nil")
	}
}

func TestValidate_BadEnums(t *testing.T) {
	cfg := base()
	cfg.Client.WordOrder = "ACBD"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected word order error, got nil")
	}

	cfg = base()
	cfg.Client.Endianness = "middle"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected endianness error, got nil")
	}
}

func TestValidate_JitterOutOfRange(t *testing.T) {
	cfg := base()
	j := 1.5
	cfg.Client.RetryJitterFactor = &j

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "retry_jitter_factor") {
		t.Fatalf("expected retry_jitter_factor error, got %v", err)
	}
}

func TestValidate_DuplicateTagName(t *testing.T) {
	cfg := base(
		tag("temp", "holding", 0, "float32"),
		tag("temp", "input", 10, "int16"),
	)

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected duplicate error, got nil")
	}
}

func TestValidate_StringNeedsLength(t *testing.T) {
	cfg := base(tag("serial", "holding", 0, "string"))
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected length error, got nil")
	}

	cfg.Tags[0].Length = 8
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_TagPastRegisterSpace(t *testing.T) {
	cfg := base(tag("edge", "input", 65535, "uint32"))

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected register space error, got nil")
	}
}

func TestValidate_UnknownTable(t *testing.T) {
	cfg := base(tag("x", "coils", 0, "bool"))

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected table error, got nil")
	}
}

func TestValidate_PollIntervalRequiredWithTags(t *testing.T) {
	cfg := base(tag("x", "holding", 0, "uint16"))
	cfg.Poll.IntervalMs = 0

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected interval error, got nil")
	}
}

func TestValidate_StatusTouchingTagAllowed(t *testing.T) {
	// slot 1 => 20-39
	cfg := base(tag("x", "holding", 19, "uint16"), tag("y", "holding", 40, "uint16"))
	cfg.Status = &StatusConfig{Slot: 1}

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_StatusOverlapDetected(t *testing.T) {
	// slot 1 => 20-39, float32 at 18 => 18-19 ok; uint32 at 39 => 39-40 overlap
	cfg := base(tag("a", "holding", 18, "float32"), tag("b", "holding", 39, "uint32"))
	cfg.Status = &StatusConfig{Slot: 1}

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected overlap error, got nil")
	}
}

func TestValidate_StatusIgnoresInputTable(t *testing.T) {
	cfg := base(tag("a", "input", 20, "uint16"))
	cfg.Status = &StatusConfig{Slot: 1}

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DeviceNameASCII(t *testing.T) {
	cfg := base()
	cfg.Device.Name = "pümp"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected ascii error, got nil")
	}
}
