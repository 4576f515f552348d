// internal/config/normalize.go
package config

import (
	"strings"
	"time"

	"github.com/tamzrod/modbus-client/internal/codec"
	"github.com/tamzrod/modbus-client/internal/status"
)

// Default poll settings.
const (
	DefaultPollIntervalMs = 2000
	DefaultMaxGap         = 10
	DefaultIngestTimeout  = 2 * time.Second
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ------------------------------------------------------------
	// CLIENT DEFAULTS
	// ------------------------------------------------------------

	c := &cfg.Client
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.SlaveID == nil {
		v := uint8(DefaultSlaveID)
		c.SlaveID = &v
	}
	if c.ConnectTimeoutMs == 0 {
		c.ConnectTimeoutMs = int(DefaultConnectTimeout / time.Millisecond)
	}
	if c.RequestTimeoutMs == 0 {
		c.RequestTimeoutMs = int(DefaultRequestTimeout / time.Millisecond)
	}
	if c.MaxRetryDelayMs == 0 {
		c.MaxRetryDelayMs = int(DefaultMaxRetryDelay / time.Millisecond)
	}
	if c.MaxRetries == nil {
		v := DefaultMaxRetries
		c.MaxRetries = &v
	}
	if c.ReconnectDelayMs == nil {
		v := int(DefaultReconnectDelay / time.Millisecond)
		c.ReconnectDelayMs = &v
	}
	if c.RetryJitterFactor == nil {
		v := DefaultJitterFactor
		c.RetryJitterFactor = &v
	}
	if c.ExponentialBackoff == nil {
		v := true
		c.ExponentialBackoff = &v
	}
	if c.AutoReconnect == nil {
		v := true
		c.AutoReconnect = &v
	}
	if strings.TrimSpace(c.ClientID) == "" {
		c.ClientID = NewClientID()
	}

	// ------------------------------------------------------------
	// DEVICE / POLL
	// ------------------------------------------------------------

	// ASCII already validated
	if len(cfg.Device.Name) > status.DeviceNameMaxChars {
		cfg.Device.Name = cfg.Device.Name[:status.DeviceNameMaxChars]
	}
	if cfg.Device.ID == "" {
		cfg.Device.ID = c.Host
	}

	if cfg.Poll.IntervalMs == 0 {
		cfg.Poll.IntervalMs = DefaultPollIntervalMs
	}
	if cfg.Poll.MaxGap == 0 {
		cfg.Poll.MaxGap = DefaultMaxGap
	}

	for i := range cfg.Tags {
		t := &cfg.Tags[i]
		t.Table = strings.ToLower(t.Table)
		if t.Scale == 0 {
			t.Scale = 1
		}
	}

	if cfg.Ingest != nil && cfg.Ingest.TimeoutMs == 0 {
		cfg.Ingest.TimeoutMs = int(DefaultIngestTimeout / time.Millisecond)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Options converts a normalized ClientConfig into ClientOptions.
// Enum strings were checked by Validate, so parse errors are impossible here.
func (c ClientConfig) Options() ClientOptions {
	e, _ := codec.ParseEndianness(c.Endianness)
	w, _ := codec.ParseWordOrder(c.WordOrder)

	o := ClientOptions{
		Host:           c.Host,
		Port:           c.Port,
		ConnectTimeout: ms(c.ConnectTimeoutMs),
		RequestTimeout: ms(c.RequestTimeoutMs),
		MaxRetryDelay:  ms(c.MaxRetryDelayMs),
		Endianness:     e,
		WordOrder:      w,
		ClientID:       c.ClientID,
	}
	if c.SlaveID != nil {
		o.SlaveID = *c.SlaveID
	}
	if c.MaxRetries != nil {
		o.MaxRetries = *c.MaxRetries
	}
	if c.ReconnectDelayMs != nil {
		o.ReconnectDelay = ms(*c.ReconnectDelayMs)
	}
	if c.RetryJitterFactor != nil {
		o.RetryJitterFactor = *c.RetryJitterFactor
	}
	if c.ExponentialBackoff != nil {
		o.UseExponentialBackoff = *c.ExponentialBackoff
	}
	if c.AutoReconnect != nil {
		o.AutoReconnect = *c.AutoReconnect
	}
	return o
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
