// internal/config/options.go
package config

import (
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tamzrod/modbus-client/internal/codec"
	"github.com/tamzrod/modbus-client/internal/fault"
)

// ClientOptions is the immutable policy of one resilient client.
type ClientOptions struct {
	Host    string
	Port    int
	SlaveID uint8

	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	// MaxRetries counts retries after the first attempt. 0 disables retry.
	MaxRetries int
	// ReconnectDelay is the base backoff. 0 means retry immediately.
	ReconnectDelay        time.Duration
	MaxRetryDelay         time.Duration
	UseExponentialBackoff bool
	// RetryJitterFactor spreads each delay uniformly by ±delay*factor.
	RetryJitterFactor float64
	AutoReconnect     bool

	Endianness codec.Endianness
	WordOrder  codec.WordOrder

	ClientID string
}

// Defaults.
const (
	DefaultPort           = 502
	DefaultSlaveID        = 1
	DefaultConnectTimeout = 5 * time.Second
	DefaultRequestTimeout = 1 * time.Second
	DefaultMaxRetries     = 3
	DefaultReconnectDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay  = 30 * time.Second
	DefaultJitterFactor   = 0.2
)

// DefaultOptions returns a valid baseline for host.
func DefaultOptions(host string) ClientOptions {
	return ClientOptions{
		Host:                  host,
		Port:                  DefaultPort,
		SlaveID:               DefaultSlaveID,
		ConnectTimeout:        DefaultConnectTimeout,
		RequestTimeout:        DefaultRequestTimeout,
		MaxRetries:            DefaultMaxRetries,
		ReconnectDelay:        DefaultReconnectDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
		RetryJitterFactor:     DefaultJitterFactor,
		AutoReconnect:         true,
		Endianness:            codec.BigEndian,
		WordOrder:             codec.ABCD,
		ClientID:              NewClientID(),
	}
}

// NewClientID returns a fresh "modbus-<uuid>" identifier.
func NewClientID() string {
	return "modbus-" + uuid.NewString()
}

// Address is host:port for dialing.
func (o ClientOptions) Address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Codec returns the register codec described by the options.
func (o ClientOptions) Codec() codec.Codec {
	return codec.Codec{Endianness: o.Endianness, WordOrder: o.WordOrder}
}

// Validate checks every field. It performs no IO and MUST NOT mutate.
// The first offending field is named in the returned Configuration error.
func (o ClientOptions) Validate() error {
	const op = "options"

	switch {
	case strings.TrimSpace(o.Host) == "":
		return fault.Newf(fault.KindConfiguration, op, "Host must not be empty")
	case o.Port < 1 || o.Port > 65535:
		return fault.Newf(fault.KindConfiguration, op, "Port must be in [1,65535], got %d", o.Port)
	case o.ConnectTimeout <= 0:
		return fault.Newf(fault.KindConfiguration, op, "ConnectTimeout must be > 0, got %s", o.ConnectTimeout)
	case o.RequestTimeout <= 0:
		return fault.Newf(fault.KindConfiguration, op, "RequestTimeout must be > 0, got %s", o.RequestTimeout)
	case o.MaxRetries < 0:
		return fault.Newf(fault.KindConfiguration, op, "MaxRetries must be >= 0, got %d", o.MaxRetries)
	case o.ReconnectDelay < 0:
		return fault.Newf(fault.KindConfiguration, op, "ReconnectDelay must be >= 0, got %s", o.ReconnectDelay)
	case math.IsNaN(o.RetryJitterFactor) || o.RetryJitterFactor < 0 || o.RetryJitterFactor > 1:
		return fault.Newf(fault.KindConfiguration, op, "RetryJitterFactor must be in [0,1], got %g", o.RetryJitterFactor)
	case o.MaxRetryDelay <= 0:
		return fault.Newf(fault.KindConfiguration, op, "MaxRetryDelay must be > 0, got %s", o.MaxRetryDelay)
	case strings.TrimSpace(o.ClientID) == "":
		return fault.Newf(fault.KindConfiguration, op, "ClientID must not be empty")
	case !o.Endianness.Valid():
		return fault.Newf(fault.KindConfiguration, op, "Endianness %s is not supported", o.Endianness)
	case !o.WordOrder.Valid():
		return fault.Newf(fault.KindConfiguration, op, "WordOrder %s is not supported", o.WordOrder)
	}
	return nil
}
