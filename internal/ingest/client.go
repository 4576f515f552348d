// internal/ingest/client.go
package ingest

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	magicHi byte = 0x52 // 'R'
	magicLo byte = 0x49 // 'I'

	versionV2 byte = 0x02

	KindReadings byte = 0x01

	respOK       byte = 0x00
	respRejected byte = 0x01

	headerLen = 10

	// MaxPayload bounds one frame; larger batches are rejected locally.
	MaxPayload = 1 << 20

	DefaultTimeout = 2 * time.Second
)

// ErrRejected is returned when the endpoint acknowledges with a reject.
var ErrRejected = errors.New("ingest: rejected")

// Raw Ingest v2 client (stateless, 1 batch = 1 connection)
type EndpointClient struct {
	endpoint string
	timeout  time.Duration
	dialer   net.Dialer
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("ingest: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &EndpointClient{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
	}, nil
}

func (c *EndpointClient) Close() error { return nil }

// Deliver sends b as one JSON frame and waits for the 1-byte ack.
func (c *EndpointClient) Deliver(ctx context.Context, b Batch) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("ingest: encode: %w", err)
	}
	return c.send(ctx, KindReadings, payload)
}

func (c *EndpointClient) send(ctx context.Context, kind byte, payload []byte) error {
	if len(payload) > MaxPayload {
		return fmt.Errorf("ingest: payload %d bytes exceeds %d", len(payload), MaxPayload)
	}

	pkt := buildPacketV2(kind, payload)

	dctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(dctx, "tcp", c.endpoint)
	if err != nil {
		return fmt.Errorf("ingest: dial: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if err := writeAll(conn, pkt); err != nil {
		return fmt.Errorf("ingest: write: %w", ctxErr(ctx, err))
	}

	var resp [1]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return fmt.Errorf("ingest: read status: %w", ctxErr(ctx, err))
	}

	switch resp[0] {
	case respOK:
		return nil
	case respRejected:
		return ErrRejected
	default:
		return fmt.Errorf("ingest: unknown status 0x%02x", resp[0])
	}
}

//
// ---- Raw Ingest v2 packet builder ----
//
// Layout (10 bytes header):
// 0–1  Magic "RI"
// 2    Version (0x02)
// 3    Kind
// 4–5  Reserved (zero)
// 6–9  Payload length (big-endian)
// 10+  Payload (JSON)
//

func buildPacketV2(kind byte, payload []byte) []byte {
	pkt := make([]byte, headerLen, headerLen+len(payload))

	pkt[0] = magicHi
	pkt[1] = magicLo
	pkt[2] = versionV2
	pkt[3] = kind
	binary.BigEndian.PutUint32(pkt[6:10], uint32(len(payload)))

	return append(pkt, payload...)
}

// ParseHeader validates a v2 header and returns the kind and payload length.
func ParseHeader(h []byte) (kind byte, n uint32, err error) {
	if len(h) < headerLen {
		return 0, 0, fmt.Errorf("ingest: short header (%d bytes)", len(h))
	}
	if h[0] != magicHi || h[1] != magicLo {
		return 0, 0, errors.New("ingest: bad magic")
	}
	if h[2] != versionV2 {
		return 0, 0, fmt.Errorf("ingest: unsupported version 0x%02x", h[2])
	}
	n = binary.BigEndian.Uint32(h[6:10])
	if n > MaxPayload {
		return 0, 0, fmt.Errorf("ingest: payload %d bytes exceeds %d", n, MaxPayload)
	}
	return h[3], n, nil
}

//
// ---- helpers ----
//

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
