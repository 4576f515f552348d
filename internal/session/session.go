// internal/session/session.go
package session

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-client/internal/fault"
)

// Transport is one connection to a Modbus TCP server. It performs exactly
// one attempt per call; retry policy lives in the client.
type Transport interface {
	Open(ctx context.Context) error
	Send(ctx context.Context, req Request) (Response, error)
	Close() error
	// Ready is false before Open, after Close and after any failure that
	// leaves the stream position unknown.
	Ready() bool
}

// Config is minimal transport config.
type Config struct {
	Address        string
	SlaveID        uint8
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

const (
	mbapHeaderSize = 7
	// LEN counts UnitID + PDU; a PDU is at most 253 bytes.
	maxFrameLength = 254
)

// past aborts blocking IO when set as a deadline.
var past = time.Unix(1, 0)

// TCPSession implements Transport over net.Conn. MBAP framing and header
// verification are delegated to goburrow's TCP packager; the handler itself
// is never connected, so it owns only the transaction counter and slave id.
type TCPSession struct {
	cfg      Config
	logger   zerolog.Logger
	packager *modbus.TCPClientHandler
	dialer   net.Dialer

	mu      sync.Mutex
	conn    net.Conn
	suspect bool
}

// New creates a closed session. The transaction counter survives re-opens.
func New(cfg Config) *TCPSession {
	h := modbus.NewTCPClientHandler(cfg.Address)
	h.SlaveId = cfg.SlaveID
	h.Timeout = cfg.RequestTimeout

	return &TCPSession{
		cfg:      cfg,
		logger:   cfg.Logger.With().Str("address", cfg.Address).Logger(),
		packager: h,
		dialer:   net.Dialer{Timeout: cfg.ConnectTimeout},
	}
}

// Open dials the server, replacing any previous connection.
func (s *TCPSession) Open(ctx context.Context) error {
	const op = "connect"

	s.Close()

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	start := time.Now()
	conn, err := s.dialer.DialContext(dialCtx, "tcp", s.cfg.Address)
	if err != nil {
		return classifyDial(ctx, op, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetKeepAlive(true)
	}

	s.mu.Lock()
	s.conn = conn
	s.suspect = false
	s.mu.Unlock()

	s.logger.Debug().Dur("took", time.Since(start)).Msg("session opened")
	return nil
}

// Close is idempotent and may race with Send; the in-flight Send then
// fails Cancelled.
func (s *TCPSession) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.suspect = false
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	s.logger.Debug().Msg("session closed")
	return conn.Close()
}

func (s *TCPSession) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !s.suspect
}

// Send frames req, writes it and waits for the reply carrying the same
// transaction id. Replies with other ids are stale and skipped.
func (s *TCPSession) Send(ctx context.Context, req Request) (Response, error) {
	op := req.Op()

	if err := req.Validate(); err != nil {
		return Response{}, err
	}

	s.mu.Lock()
	conn, suspect := s.conn, s.suspect
	s.mu.Unlock()
	if conn == nil || suspect {
		return Response{}, fault.Newf(fault.KindNotConnected, op, "session not open")
	}
	if err := ctx.Err(); err != nil {
		return Response{}, fault.New(fault.KindCancelled, op, err)
	}

	aduReq, err := s.packager.Encode(req.pdu())
	if err != nil {
		return Response{}, fault.New(fault.KindProtocol, op, err)
	}
	tid := binary.BigEndian.Uint16(aduReq[0:2])

	deadline := time.Now().Add(s.cfg.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, s.ioFailure(ctx, conn, op, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(past) })
	defer stop()

	if _, err := conn.Write(aduReq); err != nil {
		return Response{}, s.ioFailure(ctx, conn, op, err)
	}

	for {
		aduResp, err := readFrame(conn)
		if err != nil {
			var fe *fault.Error
			if errors.As(err, &fe) {
				s.markSuspect(conn)
				fe.Op = op
				return Response{}, fe
			}
			return Response{}, s.ioFailure(ctx, conn, op, err)
		}

		got := binary.BigEndian.Uint16(aduResp[0:2])
		if got != tid {
			s.logger.Debug().
				Uint16("tid", got).
				Uint16("want", tid).
				Msg("discarding stale response")
			continue
		}

		if err := s.packager.Verify(aduReq, aduResp); err != nil {
			s.markSuspect(conn)
			return Response{}, fault.New(fault.KindProtocol, op, err)
		}
		pdu, err := s.packager.Decode(aduResp)
		if err != nil {
			s.markSuspect(conn)
			return Response{}, fault.New(fault.KindProtocol, op, err)
		}

		resp, healthy, err := req.parse(pdu)
		resp.TransactionID = tid
		if !healthy {
			s.markSuspect(conn)
		}
		return resp, err
	}
}

// readFrame reads one MBAP frame. Framing violations come back as
// *fault.Error; everything else is a raw IO error.
func readFrame(conn net.Conn) ([]byte, error) {
	var header [mbapHeaderSize]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, err
	}
	length := int(binary.BigEndian.Uint16(header[4:6]))
	if length < 2 || length > maxFrameLength {
		return nil, fault.Newf(fault.KindProtocol, "read", "invalid MBAP length %d", length)
	}

	adu := make([]byte, mbapHeaderSize+length-1)
	copy(adu, header[:])
	if _, err := io.ReadFull(conn, adu[mbapHeaderSize:]); err != nil {
		return nil, err
	}
	return adu, nil
}

func (s *TCPSession) markSuspect(conn net.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.suspect = true
	}
	s.mu.Unlock()
}

// ioFailure classifies a read/write error and poisons the connection.
func (s *TCPSession) ioFailure(ctx context.Context, conn net.Conn, op string, err error) error {
	s.mu.Lock()
	replaced := s.conn != conn
	if !replaced {
		s.suspect = true
	}
	s.mu.Unlock()

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return fault.New(fault.KindCancelled, op, ctx.Err())
	case replaced || errors.Is(err, net.ErrClosed):
		return fault.Newf(fault.KindCancelled, op, "session closed")
	case errors.Is(ctx.Err(), context.DeadlineExceeded), isTimeout(err):
		return fault.New(fault.KindRequestTimeout, op, err)
	default:
		return fault.New(fault.KindConnectionLost, op, err)
	}
}

func classifyDial(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return fault.New(fault.KindCancelled, op, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return fault.New(fault.KindConnectTimeout, op, err)
	default:
		// refused, unreachable host, DNS failure
		return fault.New(fault.KindConnectRefused, op, err)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
