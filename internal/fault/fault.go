// internal/fault/fault.go
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies every error the client surfaces.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindConnectTimeout
	KindConnectRefused
	KindRequestTimeout
	KindConnectionLost
	KindProtocol
	KindDecoding
	KindWriteRejected
	KindInvalidAddress
	KindNotConnected
	KindCancelled
	KindFaulted
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	KindConfiguration:  "configuration",
	KindConnectTimeout: "connect timeout",
	KindConnectRefused: "connect refused",
	KindRequestTimeout: "request timeout",
	KindConnectionLost: "connection lost",
	KindProtocol:       "protocol error",
	KindDecoding:       "decoding error",
	KindWriteRejected:  "write rejected",
	KindInvalidAddress: "invalid address",
	KindNotConnected:   "not connected",
	KindCancelled:      "cancelled",
	KindFaulted:        "faulted",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Sentinels for errors.Is. A sentinel matches any *Error of the same Kind.
var (
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrConnectTimeout = &Error{Kind: KindConnectTimeout}
	ErrConnectRefused = &Error{Kind: KindConnectRefused}
	ErrRequestTimeout = &Error{Kind: KindRequestTimeout}
	ErrConnectionLost = &Error{Kind: KindConnectionLost}
	ErrProtocol       = &Error{Kind: KindProtocol}
	ErrDecoding       = &Error{Kind: KindDecoding}
	ErrWriteRejected  = &Error{Kind: KindWriteRejected}
	ErrInvalidAddress = &Error{Kind: KindInvalidAddress}
	ErrNotConnected   = &Error{Kind: KindNotConnected}
	ErrCancelled      = &Error{Kind: KindCancelled}
	ErrFaulted        = &Error{Kind: KindFaulted}
)

// Error is the concrete error type of this module.
type Error struct {
	Kind Kind
	Op   string
	// ExceptionCode is the Modbus exception code for WriteRejected/InvalidAddress
	// responses. 0 when the error did not come from the device.
	ExceptionCode uint8
	Err           error
}

// New builds an *Error. err may be nil.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an *Error around a formatted message.
func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality against sentinels (Op and Err unset).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Err == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

// Code returns a best-effort uint16 for status registers: the device
// exception code when present, otherwise 0x100 + kind.
func (e *Error) Code() uint16 {
	if e.ExceptionCode != 0 {
		return uint16(e.ExceptionCode)
	}
	return 0x100 + uint16(e.Kind)
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether err is a transient network failure.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConnectTimeout, KindConnectRefused, KindRequestTimeout, KindConnectionLost:
		return true
	}
	return false
}

// Is reports whether err carries kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// CodeOf extracts a numeric code from err for the status block. It accepts
// any error exposing Code, ErrorCode or ModbusCode; 0 when none does.
func CodeOf(err error) uint16 {
	if err == nil {
		return 0
	}

	type coder interface{ Code() uint16 }
	type errorCoder interface{ ErrorCode() uint16 }
	type modbusCoder interface{ ModbusCode() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	var ec errorCoder
	if errors.As(err, &ec) {
		return ec.ErrorCode()
	}
	var mc modbusCoder
	if errors.As(err, &mc) {
		return mc.ModbusCode()
	}
	return 0
}
