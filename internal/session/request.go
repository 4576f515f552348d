// internal/session/request.go
package session

import (
	"encoding/binary"
	"fmt"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/modbus-client/internal/fault"
)

// Protocol limits per request.
const (
	MaxReadQuantity  = 125
	MaxWriteQuantity = 123
)

// Request is one register operation. It is built per call and never retained.
type Request struct {
	FunctionCode byte
	Address      uint16
	Quantity     uint16   // reads
	Values       []uint16 // writes; exactly one for FC 6
}

// Response carries the decoded reply of a matched transaction.
type Response struct {
	TransactionID uint16
	FunctionCode  byte
	Registers     []uint16 // reads only
}

func ReadHolding(addr, qty uint16) Request {
	return Request{FunctionCode: modbus.FuncCodeReadHoldingRegisters, Address: addr, Quantity: qty}
}

func ReadInput(addr, qty uint16) Request {
	return Request{FunctionCode: modbus.FuncCodeReadInputRegisters, Address: addr, Quantity: qty}
}

func WriteSingle(addr, value uint16) Request {
	return Request{FunctionCode: modbus.FuncCodeWriteSingleRegister, Address: addr, Values: []uint16{value}}
}

func WriteMultiple(addr uint16, values []uint16) Request {
	return Request{FunctionCode: modbus.FuncCodeWriteMultipleRegisters, Address: addr, Values: values}
}

// IsWrite reports whether the request modifies device memory.
func (r Request) IsWrite() bool {
	return r.FunctionCode == modbus.FuncCodeWriteSingleRegister ||
		r.FunctionCode == modbus.FuncCodeWriteMultipleRegisters
}

// Op is a short label used in errors, logs and metrics.
func (r Request) Op() string {
	switch r.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters:
		return "read_holding"
	case modbus.FuncCodeReadInputRegisters:
		return "read_input"
	case modbus.FuncCodeWriteSingleRegister:
		return "write_single"
	case modbus.FuncCodeWriteMultipleRegisters:
		return "write_multiple"
	default:
		return fmt.Sprintf("fc%d", r.FunctionCode)
	}
}

// Validate checks geometry locally so bad requests never reach the wire.
func (r Request) Validate() error {
	op := r.Op()
	switch r.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters, modbus.FuncCodeReadInputRegisters:
		if r.Quantity < 1 || r.Quantity > MaxReadQuantity {
			return fault.Newf(fault.KindInvalidAddress, op, "quantity must be in [1,%d], got %d", MaxReadQuantity, r.Quantity)
		}
		return checkSpan(op, r.Address, int(r.Quantity))
	case modbus.FuncCodeWriteSingleRegister:
		if len(r.Values) != 1 {
			return fault.Newf(fault.KindInvalidAddress, op, "expected exactly one value, got %d", len(r.Values))
		}
		return nil
	case modbus.FuncCodeWriteMultipleRegisters:
		if len(r.Values) < 1 || len(r.Values) > MaxWriteQuantity {
			return fault.Newf(fault.KindInvalidAddress, op, "quantity must be in [1,%d], got %d", MaxWriteQuantity, len(r.Values))
		}
		return checkSpan(op, r.Address, len(r.Values))
	}
	return fault.Newf(fault.KindProtocol, op, "unsupported function code %d", r.FunctionCode)
}

func checkSpan(op string, addr uint16, qty int) error {
	if int(addr)+qty > 65536 {
		return fault.Newf(fault.KindInvalidAddress, op, "address %d + quantity %d exceeds register space", addr, qty)
	}
	return nil
}

// pdu builds the protocol data unit.
//
//	FC3/FC4: Address(2) Quantity(2)
//	FC6:     Address(2) Value(2)
//	FC16:    Address(2) Quantity(2) ByteCount(1) Values(2*N)
func (r Request) pdu() *modbus.ProtocolDataUnit {
	var data []byte
	switch r.FunctionCode {
	case modbus.FuncCodeWriteSingleRegister:
		data = make([]byte, 4)
		binary.BigEndian.PutUint16(data[0:2], r.Address)
		binary.BigEndian.PutUint16(data[2:4], r.Values[0])
	case modbus.FuncCodeWriteMultipleRegisters:
		n := len(r.Values)
		data = make([]byte, 5+2*n)
		binary.BigEndian.PutUint16(data[0:2], r.Address)
		binary.BigEndian.PutUint16(data[2:4], uint16(n))
		data[4] = byte(2 * n)
		for i, v := range r.Values {
			binary.BigEndian.PutUint16(data[5+2*i:], v)
		}
	default:
		data = make([]byte, 4)
		binary.BigEndian.PutUint16(data[0:2], r.Address)
		binary.BigEndian.PutUint16(data[2:4], r.Quantity)
	}
	return &modbus.ProtocolDataUnit{FunctionCode: r.FunctionCode, Data: data}
}

// parse validates a reply PDU against its request.
// The bool result reports whether the session remains trustworthy.
func (r Request) parse(pdu *modbus.ProtocolDataUnit) (Response, bool, error) {
	op := r.Op()
	resp := Response{FunctionCode: pdu.FunctionCode}

	if pdu.FunctionCode == r.FunctionCode|0x80 {
		if len(pdu.Data) < 1 {
			return resp, false, fault.Newf(fault.KindProtocol, op, "exception response without code")
		}
		return resp, true, exceptionError(r, pdu.Data[0])
	}
	if pdu.FunctionCode != r.FunctionCode {
		return resp, false, fault.Newf(fault.KindProtocol, op, "function mismatch: got=%d want=%d", pdu.FunctionCode, r.FunctionCode)
	}

	p := pdu.Data
	switch r.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters, modbus.FuncCodeReadInputRegisters:
		// payload[0] = byte count, remaining = registers big-endian
		if len(p) < 1 {
			return resp, false, fault.Newf(fault.KindProtocol, op, "short read-registers payload")
		}
		byteCount := int(p[0])
		if byteCount != 2*int(r.Quantity) || len(p)-1 != byteCount {
			return resp, false, fault.Newf(fault.KindProtocol, op,
				"byte count mismatch: got=%d payload=%d want=%d", byteCount, len(p)-1, 2*r.Quantity)
		}
		resp.Registers = unpackRegisters(p[1:])
	case modbus.FuncCodeWriteSingleRegister:
		if len(p) != 4 ||
			binary.BigEndian.Uint16(p[0:2]) != r.Address ||
			binary.BigEndian.Uint16(p[2:4]) != r.Values[0] {
			return resp, false, fault.Newf(fault.KindProtocol, op, "write echo mismatch")
		}
	case modbus.FuncCodeWriteMultipleRegisters:
		if len(p) != 4 ||
			binary.BigEndian.Uint16(p[0:2]) != r.Address ||
			int(binary.BigEndian.Uint16(p[2:4])) != len(r.Values) {
			return resp, false, fault.Newf(fault.KindProtocol, op, "write echo mismatch")
		}
	}
	return resp, true, nil
}

// exceptionError maps a device exception onto the error taxonomy.
func exceptionError(r Request, code byte) error {
	kind := fault.KindProtocol
	switch {
	case code == modbus.ExceptionCodeIllegalDataAddress:
		kind = fault.KindInvalidAddress
	case r.IsWrite():
		kind = fault.KindWriteRejected
	}
	e := fault.New(kind, r.Op(), &modbus.ModbusError{FunctionCode: r.FunctionCode, ExceptionCode: code})
	e.ExceptionCode = code
	return e
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
