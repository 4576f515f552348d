// internal/client/registers.go
package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/tamzrod/modbus-client/internal/codec"
	"github.com/tamzrod/modbus-client/internal/fault"
	"github.com/tamzrod/modbus-client/internal/session"
)

// Table selects the register space a read targets.
type Table uint8

const (
	Holding Table = iota
	Input
)

func (t Table) String() string {
	switch t {
	case Holding:
		return "holding"
	case Input:
		return "input"
	default:
		return fmt.Sprintf("table(%d)", uint8(t))
	}
}

// ParseTable accepts "holding"/"input" and the FC shorthands "3"/"4".
func ParseTable(s string) (Table, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "holding", "hr", "3":
		return Holding, nil
	case "input", "ir", "4":
		return Input, nil
	}
	return 0, fmt.Errorf("unknown register table %q", s)
}

// ---- raw registers ----

func (c *Client) ReadHoldingRegisters(ctx context.Context, addr, qty uint16) ([]uint16, error) {
	resp, err := c.do(ctx, session.ReadHolding(addr, qty))
	if err != nil {
		return nil, err
	}
	return resp.Registers, nil
}

func (c *Client) ReadInputRegisters(ctx context.Context, addr, qty uint16) ([]uint16, error) {
	resp, err := c.do(ctx, session.ReadInput(addr, qty))
	if err != nil {
		return nil, err
	}
	return resp.Registers, nil
}

// ReadRegisters reads qty raw registers from table.
func (c *Client) ReadRegisters(ctx context.Context, table Table, addr, qty uint16) ([]uint16, error) {
	switch table {
	case Holding:
		return c.ReadHoldingRegisters(ctx, addr, qty)
	case Input:
		return c.ReadInputRegisters(ctx, addr, qty)
	}
	return nil, fault.Newf(fault.KindInvalidAddress, "read", "unknown table %s", table)
}

func (c *Client) WriteSingleRegister(ctx context.Context, addr, value uint16) error {
	_, err := c.do(ctx, session.WriteSingle(addr, value))
	return err
}

// WriteRegisters uses FC 16 for any count, including one register.
func (c *Client) WriteRegisters(ctx context.Context, addr uint16, values []uint16) error {
	_, err := c.do(ctx, session.WriteMultiple(addr, values))
	return err
}

// ---- typed values ----

// ReadValue reads and decodes one fixed-width value. Strings need ReadString.
func (c *Client) ReadValue(ctx context.Context, table Table, addr uint16, t codec.DataType) (codec.Value, error) {
	n := t.Words()
	if n == 0 {
		return codec.Value{}, fault.Newf(fault.KindDecoding, "read value", "%s has no fixed width", t)
	}
	words, err := c.ReadRegisters(ctx, table, addr, uint16(n))
	if err != nil {
		return codec.Value{}, err
	}
	return c.codec.Decode(t, words)
}

// WriteValue encodes v as t and writes it to holding registers. Single
// register types use FC 6, wider ones FC 16. Strings are sized to fit.
func (c *Client) WriteValue(ctx context.Context, addr uint16, t codec.DataType, v codec.Value) error {
	words, err := c.codec.Encode(t, v, 0)
	if err != nil {
		return err
	}
	if len(words) == 1 {
		return c.WriteSingleRegister(ctx, addr, words[0])
	}
	return c.WriteRegisters(ctx, addr, words)
}
