// internal/client/typed.go
package client

import (
	"context"

	"github.com/tamzrod/modbus-client/internal/fault"
	"github.com/tamzrod/modbus-client/internal/session"
)

func (c *Client) readWords(ctx context.Context, table Table, addr uint16, n int) ([]uint16, error) {
	if n <= 0 || n > session.MaxReadQuantity {
		return nil, fault.Newf(fault.KindInvalidAddress, "read_"+table.String(),
			"quantity must be 1-%d, got %d", session.MaxReadQuantity, n)
	}
	return c.ReadRegisters(ctx, table, addr, uint16(n))
}

func (c *Client) ReadUint16(ctx context.Context, table Table, addr uint16) (uint16, error) {
	w, err := c.readWords(ctx, table, addr, 1)
	if err != nil {
		return 0, err
	}
	return c.codec.Uint16(w)
}

func (c *Client) ReadInt16(ctx context.Context, table Table, addr uint16) (int16, error) {
	w, err := c.readWords(ctx, table, addr, 1)
	if err != nil {
		return 0, err
	}
	return c.codec.Int16(w)
}

func (c *Client) ReadUint32(ctx context.Context, table Table, addr uint16) (uint32, error) {
	w, err := c.readWords(ctx, table, addr, 2)
	if err != nil {
		return 0, err
	}
	return c.codec.Uint32(w)
}

func (c *Client) ReadInt32(ctx context.Context, table Table, addr uint16) (int32, error) {
	w, err := c.readWords(ctx, table, addr, 2)
	if err != nil {
		return 0, err
	}
	return c.codec.Int32(w)
}

func (c *Client) ReadUint64(ctx context.Context, table Table, addr uint16) (uint64, error) {
	w, err := c.readWords(ctx, table, addr, 4)
	if err != nil {
		return 0, err
	}
	return c.codec.Uint64(w)
}

func (c *Client) ReadInt64(ctx context.Context, table Table, addr uint16) (int64, error) {
	w, err := c.readWords(ctx, table, addr, 4)
	if err != nil {
		return 0, err
	}
	return c.codec.Int64(w)
}

func (c *Client) ReadFloat32(ctx context.Context, table Table, addr uint16) (float32, error) {
	w, err := c.readWords(ctx, table, addr, 2)
	if err != nil {
		return 0, err
	}
	return c.codec.Float32(w)
}

func (c *Client) ReadFloat64(ctx context.Context, table Table, addr uint16) (float64, error) {
	w, err := c.readWords(ctx, table, addr, 4)
	if err != nil {
		return 0, err
	}
	return c.codec.Float64(w)
}

// ReadString reads n registers of NUL padded ASCII.
func (c *Client) ReadString(ctx context.Context, table Table, addr uint16, n int) (string, error) {
	if n <= 0 || n > session.MaxReadQuantity {
		return "", fault.Newf(fault.KindInvalidAddress, "read string", "length must be 1-%d, got %d", session.MaxReadQuantity, n)
	}
	w, err := c.readWords(ctx, table, addr, n)
	if err != nil {
		return "", err
	}
	return c.codec.String(w), nil
}

// ---- writes (holding registers only) ----

func (c *Client) WriteUint16(ctx context.Context, addr uint16, v uint16) error {
	return c.WriteSingleRegister(ctx, addr, c.codec.PutUint16(v)[0])
}

func (c *Client) WriteInt16(ctx context.Context, addr uint16, v int16) error {
	return c.WriteSingleRegister(ctx, addr, c.codec.PutInt16(v)[0])
}

func (c *Client) WriteUint32(ctx context.Context, addr uint16, v uint32) error {
	return c.WriteRegisters(ctx, addr, c.codec.PutUint32(v))
}

func (c *Client) WriteInt32(ctx context.Context, addr uint16, v int32) error {
	return c.WriteRegisters(ctx, addr, c.codec.PutInt32(v))
}

func (c *Client) WriteUint64(ctx context.Context, addr uint16, v uint64) error {
	return c.WriteRegisters(ctx, addr, c.codec.PutUint64(v))
}

func (c *Client) WriteInt64(ctx context.Context, addr uint16, v int64) error {
	return c.WriteRegisters(ctx, addr, c.codec.PutInt64(v))
}

func (c *Client) WriteFloat32(ctx context.Context, addr uint16, v float32) error {
	return c.WriteRegisters(ctx, addr, c.codec.PutFloat32(v))
}

func (c *Client) WriteFloat64(ctx context.Context, addr uint16, v float64) error {
	return c.WriteRegisters(ctx, addr, c.codec.PutFloat64(v))
}

// WriteString packs s into n registers, NUL padded.
func (c *Client) WriteString(ctx context.Context, addr uint16, s string, n int) error {
	w, err := c.codec.PutString(s, n)
	if err != nil {
		return err
	}
	return c.WriteRegisters(ctx, addr, w)
}
