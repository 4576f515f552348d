// internal/bridge/mirror.go
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/modbus-client/internal/status"
)

// RegisterWriter is the single write the status mirror needs.
type RegisterWriter interface {
	WriteRegisters(ctx context.Context, addr uint16, values []uint16) error
}

// liveSlots are rewritten individually when they change. The device name
// and reserved slots are only written with the full block.
var liveSlots = []int{
	status.SlotHealthCode,
	status.SlotLastErrorCode,
	status.SlotSecondsInError,
	status.SlotState,
	status.SlotReconnectAttempt,
}

// StatusMirror writes health snapshots into the device's holding
// registers. Delivery only: it writes what it is given.
type StatusMirror struct {
	w    RegisterWriter
	base uint16
	name string

	needFull bool
	last     []uint16
}

// NewStatusMirror targets the block starting at slot*SlotsPerDevice.
func NewStatusMirror(w RegisterWriter, slot uint16, deviceName string) *StatusMirror {
	return &StatusMirror{
		w:        w,
		base:     slot * status.SlotsPerDevice,
		name:     deviceName,
		needFull: true, // full re-assert on first successful write
	}
}

// BaseAddr is the first holding register of the block.
func (m *StatusMirror) BaseAddr() uint16 { return m.base }

// Write delivers s. The first call, and the first call after any failure,
// writes the whole block; otherwise only changed live slots are written.
func (m *StatusMirror) Write(ctx context.Context, s status.Snapshot) error {
	regs := status.Encode(s, m.name)

	if m.needFull {
		if err := m.w.WriteRegisters(ctx, m.base, regs); err != nil {
			return fmt.Errorf("status mirror: full block write failed: %w", err)
		}
		m.needFull = false
		m.last = regs
		return nil
	}

	var errs []string
	for _, slot := range liveSlots {
		if m.last[slot] == regs[slot] {
			continue
		}
		if err := m.w.WriteRegisters(ctx, m.base+uint16(slot), regs[slot:slot+1]); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d write failed: %v", slot, err))
			continue
		}
		m.last[slot] = regs[slot]
	}

	if len(errs) > 0 {
		// partial failure: re-assert on next success
		m.needFull = true
		return errors.New("status mirror: " + strings.Join(errs, " | "))
	}
	return nil
}
