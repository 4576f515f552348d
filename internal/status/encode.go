// internal/status/encode.go
package status

// Encode converts a Snapshot into a full status block.
// Layout is protocol-locked. The device name is packed two ASCII
// characters per register, high byte first, NUL padded.
// No IO. No side effects.
func Encode(s Snapshot, deviceName string) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError
	regs[SlotState] = uint16(s.State)

	attempt := s.Attempt
	if attempt > 0xFFFF {
		attempt = 0xFFFF
	}
	if attempt > 0 {
		regs[SlotReconnectAttempt] = uint16(attempt)
	}

	name := deviceName
	if len(name) > DeviceNameMaxChars {
		name = name[:DeviceNameMaxChars]
	}
	for i := 0; i < len(name); i++ {
		slot := SlotDeviceNameStart + i/2
		if i%2 == 0 {
			regs[slot] |= uint16(name[i]) << 8
		} else {
			regs[slot] |= uint16(name[i])
		}
	}

	return regs
}
