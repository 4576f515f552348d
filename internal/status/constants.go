// internal/status/constants.go
package status

// Client Status Block layout constants.
// These values define the register protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of registers per status block.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the client health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the code of the last error (see fault.Error.Code).
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the client has been unhealthy.
const SlotSecondsInError = 2

// SlotState holds the raw lifecycle State.
const SlotState = 3

// SlotReconnectAttempt holds the current backoff attempt, saturated at 0xFFFF.
const SlotReconnectAttempt = 4

// ---- RESERVED RANGE ----

// Slots 5-10 are reserved for future use.
const SlotReservedStart = 5
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a connected client.
const HealthOK uint16 = 1

// HealthError represents a faulted client.
const HealthError uint16 = 2

// HealthStale represents a client that is reconnecting; last data is stale.
const HealthStale uint16 = 3

// HealthDisabled represents a deliberately disconnected client.
const HealthDisabled uint16 = 4
