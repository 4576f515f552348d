// internal/config/config.go
package config

// Config is the YAML document consumed by `modbusctl poll`.
type Config struct {
	Client ClientConfig  `yaml:"client"`
	Device DeviceConfig  `yaml:"device"`
	Poll   PollConfig    `yaml:"poll"`
	Tags   []TagConfig   `yaml:"tags"`
	Status *StatusConfig `yaml:"status"`
	Ingest *IngestConfig `yaml:"ingest"`
	HTTP   HTTPConfig    `yaml:"http"`
	Log    LogConfig     `yaml:"log"`
}

// ---- CLIENT ----

// ClientConfig mirrors ClientOptions with wire-friendly units.
// Pointer fields distinguish "omitted" from an explicit zero.
type ClientConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	SlaveID *uint8 `yaml:"slave_id"`

	ConnectTimeoutMs int `yaml:"connect_timeout_ms"`
	RequestTimeoutMs int `yaml:"request_timeout_ms"`

	MaxRetries         *int     `yaml:"max_retries"`
	ReconnectDelayMs   *int     `yaml:"reconnect_delay_ms"`
	MaxRetryDelayMs    int      `yaml:"max_retry_delay_ms"`
	RetryJitterFactor  *float64 `yaml:"retry_jitter_factor"`
	ExponentialBackoff *bool    `yaml:"exponential_backoff"`
	AutoReconnect      *bool    `yaml:"auto_reconnect"`

	Endianness string `yaml:"endianness"`
	WordOrder  string `yaml:"word_order"`

	ClientID string `yaml:"client_id"`
}

// ---- DEVICE ----

// DeviceConfig identifies the polled equipment in published payloads.
type DeviceConfig struct {
	ID        string `yaml:"id"`
	MachineID string `yaml:"machine_id"`
	Name      string `yaml:"name"`
}

// ---- TAGS ----

// TagConfig maps one named reading onto a register range.
type TagConfig struct {
	Name    string `yaml:"name"`
	Table   string `yaml:"table"` // holding | input
	Address uint16 `yaml:"address"`
	Type    string `yaml:"type"`
	Length  int    `yaml:"length"` // registers, strings only

	// engineering = raw*scale + offset; scale 0 means 1
	Scale  float64 `yaml:"scale"`
	Offset float64 `yaml:"offset"`
	Unit   string  `yaml:"unit"`
}

// ---- STATUS MIRROR ----

// StatusConfig opts into writing the client health block back to the
// device's holding registers at Slot*SlotsPerDevice.
type StatusConfig struct {
	Slot uint16 `yaml:"slot"`
}

// ---- INGEST ----

type IngestConfig struct {
	Endpoint  string `yaml:"endpoint"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
	MaxGap     int `yaml:"max_gap"`
}

// ---- HTTP / LOG ----

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}
