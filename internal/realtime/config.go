package realtime

import "time"

// Config holds realtime transport and controller settings
type Config struct {
	// HandshakeTimeout bounds the wait for the auth frame
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// WriteTimeout bounds a single frame write
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// PingInterval is the heartbeat period; zero disables pings
	PingInterval time.Duration `yaml:"ping_interval"`
	// SendBuffer is the per-connection outbound queue length
	SendBuffer int `yaml:"send_buffer"`
	// ReadLimit caps the size of an inbound frame in bytes
	ReadLimit int64 `yaml:"read_limit"`
	// TopN is the leaderboard length broadcast on each change
	TopN int `yaml:"top_n"`

	ClicksPerSecond       float64 `yaml:"clicks_per_second"`
	ClickBurst            int     `yaml:"click_burst"`
	FactoryTicksPerSecond float64 `yaml:"factory_ticks_per_second"`
	FactoryBurst          int     `yaml:"factory_burst"`

	// AllowedOrigins are host patterns accepted for browser upgrades.
	// Empty means same-origin only; "*" accepts any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns default realtime configuration
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:      10 * time.Second,
		WriteTimeout:          10 * time.Second,
		PingInterval:          30 * time.Second,
		SendBuffer:            256,
		ReadLimit:             4096,
		TopN:                  100,
		ClicksPerSecond:       20,
		ClickBurst:            40,
		FactoryTicksPerSecond: 2,
		FactoryBurst:          4,
	}
}

// withDefaults fills zero fields from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	if c.TopN <= 0 {
		c.TopN = d.TopN
	}
	if c.ClicksPerSecond <= 0 {
		c.ClicksPerSecond = d.ClicksPerSecond
	}
	if c.ClickBurst <= 0 {
		c.ClickBurst = d.ClickBurst
	}
	if c.FactoryTicksPerSecond <= 0 {
		c.FactoryTicksPerSecond = d.FactoryTicksPerSecond
	}
	if c.FactoryBurst <= 0 {
		c.FactoryBurst = d.FactoryBurst
	}
	return c
}
