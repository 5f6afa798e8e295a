package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the streambufferd configuration.
type Config struct {
	InstanceID       string       `yaml:"instance_id"`
	ShutdownTimeoutS int          `yaml:"shutdown_timeout_s"` // graceful shutdown timeout (default: 5)
	StatsIntervalS   int          `yaml:"stats_interval_s"`   // negative disables the stats logger (default: 10)
	Buffer           BufferConfig `yaml:"buffer"`
	Reader           ReaderConfig `yaml:"reader"`
	Source           SourceConfig `yaml:"source"`
	MQTT             MQTTConfig   `yaml:"mqtt"`
	Health           HealthConfig `yaml:"health"`
}

// BufferConfig contains the producer loop settings.
type BufferConfig struct {
	MaxLen            int   `yaml:"maxlen"`
	AutoDrop          *bool `yaml:"auto_drop"` // nil means true
	SleepOnReadNoneMs int   `yaml:"sleep_on_read_none_ms"`
}

// ReaderConfig contains the defaults of every reader.
type ReaderConfig struct {
	ReadSize          int  `yaml:"read_size"`
	StrictN           bool `yaml:"strict_n"`
	IgnoreNoItemFound bool `yaml:"ignore_no_item_found"`
	IterBackoffMs     int  `yaml:"iter_backoff_ms"`
}

// SourceConfig selects and configures the producer.
type SourceConfig struct {
	Type    string        `yaml:"type"` // counter, mock, rtsp
	Counter CounterConfig `yaml:"counter"`
	Mock    MockConfig    `yaml:"mock"`
	RTSP    RTSPConfig    `yaml:"rtsp"`
}

// CounterConfig configures the "s<n>" counter source.
type CounterConfig struct {
	Start      int `yaml:"start"`
	Stop       int `yaml:"stop"`
	IntervalMs int `yaml:"interval_ms"`
}

// MockConfig configures the synthetic frame source.
type MockConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
	Name   string `yaml:"name"` // LQ, HQ
}

// RTSPConfig configures the GStreamer RTSP source.
type RTSPConfig struct {
	URL    string  `yaml:"url"`
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	FPS    float64 `yaml:"fps"`
}

// MQTTConfig contains the emitter settings. An empty broker disables it.
type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
	QoS    byte   `yaml:"qos"`
}

// HealthConfig contains the HTTP health server settings.
type HealthConfig struct {
	Port string `yaml:"port"` // empty disables the server
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// AutoDropEnabled resolves the auto_drop default.
func (b BufferConfig) AutoDropEnabled() bool {
	return b.AutoDrop == nil || *b.AutoDrop
}

// SleepOnReadNone returns the configured loop backoff, 0 when unset.
func (b BufferConfig) SleepOnReadNone() time.Duration {
	return time.Duration(b.SleepOnReadNoneMs) * time.Millisecond
}

// IterBackoff returns the configured iteration backoff, 0 when unset.
func (r ReaderConfig) IterBackoff() time.Duration {
	return time.Duration(r.IterBackoffMs) * time.Millisecond
}

// Interval returns the counter pacing.
func (c CounterConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// StatsInterval returns the stats logger period, 0 when disabled.
func (c *Config) StatsInterval() time.Duration {
	if c.StatsIntervalS < 0 {
		return 0
	}
	return time.Duration(c.StatsIntervalS) * time.Second
}
