package config

import (
	"fmt"
	"regexp"
	"strings"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Source types understood by streambufferd.
const (
	SourceCounter = "counter"
	SourceMock    = "mock"
	SourceRTSP    = "rtsp"
)

// Validate checks the configuration and fills in defaults.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}
	if cfg.StatsIntervalS == 0 {
		cfg.StatsIntervalS = 10
	}

	if cfg.Buffer.MaxLen <= 0 {
		cfg.Buffer.MaxLen = 1000
	}
	if cfg.Buffer.SleepOnReadNoneMs < 0 {
		return fmt.Errorf("buffer.sleep_on_read_none_ms must be >= 0")
	}

	if cfg.Reader.ReadSize <= 0 {
		cfg.Reader.ReadSize = 1
	}
	if cfg.Reader.IterBackoffMs < 0 {
		return fmt.Errorf("reader.iter_backoff_ms must be >= 0")
	}

	if err := ValidateSource(&cfg.Source); err != nil {
		return fmt.Errorf("source validation failed: %w", err)
	}

	// Empty broker leaves the emitter disabled.
	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = fmt.Sprintf("stream-buffer/%s/items", cfg.InstanceID)
		}
		if strings.ContainsAny(cfg.MQTT.Topic, "+#") {
			return fmt.Errorf("mqtt.topic must not contain wildcards, got %q", cfg.MQTT.Topic)
		}
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}

	return nil
}

// ValidateSource checks the section of the selected source type.
func ValidateSource(src *SourceConfig) error {
	switch src.Type {
	case SourceCounter:
		c := src.Counter
		if c.Stop <= c.Start {
			return fmt.Errorf("counter: stop (%d) must be > start (%d)", c.Stop, c.Start)
		}
		if c.IntervalMs < 0 {
			return fmt.Errorf("counter: interval_ms must be >= 0")
		}

	case SourceMock:
		m := &src.Mock
		if m.Width <= 0 || m.Height <= 0 {
			return fmt.Errorf("mock: invalid resolution %dx%d", m.Width, m.Height)
		}
		if m.FPS <= 0 {
			return fmt.Errorf("mock: fps must be > 0")
		}
		if m.Name == "" {
			m.Name = "LQ"
		}

	case SourceRTSP:
		r := src.RTSP
		if r.URL == "" {
			return fmt.Errorf("rtsp: url is required")
		}
		if r.Width <= 0 || r.Height <= 0 {
			return fmt.Errorf("rtsp: invalid resolution %dx%d", r.Width, r.Height)
		}
		if r.FPS <= 0 {
			return fmt.Errorf("rtsp: fps must be > 0")
		}

	case "":
		return fmt.Errorf("type is required (counter, mock or rtsp)")

	default:
		return fmt.Errorf("unknown type '%s' (must be 'counter', 'mock' or 'rtsp')", src.Type)
	}

	return nil
}
