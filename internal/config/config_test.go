package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
instance_id: streambuffer-dev
source:
  type: counter
  counter: { start: 0, stop: 100 }
`

// TestParseAppliesDefaults validates the defaults filled in by Validate.
//
// Contract:
//   - auto_drop is true when omitted
//   - maxlen, read_size, timeouts and intervals get their defaults
//   - the MQTT emitter stays disabled without a broker
func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Buffer.MaxLen)
	assert.True(t, cfg.Buffer.AutoDropEnabled())
	assert.Zero(t, cfg.Buffer.SleepOnReadNone())
	assert.Equal(t, 1, cfg.Reader.ReadSize)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, 10*time.Second, cfg.StatsInterval())
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Empty(t, cfg.MQTT.Topic)
}

func TestParseFullDocument(t *testing.T) {
	doc := `
instance_id: cam-01
shutdown_timeout_s: 2
stats_interval_s: -1
buffer: { maxlen: 50, auto_drop: false, sleep_on_read_none_ms: 20 }
reader: { read_size: 4, strict_n: true, ignore_no_item_found: true, iter_backoff_ms: 5 }
source:
  type: mock
  mock: { width: 64, height: 48, fps: 10 }
mqtt: { broker: "localhost:1883", qos: 1 }
health: { port: "8080" }
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Buffer.MaxLen)
	assert.False(t, cfg.Buffer.AutoDropEnabled())
	assert.Equal(t, 20*time.Millisecond, cfg.Buffer.SleepOnReadNone())
	assert.Equal(t, 4, cfg.Reader.ReadSize)
	assert.True(t, cfg.Reader.StrictN)
	assert.True(t, cfg.Reader.IgnoreNoItemFound)
	assert.Equal(t, 5*time.Millisecond, cfg.Reader.IterBackoff())
	assert.Zero(t, cfg.StatsInterval(), "negative disables the stats logger")
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout())

	assert.Equal(t, "LQ", cfg.Source.Mock.Name)
	assert.Equal(t, "stream-buffer/cam-01/items", cfg.MQTT.Topic)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, "8080", cfg.Health.Port)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing instance", "source: {type: counter, counter: {stop: 1}}", "instance_id is required"},
		{"bad instance", "instance_id: Cam_01\nsource: {type: counter, counter: {stop: 1}}", "pattern"},
		{"missing source", "instance_id: a", "type is required"},
		{"unknown source", "instance_id: a\nsource: {type: webcam}", "unknown type"},
		{"empty counter", "instance_id: a\nsource: {type: counter, counter: {start: 5, stop: 5}}", "stop (5)"},
		{"mock resolution", "instance_id: a\nsource: {type: mock, mock: {fps: 1}}", "invalid resolution"},
		{"rtsp url", "instance_id: a\nsource: {type: rtsp, rtsp: {width: 1, height: 1, fps: 1}}", "url is required"},
		{"negative sleep", "instance_id: a\nbuffer: {sleep_on_read_none_ms: -1}\nsource: {type: counter, counter: {stop: 1}}", "sleep_on_read_none_ms"},
		{"bad qos", "instance_id: a\nmqtt: {qos: 3}\nsource: {type: counter, counter: {stop: 1}}", "qos"},
		{"wildcard topic", "instance_id: a\nmqtt: {broker: b, topic: 'x/#'}\nsource: {type: counter, counter: {stop: 1}}", "wildcards"},
		{"not yaml", "instance_id: [", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streambuffer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "streambuffer-dev", cfg.InstanceID)
	assert.Equal(t, SourceCounter, cfg.Source.Type)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
