package emitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned by Publish before Connect or after the broker
// connection was lost.
var ErrNotConnected = errors.New("emitter: mqtt not connected")

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte) error
}

var _ Publisher = (*MQTTEmitter)(nil)

// Config configures the MQTT emitter.
type Config struct {
	Broker         string // host:port
	ClientID       string
	ConnectTimeout time.Duration // default 5s
	PublishTimeout time.Duration // default 2s
}

// MQTTEmitter publishes buffered items to an MQTT broker
type MQTTEmitter struct {
	cfg       Config
	logger    *slog.Logger
	newClient func(*mqtt.ClientOptions) mqtt.Client

	client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates a new MQTT emitter
func NewMQTTEmitter(cfg Config, logger *slog.Logger) *MQTTEmitter {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTEmitter{
		cfg:       cfg,
		logger:    logger,
		newClient: mqtt.NewClient,
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection. Reconnection after a loss is
// automatic.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		e.logger.Info("mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", e.cfg.ClientID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		e.logger.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.Broker,
		)
	}

	client := e.newClient(opts)
	e.logger.Info("connecting to mqtt broker", "broker", e.cfg.Broker)

	if err := wait(ctx, client.Connect(), e.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.client = client
	e.connected = true
	e.mu.Unlock()
	return nil
}

// Publish sends payload to topic and waits for the broker acknowledgement
// required by qos.
func (e *MQTTEmitter) Publish(topic string, payload []byte, qos byte) error {
	e.mu.RLock()
	client, connected := e.client, e.connected
	e.mu.RUnlock()

	if client == nil || !connected {
		e.countError()
		return ErrNotConnected
	}

	token := client.Publish(topic, qos, false, payload)
	if err := wait(context.Background(), token, e.cfg.PublishTimeout); err != nil {
		e.countError()
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	e.logger.Debug("item published",
		"topic", topic,
		"qos", qos,
		"size", len(payload),
	)
	return nil
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() error {
	e.mu.Lock()
	client := e.client
	e.connected = false
	e.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250) // 250ms grace period
		e.logger.Info("mqtt disconnected")
	}
	return nil
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{
		Connected: e.connected,
		Published: maps.Clone(e.published),
		Errors:    e.errors,
	}
}

// Total returns the number of payloads published across all topics.
func (s Stats) Total() uint64 {
	var n uint64
	for _, v := range s.Published {
		n += v
	}
	return n
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// wait blocks until token completes, ctx is done or timeout elapses.
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return fmt.Errorf("timeout after %v", timeout)
	}
}
