package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completed(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pending() *fakeToken { return &fakeToken{done: make(chan struct{})} }

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type message struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient implements the parts of mqtt.Client the emitter uses.
type fakeClient struct {
	mqtt.Client

	connectToken mqtt.Token
	publishErr   error

	mu           sync.Mutex
	opts         *mqtt.ClientOptions
	messages     []message
	disconnected bool
}

func (c *fakeClient) Connect() mqtt.Token { return c.connectToken }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return completed(c.publishErr)
	}
	c.messages = append(c.messages, message{topic: topic, qos: qos, payload: payload.([]byte)})
	return completed(nil)
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.disconnected
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func newTestEmitter(client *fakeClient) *MQTTEmitter {
	e := NewMQTTEmitter(Config{
		Broker:         "localhost:1883",
		ClientID:       "cam-01",
		ConnectTimeout: 50 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		client.opts = opts
		return client
	}
	return e
}

func TestConnectAndPublish(t *testing.T) {
	client := &fakeClient{connectToken: completed(nil)}
	e := newTestEmitter(client)

	err := e.Publish("t", []byte("x"), 0)
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, e.Connect(context.Background()))
	require.NotNil(t, client.opts)
	assert.Equal(t, "cam-01", client.opts.ClientID)
	require.Len(t, client.opts.Servers, 1)
	assert.Equal(t, "localhost:1883", client.opts.Servers[0].Host)

	require.NoError(t, e.Publish("stream-buffer/cam-01/items", []byte(`{"key":1}`), 1))
	require.NoError(t, e.Publish("stream-buffer/cam-01/items", []byte(`{"key":2}`), 1))

	require.Len(t, client.messages, 2)
	assert.Equal(t, byte(1), client.messages[0].qos)

	st := e.Stats()
	assert.True(t, st.Connected)
	assert.Equal(t, uint64(2), st.Published["stream-buffer/cam-01/items"])
	assert.Equal(t, uint64(2), st.Total())
	assert.Equal(t, uint64(1), st.Errors, "publish before connect")

	require.NoError(t, e.Disconnect())
	assert.True(t, client.disconnected)
	assert.False(t, e.Stats().Connected)
	assert.ErrorIs(t, e.Publish("t", nil, 0), ErrNotConnected)
}

func TestConnectFailures(t *testing.T) {
	refused := errors.New("connection refused")
	e := newTestEmitter(&fakeClient{connectToken: completed(refused)})
	err := e.Connect(context.Background())
	assert.ErrorIs(t, err, refused)

	e = newTestEmitter(&fakeClient{connectToken: pending()})
	err = e.Connect(context.Background())
	assert.ErrorContains(t, err, "timeout")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e = newTestEmitter(&fakeClient{connectToken: pending()})
	assert.ErrorIs(t, e.Connect(ctx), context.Canceled)
	assert.False(t, e.Stats().Connected)
}

func TestPublishErrorCounted(t *testing.T) {
	client := &fakeClient{connectToken: completed(nil), publishErr: errors.New("broker full")}
	e := newTestEmitter(client)
	require.NoError(t, e.Connect(context.Background()))

	err := e.Publish("t", []byte("x"), 0)
	assert.ErrorContains(t, err, "broker full")
	assert.Equal(t, uint64(1), e.Stats().Errors)
	assert.Zero(t, e.Stats().Total())
}

type recorder struct {
	topics   []string
	payloads [][]byte
}

func (r *recorder) Publish(topic string, payload []byte, qos byte) error {
	r.topics = append(r.topics, topic)
	r.payloads = append(r.payloads, payload)
	return nil
}

func TestJSONSink(t *testing.T) {
	rec := &recorder{}
	type envelope struct {
		Key  int    `json:"key"`
		Item string `json:"item"`
	}
	sink := JSONSink(rec, "items", 0, func(s string) any {
		return envelope{Key: len(s), Item: s}
	})

	require.NoError(t, sink(context.Background(), "s10"))
	require.Len(t, rec.payloads, 1)

	var got envelope
	require.NoError(t, json.Unmarshal(rec.payloads[0], &got))
	assert.Equal(t, envelope{Key: 3, Item: "s10"}, got)
	assert.Equal(t, "items", rec.topics[0])

	raw := JSONSink[string](rec, "raw", 0, nil)
	require.NoError(t, raw(context.Background(), "s1"))
	assert.JSONEq(t, `"s1"`, string(rec.payloads[1]))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, raw(ctx, "s2"), context.Canceled)
	assert.Len(t, rec.payloads, 2)
}
