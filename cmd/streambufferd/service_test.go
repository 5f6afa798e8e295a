package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/e7canasta/stream-buffer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func parse(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return cfg
}

// TestServiceCounterLifecycle runs the tail consumer over a counter until
// the context is cancelled, then shuts down.
func TestServiceCounterLifecycle(t *testing.T) {
	cfg := parse(t, `
instance_id: test
stats_interval_s: -1
buffer: { maxlen: 20, sleep_on_read_none_ms: 1 }
source:
  type: counter
  counter: { start: 0, stop: 50 }
`)
	r, err := newRunner(cfg, quiet)
	require.NoError(t, err)
	svc := r.(*service[int, string])

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return svc.sb.Stats().Appended == 50 },
		2*time.Second, time.Millisecond)
	st := svc.sb.Stats()
	assert.Equal(t, 20, st.Len)
	assert.Equal(t, uint64(30), st.Evicted)
	assert.True(t, svc.health.Check().StreamRunning)

	cancel()
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	require.NoError(t, svc.Shutdown(shutdownCtx))
	assert.False(t, svc.sb.IsRunning())
	assert.NoError(t, svc.tail.Err())
}

func TestNewRunnerSources(t *testing.T) {
	mock := parse(t, `
instance_id: test
source: { type: mock, mock: { width: 8, height: 4, fps: 30 } }
`)
	r, err := newRunner(mock, quiet)
	require.NoError(t, err)
	assert.NotNil(t, r)

	rtsp := parse(t, `
instance_id: test
source: { type: rtsp, rtsp: { url: "http://cam", width: 8, height: 4, fps: 1 } }
`)
	_, err = newRunner(rtsp, quiet)
	assert.Error(t, err, "rtsp url scheme is checked before the pipeline")

	withBroker := parse(t, `
instance_id: cam-01
mqtt: { broker: "localhost:1883" }
source: { type: counter, counter: { stop: 3 } }
`)
	r, err = newRunner(withBroker, quiet)
	require.NoError(t, err)
	svc := r.(*service[int, string])
	require.NotNil(t, svc.emitter)
	assert.Equal(t, "stream-buffer/cam-01/items", svc.cfg.MQTT.Topic)
	assert.Equal(t, counterItem{Key: 2, Item: "s2"}, svc.encode("s2"))
}
