// Package health serves the liveness, readiness and metrics endpoints of
// streambufferd.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	streambuffer "github.com/e7canasta/stream-buffer"
	"github.com/e7canasta/stream-buffer/internal/emitter"
)

// StreamStats is satisfied by every *streambuffer.StreamBuffer.
type StreamStats interface {
	Stats() streambuffer.Stats
}

// EmitterStats is satisfied by *emitter.MQTTEmitter.
type EmitterStats interface {
	Stats() emitter.Stats
}

// Status represents the health state of the service
type Status struct {
	Status        string    `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds int64     `json:"uptime_seconds"`
	StreamRunning bool      `json:"stream_running"`
	Generation    string    `json:"generation,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	BufferLen     int       `json:"buffer_len"`
	BufferMaxLen  int       `json:"buffer_maxlen"`
	EvictionRate  float64   `json:"eviction_rate"`
	MQTTEnabled   bool      `json:"mqtt_enabled"`
	MQTTConnected bool      `json:"mqtt_connected"`
}

// Server exposes /health, /readiness and /metrics.
type Server struct {
	instanceID string
	stream     StreamStats
	emitter    EmitterStats // nil when MQTT is disabled
	logger     *slog.Logger
	started    time.Time

	srv *http.Server
}

// New creates a health server. em may be nil.
func New(instanceID string, stream StreamStats, em EmitterStats, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		instanceID: instanceID,
		stream:     stream,
		emitter:    em,
		logger:     logger,
		started:    time.Now(),
	}
}

// Check returns the current health status.
//
// The service is unhealthy when no generation is running and degraded when
// the MQTT emitter is enabled but disconnected.
func (s *Server) Check() Status {
	st := s.stream.Stats()
	status := Status{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		StreamRunning: st.Running,
		StartedAt:     st.StartedAt,
		BufferLen:     st.Len,
		BufferMaxLen:  st.MaxLen,
		EvictionRate:  streambuffer.EvictionRate(st),
	}
	if st.Generations > 0 {
		status.Generation = st.GenerationID.String()
	}

	if s.emitter != nil {
		status.MQTTEnabled = true
		status.MQTTConnected = s.emitter.Stats().Connected
	}

	if !status.StreamRunning {
		status.Status = "unhealthy"
	} else if status.MQTTEnabled && !status.MQTTConnected {
		status.Status = "degraded"
	}
	return status
}

// Handler returns the endpoint mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)
	mux.HandleFunc("/metrics", s.MetricsHandler)
	return mux
}

// LivenessHandler handles /health. It answers 200 while the process is
// alive.
func (s *Server) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status": "alive",
		"uptime": int64(time.Since(s.started).Seconds()),
	})
}

// ReadinessHandler handles /readiness: 503 while the stream is not running,
// 200 otherwise, even when degraded.
func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := s.Check()
	code := http.StatusOK
	if health.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}

// MetricsHandler handles /metrics with plain-text counters.
func (s *Server) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)

	st := s.stream.Stats()
	label := fmt.Sprintf("{instance=%q}", s.instanceID)
	write := func(name string, v any) {
		fmt.Fprintf(w, "streambuffer_%s%s %v\n", name, label, v)
	}

	write("uptime_seconds", int64(time.Since(s.started).Seconds()))
	write("running", boolGauge(st.Running))
	write("generations_total", st.Generations)
	write("buffer_len", st.Len)
	write("buffer_maxlen", st.MaxLen)
	write("items_appended_total", st.Appended)
	write("items_evicted_total", st.Evicted)
	write("items_dropped_total", st.Dropped)
	write("source_read_none_total", st.ReadNone)
	write("producer_stalls_total", st.Stalls)
	write("lock_read_acquisitions_total", st.Lock.ReadAcquisitions)
	write("lock_write_acquisitions_total", st.Lock.WriteAcquisitions)
	write("lock_writes_waited_total", st.Lock.WritesWaited)

	if s.emitter != nil {
		es := s.emitter.Stats()
		write("mqtt_connected", boolGauge(es.Connected))
		write("mqtt_published_total", es.Total())
		write("mqtt_errors_total", es.Errors)
	}
}

// Start serves the endpoints on port in a background goroutine.
func (s *Server) Start(port string) error {
	if s.srv != nil {
		return fmt.Errorf("health server already started")
	}
	s.srv = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting health check server",
		"port", port,
		"endpoints", []string{"/health", "/readiness", "/metrics"},
	)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("health check server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
