package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	streambuffer "github.com/e7canasta/stream-buffer"
	"github.com/google/uuid"
)

// MockStats reports what a Mock has generated since its last Open.
type MockStats struct {
	FrameCount uint64
	FPSTarget  int
	FPSReal    float64
	Resolution string
}

// Mock generates synthetic black BGR24 frames at a target FPS. Read returns
// a frame once per frame period and nothing in between; a slow reader gets
// the next frame immediately rather than a burst of missed ones.
type Mock struct {
	width  int
	height int
	fps    int
	source string
	period time.Duration

	mu            sync.Mutex
	seq           uint64
	framesEmitted uint64
	startTime     time.Time
	nextAt        time.Time
	isOpen        bool
}

var _ streambuffer.Source[uint64, Frame] = (*Mock)(nil)

// NewMock creates a mock frame source.
func NewMock(width, height, fps int, source string) (*Mock, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("mock: invalid resolution %dx%d", width, height)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("mock: fps must be > 0, got %d", fps)
	}
	return &Mock{
		width:  width,
		height: height,
		fps:    fps,
		source: source,
		period: time.Second / time.Duration(fps),
	}, nil
}

func (m *Mock) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq = 0
	m.framesEmitted = 0
	m.startTime = time.Now()
	m.nextAt = m.startTime
	m.isOpen = true

	slog.Info("mock stream opened",
		"width", m.width,
		"height", m.height,
		"fps", m.fps,
		"source", m.source,
	)
	return nil
}

func (m *Mock) Read() (Frame, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isOpen {
		return Frame{}, false, fmt.Errorf("mock: read before open")
	}
	now := time.Now()
	if now.Before(m.nextAt) {
		return Frame{}, false, nil
	}

	m.nextAt = m.nextAt.Add(m.period)
	if m.nextAt.Before(now) {
		m.nextAt = now.Add(m.period)
	}
	m.seq++
	m.framesEmitted++

	return Frame{
		Seq:          m.seq,
		Timestamp:    now,
		Width:        m.width,
		Height:       m.height,
		Data:         make([]byte, m.width*m.height*3),
		SourceStream: m.source,
		TraceID:      uuid.New().String(),
	}, true, nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isOpen {
		return nil
	}
	m.isOpen = false

	slog.Info("mock stream closed",
		"frames_emitted", m.framesEmitted,
		"duration", time.Since(m.startTime),
	)
	return nil
}

func (m *Mock) Key(f Frame) uint64 { return f.Seq }

func (m *Mock) Info() streambuffer.Info {
	return streambuffer.Info{
		"type":   "mock",
		"width":  m.width,
		"height": m.height,
		"fps":    m.fps,
		"source": m.source,
		"format": "BGR24",
	}
}

// PreferredBackoff polls four times per frame period.
func (m *Mock) PreferredBackoff() time.Duration {
	if d := m.period / 4; d > time.Millisecond {
		return d
	}
	return time.Millisecond
}

// Stats returns generation statistics since the last Open.
func (m *Mock) Stats() MockStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fpsReal float64
	if m.framesEmitted > 0 {
		if elapsed := time.Since(m.startTime).Seconds(); elapsed > 0 {
			fpsReal = float64(m.framesEmitted) / elapsed
		}
	}
	return MockStats{
		FrameCount: m.framesEmitted,
		FPSTarget:  m.fps,
		FPSReal:    fpsReal,
		Resolution: fmt.Sprintf("%dx%d", m.width, m.height),
	}
}
