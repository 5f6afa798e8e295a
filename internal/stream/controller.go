package stream

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/constraints"
)

// generation is one IDLE → RUNNING → STOPPED run of the producer loop.
// Fields other than the counters and err are immutable after Start.
type generation[K constraints.Ordered, T any] struct {
	id        uuid.UUID
	buf       *Buffer[K, T]
	stop      *stopFlag
	done      chan struct{} // closed after the loop exits and the source is closed
	startedAt time.Time

	err error // termination cause, written before done is closed

	readNone atomic.Uint64
	stalls   atomic.Uint64
}

func (g *generation[K, T]) finished() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// StreamBuffer drives one Source into a bounded shared buffer and hands out
// cursor readers over it.
//
// Lifecycle:
//  1. sb, _ := New(src, WithMaxLen(n))
//  2. sb.Start(ctx)          // opens src, spawns the loop
//  3. r, _ := sb.MkReader()  // any number of readers, one goroutine each
//  4. sb.Stop()              // synchronous, idempotent
//
// Start on a running StreamBuffer stops the current generation first.
// Thread-safety: all methods are safe for concurrent use, except Next and
// Items which share one internal reader.
type StreamBuffer[K constraints.Ordered, T any] struct {
	src     Source[K, T]
	opts    options
	backoff time.Duration
	logger  *slog.Logger

	mu          sync.Mutex // protects gen and own; serializes Start/Stop
	gen         *generation[K, T]
	own         *Reader[K, T]
	generations atomic.Uint64
}

// New creates a StreamBuffer for src. WithMaxLen is required.
func New[K constraints.Ordered, T any](src Source[K, T], opts ...Option) (*StreamBuffer[K, T], error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidConfig)
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	backoff := o.sleep
	if h, ok := src.(BackoffHinter); ok && !o.sleepSet {
		if hint := h.PreferredBackoff(); hint > 0 {
			backoff = hint
		}
	}

	return &StreamBuffer[K, T]{
		src:     src,
		opts:    o,
		backoff: backoff,
		logger:  o.logger,
	}, nil
}

// Start opens the source and spawns a new generation's loop. A running
// generation is stopped first. Open errors are returned wrapped in
// ErrSource and leave no generation running.
//
// The loop also ends when ctx is cancelled.
func (s *StreamBuffer[K, T]) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g := s.gen; g != nil && !g.finished() {
		s.stopGeneration(g)
	}

	if err := s.src.Open(ctx); err != nil {
		return fmt.Errorf("%w: open: %w", ErrSource, err)
	}

	buf, err := NewBuffer(s.src.Key, s.opts.maxLen, s.src.Info())
	if err != nil {
		_ = s.src.Close()
		return err
	}

	g := &generation[K, T]{
		id:        uuid.New(),
		buf:       buf,
		stop:      newStopFlag(),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	s.gen = g
	s.own = nil
	s.generations.Add(1)

	s.logger.Info("stream buffer started",
		"generation", g.id,
		"maxlen", s.opts.maxLen,
		"auto_drop", s.opts.autoDrop,
		"sleep_on_read_none", s.backoff,
	)

	go s.run(ctx, g)
	return nil
}

// Stop sets the current generation's stop flag and waits until its loop has
// exited and the source is closed. No-op when never started or already
// stopped.
func (s *StreamBuffer[K, T]) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g := s.gen; g != nil {
		s.stopGeneration(g)
	}
	return nil
}

func (s *StreamBuffer[K, T]) stopGeneration(g *generation[K, T]) {
	g.stop.Set()
	<-g.done
}

// Drop removes up to n of the oldest buffered items. Only valid with auto
// drop disabled, where it is how the caller makes room for the producer.
func (s *StreamBuffer[K, T]) Drop(n int) (int, error) {
	if s.opts.autoDrop {
		return 0, ErrAutoDropEnabled
	}
	g := s.current()
	if g == nil {
		return 0, ErrNotStarted
	}
	removed := g.buf.Drop(n)
	s.logger.Debug("dropped buffered items",
		"generation", g.id,
		"requested", n,
		"removed", removed,
	)
	return removed, nil
}

// MkReader returns a new cursor reader bound to the running generation.
func (s *StreamBuffer[K, T]) MkReader() (*Reader[K, T], error) {
	g := s.current()
	if g == nil || g.stop.IsSet() {
		return nil, fmt.Errorf("%w: no running generation", ErrNotStarted)
	}
	return newReader(g, s.opts.readerDefaults), nil
}

// IsRunning reports whether a generation is running.
func (s *StreamBuffer[K, T]) IsRunning() bool {
	g := s.current()
	return g != nil && !g.stop.IsSet()
}

// Info returns the source info captured by the last Start, nil before.
func (s *StreamBuffer[K, T]) Info() Info {
	if g := s.current(); g != nil {
		return g.buf.Info()
	}
	return nil
}

// GenerationID returns the current generation's ID, uuid.Nil before Start.
func (s *StreamBuffer[K, T]) GenerationID() uuid.UUID {
	if g := s.current(); g != nil {
		return g.id
	}
	return uuid.Nil
}

// Wait blocks until the current generation's loop exits.
func (s *StreamBuffer[K, T]) Wait() {
	if g := s.current(); g != nil {
		<-g.done
	}
}

// Err returns why the last generation ended: nil while running and after a
// graceful stop or context cancellation.
func (s *StreamBuffer[K, T]) Err() error {
	g := s.current()
	if g == nil || !g.finished() {
		return nil
	}
	return g.err
}

// Next reads through an internal reader that is reset on every Start.
func (s *StreamBuffer[K, T]) Next(opts ...QueryOption) (T, bool, error) {
	r, err := s.ownReader()
	if err != nil {
		var zero T
		return zero, false, err
	}
	return r.Next(opts...)
}

// Items iterates the current generation through the internal reader used by
// Next.
func (s *StreamBuffer[K, T]) Items(ctx context.Context) (iter.Seq[T], error) {
	r, err := s.ownReader()
	if err != nil {
		return nil, err
	}
	return r.Items(ctx), nil
}

func (s *StreamBuffer[K, T]) current() *generation[K, T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *StreamBuffer[K, T]) ownReader() (*Reader[K, T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == nil {
		return nil, fmt.Errorf("%w: no generation", ErrNotStarted)
	}
	if s.own == nil {
		s.own = newReader(s.gen, s.opts.readerDefaults)
	}
	return s.own, nil
}

// MakeReader builds a custom reader type around a fresh cursor reader of
// sb's running generation.
func MakeReader[K constraints.Ordered, T any, R any](sb *StreamBuffer[K, T], build func(*Reader[K, T]) R) (R, error) {
	r, err := sb.MkReader()
	if err != nil {
		var zero R
		return zero, err
	}
	return build(r), nil
}
