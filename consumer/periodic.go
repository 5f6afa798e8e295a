package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	streambuffer "github.com/e7canasta/stream-buffer"
	"golang.org/x/exp/constraints"
)

// Handler reads from r and does something with the data. A returned error
// stops the Periodic consumer.
type Handler[K constraints.Ordered, T any] func(ctx context.Context, r *streambuffer.Reader[K, T]) error

// Periodic calls its handler with its reader, sleeping interval between
// calls, until Stop, ctx cancellation, or a handler error.
//
// Lifecycle:
//  1. p := NewPeriodic("saver", reader, time.Second, handler)
//  2. p.Start(ctx)   // spawns 1 goroutine
//  3. p.Stop()       // blocks until the goroutine exits
type Periodic[K constraints.Ordered, T any] struct {
	name     string
	reader   *streambuffer.Reader[K, T]
	interval time.Duration
	handler  Handler[K, T]

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	err     error
}

// NewPeriodic creates a Periodic consumer. interval <= 0 calls the handler
// back to back.
func NewPeriodic[K constraints.Ordered, T any](name string, r *streambuffer.Reader[K, T], interval time.Duration, h Handler[K, T]) *Periodic[K, T] {
	return &Periodic[K, T]{name: name, reader: r, interval: interval, handler: h}
}

// Start spawns the handler loop.
func (p *Periodic[K, T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("consumer %s: already started", p.name)
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.run(ctx)
	return nil
}

// Stop cancels the loop and waits for it. Idempotent.
func (p *Periodic[K, T]) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Err returns the handler error that stopped the loop, if any. Valid after
// Stop returns.
func (p *Periodic[K, T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Periodic[K, T]) run(ctx context.Context) {
	defer p.wg.Done()
	slog.Debug("consumer starting", "consumer", p.name, "interval", p.interval)

	for ctx.Err() == nil {
		if err := p.handler(ctx, p.reader); err != nil {
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			slog.Error("consumer handler failed", "consumer", p.name, "error", err)
			return
		}
		if p.interval <= 0 {
			continue
		}

		t := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
	slog.Debug("consumer stopped", "consumer", p.name)
}
