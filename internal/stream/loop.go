package stream

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// run is the producer loop goroutine of generation g.
//
// Teardown always runs in this order, whatever ended the loop:
//  1. stop flag set (idempotent)
//  2. source closed, error logged and swallowed
//  3. termination cause stored, done closed
func (s *StreamBuffer[K, T]) run(ctx context.Context, g *generation[K, T]) {
	defer close(g.done)

	err := s.loop(ctx, g)
	g.stop.Set()
	s.closeSource(g)
	g.err = err

	if err != nil {
		s.logger.Error("stream buffer loop ended with error",
			"generation", g.id,
			"error", err,
		)
		return
	}
	s.logger.Info("stream buffer stopped", "generation", g.id)
}

// loop reads the source until the stop flag is set or ctx is done.
// A panic in the source or the buffer ends the generation with an error.
func (s *StreamBuffer[K, T]) loop(ctx context.Context, g *generation[K, T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: producer loop panic: %v", ErrSource, r)
		}
	}()

	for !g.stop.IsSet() {
		if ctx.Err() != nil {
			return nil
		}

		if s.opts.autoDrop || g.buf.Len() < g.buf.MaxLen() {
			item, ok, err := s.src.Read()
			if err != nil {
				return fmt.Errorf("%w: read: %w", ErrSource, err)
			}
			if ok {
				if err := g.buf.Append(item); err != nil {
					return fmt.Errorf("append: %w", err)
				}
				continue
			}
			g.readNone.Add(1)
		} else {
			g.stalls.Add(1)
		}

		if !s.sleep(ctx, g) {
			return nil
		}
	}
	return nil
}

// sleep waits the loop backoff. It returns false when interrupted by the
// stop flag or ctx.
func (s *StreamBuffer[K, T]) sleep(ctx context.Context, g *generation[K, T]) bool {
	if s.backoff <= 0 {
		runtime.Gosched()
		return !g.stop.IsSet() && ctx.Err() == nil
	}
	t := time.NewTimer(s.backoff)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-g.stop.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *StreamBuffer[K, T]) closeSource(g *generation[K, T]) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("source close panicked", "generation", g.id, "panic", r)
		}
	}()
	if err := s.src.Close(); err != nil {
		s.logger.Warn("source close failed", "generation", g.id, "error", err)
	}
}
