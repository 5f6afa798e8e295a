package stream

import (
	"context"
	"iter"
	"time"
)

// Items yields the items following the cursor one at a time, advancing it.
//
// When nothing new is buffered it waits for the next write, the end of the
// generation, ctx, or the iteration backoff, whichever comes first. The
// sequence ends once the generation has finished and every remaining item
// was yielded, or when ctx is done.
func (r *Reader[K, T]) Items(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for batch := range r.poll(ctx, 1) {
			if !yield(batch[0]) {
				return
			}
		}
	}
}

// Chunks is like Items but yields up to ReadSize items per step.
func (r *Reader[K, T]) Chunks(ctx context.Context) iter.Seq[[]T] {
	return r.poll(ctx, r.defaults.ReadSize)
}

func (r *Reader[K, T]) poll(ctx context.Context, n int) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		for ctx.Err() == nil {
			// Snapshot both signals before reading so a write or the end of
			// the loop between the read and the wait is never missed.
			changed := r.gen.buf.Changed()
			finished := r.gen.finished()

			batch, err := r.Read(WithN(n), WithPeek(false), WithIgnoreNoItemFound(true))
			if err == nil && len(batch) > 0 {
				if !yield(batch) {
					return
				}
				continue
			}
			if finished {
				return
			}

			t := time.NewTimer(r.backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-changed:
			case <-r.gen.done:
			case <-t.C:
			}
			t.Stop()
		}
	}
}
