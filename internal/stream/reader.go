package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/e7canasta/stream-buffer/internal/sorteddeque"
	"github.com/google/uuid"
	"golang.org/x/exp/constraints"
)

// Reader is a cursor over one generation's buffer.
//
// The cursor is the last item returned by a non-peek call. Successive
// non-peek reads return strictly increasing keys and never repeat an item;
// items evicted before the reader reached them are skipped.
//
// A Reader is owned by one goroutine. Different Readers over the same
// buffer are fully concurrent.
type Reader[K constraints.Ordered, T any] struct {
	gen      *generation[K, T]
	defaults ReaderDefaults
	backoff  time.Duration

	lastKey  K
	lastItem T
	set      bool
}

func newReader[K constraints.Ordered, T any](g *generation[K, T], d ReaderDefaults) *Reader[K, T] {
	return &Reader[K, T]{gen: g, defaults: d, backoff: DefaultIterBackoff}
}

// Read returns the items following the cursor: the first item with a key
// greater than the cursor, or the oldest item when the cursor is unset, then
// up to n-1 more by position.
//
// A nil slice with a nil error is the null result of an ignored ErrNotFound.
func (r *Reader[K, T]) Read(opts ...QueryOption) ([]T, error) {
	q := r.defaults.resolve(opts)

	var out []T
	err := r.gen.buf.ReadScope(func(d sorteddeque.View[K, T]) error {
		i, ok := r.nextIndex(d)
		if !ok {
			return r.notFoundAfterCursor()
		}
		if q.n == 1 {
			item, _ := d.At(i)
			out = []T{item}
			return nil
		}
		if avail := d.Len() - i; q.strictN && avail < q.n {
			return fmt.Errorf("%w: want %d, have %d", ErrInsufficientItems, q.n, avail)
		}
		out = d.RangeByIndex(i, i+q.n, 1)
		return nil
	})
	if err != nil {
		return r.nullOr(err, q)
	}

	if !q.peek {
		r.advance(out[len(out)-1])
	}
	return out, nil
}

// Next reads a single item. ok is false for the null result.
func (r *Reader[K, T]) Next(opts ...QueryOption) (T, bool, error) {
	items, err := r.Read(append(opts[:len(opts):len(opts)], WithN(1))...)
	if err != nil || len(items) == 0 {
		var zero T
		return zero, false, err
	}
	return items[0], true, nil
}

// Range returns the buffered items with start <= key <= stop in ascending
// order, after applying OnlyNewItems, StartLE, StopGE and WithStep. An empty
// result is ErrNotFound.
func (r *Reader[K, T]) Range(start, stop K, opts ...QueryOption) ([]T, error) {
	q := r.defaults.resolve(opts)

	var out []T
	err := r.gen.buf.ReadScope(func(d sorteddeque.View[K, T]) error {
		lo, hi := start, stop

		if q.onlyNew && r.set {
			i, ok := d.SearchGT(r.lastKey)
			if !ok {
				return r.notFoundAfterCursor()
			}
			if next, _ := d.KeyAt(i); next > lo {
				lo = next
			}
		}
		if q.startLE {
			if i, ok := d.SearchLE(lo); ok {
				lo, _ = d.KeyAt(i)
			}
		}
		if q.stopGE {
			i, ok := d.SearchGE(hi)
			if !ok {
				return fmt.Errorf("%w: no key at or above %v", ErrNotFound, hi)
			}
			hi, _ = d.KeyAt(i)
		}

		out = d.RangeByKey(lo, hi, q.step)
		if len(out) == 0 {
			return fmt.Errorf("%w: no key in [%v, %v]", ErrNotFound, lo, hi)
		}
		return nil
	})
	if err != nil {
		return r.nullOr(err, q)
	}

	if !q.peek {
		r.advance(out[len(out)-1])
	}
	return out, nil
}

// Head returns the oldest buffered item.
func (r *Reader[K, T]) Head(opts ...QueryOption) (T, bool, error) {
	q := r.defaults.resolve(opts)

	var item T
	err := r.gen.buf.ReadScope(func(d sorteddeque.View[K, T]) error {
		var ok bool
		if item, ok = d.First(); !ok {
			return fmt.Errorf("%w: buffer is empty", ErrNotFound)
		}
		return nil
	})
	return r.single(item, err, q)
}

// Tail returns the newest buffered item. With OnlyNewItems it fails unless
// that item is newer than the cursor; an unset cursor behaves like a plain
// tail.
func (r *Reader[K, T]) Tail(opts ...QueryOption) (T, bool, error) {
	q := r.defaults.resolve(opts)

	var item T
	err := r.gen.buf.ReadScope(func(d sorteddeque.View[K, T]) error {
		if q.onlyNew && r.set {
			var err error
			item, err = d.FindLastGT(r.lastKey)
			return err
		}
		var ok bool
		if item, ok = d.Last(); !ok {
			return fmt.Errorf("%w: buffer is empty", ErrNotFound)
		}
		return nil
	})
	return r.single(item, err, q)
}

// IsStopped reports whether the bound generation's stop flag is set.
func (r *Reader[K, T]) IsStopped() bool { return r.gen.stop.IsSet() }

// SourceInfo returns the producer info captured when the generation started.
func (r *Reader[K, T]) SourceInfo() Info { return r.gen.buf.Info() }

// GenerationID identifies the bound generation.
func (r *Reader[K, T]) GenerationID() uuid.UUID { return r.gen.id }

// SameBuffer reports whether both readers are bound to the same generation.
func (r *Reader[K, T]) SameBuffer(other *Reader[K, T]) bool {
	return other != nil && r.gen == other.gen
}

// LastItem returns the cursor item. ok is false when the cursor is unset.
func (r *Reader[K, T]) LastItem() (T, bool) { return r.lastItem, r.set }

// LastKey returns the cursor key. ok is false when the cursor is unset.
func (r *Reader[K, T]) LastKey() (K, bool) { return r.lastKey, r.set }

// ClearCursor unsets the cursor; the next Read starts at the oldest item.
func (r *Reader[K, T]) ClearCursor() {
	var zeroK K
	var zeroT T
	r.lastKey, r.lastItem, r.set = zeroK, zeroT, false
}

// Len returns the number of items in the bound buffer.
func (r *Reader[K, T]) Len() int { return r.gen.buf.Len() }

// SetIterBackoff sets the longest wait between polls in Items and Chunks.
func (r *Reader[K, T]) SetIterBackoff(d time.Duration) {
	if d > 0 {
		r.backoff = d
	}
}

func (r *Reader[K, T]) nextIndex(d sorteddeque.View[K, T]) (int, bool) {
	if !r.set {
		return 0, d.Len() > 0
	}
	return d.SearchGT(r.lastKey)
}

func (r *Reader[K, T]) notFoundAfterCursor() error {
	if !r.set {
		return fmt.Errorf("%w: buffer is empty", ErrNotFound)
	}
	return fmt.Errorf("%w: no key above %v", ErrNotFound, r.lastKey)
}

func (r *Reader[K, T]) advance(item T) {
	r.lastItem = item
	r.lastKey = r.gen.buf.Key(item)
	r.set = true
}

func (r *Reader[K, T]) nullOr(err error, q query) ([]T, error) {
	if q.ignore && errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return nil, err
}

func (r *Reader[K, T]) single(item T, err error, q query) (T, bool, error) {
	if err != nil {
		var zero T
		_, err = r.nullOr(err, q)
		return zero, false, err
	}
	if !q.peek {
		r.advance(item)
	}
	return item, true, nil
}
