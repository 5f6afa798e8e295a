package stream

import (
	"sync"
	"sync/atomic"

	"github.com/e7canasta/stream-buffer/internal/rwlock"
	"github.com/e7canasta/stream-buffer/internal/sorteddeque"
	"golang.org/x/exp/constraints"
)

// Buffer is the shared state of one generation: a bounded key-sorted deque
// behind a reader/writer lock, plus the producer info captured at start.
//
// The deque is only reachable through ReadScope and WriteScope. Every
// successful write scope closes the current change channel so that readers
// waiting for new data wake up.
type Buffer[K constraints.Ordered, T any] struct {
	deque *rwlock.Guarded[*sorteddeque.Deque[K, T]]
	key   func(T) K
	max   int
	info  Info

	sigMu   sync.Mutex
	changed chan struct{}

	appended atomic.Uint64
	dropped  atomic.Uint64
}

// NewBuffer creates an empty buffer holding at most maxLen items.
func NewBuffer[K constraints.Ordered, T any](key func(T) K, maxLen int, info Info) (*Buffer[K, T], error) {
	d, err := sorteddeque.New(key, maxLen)
	if err != nil {
		return nil, err
	}
	return &Buffer[K, T]{
		deque:   rwlock.New(d),
		key:     key,
		max:     d.MaxLen(),
		info:    info.Clone(),
		changed: make(chan struct{}),
	}, nil
}

// ReadScope runs fn with shared access to the deque. fn must not retain the
// view or call back into the buffer.
func (b *Buffer[K, T]) ReadScope(fn func(sorteddeque.View[K, T]) error) error {
	return b.deque.Read(func(d *sorteddeque.Deque[K, T]) error {
		return fn(d)
	})
}

// WriteScope runs fn with exclusive access to the deque and wakes waiting
// readers when fn succeeds.
func (b *Buffer[K, T]) WriteScope(fn func(*sorteddeque.Deque[K, T]) error) error {
	if err := b.deque.Write(fn); err != nil {
		return err
	}
	b.signal()
	return nil
}

// Append adds item, evicting the oldest item when full.
func (b *Buffer[K, T]) Append(item T) error {
	err := b.WriteScope(func(d *sorteddeque.Deque[K, T]) error {
		return d.Append(item)
	})
	if err == nil {
		b.appended.Add(1)
	}
	return err
}

// Drop removes up to n of the oldest items and returns how many were removed.
func (b *Buffer[K, T]) Drop(n int) int {
	var removed int
	_ = b.WriteScope(func(d *sorteddeque.Deque[K, T]) error {
		removed = d.Drop(n)
		return nil
	})
	b.dropped.Add(uint64(removed))
	return removed
}

// Len returns the number of buffered items.
func (b *Buffer[K, T]) Len() int {
	var n int
	_ = b.ReadScope(func(d sorteddeque.View[K, T]) error {
		n = d.Len()
		return nil
	})
	return n
}

// MaxLen returns the capacity.
func (b *Buffer[K, T]) MaxLen() int { return b.max }

// Key derives the ordering key of item.
func (b *Buffer[K, T]) Key(item T) K { return b.key(item) }

// Info returns a copy of the producer info snapshot.
func (b *Buffer[K, T]) Info() Info { return b.info.Clone() }

// Changed returns a channel that is closed on the next successful write.
// Take the channel before checking for data to avoid missing a wake-up.
func (b *Buffer[K, T]) Changed() <-chan struct{} {
	b.sigMu.Lock()
	defer b.sigMu.Unlock()
	return b.changed
}

func (b *Buffer[K, T]) signal() {
	b.sigMu.Lock()
	close(b.changed)
	b.changed = make(chan struct{})
	b.sigMu.Unlock()
}

// counters returns appended, evicted and manually dropped totals plus the
// lock usage.
func (b *Buffer[K, T]) counters() (appended, evicted, dropped uint64, lock rwlock.Stats) {
	_ = b.deque.Read(func(d *sorteddeque.Deque[K, T]) error {
		evicted = d.Evicted()
		return nil
	})
	return b.appended.Load(), evicted, b.dropped.Load(), b.deque.Stats()
}
