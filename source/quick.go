package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	streambuffer "github.com/e7canasta/stream-buffer"
	"golang.org/x/exp/constraints"
)

// ReadFunc returns the next item, or ok=false when nothing is ready.
type ReadFunc[T any] func() (item T, ok bool, err error)

// Quick adapts a read function whose items are their own keys. Open and
// Close hooks are optional.
type Quick[K constraints.Ordered] struct {
	ReadFunc  ReadFunc[K]
	OpenFunc  func(ctx context.Context) error
	CloseFunc func() error
	Backoff   time.Duration

	mu       sync.Mutex
	openedAt time.Time
	opens    int
}

var _ streambuffer.Source[int, int] = (*Quick[int])(nil)

func (q *Quick[K]) Open(ctx context.Context) error {
	if q.ReadFunc == nil {
		return fmt.Errorf("quick source: read function is required")
	}
	if q.OpenFunc != nil {
		if err := q.OpenFunc(ctx); err != nil {
			return err
		}
	}
	q.mu.Lock()
	q.openedAt = time.Now()
	q.opens++
	q.mu.Unlock()
	return nil
}

func (q *Quick[K]) Read() (K, bool, error) { return q.ReadFunc() }

func (q *Quick[K]) Close() error {
	if q.CloseFunc != nil {
		return q.CloseFunc()
	}
	return nil
}

func (q *Quick[K]) Key(item K) K { return item }

func (q *Quick[K]) Info() streambuffer.Info {
	q.mu.Lock()
	defer q.mu.Unlock()
	return streambuffer.Info{"type": "quick", "open_time": q.openedAt, "open_count": q.opens}
}

func (q *Quick[K]) PreferredBackoff() time.Duration { return q.Backoff }

// Indexed is an item tagged with its read index within one generation.
type Indexed[T any] struct {
	Index int
	Value T
}

// Func adapts any read function. Items are enumerated from 0 on every Open
// and keyed by that index, so values need no ordering of their own.
type Func[T any] struct {
	ReadFunc  ReadFunc[T]
	OpenFunc  func(ctx context.Context) error
	CloseFunc func() error
	InfoFunc  func() streambuffer.Info
	Backoff   time.Duration

	mu       sync.Mutex
	idx      int
	openedAt time.Time
}

var _ streambuffer.Source[int, Indexed[string]] = (*Func[string])(nil)

func (f *Func[T]) Open(ctx context.Context) error {
	if f.ReadFunc == nil {
		return fmt.Errorf("func source: read function is required")
	}
	if f.OpenFunc != nil {
		if err := f.OpenFunc(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.idx = 0
	f.openedAt = time.Now()
	f.mu.Unlock()
	return nil
}

func (f *Func[T]) Read() (Indexed[T], bool, error) {
	v, ok, err := f.ReadFunc()
	if err != nil || !ok {
		return Indexed[T]{}, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item := Indexed[T]{Index: f.idx, Value: v}
	f.idx++
	return item, true, nil
}

func (f *Func[T]) Close() error {
	if f.CloseFunc != nil {
		return f.CloseFunc()
	}
	return nil
}

func (f *Func[T]) Key(item Indexed[T]) int { return item.Index }

func (f *Func[T]) Info() streambuffer.Info {
	if f.InfoFunc != nil {
		return f.InfoFunc()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return streambuffer.Info{"type": "func", "open_time": f.openedAt}
}

func (f *Func[T]) PreferredBackoff() time.Duration { return f.Backoff }
