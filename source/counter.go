package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	streambuffer "github.com/e7canasta/stream-buffer"
)

// Counter emits "s<n>" for n in [start, stop), keyed by n. With a non-zero
// interval it emits at most one item per interval.
type Counter struct {
	start    int
	stop     int
	interval time.Duration

	mu        sync.Mutex
	next      int
	lastEmit  time.Time
	openCount int
	isOpen    bool
}

var _ streambuffer.Source[int, string] = (*Counter)(nil)

// NewCounter creates a counter over [start, stop).
func NewCounter(start, stop int, interval time.Duration) (*Counter, error) {
	if start >= stop {
		return nil, fmt.Errorf("counter: start (%d) must be < stop (%d)", start, stop)
	}
	if interval < 0 {
		return nil, fmt.Errorf("counter: interval must be >= 0, got %v", interval)
	}
	return &Counter{start: start, stop: stop, interval: interval}, nil
}

// Open rewinds the counter to start.
func (c *Counter) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = c.start
	c.lastEmit = time.Time{}
	c.openCount++
	c.isOpen = true
	return nil
}

func (c *Counter) Read() (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isOpen {
		return "", false, fmt.Errorf("counter: read before open")
	}
	if c.next >= c.stop {
		return "", false, nil
	}
	if c.interval > 0 && !c.lastEmit.IsZero() && time.Since(c.lastEmit) < c.interval {
		return "", false, nil
	}

	item := "s" + strconv.Itoa(c.next)
	c.next++
	c.lastEmit = time.Now()
	return item, true, nil
}

func (c *Counter) Close() error {
	c.mu.Lock()
	c.isOpen = false
	c.mu.Unlock()
	return nil
}

// Key parses n out of "s<n>". Items not produced by a Counter key to -1.
func (c *Counter) Key(item string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(item, "s"))
	if err != nil {
		return -1
	}
	return n
}

func (c *Counter) Info() streambuffer.Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return streambuffer.Info{
		"type":       "counter",
		"start":      c.start,
		"stop":       c.stop,
		"open_count": c.openCount,
	}
}

// PreferredBackoff paces the loop to the counter interval.
func (c *Counter) PreferredBackoff() time.Duration { return c.interval }
