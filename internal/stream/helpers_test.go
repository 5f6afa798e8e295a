package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func counterKey(s string) int {
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		panic(err)
	}
	return n
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func names(keys ...int) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("s%d", k)
	}
	return out
}

// fakeSource emits "s<key>" items for a fixed key list, then reports
// nothing ready (or readErr). Open rewinds it.
type fakeSource struct {
	mu          sync.Mutex
	keys        []int
	pos         int
	openErr     error
	readErr     error
	closeErr    error
	panicOnRead bool

	opened atomic.Int32
	closed atomic.Int32
}

func newFakeSource(keys ...int) *fakeSource {
	return &fakeSource{keys: keys}
}

func (f *fakeSource) Open(ctx context.Context) error {
	f.opened.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = 0
	return f.openErr
}

func (f *fakeSource) Read() (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnRead {
		panic("source exploded")
	}
	if f.pos < len(f.keys) {
		k := f.keys[f.pos]
		f.pos++
		return fmt.Sprintf("s%d", k), true, nil
	}
	if f.readErr != nil {
		return "", false, f.readErr
	}
	return "", false, nil
}

func (f *fakeSource) Close() error {
	f.closed.Add(1)
	return f.closeErr
}

func (f *fakeSource) Key(item string) int { return counterKey(item) }

func (f *fakeSource) Info() Info {
	return Info{"kind": "fake", "keys": len(f.keys)}
}

type hintedSource struct {
	*fakeSource
	hint time.Duration
}

func (h hintedSource) PreferredBackoff() time.Duration { return h.hint }

// chanSource emits whatever is sent on feed, without blocking Read.
type chanSource struct {
	feed chan int
}

func (c *chanSource) Open(context.Context) error { return nil }

func (c *chanSource) Read() (string, bool, error) {
	select {
	case k := <-c.feed:
		return fmt.Sprintf("s%d", k), true, nil
	default:
		return "", false, nil
	}
}

func (c *chanSource) Close() error        { return nil }
func (c *chanSource) Key(item string) int { return counterKey(item) }
func (c *chanSource) Info() Info          { return Info{"kind": "chan"} }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startBuffer(t *testing.T, src Source[int, string], opts ...Option) *StreamBuffer[int, string] {
	t.Helper()
	opts = append([]Option{
		WithSleepOnReadNone(time.Millisecond),
		WithLogger(discardLogger()),
	}, opts...)

	sb, err := New(src, opts...)
	require.NoError(t, err)
	require.NoError(t, sb.Start(context.Background()))
	t.Cleanup(func() { _ = sb.Stop() })
	return sb
}

func waitAppended(t *testing.T, sb *StreamBuffer[int, string], n uint64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sb.Stats().Appended == n
	}, 2*time.Second, time.Millisecond, "appended never reached %d", n)
}
