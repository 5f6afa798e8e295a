package stream

import (
	"testing"
	"time"

	"github.com/e7canasta/stream-buffer/internal/sorteddeque"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferSignalsWrites(t *testing.T) {
	b, err := NewBuffer(counterKey, 3, Info{"a": 1})
	require.NoError(t, err)

	changed := b.Changed()
	require.NoError(t, b.Append("s1"))
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("append did not signal")
	}

	changed = b.Changed()
	assert.ErrorIs(t, b.Append("s0"), ErrOrderViolation)
	select {
	case <-changed:
		t.Fatal("rejected append signalled")
	default:
	}

	assert.Equal(t, 1, b.Drop(5))
	select {
	case <-changed:
	default:
		t.Fatal("drop did not signal")
	}
}

func TestBufferInfoIsASnapshot(t *testing.T) {
	info := Info{"fps": 2}
	b, err := NewBuffer(counterKey, 3, info)
	require.NoError(t, err)

	info["fps"] = 30
	got := b.Info()
	assert.Equal(t, 2, got["fps"])

	got["fps"] = 60
	assert.Equal(t, 2, b.Info()["fps"])
}

func TestBufferScopes(t *testing.T) {
	b, err := NewBuffer(counterKey, 3, nil)
	require.NoError(t, err)
	for _, item := range names(0, 1, 2, 3) {
		require.NoError(t, b.Append(item))
	}
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 3, b.MaxLen())
	assert.Equal(t, 2, b.Key("s2"))

	var keys []int
	require.NoError(t, b.ReadScope(func(d sorteddeque.View[int, string]) error {
		keys = d.Keys()
		return nil
	}))
	assert.Equal(t, []int{1, 2, 3}, keys)

	appended, evicted, dropped, lock := b.counters()
	assert.Equal(t, uint64(4), appended)
	assert.Equal(t, uint64(1), evicted)
	assert.Equal(t, uint64(0), dropped)
	assert.Equal(t, uint64(4), lock.WriteAcquisitions)
}
