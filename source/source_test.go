package source

import (
	"context"
	"errors"
	"testing"
	"time"

	streambuffer "github.com/e7canasta/stream-buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterEmitsRange(t *testing.T) {
	c, err := NewCounter(3, 6, 0)
	require.NoError(t, err)

	_, _, err = c.Read()
	assert.Error(t, err, "read before open")

	require.NoError(t, c.Open(context.Background()))
	var got []string
	for {
		item, ok, err := c.Read()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, item)
	}
	assert.Equal(t, []string{"s3", "s4", "s5"}, got)
	assert.Equal(t, 5, c.Key("s5"))
	assert.Equal(t, -1, c.Key("bogus"))

	require.NoError(t, c.Close())
	require.NoError(t, c.Open(context.Background()))
	item, ok, err := c.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "s3", item, "open rewinds")
	assert.Equal(t, 2, c.Info()["open_count"])

	_, err = NewCounter(5, 5, 0)
	assert.Error(t, err)
}

func TestCounterInterval(t *testing.T) {
	c, err := NewCounter(0, 10, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))

	_, ok, _ := c.Read()
	assert.True(t, ok)
	_, ok, _ = c.Read()
	assert.False(t, ok, "paced by interval")
	assert.Equal(t, time.Hour, c.PreferredBackoff())
}

func TestMockFramePacing(t *testing.T) {
	m, err := NewMock(4, 2, 1000, "LQ")
	require.NoError(t, err)
	require.NoError(t, m.Open(context.Background()))
	defer m.Close()

	f, ok, err := m.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Len(t, f.Data, 4*2*3)
	assert.NotEmpty(t, f.TraceID)
	assert.Equal(t, "LQ", f.SourceStream)

	var last uint64 = f.Seq
	deadline := time.Now().Add(time.Second)
	for last < 5 && time.Now().Before(deadline) {
		f, ok, err = m.Read()
		require.NoError(t, err)
		if ok {
			assert.Equal(t, last+1, f.Seq)
			last = f.Seq
		}
	}
	assert.Equal(t, uint64(5), last)
	assert.Equal(t, uint64(5), m.Stats().FrameCount)
	assert.Equal(t, "4x2", m.Stats().Resolution)
	assert.Equal(t, time.Millisecond, m.PreferredBackoff())

	_, err = NewMock(0, 2, 10, "LQ")
	assert.Error(t, err)
	_, err = NewMock(4, 2, 0, "LQ")
	assert.Error(t, err)
}

func TestFrameMeta(t *testing.T) {
	f := Frame{Seq: 7, Width: 2, Height: 1, Data: make([]byte, 6), TraceID: "t"}
	meta := f.Meta()
	assert.Equal(t, uint64(7), meta.Seq)
	assert.Equal(t, 6, meta.SizeBytes)
	assert.Equal(t, uint64(7), FrameKey(f))
}

func TestRTSPConfig(t *testing.T) {
	good := RTSPConfig{URL: "rtsp://cam/stream", Width: 1280, Height: 720, TargetFPS: 2}
	assert.NoError(t, good.Validate())
	assert.Equal(t, 500*time.Millisecond, good.framePeriod())

	bad := good
	bad.URL = "http://cam"
	assert.Error(t, bad.Validate())
	bad = good
	bad.TargetFPS = 0
	assert.Error(t, bad.Validate())

	assert.Equal(t, "video/x-raw,format=RGB,width=640,height=480,framerate=5/1", framerateCaps(640, 480, 5))
	assert.Equal(t, "video/x-raw,format=RGB,width=640,height=480,framerate=1/2", framerateCaps(640, 480, 0.5))
}

func TestQuickKeysByItem(t *testing.T) {
	next := 0
	q := &Quick[int]{
		ReadFunc: func() (int, bool, error) {
			next += 10
			return next, true, nil
		},
		Backoff: 5 * time.Millisecond,
	}
	require.NoError(t, q.Open(context.Background()))
	item, ok, err := q.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10, q.Key(item))
	assert.Equal(t, 1, q.Info()["open_count"])

	assert.Error(t, (&Quick[int]{}).Open(context.Background()))
}

func TestFuncEnumeratesPerOpen(t *testing.T) {
	words := []string{"a", "b"}
	i := 0
	closed := false
	f := &Func[string]{
		OpenFunc: func(context.Context) error {
			i = 0
			return nil
		},
		ReadFunc: func() (string, bool, error) {
			if i >= len(words) {
				return "", false, nil
			}
			i++
			return words[i-1], true, nil
		},
		CloseFunc: func() error {
			closed = true
			return nil
		},
	}

	for round := 0; round < 2; round++ {
		require.NoError(t, f.Open(context.Background()))
		var got []Indexed[string]
		for {
			item, ok, err := f.Read()
			require.NoError(t, err)
			if !ok {
				break
			}
			got = append(got, item)
		}
		assert.Equal(t, []Indexed[string]{{0, "a"}, {1, "b"}}, got)
		assert.Equal(t, 1, f.Key(got[1]))
		require.NoError(t, f.Close())
	}
	assert.True(t, closed)

	boom := errors.New("boom")
	f.ReadFunc = func() (string, bool, error) { return "", false, boom }
	_, _, err := f.Read()
	assert.ErrorIs(t, err, boom)
}

// TestCounterThroughStreamBuffer runs a counter end to end.
func TestCounterThroughStreamBuffer(t *testing.T) {
	c, err := NewCounter(0, 50, 0)
	require.NoError(t, err)

	sb, err := streambuffer.New[int, string](c,
		streambuffer.WithMaxLen(100),
		streambuffer.WithSleepOnReadNone(time.Millisecond),
	)
	require.NoError(t, err)
	require.NoError(t, sb.Start(context.Background()))
	defer sb.Stop()

	require.Eventually(t, func() bool { return sb.Stats().Appended == 50 }, 2*time.Second, time.Millisecond)

	r, err := sb.MkReader()
	require.NoError(t, err)
	items, err := r.Range(10, 12)
	require.NoError(t, err)
	assert.Equal(t, []string{"s10", "s11", "s12"}, items)
	assert.Equal(t, "counter", r.SourceInfo()["type"])
}
