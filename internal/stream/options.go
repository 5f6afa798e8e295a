package stream

import (
	"fmt"
	"log/slog"
	"time"
)

// DefaultSleepOnReadNone is how long the loop sleeps when the source has no
// item ready and neither an option nor a source hint says otherwise.
const DefaultSleepOnReadNone = 300 * time.Millisecond

// DefaultIterBackoff is the upper bound a continuous reader waits between
// polls when no change signal arrives.
const DefaultIterBackoff = 100 * time.Millisecond

// ReaderDefaults are the per-reader defaults applied to unset query options.
// ReadSize is also the chunk size of Reader.Chunks.
type ReaderDefaults struct {
	ReadSize          int
	Peek              bool
	StrictN           bool
	IgnoreNoItemFound bool
}

type options struct {
	maxLen         int
	autoDrop       bool
	sleep          time.Duration
	sleepSet       bool
	readerDefaults ReaderDefaults
	logger         *slog.Logger
}

// Option configures a StreamBuffer.
type Option func(*options)

// WithMaxLen sets the buffer capacity. Required, must be > 0.
func WithMaxLen(n int) Option {
	return func(o *options) { o.maxLen = n }
}

// WithAutoDrop selects the backpressure policy. true (default) evicts the
// oldest item when full; false withholds reads until Drop makes room.
func WithAutoDrop(enabled bool) Option {
	return func(o *options) { o.autoDrop = enabled }
}

// WithSleepOnReadNone sets the loop backoff after an empty read. It takes
// precedence over a source's PreferredBackoff hint.
func WithSleepOnReadNone(d time.Duration) Option {
	return func(o *options) {
		o.sleep = d
		o.sleepSet = true
	}
}

// WithReaderDefaults sets the defaults of readers made by MkReader.
func WithReaderDefaults(d ReaderDefaults) Option {
	return func(o *options) { o.readerDefaults = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) (options, error) {
	o := options{
		autoDrop:       true,
		sleep:          DefaultSleepOnReadNone,
		readerDefaults: ReaderDefaults{ReadSize: 1},
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.maxLen <= 0 {
		return o, fmt.Errorf("%w: maxlen must be > 0, got %d", ErrInvalidConfig, o.maxLen)
	}
	if o.sleepSet && o.sleep < 0 {
		return o, fmt.Errorf("%w: sleep on read none must be >= 0, got %v", ErrInvalidConfig, o.sleep)
	}
	if o.readerDefaults.ReadSize < 1 {
		o.readerDefaults.ReadSize = 1
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o, nil
}
