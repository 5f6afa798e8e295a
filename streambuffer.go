package streambuffer

import (
	"log/slog"
	"time"

	"github.com/e7canasta/stream-buffer/internal/stream"
	"golang.org/x/exp/constraints"
)

// Source is re-exported from the internal package.
// See internal/stream/source.go for the full contract.
type Source[K constraints.Ordered, T any] = stream.Source[K, T]

// BackoffHinter is optionally implemented by a Source to suggest the loop
// backoff after an empty read.
type BackoffHinter = stream.BackoffHinter

// Info is a producer metadata snapshot.
type Info = stream.Info

// StreamBuffer is the producer loop controller.
// See internal/stream/controller.go.
type StreamBuffer[K constraints.Ordered, T any] = stream.StreamBuffer[K, T]

// Reader is a cursor reader bound to one generation.
// See internal/stream/reader.go.
type Reader[K constraints.Ordered, T any] = stream.Reader[K, T]

// Option configures a StreamBuffer.
type Option = stream.Option

// QueryOption adjusts one reader call.
type QueryOption = stream.QueryOption

// ReaderDefaults are the defaults of readers made by MkReader.
type ReaderDefaults = stream.ReaderDefaults

// Stats is a snapshot of the current generation.
type Stats = stream.Stats

var (
	ErrOrderViolation    = stream.ErrOrderViolation
	ErrNotFound          = stream.ErrNotFound
	ErrInsufficientItems = stream.ErrInsufficientItems
	ErrNotStarted        = stream.ErrNotStarted
	ErrSource            = stream.ErrSource
	ErrAutoDropEnabled   = stream.ErrAutoDropEnabled
	ErrInvalidConfig     = stream.ErrInvalidConfig
)

const (
	DefaultSleepOnReadNone = stream.DefaultSleepOnReadNone
	DefaultIterBackoff     = stream.DefaultIterBackoff
)

// New creates a StreamBuffer for src. WithMaxLen is required.
//
// Lifecycle:
//  1. sb, _ := streambuffer.New(src, streambuffer.WithMaxLen(n))
//  2. sb.Start(ctx)           // opens src, spawns the producer loop
//  3. r, _ := sb.MkReader()   // one per consumer goroutine
//  4. sb.Stop()               // waits for the loop and src.Close
func New[K constraints.Ordered, T any](src Source[K, T], opts ...Option) (*StreamBuffer[K, T], error) {
	return stream.New(src, opts...)
}

// MakeReader wraps a fresh reader of sb's running generation with build,
// for custom reader types that embed *Reader.
func MakeReader[K constraints.Ordered, T any, R any](sb *StreamBuffer[K, T], build func(*Reader[K, T]) R) (R, error) {
	return stream.MakeReader(sb, build)
}

// EvictionRate returns the share of appended items evicted by auto drop.
func EvictionRate(st Stats) float64 { return stream.EvictionRate(st) }

// WithMaxLen sets the buffer capacity (required, > 0).
func WithMaxLen(n int) Option { return stream.WithMaxLen(n) }

// WithAutoDrop selects automatic eviction (true, default) or manual Drop.
func WithAutoDrop(enabled bool) Option { return stream.WithAutoDrop(enabled) }

// WithSleepOnReadNone sets the loop backoff after an empty read.
func WithSleepOnReadNone(d time.Duration) Option { return stream.WithSleepOnReadNone(d) }

// WithReaderDefaults sets the defaults of readers made by MkReader.
func WithReaderDefaults(d ReaderDefaults) Option { return stream.WithReaderDefaults(d) }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return stream.WithLogger(l) }

// WithN sets how many items Read returns.
func WithN(n int) QueryOption { return stream.WithN(n) }

// WithPeek leaves the cursor unchanged.
func WithPeek(peek bool) QueryOption { return stream.WithPeek(peek) }

// WithIgnoreNoItemFound returns the null result instead of ErrNotFound.
func WithIgnoreNoItemFound(ignore bool) QueryOption { return stream.WithIgnoreNoItemFound(ignore) }

// WithStrictN fails reads that find fewer than n items.
func WithStrictN(strict bool) QueryOption { return stream.WithStrictN(strict) }

// WithStep keeps every step-th item of a Range.
func WithStep(step int) QueryOption { return stream.WithStep(step) }

// OnlyNewItems restricts Range and Tail to items after the cursor.
func OnlyNewItems(only bool) QueryOption { return stream.OnlyNewItems(only) }

// StartLE rounds a Range start down to the nearest buffered key.
func StartLE(round bool) QueryOption { return stream.StartLE(round) }

// StopGE rounds a Range stop up to the nearest buffered key.
func StopGE(round bool) QueryOption { return stream.StopGE(round) }
