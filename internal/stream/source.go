package stream

import (
	"context"
	"maps"
	"time"

	"golang.org/x/exp/constraints"
)

// Info is a metadata snapshot describing a producer instance.
type Info map[string]any

// Clone returns a shallow copy. A nil Info clones to nil.
func (i Info) Clone() Info {
	return maps.Clone(i)
}

// Source is the producer contract consumed by the loop.
//
// Lifecycle per generation:
//  1. Open(ctx) once, before any Read
//  2. Read repeatedly; ok=false means nothing is ready now, not end of stream
//  3. Close once at loop teardown (errors are logged, never fatal)
//
// Key must be pure and deterministic. Keys of successive items must strictly
// increase within a generation.
type Source[K constraints.Ordered, T any] interface {
	Open(ctx context.Context) error
	Read() (item T, ok bool, err error)
	Close() error
	Key(item T) K
	Info() Info
}

// BackoffHinter is optionally implemented by a Source to suggest how long
// the loop sleeps after a Read returns nothing. A hint <= 0 is ignored.
type BackoffHinter interface {
	PreferredBackoff() time.Duration
}
