package consumer

import (
	"context"
	"fmt"

	streambuffer "github.com/e7canasta/stream-buffer"
	"golang.org/x/exp/constraints"
)

// Sink receives one item.
type Sink[T any] func(ctx context.Context, item T) error

// PumpResult reports what a Pump delivered.
type PumpResult struct {
	Delivered uint64
	Failed    uint64
}

// PumpOption configures a Pump.
type PumpOption func(*pumpOptions)

type pumpOptions struct {
	stopOnError bool
	meter       *RateMeter
	onError     func(err error)
}

// StopOnError ends the pump at the first sink error instead of counting it
// and moving on.
func StopOnError() PumpOption {
	return func(o *pumpOptions) { o.stopOnError = true }
}

// WithRateMeter marks m for every delivered item.
func WithRateMeter(m *RateMeter) PumpOption {
	return func(o *pumpOptions) { o.meter = m }
}

// OnError is called with every sink error that does not stop the pump.
func OnError(fn func(err error)) PumpOption {
	return func(o *pumpOptions) { o.onError = fn }
}

// Pump delivers every item following r's cursor to sink, in key order,
// until the reader's generation is finished and drained, or ctx is done.
// It blocks; run it in its own goroutine.
func Pump[K constraints.Ordered, T any](ctx context.Context, r *streambuffer.Reader[K, T], sink Sink[T], opts ...PumpOption) (PumpResult, error) {
	var o pumpOptions
	for _, opt := range opts {
		opt(&o)
	}

	var res PumpResult
	for item := range r.Items(ctx) {
		if err := sink(ctx, item); err != nil {
			res.Failed++
			if o.stopOnError {
				k, _ := r.LastKey()
				return res, fmt.Errorf("pump: sink failed at key %v: %w", k, err)
			}
			if o.onError != nil {
				o.onError(err)
			}
			continue
		}
		res.Delivered++
		if o.meter != nil {
			o.meter.Mark()
		}
	}
	return res, nil
}
