package stream

import (
	"sync"
	"sync/atomic"
)

// stopFlag is a write-once cancellation flag. Set is idempotent; Done is
// closed on the first Set.
type stopFlag struct {
	once sync.Once
	set  atomic.Bool
	ch   chan struct{}
}

func newStopFlag() *stopFlag {
	return &stopFlag{ch: make(chan struct{})}
}

func (f *stopFlag) Set() {
	f.once.Do(func() {
		f.set.Store(true)
		close(f.ch)
	})
}

func (f *stopFlag) IsSet() bool { return f.set.Load() }

func (f *stopFlag) Done() <-chan struct{} { return f.ch }
