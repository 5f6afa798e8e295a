// Package rwlock provides scoped shared/exclusive access to a single value.
//
// Guarded is built on sync.RWMutex. A blocked writer stops new readers from
// acquiring the lock, so a writer waits at most for the readers already
// inside their scope.
//
// Scopes are not reentrant: calling Read from inside a Read scope can
// deadlock if a writer is queued between the two acquisitions.
package rwlock

import (
	"sync"
	"sync/atomic"
)

// Stats is a snapshot of lock usage counters.
type Stats struct {
	ReadAcquisitions  uint64
	WriteAcquisitions uint64
	WritesWaited      uint64 // write scopes that could not acquire immediately
}

// Guarded holds a value that is only reachable through Read and Write scopes.
type Guarded[V any] struct {
	mu    sync.RWMutex
	value V

	reads  atomic.Uint64
	writes atomic.Uint64
	waited atomic.Uint64
}

// New wraps value.
func New[V any](value V) *Guarded[V] {
	return &Guarded[V]{value: value}
}

// Read runs fn under the shared lock. The lock is released when fn returns,
// errors, or panics.
func (g *Guarded[V]) Read(fn func(V) error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	g.reads.Add(1)
	return fn(g.value)
}

// Write runs fn under the exclusive lock. The lock is released when fn
// returns, errors, or panics.
func (g *Guarded[V]) Write(fn func(V) error) error {
	if !g.mu.TryLock() {
		g.waited.Add(1)
		g.mu.Lock()
	}
	defer g.mu.Unlock()
	g.writes.Add(1)
	return fn(g.value)
}

// Stats returns the current counters.
func (g *Guarded[V]) Stats() Stats {
	return Stats{
		ReadAcquisitions:  g.reads.Load(),
		WriteAcquisitions: g.writes.Load(),
		WritesWaited:      g.waited.Load(),
	}
}
