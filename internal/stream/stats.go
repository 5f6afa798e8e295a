package stream

import (
	"time"

	"github.com/e7canasta/stream-buffer/internal/rwlock"
	"github.com/google/uuid"
)

// Stats is a snapshot of the current generation.
//
// Counters are per generation and restart from zero on every Start, except
// Generations which counts starts over the StreamBuffer's lifetime.
type Stats struct {
	GenerationID uuid.UUID
	Generations  uint64
	Running      bool
	StartedAt    time.Time

	Len      int
	MaxLen   int
	AutoDrop bool

	Appended uint64 // items accepted from the source
	Evicted  uint64 // items pushed out by auto drop
	Dropped  uint64 // items removed by Drop
	ReadNone uint64 // source reads that returned nothing
	Stalls   uint64 // loop iterations skipped because the buffer was full

	Lock rwlock.Stats
}

// Stats returns a snapshot of the current generation. Zero value before the
// first Start, apart from MaxLen and AutoDrop.
func (s *StreamBuffer[K, T]) Stats() Stats {
	st := Stats{
		Generations: s.generations.Load(),
		MaxLen:      s.opts.maxLen,
		AutoDrop:    s.opts.autoDrop,
	}
	g := s.current()
	if g == nil {
		return st
	}

	st.GenerationID = g.id
	st.Running = !g.stop.IsSet()
	st.StartedAt = g.startedAt
	st.Len = g.buf.Len()
	st.Appended, st.Evicted, st.Dropped, st.Lock = g.buf.counters()
	st.ReadNone = g.readNone.Load()
	st.Stalls = g.stalls.Load()
	return st
}

// EvictionRate returns the share of appended items that auto drop pushed out
// of the buffer (0.0 to 1.0). Returns 0.0 if nothing was appended.
func EvictionRate(st Stats) float64 {
	if st.Appended == 0 {
		return 0.0
	}
	return float64(st.Evicted) / float64(st.Appended)
}
