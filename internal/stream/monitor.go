package stream

import (
	"context"
	"time"
)

// LogStats logs a stats snapshot every interval until ctx is done.
//
// Besides the periodic info line it warns when, since the previous tick:
//   - auto drop evicted items (some readers may have lagged past maxlen)
//   - the loop stalled on a full buffer (nobody called Drop)
func (s *StreamBuffer[K, T]) LogStats(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev Stats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Stats()
			s.logStats(prev, st)
			prev = st
		}
	}
}

func (s *StreamBuffer[K, T]) logStats(prev, st Stats) {
	if st.GenerationID != prev.GenerationID {
		prev = Stats{}
	}

	s.logger.Info("stream buffer stats",
		"generation", st.GenerationID,
		"running", st.Running,
		"len", st.Len,
		"maxlen", st.MaxLen,
		"appended", st.Appended,
		"evicted", st.Evicted,
		"dropped", st.Dropped,
		"read_none", st.ReadNone,
		"eviction_rate", EvictionRate(st),
		"writes_waited", st.Lock.WritesWaited,
	)

	if evicted := st.Evicted - prev.Evicted; evicted > 0 {
		s.logger.Warn("stream buffer evicting items",
			"generation", st.GenerationID,
			"evicted", evicted,
			"maxlen", st.MaxLen,
		)
	}
	if stalls := st.Stalls - prev.Stalls; stalls > 0 && !st.AutoDrop {
		s.logger.Warn("stream buffer full, producer stalled",
			"generation", st.GenerationID,
			"stalls", stalls,
			"len", st.Len,
		)
	}
}
