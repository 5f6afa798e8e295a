package consumer

import (
	"math"
	"sync"
	"time"
)

const (
	// rateStabilityThreshold is the maximum rate standard deviation as a
	// fraction of the mean rate for a stream to count as stable.
	rateStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of
	// the expected interval for a stream to count as stable.
	jitterStabilityThreshold = 0.20
)

// RateStats summarizes item arrival times.
type RateStats struct {
	Items    int
	Duration time.Duration

	RateMean   float64 // items per second over Duration
	RateStdDev float64
	RateMin    float64 // slowest instantaneous rate
	RateMax    float64 // fastest instantaneous rate

	JitterMean   float64 // seconds
	JitterStdDev float64
	JitterMax    float64

	// IsStable is true when stddev < 15% of the mean rate and mean jitter
	// < 20% of the expected interval.
	IsStable bool
}

// CalculateRateStats computes rate and jitter statistics from arrival times
// observed over total.
func CalculateRateStats(times []time.Time, total time.Duration) RateStats {
	n := len(times)
	st := RateStats{Items: n, Duration: total}
	if n == 0 || total <= 0 {
		return st
	}
	st.RateMean = float64(n) / total.Seconds()

	intervals := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		intervals = append(intervals, times[i].Sub(times[i-1]).Seconds())
	}

	instant := make([]float64, 0, len(intervals))
	for _, iv := range intervals {
		if iv > 0 {
			instant = append(instant, 1.0/iv)
		}
	}
	if len(instant) == 0 {
		return st
	}

	st.RateMin, st.RateMax = instant[0], instant[0]
	var sumSquares float64
	for _, r := range instant {
		st.RateMin = math.Min(st.RateMin, r)
		st.RateMax = math.Max(st.RateMax, r)
		diff := r - st.RateMean
		sumSquares += diff * diff
	}
	st.RateStdDev = math.Sqrt(sumSquares / float64(len(instant)))

	expected := 1.0 / st.RateMean
	var jitterSum float64
	jitters := make([]float64, len(intervals))
	for i, iv := range intervals {
		jitters[i] = math.Abs(iv - expected)
		jitterSum += jitters[i]
		st.JitterMax = math.Max(st.JitterMax, jitters[i])
	}
	st.JitterMean = jitterSum / float64(len(jitters))

	var jitterSquares float64
	for _, j := range jitters {
		diff := j - st.JitterMean
		jitterSquares += diff * diff
	}
	st.JitterStdDev = math.Sqrt(jitterSquares / float64(len(jitters)))

	st.IsStable = st.RateStdDev < st.RateMean*rateStabilityThreshold &&
		st.JitterMean < expected*jitterStabilityThreshold
	return st
}

// RateMeter records the arrival times of the last window items.
// Safe for concurrent use.
type RateMeter struct {
	mu      sync.Mutex
	window  int
	times   []time.Time
	started time.Time
	now     func() time.Time
}

// NewRateMeter keeps at most window arrival times (minimum 2).
func NewRateMeter(window int) *RateMeter {
	if window < 2 {
		window = 2
	}
	return &RateMeter{window: window, now: time.Now}
}

// Mark records one arrival.
func (m *RateMeter) Mark() {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.now()
	if m.started.IsZero() {
		m.started = t
	}
	if len(m.times) == m.window {
		copy(m.times, m.times[1:])
		m.times = m.times[:m.window-1]
	}
	m.times = append(m.times, t)
}

// Stats computes RateStats over the recorded window, measured from the
// first recorded arrival (or the first Mark ever, while the window is not
// yet full) to now.
func (m *RateMeter) Stats() RateStats {
	m.mu.Lock()
	times := append([]time.Time(nil), m.times...)
	started := m.started
	now := m.now()
	m.mu.Unlock()

	if len(times) == 0 {
		return RateStats{}
	}
	from := started
	if len(times) == m.window {
		from = times[0]
	}
	return CalculateRateStats(times, now.Sub(from))
}
