package worker

import (
	"sync/atomic"
	"time"
)

// Metrics tracks file job statistics. A nil *Metrics records nothing.
type Metrics struct {
	started   atomic.Uint64
	completed atomic.Uint64
	cancelled atomic.Uint64
	failed    atomic.Uint64

	bytesLoaded atomic.Int64
	bytesStored atomic.Int64

	totalNs atomic.Int64
	maxNs   atomic.Int64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordStart counts a started job.
func (m *Metrics) RecordStart() {
	if m == nil {
		return
	}
	m.started.Add(1)
}

// RecordJob records a finished job's outcome, bytes and duration.
func (m *Metrics) RecordJob(j *Job) {
	if m == nil || j == nil {
		return
	}
	switch j.State() {
	case StateCompleted:
		m.completed.Add(1)
	case StateCancelled:
		m.cancelled.Add(1)
	case StateFailed:
		m.failed.Add(1)
	default:
		return
	}

	switch j.Op() {
	case OpLoad:
		m.bytesLoaded.Add(j.Processed())
	case OpStore:
		m.bytesStored.Add(j.Processed())
	}

	ns := j.Duration().Nanoseconds()
	m.totalNs.Add(ns)
	for {
		old := m.maxNs.Load()
		if ns <= old {
			break
		}
		if m.maxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	s := MetricsSnapshot{
		Uptime:      time.Since(m.startTime),
		Started:     m.started.Load(),
		Completed:   m.completed.Load(),
		Cancelled:   m.cancelled.Load(),
		Failed:      m.failed.Load(),
		BytesLoaded: m.bytesLoaded.Load(),
		BytesStored: m.bytesStored.Load(),
		MaxJob:      time.Duration(m.maxNs.Load()),
	}
	if finished := s.Finished(); finished > 0 {
		s.AvgJob = time.Duration(m.totalNs.Load() / int64(finished))
	}
	return s
}

// Reset clears all counters.
func (m *Metrics) Reset() {
	if m == nil {
		return
	}
	m.started.Store(0)
	m.completed.Store(0)
	m.cancelled.Store(0)
	m.failed.Store(0)
	m.bytesLoaded.Store(0)
	m.bytesStored.Store(0)
	m.totalNs.Store(0)
	m.maxNs.Store(0)
	m.startTime = time.Now()
}

// MetricsSnapshot is a point-in-time view of Metrics.
type MetricsSnapshot struct {
	Uptime      time.Duration
	Started     uint64
	Completed   uint64
	Cancelled   uint64
	Failed      uint64
	BytesLoaded int64
	BytesStored int64
	AvgJob      time.Duration
	MaxJob      time.Duration
}

// Finished returns the number of jobs that reached a terminal state.
func (s MetricsSnapshot) Finished() uint64 {
	return s.Completed + s.Cancelled + s.Failed
}

// FailureRate returns the percentage of finished jobs that failed.
func (s MetricsSnapshot) FailureRate() float64 {
	if s.Finished() == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Finished()) * 100
}
