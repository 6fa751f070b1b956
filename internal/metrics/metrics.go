// Package metrics provides the runtime's observability surface: an
// Observer interface the driver calls on every submit/complete, and a
// lock-free Metrics implementation of it built on atomic counters, the
// way the teacher's own ublk Metrics/Observer pair tracks device I/O.
package metrics

import "sync/atomic"

// Observer is notified as operations are submitted to and completed by
// the ring. Implementations must not block or panic; the driver calls
// them inline on the submitting and reaping goroutines.
type Observer interface {
	// ObserveSubmit is called once an event has been handed to the kernel.
	ObserveSubmit(op string)

	// ObserveComplete is called once an event's completion has been
	// dispatched, with the time elapsed since its ObserveSubmit call and
	// the error (if any) the operation resolved with.
	ObserveComplete(op string, latencyNs uint64, err error)
}

// NoOpObserver discards every observation. It is the default Observer
// for a Driver that was not given one, so the hot path never needs a
// nil check.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSubmit(string)                  {}
func (NoOpObserver) ObserveComplete(string, uint64, error) {}

// Metrics is a lock-free Observer that accumulates submission counts,
// completion counts, error counts, in-flight high-water-mark, and total
// latency across every operation. Snapshot reads every counter and derives
// the average latency; it loads each counter separately, so while
// operations keep completing concurrently the values it returns are not
// guaranteed to come from one single instant.
type Metrics struct {
	Submitted atomic.Uint64
	Completed atomic.Uint64
	Errors    atomic.Uint64

	inFlight     atomic.Int64
	highWaterMark atomic.Int64

	TotalLatencyNs atomic.Uint64
}

// New returns a zeroed Metrics ready to observe.
func New() *Metrics {
	return &Metrics{}
}

// ObserveSubmit implements Observer.
func (m *Metrics) ObserveSubmit(op string) {
	m.Submitted.Add(1)
	cur := m.inFlight.Add(1)
	for {
		hw := m.highWaterMark.Load()
		if cur <= hw {
			return
		}
		if m.highWaterMark.CompareAndSwap(hw, cur) {
			return
		}
	}
}

// ObserveComplete implements Observer.
func (m *Metrics) ObserveComplete(op string, latencyNs uint64, err error) {
	m.Completed.Add(1)
	m.inFlight.Add(-1)
	m.TotalLatencyNs.Add(latencyNs)
	if err != nil {
		m.Errors.Add(1)
	}
}

// Snapshot is a point-in-time copy of Metrics' counters.
type Snapshot struct {
	Submitted            uint64
	Completed            uint64
	Errors               uint64
	InFlightHighWaterMark int64
	AvgLatencyNs         uint64
}

// Snapshot reads every counter and derives the average per-operation
// latency observed so far.
func (m *Metrics) Snapshot() Snapshot {
	completed := m.Completed.Load()
	total := m.TotalLatencyNs.Load()
	s := Snapshot{
		Submitted:             m.Submitted.Load(),
		Completed:             completed,
		Errors:                m.Errors.Load(),
		InFlightHighWaterMark: m.highWaterMark.Load(),
	}
	if completed > 0 {
		s.AvgLatencyNs = total / completed
	}
	return s
}

var (
	_ Observer = NoOpObserver{}
	_ Observer = (*Metrics)(nil)
)
