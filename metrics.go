package ringrt

import "github.com/behrlich/ringrt/internal/metrics"

// Observer is notified as the runtime submits operations to the ring and
// dispatches their completions. See WithObserver.
type Observer = metrics.Observer

// Metrics is a lock-free Observer that accumulates submission, completion
// and error counts, the in-flight high-water-mark, and average latency
// across every operation the runtime performs. Use NewMetrics and pass
// the result to WithObserver; read it back at any time with Snapshot.
type Metrics = metrics.Metrics

// MetricsSnapshot is a point-in-time copy of a Metrics' counters.
type MetricsSnapshot = metrics.Snapshot

// NewMetrics returns a Metrics ready to pass to WithObserver.
func NewMetrics() *Metrics {
	return metrics.New()
}
