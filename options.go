package ringrt

import (
	"github.com/behrlich/ringrt/internal/logging"
	"github.com/behrlich/ringrt/internal/metrics"
)

// defaultDepth is the submission queue depth used when New is called
// without WithDepth, chosen as a power of two comfortably large enough
// for a handful of concurrent tasks without over-committing kernel
// memory for the ring's mmap'd regions.
const defaultDepth = 64

// Option configures a Runtime at construction. Unset options fall back to
// the defaults New documents.
type Option func(*config)

type config struct {
	depth    uint32
	logger   *logging.Logger
	observer metrics.Observer
}

// WithDepth sets the submission queue depth, i.e. the maximum number of
// operations the runtime will have in flight against the kernel at once.
// Depth must be a power of two; New returns an error otherwise.
func WithDepth(depth uint32) Option {
	return func(c *config) { c.depth = depth }
}

// WithLogger overrides the runtime's logger. The default logs at info
// level to stderr, in the shape internal/logging documents.
func WithLogger(logger *logging.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithObserver installs an Observer that is notified of every submit and
// completion. The default Runtime observes nothing; pass a *Metrics (see
// NewMetrics) to collect submission/completion/error counts, in-flight
// high-water-mark, and average latency.
func WithObserver(observer Observer) Option {
	return func(c *config) { c.observer = observer }
}

func resolveConfig(opts []Option) config {
	c := config{depth: defaultDepth}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func isPowerOfTwo(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}
