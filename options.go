package rwlock

import (
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const defaultName = "rwlock"

var (
	realClock = clockwork.NewRealClock()
	nopLogger = zap.NewNop()
)

// config holds the optional settings of a lock. The zero config is valid.
type config struct {
	name        string
	// metricLabel overrides name as the metric label. Group sets it so
	// that all keys share one series.
	metricLabel string
	clock       clockwork.Clock
	logger      *zap.Logger
	metrics     bool
}

// Option configures an RWLock. Options are also accepted by NewShared and
// NewGroup, which pass them on to the locks they create.
type Option func(*config)

// WithName names the lock in errors, log fields and metric labels.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithClock sets the clock used to time bounded waits.
// Tests pass a clockwork.FakeClock to control timeouts.
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithLogger sets the logger. Ownership violations are logged at warn
// level and expired waits at debug level. The default logs nothing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics records acquisitions, waits, holders and violations in the
// collectors of the metrics package, labelled with the lock name.
func WithMetrics() Option {
	return func(c *config) {
		c.metrics = true
	}
}

func (c *config) apply(opts []Option) {
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.logger != nil {
		c.logger = c.logger.With(zap.String("lock", c.lockName()))
	}
}

func (c *config) lockName() string {
	if c.name == "" {
		return defaultName
	}
	return c.name
}

func (c *config) metricName() string {
	if c.metricLabel == "" {
		return c.lockName()
	}
	return c.metricLabel
}

func (c *config) clockOrReal() clockwork.Clock {
	if c.clock == nil {
		return realClock
	}
	return c.clock
}

func (c *config) loggerOrNop() *zap.Logger {
	if c.logger == nil {
		return nopLogger
	}
	return c.logger
}
