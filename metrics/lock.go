package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespaceLock = "rwlock"
	lockName      = "lock"
	lockMode      = "mode"
	lockOutcome   = "outcome"
	lockViolation = "violation"
)

type LockMode string

const (
	LockModeRead  LockMode = "read"
	LockModeWrite LockMode = "write"
)

type LockOutcome string

const (
	// LockOutcomeAcquired is a successful acquisition.
	LockOutcomeAcquired LockOutcome = "acquired"
	// LockOutcomeBusy is a failed attempt that was not allowed to wait.
	LockOutcomeBusy LockOutcome = "busy"
	// LockOutcomeTimeout is a failed attempt after waiting for the full timeout.
	LockOutcomeTimeout LockOutcome = "timeout"
)

var (
	MetricLockAcquireTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceLock,
		Name:      "acquire_total",
		Help:      "Total number of lock acquisition attempts by outcome.",
	}, []string{lockName, lockMode, lockOutcome})

	MetricLockViolationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceLock,
		Name:      "violation_total",
		Help:      "Total number of ownership contract violations.",
	}, []string{lockName, lockViolation})

	MetricLockWaitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespaceLock,
		Name:      "wait_duration_seconds",
		Help:      "Time spent blocked in a lock acquisition that had to wait.",
		Buckets: []float64{
			0.0001, // 100 µs
			0.0005, // 500 µs
			0.001,  // 1 ms
			0.005,  // 5 ms
			0.01,   // 10 ms
			0.05,   // 50 ms
			0.1,    // 100 ms
			0.5,    // 500 ms
			1,      // 1 s
			5,      // 5 s
			30,     // 30 s
		},
	}, []string{lockName, lockMode})

	MetricLockHolders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespaceLock,
		Name:      "holders",
		Help:      "Number of owners currently holding the lock.",
	}, []string{lockName, lockMode})
)
