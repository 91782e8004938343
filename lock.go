// Package rwlock provides a readers-writer lock that knows who holds it.
//
// Any number of owners may hold an RWLock for reading, or exactly one owner
// may hold it for writing. Every acquisition is bounded by a timeout, and an
// owner that tries to lock a mode it already holds gets an error instead of
// deadlocking on itself.
//
// Usage:
//
//	var rw rwlock.RWLock
//	me := rwlock.NewOwner()
//
//	g, err := rwlock.NewWriterGuard(&rw, me)
//	if err != nil {
//		return err
//	}
//	defer g.Close()
//	write(config)
package rwlock

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llxisdsh/rwlock/metrics"
)

const (
	// NoWait makes a single attempt that never blocks. Any timeout <= 0
	// behaves the same way.
	NoWait time.Duration = 0

	// Forever waits until the lock is acquired.
	Forever time.Duration = math.MaxInt64
)

// RWLock is a readers-writer lock that tracks its holders by Owner.
//
// Properties:
//   - Many readers or one writer, never both.
//   - Locking a mode the owner already holds returns ErrAlreadyReadLocked or
//     ErrAlreadyWriteLocked. This covers upgrades (read held, write
//     requested) and downgrades as well.
//   - Unlocking a mode the owner does not hold returns ErrNotReadLocked or
//     ErrNotWriteLocked.
//   - No fairness: after contention any waiter may win.
//
// Timeouts: a timeout <= 0 tries once and never blocks. A positive timeout
// waits at most that long, retrying whenever the lock is released, and
// makes one last attempt when it expires. Forever waits until success.
//
// It is zero-value usable.
type RWLock struct {
	_ noCopy

	// mu guards everything below it.
	mu      sync.Mutex
	w       word
	writer  Owner
	readers map[Owner]struct{}
	// wake is closed by every unlock. Created on demand by the first
	// waiter, so unlocks without waiters allocate nothing.
	wake chan struct{}

	cfg config
}

type mode uint8

const (
	readMode mode = iota
	writeMode
)

func (m mode) metric() metrics.LockMode {
	if m == writeMode {
		return metrics.LockModeWrite
	}
	return metrics.LockModeRead
}

func (m mode) lockOp() string {
	if m == writeMode {
		return "write lock"
	}
	return "read lock"
}

func (m mode) unlockOp() string {
	if m == writeMode {
		return "write unlock"
	}
	return "read unlock"
}

// New creates an RWLock configured by opts.
func New(opts ...Option) *RWLock {
	rw := &RWLock{}
	rw.cfg.apply(opts)
	return rw
}

// Name returns the name given by WithName, or "rwlock".
func (rw *RWLock) Name() string {
	return rw.cfg.lockName()
}

// ReadLock acquires shared ownership for o.
// It reports whether the lock was acquired within timeout.
func (rw *RWLock) ReadLock(o Owner, timeout time.Duration) (bool, error) {
	return rw.lock(readMode, o, timeout)
}

// WriteLock acquires exclusive ownership for o.
// It reports whether the lock was acquired within timeout.
func (rw *RWLock) WriteLock(o Owner, timeout time.Duration) (bool, error) {
	return rw.lock(writeMode, o, timeout)
}

// ReadUnlock releases the shared ownership held by o.
func (rw *RWLock) ReadUnlock(o Owner) error {
	return rw.unlock(readMode, o)
}

// WriteUnlock releases the exclusive ownership held by o.
func (rw *RWLock) WriteUnlock(o Owner) error {
	return rw.unlock(writeMode, o)
}

// IsReadLockedFor reports whether o holds shared ownership.
func (rw *RWLock) IsReadLockedFor(o Owner) bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	_, ok := rw.readers[o]
	return ok
}

// IsWriteLockedFor reports whether o holds exclusive ownership.
func (rw *RWLock) IsWriteLockedFor(o Owner) bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return o != 0 && rw.writer == o
}

// Readers returns the number of owners holding shared ownership.
func (rw *RWLock) Readers() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return len(rw.readers)
}

// Writer returns the owner holding exclusive ownership, if any.
func (rw *RWLock) Writer() (Owner, bool) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.writer, rw.writer != 0
}

func (rw *RWLock) lock(m mode, o Owner, timeout time.Duration) (bool, error) {
	ok, waited, err := rw.acquire(m, o, timeout)
	if err != nil {
		return false, rw.violation(m.lockOp(), o, err)
	}

	if !ok && waited > 0 {
		rw.cfg.loggerOrNop().Debug("lock wait expired",
			zap.String("op", m.lockOp()),
			zap.Stringer("owner", o),
			zap.Duration("timeout", timeout),
		)
	}
	if rw.cfg.metrics {
		rw.record(m, ok, waited)
	}
	return ok, nil
}

// acquire runs the acquisition protocol under rw.mu. waited is non-zero
// only if the caller had to block.
func (rw *RWLock) acquire(m mode, o Owner, timeout time.Duration) (ok bool, waited time.Duration, err error) {
	if o == 0 {
		return false, 0, ErrInvalidOwner
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if err := rw.checkReentry(o); err != nil {
		return false, 0, err
	}
	if rw.tryAcquire(m, o) {
		return true, 0, nil
	}
	if timeout <= 0 {
		return false, 0, nil
	}

	clock := rw.cfg.clockOrReal()
	start := clock.Now()

	// A nil channel never fires: Forever only wakes on unlocks.
	var expired <-chan time.Time
	if timeout != Forever {
		timer := clock.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.Chan()
	}

	for {
		wake := rw.waiter()
		timedOut := false

		rw.mu.Unlock()
		select {
		case <-wake:
		case <-expired:
			timedOut = true
		}
		rw.mu.Lock()

		// A wake is only a hint; the state is re-validated every time.
		if rw.tryAcquire(m, o) {
			return true, max(clock.Since(start), time.Nanosecond), nil
		}
		if timedOut {
			return false, max(clock.Since(start), time.Nanosecond), nil
		}
	}
}

// checkReentry rejects an owner that already holds rw in any mode.
// rw.mu must be held.
func (rw *RWLock) checkReentry(o Owner) error {
	if _, ok := rw.readers[o]; ok {
		return ErrAlreadyReadLocked
	}
	if rw.writer == o {
		return ErrAlreadyWriteLocked
	}
	return nil
}

// tryAcquire makes one non-blocking attempt. rw.mu must be held.
func (rw *RWLock) tryAcquire(m mode, o Owner) bool {
	switch m {
	case writeMode:
		if rw.writer != 0 || len(rw.readers) > 0 {
			return false
		}
		if !rw.w.tryLock() {
			return false
		}
		rw.writer = o
	default:
		if rw.writer != 0 {
			return false
		}
		if !rw.w.tryRLock() {
			return false
		}
		if rw.readers == nil {
			rw.readers = make(map[Owner]struct{})
		}
		rw.readers[o] = struct{}{}
	}
	return true
}

func (rw *RWLock) unlock(m mode, o Owner) error {
	if o == 0 {
		return rw.violation(m.unlockOp(), o, ErrInvalidOwner)
	}

	rw.mu.Lock()
	released := rw.release(m, o)
	rw.mu.Unlock()

	if !released {
		if m == writeMode {
			return rw.violation(m.unlockOp(), o, ErrNotWriteLocked)
		}
		return rw.violation(m.unlockOp(), o, ErrNotReadLocked)
	}
	if rw.cfg.metrics {
		metrics.MetricLockHolders.WithLabelValues(rw.cfg.metricName(), string(m.metric())).Dec()
	}
	return nil
}

// release drops the hold of o and wakes all waiters. rw.mu must be held.
func (rw *RWLock) release(m mode, o Owner) bool {
	switch m {
	case writeMode:
		if rw.writer != o {
			return false
		}
		if !rw.w.locked() {
			panic("rwlock: writer recorded without a write hold")
		}
		rw.w.unlock()
		rw.writer = 0
	default:
		if _, ok := rw.readers[o]; !ok {
			return false
		}
		if rw.w.readers() != len(rw.readers) {
			panic("rwlock: reader count out of sync with reader holds")
		}
		rw.w.rUnlock()
		delete(rw.readers, o)
	}
	rw.broadcast()
	return true
}

// waiter returns the channel closed by the next unlock. rw.mu must be held.
func (rw *RWLock) waiter() <-chan struct{} {
	if rw.wake == nil {
		rw.wake = make(chan struct{})
	}
	return rw.wake
}

// broadcast wakes every waiter. rw.mu must be held.
func (rw *RWLock) broadcast() {
	if rw.wake != nil {
		close(rw.wake)
		rw.wake = nil
	}
}

func (rw *RWLock) violation(op string, o Owner, err error) error {
	rw.cfg.loggerOrNop().Warn("lock ownership violation",
		zap.String("op", op),
		zap.Stringer("owner", o),
		zap.Error(err),
	)
	if rw.cfg.metrics {
		metrics.MetricLockViolationTotal.WithLabelValues(rw.cfg.metricName(), violationKind(err)).Inc()
	}
	return &OwnershipError{Op: op, Lock: rw.Name(), Owner: o, Err: err}
}

func (rw *RWLock) record(m mode, ok bool, waited time.Duration) {
	name, lm := rw.cfg.metricName(), string(m.metric())

	outcome := metrics.LockOutcomeAcquired
	switch {
	case ok:
		metrics.MetricLockHolders.WithLabelValues(name, lm).Inc()
	case waited > 0:
		outcome = metrics.LockOutcomeTimeout
	default:
		outcome = metrics.LockOutcomeBusy
	}
	metrics.MetricLockAcquireTotal.WithLabelValues(name, lm, string(outcome)).Inc()

	if waited > 0 {
		metrics.MetricLockWaitDuration.WithLabelValues(name, lm).Observe(waited.Seconds())
	}
}

func violationKind(err error) string {
	switch err {
	case ErrAlreadyReadLocked:
		return "already_read_locked"
	case ErrAlreadyWriteLocked:
		return "already_write_locked"
	case ErrNotReadLocked:
		return "not_read_locked"
	case ErrNotWriteLocked:
		return "not_write_locked"
	default:
		return "invalid_owner"
	}
}
