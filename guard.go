package rwlock

import (
	"time"
)

type guardConfig struct {
	autoLock bool
	timeout  time.Duration
}

// GuardOption configures NewReaderGuard and NewWriterGuard.
type GuardOption func(*guardConfig)

// WithoutAutoLock creates the guard unheld; call Lock to acquire.
func WithoutAutoLock() GuardOption {
	return func(c *guardConfig) {
		c.autoLock = false
	}
}

// WithTimeout bounds the acquisition made by the constructor.
// The default is Forever.
func WithTimeout(timeout time.Duration) GuardOption {
	return func(c *guardConfig) {
		c.timeout = timeout
	}
}

// guard ties one mode of an RWLock to one owner.
//
// locked is the guard's own record of whether it holds the lock. It is
// trusted on Close without asking the lock, so a guard must stay on the
// goroutine that owns it.
type guard struct {
	rw     *RWLock
	owner  Owner
	m      mode
	locked bool
}

func newGuard(rw *RWLock, o Owner, m mode, opts []GuardOption) (guard, error) {
	c := guardConfig{autoLock: true, timeout: Forever}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}

	g := guard{rw: rw, owner: o, m: m}
	if c.autoLock {
		if _, err := g.Lock(c.timeout); err != nil {
			return guard{}, err
		}
	}
	return g, nil
}

// Lock acquires the lock if the guard does not hold it yet and reports
// whether the guard holds it afterwards.
func (g *guard) Lock(timeout time.Duration) (bool, error) {
	if g.locked {
		return true, nil
	}
	ok, err := g.rw.lock(g.m, g.owner, timeout)
	if err != nil {
		return false, err
	}
	g.locked = ok
	return ok, nil
}

// Unlock releases the lock. Like the lock itself, it fails with
// ErrNotReadLocked or ErrNotWriteLocked if the owner does not hold it.
func (g *guard) Unlock() error {
	if err := g.rw.unlock(g.m, g.owner); err != nil {
		return err
	}
	g.locked = false
	return nil
}

// IsLocked reports whether the guard holds the lock.
func (g *guard) IsLocked() bool {
	return g.locked
}

// Close releases the lock if the guard holds it. It is meant to be
// deferred right after the guard is created.
func (g *guard) Close() error {
	if !g.locked {
		return nil
	}
	return g.Unlock()
}

// ReaderGuard holds shared ownership of an RWLock for one owner.
//
//	g, err := rwlock.NewReaderGuard(rw, me, rwlock.WithTimeout(time.Second))
//	if err != nil {
//		return err
//	}
//	defer g.Close()
//	if !g.IsLocked() {
//		return errBusy
//	}
type ReaderGuard struct {
	guard
}

// NewReaderGuard creates a ReaderGuard and, unless WithoutAutoLock is
// given, acquires shared ownership. Contention leaves the guard unheld;
// an ownership violation is returned as an error.
func NewReaderGuard(rw *RWLock, o Owner, opts ...GuardOption) (*ReaderGuard, error) {
	g, err := newGuard(rw, o, readMode, opts)
	if err != nil {
		return nil, err
	}
	return &ReaderGuard{guard: g}, nil
}

// WriterGuard holds exclusive ownership of an RWLock for one owner.
type WriterGuard struct {
	guard
}

// NewWriterGuard creates a WriterGuard and, unless WithoutAutoLock is
// given, acquires exclusive ownership. Contention leaves the guard unheld;
// an ownership violation is returned as an error.
func NewWriterGuard(rw *RWLock, o Owner, opts ...GuardOption) (*WriterGuard, error) {
	g, err := newGuard(rw, o, writeMode, opts)
	if err != nil {
		return nil, err
	}
	return &WriterGuard{guard: g}, nil
}
