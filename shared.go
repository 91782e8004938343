package rwlock

import (
	"time"
)

// Shared is a value protected by its own RWLock.
// Reads run under a ReaderGuard and writes under a WriterGuard; the guard
// is released even if the callback panics.
type Shared[T any] struct {
	rw RWLock
	v  T
}

// NewShared creates a Shared holding v. opts configure its lock.
func NewShared[T any](v T, opts ...Option) *Shared[T] {
	s := &Shared[T]{v: v}
	s.rw.cfg.apply(opts)
	return s
}

// Lock returns the lock protecting the value.
func (s *Shared[T]) Lock() *RWLock {
	return &s.rw
}

// Read calls fn with the value while o holds shared ownership.
// It reports false without calling fn if the lock was not acquired within
// timeout.
func (s *Shared[T]) Read(o Owner, timeout time.Duration, fn func(T)) (ok bool, err error) {
	g, err := NewReaderGuard(&s.rw, o, WithTimeout(timeout))
	if err != nil {
		return false, err
	}
	if !g.IsLocked() {
		return false, nil
	}
	defer func() {
		if cerr := g.Close(); err == nil {
			err = cerr
		}
	}()

	fn(s.v)
	return true, nil
}

// Write calls fn with a pointer to the value while o holds exclusive
// ownership. It reports false without calling fn if the lock was not
// acquired within timeout.
func (s *Shared[T]) Write(o Owner, timeout time.Duration, fn func(*T)) (ok bool, err error) {
	g, err := NewWriterGuard(&s.rw, o, WithTimeout(timeout))
	if err != nil {
		return false, err
	}
	if !g.IsLocked() {
		return false, nil
	}
	defer func() {
		if cerr := g.Close(); err == nil {
			err = cerr
		}
	}()

	fn(&s.v)
	return true, nil
}

// Load returns a copy of the value.
func (s *Shared[T]) Load(o Owner, timeout time.Duration) (v T, ok bool, err error) {
	ok, err = s.Read(o, timeout, func(cur T) {
		v = cur
	})
	return v, ok, err
}

// Store replaces the value.
func (s *Shared[T]) Store(o Owner, timeout time.Duration, v T) (bool, error) {
	return s.Write(o, timeout, func(cur *T) {
		*cur = v
	})
}
