package rwlock

import (
	"fmt"
	"time"

	"github.com/llxisdsh/pb"
)

// Group hands out one RWLock per key.
//
// Features:
//   - Same ownership rules and timeouts as RWLock, per key.
//   - Infinite Keys & Auto-Cleanup: a key's lock exists only while some
//     owner holds it or is trying to acquire it.
//
// Usage:
//
//	var group rwlock.Group[string]
//	me := rwlock.NewOwner()
//
//	if ok, err := group.ReadLock("config", me, time.Second); err == nil && ok {
//		read(config)
//		group.ReadUnlock("config", me)
//	}
//
// It is zero-value usable.
type Group[K comparable] struct {
	_    noCopy
	m    pb.MapOf[K, *groupEntry]
	opts []Option
	name string
}

type groupEntry struct {
	rw  RWLock
	ref int32
}

// NewGroup creates a Group whose locks are configured by opts.
// If opts name the group, each key's lock is named "<name>/<key>" in errors
// and logs. Metrics are labelled with the group name only.
func NewGroup[K comparable](opts ...Option) *Group[K] {
	var c config
	c.apply(opts)
	return &Group[K]{opts: opts, name: c.name}
}

// ReadLock acquires shared ownership of k's lock for o.
func (g *Group[K]) ReadLock(k K, o Owner, timeout time.Duration) (bool, error) {
	return g.lock(k, readMode, o, timeout)
}

// WriteLock acquires exclusive ownership of k's lock for o.
func (g *Group[K]) WriteLock(k K, o Owner, timeout time.Duration) (bool, error) {
	return g.lock(k, writeMode, o, timeout)
}

// ReadUnlock releases the shared ownership of k held by o.
func (g *Group[K]) ReadUnlock(k K, o Owner) error {
	return g.unlock(k, readMode, o)
}

// WriteUnlock releases the exclusive ownership of k held by o.
func (g *Group[K]) WriteUnlock(k K, o Owner) error {
	return g.unlock(k, writeMode, o)
}

// IsReadLockedFor reports whether o holds shared ownership of k.
func (g *Group[K]) IsReadLockedFor(k K, o Owner) bool {
	e, ok := g.m.Load(k)
	return ok && e.rw.IsReadLockedFor(o)
}

// IsWriteLockedFor reports whether o holds exclusive ownership of k.
func (g *Group[K]) IsWriteLockedFor(k K, o Owner) bool {
	e, ok := g.m.Load(k)
	return ok && e.rw.IsWriteLockedFor(o)
}

func (g *Group[K]) lock(k K, m mode, o Owner, timeout time.Duration) (bool, error) {
	e := g.acquireRef(k)
	ok, err := e.rw.lock(m, o, timeout)
	if err != nil || !ok {
		g.releaseRef(k, e)
	}
	return ok, err
}

func (g *Group[K]) unlock(k K, m mode, o Owner) error {
	e, ok := g.m.Load(k)
	if !ok {
		// Nobody holds k, so neither does o. Report it the way a lock would.
		var rw RWLock
		rw.cfg = g.entryConfig(k)
		return rw.unlock(m, o)
	}
	if err := e.rw.unlock(m, o); err != nil {
		return err
	}
	g.releaseRef(k, e)
	return nil
}

func (g *Group[K]) acquireRef(k K) *groupEntry {
	e, _ := g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *groupEntry]) (*pb.EntryOf[K, *groupEntry], *groupEntry, bool) {
			if l != nil {
				l.Value.ref++
				return l, l.Value, true
			}
			v := &groupEntry{ref: 1}
			v.rw.cfg = g.entryConfig(k)
			return &pb.EntryOf[K, *groupEntry]{Value: v}, v, false
		},
	)
	return e
}

func (g *Group[K]) releaseRef(k K, e *groupEntry) {
	_, _ = g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *groupEntry]) (*pb.EntryOf[K, *groupEntry], *groupEntry, bool) {
			if l == nil || l.Value != e {
				return l, nil, false
			}
			l.Value.ref--
			if l.Value.ref <= 0 {
				return nil, nil, true
			}
			return l, l.Value, true
		},
	)
}

func (g *Group[K]) entryConfig(k K) config {
	var c config
	if g.name == "" {
		c.apply(g.opts)
		return c
	}
	c.apply(append(g.opts[:len(g.opts):len(g.opts)], WithName(fmt.Sprintf("%s/%v", g.name, k))))
	c.metricLabel = g.name
	return c
}
