package rwlock

import (
	"sync/atomic"
)

// word is the reader-writer state that actually grants holds.
// It never blocks: every acquisition is a single attempt, and waiting is
// left to the engine that owns it.
//
// Layout:
//   - bit 0: writer holds it
//   - bits 1-31: reader count
type word struct {
	_     noCopy
	state atomic.Uint32
}

const (
	rwWriteMask = 1
	rwReadShift = 1
	rwReadUnit  = 1 << rwReadShift
)

// tryLock takes the word exclusively if it is completely free.
func (w *word) tryLock() bool {
	return w.state.CompareAndSwap(0, rwWriteMask)
}

// unlock releases the exclusive hold.
func (w *word) unlock() {
	w.state.Store(0)
}

// tryRLock adds a reader if no writer holds the word.
func (w *word) tryRLock() bool {
	for {
		s := w.state.Load()
		if s&rwWriteMask != 0 {
			return false
		}
		if w.state.CompareAndSwap(s, s+rwReadUnit) {
			return true
		}
	}
}

// rUnlock removes one reader.
func (w *word) rUnlock() {
	w.state.Add(^uint32(rwReadUnit - 1))
}

// readers returns the number of shared holds.
func (w *word) readers() int {
	return int(w.state.Load() >> rwReadShift)
}

// locked reports whether a writer holds the word.
func (w *word) locked() bool {
	return w.state.Load()&rwWriteMask != 0
}

// noCopy may be added to structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
