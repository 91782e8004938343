package rwlock

import (
	"strconv"
	"sync/atomic"
)

// Owner identifies the holder of a lock.
//
// Goroutines are anonymous, so every goroutine that takes part in locking
// creates its own Owner with NewOwner and passes it to each call. An Owner
// must not be used by two goroutines at the same time.
//
// The zero Owner is invalid.
type Owner uint64

var lastOwner atomic.Uint64

// NewOwner returns a process-unique Owner. Owners are never reused.
func NewOwner() Owner {
	return Owner(lastOwner.Add(1))
}

func (o Owner) String() string {
	return "owner-" + strconv.FormatUint(uint64(o), 10)
}
