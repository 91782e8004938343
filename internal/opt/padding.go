package opt

import (
	"sync/atomic"
	"unsafe"
)

// Counter_ is an atomic counter padded to a full cache line, so that
// counters owned by different goroutines never share one.
type Counter_ struct {
	n atomic.Int64
	_ [(CacheLineSize_ - unsafe.Sizeof(int64(0))%CacheLineSize_) % CacheLineSize_]byte
}

// Add adds delta and returns the new value.
func (c *Counter_) Add(delta int64) int64 {
	return c.n.Add(delta)
}

// Load returns the current value.
func (c *Counter_) Load() int64 {
	return c.n.Load()
}

// Sum adds up a slice of counters.
func Sum(cs []Counter_) int64 {
	var total int64
	for i := range cs {
		total += cs[i].Load()
	}
	return total
}
