package rwlock

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/llxisdsh/rwlock/internal/opt"
	"github.com/llxisdsh/rwlock/metrics"
)

func TestGroup_Basic(t *testing.T) {
	var g Group[string]
	n := 100
	// pb.MapOf reports races inside ProcessEntry under heavy contention.
	if opt.Race_ {
		n = 1
	}
	var wg sync.WaitGroup
	wg.Add(n)

	// Test Concurrent Readers
	for range n {
		go func() {
			defer wg.Done()
			o := NewOwner()
			ok, err := g.ReadLock("key", o, Forever)
			if err != nil || !ok {
				t.Errorf("ReadLock: ok=%v err=%v", ok, err)
				return
			}
			time.Sleep(time.Microsecond)
			if err := g.ReadUnlock("key", o); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// Test Writer Exclusion
	w := NewOwner()
	ok, err := g.WriteLock("key", w, NoWait)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, g.IsWriteLockedFor("key", w))

	done := make(chan struct{})
	go func() {
		o := NewOwner()
		if ok, err := g.ReadLock("key", o, Forever); err != nil || !ok {
			t.Errorf("ReadLock: ok=%v err=%v", ok, err)
		}
		close(done)
		if err := g.ReadUnlock("key", o); err != nil {
			t.Error(err)
		}
	}()

	select {
	case <-done:
		t.Fatal("ReadLock acquired while WriteLock held")
	case <-time.After(10 * time.Millisecond):
	}
	require.NoError(t, g.WriteUnlock("key", w))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReadLock not acquired after WriteUnlock")
	}
}

func TestGroup_RefCounting(t *testing.T) {
	var g Group[int]
	a, b := NewOwner(), NewOwner()

	// 1. ReadLock -> Ref=1
	ok, err := g.ReadLock(1, a, NoWait)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok = g.m.Load(1)
	require.True(t, ok, "entry should exist after ReadLock")
	require.True(t, g.IsReadLockedFor(1, a))

	// 2. Failed WriteLock leaves Ref=1
	ok, err = g.WriteLock(1, b, NoWait)
	require.NoError(t, err)
	require.False(t, ok)

	// 3. Reentry is reported and leaves Ref=1
	_, err = g.ReadLock(1, a, NoWait)
	require.ErrorIs(t, err, ErrAlreadyReadLocked)
	e, ok := g.m.Load(1)
	require.True(t, ok)
	require.EqualValues(t, 1, e.ref)

	// 4. Ref=0 -> Deleted
	require.NoError(t, g.ReadUnlock(1, a))
	_, ok = g.m.Load(1)
	require.False(t, ok, "entry should be auto-deleted after ReadUnlock (ref=0)")
	require.False(t, g.IsReadLockedFor(1, a))
}

func TestGroup_UnlockMissingKey(t *testing.T) {
	g := NewGroup[string](WithName("files"))
	o := NewOwner()

	err := g.WriteUnlock("a.txt", o)
	require.ErrorIs(t, err, ErrNotWriteLocked)

	var oe *OwnershipError
	require.True(t, errors.As(err, &oe))
	require.Equal(t, "files/a.txt", oe.Lock)

	require.ErrorIs(t, g.ReadUnlock("a.txt", o), ErrNotReadLocked)
	_, ok := g.m.Load("a.txt")
	require.False(t, ok)
}

func TestGroup_KeysAreIndependent(t *testing.T) {
	g := NewGroup[string]()
	a, b := NewOwner(), NewOwner()

	ok, err := g.WriteLock("x", a, NoWait)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.WriteLock("y", b, NoWait)
	require.NoError(t, err)
	require.True(t, ok)

	require.False(t, g.IsWriteLockedFor("x", b))
	require.ErrorIs(t, g.WriteUnlock("x", b), ErrNotWriteLocked)

	require.NoError(t, g.WriteUnlock("x", a))
	require.NoError(t, g.WriteUnlock("y", b))
}

func TestGroup_MetricsLabelledByGroup(t *testing.T) {
	name := t.Name() + "-" + NewOwner().String()
	g := NewGroup[int](WithName(name), WithMetrics())
	o := NewOwner()

	acquired := metrics.MetricLockAcquireTotal.WithLabelValues(name, "write", "acquired")
	base := testutil.ToFloat64(acquired)
	// Create the group's series before counting them.
	ok, err := g.WriteLock(-1, o, NoWait)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, g.WriteUnlock(-1, o))

	series := testutil.CollectAndCount(metrics.MetricLockAcquireTotal) +
		testutil.CollectAndCount(metrics.MetricLockHolders)

	const keys = 200
	for k := range keys {
		ok, err := g.WriteLock(k, o, NoWait)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, g.WriteUnlock(k, o))
	}

	require.Equal(t, series, testutil.CollectAndCount(metrics.MetricLockAcquireTotal)+
		testutil.CollectAndCount(metrics.MetricLockHolders))
	require.Equal(t, base+keys+1, testutil.ToFloat64(acquired))

	err = g.WriteUnlock(7, o)
	var oe *OwnershipError
	require.True(t, errors.As(err, &oe))
	require.Equal(t, name+"/7", oe.Lock)
}
