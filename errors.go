package rwlock

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyReadLocked  = errors.New("thread is already read locked")
	ErrAlreadyWriteLocked = errors.New("thread is already write locked")
	ErrNotReadLocked      = errors.New("thread is not read locked")
	ErrNotWriteLocked     = errors.New("thread is not write locked")
	ErrInvalidOwner       = errors.New("invalid owner")
)

// OwnershipError reports a misuse of a lock by its caller: locking a mode
// the owner already holds, or unlocking a mode it does not hold.
//
// These indicate a bug in the calling code. Contention is never reported
// as an error.
type OwnershipError struct {
	Op    string
	Lock  string
	Owner Owner
	Err   error
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("rwlock %s: %s by %s: %v", e.Lock, e.Op, e.Owner, e.Err)
}

func (e *OwnershipError) Unwrap() error {
	return e.Err
}
