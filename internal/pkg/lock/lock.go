// Package lock provides user-level locking for read-modify-write sequences
// that span more than one ledger or cooldown operation.
package lock

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrLockTimeout is returned by WithLockContext when the user's lock is not
// acquired in time.
var ErrLockTimeout = errors.New("lock acquisition timeout")

// userMutex is a one-slot semaphore, so acquisition can be abandoned on a
// context. refs counts holders and waiters; the entry is dropped at zero.
type userMutex struct {
	sem  chan struct{}
	refs int
}

// UserLock provides per-user locking. Operations touching several users
// must go through LockMany so that locks are always taken in ascending id order.
type UserLock struct {
	mu    sync.Mutex
	locks map[int64]*userMutex
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{locks: make(map[int64]*userMutex)}
}

// acquire returns the user's mutex with a reference taken.
func (ul *UserLock) acquire(userID int64) *userMutex {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	m, ok := ul.locks[userID]
	if !ok {
		m = &userMutex{sem: make(chan struct{}, 1)}
		ul.locks[userID] = m
	}
	m.refs++
	return m
}

func (ul *UserLock) release(userID int64, m *userMutex) {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(ul.locks, userID)
	}
}

// Lock acquires the lock for a user.
func (ul *UserLock) Lock(userID int64) {
	m := ul.acquire(userID)
	m.sem <- struct{}{}
}

// Unlock releases the lock for a user. Unlocking a user that is not locked is a no-op.
func (ul *UserLock) Unlock(userID int64) {
	ul.mu.Lock()
	m, ok := ul.locks[userID]
	ul.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-m.sem:
		ul.release(userID, m)
	default:
	}
}

// TryLock attempts to acquire the lock without blocking.
func (ul *UserLock) TryLock(userID int64) bool {
	m := ul.acquire(userID)
	select {
	case m.sem <- struct{}{}:
		return true
	default:
		ul.release(userID, m)
		return false
	}
}

// LockMany acquires the locks of every distinct user in ascending id order and
// returns a function releasing them in reverse order.
func (ul *UserLock) LockMany(userIDs ...int64) (unlock func()) {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	for _, id := range ids {
		ul.Lock(id)
	}
	return func() {
		for i := len(ids) - 1; i >= 0; i-- {
			ul.Unlock(ids[i])
		}
	}
}

// lockContext waits for the user's lock until ctx is done.
func (ul *UserLock) lockContext(ctx context.Context, userID int64) error {
	m := ul.acquire(userID)
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		ul.release(userID, m)
		return ctx.Err()
	}
}

// WithLockContext executes fn while holding the user's lock, giving up after
// timeout with ErrLockTimeout. A cancelled ctx returns ctx.Err().
func (ul *UserLock) WithLockContext(ctx context.Context, userID int64, timeout time.Duration, fn func() error) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := ul.lockContext(waitCtx, userID); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockTimeout
	}
	defer ul.Unlock(userID)
	return fn()
}

// IsLocked reports whether a user currently holds a lock.
// This is a point-in-time check.
func (ul *UserLock) IsLocked(userID int64) bool {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	m, ok := ul.locks[userID]
	return ok && len(m.sem) == 1
}

// Len returns the number of users with a held or awaited lock.
func (ul *UserLock) Len() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.locks)
}
