package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestConcurrentBalanceSafetyProperty checks that locked read-modify-write
// sequences on one user equal their sequential execution.
func TestConcurrentBalanceSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(-1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expected := initialBalance
		for i := range amounts {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")
		ul := NewUserLock()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				ul.Lock(userID)
				defer ul.Unlock(userID)
				balance += amount
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch: expected %d, got %d", expected, balance)
		}
	})
}

// TestLockManyTransferConservationProperty runs opposing transfers between the
// same pair of users concurrently. Ordered locking must neither deadlock nor
// lose coins.
func TestLockManyTransferConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(1, 1000).Draw(t, "a")
		b := rapid.Int64Range(1001, 2000).Draw(t, "b")
		numOps := rapid.IntRange(2, 30).Draw(t, "numOps")

		ul := NewUserLock()
		balances := map[int64]int64{a: 5000, b: 5000}

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			from, to := a, b
			if i%2 == 1 {
				from, to = b, a
			}
			go func(from, to int64) {
				defer wg.Done()
				unlock := ul.LockMany(from, to)
				defer unlock()
				balances[from] -= 10
				balances[to] += 10
			}(from, to)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("LockMany deadlocked")
		}

		if balances[a]+balances[b] != 10000 {
			t.Fatalf("coins not conserved: %d + %d", balances[a], balances[b])
		}
	})
}

// TestLockManyDeduplicates checks that passing the same user twice does not self-deadlock.
func TestLockManyDeduplicates(t *testing.T) {
	ul := NewUserLock()

	unlock := ul.LockMany(7, 7, 3)
	assert.True(t, ul.IsLocked(7))
	assert.True(t, ul.IsLocked(3))
	unlock()

	assert.False(t, ul.IsLocked(7))
	assert.False(t, ul.IsLocked(3))
}

// TestTryLockPreventsConcurrentSessionsProperty checks that TryLock admits at
// least one contender and leaves the lock free afterwards.
func TestTryLockPreventsConcurrentSessionsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.Int64Range(1, 1000000).Draw(t, "userID")
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")

		ul := NewUserLock()
		var successCount atomic.Int32
		var wg sync.WaitGroup
		wg.Add(numAttempts)
		start := make(chan struct{})

		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				<-start
				if ul.TryLock(userID) {
					successCount.Add(1)
					ul.Unlock(userID)
				}
			}()
		}
		close(start)
		wg.Wait()

		if successCount.Load() < 1 {
			t.Fatalf("at least one TryLock should succeed, got %d", successCount.Load())
		}
		if !ul.TryLock(userID) {
			t.Fatal("lock should be available after all operations complete")
		}
		ul.Unlock(userID)
	})
}

func TestWithLockContext_Timeout(t *testing.T) {
	ul := NewUserLock()
	ul.Lock(42)

	called := false
	err := ul.WithLockContext(context.Background(), 42, 20*time.Millisecond, func() error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, called)

	ul.Unlock(42)

	err = ul.WithLockContext(context.Background(), 42, time.Second, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestUserLock_ReleasesEntries(t *testing.T) {
	ul := NewUserLock()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			unlock := ul.LockMany(id, id+1)
			unlock()
		}(int64(i % 5))
	}
	wg.Wait()
	assert.Equal(t, 0, ul.Len())

	ul.Lock(1)
	assert.False(t, ul.TryLock(1))
	assert.Equal(t, 1, ul.Len(), "failed TryLock leaves no extra entry")
	ul.Unlock(1)
	ul.Unlock(1)
	assert.Equal(t, 0, ul.Len())
}

func TestWithLockContext_Cancelled(t *testing.T) {
	ul := NewUserLock()
	ul.Lock(42)
	defer ul.Unlock(42)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ul.WithLockContext(ctx, 42, time.Second, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
