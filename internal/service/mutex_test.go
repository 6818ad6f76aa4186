package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (m *fetchMutex) waiterCount() int {
	m.queueMutex.Lock()
	defer m.queueMutex.Unlock()
	return len(m.waiters)
}

func TestFetchMutex_AcquireWhenFree(t *testing.T) {
	mutex := newFetchMutex()

	release, err := mutex.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, release)
	release()

	release, err = mutex.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestFetchMutex_GrantsInArrivalOrder(t *testing.T) {
	mutex := newFetchMutex().(*fetchMutex)

	holderRelease, err := mutex.Acquire(context.Background())
	require.NoError(t, err)

	order := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		waiters := i
		seq := i
		go func() {
			release, acquireErr := mutex.Acquire(context.Background())
			require.NoError(t, acquireErr)
			order <- seq
			release()
		}()
		// Each goroutine must be queued before the next starts, or the
		// arrival order is not the one we assert on.
		waitUntil(t, time.Second, func() bool {
			return mutex.waiterCount() == waiters
		}, "waiter never queued")
	}

	holderRelease()

	for expected := 1; expected <= 3; expected++ {
		select {
		case got := <-order:
			assert.Equal(t, expected, got)
		case <-time.After(time.Second):
			t.Fatalf("waiter %d was never granted the lock", expected)
		}
	}
}

func TestFetchMutex_CancelledWaiterIsSkipped(t *testing.T) {
	mutex := newFetchMutex().(*fetchMutex)

	holderRelease, err := mutex.Acquire(context.Background())
	require.NoError(t, err)

	cancelCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, acquireErr := mutex.Acquire(cancelCtx)
		firstErr <- acquireErr
	}()
	waitUntil(t, time.Second, func() bool {
		return mutex.waiterCount() == 1
	}, "first waiter never queued")

	granted := make(chan struct{})
	go func() {
		release, acquireErr := mutex.Acquire(context.Background())
		require.NoError(t, acquireErr)
		close(granted)
		release()
	}()
	waitUntil(t, time.Second, func() bool {
		return mutex.waiterCount() == 2
	}, "second waiter never queued")

	cancel()
	select {
	case acquireErr := <-firstErr:
		assert.ErrorIs(t, acquireErr, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter never returned")
	}

	holderRelease()
	select {
	case <-granted:
	case <-time.After(time.Second):
		t.Fatal("the waiter behind the cancelled one was never granted the lock")
	}
}

func TestFetchMutex_CancelledBeforeAcquire(t *testing.T) {
	mutex := newFetchMutex()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release, err := mutex.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, release)

	// The failed attempt must not have taken the lock.
	release, err = mutex.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestFetchMutex_ReleaseIsIdempotent(t *testing.T) {
	mutex := newFetchMutex()

	release, err := mutex.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release()

	acquired := make(chan struct{})
	go func() {
		again, acquireErr := mutex.Acquire(context.Background())
		require.NoError(t, acquireErr)
		close(acquired)
		again()
	}()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("double release corrupted the lock state")
	}
}

func TestFetchMutex_LateCancellationAfterGrantPassesLockOn(t *testing.T) {
	mutex := newFetchMutex().(*fetchMutex)

	holderRelease, err := mutex.Acquire(context.Background())
	require.NoError(t, err)

	// A waiter that is granted the lock and cancelled at the same time
	// must hand the grant on rather than strand it.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		release, acquireErr := mutex.Acquire(ctx)
		if acquireErr == nil {
			release()
		}
		done <- acquireErr
	}()
	waitUntil(t, time.Second, func() bool {
		return mutex.waiterCount() == 1
	}, "waiter never queued")

	holderRelease()
	cancel()
	<-done

	// Whichever way the race resolved, the lock must be acquirable.
	acquired := make(chan struct{})
	go func() {
		release, acquireErr := mutex.Acquire(context.Background())
		require.NoError(t, acquireErr)
		close(acquired)
		release()
	}()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was stranded after a grant-cancel race")
	}
}
