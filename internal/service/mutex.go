package service

import (
	"context"
	"sync"
)

// FetchMutex serializes the fetch critical section across every session
// in the process. Waiters are admitted strictly in arrival order, and a
// waiter whose context is cancelled leaves the queue without the lock
// and without disturbing the order of those behind it.
type FetchMutex interface {
	// Acquire blocks until the lock is granted or ctx is done. On
	// success the returned release func hands the lock to the next
	// waiter; releasing more than once is a no-op.
	Acquire(ctx context.Context) (func(), error)
}

type fetchWaiter struct {
	ready chan struct{}
}

type fetchMutex struct {
	queueMutex sync.Mutex
	locked     bool
	waiters    []*fetchWaiter
}

func newFetchMutex() FetchMutex {
	return &fetchMutex{}
}

func (m *fetchMutex) Acquire(ctx context.Context) (func(), error) {
	m.queueMutex.Lock()
	if ctx.Err() != nil {
		m.queueMutex.Unlock()
		return nil, ctx.Err()
	}
	if !m.locked {
		m.locked = true
		m.queueMutex.Unlock()
		return m.releaseFunc(), nil
	}

	w := &fetchWaiter{ready: make(chan struct{})}
	m.waiters = append(m.waiters, w)
	m.queueMutex.Unlock()

	select {
	case <-w.ready:
		return m.releaseFunc(), nil
	case <-ctx.Done():
	}

	m.queueMutex.Lock()
	select {
	case <-w.ready:
		// The grant and the cancellation raced and the grant won.
		// This waiter is abandoning, so the lock moves straight on.
		m.grantNext()
		m.queueMutex.Unlock()
		return nil, ctx.Err()
	default:
	}
	for i, queued := range m.waiters {
		if queued == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			break
		}
	}
	m.queueMutex.Unlock()
	return nil, ctx.Err()
}

func (m *fetchMutex) releaseFunc() func() {
	var once sync.Once
	return func() {
		once.Do(m.release)
	}
}

func (m *fetchMutex) release() {
	m.queueMutex.Lock()
	defer m.queueMutex.Unlock()
	m.grantNext()
}

// grantNext hands the lock to the head waiter, or unlocks when the
// queue is empty. The lock never appears free while waiters exist.
// Callers must hold queueMutex.
func (m *fetchMutex) grantNext() {
	if len(m.waiters) == 0 {
		m.locked = false
		return
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	close(next.ready)
}
