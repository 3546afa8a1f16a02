package session

import (
	"context"
	"sync"
)

// keyLocks is a map of per-key mutexes whose Lock honours cancellation.
// Entries are reference counted and dropped when nobody holds or waits.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{} // capacity 1; a token in the channel means held
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

func (m *keyLocks) acquireRef(key string) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *keyLocks) releaseRef(key string, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Lock blocks until key is free or ctx is done.
func (m *keyLocks) Lock(ctx context.Context, key string) error {
	l := m.acquireRef(key)
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.releaseRef(key, l)
		return ctx.Err()
	}
}

// Unlock releases key. Unlocking a key that is not held panics.
func (m *keyLocks) Unlock(key string) {
	m.mu.Lock()
	l, ok := m.locks[key]
	m.mu.Unlock()
	if !ok {
		panic("session: unlock of unlocked key " + key)
	}
	select {
	case <-l.ch:
	default:
		panic("session: unlock of unlocked key " + key)
	}
	m.releaseRef(key, l)
}

// Held reports how many keys are currently tracked.
func (m *keyLocks) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
