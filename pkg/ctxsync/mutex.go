// Package ctxsync contains synchronization primitives whose blocking calls
// give up when a context is done.
package ctxsync

import "context"

// Mutex is a mutual exclusion lock. Waiting for it can be abandoned through
// the context given to [Mutex.Lock]. The zero value is not usable; create
// one with [NewMutex].
type Mutex struct {
	token chan struct{}
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	m := &Mutex{token: make(chan struct{}, 1)}
	m.token <- struct{}{}
	return m
}

// Lock blocks until the mutex is acquired or ctx is done. When ctx is already
// done the mutex is never taken, even if it is free.
func (m *Mutex) Lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.token:
		return nil
	}
}

// TryLock acquires the mutex if it is free and reports whether it did.
func (m *Mutex) TryLock() bool {
	select {
	case <-m.token:
		return true
	default:
		return false
	}
}

// Unlock releases the mutex. It panics if the mutex is not locked.
func (m *Mutex) Unlock() {
	select {
	case m.token <- struct{}{}:
	default:
		panic("ctxsync: unlock of unlocked mutex")
	}
}

// Do runs fn holding the mutex.
func (m *Mutex) Do(ctx context.Context, fn func() error) error {
	if err := m.Lock(ctx); err != nil {
		return err
	}
	defer m.Unlock()
	return fn()
}
