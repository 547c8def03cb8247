package service

import (
	"context"
	"sync"
)

// ClassCoordinator serializes admission-affecting operations per class.
// Operations on the same class run one at a time in arrival order; operations
// on different classes proceed independently. Locks are created lazily and
// reference-counted so idle classes hold no memory.
type ClassCoordinator struct {
	mu    sync.Mutex
	locks map[string]*classLock
}

type classLock struct {
	// Buffered channel of size one. Holding the token means holding the
	// lock; blocked senders are served in FIFO order by the runtime, which
	// gives the arrival-order guarantee.
	ch   chan struct{}
	refs int
}

// NewClassCoordinator constructs an empty lock registry.
func NewClassCoordinator() *ClassCoordinator {
	return &ClassCoordinator{locks: make(map[string]*classLock)}
}

// Do runs fn while holding the exclusive lock for classID. The lock is
// released on every exit path, including a panic inside fn. Acquisition can be
// abandoned through ctx before the critical section starts; once fn is
// running it always runs to completion.
func (c *ClassCoordinator) Do(ctx context.Context, classID string, fn func(ctx context.Context) error) error {
	lock := c.retain(classID)
	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		c.release(classID)
		return ctx.Err()
	}
	defer func() {
		<-lock.ch
		c.release(classID)
	}()
	return fn(ctx)
}

func (c *ClassCoordinator) retain(classID string) *classLock {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[classID]
	if !ok {
		lock = &classLock{ch: make(chan struct{}, 1)}
		c.locks[classID] = lock
	}
	lock.refs++
	return lock
}

func (c *ClassCoordinator) release(classID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[classID]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs <= 0 {
		delete(c.locks, classID)
	}
}
