// Package lock serializes mutations of one interview session. Locks are keyed by session id,
// so different sessions never contend.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockTimeout is returned when the lock could not be acquired before ctx ended.
var ErrLockTimeout = errors.New("timed out acquiring session lock")

// Locker grants exclusive access to a key. The returned func releases it.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type keyedMutex struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex. Entries are removed once nobody holds or waits on them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedMutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyedMutex)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	km, ok := l.locks[key]
	if !ok {
		km = &keyedMutex{ch: make(chan struct{}, 1)}
		l.locks[key] = km
	}
	km.refs++
	l.mu.Unlock()

	select {
	case km.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, km)
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-km.ch
			l.unref(key, km)
		})
	}, nil
}

func (l *LocalLocker) unref(key string, km *keyedMutex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	km.refs--
	if km.refs == 0 {
		delete(l.locks, key)
	}
}

// size reports the number of tracked keys.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
