// Package keylock hands out mutual exclusion scoped to a single key.
// Lockers for different keys never contend with each other,
// and a key's lock is forgotten once nobody holds or waits for it.
package keylock

import (
	"sync"
	"sync/atomic"
)

type Factory[K comparable] struct {
	m     sync.Mutex
	locks map[K]*keyLock
}

type keyLock struct {
	sync.Mutex
	users int64
}

// Lock blocks until the lock for key is acquired.
// The returned function releases it and must be called exactly once.
func (f *Factory[K]) Lock(key K) (unlock func()) {
	l := f.acquire(key)
	l.Lock()
	var done int32
	return func() {
		if !atomic.CompareAndSwapInt32(&done, 0, 1) {
			panic("keylock: unlock of unlocked key")
		}
		l.Unlock()
		f.release(key, l)
	}
}

// TryLock acquires the lock for key only when it is free.
func (f *Factory[K]) TryLock(key K) (unlock func(), ok bool) {
	l := f.acquire(key)
	if !l.TryLock() {
		f.release(key, l)
		return nil, false
	}
	var done int32
	return func() {
		if !atomic.CompareAndSwapInt32(&done, 0, 1) {
			panic("keylock: unlock of unlocked key")
		}
		l.Unlock()
		f.release(key, l)
	}, true
}

// Len reports how many keys currently have a lock in use.
func (f *Factory[K]) Len() int {
	f.m.Lock()
	defer f.m.Unlock()
	return len(f.locks)
}

func (f *Factory[K]) acquire(key K) *keyLock {
	f.m.Lock()
	defer f.m.Unlock()
	if f.locks == nil {
		f.locks = make(map[K]*keyLock)
	}
	l, ok := f.locks[key]
	if !ok {
		l = &keyLock{}
		f.locks[key] = l
	}
	// users is guarded by f.m
	l.users++
	return l
}

func (f *Factory[K]) release(key K, l *keyLock) {
	f.m.Lock()
	defer f.m.Unlock()
	l.users--
	if l.users == 0 {
		delete(f.locks, key)
	}
}
