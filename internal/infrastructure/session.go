package infrastructure

import "sync"

// keyLock is a mutex shared by every caller holding the same key.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// KeyedLocker serializes work per key (e.g. a phone number) so that a
// lookup followed by a create cannot interleave with another one for the
// same key in this process.
type KeyedLocker struct {
	locks map[string]*keyLock
	mu    sync.Mutex
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{
		locks: make(map[string]*keyLock),
	}
}

// Lock blocks until key is free and returns the matching unlock func.
func (l *KeyedLocker) Lock(key string) func() {
	l.mu.Lock()
	lock, exists := l.locks[key]
	if !exists {
		lock = &keyLock{}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of keys currently held or waited on
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
