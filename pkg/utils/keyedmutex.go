package utils

import "sync"

// KeyedMutex provides per-key locking so that read-modify-write sequences
// for the same key serialize while unrelated keys proceed concurrently.
// Locks are created lazily and never released from the map; the key space
// here (guild members) is small enough that this is not a concern.
type KeyedMutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*sync.Mutex
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex[K comparable]() *KeyedMutex[K] {
	return &KeyedMutex[K]{
		locks: make(map[K]*sync.Mutex),
	}
}

// Lock acquires the mutex for the given key, creating it on first use.
func (m *KeyedMutex[K]) Lock(key K) {
	m.mu.Lock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	m.mu.Unlock()

	lock.Lock()
}

// Unlock releases the mutex for the given key.
// Panics if Lock was never called for the key.
func (m *KeyedMutex[K]) Unlock(key K) {
	m.mu.Lock()
	lock := m.locks[key]
	m.mu.Unlock()

	lock.Unlock()
}
