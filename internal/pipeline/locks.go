package pipeline

import "sync"

// KeyedLocks serializes work per ingestion id. The controller and the
// recovery sweep share one instance so a sweep never races a live run
// on the same record.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLocks creates an empty lock table.
func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[string]*entry)}
}

// Lock acquires the lock for key, creating it on first use.
func (k *KeyedLocks) Lock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for key, dropping the entry once nothing
// else is waiting on it.
func (k *KeyedLocks) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
	}
	k.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}
