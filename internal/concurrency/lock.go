package concurrency

import "sync"

// ScopeLockManager serializes agent turns within one conversation scope.
// Turns in different scopes run concurrently.
type ScopeLockManager struct {
	locks map[string]*sync.Mutex
	mu    sync.Mutex
}

func NewScopeLockManager() *ScopeLockManager {
	return &ScopeLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *ScopeLockManager) Lock(scopeKey string) {
	m.mu.Lock()
	lock, ok := m.locks[scopeKey]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[scopeKey] = lock
	}
	m.mu.Unlock()
	lock.Lock()
}

func (m *ScopeLockManager) Unlock(scopeKey string) {
	m.mu.Lock()
	lock, ok := m.locks[scopeKey]
	if ok {
		lock.Unlock()
	}
	m.mu.Unlock()
}
