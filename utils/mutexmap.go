package utils

import "sync"

// MutexMap hands out one mutex per string key, created on first use and
// dropped when the last holder or waiter releases it. Entries are
// refcounted under a bookkeeping mutex, so a goroutine parked on a key's
// mutex can never be stranded on an entry that a newcomer has replaced:
// an entry leaves the map only when nobody holds or awaits it.
type MutexMap struct {
	mu    sync.Mutex
	locks map[string]*mutexEntry
}

type mutexEntry struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the mutex for key, blocking while another goroutine holds
// it, and returns the matching unlock.
func (m *MutexMap) Lock(key string) (unlock func()) {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*mutexEntry)
	}
	e := m.locks[key]
	if e == nil {
		e = &mutexEntry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// Len reports the number of live lock entries.
func (m *MutexMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
