package service

import "sync"

// listLocks serializes mutations per list. Different lists never contend;
// the registry keeps one mutex per list ID for the life of the process,
// which is fine at the cardinality a single instance hosts.
type listLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newListLocks() *listLocks {
	return &listLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the list's mutex and returns its release func.
func (l *listLocks) acquire(listID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[listID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[listID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
