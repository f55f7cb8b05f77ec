package services

import "sync"

// titleLocks is a set of mutexes keyed by movie title. Entries are created
// on first use and dropped when the last holder releases them, so memory
// stays proportional to the number of titles currently being written.
type titleLocks struct {
	mu      sync.Mutex
	entries map[string]*titleLock
}

type titleLock struct {
	mu   sync.Mutex
	refs int
}

func newTitleLocks() *titleLocks {
	return &titleLocks{entries: make(map[string]*titleLock)}
}

// lock blocks until the caller holds title and returns the release func.
func (l *titleLocks) lock(title string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.entries[title]
	if !ok {
		e = &titleLock{}
		l.entries[title] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, title)
		}
		l.mu.Unlock()
	}
}

// size reports how many titles currently have holders or waiters.
func (l *titleLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
