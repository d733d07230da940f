package review

import "sync"

// cardLocks hands out one mutex per card id so that read-compute-persist
// cycles for the same schedule serialize while different cards never
// contend. Entries are reference-counted and removed when idle.
type cardLocks struct {
	mu    sync.Mutex
	entry map[int64]*cardLock
}

type cardLock struct {
	mu   sync.Mutex
	refs int
}

func newCardLocks() *cardLocks {
	return &cardLocks{entry: make(map[int64]*cardLock)}
}

// lock blocks until the caller holds the mutex for cardID.
func (l *cardLocks) lock(cardID int64) {
	l.mu.Lock()
	e, ok := l.entry[cardID]
	if !ok {
		e = &cardLock{}
		l.entry[cardID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

// unlock releases the mutex for cardID and drops the entry once nobody
// is waiting on it.
func (l *cardLocks) unlock(cardID int64) {
	l.mu.Lock()
	e := l.entry[cardID]
	e.refs--
	if e.refs == 0 {
		delete(l.entry, cardID)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}
