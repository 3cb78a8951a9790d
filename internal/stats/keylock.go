package stats

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type lockEntry struct {
	mu   sync.Mutex
	refs int // guarded by the map bucket lock in Compute
}

// KeyLock serializes work per record key. Entries are dropped once no
// caller holds or waits for them.
type KeyLock struct {
	locks *xsync.MapOf[Key, *lockEntry]
}

// NewKeyLock creates an empty KeyLock.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: xsync.NewMapOf[Key, *lockEntry]()}
}

// Lock acquires the mutex for key and returns its unlock function.
func (l *KeyLock) Lock(key Key) (unlock func()) {
	e, _ := l.locks.Compute(key, func(old *lockEntry, loaded bool) (*lockEntry, bool) {
		if !loaded {
			old = &lockEntry{}
		}
		old.refs++
		return old, false
	})
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.locks.Compute(key, func(old *lockEntry, loaded bool) (*lockEntry, bool) {
			old.refs--
			return old, old.refs == 0
		})
	}
}

// Len returns the number of keys currently held or waited on.
func (l *KeyLock) Len() int {
	return l.locks.Size()
}
