package common

import (
	"errors"
	"sync"
)

// ErrLocked signals that a record is already inside an in-flight mutation.
var ErrLocked = errors.New("record locked by in-flight operation")

// Locker marks records as busy for the duration of a mutating operation so
// that a payout which calls back into the engine cannot re-enter the same
// record and double-spend escrowed funds.
type Locker struct {
	mu     sync.Mutex
	active map[uint64]struct{}
}

// NewLocker returns an empty locker.
func NewLocker() *Locker {
	return &Locker{active: make(map[uint64]struct{})}
}

// Acquire marks the record busy. It fails with ErrLocked when the record is
// already held, which is exactly the reentrant-call case.
func (l *Locker) Acquire(id uint64) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.active[id]; held {
		return ErrLocked
	}
	l.active[id] = struct{}{}
	return nil
}

// Release clears the busy mark. Releasing an unheld id is a no-op.
func (l *Locker) Release(id uint64) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, id)
}
