package asmdb

import "sync/atomic"

// Lock turns writes into no-ops while it is locked. Reads are not
// affected. Writes with WriteOptions.OverrideLock and ExecuteDBUpdate
// ignore it.
type Lock struct {
	locked atomic.Bool
}

func (l *Lock) Lock() {
	l.locked.Store(true)
}

func (l *Lock) Unlock() {
	l.locked.Store(false)
}

func (l *Lock) Locked() bool {
	if l == nil {
		return false
	}
	return l.locked.Load()
}
