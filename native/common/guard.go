package common

import (
	"errors"
	"sync/atomic"
)

var (
	ErrModulePaused  = errors.New("module paused")
	ErrReentrantCall = errors.New("reentrant call")
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// CallLock rejects nested entry into mutating operations while one is in
// flight. Hooks that hand control to external code (value transfers, issuance
// callbacks) run while the lock is held.
type CallLock struct {
	held atomic.Bool
}

// Enter acquires the lock or fails with ErrReentrantCall.
func (l *CallLock) Enter() error {
	if !l.held.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Exit releases the lock.
func (l *CallLock) Exit() { l.held.Store(false) }

// Held reports whether a call is in flight.
func (l *CallLock) Held() bool { return l.held.Load() }
