package common

import (
	"errors"
	"testing"
)

type pauses map[string]bool

func (p pauses) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	if err := Guard(nil, "storefront"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	if err := Guard(pauses{"storefront": true}, "storefront"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauses{"other": true}, "storefront"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCallLockRejectsNestedEntry(t *testing.T) {
	var lock CallLock
	if err := lock.Enter(); err != nil {
		t.Fatalf("first enter: %v", err)
	}
	if !lock.Held() {
		t.Fatalf("expected lock held")
	}
	if err := lock.Enter(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected ErrReentrantCall, got %v", err)
	}
	lock.Exit()
	if err := lock.Enter(); err != nil {
		t.Fatalf("enter after exit: %v", err)
	}
}
