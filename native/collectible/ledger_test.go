package collectible

import (
	"errors"
	"testing"

	"storefront/core/state"
	"storefront/storage"
)

func TestIssueAndTransferLock(t *testing.T) {
	ledger := NewLedger(state.NewManager(storage.NewMemDB()))
	alice := [20]byte{0x01}
	bob := [20]byte{0x02}

	var hooked []uint64
	ledger.SetIssueHook(func(to [20]byte, id uint64) error {
		hooked = append(hooked, id)
		return nil
	})
	if err := ledger.Issue(alice, 101, 1000, 2000); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := ledger.Issue(alice, 201, 1000, 0); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := ledger.Issue(bob, 101, 1000, 0); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists, got %v", err)
	}
	if len(hooked) != 2 {
		t.Fatalf("expected 2 hook calls, got %d", len(hooked))
	}

	if err := ledger.Transfer(alice, bob, 101, 1999); !errors.Is(err, ErrTransferLocked) {
		t.Fatalf("expected ErrTransferLocked, got %v", err)
	}
	if err := ledger.Transfer(bob, alice, 101, 2000); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := ledger.Transfer(alice, bob, 101, 2000); err != nil {
		t.Fatalf("transfer after lock: %v", err)
	}
	owner, err := ledger.OwnerOf(101)
	if err != nil || owner != bob {
		t.Fatalf("expected bob to own 101, got %x err=%v", owner, err)
	}
	aliceTokens, _ := ledger.TokensOf(alice)
	if len(aliceTokens) != 1 || aliceTokens[0] != 201 {
		t.Fatalf("unexpected alice tokens %v", aliceTokens)
	}
	if n, _ := ledger.BalanceOf(bob); n != 1 {
		t.Fatalf("expected bob balance 1, got %d", n)
	}
	if _, err := ledger.OwnerOf(999); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
	if err := ledger.Issue([20]byte{}, 301, 0, 0); !errors.Is(err, ErrZeroRecipient) {
		t.Fatalf("expected ErrZeroRecipient, got %v", err)
	}
}
