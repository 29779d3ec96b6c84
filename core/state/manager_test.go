package state

import (
	"errors"
	"math/big"
	"testing"

	"storefront/storage"
)

type record struct {
	Name  string
	Count uint64
	Total *big.Int
}

func TestManagerSnapshotRevert(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)

	if err := mgr.KVPut([]byte("a"), record{Name: "first", Count: 1, Total: big.NewInt(10)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	snap := mgr.Snapshot()
	if err := mgr.KVPut([]byte("a"), record{Name: "second", Count: 2, Total: big.NewInt(20)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := mgr.KVPut([]byte("b"), record{Name: "other", Total: big.NewInt(0)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := mgr.RevertToSnapshot(snap); err != nil {
		t.Fatalf("revert: %v", err)
	}

	var got record
	ok, err := mgr.KVGet([]byte("a"), &got)
	if err != nil || !ok {
		t.Fatalf("expected a present, ok=%v err=%v", ok, err)
	}
	if got.Name != "first" || got.Count != 1 || got.Total.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected record after revert: %+v", got)
	}
	if ok, _ := mgr.KVGet([]byte("b"), nil); ok {
		t.Fatalf("expected b reverted")
	}
	if err := mgr.RevertToSnapshot(99); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
}

func TestManagerCommitIsAtomic(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	if err := mgr.KVPut([]byte("k"), uint64(7)); err != nil {
		t.Fatalf("put: %v", err)
	}

	reader := NewManager(db)
	if ok, _ := reader.KVGet([]byte("k"), nil); ok {
		t.Fatalf("uncommitted write visible to another manager")
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	var value uint64
	if ok, err := reader.KVGet([]byte("k"), &value); err != nil || !ok || value != 7 {
		t.Fatalf("expected committed value 7, got %d ok=%v err=%v", value, ok, err)
	}

	if err := mgr.KVDelete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	mgr.Discard()
	if ok, _ := mgr.KVGet([]byte("k"), nil); !ok {
		t.Fatalf("discarded delete must not apply")
	}
}

func TestManagerListsAndRoles(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	key := []byte("index")
	for _, v := range [][]byte{{1}, {2}, {1}, {3}} {
		if err := mgr.KVAppend(key, v); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	var list [][]byte
	if err := mgr.KVGetList(key, &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected deduplicated list of 3, got %d", len(list))
	}
	if err := mgr.KVRemove(key, []byte{2}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := mgr.KVGetList(key, &list); err != nil || len(list) != 2 {
		t.Fatalf("expected 2 entries after remove, got %d err=%v", len(list), err)
	}

	var empty [][]byte
	if err := mgr.KVGetList([]byte("missing"), &empty); err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v err=%v", empty, err)
	}

	admin := []byte{0xAA}
	if mgr.HasRole("ROLE_ADMIN", admin) {
		t.Fatalf("unexpected role before grant")
	}
	if err := mgr.SetRole("ROLE_ADMIN", admin); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if !mgr.HasRole("ROLE_ADMIN", admin) {
		t.Fatalf("expected role after grant")
	}
	if err := mgr.RemoveRole("ROLE_ADMIN", admin); err != nil {
		t.Fatalf("remove role: %v", err)
	}
	if mgr.HasRole("ROLE_ADMIN", admin) {
		t.Fatalf("expected role revoked")
	}
}

func TestManagerBalancesAndPauses(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	addr := []byte{0x01}
	if err := mgr.SetBalance(addr, "nrgy", big.NewInt(5)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	bal, err := mgr.Balance(addr, "NRGY")
	if err != nil || bal.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected balance 5, got %v err=%v", bal, err)
	}
	if err := mgr.SetBalance(addr, "NRGY", big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative balance rejected")
	}

	if mgr.IsPaused("storefront") {
		t.Fatalf("unexpected pause")
	}
	if err := mgr.SetPaused("storefront", true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !mgr.IsPaused("StoreFront") {
		t.Fatalf("expected module paused")
	}
}

func TestEnsureStateVersion(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	if err := mgr.EnsureStateVersion(false); err != nil {
		t.Fatalf("ensure fresh: %v", err)
	}
	if err := mgr.SetStateVersion(StateVersion + 1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := mgr.EnsureStateVersion(false); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := mgr.EnsureStateVersion(true); err != nil {
		t.Fatalf("migration override: %v", err)
	}
}
