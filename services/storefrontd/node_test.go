package storefrontd

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"storefront/config"
	"storefront/core/events"
	"storefront/native/collectible"
	"storefront/native/storefront"
	"storefront/storage"
)

var buyer = [20]byte{19: 0x02}
var admin = [20]byte{19: 0xad}

func TestNodePersistsAcrossRestart(t *testing.T) {
	genesis, err := config.Parse(testGenesis)
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	dir := filepath.Join(t.TempDir(), "state")
	db, err := storage.NewLevelDB(dir)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	rec := &events.Recorder{}
	node, err := NewNode(db, genesis, rec)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	end := uint64(time.Now().Add(time.Hour).Unix())
	if err := node.Update(func(e *storefront.Engine) error {
		_, err := e.StartSale(admin, 1, 0, end, 20)
		return err
	}); err != nil {
		t.Fatalf("start sale: %v", err)
	}
	if err := node.Update(func(e *storefront.Engine) error {
		_, err := e.Mint(buyer, []uint64{1}, []uint64{1}, nil)
		return err
	}); err != nil {
		t.Fatalf("mint: %v", err)
	}
	before := len(rec.Events())

	err = node.Update(func(e *storefront.Engine) error {
		_, err := e.Mint(buyer, []uint64{1}, []uint64{5}, nil)
		return err
	})
	if !errors.Is(err, storefront.ErrMaxPerTxExceeded) {
		t.Fatalf("expected per tx failure, got %v", err)
	}
	if len(rec.Events()) != before {
		t.Fatalf("failed update leaked events")
	}
	unlocked := uint64(time.Now().Add(2 * time.Hour).Unix())
	if err := node.TransferToken(buyer, admin, 101, unlocked); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	seen := rec.Types()
	if seen[len(seen)-1] != events.TypeTokenTransfer {
		t.Fatalf("expected transfer event, got %v", seen)
	}
	if err := node.TransferToken(buyer, admin, 101, unlocked); !errors.Is(err, collectible.ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
	db.Close()

	db, err = storage.NewLevelDB(dir)
	if err != nil {
		t.Fatalf("reopen leveldb: %v", err)
	}
	defer db.Close()
	genesis.Tiers[0].Price = "7"
	node, err = NewNode(db, genesis, nil)
	if err != nil {
		t.Fatalf("reopen node: %v", err)
	}
	if err := node.View(func(e *storefront.Engine) error {
		tier, err := e.TierInfo(1)
		if err != nil {
			return err
		}
		if tier.Issued != 1 || tier.Price.Cmp(big.NewInt(7)) == 0 {
			t.Fatalf("unexpected tier after restart %+v", tier)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	bal, err := node.Balance(buyer)
	if err != nil || bal != "4000000000000000000" {
		t.Fatalf("unexpected balance %s err=%v", bal, err)
	}
}
