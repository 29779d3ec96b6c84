package storefront

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"storefront/core/events"
	"storefront/core/state"
	"storefront/crypto/merkle"
	"storefront/native/bank"
	"storefront/native/collectible"
	"storefront/storage"
)

var (
	adminAddr    = [20]byte{0xAD}
	minterAddr   = [20]byte{0xEE}
	vaultAddr    = [20]byte{0xFA}
	treasuryAddr = [20]byte{0x7E}
	ownerAddr    = [20]byte{0x01}
	userAddr     = [20]byte{0x02}
	user2Addr    = [20]byte{0x03}
)

const baseTime int64 = 1_700_000_000

type harness struct {
	t      *testing.T
	mgr    *state.Manager
	bank   *bank.Ledger
	tokens *collectible.Ledger
	engine *Engine
	rec    *events.Recorder
	now    int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	ledger, err := bank.NewLedger(mgr, "ETH")
	if err != nil {
		t.Fatalf("bank ledger: %v", err)
	}
	h := &harness{
		t:      t,
		mgr:    mgr,
		bank:   ledger,
		tokens: collectible.NewLedger(mgr),
		rec:    &events.Recorder{},
		now:    baseTime,
	}
	h.engine = NewEngine(Config{Vault: vaultAddr, Treasury: treasuryAddr, LockHorizon: time.Hour})
	h.engine.SetState(mgr)
	h.engine.SetBank(ledger)
	h.engine.SetIssuer(h.tokens)
	h.engine.SetEmitter(h.rec)
	h.engine.SetNowFunc(func() int64 { return h.now })
	for role, addr := range map[string][20]byte{RoleAdmin: adminAddr, RoleMinter: minterAddr} {
		if err := mgr.SetRole(role, addr[:]); err != nil {
			t.Fatalf("set role: %v", err)
		}
	}
	for _, addr := range [][20]byte{ownerAddr, userAddr, user2Addr, adminAddr} {
		if err := ledger.Credit(addr, ether(1000)); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}
	return h
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func milliEther(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000))
}

func (h *harness) unix() uint64 { return uint64(h.now) }

func (h *harness) initTier(id uint64, price *big.Int, supply, perTx, perWallet uint64) *Tier {
	h.t.Helper()
	tier, err := h.engine.InitTier(adminAddr, TierParams{ID: id, Price: price, MaxSupply: supply, MaxPerTx: perTx, MaxPerWallet: perWallet})
	if err != nil {
		h.t.Fatalf("init tier %d: %v", id, err)
	}
	return tier
}

func (h *harness) startSale(tier uint64, supply uint64) {
	h.t.Helper()
	if _, err := h.engine.StartSale(adminAddr, tier, h.unix(), h.unix()+86400, supply); err != nil {
		h.t.Fatalf("start sale %d: %v", tier, err)
	}
}

func (h *harness) balance(addr [20]byte) *big.Int {
	h.t.Helper()
	bal, err := h.bank.Balance(addr)
	if err != nil {
		h.t.Fatalf("balance: %v", err)
	}
	return bal
}

func (h *harness) expectReconciled() {
	h.t.Helper()
	if err := h.engine.Reconcile(); err != nil {
		h.t.Fatalf("reconcile: %v", err)
	}
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func allowList(t *testing.T, accounts ...[20]byte) (*merkle.Tree, map[[20]byte][]merkle.Hash) {
	t.Helper()
	leaves := make([]merkle.Hash, len(accounts))
	for i, acct := range accounts {
		leaves[i] = merkle.AccountLeaf(acct)
	}
	tree, err := merkle.NewTree(leaves)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	proofs := make(map[[20]byte][]merkle.Hash, len(accounts))
	for i, acct := range accounts {
		proof, err := tree.Proof(leaves[i])
		if err != nil {
			t.Fatalf("proof: %v", err)
		}
		proofs[acct] = proof
	}
	return tree, proofs
}
