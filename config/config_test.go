package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"storefront/core/state"
	"storefront/crypto"
	"storefront/native/bank"
	"storefront/native/collectible"
	"storefront/native/storefront"
	"storefront/storage"
)

const sampleGenesis = `
Asset = "ETH"
Vault = "0x00000000000000000000000000000000000000fa"
Treasury = "0x000000000000000000000000000000000000007e"
LockHorizonSeconds = 3600

[Roles]
Admins = ["0x00000000000000000000000000000000000000ad"]
Minters = ["0x00000000000000000000000000000000000000ee"]

[[Tiers]]
ID = 1
Price = "1000000000000000000"
MaxSupply = 20
MaxPerTx = 2
MaxPerWallet = 5

[[Tiers]]
ID = 2
Price = "0"
MaxSupply = 10
MaxPerTx = 1
MaxPerWallet = 1

[[Promos]]
Code = "abc"
Tier = 1
Referrer = "0x0000000000000000000000000000000000000001"
DiscountPct = 12
CommissionPct = 10
MaxPerWallet = 10

[[Balances]]
Account = "0x0000000000000000000000000000000000000002"
Amount = "5000000000000000000"
`

func TestLoadAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.toml")
	if err := os.WriteFile(path, []byte(sampleGenesis), 0o600); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Tiers) != 2 || cfg.Tiers[0].MaxPerWallet != 5 || cfg.Promos[0].Code != "abc" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		t.Fatalf("engine config: %v", err)
	}
	if engineCfg.Vault[19] != 0xfa || engineCfg.LockHorizon.Seconds() != 3600 {
		t.Fatalf("unexpected engine config %+v", engineCfg)
	}

	mgr := state.NewManager(storage.NewMemDB())
	ledger, err := bank.NewLedger(mgr, cfg.Asset)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	engine := storefront.NewEngine(engineCfg)
	engine.SetState(mgr)
	engine.SetBank(ledger)
	engine.SetIssuer(collectible.NewLedger(mgr))
	if err := cfg.Apply(mgr, ledger, engine); err != nil {
		t.Fatalf("apply: %v", err)
	}
	total, err := engine.TotalTiers()
	if err != nil || total != 2 {
		t.Fatalf("expected 2 tiers, got %d err=%v", total, err)
	}
	promo, ok, err := engine.PromoCodeInfo("abc")
	if err != nil || !ok || !promo.Active || promo.DiscountPct != 12 {
		t.Fatalf("unexpected promo %+v ok=%v err=%v", promo, ok, err)
	}
	user, _ := crypto.ParseAccount("0x0000000000000000000000000000000000000002")
	bal, _ := ledger.Balance(user)
	if bal.String() != "5000000000000000000" {
		t.Fatalf("unexpected balance %s", bal)
	}
	minter, _ := crypto.ParseAccount("0x00000000000000000000000000000000000000ee")
	if !mgr.HasRole(storefront.RoleMinter, minter[:]) {
		t.Fatalf("minter role not granted")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(sampleGenesis + "\nVaultt = \"0x00\"\n")
	if err == nil || !strings.Contains(err.Error(), "Vaultt") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Parse(sampleGenesis)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		return cfg
	}
	cases := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"tier id at stride", func(c *Config) { c.Tiers[0].ID = 100 }, storefront.ErrTierUnavailable},
		{"duplicate tier", func(c *Config) { c.Tiers[1].ID = 1 }, storefront.ErrTierAlreadyInitialized},
		{"bad price", func(c *Config) { c.Tiers[0].Price = "1.5" }, storefront.ErrInvalidPrice},
		{"supply below per tx", func(c *Config) { c.Tiers[0].MaxSupply = 1 }, storefront.ErrInvalidSupply},
		{"zero per wallet", func(c *Config) { c.Tiers[0].MaxPerWallet = 0 }, storefront.ErrInvalidMaxPerWallet},
		{"promo unknown tier", func(c *Config) { c.Promos[0].Tier = 7 }, storefront.ErrTierUnavailable},
		{"promo split", func(c *Config) { c.Promos[0].CommissionPct = 89 }, storefront.ErrInvalidCommission},
		{"promo referrer", func(c *Config) { c.Promos[0].Referrer = "" }, storefront.ErrInvalidReferrer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := Validate(cfg); !errors.Is(err, tc.want) {
				t.Fatalf("want %v got %v", tc.want, err)
			}
		})
	}

	cfg := base()
	cfg.Roles.Admins = nil
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing admin error")
	}
	cfg = base()
	cfg.Vault = "not-an-account"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected vault error")
	}
}
