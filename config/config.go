package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"storefront/crypto"
	"storefront/native/storefront"
)

// Config is the bootstrap file that seeds a fresh storefront state.
type Config struct {
	Asset              string    `toml:"Asset"`
	Vault              string    `toml:"Vault"`
	Treasury           string    `toml:"Treasury"`
	MaxTiers           uint64    `toml:"MaxTiers"`
	MaxPhaseID         uint8     `toml:"MaxPhaseID"`
	LockHorizonSeconds uint64    `toml:"LockHorizonSeconds"`
	Paused             bool      `toml:"Paused"`
	Roles              Roles     `toml:"Roles"`
	Tiers              []Tier    `toml:"Tiers"`
	Promos             []Promo   `toml:"Promos"`
	Balances           []Balance `toml:"Balances"`
}

// Roles lists the accounts granted each engine role.
type Roles struct {
	Admins  []string `toml:"Admins"`
	Minters []string `toml:"Minters"`
}

// Tier seeds one tier. Price is a decimal string in base units.
type Tier struct {
	ID           uint64 `toml:"ID"`
	Price        string `toml:"Price"`
	MaxSupply    uint64 `toml:"MaxSupply"`
	MaxPerTx     uint64 `toml:"MaxPerTx"`
	MaxPerWallet uint64 `toml:"MaxPerWallet"`
}

// Promo seeds an active promo code.
type Promo struct {
	Code          string `toml:"Code"`
	Tier          uint64 `toml:"Tier"`
	Referrer      string `toml:"Referrer"`
	DiscountPct   uint64 `toml:"DiscountPct"`
	CommissionPct uint64 `toml:"CommissionPct"`
	MaxPerWallet  uint64 `toml:"MaxPerWallet"`
}

// Balance funds an account at bootstrap.
type Balance struct {
	Account string `toml:"Account"`
	Amount  string `toml:"Amount"`
}

// Load decodes and validates the bootstrap file at path. Unknown keys are
// rejected so typos do not silently drop settings.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(raw))
}

// Parse decodes and validates a bootstrap document.
func Parse(doc string) (*Config, error) {
	cfg := &Config{}
	meta, err := toml.Decode(doc, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if strings.TrimSpace(cfg.Asset) == "" {
		cfg.Asset = "ETH"
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EngineConfig converts the file into engine construction parameters.
func (c *Config) EngineConfig() (storefront.Config, error) {
	vault, err := crypto.ParseAccount(c.Vault)
	if err != nil {
		return storefront.Config{}, fmt.Errorf("vault: %w", err)
	}
	treasury, err := crypto.ParseAccount(c.Treasury)
	if err != nil {
		return storefront.Config{}, fmt.Errorf("treasury: %w", err)
	}
	return storefront.Config{
		MaxTiers:    c.MaxTiers,
		MaxPhaseID:  c.MaxPhaseID,
		LockHorizon: time.Duration(c.LockHorizonSeconds) * time.Second,
		Vault:       vault,
		Treasury:    treasury,
	}, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", raw)
	}
	return value, nil
}
