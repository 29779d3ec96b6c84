package config

import (
	"fmt"
	"math/big"
	"strings"

	"storefront/crypto"
	"storefront/native/storefront"
)

type roleWriter interface {
	SetRole(role string, addr []byte) error
}

type creditor interface {
	Credit(addr [20]byte, amount *big.Int) error
}

// Apply writes the bootstrap file into fresh state: roles first, then
// balances, tiers, promo codes and the pause switch. Tier and promo writes go
// through the engine as the first admin so they emit the usual events.
func (c *Config) Apply(roles roleWriter, bank creditor, engine *storefront.Engine) error {
	var admin [20]byte
	for i, raw := range c.Roles.Admins {
		acct, err := crypto.ParseAccount(raw)
		if err != nil {
			return err
		}
		if i == 0 {
			admin = acct
		}
		if err := roles.SetRole(storefront.RoleAdmin, acct[:]); err != nil {
			return fmt.Errorf("grant admin: %w", err)
		}
	}
	for _, raw := range c.Roles.Minters {
		acct, err := crypto.ParseAccount(raw)
		if err != nil {
			return err
		}
		if err := roles.SetRole(storefront.RoleMinter, acct[:]); err != nil {
			return fmt.Errorf("grant minter: %w", err)
		}
	}
	for _, bal := range c.Balances {
		acct, err := crypto.ParseAccount(bal.Account)
		if err != nil {
			return err
		}
		amount, err := parseAmount(bal.Amount)
		if err != nil {
			return err
		}
		if err := bank.Credit(acct, amount); err != nil {
			return fmt.Errorf("fund %s: %w", bal.Account, err)
		}
	}
	for _, tier := range c.Tiers {
		price, err := parseAmount(tier.Price)
		if err != nil {
			return err
		}
		if _, err := engine.InitTier(admin, storefront.TierParams{
			ID:           tier.ID,
			Price:        price,
			MaxSupply:    tier.MaxSupply,
			MaxPerTx:     tier.MaxPerTx,
			MaxPerWallet: tier.MaxPerWallet,
		}); err != nil {
			return fmt.Errorf("tier %d: %w", tier.ID, err)
		}
	}
	for _, promo := range c.Promos {
		var referrer [20]byte
		if strings.TrimSpace(promo.Referrer) != "" {
			acct, err := crypto.ParseAccount(promo.Referrer)
			if err != nil {
				return err
			}
			referrer = acct
		}
		if _, err := engine.UpdatePromoCode(admin, storefront.PromoParams{
			Code:          promo.Code,
			Tier:          promo.Tier,
			Referrer:      referrer,
			DiscountPct:   promo.DiscountPct,
			CommissionPct: promo.CommissionPct,
			MaxPerWallet:  promo.MaxPerWallet,
			Active:        true,
		}); err != nil {
			return fmt.Errorf("promo %s: %w", promo.Code, err)
		}
	}
	if c.Paused {
		if err := engine.SetPaused(admin, true); err != nil {
			return err
		}
	}
	return nil
}
