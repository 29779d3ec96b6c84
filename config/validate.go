package config

import (
	"errors"
	"fmt"
	"strings"

	"storefront/crypto"
	"storefront/native/storefront"
)

// Validate checks the bootstrap file without touching state. Tier and promo
// rules mirror the engine so a bad file fails before anything is written.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config required")
	}
	if _, err := crypto.ParseAccount(c.Vault); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if _, err := crypto.ParseAccount(c.Treasury); err != nil {
		return fmt.Errorf("treasury: %w", err)
	}
	maxTiers := c.MaxTiers
	if maxTiers == 0 {
		maxTiers = storefront.DefaultMaxTiers
	}
	if maxTiers < 2 {
		return fmt.Errorf("MaxTiers must be at least 2")
	}
	if c.MaxPhaseID >= storefront.BulkPhaseID {
		return fmt.Errorf("MaxPhaseID must be below %d", storefront.BulkPhaseID)
	}
	if len(c.Roles.Admins) == 0 {
		return fmt.Errorf("at least one admin required")
	}
	for _, list := range [][]string{c.Roles.Admins, c.Roles.Minters} {
		for _, acct := range list {
			if _, err := crypto.ParseAccount(acct); err != nil {
				return fmt.Errorf("roles: %w", err)
			}
		}
	}

	seen := make(map[uint64]struct{}, len(c.Tiers))
	for _, tier := range c.Tiers {
		if tier.ID == 0 || tier.ID >= maxTiers {
			return fmt.Errorf("tier %d: %w", tier.ID, storefront.ErrTierUnavailable)
		}
		if _, dup := seen[tier.ID]; dup {
			return fmt.Errorf("tier %d: %w", tier.ID, storefront.ErrTierAlreadyInitialized)
		}
		seen[tier.ID] = struct{}{}
		if _, err := parseAmount(tier.Price); err != nil {
			return fmt.Errorf("tier %d: %w", tier.ID, storefront.ErrInvalidPrice)
		}
		switch {
		case tier.MaxSupply == 0 || tier.MaxSupply < tier.MaxPerTx:
			return fmt.Errorf("tier %d: %w", tier.ID, storefront.ErrInvalidSupply)
		case tier.MaxPerTx == 0:
			return fmt.Errorf("tier %d: %w", tier.ID, storefront.ErrInvalidMaxPerTx)
		case tier.MaxPerWallet == 0:
			return fmt.Errorf("tier %d: %w", tier.ID, storefront.ErrInvalidMaxPerWallet)
		}
	}

	for _, promo := range c.Promos {
		if strings.TrimSpace(promo.Code) == "" {
			return fmt.Errorf("promo: %w", storefront.ErrInvalidPromoCode)
		}
		if _, ok := seen[promo.Tier]; !ok {
			return fmt.Errorf("promo %s: %w", promo.Code, storefront.ErrTierUnavailable)
		}
		if promo.DiscountPct > storefront.PercentDenominator {
			return fmt.Errorf("promo %s: %w", promo.Code, storefront.ErrInvalidDiscount)
		}
		if promo.DiscountPct+promo.CommissionPct > storefront.PercentDenominator {
			return fmt.Errorf("promo %s: %w", promo.Code, storefront.ErrInvalidCommission)
		}
		if promo.MaxPerWallet == 0 {
			return fmt.Errorf("promo %s: %w", promo.Code, storefront.ErrInvalidMaxPerWallet)
		}
		if promo.CommissionPct > 0 || strings.TrimSpace(promo.Referrer) != "" {
			if _, err := crypto.ParseAccount(promo.Referrer); err != nil {
				return fmt.Errorf("promo %s: %w", promo.Code, storefront.ErrInvalidReferrer)
			}
		}
	}

	for _, bal := range c.Balances {
		if _, err := crypto.ParseAccount(bal.Account); err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		if _, err := parseAmount(bal.Amount); err != nil {
			return fmt.Errorf("balance %s: %w", bal.Account, err)
		}
	}
	return nil
}
