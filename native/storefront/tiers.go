package storefront

import (
	"errors"
	"math"
	"math/big"
)

// TierParams configures a tier.
type TierParams struct {
	ID           uint64
	Price        *big.Int
	MaxSupply    uint64
	MaxPerTx     uint64
	MaxPerWallet uint64
}

func (e *Engine) validTierID(id uint64) bool {
	return id > 0 && id < e.maxTiers
}

// maxSerial is the largest serial whose token id fits in a uint64.
func (e *Engine) maxSerial() uint64 {
	return (math.MaxUint64 - e.maxTiers) / e.maxTiers
}

func validateTierParams(p TierParams, issued, maxSerial uint64) error {
	if p.Price != nil && p.Price.Sign() < 0 {
		return ErrInvalidPrice
	}
	if p.MaxSupply == 0 || p.MaxSupply < issued || p.MaxSupply > maxSerial {
		return ErrInvalidSupply
	}
	if p.MaxPerTx == 0 {
		return ErrInvalidMaxPerTx
	}
	if p.MaxPerWallet == 0 {
		return ErrInvalidMaxPerWallet
	}
	if p.MaxSupply < p.MaxPerTx {
		return ErrInvalidSupply
	}
	return nil
}

// InitTier creates a tier. Tier identifiers are never reused.
func (e *Engine) InitTier(caller [20]byte, p TierParams) (*Tier, error) {
	var created *Tier
	err := e.atomic(func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if !e.validTierID(p.ID) {
			return ErrTierUnavailable
		}
		if _, err := e.loadTier(p.ID); err == nil {
			return ErrTierAlreadyInitialized
		} else if !errors.Is(err, ErrTierUnavailable) {
			return err
		}
		if err := validateTierParams(p, 0, e.maxSerial()); err != nil {
			return err
		}
		tier := &Tier{
			ID:           p.ID,
			Price:        copyBig(p.Price),
			MaxSupply:    p.MaxSupply,
			MaxPerTx:     p.MaxPerTx,
			MaxPerWallet: p.MaxPerWallet,
		}
		if err := e.storeTier(tier); err != nil {
			return err
		}
		if err := e.state.KVAppend(tierIndexKey, encodeUint(tier.ID)); err != nil {
			return err
		}
		e.emit(TierEvent(EventTypeTierInitialized, tier))
		created = tier
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateTier replaces the price and caps of an existing tier. The issued
// count is preserved and the new supply cap may not fall below it.
func (e *Engine) UpdateTier(caller [20]byte, p TierParams) (*Tier, error) {
	var updated *Tier
	err := e.atomic(func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		tier, err := e.loadTier(p.ID)
		if err != nil {
			return err
		}
		if err := validateTierParams(p, tier.Issued, e.maxSerial()); err != nil {
			return err
		}
		tier.Price = copyBig(p.Price)
		tier.MaxSupply = p.MaxSupply
		tier.MaxPerTx = p.MaxPerTx
		tier.MaxPerWallet = p.MaxPerWallet
		if err := e.storeTier(tier); err != nil {
			return err
		}
		e.emit(TierEvent(EventTypeTierUpdated, tier))
		updated = tier
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// TierInfo returns the tier record.
func (e *Engine) TierInfo(id uint64) (*Tier, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.loadTier(id)
}

// Tiers returns every initialized tier ordered by identifier.
func (e *Engine) Tiers() ([]*Tier, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ids, err := e.tierIDs()
	if err != nil {
		return nil, err
	}
	out := make([]*Tier, 0, len(ids))
	for _, id := range ids {
		tier, err := e.loadTier(id)
		if err != nil {
			return nil, err
		}
		out = append(out, tier)
	}
	return out, nil
}

// TotalTiers returns the number of initialized tiers.
func (e *Engine) TotalTiers() (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	ids, err := e.tierIDs()
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}
