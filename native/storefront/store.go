package storefront

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"
)

var (
	tierIndexKey     = []byte("storefront/tiers")
	promoIndexKey    = []byte("storefront/promos")
	referralIndexKey = []byte("storefront/referrals")
	revenueKey       = []byte("storefront/revenue")
	treasuryKey      = []byte("storefront/treasury")
)

func tierKey(id uint64) []byte {
	return []byte(fmt.Sprintf("storefront/tier/%d", id))
}

func phaseKey(tier uint64, phase uint8) []byte {
	return []byte(fmt.Sprintf("storefront/phase/%d/%d", tier, phase))
}

func allowanceKey(tier uint64, phase uint8, generation uint64, account [20]byte) []byte {
	return []byte(fmt.Sprintf("storefront/allowance/%d/%d/%d/%x", tier, phase, generation, account))
}

func mintedKey(tier uint64, phase uint8, generation uint64, account [20]byte) []byte {
	return []byte(fmt.Sprintf("storefront/minted/%d/%d/%d/%x", tier, phase, generation, account))
}

// Codes are compared byte for byte, so the key hex-encodes the raw bytes.
func promoKey(code string) []byte {
	return []byte(fmt.Sprintf("storefront/promo/%x", []byte(code)))
}

func redeemedKey(code string, account [20]byte) []byte {
	return []byte(fmt.Sprintf("storefront/redeemed/%x/%x", []byte(code), account))
}

func tierRevenueKey(tier uint64) []byte {
	return []byte(fmt.Sprintf("storefront/revenue/tier/%d", tier))
}

func referralKey(referrer [20]byte) []byte {
	return []byte(fmt.Sprintf("storefront/referral/%x", referrer))
}

func encodeUint(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func (e *Engine) loadTier(id uint64) (*Tier, error) {
	if id == 0 || id >= e.maxTiers {
		return nil, ErrTierUnavailable
	}
	tier := new(Tier)
	ok, err := e.state.KVGet(tierKey(id), tier)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTierUnavailable
	}
	if tier.Price == nil {
		tier.Price = big.NewInt(0)
	}
	return tier, nil
}

func (e *Engine) storeTier(tier *Tier) error {
	return e.state.KVPut(tierKey(tier.ID), tier)
}

func (e *Engine) tierIDs() ([]uint64, error) {
	var raw [][]byte
	if err := e.state.KVGetList(tierIndexKey, &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			continue
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (e *Engine) loadPhase(tier uint64, id uint8) (*Phase, bool, error) {
	phase := new(Phase)
	ok, err := e.state.KVGet(phaseKey(tier, id), phase)
	if err != nil || !ok {
		return nil, false, err
	}
	return phase, true, nil
}

func (e *Engine) storePhase(phase *Phase) error {
	return e.state.KVPut(phaseKey(phase.Tier, phase.ID), phase)
}

func (e *Engine) loadAllowance(phase *Phase, account [20]byte) (*Allowance, bool, error) {
	allowance := new(Allowance)
	ok, err := e.state.KVGet(allowanceKey(phase.Tier, phase.ID, phase.Generation, account), allowance)
	if err != nil || !ok {
		return nil, false, err
	}
	return allowance, true, nil
}

func (e *Engine) storeAllowance(phase *Phase, account [20]byte, allowance *Allowance) error {
	return e.state.KVPut(allowanceKey(phase.Tier, phase.ID, phase.Generation, account), allowance)
}

func (e *Engine) mintedBy(phase *Phase, account [20]byte) (uint64, error) {
	var minted uint64
	if _, err := e.state.KVGet(mintedKey(phase.Tier, phase.ID, phase.Generation, account), &minted); err != nil {
		return 0, err
	}
	return minted, nil
}

func (e *Engine) setMintedBy(phase *Phase, account [20]byte, minted uint64) error {
	return e.state.KVPut(mintedKey(phase.Tier, phase.ID, phase.Generation, account), minted)
}

func (e *Engine) loadPromo(code string) (*PromoCode, bool, error) {
	promo := new(PromoCode)
	ok, err := e.state.KVGet(promoKey(code), promo)
	if err != nil || !ok {
		return nil, false, err
	}
	return promo, true, nil
}

func (e *Engine) storePromo(promo *PromoCode) error {
	if err := e.state.KVPut(promoKey(promo.Code), promo); err != nil {
		return err
	}
	return e.state.KVAppend(promoIndexKey, []byte(promo.Code))
}

func (e *Engine) redeemed(code string, account [20]byte) (uint64, error) {
	var count uint64
	if _, err := e.state.KVGet(redeemedKey(code, account), &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (e *Engine) setRedeemed(code string, account [20]byte, count uint64) error {
	return e.state.KVPut(redeemedKey(code, account), count)
}

func (e *Engine) loadRevenue() (*Revenue, error) {
	rev := new(Revenue)
	if _, err := e.state.KVGet(revenueKey, rev); err != nil {
		return nil, err
	}
	rev.TotalCollected = copyBig(rev.TotalCollected)
	rev.TreasuryAccrued = copyBig(rev.TreasuryAccrued)
	rev.TreasuryWithdrawn = copyBig(rev.TreasuryWithdrawn)
	rev.CommissionAccrued = copyBig(rev.CommissionAccrued)
	rev.CommissionWithdrawn = copyBig(rev.CommissionWithdrawn)
	return rev, nil
}

func (e *Engine) storeRevenue(rev *Revenue) error {
	return e.state.KVPut(revenueKey, rev)
}

func (e *Engine) loadTierRevenue(tier uint64) (*TierRevenue, error) {
	rev := &TierRevenue{Tier: tier}
	if _, err := e.state.KVGet(tierRevenueKey(tier), rev); err != nil {
		return nil, err
	}
	rev.Tier = tier
	rev.Collected = copyBig(rev.Collected)
	rev.Commission = copyBig(rev.Commission)
	return rev, nil
}

func (e *Engine) storeTierRevenue(rev *TierRevenue) error {
	return e.state.KVPut(tierRevenueKey(rev.Tier), rev)
}

func (e *Engine) loadReferral(referrer [20]byte) (*Referral, error) {
	ref := &Referral{Referrer: referrer}
	if _, err := e.state.KVGet(referralKey(referrer), ref); err != nil {
		return nil, err
	}
	ref.Referrer = referrer
	ref.Accrued = copyBig(ref.Accrued)
	ref.Withdrawn = copyBig(ref.Withdrawn)
	return ref, nil
}

func (e *Engine) storeReferral(ref *Referral) error {
	if err := e.state.KVPut(referralKey(ref.Referrer), ref); err != nil {
		return err
	}
	return e.state.KVAppend(referralIndexKey, ref.Referrer[:])
}

func (e *Engine) referrers() ([][20]byte, error) {
	var raw [][]byte
	if err := e.state.KVGetList(referralIndexKey, &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 20 {
			continue
		}
		var addr [20]byte
		copy(addr[:], entry)
		out = append(out, addr)
	}
	return out, nil
}

func (e *Engine) loadTreasury() ([20]byte, error) {
	var addr [20]byte
	var raw []byte
	ok, err := e.state.KVGet(treasuryKey, &raw)
	if err != nil {
		return addr, err
	}
	if !ok || len(raw) != 20 {
		return e.treasury, nil
	}
	copy(addr[:], raw)
	return addr, nil
}
