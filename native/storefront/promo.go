package storefront

// PromoParams configures a promo code. Deactivating a code ignores every
// other field except Code.
type PromoParams struct {
	Code          string
	Tier          uint64
	Referrer      [20]byte
	DiscountPct   uint64
	CommissionPct uint64
	MaxPerWallet  uint64
	Active        bool
}

// UpdatePromoCode creates, replaces or deactivates a promo code. Redemption
// counts survive every update.
func (e *Engine) UpdatePromoCode(caller [20]byte, p PromoParams) (*PromoCode, error) {
	var out *PromoCode
	err := e.atomic(func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if p.Code == "" {
			return ErrInvalidPromoCode
		}
		promo := &PromoCode{Code: p.Code, Tier: p.Tier, Referrer: p.Referrer, Active: p.Active}
		if p.Active {
			if _, err := e.loadTier(p.Tier); err != nil {
				return err
			}
			if p.DiscountPct > PercentDenominator {
				return ErrInvalidDiscount
			}
			if p.CommissionPct > PercentDenominator || p.DiscountPct+p.CommissionPct > PercentDenominator {
				return ErrInvalidCommission
			}
			if p.CommissionPct > 0 && isZeroAddress(p.Referrer) {
				return ErrInvalidReferrer
			}
			if p.MaxPerWallet == 0 {
				return ErrInvalidMaxPerWallet
			}
			promo.DiscountPct = p.DiscountPct
			promo.CommissionPct = p.CommissionPct
			promo.MaxPerWallet = p.MaxPerWallet
		}
		if err := e.storePromo(promo); err != nil {
			return err
		}
		e.emit(PromoUpdatedEvent(promo))
		out = promo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PromoCodeInfo returns the stored promo code. Unknown codes report false.
func (e *Engine) PromoCodeInfo(code string) (*PromoCode, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	if code == "" {
		return nil, false, nil
	}
	return e.loadPromo(code)
}

// PromoCodes returns every promo code ever configured, in creation order.
func (e *Engine) PromoCodes() ([]*PromoCode, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var raw [][]byte
	if err := e.state.KVGetList(promoIndexKey, &raw); err != nil {
		return nil, err
	}
	out := make([]*PromoCode, 0, len(raw))
	for _, code := range raw {
		promo, ok, err := e.loadPromo(string(code))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, promo)
		}
	}
	return out, nil
}

// PromoRedemptions returns the units account has bought with code.
func (e *Engine) PromoRedemptions(code string, account [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.redeemed(code, account)
}

// resolvePromo returns the promo applicable to a mint of tier, or nil when
// code is empty.
func (e *Engine) resolvePromo(code string, tier uint64) (*PromoCode, error) {
	if code == "" {
		return nil, nil
	}
	promo, ok, err := e.loadPromo(code)
	if err != nil {
		return nil, err
	}
	if !ok || !promo.Active || promo.Tier != tier {
		return nil, ErrPromoNotActive
	}
	return promo, nil
}
