package storefront

// TokenID returns the identifier of the serial-th unit (1-based) of tier.
func (e *Engine) TokenID(tier, serial uint64) uint64 {
	return serial*e.maxTiers + tier
}

// TierOf returns the tier encoded in a token identifier.
func (e *Engine) TierOf(tokenID uint64) uint64 {
	return tokenID % e.maxTiers
}

func (e *Engine) ownedInTier(owner [20]byte, tier uint64) ([]uint64, error) {
	if e.issuer == nil {
		return nil, errNilIssuer
	}
	if _, err := e.loadTier(tier); err != nil {
		return nil, err
	}
	owned, err := e.issuer.TokensOf(owner)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(owned))
	for _, id := range owned {
		if e.TierOf(id) == tier {
			out = append(out, id)
		}
	}
	return out, nil
}

// BalanceOfTier returns how many units of tier owner holds.
func (e *Engine) BalanceOfTier(owner [20]byte, tier uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	owned, err := e.ownedInTier(owner, tier)
	if err != nil {
		return 0, err
	}
	return uint64(len(owned)), nil
}

// TierTokenOfOwnerByIndex returns the index-th unit of tier held by owner.
func (e *Engine) TierTokenOfOwnerByIndex(owner [20]byte, tier, index uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	owned, err := e.ownedInTier(owner, tier)
	if err != nil {
		return 0, err
	}
	if index >= uint64(len(owned)) {
		return 0, ErrInvalidIndex
	}
	return owned[index], nil
}

// TierTokenByIndex returns the id of the index-th unit of tier. The index is
// the 1-based serial, so any slot within the tier's supply has an id whether
// or not it has been issued yet.
func (e *Engine) TierTokenByIndex(tier, index uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	t, err := e.loadTier(tier)
	if err != nil {
		return 0, err
	}
	if index == 0 || index > t.MaxSupply {
		return 0, ErrInvalidIndex
	}
	return e.TokenID(tier, index), nil
}
