package storefront

import (
	"fmt"
	"math/big"
)

// settle credits each line's payment to the revenue ledger. Commission goes
// to the promo referrer and the remainder to the treasury.
func (e *Engine) settle(lines []*reservedLine) error {
	rev, err := e.loadRevenue()
	if err != nil {
		return err
	}
	for _, line := range lines {
		if line.due.Sign() == 0 {
			continue
		}
		treasuryShare := new(big.Int).Sub(line.due, line.commission)
		rev.TotalCollected.Add(rev.TotalCollected, line.due)
		rev.TreasuryAccrued.Add(rev.TreasuryAccrued, treasuryShare)
		rev.CommissionAccrued.Add(rev.CommissionAccrued, line.commission)

		tierRev, err := e.loadTierRevenue(line.req.tier)
		if err != nil {
			return err
		}
		tierRev.Collected.Add(tierRev.Collected, line.due)
		tierRev.Commission.Add(tierRev.Commission, line.commission)
		if err := e.storeTierRevenue(tierRev); err != nil {
			return err
		}

		if line.promo != nil && line.commission.Sign() > 0 {
			ref, err := e.loadReferral(line.promo.Referrer)
			if err != nil {
				return err
			}
			ref.Accrued.Add(ref.Accrued, line.commission)
			if err := e.storeReferral(ref); err != nil {
				return err
			}
			e.emit(CommissionAccruedEvent(line.promo, line.commission))
		}
	}
	return e.storeRevenue(rev)
}

// SetTreasury changes the account receiving treasury withdrawals.
func (e *Engine) SetTreasury(caller [20]byte, addr [20]byte) error {
	return e.atomic(func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if isZeroAddress(addr) {
			return ErrInvalidAccount
		}
		if err := e.state.KVPut(treasuryKey, addr[:]); err != nil {
			return err
		}
		e.emit(TreasuryUpdatedEvent(addr))
		return nil
	})
}

// Treasury returns the account receiving treasury withdrawals.
func (e *Engine) Treasury() ([20]byte, error) {
	if err := e.ready(); err != nil {
		return [20]byte{}, err
	}
	return e.loadTreasury()
}

// Withdraw pays the full treasury balance to the treasury account.
func (e *Engine) Withdraw(caller [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := e.atomic(func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if e.bank == nil {
			return errNilBank
		}
		treasury, err := e.loadTreasury()
		if err != nil {
			return err
		}
		if isZeroAddress(treasury) {
			return errNilTreasury
		}
		rev, err := e.loadRevenue()
		if err != nil {
			return err
		}
		amount = rev.TreasuryBalance()
		if amount.Sign() <= 0 {
			return ErrZeroBalance
		}
		rev.TreasuryWithdrawn.Add(rev.TreasuryWithdrawn, amount)
		if err := e.storeRevenue(rev); err != nil {
			return err
		}
		if err := e.bank.Transfer(e.vault, treasury, amount); err != nil {
			return err
		}
		e.emit(WithdrawnEvent(EventTypeTreasuryWithdrawn, treasury, amount))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// WithdrawInfluencerRevenue pays a referrer's accrued commission to the
// referrer. The referrer or an admin may trigger it.
func (e *Engine) WithdrawInfluencerRevenue(caller [20]byte, referrer [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := e.atomic(func() error {
		if caller != referrer && !e.state.HasRole(RoleAdmin, caller[:]) {
			return ErrUnauthorized
		}
		if e.bank == nil {
			return errNilBank
		}
		ref, err := e.loadReferral(referrer)
		if err != nil {
			return err
		}
		amount = ref.Balance()
		if amount.Sign() <= 0 {
			return ErrZeroBalance
		}
		ref.Withdrawn.Add(ref.Withdrawn, amount)
		if err := e.storeReferral(ref); err != nil {
			return err
		}
		rev, err := e.loadRevenue()
		if err != nil {
			return err
		}
		rev.CommissionWithdrawn.Add(rev.CommissionWithdrawn, amount)
		if err := e.storeRevenue(rev); err != nil {
			return err
		}
		if err := e.bank.Transfer(e.vault, referrer, amount); err != nil {
			return err
		}
		e.emit(WithdrawnEvent(EventTypeInfluencerWithdrawn, referrer, amount))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// WithdrawInfluencerRewards is an alias of WithdrawInfluencerRevenue.
//
// Deprecated: use WithdrawInfluencerRevenue.
func (e *Engine) WithdrawInfluencerRewards(caller [20]byte, referrer [20]byte) (*big.Int, error) {
	return e.WithdrawInfluencerRevenue(caller, referrer)
}

// RevenueInfo returns the module-wide revenue ledger.
func (e *Engine) RevenueInfo() (*Revenue, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.loadRevenue()
}

// TotalRevenue returns everything ever collected, net of refunds.
func (e *Engine) TotalRevenue() (*big.Int, error) {
	rev, err := e.RevenueInfo()
	if err != nil {
		return nil, err
	}
	return rev.TotalCollected, nil
}

// TierRevenueInfo returns funds collected by one tier.
func (e *Engine) TierRevenueInfo(tier uint64) (*TierRevenue, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.loadTier(tier); err != nil {
		return nil, err
	}
	return e.loadTierRevenue(tier)
}

// InfluencerInfo returns the commission record of a referrer.
func (e *Engine) InfluencerInfo(referrer [20]byte) (*Referral, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.loadReferral(referrer)
}

// Influencers returns every referrer that has accrued commission.
func (e *Engine) Influencers() ([]*Referral, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	addrs, err := e.referrers()
	if err != nil {
		return nil, err
	}
	out := make([]*Referral, 0, len(addrs))
	for _, addr := range addrs {
		ref, err := e.loadReferral(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// Reconcile checks the revenue ledger is internally consistent and that the
// vault holds exactly the outstanding balances.
func (e *Engine) Reconcile() error {
	if err := e.ready(); err != nil {
		return err
	}
	rev, err := e.loadRevenue()
	if err != nil {
		return err
	}
	if addBig(rev.TreasuryAccrued, rev.CommissionAccrued).Cmp(rev.TotalCollected) != 0 {
		return fmt.Errorf("%w: collected %s != treasury %s + commission %s", ErrLedgerImbalance,
			rev.TotalCollected, rev.TreasuryAccrued, rev.CommissionAccrued)
	}
	refs, err := e.Influencers()
	if err != nil {
		return err
	}
	accrued, withdrawn := big.NewInt(0), big.NewInt(0)
	for _, ref := range refs {
		accrued.Add(accrued, ref.Accrued)
		withdrawn.Add(withdrawn, ref.Withdrawn)
	}
	if accrued.Cmp(rev.CommissionAccrued) != 0 || withdrawn.Cmp(rev.CommissionWithdrawn) != 0 {
		return fmt.Errorf("%w: referrer totals %s/%s != ledger %s/%s", ErrLedgerImbalance,
			accrued, withdrawn, rev.CommissionAccrued, rev.CommissionWithdrawn)
	}
	if rev.TreasuryBalance().Sign() < 0 || rev.CommissionBalance().Sign() < 0 {
		return fmt.Errorf("%w: negative balance", ErrLedgerImbalance)
	}
	if e.bank == nil {
		return nil
	}
	held, err := e.bank.Balance(e.vault)
	if err != nil {
		return err
	}
	outstanding := addBig(rev.TreasuryBalance(), rev.CommissionBalance())
	if held.Cmp(outstanding) != 0 {
		return fmt.Errorf("%w: vault holds %s, ledger owes %s", ErrLedgerImbalance, held, outstanding)
	}
	return nil
}
