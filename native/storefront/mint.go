package storefront

import (
	"fmt"
	"math/big"

	"storefront/crypto/merkle"
	nativecommon "storefront/native/common"
)

type lineRequest struct {
	recipient [20]byte
	tier      uint64
	phase     uint8
	quantity  uint64
	proof     []merkle.Hash
	allowance uint64
	promoCode string
	bulk      bool
}

type reservedLine struct {
	req        lineRequest
	tokenIDs   []uint64
	due        *big.Int
	commission *big.Int
	promo      *PromoCode
}

// Mint buys quantities[i] units of tiers[i] from each tier's general sale.
// payment is the amount offered; any excess is refunded. A nil payment pulls
// exactly the amount due.
func (e *Engine) Mint(caller [20]byte, tiers, quantities []uint64, payment *big.Int) (*MintReceipt, error) {
	if len(tiers) == 0 || len(tiers) != len(quantities) {
		return nil, ErrInvalidTierSize
	}
	reqs := make([]lineRequest, len(tiers))
	for i := range tiers {
		reqs[i] = lineRequest{recipient: caller, tier: tiers[i], phase: SalePhaseID, quantity: quantities[i]}
	}
	return e.mint(caller, reqs, payment)
}

// PresaleMint buys from each tier's presale, proving allow-list membership
// with proofs[i].
func (e *Engine) PresaleMint(caller [20]byte, tiers, quantities []uint64, proofs [][]merkle.Hash, payment *big.Int) (*MintReceipt, error) {
	if len(tiers) == 0 || len(tiers) != len(quantities) {
		return nil, ErrInvalidTierSize
	}
	if len(proofs) != len(tiers) {
		return nil, ErrInvalidMerkleSize
	}
	reqs := make([]lineRequest, len(tiers))
	for i := range tiers {
		reqs[i] = lineRequest{recipient: caller, tier: tiers[i], phase: PresalePhaseID, quantity: quantities[i], proof: proofs[i]}
	}
	return e.mint(caller, reqs, payment)
}

// MintPhase buys quantity units of tier from numbered phase id.
func (e *Engine) MintPhase(caller [20]byte, tier uint64, id uint8, quantity uint64, opts MintOptions, payment *big.Int) (*MintReceipt, error) {
	if !e.numbered(id) {
		return nil, ErrInvalidPhase
	}
	req := lineRequest{
		recipient: caller,
		tier:      tier,
		phase:     id,
		quantity:  quantity,
		proof:     opts.Proof,
		allowance: opts.Allowance,
		promoCode: opts.PromoCode,
	}
	return e.mint(caller, []lineRequest{req}, payment)
}

// BulkMint issues units to recipients without payment or phase windows. The
// caller must hold the minter role; supply and per-account caps still apply.
func (e *Engine) BulkMint(caller [20]byte, recipients [][20]byte, tiers, quantities []uint64) (*MintReceipt, error) {
	if len(tiers) == 0 || len(tiers) != len(quantities) || len(tiers) != len(recipients) {
		return nil, ErrInvalidTierSize
	}
	reqs := make([]lineRequest, len(tiers))
	for i := range tiers {
		if isZeroAddress(recipients[i]) {
			return nil, ErrInvalidAccount
		}
		reqs[i] = lineRequest{recipient: recipients[i], tier: tiers[i], phase: BulkPhaseID, quantity: quantities[i], bulk: true}
	}
	return e.mint(caller, reqs, nil)
}

func (e *Engine) mint(caller [20]byte, reqs []lineRequest, payment *big.Int) (*MintReceipt, error) {
	if payment != nil && payment.Sign() < 0 {
		return nil, ErrInsufficientFund
	}
	var receipt *MintReceipt
	err := e.atomic(func() error {
		if err := nativecommon.Guard(e.state, ModuleName); err != nil {
			return err
		}
		if reqs[0].bulk {
			if err := e.requireRole(RoleMinter, caller); err != nil {
				return err
			}
		}
		if e.issuer == nil {
			return errNilIssuer
		}
		now := e.now()
		lines := make([]*reservedLine, 0, len(reqs))
		total := big.NewInt(0)
		for _, req := range reqs {
			line, err := e.reserve(now, req)
			if err != nil {
				return err
			}
			lines = append(lines, line)
			total.Add(total, line.due)
		}
		paid := total
		if payment != nil {
			if payment.Cmp(total) < 0 {
				return ErrInsufficientFund
			}
			paid = new(big.Int).Set(payment)
		}
		if err := e.settle(lines); err != nil {
			return err
		}
		refund := new(big.Int).Sub(paid, total)
		if paid.Sign() > 0 {
			if e.bank == nil {
				return errNilBank
			}
			if err := e.bank.Transfer(caller, e.vault, paid); err != nil {
				return fmt.Errorf("%w: %v", ErrInsufficientFund, err)
			}
		}
		lockedUntil := uint64(0)
		if e.lockHorizon > 0 {
			lockedUntil = now + uint64(e.lockHorizon.Seconds())
		}
		for _, line := range lines {
			for _, id := range line.tokenIDs {
				if err := e.issuer.Issue(line.req.recipient, id, now, lockedUntil); err != nil {
					return err
				}
			}
		}
		if refund.Sign() > 0 {
			if err := e.bank.Transfer(e.vault, caller, refund); err != nil {
				return err
			}
		}
		receipt = &MintReceipt{Total: total, Paid: paid, Refund: refund}
		for _, line := range lines {
			receipt.Lines = append(receipt.Lines, LineReceipt{
				Tier:       line.req.tier,
				Phase:      line.req.phase,
				Recipient:  line.req.recipient,
				Quantity:   line.req.quantity,
				TokenIDs:   line.tokenIDs,
				Due:        line.due,
				Commission: line.commission,
				PromoCode:  line.req.promoCode,
			})
			e.emit(mintedEvent(caller, line))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// activePhase loads the phase a line mints from. Bulk lines use a synthetic
// phase with no window.
func (e *Engine) activePhase(now uint64, req lineRequest) (*Phase, error) {
	if req.bulk {
		return &Phase{Tier: req.tier, ID: BulkPhaseID, Kind: KindBulk}, nil
	}
	s := e.surfaceFor(req.phase)
	phase, ok, err := e.loadPhase(req.tier, req.phase)
	if err != nil {
		return nil, err
	}
	if !ok || statusOf(phase, now) != PhaseActive {
		return nil, s.errNotActive
	}
	return phase, nil
}

// eligibility checks the caller may mint from phase and returns the quota
// table entry, if any.
func (e *Engine) eligibility(phase *Phase, req lineRequest) (*Allowance, error) {
	switch phase.Kind {
	case KindGeneral, KindBulk:
		return nil, nil
	case KindAllowListProof:
		if !merkle.Verify(merkle.Hash(phase.Root), merkle.AccountLeaf(req.recipient), req.proof) {
			return nil, ErrUserNotWhitelisted
		}
		return nil, nil
	case KindAllowListProofQuota:
		if req.allowance == 0 || !merkle.Verify(merkle.Hash(phase.Root), merkle.AllowanceLeaf(req.recipient, req.allowance), req.proof) {
			return nil, ErrUserNotWhitelisted
		}
		return &Allowance{Quota: req.allowance}, nil
	case KindFixedQuota, KindWeightedQuota:
		allowance, ok, err := e.loadAllowance(phase, req.recipient)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrUserNotWhitelisted
		}
		return allowance, nil
	case KindPromoGated:
		if phase.Restricted {
			_, ok, err := e.loadAllowance(phase, req.recipient)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrUserNotWhitelisted
			}
		}
		return nil, nil
	default:
		return nil, ErrInvalidPhase
	}
}

// reserve validates one line and commits its counters. Checks run in a fixed
// order: tier, phase window, eligibility, per-tx, per-account, supply.
func (e *Engine) reserve(now uint64, req lineRequest) (*reservedLine, error) {
	tier, err := e.loadTier(req.tier)
	if err != nil {
		return nil, err
	}
	phase, err := e.activePhase(now, req)
	if err != nil {
		return nil, err
	}
	allowance, err := e.eligibility(phase, req)
	if err != nil {
		return nil, err
	}
	var promo *PromoCode
	if req.promoCode != "" {
		if phase.Kind != KindPromoGated {
			return nil, ErrPromoNotActive
		}
		if promo, err = e.resolvePromo(req.promoCode, tier.ID); err != nil {
			return nil, err
		}
	}

	if req.quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	perTx := tier.MaxPerTx
	if phase.MaxPerTx > 0 {
		perTx = phase.MaxPerTx
	}
	if req.quantity > perTx {
		return nil, ErrMaxPerTxExceeded
	}

	minted, err := e.mintedBy(phase, req.recipient)
	if err != nil {
		return nil, err
	}
	after := minted + req.quantity
	if allowance != nil && after > allowance.Quota {
		return nil, ErrMaxMintExceeded
	}
	walletCap, walletErr := tier.MaxPerWallet, ErrMaxPerWalletExceeded
	if phase.MaxPerWallet > 0 {
		walletCap = phase.MaxPerWallet
	} else if e.numbered(phase.ID) {
		walletErr = ErrMaxMintExceeded
	}
	if after > walletCap {
		return nil, walletErr
	}
	var redeemed uint64
	if promo != nil {
		if redeemed, err = e.redeemed(promo.Code, req.recipient); err != nil {
			return nil, err
		}
		if redeemed+req.quantity > promo.MaxPerWallet {
			return nil, ErrMaxPerWalletExceeded
		}
	}

	if req.quantity > tier.Remaining() {
		return nil, ErrMaxSupplyExceeded
	}
	if phase.MaxSupply > 0 && phase.Minted+req.quantity > phase.MaxSupply {
		return nil, ErrMaxSupplyExceeded
	}

	line := &reservedLine{req: req, promo: promo}
	if req.bulk {
		line.due, line.commission = big.NewInt(0), big.NewInt(0)
	} else {
		discount, commissionPct := uint64(0), uint64(0)
		if phase.Kind == KindWeightedQuota && allowance != nil {
			discount = allowance.Weight
		}
		if promo != nil {
			discount, commissionPct = promo.DiscountPct, promo.CommissionPct
		}
		if line.due, line.commission, err = quote(tier.Price, req.quantity, discount, commissionPct); err != nil {
			return nil, err
		}
	}

	line.tokenIDs = make([]uint64, 0, req.quantity)
	for i := uint64(1); i <= req.quantity; i++ {
		line.tokenIDs = append(line.tokenIDs, e.TokenID(tier.ID, tier.Issued+i))
	}
	tier.Issued += req.quantity
	if err := e.storeTier(tier); err != nil {
		return nil, err
	}
	if !req.bulk {
		phase.Minted += req.quantity
		if err := e.storePhase(phase); err != nil {
			return nil, err
		}
	}
	if err := e.setMintedBy(phase, req.recipient, after); err != nil {
		return nil, err
	}
	if promo != nil {
		if err := e.setRedeemed(promo.Code, req.recipient, redeemed+req.quantity); err != nil {
			return nil, err
		}
	}
	return line, nil
}
