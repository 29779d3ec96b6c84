package storefront

import (
	"math/big"

	"storefront/crypto/merkle"
)

// Role names checked against the state role registry.
const (
	RoleAdmin  = "ROLE_STOREFRONT_ADMIN"
	RoleMinter = "ROLE_STOREFRONT_MINTER"
)

// ModuleName is the key used for pause toggles.
const ModuleName = "storefront"

// PercentDenominator is the base for discount, commission and weight values.
const PercentDenominator = 100

// Reserved phase identifiers. Numbered phases use 1..MaxPhaseID.
const (
	SalePhaseID    uint8 = 0
	BulkPhaseID    uint8 = 254
	PresalePhaseID uint8 = 255
)

// PhaseKind selects the eligibility and pricing rule applied by a phase.
type PhaseKind uint8

const (
	KindGeneral PhaseKind = iota + 1
	// KindAllowListProof requires a proof over keccak256(account).
	KindAllowListProof
	// KindAllowListProofQuota requires a proof over
	// keccak256(account ‖ uint256(quantity)); the proven quantity is the
	// account's allowance.
	KindAllowListProofQuota
	KindFixedQuota
	// KindWeightedQuota is a quota table whose weight is a per-account price
	// discount percentage.
	KindWeightedQuota
	// KindPromoGated accepts promo codes and optionally restricts buyers to
	// a configured account list.
	KindPromoGated
	// KindBulk is the administrative path. It is never stored as a phase.
	KindBulk
)

func (k PhaseKind) String() string {
	switch k {
	case KindGeneral:
		return "general"
	case KindAllowListProof:
		return "allowlist-proof"
	case KindAllowListProofQuota:
		return "allowlist-proof-quota"
	case KindFixedQuota:
		return "fixed-quota"
	case KindWeightedQuota:
		return "weighted-quota"
	case KindPromoGated:
		return "promo-gated"
	case KindBulk:
		return "bulk"
	default:
		return "unknown"
	}
}

// ParsePhaseKind resolves the textual kind used by configuration and RPC.
func ParsePhaseKind(value string) (PhaseKind, bool) {
	for k := KindGeneral; k <= KindBulk; k++ {
		if k.String() == value {
			return k, true
		}
	}
	return 0, false
}

// Tier is a product line with its own price and caps.
type Tier struct {
	ID           uint64
	Price        *big.Int
	MaxSupply    uint64
	Issued       uint64
	MaxPerTx     uint64
	MaxPerWallet uint64
}

// Remaining returns the units still available for issuance.
func (t *Tier) Remaining() uint64 {
	if t == nil || t.Issued >= t.MaxSupply {
		return 0
	}
	return t.MaxSupply - t.Issued
}

// Phase is a time-bounded minting window attached to a tier.
type Phase struct {
	Tier  uint64
	ID    uint8
	Kind  PhaseKind
	Start uint64
	End   uint64
	// MaxSupply bounds units minted through the phase. Zero leaves only the
	// tier cap in force.
	MaxSupply uint64
	Minted    uint64
	// MaxPerWallet and MaxPerTx override the tier caps when non-zero.
	MaxPerWallet uint64
	MaxPerTx     uint64
	Root         [32]byte
	Restricted   bool
	Stopped      bool
	Generation   uint64
}

// PhaseStatus is the lifecycle position of a phase at a point in time.
type PhaseStatus string

const (
	PhaseUninitialized PhaseStatus = "uninitialized"
	PhaseConfigured    PhaseStatus = "configured"
	PhaseActive        PhaseStatus = "active"
	PhaseSoldOut       PhaseStatus = "sold_out"
	PhaseExpired       PhaseStatus = "expired"
	PhaseStopped       PhaseStatus = "stopped"
)

// PhaseView pairs a phase with its derived status.
type PhaseView struct {
	Phase  Phase
	Status PhaseStatus
}

// PhaseConfig describes a numbered phase passed to InitPhase.
type PhaseConfig struct {
	Kind         PhaseKind
	Start        uint64
	End          uint64
	MaxSupply    uint64
	MaxPerWallet uint64
	MaxPerTx     uint64
	Root         [32]byte
	Accounts     [][20]byte
	Quotas       []uint64
	Weights      []uint64
}

// Allowance is a per-account entry of a quota table or eligibility list.
type Allowance struct {
	Quota  uint64
	Weight uint64
}

// PromoCode is a discount and referral code bound to a tier.
type PromoCode struct {
	Code          string
	Tier          uint64
	Referrer      [20]byte
	DiscountPct   uint64
	CommissionPct uint64
	MaxPerWallet  uint64
	Active        bool
}

// Revenue is the module-wide accounting of collected funds.
type Revenue struct {
	TotalCollected      *big.Int
	TreasuryAccrued     *big.Int
	TreasuryWithdrawn   *big.Int
	CommissionAccrued   *big.Int
	CommissionWithdrawn *big.Int
}

// TreasuryBalance returns treasury funds not yet withdrawn.
func (r *Revenue) TreasuryBalance() *big.Int {
	return new(big.Int).Sub(bigOrZero(r.TreasuryAccrued), bigOrZero(r.TreasuryWithdrawn))
}

// CommissionBalance returns referrer funds not yet withdrawn.
func (r *Revenue) CommissionBalance() *big.Int {
	return new(big.Int).Sub(bigOrZero(r.CommissionAccrued), bigOrZero(r.CommissionWithdrawn))
}

// TierRevenue tracks funds collected by one tier.
type TierRevenue struct {
	Tier       uint64
	Collected  *big.Int
	Commission *big.Int
}

// Referral tracks commission owed to one referrer.
type Referral struct {
	Referrer  [20]byte
	Accrued   *big.Int
	Withdrawn *big.Int
}

// Balance returns the commission still withdrawable by the referrer.
func (r *Referral) Balance() *big.Int {
	return new(big.Int).Sub(bigOrZero(r.Accrued), bigOrZero(r.Withdrawn))
}

// MintOptions carries the eligibility material for a numbered phase mint.
type MintOptions struct {
	Proof     []merkle.Hash
	Allowance uint64
	PromoCode string
}

// LineReceipt summarises one (tier, quantity) line of a mint.
type LineReceipt struct {
	Tier       uint64
	Phase      uint8
	Recipient  [20]byte
	Quantity   uint64
	TokenIDs   []uint64
	Due        *big.Int
	Commission *big.Int
	PromoCode  string
}

// MintReceipt is returned by every successful mint.
type MintReceipt struct {
	Lines  []LineReceipt
	Total  *big.Int
	Paid   *big.Int
	Refund *big.Int
}

// TokenIDs flattens the issued token identifiers in issuance order.
func (r *MintReceipt) TokenIDs() []uint64 {
	if r == nil {
		return nil
	}
	var ids []uint64
	for _, line := range r.Lines {
		ids = append(ids, line.TokenIDs...)
	}
	return ids
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
