package storefrontd

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"storefront/crypto"
	"storefront/native/storefront"
)

type errorResponse struct {
	Error string `json:"error"`
}

type tierView struct {
	ID           uint64 `json:"id"`
	Price        string `json:"price"`
	MaxSupply    uint64 `json:"maxSupply"`
	Issued       uint64 `json:"issued"`
	Remaining    uint64 `json:"remaining"`
	MaxPerTx     uint64 `json:"maxPerTx"`
	MaxPerWallet uint64 `json:"maxPerWallet"`
}

func newTierView(t *storefront.Tier) tierView {
	return tierView{
		ID:           t.ID,
		Price:        amountString(t.Price),
		MaxSupply:    t.MaxSupply,
		Issued:       t.Issued,
		Remaining:    t.Remaining(),
		MaxPerTx:     t.MaxPerTx,
		MaxPerWallet: t.MaxPerWallet,
	}
}

type phaseView struct {
	Tier         uint64 `json:"tier"`
	Phase        uint8  `json:"phase"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	Start        uint64 `json:"start"`
	End          uint64 `json:"end"`
	MaxSupply    uint64 `json:"maxSupply"`
	Minted       uint64 `json:"minted"`
	MaxPerWallet uint64 `json:"maxPerWallet,omitempty"`
	MaxPerTx     uint64 `json:"maxPerTx,omitempty"`
	Root         string `json:"root,omitempty"`
	Restricted   bool   `json:"restricted,omitempty"`
	Stopped      bool   `json:"stopped"`
	Generation   uint64 `json:"generation"`
	Active       bool   `json:"active"`
}

func newPhaseView(v *storefront.PhaseView) phaseView {
	p := v.Phase
	out := phaseView{
		Tier:         p.Tier,
		Phase:        p.ID,
		Status:       string(v.Status),
		Start:        p.Start,
		End:          p.End,
		MaxSupply:    p.MaxSupply,
		Minted:       p.Minted,
		MaxPerWallet: p.MaxPerWallet,
		MaxPerTx:     p.MaxPerTx,
		Restricted:   p.Restricted,
		Stopped:      p.Stopped,
		Generation:   p.Generation,
		Active:       v.Status == storefront.PhaseActive,
	}
	if p.Kind != 0 {
		out.Kind = p.Kind.String()
	}
	if p.Root != ([32]byte{}) {
		out.Root = common.Hash(p.Root).Hex()
	}
	return out
}

type promoView struct {
	Code          string `json:"code"`
	Tier          uint64 `json:"tier"`
	Referrer      string `json:"referrer"`
	DiscountPct   uint64 `json:"discountPct"`
	CommissionPct uint64 `json:"commissionPct"`
	MaxPerWallet  uint64 `json:"maxPerWallet"`
	Active        bool   `json:"active"`
}

func newPromoView(p *storefront.PromoCode) promoView {
	return promoView{
		Code:          p.Code,
		Tier:          p.Tier,
		Referrer:      crypto.FormatAccount(p.Referrer),
		DiscountPct:   p.DiscountPct,
		CommissionPct: p.CommissionPct,
		MaxPerWallet:  p.MaxPerWallet,
		Active:        p.Active,
	}
}

type lineView struct {
	Tier       uint64   `json:"tier"`
	Phase      uint8    `json:"phase"`
	Recipient  string   `json:"recipient"`
	Quantity   uint64   `json:"quantity"`
	TokenIDs   []uint64 `json:"tokenIds"`
	Due        string   `json:"due"`
	Commission string   `json:"commission"`
	PromoCode  string   `json:"promoCode,omitempty"`
}

type receiptView struct {
	ReceiptID string     `json:"receiptId"`
	Lines     []lineView `json:"lines"`
	Total     string     `json:"total"`
	Paid      string     `json:"paid"`
	Refund    string     `json:"refund"`
}

func newReceiptView(id string, r *storefront.MintReceipt) receiptView {
	out := receiptView{
		ReceiptID: id,
		Lines:     make([]lineView, len(r.Lines)),
		Total:     amountString(r.Total),
		Paid:      amountString(r.Paid),
		Refund:    amountString(r.Refund),
	}
	for i, line := range r.Lines {
		out.Lines[i] = lineView{
			Tier:       line.Tier,
			Phase:      line.Phase,
			Recipient:  crypto.FormatAccount(line.Recipient),
			Quantity:   line.Quantity,
			TokenIDs:   line.TokenIDs,
			Due:        amountString(line.Due),
			Commission: amountString(line.Commission),
			PromoCode:  line.PromoCode,
		}
	}
	return out
}

type referralView struct {
	Referrer  string `json:"referrer"`
	Accrued   string `json:"accrued"`
	Withdrawn string `json:"withdrawn"`
	Balance   string `json:"balance"`
}

func newReferralView(r *storefront.Referral) referralView {
	return referralView{
		Referrer:  crypto.FormatAccount(r.Referrer),
		Accrued:   amountString(r.Accrued),
		Withdrawn: amountString(r.Withdrawn),
		Balance:   amountString(r.Balance()),
	}
}

type revenueView struct {
	Asset               string         `json:"asset"`
	Treasury            string         `json:"treasury"`
	TotalCollected      string         `json:"totalCollected"`
	TreasuryAccrued     string         `json:"treasuryAccrued"`
	TreasuryWithdrawn   string         `json:"treasuryWithdrawn"`
	TreasuryBalance     string         `json:"treasuryBalance"`
	CommissionAccrued   string         `json:"commissionAccrued"`
	CommissionWithdrawn string         `json:"commissionWithdrawn"`
	CommissionBalance   string         `json:"commissionBalance"`
	Influencers         []referralView `json:"influencers"`
}

type withdrawalView struct {
	ReceiptID string `json:"receiptId"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
