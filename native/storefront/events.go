package storefront

import (
	"math/big"
	"strconv"
	"strings"

	"storefront/core/events"
	"storefront/core/types"
)

const (
	EventTypeTierInitialized     = "storefront.tier.initialized"
	EventTypeTierUpdated         = "storefront.tier.updated"
	EventTypePhaseStarted        = "storefront.phase.started"
	EventTypePhaseUpdated        = "storefront.phase.updated"
	EventTypePhaseInitialized    = "storefront.phase.initialized"
	EventTypePhaseStopped        = "storefront.phase.stopped"
	EventTypePromoUpdated        = "storefront.promo.updated"
	EventTypeMinted              = "storefront.minted"
	EventTypeCommissionAccrued   = "storefront.commission.accrued"
	EventTypeTreasuryWithdrawn   = "storefront.treasury.withdrawn"
	EventTypeInfluencerWithdrawn = "storefront.influencer.withdrawn"
	EventTypeTreasuryUpdated     = "storefront.treasury.updated"
	EventTypePauseToggled        = "storefront.pause.toggled"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// TierEvent describes a tier after it was created or changed.
func TierEvent(eventType string, tier *Tier) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"tier":         u64(tier.ID),
			"price":        bigOrZero(tier.Price).String(),
			"maxSupply":    u64(tier.MaxSupply),
			"issued":       u64(tier.Issued),
			"maxPerTx":     u64(tier.MaxPerTx),
			"maxPerWallet": u64(tier.MaxPerWallet),
		},
	}
}

// PhaseEvent describes a phase configuration change.
func PhaseEvent(eventType string, phase *Phase) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"tier":       u64(phase.Tier),
			"phase":      u64(uint64(phase.ID)),
			"kind":       phase.Kind.String(),
			"start":      u64(phase.Start),
			"end":        u64(phase.End),
			"maxSupply":  u64(phase.MaxSupply),
			"generation": u64(phase.Generation),
			"stopped":    strconv.FormatBool(phase.Stopped),
		},
	}
}

// PromoUpdatedEvent describes a promo code change.
func PromoUpdatedEvent(promo *PromoCode) *types.Event {
	return &types.Event{
		Type: EventTypePromoUpdated,
		Attributes: map[string]string{
			"code":          promo.Code,
			"tier":          u64(promo.Tier),
			"referrer":      hexAddr(promo.Referrer),
			"discountPct":   u64(promo.DiscountPct),
			"commissionPct": u64(promo.CommissionPct),
			"maxPerWallet":  u64(promo.MaxPerWallet),
			"active":        strconv.FormatBool(promo.Active),
		},
	}
}

// mintedEvent describes one issued line.
func mintedEvent(caller [20]byte, line *reservedLine) *types.Event {
	ids := make([]string, len(line.tokenIDs))
	for i, id := range line.tokenIDs {
		ids[i] = u64(id)
	}
	kind := "sale"
	switch {
	case line.req.bulk:
		kind = "bulk"
	case line.req.phase == PresalePhaseID:
		kind = "presale"
	case line.req.phase != SalePhaseID:
		kind = "phase"
	}
	return &types.Event{
		Type: EventTypeMinted,
		Attributes: map[string]string{
			"caller":     hexAddr(caller),
			"recipient":  hexAddr(line.req.recipient),
			"tier":       u64(line.req.tier),
			"phase":      u64(uint64(line.req.phase)),
			"source":     kind,
			"quantity":   u64(line.req.quantity),
			"tokenIds":   strings.Join(ids, ","),
			"paid":       bigOrZero(line.due).String(),
			"commission": bigOrZero(line.commission).String(),
			"promoCode":  line.req.promoCode,
		},
	}
}

// CommissionAccruedEvent records commission credited to a referrer.
func CommissionAccruedEvent(promo *PromoCode, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeCommissionAccrued,
		Attributes: map[string]string{
			"code":     promo.Code,
			"referrer": hexAddr(promo.Referrer),
			"amount":   bigOrZero(amount).String(),
		},
	}
}

// WithdrawnEvent records a payout from the vault.
func WithdrawnEvent(eventType string, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"to":     hexAddr(to),
			"amount": bigOrZero(amount).String(),
		},
	}
}

// TreasuryUpdatedEvent records a new treasury account.
func TreasuryUpdatedEvent(addr [20]byte) *types.Event {
	return &types.Event{
		Type:       EventTypeTreasuryUpdated,
		Attributes: map[string]string{"treasury": hexAddr(addr)},
	}
}

// PauseToggledEvent records a pause switch change.
func PauseToggledEvent(caller string, paused bool) *types.Event {
	return &types.Event{
		Type: EventTypePauseToggled,
		Attributes: map[string]string{
			"caller": caller,
			"paused": strconv.FormatBool(paused),
		},
	}
}
