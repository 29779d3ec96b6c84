package events

import (
	"encoding/hex"
	"strconv"

	"storefront/core/types"
)

const (
	// TypeTokenTransfer is emitted when a collectible changes owner.
	TypeTokenTransfer = "collectible.transfer"
)

type TokenTransfer struct {
	TokenID uint64
	Tier    uint64
	From    [20]byte
	To      [20]byte
	At      uint64
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransfer,
		Attributes: map[string]string{
			"tokenId": strconv.FormatUint(e.TokenID, 10),
			"tier":    strconv.FormatUint(e.Tier, 10),
			"from":    "0x" + hex.EncodeToString(e.From[:]),
			"to":      "0x" + hex.EncodeToString(e.To[:]),
			"at":      strconv.FormatUint(e.At, 10),
		},
	}
}
