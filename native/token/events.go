package token

import (
	"encoding/hex"
	"math/big"

	"duelchain/core/types"
)

const (
	// EventTypeTransfer is emitted for every balance movement, including
	// mint (zero-address sender) and burn (zero-address receiver).
	EventTypeTransfer = "token.transfer"
	// EventTypeApproval is emitted whenever an allowance is set.
	EventTypeApproval = "token.approval"
)

type tokenEvent struct {
	evt *types.Event
}

func (e tokenEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tokenEvent) Event() *types.Event { return e.evt }

// NewTransferEvent returns the canonical event payload for a balance move.
func NewTransferEvent(from, to [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"from":   hex.EncodeToString(from[:]),
		"to":     hex.EncodeToString(to[:]),
		"amount": cloneBigInt(amount).String(),
	}
	return &types.Event{Type: EventTypeTransfer, Attributes: attrs}
}

// NewApprovalEvent returns the canonical event payload for an allowance set.
func NewApprovalEvent(owner, spender [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"owner":   hex.EncodeToString(owner[:]),
		"spender": hex.EncodeToString(spender[:]),
		"amount":  cloneBigInt(amount).String(),
	}
	return &types.Event{Type: EventTypeApproval, Attributes: attrs}
}
