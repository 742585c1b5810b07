package duel

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"duelchain/core/types"
)

const (
	EventTypeDuelCreated  = "duel.created"
	EventTypeDuelAccepted = "duel.accepted"
	EventTypeMoveRevealed = "duel.move_revealed"
	EventTypeDuelResolved = "duel.resolved"
	EventTypeDuelRefunded = "duel.refunded"
)

type duelEvent struct {
	evt *types.Event
}

func (e duelEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e duelEvent) Event() *types.Event { return e.evt }

// NewCreatedEvent returns the canonical event payload for a newly created duel.
func NewCreatedEvent(d *Duel) *types.Event {
	return &types.Event{Type: EventTypeDuelCreated, Attributes: baseAttributes(d)}
}

// NewAcceptedEvent returns the canonical event payload emitted when the
// defender matches the stake.
func NewAcceptedEvent(d *Duel) *types.Event {
	attrs := baseAttributes(d)
	if d != nil {
		attrs["acceptedAt"] = strconv.FormatInt(d.AcceptedAt, 10)
	}
	return &types.Event{Type: EventTypeDuelAccepted, Attributes: attrs}
}

// NewMoveRevealedEvent returns the canonical event payload for a successful
// reveal by either participant.
func NewMoveRevealedEvent(d *Duel, revealer [20]byte, move Move) *types.Event {
	attrs := baseAttributes(d)
	attrs["revealer"] = hex.EncodeToString(revealer[:])
	attrs["move"] = move.String()
	return &types.Event{Type: EventTypeMoveRevealed, Attributes: attrs}
}

// NewResolvedEvent returns the canonical event payload emitted when the full
// pot is paid to a single winner.
func NewResolvedEvent(d *Duel, winner [20]byte, reward *big.Int) *types.Event {
	attrs := baseAttributes(d)
	attrs["winner"] = hex.EncodeToString(winner[:])
	if reward != nil {
		attrs["reward"] = reward.String()
	}
	return &types.Event{Type: EventTypeDuelResolved, Attributes: attrs}
}

// NewRefundedEvent returns the canonical event payload emitted when both
// sides receive their stake back.
func NewRefundedEvent(d *Duel) *types.Event {
	return &types.Event{Type: EventTypeDuelRefunded, Attributes: baseAttributes(d)}
}

func baseAttributes(d *Duel) map[string]string {
	attrs := make(map[string]string)
	if d == nil {
		return attrs
	}
	attrs["id"] = strconv.FormatUint(d.ID, 10)
	attrs["challenger"] = hex.EncodeToString(d.Challenger[:])
	attrs["defender"] = hex.EncodeToString(d.Defender[:])
	if d.Stake != nil {
		attrs["stake"] = d.Stake.String()
	}
	return attrs
}
