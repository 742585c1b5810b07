package duel

import (
	"fmt"
	"math/big"
)

// Move enumerates the commit-reveal game moves. MoveNone is only ever the
// unset default and is never accepted from a caller.
type Move uint8

const (
	MoveNone Move = iota
	MoveRock
	MovePaper
	MoveScissors
)

// ParseMove decodes a caller-supplied move integer. Only 1..3 are valid.
func ParseMove(v uint8) (Move, error) {
	move := Move(v)
	if move != MoveRock && move != MovePaper && move != MoveScissors {
		return MoveNone, ErrInvalidMove
	}
	return move, nil
}

// Beats reports whether the move wins against the other under the cyclic
// dominance rule: rock beats scissors, paper beats rock, scissors beats paper.
func (m Move) Beats(other Move) bool {
	switch m {
	case MoveRock:
		return other == MoveScissors
	case MovePaper:
		return other == MoveRock
	case MoveScissors:
		return other == MovePaper
	default:
		return false
	}
}

func (m Move) String() string {
	switch m {
	case MoveNone:
		return "none"
	case MoveRock:
		return "rock"
	case MovePaper:
		return "paper"
	case MoveScissors:
		return "scissors"
	default:
		return fmt.Sprintf("move(%d)", uint8(m))
	}
}

// Duel captures one commit-reveal match between two parties staking equal
// ledger balances. IDs are allocated sequentially starting at 1 and a record
// is never deleted; once Resolved flips true the record is an immutable
// historical entry.
type Duel struct {
	ID                 uint64
	Challenger         [20]byte
	Defender           [20]byte
	Stake              *big.Int
	ChallengerCommit   [32]byte
	DefenderCommit     [32]byte
	ChallengerMove     Move
	DefenderMove       Move
	ChallengerRevealed bool
	DefenderRevealed   bool
	AcceptedAt         int64
	Accepted           bool
	Resolved           bool
}

// Clone returns a deep copy of the duel so callers can safely mutate the copy
// without affecting the stored instance.
func (d *Duel) Clone() *Duel {
	if d == nil {
		return nil
	}
	clone := *d
	if d.Stake != nil {
		clone.Stake = new(big.Int).Set(d.Stake)
	} else {
		clone.Stake = big.NewInt(0)
	}
	return &clone
}

// BothRevealed reports whether both sides have disclosed their moves.
func (d *Duel) BothRevealed() bool {
	return d != nil && d.ChallengerRevealed && d.DefenderRevealed
}

// SanitizeDuel validates the supplied duel record and returns a cloned
// instance with a non-nil stake. The function does not mutate the original.
func SanitizeDuel(d *Duel) (*Duel, error) {
	if d == nil {
		return nil, fmt.Errorf("nil duel")
	}
	clone := d.Clone()
	if clone.ID == 0 {
		return nil, fmt.Errorf("duel id must be positive")
	}
	if clone.Challenger == ([20]byte{}) {
		return nil, fmt.Errorf("duel challenger must not be zero")
	}
	if clone.Defender == ([20]byte{}) {
		return nil, ErrInvalidDefender
	}
	if clone.Stake.Sign() <= 0 {
		return nil, ErrInvalidStake
	}
	if clone.ChallengerRevealed && clone.ChallengerMove == MoveNone {
		return nil, ErrInvalidMove
	}
	if clone.DefenderRevealed && clone.DefenderMove == MoveNone {
		return nil, ErrInvalidMove
	}
	return clone, nil
}
