package duel

import "errors"

var (
	// ErrDuelNotFound indicates the duel id has never been allocated.
	ErrDuelNotFound = errors.New("duel: not found")
	// ErrInvalidDefender indicates the defender is the zero address.
	ErrInvalidDefender = errors.New("duel: invalid defender")
	// ErrSelfChallenge indicates the challenger named themselves as defender.
	ErrSelfChallenge = errors.New("duel: cannot challenge self")
	// ErrInvalidStake indicates a nil, zero or negative stake.
	ErrInvalidStake = errors.New("duel: stake must be positive")
	// ErrAlreadyAccepted indicates the duel has already been accepted.
	ErrAlreadyAccepted = errors.New("duel: already accepted")
	// ErrNotDefender indicates the accept caller is not the named defender.
	ErrNotDefender = errors.New("duel: caller is not the defender")
	// ErrNotAccepted indicates the duel has not been accepted yet.
	ErrNotAccepted = errors.New("duel: not accepted")
	// ErrAlreadyResolved indicates the duel reached its terminal state.
	ErrAlreadyResolved = errors.New("duel: already resolved")
	// ErrAlreadyRevealed indicates the participant already revealed a move.
	ErrAlreadyRevealed = errors.New("duel: move already revealed")
	// ErrInvalidReveal indicates the reveal does not match the stored commitment.
	ErrInvalidReveal = errors.New("duel: reveal does not match commitment")
	// ErrNotParticipant indicates the reveal caller is neither side of the duel.
	ErrNotParticipant = errors.New("duel: caller is not a participant")
	// ErrInvalidMove indicates a move integer outside 1..3.
	ErrInvalidMove = errors.New("duel: invalid move")
	// ErrTimeoutNotReached indicates the reveal deadline has not strictly passed.
	ErrTimeoutNotReached = errors.New("duel: reveal timeout not reached")
	// ErrDuelBusy indicates a reentrant call hit a duel with an in-flight mutation.
	ErrDuelBusy = errors.New("duel: operation in flight")

	errNilState  = errors.New("duel: state not configured")
	errNilLedger = errors.New("duel: ledger not configured")
)
