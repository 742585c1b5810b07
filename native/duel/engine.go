package duel

import (
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"duelchain/core/events"
	"duelchain/core/types"
	"duelchain/native/common"
)

// DefaultRevealTimeout is the reveal window in seconds applied when no
// override is configured.
const DefaultRevealTimeout int64 = 86400

type registryState interface {
	DuelPut(*Duel) error
	DuelGet(id uint64) (*Duel, bool, error)
	DuelCount() (uint64, error)
	SetDuelCount(count uint64) error
}

// stakeLedger is the slice of the token ledger the registry needs: checked
// balance moves between participants and the registry vault. The registry
// never touches balances directly.
type stakeLedger interface {
	Transfer(caller, to [20]byte, amount *big.Int) error
}

// Registry owns the duel table and drives escrow and payouts through the
// token ledger. Every mutating operation holds a per-duel lock so a payout
// that calls back into the registry cannot re-enter the same duel.
type Registry struct {
	state         registryState
	ledger        stakeLedger
	pauses        common.PauseView
	emitter       events.Emitter
	locks         *common.Locker
	vault         [20]byte
	revealTimeout int64
	nowFn         func() int64
}

// NewRegistry creates a duel registry with the default vault address, reveal
// timeout and a no-op emitter.
func NewRegistry() *Registry {
	return &Registry{
		emitter:       events.NoopEmitter{},
		locks:         common.NewLocker(),
		vault:         VaultAddress(),
		revealTimeout: DefaultRevealTimeout,
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// VaultAddress returns the deterministic module account that holds all
// escrowed stakes on the ledger.
func VaultAddress() [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte("duelchain/duel/vault"))
	copy(addr[:], digest[len(digest)-20:])
	return addr
}

// SetState configures the state backend used by the registry.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetLedger configures the token ledger used for escrow and payouts.
func (r *Registry) SetLedger(ledger stakeLedger) { r.ledger = ledger }

// SetPauses configures the module pause switchboard.
func (r *Registry) SetPauses(p common.PauseView) { r.pauses = p }

// SetRevealTimeout overrides the reveal window in seconds. Non-positive
// values restore the default.
func (r *Registry) SetRevealTimeout(seconds int64) {
	if seconds <= 0 {
		r.revealTimeout = DefaultRevealTimeout
		return
	}
	r.revealTimeout = seconds
}

// SetNowFunc overrides the time source used by the registry. Primarily
// intended for tests to provide deterministic timestamps.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

// SetEmitter configures the event emitter used by the registry. Passing nil
// resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// Vault returns the registry's escrow account address.
func (r *Registry) Vault() [20]byte { return r.vault }

func (r *Registry) emit(event *types.Event) {
	if r == nil || r.emitter == nil || event == nil {
		return
	}
	r.emitter.Emit(duelEvent{evt: event})
}

func (r *Registry) now() int64 {
	if r == nil || r.nowFn == nil {
		return time.Now().Unix()
	}
	return r.nowFn()
}

func (r *Registry) lock(id uint64) error {
	if r.locks == nil {
		r.locks = common.NewLocker()
	}
	if err := r.locks.Acquire(id); err != nil {
		return ErrDuelBusy
	}
	return nil
}

func (r *Registry) loadDuel(id uint64) (*Duel, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	d, ok, err := r.state.DuelGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDuelNotFound
	}
	return d, nil
}

// Challenge escrows the caller's stake and records a new duel in the Created
// state. It returns the allocated sequential id.
func (r *Registry) Challenge(caller, defender [20]byte, stake *big.Int, commit [32]byte) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, errNilState
	}
	if r.ledger == nil {
		return 0, errNilLedger
	}
	if err := common.Guard(r.pauses, common.ModuleDuel); err != nil {
		return 0, err
	}
	if defender == ([20]byte{}) {
		return 0, ErrInvalidDefender
	}
	if defender == caller {
		return 0, ErrSelfChallenge
	}
	if stake == nil || stake.Sign() <= 0 {
		return 0, ErrInvalidStake
	}
	count, err := r.state.DuelCount()
	if err != nil {
		return 0, err
	}
	d := &Duel{
		ID:               count + 1,
		Challenger:       caller,
		Defender:         defender,
		Stake:            new(big.Int).Set(stake),
		ChallengerCommit: commit,
	}
	sanitized, err := SanitizeDuel(d)
	if err != nil {
		return 0, err
	}
	if err := r.ledger.Transfer(caller, r.vault, sanitized.Stake); err != nil {
		return 0, err
	}
	if err := r.state.DuelPut(sanitized); err != nil {
		return 0, err
	}
	if err := r.state.SetDuelCount(sanitized.ID); err != nil {
		return 0, err
	}
	r.emit(NewCreatedEvent(sanitized))
	return sanitized.ID, nil
}

// Accept escrows the defender's matching stake, records their commitment and
// starts the reveal clock.
func (r *Registry) Accept(id uint64, caller [20]byte, commit [32]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if r.ledger == nil {
		return errNilLedger
	}
	if err := common.Guard(r.pauses, common.ModuleDuel); err != nil {
		return err
	}
	if err := r.lock(id); err != nil {
		return err
	}
	defer r.locks.Release(id)
	d, err := r.loadDuel(id)
	if err != nil {
		return err
	}
	if d.Accepted {
		return ErrAlreadyAccepted
	}
	if caller != d.Defender {
		return ErrNotDefender
	}
	if err := r.ledger.Transfer(caller, r.vault, d.Stake); err != nil {
		return err
	}
	d.DefenderCommit = commit
	d.Accepted = true
	d.AcceptedAt = r.now()
	if err := r.state.DuelPut(d); err != nil {
		return err
	}
	r.emit(NewAcceptedEvent(d))
	return nil
}

// Reveal discloses one side's move. The move integer is decoded before the
// participant branch so an out-of-range value is rejected no matter who
// calls. When the second side reveals, resolution runs synchronously inside
// the same call.
func (r *Registry) Reveal(id uint64, caller [20]byte, moveInt uint8, salt [SaltSize]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if r.ledger == nil {
		return errNilLedger
	}
	if err := common.Guard(r.pauses, common.ModuleDuel); err != nil {
		return err
	}
	if err := r.lock(id); err != nil {
		return err
	}
	defer r.locks.Release(id)
	d, err := r.loadDuel(id)
	if err != nil {
		return err
	}
	if !d.Accepted {
		return ErrNotAccepted
	}
	if d.Resolved {
		return ErrAlreadyResolved
	}
	move, err := ParseMove(moveInt)
	if err != nil {
		return err
	}
	computed := Commit(move, salt)
	switch caller {
	case d.Challenger:
		if d.ChallengerRevealed {
			return ErrAlreadyRevealed
		}
		if computed != d.ChallengerCommit {
			return ErrInvalidReveal
		}
		d.ChallengerMove = move
		d.ChallengerRevealed = true
	case d.Defender:
		if d.DefenderRevealed {
			return ErrAlreadyRevealed
		}
		if computed != d.DefenderCommit {
			return ErrInvalidReveal
		}
		d.DefenderMove = move
		d.DefenderRevealed = true
	default:
		return ErrNotParticipant
	}
	if err := r.state.DuelPut(d); err != nil {
		return err
	}
	r.emit(NewMoveRevealedEvent(d, caller, move))
	if d.BothRevealed() {
		return r.resolve(d)
	}
	return nil
}

// resolve settles a duel where both moves are known. The caller must hold the
// per-duel lock.
func (r *Registry) resolve(d *Duel) error {
	if d.Resolved {
		return ErrAlreadyResolved
	}
	pot := new(big.Int).Mul(d.Stake, big.NewInt(2))
	if d.ChallengerMove == d.DefenderMove {
		if err := r.refundBoth(d); err != nil {
			return err
		}
		return r.finalize(d, NewRefundedEvent(d))
	}
	winner := d.Challenger
	if d.DefenderMove.Beats(d.ChallengerMove) {
		winner = d.Defender
	}
	if err := r.ledger.Transfer(r.vault, winner, pot); err != nil {
		return err
	}
	return r.finalize(d, NewResolvedEvent(d, winner, pot))
}

// ClaimTimeout settles an accepted duel whose reveal window has strictly
// elapsed. A defender who revealed against a silent challenger takes the full
// pot; every other combination refunds both sides.
func (r *Registry) ClaimTimeout(id uint64) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if r.ledger == nil {
		return errNilLedger
	}
	if err := common.Guard(r.pauses, common.ModuleDuel); err != nil {
		return err
	}
	if err := r.lock(id); err != nil {
		return err
	}
	defer r.locks.Release(id)
	d, err := r.loadDuel(id)
	if err != nil {
		return err
	}
	if !d.Accepted {
		return ErrNotAccepted
	}
	if d.Resolved {
		return ErrAlreadyResolved
	}
	if r.now() <= d.AcceptedAt+r.revealTimeout {
		return ErrTimeoutNotReached
	}
	if d.DefenderRevealed && !d.ChallengerRevealed {
		pot := new(big.Int).Mul(d.Stake, big.NewInt(2))
		if err := r.ledger.Transfer(r.vault, d.Defender, pot); err != nil {
			return err
		}
		return r.finalize(d, NewResolvedEvent(d, d.Defender, pot))
	}
	if err := r.refundBoth(d); err != nil {
		return err
	}
	return r.finalize(d, NewRefundedEvent(d))
}

func (r *Registry) refundBoth(d *Duel) error {
	if err := r.ledger.Transfer(r.vault, d.Challenger, d.Stake); err != nil {
		return err
	}
	return r.ledger.Transfer(r.vault, d.Defender, d.Stake)
}

func (r *Registry) finalize(d *Duel, event *types.Event) error {
	d.Resolved = true
	if err := r.state.DuelPut(d); err != nil {
		return err
	}
	r.emit(event)
	return nil
}

// Get returns a copy of the duel record for inspection.
func (r *Registry) Get(id uint64) (*Duel, error) {
	d, err := r.loadDuel(id)
	if err != nil {
		return nil, err
	}
	return d.Clone(), nil
}

// Count returns the number of duels ever created.
func (r *Registry) Count() (uint64, error) {
	if r == nil || r.state == nil {
		return 0, errNilState
	}
	return r.state.DuelCount()
}
