package token

import (
	"math/big"

	"duelchain/core/events"
	"duelchain/core/types"
	"duelchain/native/common"
)

// RoleMinter is the access-gate role required to mint new supply.
const RoleMinter = "ROLE_MINTER"

// AccessGate answers role-membership queries for capability-gated operations.
// The ledger consumes it for mint authorisation and never mutates it.
type AccessGate interface {
	HasRole(role string, addr [20]byte) bool
}

type ledgerState interface {
	Balance(addr [20]byte) (*big.Int, error)
	SetBalance(addr [20]byte, amount *big.Int) error
	Allowance(owner, spender [20]byte) (*big.Int, error)
	SetAllowance(owner, spender [20]byte, amount *big.Int) error
	TotalSupply() (*big.Int, error)
	SetTotalSupply(amount *big.Int) error
}

// Ledger owns account balances, spend allowances and the total supply. Every
// mutating operation validates all preconditions before the first state write
// so a failed call leaves state untouched.
type Ledger struct {
	state   ledgerState
	gate    AccessGate
	pauses  common.PauseView
	emitter events.Emitter
}

// NewLedger creates a ledger with a no-op emitter. Callers can override the
// emitter via SetEmitter.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetAccessGate configures the role registry consulted by Mint.
func (l *Ledger) SetAccessGate(gate AccessGate) { l.gate = gate }

// SetPauses configures the module pause switchboard.
func (l *Ledger) SetPauses(p common.PauseView) { l.pauses = p }

// SetEmitter configures the event emitter used by the ledger. Passing nil
// resets the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(event *types.Event) {
	if l == nil || l.emitter == nil || event == nil {
		return
	}
	l.emitter.Emit(tokenEvent{evt: event})
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Mint credits newly issued supply to the given account. The caller must hold
// the minter role.
func (l *Ledger) Mint(caller, account [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := common.Guard(l.pauses, common.ModuleToken); err != nil {
		return err
	}
	if l.gate == nil || !l.gate.HasRole(RoleMinter, caller) {
		return ErrUnauthorized
	}
	if account == ([20]byte{}) {
		return ErrInvalidReceiver
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	balance, err := l.state.Balance(account)
	if err != nil {
		return err
	}
	supply, err := l.state.TotalSupply()
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(account, new(big.Int).Add(balance, amt)); err != nil {
		return err
	}
	if err := l.state.SetTotalSupply(new(big.Int).Add(supply, amt)); err != nil {
		return err
	}
	l.emit(NewTransferEvent([20]byte{}, account, amt))
	return nil
}

// Burn destroys part of the caller's own balance, shrinking total supply.
func (l *Ledger) Burn(caller [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := common.Guard(l.pauses, common.ModuleToken); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	balance, err := l.state.Balance(caller)
	if err != nil {
		return err
	}
	if balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	supply, err := l.state.TotalSupply()
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(caller, new(big.Int).Sub(balance, amt)); err != nil {
		return err
	}
	if err := l.state.SetTotalSupply(new(big.Int).Sub(supply, amt)); err != nil {
		return err
	}
	l.emit(NewTransferEvent(caller, [20]byte{}, amt))
	return nil
}

// Transfer moves balance from the caller to the receiver.
func (l *Ledger) Transfer(caller, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := common.Guard(l.pauses, common.ModuleToken); err != nil {
		return err
	}
	if err := l.move(caller, to, amount); err != nil {
		return err
	}
	l.emit(NewTransferEvent(caller, to, cloneBigInt(amount)))
	return nil
}

// Approve sets the spender allowance over the caller's balance. The allowance
// is an absolute overwrite, not an increment: two racing approvals replace
// rather than compose, matching the shipped contract semantics.
func (l *Ledger) Approve(caller, spender [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := common.Guard(l.pauses, common.ModuleToken); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if err := l.state.SetAllowance(caller, spender, amt); err != nil {
		return err
	}
	l.emit(NewApprovalEvent(caller, spender, amt))
	return nil
}

// TransferFrom moves balance out of an owner account under a previously
// granted allowance. The allowance check precedes the balance guards and the
// allowance is decremented before the balance move.
func (l *Ledger) TransferFrom(caller, from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := common.Guard(l.pauses, common.ModuleToken); err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	allowance, err := l.state.Allowance(from, caller)
	if err != nil {
		return err
	}
	if allowance.Cmp(amt) < 0 {
		return ErrInsufficientAllowance
	}
	if to == ([20]byte{}) {
		return ErrInvalidReceiver
	}
	balance, err := l.state.Balance(from)
	if err != nil {
		return err
	}
	if balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	if err := l.state.SetAllowance(from, caller, new(big.Int).Sub(allowance, amt)); err != nil {
		return err
	}
	if err := l.move(from, to, amt); err != nil {
		return err
	}
	l.emit(NewTransferEvent(from, to, amt))
	return nil
}

// move performs the checked balance movement shared by Transfer and
// TransferFrom. All guards run before the first write.
func (l *Ledger) move(from, to [20]byte, amount *big.Int) error {
	if to == ([20]byte{}) {
		return ErrInvalidReceiver
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	fromBalance, err := l.state.Balance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := l.state.Balance(to)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(from, new(big.Int).Sub(fromBalance, amt)); err != nil {
		return err
	}
	return l.state.SetBalance(to, new(big.Int).Add(toBalance, amt))
}

// BalanceOf returns the balance for the given account, zero when unset.
func (l *Ledger) BalanceOf(account [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.Balance(account)
}

// Allowance returns the spend allowance granted by owner to spender.
func (l *Ledger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.Allowance(owner, spender)
}

// TotalSupply returns the current total token supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.TotalSupply()
}
