package duel

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"duelchain/core/events"
	"duelchain/native/token"
)

type mockState struct {
	duels      map[uint64]*Duel
	count      uint64
	balances   map[[20]byte]*big.Int
	allowances map[[40]byte]*big.Int
	supply     *big.Int
}

func newMockState() *mockState {
	return &mockState{
		duels:      make(map[uint64]*Duel),
		balances:   make(map[[20]byte]*big.Int),
		allowances: make(map[[40]byte]*big.Int),
		supply:     big.NewInt(0),
	}
}

func (m *mockState) DuelPut(d *Duel) error {
	sanitized, err := SanitizeDuel(d)
	if err != nil {
		return err
	}
	m.duels[sanitized.ID] = sanitized.Clone()
	return nil
}

func (m *mockState) DuelGet(id uint64) (*Duel, bool, error) {
	d, ok := m.duels[id]
	if !ok {
		return nil, false, nil
	}
	return d.Clone(), true, nil
}

func (m *mockState) DuelCount() (uint64, error) { return m.count, nil }

func (m *mockState) SetDuelCount(count uint64) error {
	m.count = count
	return nil
}

func (m *mockState) Balance(addr [20]byte) (*big.Int, error) {
	if balance, ok := m.balances[addr]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) SetBalance(addr [20]byte, amount *big.Int) error {
	m.balances[addr] = new(big.Int).Set(amount)
	return nil
}

func allowanceID(owner, spender [20]byte) [40]byte {
	var id [40]byte
	copy(id[:20], owner[:])
	copy(id[20:], spender[:])
	return id
}

func (m *mockState) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if allowance, ok := m.allowances[allowanceID(owner, spender)]; ok {
		return new(big.Int).Set(allowance), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) SetAllowance(owner, spender [20]byte, amount *big.Int) error {
	m.allowances[allowanceID(owner, spender)] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) TotalSupply() (*big.Int, error) { return new(big.Int).Set(m.supply), nil }

func (m *mockState) SetTotalSupply(amount *big.Int) error {
	m.supply = new(big.Int).Set(amount)
	return nil
}

const revealWindow = 100

type harness struct {
	state    *mockState
	ledger   *token.Ledger
	registry *Registry
	recorder *events.Recorder
	now      int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{state: newMockState(), recorder: events.NewRecorder(), now: 1_000_000}

	h.ledger = token.NewLedger()
	h.ledger.SetState(h.state)

	h.registry = NewRegistry()
	h.registry.SetState(h.state)
	h.registry.SetLedger(h.ledger)
	h.registry.SetRevealTimeout(revealWindow)
	h.registry.SetNowFunc(func() int64 { return h.now })
	h.registry.SetEmitter(h.recorder)
	return h
}

func (h *harness) fund(addr [20]byte, amount int64) {
	h.state.balances[addr] = big.NewInt(amount)
	h.state.supply = new(big.Int).Add(h.state.supply, big.NewInt(amount))
}

func (h *harness) balance(addr [20]byte) int64 {
	if balance, ok := h.state.balances[addr]; ok {
		return balance.Int64()
	}
	return 0
}

// requireConserved asserts the sum of all balances equals total supply.
func (h *harness) requireConserved(t *testing.T) {
	t.Helper()
	sum := big.NewInt(0)
	for _, balance := range h.state.balances {
		sum.Add(sum, balance)
	}
	require.Zero(t, sum.Cmp(h.state.supply), "sum of balances %s != supply %s", sum, h.state.supply)
}

func (h *harness) lastEventType(t *testing.T) string {
	t.Helper()
	evts := h.recorder.Events()
	require.NotEmpty(t, evts)
	return evts[len(evts)-1].EventType()
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func testSalt(fill byte) [SaltSize]byte {
	var salt [SaltSize]byte
	for i := range salt {
		salt[i] = fill
	}
	return salt
}

var (
	alice = testAddr(0x01)
	bob   = testAddr(0x02)
	carol = testAddr(0x03)
)

// startDuel creates and accepts a duel between alice (challenger) and bob
// (defender) with the supplied committed moves.
func startDuel(t *testing.T, h *harness, stake int64, challengerMove, defenderMove Move) uint64 {
	t.Helper()
	id, err := h.registry.Challenge(alice, bob, big.NewInt(stake), Commit(challengerMove, testSalt(0xA1)))
	require.NoError(t, err)
	require.NoError(t, h.registry.Accept(id, bob, Commit(defenderMove, testSalt(0xB2))))
	return id
}

func TestChallengeEscrowsStake(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)

	id, err := h.registry.Challenge(alice, bob, big.NewInt(10), Commit(MoveRock, testSalt(0xA1)))
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	require.Equal(t, int64(90), h.balance(alice))
	require.Equal(t, int64(10), h.balance(h.registry.Vault()))
	require.Equal(t, EventTypeDuelCreated, h.lastEventType(t))
	h.requireConserved(t)

	d, err := h.registry.Get(id)
	require.NoError(t, err)
	require.False(t, d.Accepted)
	require.False(t, d.Resolved)
	require.Zero(t, d.AcceptedAt)
}

func TestChallengeValidation(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	commit := Commit(MoveRock, testSalt(0xA1))

	_, err := h.registry.Challenge(alice, [20]byte{}, big.NewInt(10), commit)
	require.ErrorIs(t, err, ErrInvalidDefender)

	_, err = h.registry.Challenge(alice, alice, big.NewInt(10), commit)
	require.ErrorIs(t, err, ErrSelfChallenge)

	_, err = h.registry.Challenge(alice, bob, big.NewInt(0), commit)
	require.ErrorIs(t, err, ErrInvalidStake)

	_, err = h.registry.Challenge(alice, bob, big.NewInt(-5), commit)
	require.ErrorIs(t, err, ErrInvalidStake)

	_, err = h.registry.Challenge(alice, bob, nil, commit)
	require.ErrorIs(t, err, ErrInvalidStake)

	// Ledger failures propagate unchanged and leave no duel behind.
	_, err = h.registry.Challenge(alice, bob, big.NewInt(101), commit)
	require.ErrorIs(t, err, token.ErrInsufficientBalance)

	require.Equal(t, int64(100), h.balance(alice))
	count, err := h.registry.Count()
	require.NoError(t, err)
	require.Zero(t, count)
	require.Empty(t, h.recorder.Events())
}

func TestAcceptFlow(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)

	id, err := h.registry.Challenge(alice, bob, big.NewInt(25), Commit(MoveRock, testSalt(0xA1)))
	require.NoError(t, err)

	require.ErrorIs(t, h.registry.Accept(99, bob, Commit(MovePaper, testSalt(0xB2))), ErrDuelNotFound)
	require.ErrorIs(t, h.registry.Accept(id, carol, Commit(MovePaper, testSalt(0xB2))), ErrNotDefender)

	require.NoError(t, h.registry.Accept(id, bob, Commit(MovePaper, testSalt(0xB2))))
	require.Equal(t, int64(75), h.balance(bob))
	require.Equal(t, int64(50), h.balance(h.registry.Vault()))
	require.Equal(t, EventTypeDuelAccepted, h.lastEventType(t))

	d, err := h.registry.Get(id)
	require.NoError(t, err)
	require.True(t, d.Accepted)
	require.Equal(t, h.now, d.AcceptedAt)

	require.ErrorIs(t, h.registry.Accept(id, bob, Commit(MovePaper, testSalt(0xB2))), ErrAlreadyAccepted)
	h.requireConserved(t)
}

func TestBothRevealChallengerWins(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)

	id := startDuel(t, h, 10, MoveRock, MoveScissors)
	require.NoError(t, h.registry.Reveal(id, alice, uint8(MoveRock), testSalt(0xA1)))

	d, err := h.registry.Get(id)
	require.NoError(t, err)
	require.True(t, d.ChallengerRevealed)
	require.False(t, d.Resolved)

	require.NoError(t, h.registry.Reveal(id, bob, uint8(MoveScissors), testSalt(0xB2)))

	require.Equal(t, int64(110), h.balance(alice))
	require.Equal(t, int64(90), h.balance(bob))
	require.Zero(t, h.balance(h.registry.Vault()))
	require.Equal(t, EventTypeDuelResolved, h.lastEventType(t))
	h.requireConserved(t)

	d, err = h.registry.Get(id)
	require.NoError(t, err)
	require.True(t, d.Resolved)
}

func TestBothRevealDefenderWins(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 50)
	h.fund(bob, 50)

	id := startDuel(t, h, 20, MovePaper, MoveScissors)
	require.NoError(t, h.registry.Reveal(id, bob, uint8(MoveScissors), testSalt(0xB2)))
	require.NoError(t, h.registry.Reveal(id, alice, uint8(MovePaper), testSalt(0xA1)))

	require.Equal(t, int64(30), h.balance(alice))
	require.Equal(t, int64(70), h.balance(bob))
	require.Zero(t, h.balance(h.registry.Vault()))
	h.requireConserved(t)
}

func TestTieRefundsBoth(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)

	id := startDuel(t, h, 15, MovePaper, MovePaper)
	require.NoError(t, h.registry.Reveal(id, alice, uint8(MovePaper), testSalt(0xA1)))
	require.NoError(t, h.registry.Reveal(id, bob, uint8(MovePaper), testSalt(0xB2)))

	require.Equal(t, int64(100), h.balance(alice))
	require.Equal(t, int64(100), h.balance(bob))
	require.Zero(t, h.balance(h.registry.Vault()))
	require.Equal(t, EventTypeDuelRefunded, h.lastEventType(t))
	h.requireConserved(t)

	d, err := h.registry.Get(id)
	require.NoError(t, err)
	require.True(t, d.Resolved)
}

func TestRevealDecodesMoveBeforeIdentity(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)
	id := startDuel(t, h, 10, MoveRock, MovePaper)

	// An out-of-range move is rejected even for a caller who is not a
	// participant; only a decodable move reaches the identity branch.
	require.ErrorIs(t, h.registry.Reveal(id, carol, 0, testSalt(0xC3)), ErrInvalidMove)
	require.ErrorIs(t, h.registry.Reveal(id, carol, 4, testSalt(0xC3)), ErrInvalidMove)
	require.ErrorIs(t, h.registry.Reveal(id, carol, uint8(MoveRock), testSalt(0xC3)), ErrNotParticipant)
}

func TestRevealRejectsWrongSalt(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)
	id := startDuel(t, h, 10, MoveRock, MovePaper)

	require.ErrorIs(t, h.registry.Reveal(id, alice, uint8(MoveRock), testSalt(0xEE)), ErrInvalidReveal)
	require.ErrorIs(t, h.registry.Reveal(id, alice, uint8(MovePaper), testSalt(0xA1)), ErrInvalidReveal)

	d, err := h.registry.Get(id)
	require.NoError(t, err)
	require.False(t, d.ChallengerRevealed)
	require.Equal(t, MoveNone, d.ChallengerMove)
}

func TestRevealTwiceRejected(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)
	id := startDuel(t, h, 10, MoveRock, MovePaper)

	require.NoError(t, h.registry.Reveal(id, alice, uint8(MoveRock), testSalt(0xA1)))
	require.ErrorIs(t, h.registry.Reveal(id, alice, uint8(MoveRock), testSalt(0xA1)), ErrAlreadyRevealed)
}

func TestRevealLifecycleGuards(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)

	id, err := h.registry.Challenge(alice, bob, big.NewInt(10), Commit(MoveRock, testSalt(0xA1)))
	require.NoError(t, err)
	require.ErrorIs(t, h.registry.Reveal(id, alice, uint8(MoveRock), testSalt(0xA1)), ErrNotAccepted)
	require.ErrorIs(t, h.registry.Reveal(77, alice, uint8(MoveRock), testSalt(0xA1)), ErrDuelNotFound)

	require.NoError(t, h.registry.Accept(id, bob, Commit(MoveScissors, testSalt(0xB2))))
	require.NoError(t, h.registry.Reveal(id, alice, uint8(MoveRock), testSalt(0xA1)))
	require.NoError(t, h.registry.Reveal(id, bob, uint8(MoveScissors), testSalt(0xB2)))

	// Terminal: no further mutation on a resolved duel.
	require.ErrorIs(t, h.registry.Reveal(id, bob, uint8(MoveScissors), testSalt(0xB2)), ErrAlreadyResolved)
	require.ErrorIs(t, h.registry.ClaimTimeout(id), ErrAlreadyResolved)
}

func TestClaimTimeoutBoundary(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)
	id := startDuel(t, h, 10, MoveRock, MovePaper)

	acceptedAt := h.now

	// Exactly at the deadline is still "not timed out".
	h.now = acceptedAt + revealWindow
	require.ErrorIs(t, h.registry.ClaimTimeout(id), ErrTimeoutNotReached)

	h.now = acceptedAt + revealWindow + 1
	require.NoError(t, h.registry.ClaimTimeout(id))
}

func TestClaimTimeoutChallengerOnlyRevealedRefunds(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)
	id := startDuel(t, h, 10, MoveRock, MovePaper)

	require.NoError(t, h.registry.Reveal(id, alice, uint8(MoveRock), testSalt(0xA1)))
	h.now += revealWindow + 1
	require.NoError(t, h.registry.ClaimTimeout(id))

	// The challenger is only refunded, never rewarded, for the
	// counterpart's silence.
	require.Equal(t, int64(100), h.balance(alice))
	require.Equal(t, int64(100), h.balance(bob))
	require.Zero(t, h.balance(h.registry.Vault()))
	require.Equal(t, EventTypeDuelRefunded, h.lastEventType(t))
	h.requireConserved(t)
}

func TestClaimTimeoutDefenderOnlyRevealedRewards(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)
	id := startDuel(t, h, 10, MoveRock, MovePaper)

	require.NoError(t, h.registry.Reveal(id, bob, uint8(MovePaper), testSalt(0xB2)))
	h.now += revealWindow + 1
	require.NoError(t, h.registry.ClaimTimeout(id))

	require.Equal(t, int64(90), h.balance(alice))
	require.Equal(t, int64(110), h.balance(bob))
	require.Zero(t, h.balance(h.registry.Vault()))
	require.Equal(t, EventTypeDuelResolved, h.lastEventType(t))
	h.requireConserved(t)
}

func TestClaimTimeoutNeitherRevealedRefunds(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)
	id := startDuel(t, h, 40, MoveRock, MovePaper)

	h.now += revealWindow + 1
	require.NoError(t, h.registry.ClaimTimeout(id))

	require.Equal(t, int64(100), h.balance(alice))
	require.Equal(t, int64(100), h.balance(bob))
	require.Zero(t, h.balance(h.registry.Vault()))
	require.Equal(t, EventTypeDuelRefunded, h.lastEventType(t))
	h.requireConserved(t)
}

func TestClaimTimeoutRequiresAcceptance(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)

	id, err := h.registry.Challenge(alice, bob, big.NewInt(10), Commit(MoveRock, testSalt(0xA1)))
	require.NoError(t, err)

	h.now += revealWindow * 10
	require.ErrorIs(t, h.registry.ClaimTimeout(id), ErrNotAccepted)
	require.ErrorIs(t, h.registry.ClaimTimeout(42), ErrDuelNotFound)
}

func TestSequentialDenseIDs(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 1000)
	h.fund(bob, 1000)

	for want := uint64(1); want <= 5; want++ {
		id, err := h.registry.Challenge(alice, bob, big.NewInt(1), Commit(MoveRock, testSalt(byte(want))))
		require.NoError(t, err)
		require.Equal(t, want, id)
	}
	count, err := h.registry.Count()
	require.NoError(t, err)
	require.Equal(t, uint64(5), count)

	// A failed challenge does not consume an id.
	_, err = h.registry.Challenge(alice, alice, big.NewInt(1), Commit(MoveRock, testSalt(0xFF)))
	require.ErrorIs(t, err, ErrSelfChallenge)
	id, err := h.registry.Challenge(alice, bob, big.NewInt(1), Commit(MoveRock, testSalt(0x06)))
	require.NoError(t, err)
	require.Equal(t, uint64(6), id)
}

func TestReentrantCallRejected(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)
	id := startDuel(t, h, 10, MoveRock, MovePaper)

	// Simulate an in-flight payout holding the per-duel lock.
	require.NoError(t, h.registry.locks.Acquire(id))
	defer h.registry.locks.Release(id)

	require.ErrorIs(t, h.registry.Reveal(id, alice, uint8(MoveRock), testSalt(0xA1)), ErrDuelBusy)
	require.ErrorIs(t, h.registry.ClaimTimeout(id), ErrDuelBusy)
	require.ErrorIs(t, h.registry.Accept(id, bob, Commit(MovePaper, testSalt(0xB2))), ErrDuelBusy)
}

func TestResolvedPayoutEqualsPot(t *testing.T) {
	h := newHarness(t)
	h.fund(alice, 100)
	h.fund(bob, 100)

	id := startDuel(t, h, 30, MoveScissors, MovePaper)
	require.NoError(t, h.registry.Reveal(id, alice, uint8(MoveScissors), testSalt(0xA1)))
	require.NoError(t, h.registry.Reveal(id, bob, uint8(MovePaper), testSalt(0xB2)))

	// Winner receives exactly 2x stake; no value created or destroyed.
	require.Equal(t, int64(130), h.balance(alice))
	require.Equal(t, int64(70), h.balance(bob))
	require.Zero(t, h.balance(h.registry.Vault()))
	h.requireConserved(t)
}
