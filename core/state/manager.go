package state

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"duelchain/native/duel"
	"duelchain/storage"
)

// Manager provides keyed access to all persisted ledger and duel state. Keys
// are keccak hashes of stable prefixed byte strings; values are RLP encoded.
// It implements the state interfaces consumed by the token ledger and the
// duel registry, the access gate consulted by Mint, and the module pause
// switchboard.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	balancePrefix   = []byte("balance:")
	allowancePrefix = []byte("allowance:")
	rolePrefix      = []byte("role:")
	duelPrefix      = []byte("duel:")
	pausedPrefix    = []byte("paused:")
	supplyKey       = ethcrypto.Keccak256([]byte("total-supply"))
	duelCountKey    = ethcrypto.Keccak256([]byte("duel-count"))
)

func balanceKey(addr [20]byte) []byte {
	buf := make([]byte, len(balancePrefix)+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func allowanceKey(owner, spender [20]byte) []byte {
	buf := make([]byte, len(allowancePrefix)+len(owner)+1+len(spender))
	copy(buf, allowancePrefix)
	copy(buf[len(allowancePrefix):], owner[:])
	buf[len(allowancePrefix)+len(owner)] = ':'
	copy(buf[len(allowancePrefix)+len(owner)+1:], spender[:])
	return ethcrypto.Keccak256(buf)
}

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return ethcrypto.Keccak256(buf)
}

func duelKey(id uint64) []byte {
	buf := make([]byte, len(duelPrefix)+8)
	copy(buf, duelPrefix)
	binary.BigEndian.PutUint64(buf[len(duelPrefix):], id)
	return ethcrypto.Keccak256(buf)
}

func pausedKey(module string) []byte {
	buf := make([]byte, len(pausedPrefix)+len(module))
	copy(buf, pausedPrefix)
	copy(buf[len(pausedPrefix):], module)
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) readBig(key []byte) (*big.Int, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if storage.IsNotFound(err) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (m *Manager) writeBig(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative amount not allowed")
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// Balance retrieves the token balance for the provided account.
func (m *Manager) Balance(addr [20]byte) (*big.Int, error) {
	return m.readBig(balanceKey(addr))
}

// SetBalance stores an account balance.
func (m *Manager) SetBalance(addr [20]byte, amount *big.Int) error {
	return m.writeBig(balanceKey(addr), amount)
}

// Allowance retrieves the spend allowance granted by owner to spender.
func (m *Manager) Allowance(owner, spender [20]byte) (*big.Int, error) {
	return m.readBig(allowanceKey(owner, spender))
}

// SetAllowance stores a spend allowance.
func (m *Manager) SetAllowance(owner, spender [20]byte, amount *big.Int) error {
	return m.writeBig(allowanceKey(owner, spender), amount)
}

// TotalSupply retrieves the total token supply.
func (m *Manager) TotalSupply() (*big.Int, error) {
	return m.readBig(supplyKey)
}

// SetTotalSupply stores the total token supply.
func (m *Manager) SetTotalSupply(amount *big.Int) error {
	return m.writeBig(supplyKey, amount)
}

func (m *Manager) roleMembers(role string) ([][]byte, error) {
	data, err := m.db.Get(roleKey(role))
	if err != nil {
		if storage.IsNotFound(err) {
			return [][]byte{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (m *Manager) writeRoleMembers(role string, members [][]byte) error {
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	return m.db.Put(roleKey(role), encoded)
}

// SetRole associates an address with the specified role. Duplicate
// assignments are ignored while the stored list remains sorted for
// determinism.
func (m *Manager) SetRole(role string, addr [20]byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	if addr == ([20]byte{}) {
		return fmt.Errorf("state: address must not be zero")
	}
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr[:]) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr[:]...))
	return m.writeRoleMembers(trimmed, members)
}

// RevokeRole removes an address from the specified role. Revoking an address
// that never held the role is a no-op.
func (m *Manager) RevokeRole(role string, addr [20]byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return err
	}
	filtered := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr[:]) {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(members) {
		return nil
	}
	return m.writeRoleMembers(trimmed, filtered)
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	return m.roleMembers(strings.TrimSpace(role))
}

// HasRole reports whether the provided address is associated with the
// specified role. Errors while reading the underlying state result in a
// false return, matching the best-effort semantics required by the callers.
func (m *Manager) HasRole(role string, addr [20]byte) bool {
	if addr == ([20]byte{}) {
		return false
	}
	members, err := m.roleMembers(strings.TrimSpace(role))
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr[:]) {
			return true
		}
	}
	return false
}

// storedDuel is the RLP-friendly wire form of a duel record. Signed fields
// are stored as unsigned since RLP rejects signed integers.
type storedDuel struct {
	ID                 uint64
	Challenger         [20]byte
	Defender           [20]byte
	Stake              *big.Int
	ChallengerCommit   [32]byte
	DefenderCommit     [32]byte
	ChallengerMove     uint8
	DefenderMove       uint8
	ChallengerRevealed bool
	DefenderRevealed   bool
	AcceptedAt         uint64
	Accepted           bool
	Resolved           bool
}

// DuelPut validates and persists a duel record keyed by its id.
func (m *Manager) DuelPut(d *duel.Duel) error {
	sanitized, err := duel.SanitizeDuel(d)
	if err != nil {
		return err
	}
	stored := storedDuel{
		ID:                 sanitized.ID,
		Challenger:         sanitized.Challenger,
		Defender:           sanitized.Defender,
		Stake:              sanitized.Stake,
		ChallengerCommit:   sanitized.ChallengerCommit,
		DefenderCommit:     sanitized.DefenderCommit,
		ChallengerMove:     uint8(sanitized.ChallengerMove),
		DefenderMove:       uint8(sanitized.DefenderMove),
		ChallengerRevealed: sanitized.ChallengerRevealed,
		DefenderRevealed:   sanitized.DefenderRevealed,
		AcceptedAt:         uint64(sanitized.AcceptedAt),
		Accepted:           sanitized.Accepted,
		Resolved:           sanitized.Resolved,
	}
	encoded, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return m.db.Put(duelKey(sanitized.ID), encoded)
}

// DuelGet retrieves a duel record by id.
func (m *Manager) DuelGet(id uint64) (*duel.Duel, bool, error) {
	data, err := m.db.Get(duelKey(id))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	var stored storedDuel
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, err
	}
	d := &duel.Duel{
		ID:                 stored.ID,
		Challenger:         stored.Challenger,
		Defender:           stored.Defender,
		Stake:              stored.Stake,
		ChallengerCommit:   stored.ChallengerCommit,
		DefenderCommit:     stored.DefenderCommit,
		ChallengerMove:     duel.Move(stored.ChallengerMove),
		DefenderMove:       duel.Move(stored.DefenderMove),
		ChallengerRevealed: stored.ChallengerRevealed,
		DefenderRevealed:   stored.DefenderRevealed,
		AcceptedAt:         int64(stored.AcceptedAt),
		Accepted:           stored.Accepted,
		Resolved:           stored.Resolved,
	}
	return d, true, nil
}

// DuelCount retrieves the number of duels ever created.
func (m *Manager) DuelCount() (uint64, error) {
	data, err := m.db.Get(duelCountKey)
	if err != nil {
		if storage.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var count uint64
	if err := rlp.DecodeBytes(data, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// SetDuelCount stores the duel counter.
func (m *Manager) SetDuelCount(count uint64) error {
	encoded, err := rlp.EncodeToBytes(count)
	if err != nil {
		return err
	}
	return m.db.Put(duelCountKey, encoded)
}

// SetPaused flips the pause flag for a native module.
func (m *Manager) SetPaused(module string, paused bool) error {
	trimmed := strings.TrimSpace(module)
	if trimmed == "" {
		return fmt.Errorf("state: module must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(paused)
	if err != nil {
		return err
	}
	return m.db.Put(pausedKey(trimmed), encoded)
}

// IsPaused reports whether the named module is administratively halted.
// Errors while reading the underlying state result in a false return.
func (m *Manager) IsPaused(module string) bool {
	data, err := m.db.Get(pausedKey(strings.TrimSpace(module)))
	if err != nil || len(data) == 0 {
		return false
	}
	var paused bool
	if err := rlp.DecodeBytes(data, &paused); err != nil {
		return false
	}
	return paused
}
