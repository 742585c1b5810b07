package genesis

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"duelchain/core/state"
)

// Spec declares the initial ledger allocation and role grants applied to an
// empty state exactly once. Addresses are 0x-prefixed 20-byte hex strings and
// amounts are decimal strings.
type Spec struct {
	Alloc map[string]string   `json:"alloc"`
	Roles map[string][]string `json:"roles"`
}

// Load reads and validates a genesis spec from the given JSON file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	spec := new(Spec)
	if err := json.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("genesis: decode %s: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate checks every address and amount without touching state.
func (s *Spec) Validate() error {
	if s == nil {
		return fmt.Errorf("genesis: nil spec")
	}
	for addr, amount := range s.Alloc {
		if _, err := ParseAddress(addr); err != nil {
			return err
		}
		if _, err := parseAmount(amount); err != nil {
			return fmt.Errorf("genesis: alloc %s: %w", addr, err)
		}
	}
	for role, members := range s.Roles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("genesis: empty role name")
		}
		for _, member := range members {
			if _, err := ParseAddress(member); err != nil {
				return err
			}
		}
	}
	return nil
}

// Apply seeds the state manager with the allocation and role grants. It
// refuses to run against a state that already holds supply or duels so the
// genesis can only ever be applied once. The minted total supply equals the
// sum of all allocated balances.
func (s *Spec) Apply(manager *state.Manager) error {
	if manager == nil {
		return fmt.Errorf("genesis: state manager required")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	supply, err := manager.TotalSupply()
	if err != nil {
		return err
	}
	count, err := manager.DuelCount()
	if err != nil {
		return err
	}
	if supply.Sign() != 0 || count != 0 {
		return fmt.Errorf("genesis: state already initialised")
	}

	// Deterministic application order.
	addrs := make([]string, 0, len(s.Alloc))
	for addr := range s.Alloc {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	total := big.NewInt(0)
	for _, raw := range addrs {
		addr, err := ParseAddress(raw)
		if err != nil {
			return err
		}
		amount, err := parseAmount(s.Alloc[raw])
		if err != nil {
			return err
		}
		existing, err := manager.Balance(addr)
		if err != nil {
			return err
		}
		if err := manager.SetBalance(addr, new(big.Int).Add(existing, amount)); err != nil {
			return err
		}
		total.Add(total, amount)
	}
	if err := manager.SetTotalSupply(total); err != nil {
		return err
	}

	roles := make([]string, 0, len(s.Roles))
	for role := range s.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		for _, member := range s.Roles[role] {
			addr, err := ParseAddress(member)
			if err != nil {
				return err
			}
			if err := manager.SetRole(role, addr); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseAddress decodes a 0x-prefixed 40-hex-char account address.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 40 {
		return addr, fmt.Errorf("genesis: address must be 20 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("genesis: decode address %s: %w", raw, err)
	}
	copy(addr[:], decoded)
	if addr == ([20]byte{}) {
		return addr, fmt.Errorf("genesis: zero address not allocatable")
	}
	return addr, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", raw)
	}
	return amount, nil
}
