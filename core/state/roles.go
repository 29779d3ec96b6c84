package state

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"
)

var (
	rolePrefix    = []byte("role:")
	pausePrefix   = []byte("pause:")
	balancePrefix = []byte("balance:")
)

func roleKey(role string) []byte {
	return append(append([]byte(nil), rolePrefix...), role...)
}

func pauseKey(module string) []byte {
	return append(append([]byte(nil), pausePrefix...), strings.ToLower(module)...)
}

func balanceKey(addr []byte, symbol string) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(symbol)+1+len(addr))
	buf = append(buf, balancePrefix...)
	buf = append(buf, symbol...)
	buf = append(buf, ':')
	return append(buf, addr...)
}

// SetRole grants role to addr.
func (m *Manager) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	return m.KVAppend(roleKey(trimmed), addr)
}

// RemoveRole revokes role from addr. Revoking a role the address does not hold
// is a no-op.
func (m *Manager) RemoveRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	return m.KVRemove(roleKey(trimmed), addr)
}

// HasRole reports whether addr is a member of role.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	var members [][]byte
	if err := m.KVGetList(roleKey(strings.TrimSpace(role)), &members); err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// RoleMembers lists every address holding role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	var members [][]byte
	if err := m.KVGetList(roleKey(strings.TrimSpace(role)), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SetPaused toggles the pause flag for a module.
func (m *Manager) SetPaused(module string, paused bool) error {
	if strings.TrimSpace(module) == "" {
		return fmt.Errorf("module must not be empty")
	}
	if !paused {
		return m.KVDelete(pauseKey(module))
	}
	return m.KVPut(pauseKey(module), true)
}

// IsPaused implements the native/common PauseView.
func (m *Manager) IsPaused(module string) bool {
	var paused bool
	ok, err := m.KVGet(pauseKey(module), &paused)
	return err == nil && ok && paused
}

// Balance returns the balance of addr in the given asset.
func (m *Manager) Balance(addr []byte, symbol string) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(balanceKey(addr, normalizeSymbol(symbol)), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

// SetBalance overwrites the balance of addr in the given asset.
func (m *Manager) SetBalance(addr []byte, symbol string, amount *big.Int) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("balance must not be negative")
	}
	key := balanceKey(addr, normalizeSymbol(symbol))
	if amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, amount)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
