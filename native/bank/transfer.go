package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAmount       = errors.New("bank: amount must not be negative")
	ErrAssetRequired       = errors.New("bank: asset symbol required")
)

type ledgerState interface {
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
}

// ReceiveHook runs after a transfer has been applied. It models the recipient
// executing code on receipt and may call back into other modules.
type ReceiveHook func(from, to [20]byte, amount *big.Int) error

// Ledger moves a single settlement asset between accounts.
type Ledger struct {
	st     ledgerState
	asset  string
	onRecv ReceiveHook
}

// NewLedger binds a ledger to the given state and asset symbol.
func NewLedger(st ledgerState, asset string) (*Ledger, error) {
	symbol := strings.ToUpper(strings.TrimSpace(asset))
	if symbol == "" {
		return nil, ErrAssetRequired
	}
	if st == nil {
		return nil, fmt.Errorf("bank: state required")
	}
	return &Ledger{st: st, asset: symbol}, nil
}

// Asset returns the settlement asset symbol.
func (l *Ledger) Asset() string { return l.asset }

// SetReceiveHook installs the hook invoked after each transfer. Passing nil
// removes it.
func (l *Ledger) SetReceiveHook(hook ReceiveHook) { l.onRecv = hook }

// Balance returns the balance held by addr.
func (l *Ledger) Balance(addr [20]byte) (*big.Int, error) {
	return l.st.Balance(addr[:], l.asset)
}

// Credit mints amount into addr. Used for genesis funding.
func (l *Ledger) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	current, err := l.st.Balance(addr[:], l.asset)
	if err != nil {
		return err
	}
	return l.st.SetBalance(addr[:], l.asset, new(big.Int).Add(current, amount))
}

// Transfer moves amount from one account to another. Zero transfers are
// no-ops and do not invoke the receive hook.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBal, err := l.st.Balance(from[:], l.asset)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s want %s", ErrInsufficientBalance, fromBal, amount)
	}
	if err := l.st.SetBalance(from[:], l.asset, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	toBal, err := l.st.Balance(to[:], l.asset)
	if err != nil {
		return err
	}
	if err := l.st.SetBalance(to[:], l.asset, new(big.Int).Add(toBal, amount)); err != nil {
		return err
	}
	if l.onRecv != nil {
		return l.onRecv(from, to, new(big.Int).Set(amount))
	}
	return nil
}
