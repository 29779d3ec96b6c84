// Package collectible is the ownership ledger for issued units. It assigns
// each token an owner and a transfer lock; the storefront engine consumes it
// through its Issue method.
package collectible

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrTokenExists    = errors.New("collectible: token already issued")
	ErrTokenNotFound  = errors.New("collectible: token not found")
	ErrNotOwner       = errors.New("collectible: caller does not own token")
	ErrTransferLocked = errors.New("collectible: transfer locked")
	ErrZeroRecipient  = errors.New("collectible: zero recipient")
)

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Token is the persisted ownership record.
type Token struct {
	ID          uint64
	Owner       [20]byte
	IssuedAt    uint64
	LockedUntil uint64
}

// IssueHook runs after a token has been recorded, modelling the recipient's
// receive callback.
type IssueHook func(to [20]byte, tokenID uint64) error

// Ledger tracks token ownership.
type Ledger struct {
	st      ledgerState
	onIssue IssueHook
}

// NewLedger returns a ledger over st.
func NewLedger(st ledgerState) *Ledger {
	return &Ledger{st: st}
}

// SetIssueHook installs the receive callback. Passing nil removes it.
func (l *Ledger) SetIssueHook(hook IssueHook) { l.onIssue = hook }

func tokenKey(id uint64) []byte {
	return []byte(fmt.Sprintf("collectible/token/%d", id))
}

func ownerIndexKey(owner [20]byte) []byte {
	return []byte(fmt.Sprintf("collectible/owner/%x", owner))
}

func encodeID(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

// Issue records a new token for to. The token may not be transferred before
// lockedUntil.
func (l *Ledger) Issue(to [20]byte, id uint64, issuedAt, lockedUntil uint64) error {
	if to == ([20]byte{}) {
		return ErrZeroRecipient
	}
	exists, err := l.st.KVGet(tokenKey(id), nil)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %d", ErrTokenExists, id)
	}
	token := Token{ID: id, Owner: to, IssuedAt: issuedAt, LockedUntil: lockedUntil}
	if err := l.st.KVPut(tokenKey(id), token); err != nil {
		return err
	}
	if err := l.st.KVAppend(ownerIndexKey(to), encodeID(id)); err != nil {
		return err
	}
	if l.onIssue != nil {
		return l.onIssue(to, id)
	}
	return nil
}

// Token loads the ownership record.
func (l *Ledger) Token(id uint64) (*Token, error) {
	token := new(Token)
	ok, err := l.st.KVGet(tokenKey(id), token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTokenNotFound, id)
	}
	return token, nil
}

// OwnerOf returns the current owner of id.
func (l *Ledger) OwnerOf(id uint64) ([20]byte, error) {
	token, err := l.Token(id)
	if err != nil {
		return [20]byte{}, err
	}
	return token.Owner, nil
}

// TokensOf lists the tokens held by owner in acquisition order.
func (l *Ledger) TokensOf(owner [20]byte) ([]uint64, error) {
	var raw [][]byte
	if err := l.st.KVGetList(ownerIndexKey(owner), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			return nil, fmt.Errorf("collectible: corrupt owner index entry")
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	return ids, nil
}

// BalanceOf returns the number of tokens held by owner.
func (l *Ledger) BalanceOf(owner [20]byte) (uint64, error) {
	ids, err := l.TokensOf(owner)
	if err != nil {
		return 0, err
	}
	return uint64(len(ids)), nil
}

// Transfer moves id from its owner to to. The caller must be the owner and
// the transfer lock must have elapsed.
func (l *Ledger) Transfer(caller, to [20]byte, id uint64, now uint64) error {
	if to == ([20]byte{}) {
		return ErrZeroRecipient
	}
	token, err := l.Token(id)
	if err != nil {
		return err
	}
	if token.Owner != caller {
		return ErrNotOwner
	}
	if now < token.LockedUntil {
		return fmt.Errorf("%w: until %d", ErrTransferLocked, token.LockedUntil)
	}
	if err := l.st.KVRemove(ownerIndexKey(caller), encodeID(id)); err != nil {
		return err
	}
	token.Owner = to
	if err := l.st.KVPut(tokenKey(id), token); err != nil {
		return err
	}
	return l.st.KVAppend(ownerIndexKey(to), encodeID(id))
}
