// Package storefront implements tiered, multi-phase issuance of collectible
// units with allow-list verification, promo codes and revenue accounting.
package storefront

import (
	"encoding/hex"
	"errors"
	"math/big"
	"time"

	"storefront/core/events"
	"storefront/core/types"
	nativecommon "storefront/native/common"
)

// DefaultMaxTiers is the token identifier stride. Tier identifiers range over
// [1, DefaultMaxTiers).
const DefaultMaxTiers uint64 = 100

// DefaultMaxPhaseID bounds numbered phase identifiers.
const DefaultMaxPhaseID uint8 = 16

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	HasRole(role string, addr []byte) bool
	IsPaused(module string) bool
	SetPaused(module string, paused bool) error
	Snapshot() int
	RevertToSnapshot(id int) error
}

type valueLedger interface {
	Asset() string
	Balance(addr [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

type tokenIssuer interface {
	Issue(to [20]byte, id uint64, issuedAt, lockedUntil uint64) error
	TokensOf(owner [20]byte) ([]uint64, error)
}

// Config holds engine parameters fixed at construction.
type Config struct {
	MaxTiers    uint64
	MaxPhaseID  uint8
	LockHorizon time.Duration
	Vault       [20]byte
	Treasury    [20]byte
}

// Engine coordinates tiers, phases, promo codes, minting and revenue.
type Engine struct {
	state       engineState
	bank        valueLedger
	issuer      tokenIssuer
	emitter     events.Emitter
	nowFn       func() int64
	maxTiers    uint64
	maxPhaseID  uint8
	lockHorizon time.Duration
	vault       [20]byte
	treasury    [20]byte

	lock    nativecommon.CallLock
	pending []*types.Event
}

// NewEngine constructs an engine with default dependencies.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		emitter:     events.NoopEmitter{},
		nowFn:       func() int64 { return time.Now().Unix() },
		maxTiers:    cfg.MaxTiers,
		maxPhaseID:  cfg.MaxPhaseID,
		lockHorizon: cfg.LockHorizon,
		vault:       cfg.Vault,
		treasury:    cfg.Treasury,
	}
	if e.maxTiers < 2 {
		e.maxTiers = DefaultMaxTiers
	}
	if e.maxPhaseID == 0 || e.maxPhaseID >= BulkPhaseID {
		e.maxPhaseID = DefaultMaxPhaseID
	}
	return e
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the ledger used for payments and withdrawals.
func (e *Engine) SetBank(bank valueLedger) { e.bank = bank }

// SetIssuer configures the ownership ledger that receives issued units.
func (e *Engine) SetIssuer(issuer tokenIssuer) { e.issuer = issuer }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// MaxTiers returns the token identifier stride.
func (e *Engine) MaxTiers() uint64 { return e.maxTiers }

// Vault returns the account holding collected funds.
func (e *Engine) Vault() [20]byte { return e.vault }

// Asset returns the settlement asset symbol.
func (e *Engine) Asset() string {
	if e.bank == nil {
		return ""
	}
	return e.bank.Asset()
}

func (e *Engine) now() uint64 {
	var ts int64
	if e == nil || e.nowFn == nil {
		ts = time.Now().Unix()
	} else {
		ts = e.nowFn()
	}
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// emit queues evt until the enclosing call succeeds.
func (e *Engine) emit(evt *types.Event) {
	if evt == nil {
		return
	}
	e.pending = append(e.pending, evt)
}

func (e *Engine) flush() {
	queued := e.pending
	e.pending = nil
	if e.emitter == nil {
		return
	}
	for _, evt := range queued {
		e.emitter.Emit(WrapEvent(evt))
	}
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

// atomic runs fn under the re-entrancy lock. State changes made by fn are
// rolled back and queued events dropped when fn fails.
func (e *Engine) atomic(fn func() error) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.lock.Enter(); err != nil {
		return err
	}
	defer e.lock.Exit()
	e.pending = nil
	snap := e.state.Snapshot()
	if err := fn(); err != nil {
		e.pending = nil
		if rerr := e.state.RevertToSnapshot(snap); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	e.flush()
	return nil
}

func (e *Engine) requireRole(role string, caller [20]byte) error {
	if !e.state.HasRole(role, caller[:]) {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	return e.requireRole(RoleAdmin, caller)
}

// SetPaused toggles the module pause switch. Paused modules reject mints.
func (e *Engine) SetPaused(caller [20]byte, paused bool) error {
	return e.atomic(func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if err := e.state.SetPaused(ModuleName, paused); err != nil {
			return err
		}
		e.emit(PauseToggledEvent(hexAddr(caller), paused))
		return nil
	})
}

// Paused reports whether the module is paused.
func (e *Engine) Paused() bool {
	if e.ready() != nil {
		return false
	}
	return e.state.IsPaused(ModuleName)
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
