package storefrontd

import (
	"errors"
	"fmt"
	"sync"

	"storefront/config"
	"storefront/core/events"
	"storefront/core/state"
	"storefront/native/bank"
	"storefront/native/collectible"
	"storefront/native/storefront"
	"storefront/storage"
)

// Node owns the state stack behind the API. Every mutation runs under one
// lock and is committed to storage only when the engine call succeeds;
// events reach downstream emitters after the commit.
type Node struct {
	mu     sync.RWMutex
	state  *state.Manager
	bank   *bank.Ledger
	tokens *collectible.Ledger
	engine *storefront.Engine
	buffer *bufferedEmitter
	sink   events.Emitter
}

// NewNode opens the engine over db, applying genesis when the store is
// fresh.
func NewNode(db storage.Database, genesis *config.Config, sink events.Emitter) (*Node, error) {
	if genesis == nil {
		return nil, errors.New("genesis required")
	}
	if sink == nil {
		sink = events.NoopEmitter{}
	}
	engineCfg, err := genesis.EngineConfig()
	if err != nil {
		return nil, err
	}
	mgr := state.NewManager(db)
	ledger, err := bank.NewLedger(mgr, genesis.Asset)
	if err != nil {
		return nil, err
	}
	n := &Node{
		state:  mgr,
		bank:   ledger,
		tokens: collectible.NewLedger(mgr),
		engine: storefront.NewEngine(engineCfg),
		buffer: &bufferedEmitter{},
		sink:   sink,
	}
	n.engine.SetState(mgr)
	n.engine.SetBank(ledger)
	n.engine.SetIssuer(n.tokens)
	n.engine.SetEmitter(n.buffer)

	_, stamped, err := mgr.StateVersion()
	if err != nil {
		return nil, err
	}
	if stamped {
		if err := mgr.EnsureStateVersion(false); err != nil {
			return nil, err
		}
		return n, nil
	}
	err = n.Update(func(*storefront.Engine) error {
		if err := genesis.Apply(mgr, ledger, n.engine); err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		return mgr.SetStateVersion(state.StateVersion)
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Update runs fn and commits its writes when it succeeds.
func (n *Node) Update(fn func(*storefront.Engine) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := fn(n.engine); err != nil {
		n.state.Discard()
		n.buffer.drain()
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		n.buffer.drain()
		return err
	}
	for _, evt := range n.buffer.drain() {
		n.sink.Emit(evt)
	}
	return nil
}

// View runs a read-only fn.
func (n *Node) View(fn func(*storefront.Engine) error) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return fn(n.engine)
}

// Balance reports an account's payment asset balance.
func (n *Node) Balance(addr [20]byte) (string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	bal, err := n.bank.Balance(addr)
	if err != nil {
		return "", err
	}
	return bal.String(), nil
}

// Token returns the ownership record of a token id.
func (n *Node) Token(id uint64) (*collectible.Token, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tokens.Token(id)
}

type bufferedEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *bufferedEmitter) Emit(evt events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *bufferedEmitter) drain() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// TransferToken moves a token between accounts once its lock has expired.
func (n *Node) TransferToken(caller, to [20]byte, id uint64, now uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.tokens.Transfer(caller, to, id, now); err != nil {
		n.state.Discard()
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		return err
	}
	n.sink.Emit(events.TokenTransfer{TokenID: id, Tier: n.engine.TierOf(id), From: caller, To: to, At: now})
	return nil
}
