package storefront

// surface binds a reserved phase to the reasons it reports.
type surface struct {
	id            uint8
	kind          PhaseKind
	errAlready    error
	errNotInit    error
	errTime       error
	errNotActive  error
	requiresProof bool
}

var (
	saleSurface = surface{
		id:           SalePhaseID,
		kind:         KindGeneral,
		errAlready:   ErrSaleAlreadyInitialized,
		errNotInit:   ErrSaleNotInitialized,
		errTime:      ErrInvalidSaleTime,
		errNotActive: ErrSaleNotActive,
	}
	presaleSurface = surface{
		id:            PresalePhaseID,
		kind:          KindAllowListProof,
		errAlready:    ErrPresaleAlreadyInitialize,
		errNotInit:    ErrPresaleNotInitialized,
		errTime:       ErrInvalidPresaleTime,
		errNotActive:  ErrPresaleNotActive,
		requiresProof: true,
	}
	numberedSurface = surface{
		errAlready:   ErrSaleAlreadyInitialized,
		errNotInit:   ErrSaleNotInitialized,
		errTime:      ErrInvalidSaleTime,
		errNotActive: ErrSaleNotActive,
	}
)

func (e *Engine) surfaceFor(id uint8) surface {
	switch id {
	case SalePhaseID:
		return saleSurface
	case PresalePhaseID:
		return presaleSurface
	default:
		s := numberedSurface
		s.id = id
		return s
	}
}

func statusOf(phase *Phase, now uint64) PhaseStatus {
	switch {
	case phase == nil:
		return PhaseUninitialized
	case phase.Stopped:
		return PhaseStopped
	case now < phase.Start:
		return PhaseConfigured
	case now >= phase.End:
		return PhaseExpired
	case phase.MaxSupply > 0 && phase.Minted >= phase.MaxSupply:
		return PhaseSoldOut
	default:
		return PhaseActive
	}
}

// configureReserved starts or updates the sale or presale of a tier.
func (e *Engine) configureReserved(caller [20]byte, s surface, tierID, start, end, supply uint64, root [32]byte, update bool) (*Phase, error) {
	var out *Phase
	err := e.atomic(func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		tier, err := e.loadTier(tierID)
		if err != nil {
			return err
		}
		existing, ok, err := e.loadPhase(tierID, s.id)
		if err != nil {
			return err
		}
		if update && !ok {
			return s.errNotInit
		}
		if !update && ok && !existing.Stopped {
			return s.errAlready
		}
		if end <= start {
			return s.errTime
		}
		if supply == 0 || supply < tier.MaxPerWallet {
			return ErrInvalidSupply
		}
		if s.requiresProof && root == ([32]byte{}) {
			return ErrInvalidMerkleRoot
		}
		phase := &Phase{Tier: tierID, ID: s.id, Kind: s.kind}
		if ok {
			if update {
				*phase = *existing
			} else {
				phase.Generation = existing.Generation + 1
			}
		}
		if supply < phase.Minted {
			return ErrInvalidSupply
		}
		phase.Start = start
		phase.End = end
		phase.MaxSupply = supply
		phase.Root = root
		if err := e.storePhase(phase); err != nil {
			return err
		}
		evtType := EventTypePhaseStarted
		if update {
			evtType = EventTypePhaseUpdated
		}
		e.emit(PhaseEvent(evtType, phase))
		out = phase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StartSale opens the general sale of a tier. A stopped sale may be started
// again; doing so resets its counters.
func (e *Engine) StartSale(caller [20]byte, tier, start, end, supply uint64) (*Phase, error) {
	return e.configureReserved(caller, saleSurface, tier, start, end, supply, [32]byte{}, false)
}

// UpdateSale changes the window and cap of a tier's sale, keeping counters.
func (e *Engine) UpdateSale(caller [20]byte, tier, start, end, supply uint64) (*Phase, error) {
	return e.configureReserved(caller, saleSurface, tier, start, end, supply, [32]byte{}, true)
}

// StopSale permanently closes a tier's sale.
func (e *Engine) StopSale(caller [20]byte, tier uint64) error {
	return e.stop(caller, tier, SalePhaseID)
}

// StartPresale opens the allow-list presale of a tier.
func (e *Engine) StartPresale(caller [20]byte, tier, start, end, supply uint64, root [32]byte) (*Phase, error) {
	return e.configureReserved(caller, presaleSurface, tier, start, end, supply, root, false)
}

// UpdatePresale changes the window, cap and allow-list root of a presale.
func (e *Engine) UpdatePresale(caller [20]byte, tier, start, end, supply uint64, root [32]byte) (*Phase, error) {
	return e.configureReserved(caller, presaleSurface, tier, start, end, supply, root, true)
}

// StopPresale permanently closes a tier's presale.
func (e *Engine) StopPresale(caller [20]byte, tier uint64) error {
	return e.stop(caller, tier, PresalePhaseID)
}

// StopPhase closes a numbered phase until it is re-initialized.
func (e *Engine) StopPhase(caller [20]byte, tier uint64, id uint8) error {
	if !e.numbered(id) {
		return ErrInvalidPhase
	}
	return e.stop(caller, tier, id)
}

func (e *Engine) stop(caller [20]byte, tierID uint64, id uint8) error {
	s := e.surfaceFor(id)
	return e.atomic(func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if _, err := e.loadTier(tierID); err != nil {
			return err
		}
		phase, ok, err := e.loadPhase(tierID, id)
		if err != nil {
			return err
		}
		if !ok {
			return s.errNotInit
		}
		phase.Stopped = true
		if err := e.storePhase(phase); err != nil {
			return err
		}
		e.emit(PhaseEvent(EventTypePhaseStopped, phase))
		return nil
	})
}

func (e *Engine) numbered(id uint8) bool {
	return id >= 1 && id <= e.maxPhaseID
}

func validatePhaseConfig(cfg PhaseConfig) error {
	switch cfg.Kind {
	case KindGeneral, KindAllowListProof, KindAllowListProofQuota:
		if len(cfg.Accounts) != 0 || len(cfg.Quotas) != 0 || len(cfg.Weights) != 0 {
			return ErrInvalidInputLengths
		}
	case KindFixedQuota:
		if len(cfg.Quotas) != len(cfg.Accounts) || len(cfg.Weights) != 0 {
			return ErrInvalidInputLengths
		}
	case KindWeightedQuota:
		if len(cfg.Quotas) != len(cfg.Accounts) || len(cfg.Weights) != len(cfg.Accounts) {
			return ErrInvalidInputLengths
		}
		for _, w := range cfg.Weights {
			if w > PercentDenominator {
				return ErrInvalidDiscount
			}
		}
	case KindPromoGated:
		if len(cfg.Quotas) != 0 || len(cfg.Weights) != 0 {
			return ErrInvalidInputLengths
		}
	default:
		return ErrInvalidPhase
	}
	if cfg.Kind == KindAllowListProof || cfg.Kind == KindAllowListProofQuota {
		if cfg.Root == ([32]byte{}) {
			return ErrInvalidMerkleRoot
		}
	}
	if cfg.End <= cfg.Start {
		return ErrInvalidSaleTime
	}
	if cfg.MaxSupply > 0 && (cfg.MaxSupply < cfg.MaxPerWallet || cfg.MaxSupply < cfg.MaxPerTx) {
		return ErrInvalidSupply
	}
	seen := make(map[[20]byte]struct{}, len(cfg.Accounts))
	for _, acct := range cfg.Accounts {
		if isZeroAddress(acct) {
			return ErrInvalidAccount
		}
		if _, dup := seen[acct]; dup {
			return ErrInvalidAccount
		}
		seen[acct] = struct{}{}
	}
	return nil
}

// InitPhase configures numbered phase id of a tier. Re-initializing a phase
// discards its counters and allow-list entries.
func (e *Engine) InitPhase(caller [20]byte, tierID uint64, id uint8, cfg PhaseConfig) (*Phase, error) {
	var out *Phase
	err := e.atomic(func() error {
		if err := e.requireAdmin(caller); err != nil {
			return err
		}
		if _, err := e.loadTier(tierID); err != nil {
			return err
		}
		if !e.numbered(id) {
			return ErrInvalidPhase
		}
		if err := validatePhaseConfig(cfg); err != nil {
			return err
		}
		phase := &Phase{
			Tier:         tierID,
			ID:           id,
			Kind:         cfg.Kind,
			Start:        cfg.Start,
			End:          cfg.End,
			MaxSupply:    cfg.MaxSupply,
			MaxPerWallet: cfg.MaxPerWallet,
			MaxPerTx:     cfg.MaxPerTx,
			Root:         cfg.Root,
			Restricted:   cfg.Kind == KindPromoGated && len(cfg.Accounts) > 0,
		}
		previous, ok, err := e.loadPhase(tierID, id)
		if err != nil {
			return err
		}
		if ok {
			phase.Generation = previous.Generation + 1
		}
		if err := e.storePhase(phase); err != nil {
			return err
		}
		for i, acct := range cfg.Accounts {
			allowance := &Allowance{}
			if i < len(cfg.Quotas) {
				allowance.Quota = cfg.Quotas[i]
			}
			if i < len(cfg.Weights) {
				allowance.Weight = cfg.Weights[i]
			}
			if err := e.storeAllowance(phase, acct, allowance); err != nil {
				return err
			}
		}
		e.emit(PhaseEvent(EventTypePhaseInitialized, phase))
		out = phase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) phaseView(tierID uint64, id uint8) (*PhaseView, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.loadTier(tierID); err != nil {
		return nil, err
	}
	phase, ok, err := e.loadPhase(tierID, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &PhaseView{Phase: Phase{Tier: tierID, ID: id}, Status: PhaseUninitialized}, nil
	}
	return &PhaseView{Phase: *phase, Status: statusOf(phase, e.now())}, nil
}

// SaleInfo returns a tier's sale and its status.
func (e *Engine) SaleInfo(tier uint64) (*PhaseView, error) { return e.phaseView(tier, SalePhaseID) }

// PresaleInfo returns a tier's presale and its status.
func (e *Engine) PresaleInfo(tier uint64) (*PhaseView, error) {
	return e.phaseView(tier, PresalePhaseID)
}

// PhaseInfo returns numbered phase id of a tier and its status.
func (e *Engine) PhaseInfo(tier uint64, id uint8) (*PhaseView, error) {
	if !e.numbered(id) {
		return nil, ErrInvalidPhase
	}
	return e.phaseView(tier, id)
}

// IsSaleActive reports whether the tier's sale accepts mints now.
func (e *Engine) IsSaleActive(tier uint64) (bool, error) {
	return e.isActive(tier, SalePhaseID)
}

// IsPresaleActive reports whether the tier's presale accepts mints now.
func (e *Engine) IsPresaleActive(tier uint64) (bool, error) {
	return e.isActive(tier, PresalePhaseID)
}

// IsPhaseActive reports whether numbered phase id accepts mints now.
func (e *Engine) IsPhaseActive(tier uint64, id uint8) (bool, error) {
	if !e.numbered(id) {
		return false, ErrInvalidPhase
	}
	return e.isActive(tier, id)
}

func (e *Engine) isActive(tier uint64, id uint8) (bool, error) {
	view, err := e.phaseView(tier, id)
	if err != nil {
		return false, err
	}
	return view.Status == PhaseActive, nil
}

// PhaseAllowance returns the quota table entry of account in a numbered phase.
func (e *Engine) PhaseAllowance(tierID uint64, id uint8, account [20]byte) (*Allowance, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	if !e.numbered(id) {
		return nil, false, ErrInvalidPhase
	}
	phase, ok, err := e.loadPhase(tierID, id)
	if err != nil || !ok {
		return nil, false, err
	}
	return e.loadAllowance(phase, account)
}

// MintedInPhase returns the units account has minted in the current
// generation of a phase.
func (e *Engine) MintedInPhase(tierID uint64, id uint8, account [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	phase, ok, err := e.loadPhase(tierID, id)
	if err != nil || !ok {
		return 0, err
	}
	return e.mintedBy(phase, account)
}
