package storefrontd

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront/core/events"
	"storefront/native/storefront"
)

// MintRecord is one issued line as seen by the indexer.
type MintRecord struct {
	ID         string `gorm:"primaryKey;size:36"`
	Caller     string `gorm:"size:42;index"`
	Recipient  string `gorm:"size:42;index"`
	Tier       uint64 `gorm:"index"`
	Phase      uint64
	Source     string `gorm:"size:16"`
	Quantity   uint64
	TokenIDs   string
	Paid       string `gorm:"size:80"`
	Commission string `gorm:"size:80"`
	PromoCode  string `gorm:"size:64;index"`
	CreatedAt  time.Time
}

// WithdrawalRecord is one vault payout.
type WithdrawalRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Kind      string `gorm:"size:16;index"`
	To        string `gorm:"size:42;index"`
	Amount    string `gorm:"size:80"`
	CreatedAt time.Time
}

// Indexer writes mint and withdrawal events to SQL for history queries.
type Indexer struct {
	db  *gorm.DB
	log *slog.Logger
	now func() time.Time
}

// OpenIndexer connects to driver ("sqlite" or "postgres") and migrates the
// schema.
func OpenIndexer(cfg IndexerConfig, log *slog.Logger) (*Indexer, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported indexer driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open indexer: %w", err)
	}
	if err := db.AutoMigrate(&MintRecord{}, &WithdrawalRecord{}); err != nil {
		return nil, fmt.Errorf("migrate indexer: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{db: db, log: log, now: time.Now}, nil
}

// Emit implements events.Emitter. Write failures are logged; the engine
// state is authoritative and the index can be rebuilt.
func (ix *Indexer) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok || payload.Event() == nil {
		return
	}
	raw := payload.Event()
	attrs := raw.Attributes
	var err error
	switch raw.Type {
	case storefront.EventTypeMinted:
		rec := MintRecord{
			ID:         uuid.NewString(),
			Caller:     attrs["caller"],
			Recipient:  attrs["recipient"],
			Tier:       parseUint(attrs["tier"]),
			Phase:      parseUint(attrs["phase"]),
			Source:     attrs["source"],
			Quantity:   parseUint(attrs["quantity"]),
			TokenIDs:   attrs["tokenIds"],
			Paid:       attrs["paid"],
			Commission: attrs["commission"],
			PromoCode:  attrs["promoCode"],
			CreatedAt:  ix.now(),
		}
		err = ix.db.Create(&rec).Error
	case storefront.EventTypeTreasuryWithdrawn, storefront.EventTypeInfluencerWithdrawn:
		kind := "treasury"
		if raw.Type == storefront.EventTypeInfluencerWithdrawn {
			kind = "influencer"
		}
		rec := WithdrawalRecord{
			ID:        uuid.NewString(),
			Kind:      kind,
			To:        attrs["to"],
			Amount:    attrs["amount"],
			CreatedAt: ix.now(),
		}
		err = ix.db.Create(&rec).Error
	default:
		return
	}
	if err != nil {
		ix.log.Error("index event", slog.String("component", "indexer"), slog.String("event", raw.Type), slog.Any("error", err))
	}
}

// MintFilter narrows a history query.
type MintFilter struct {
	Account string
	Tier    uint64
	Limit   int
}

// Mints returns mint records newest first.
func (ix *Indexer) Mints(filter MintFilter) ([]MintRecord, error) {
	q := ix.db.Model(&MintRecord{})
	if filter.Account != "" {
		q = q.Where("recipient = ? OR caller = ?", filter.Account, filter.Account)
	}
	if filter.Tier != 0 {
		q = q.Where("tier = ?", filter.Tier)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []MintRecord
	err := q.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Withdrawals returns payout records newest first.
func (ix *Indexer) Withdrawals(limit int) ([]WithdrawalRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []WithdrawalRecord
	err := ix.db.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Close closes the underlying connection pool.
func (ix *Indexer) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func parseUint(raw string) uint64 {
	v, _ := strconv.ParseUint(raw, 10, 64)
	return v
}
