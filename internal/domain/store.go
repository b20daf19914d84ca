package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts carries standard pagination and time-window parameters for list
// queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market snapshots written by the journal.
type MarketStore interface {
	Upsert(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id uint64) (Market, error)
	ListByCategory(ctx context.Context, cat Category, opts ListOpts) ([]Market, error)
}

// TradeStore persists the append-only trade journal.
type TradeStore interface {
	Insert(ctx context.Context, t TradeRecord) error
	ListByMarket(ctx context.Context, marketID uint64, opts ListOpts) ([]TradeRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]TradeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// PositionStore persists per-(owner, market, option) position snapshots.
type PositionStore interface {
	Upsert(ctx context.Context, p Position) error
	ListByOwner(ctx context.Context, owner common.Address, opts ListOpts) ([]Position, error)
}

// PortfolioStore persists per-participant portfolio snapshots.
type PortfolioStore interface {
	Upsert(ctx context.Context, p Portfolio) error
	GetByOwner(ctx context.Context, owner common.Address) (Portfolio, error)
}

// EventStore persists the append-only engine event log.
type EventStore interface {
	Insert(ctx context.Context, ev Event) error
	ListByMarket(ctx context.Context, marketID uint64, opts ListOpts) ([]Event, error)
}
