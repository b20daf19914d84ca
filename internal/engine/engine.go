// Package engine implements the prediction-market accounting and lifecycle
// core: pricing, trade execution, market lifecycle, fee accounting, free
// allocations, and claims. All state lives in memory behind one engine-wide
// lock; every mutating operation holds the write lock end to end, so no
// operation ever observes a partially applied mutation from another.
//
// Money movement ordering: incoming pulls (buy, market creation) happen after
// validation and before any state mutation, so a failed pull aborts with no
// effect. Outgoing transfers (sell proceeds, payouts, withdrawals) are issued
// only after all internal state is finalized and every re-entry latch is set.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/predmarket/internal/acl"
	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/fixed"
)

// Config holds the engine's tunable parameters.
type Config struct {
	// FeeRate is the platform fee numerator: fee = cost * FeeRate / 1000.
	FeeRate int64

	// MinDuration and MaxDuration bound the market lifetime accepted at
	// creation.
	MinDuration time.Duration
	MaxDuration time.Duration

	// MinLiquidityB and MaxLiquidityB clamp the derived liquidity parameter.
	MinLiquidityB int64
	MaxLiquidityB int64

	// PayoutPerShare is the fixed redemption value of one winning share.
	PayoutPerShare int64

	// Custody is the engine's own ledger identity holding all market funds.
	Custody common.Address

	// FeeCollector receives platform fee withdrawals.
	FeeCollector common.Address

	// EventBuffer sizes the outbound event channel.
	EventBuffer int
}

func (c Config) withDefaults() Config {
	if c.FeeRate == 0 {
		c.FeeRate = 25 // 2.5%
	}
	if c.MinDuration == 0 {
		c.MinDuration = time.Hour
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = 365 * 24 * time.Hour
	}
	if c.MinLiquidityB == 0 {
		c.MinLiquidityB = 100 * fixed.One
	}
	if c.MaxLiquidityB == 0 {
		c.MaxLiquidityB = 10_000 * fixed.One
	}
	if c.PayoutPerShare == 0 {
		c.PayoutPerShare = fixed.One
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = 1024
	}
	return c
}

type positionKey struct {
	market uint64
	option int
	owner  common.Address
}

type claimKey struct {
	market uint64
	owner  common.Address
}

// Engine is the market accounting and lifecycle core.
type Engine struct {
	cfg    Config
	ledger domain.TokenLedger
	caps   *acl.Registry
	tokens *acl.Whitelist
	logger *slog.Logger

	// now is the clock used for all lifecycle decisions; swapped in tests.
	now func() time.Time

	mu         sync.RWMutex
	markets    map[uint64]*domain.Market
	byCategory map[domain.Category][]uint64
	byType     map[domain.MarketType][]uint64
	positions  map[positionKey]*domain.Position
	portfolios map[common.Address]*domain.Portfolio
	claims     map[claimKey]*domain.ClaimStatus
	trades     map[uint64][]domain.TradeRecord
	history    map[uint64][]domain.PricePoint
	fees       domain.FeeLedger
	nextID     uint64
	tradeCount int64

	events chan domain.Event
}

// New creates an Engine with the given collaborators. The capability registry
// gates resolver/validator/operator/admin operations; the whitelist gates the
// betting tokens accepted at market creation.
func New(cfg Config, ledger domain.TokenLedger, caps *acl.Registry, tokens *acl.Whitelist, logger *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:        cfg,
		ledger:     ledger,
		caps:       caps,
		tokens:     tokens,
		logger:     logger.With(slog.String("component", "engine")),
		now:        time.Now,
		markets:    make(map[uint64]*domain.Market),
		byCategory: make(map[domain.Category][]uint64),
		byType:     make(map[domain.MarketType][]uint64),
		positions:  make(map[positionKey]*domain.Position),
		portfolios: make(map[common.Address]*domain.Portfolio),
		claims:     make(map[claimKey]*domain.ClaimStatus),
		trades:     make(map[uint64][]domain.TradeRecord),
		history:    make(map[uint64][]domain.PricePoint),
		events:     make(chan domain.Event, cfg.EventBuffer),
	}
}

// Events returns the engine's outbound notification stream. Events are
// dropped (with a warning) when no consumer keeps up; the engine never
// depends on a subscriber reading them.
func (e *Engine) Events() <-chan domain.Event {
	return e.events
}

// emit publishes an event without blocking. Callers hold the engine lock.
func (e *Engine) emit(ev domain.Event) {
	ev.ID = uuid.New().String()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("event buffer full, dropping event",
			slog.String("type", string(ev.Type)),
			slog.Uint64("market_id", ev.MarketID),
		)
	}
}

// market returns the live market record or ErrNotFound. Callers hold the lock.
func (e *Engine) market(id uint64) (*domain.Market, error) {
	m, ok := e.markets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

// position returns the live position record, creating it on first touch.
// Callers hold the write lock.
func (e *Engine) position(marketID uint64, option int, owner common.Address) *domain.Position {
	k := positionKey{marketID, option, owner}
	p, ok := e.positions[k]
	if !ok {
		p = &domain.Position{MarketID: marketID, Option: option, Owner: owner}
		e.positions[k] = p
	}
	return p
}

// portfolio returns the live portfolio record, creating it on first touch.
// Callers hold the write lock.
func (e *Engine) portfolio(owner common.Address) *domain.Portfolio {
	p, ok := e.portfolios[owner]
	if !ok {
		p = &domain.Portfolio{Owner: owner}
		e.portfolios[owner] = p
	}
	return p
}

// claimStatus returns the live claim latches, creating them on first touch.
// Callers hold the write lock.
func (e *Engine) claimStatus(marketID uint64, owner common.Address) *domain.ClaimStatus {
	k := claimKey{marketID, owner}
	c, ok := e.claims[k]
	if !ok {
		c = &domain.ClaimStatus{}
		e.claims[k] = c
	}
	return c
}

// holdsAnyPosition reports whether owner has nonzero shares in any option of
// the market. Callers hold the lock.
func (e *Engine) holdsAnyPosition(m *domain.Market, owner common.Address) bool {
	for i := range m.Options {
		if p, ok := e.positions[positionKey{m.ID, i, owner}]; ok && p.Shares > 0 {
			return true
		}
	}
	return false
}

// snapshotMarket deep-copies a market so accessors never leak live state.
func snapshotMarket(m *domain.Market) domain.Market {
	out := *m
	out.Options = make([]domain.Option, len(m.Options))
	copy(out.Options, m.Options)
	if m.Free != nil {
		free := *m.Free
		out.Free = &free
	}
	return out
}

// ---------------------------------------------------------------------------
// Read accessors
// ---------------------------------------------------------------------------

// Market returns a snapshot of the market.
func (e *Engine) Market(id uint64) (domain.Market, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, err := e.market(id)
	if err != nil {
		return domain.Market{}, err
	}
	return snapshotMarket(m), nil
}

// OptionDetail returns a snapshot of one option of a market.
func (e *Engine) OptionDetail(id uint64, option int) (domain.Option, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, err := e.market(id)
	if err != nil {
		return domain.Option{}, err
	}
	if option < 0 || option >= len(m.Options) {
		return domain.Option{}, domain.Validationf("option index %d out of range", option)
	}
	return m.Options[option], nil
}

// MarketsByCategory returns snapshots of every market in the category.
func (e *Engine) MarketsByCategory(cat domain.Category) []domain.Market {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := e.byCategory[cat]
	out := make([]domain.Market, 0, len(ids))
	for _, id := range ids {
		out = append(out, snapshotMarket(e.markets[id]))
	}
	return out
}

// MarketsByType returns snapshots of every market of the given type.
func (e *Engine) MarketsByType(t domain.MarketType) []domain.Market {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := e.byType[t]
	out := make([]domain.Market, 0, len(ids))
	for _, id := range ids {
		out = append(out, snapshotMarket(e.markets[id]))
	}
	return out
}

// Markets returns snapshots of all markets in id order.
func (e *Engine) Markets() []domain.Market {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.Market, 0, len(e.markets))
	for id := uint64(1); id < e.nextID+1; id++ {
		if m, ok := e.markets[id]; ok {
			out = append(out, snapshotMarket(m))
		}
	}
	return out
}

// UserShares returns the caller's share count for a market option.
func (e *Engine) UserShares(id uint64, option int, owner common.Address) (int64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, err := e.market(id)
	if err != nil {
		return 0, err
	}
	if option < 0 || option >= len(m.Options) {
		return 0, domain.Validationf("option index %d out of range", option)
	}
	if p, ok := e.positions[positionKey{id, option, owner}]; ok {
		return p.Shares, nil
	}
	return 0, nil
}

// PositionOf returns a snapshot of one position. Untouched positions come
// back zero-valued rather than as an error.
func (e *Engine) PositionOf(id uint64, option int, owner common.Address) (domain.Position, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, err := e.market(id)
	if err != nil {
		return domain.Position{}, err
	}
	if option < 0 || option >= len(m.Options) {
		return domain.Position{}, domain.Validationf("option index %d out of range", option)
	}
	if p, ok := e.positions[positionKey{id, option, owner}]; ok {
		return *p, nil
	}
	return domain.Position{MarketID: id, Option: option, Owner: owner}, nil
}

// PositionsOf returns snapshots of every nonzero position held by owner.
func (e *Engine) PositionsOf(owner common.Address) []domain.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []domain.Position
	for k, p := range e.positions {
		if k.owner == owner && p.Shares > 0 {
			out = append(out, *p)
		}
	}
	return out
}

// ClaimStatusOf returns the claim latches for (market, owner).
func (e *Engine) ClaimStatusOf(id uint64, owner common.Address) (domain.ClaimStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.market(id); err != nil {
		return domain.ClaimStatus{}, err
	}
	if c, ok := e.claims[claimKey{id, owner}]; ok {
		return *c, nil
	}
	return domain.ClaimStatus{}, nil
}

// PortfolioOf returns a snapshot of the owner's portfolio.
func (e *Engine) PortfolioOf(owner common.Address) domain.Portfolio {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if p, ok := e.portfolios[owner]; ok {
		return *p
	}
	return domain.Portfolio{Owner: owner}
}

// PriceHistory returns the recorded price points for a market.
func (e *Engine) PriceHistory(id uint64) ([]domain.PricePoint, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.market(id); err != nil {
		return nil, err
	}
	pts := e.history[id]
	out := make([]domain.PricePoint, len(pts))
	copy(out, pts)
	return out, nil
}

// TradesOf returns the in-memory trade log for a market, newest last.
func (e *Engine) TradesOf(id uint64) ([]domain.TradeRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.market(id); err != nil {
		return nil, err
	}
	ts := e.trades[id]
	out := make([]domain.TradeRecord, len(ts))
	copy(out, ts)
	return out, nil
}

// FeeTotals returns a snapshot of the process-wide fee ledger.
func (e *Engine) FeeTotals() domain.FeeLedger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fees
}

// TradeCount returns the global executed-trade counter.
func (e *Engine) TradeCount() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tradeCount
}
