// Package journal consumes the engine's event stream and projects it into
// durable storage and the fan-out fabric: PostgreSQL for markets, trades,
// positions, portfolios, and the event log; Redis for the hot price cache and
// the pub/sub channel the WebSocket hub rides on.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/engine"
)

// EventChannel is the pub/sub channel engine events are published on.
const EventChannel = "market-events"

// Attestor signs settlement events so consumers of the persisted log and the
// pub/sub channel can verify which operator stood behind them. Satisfied by
// crypto.Identity.
type Attestor interface {
	Attest(payload []byte) (string, error)
	Address() common.Address
}

// AttestationPayload is the byte string the operator signs for a settlement
// event. Verifiers rebuild it from the event fields and check the signature
// against the operator's address.
func AttestationPayload(ev domain.Event) []byte {
	return []byte(fmt.Sprintf("%s|%d|%d|%s", ev.Type, ev.MarketID, ev.Option, ev.Actor.Hex()))
}

// Journal projects engine events into the stores and caches. It is a pure
// consumer: the engine remains correct if the journal lags or fails, and all
// writes are idempotent so the stream can be replayed.
type Journal struct {
	eng        *engine.Engine
	markets    domain.MarketStore
	trades     domain.TradeStore
	positions  domain.PositionStore
	portfolios domain.PortfolioStore
	events     domain.EventStore
	prices     domain.PriceCache
	bus        domain.SignalBus
	attestor   Attestor
	logger     *slog.Logger
}

// New creates a Journal. Any of the store/cache/bus/attestor collaborators may
// be nil, in which case that projection is skipped.
func New(
	eng *engine.Engine,
	markets domain.MarketStore,
	trades domain.TradeStore,
	positions domain.PositionStore,
	portfolios domain.PortfolioStore,
	events domain.EventStore,
	prices domain.PriceCache,
	bus domain.SignalBus,
	attestor Attestor,
	logger *slog.Logger,
) *Journal {
	return &Journal{
		eng:        eng,
		markets:    markets,
		trades:     trades,
		positions:  positions,
		portfolios: portfolios,
		events:     events,
		prices:     prices,
		bus:        bus,
		attestor:   attestor,
		logger:     logger.With(slog.String("component", "journal")),
	}
}

// Run consumes the engine event stream until the context ends.
func (j *Journal) Run(ctx context.Context) error {
	j.logger.Info("journal started")
	defer j.logger.Info("journal stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-j.eng.Events():
			if !ok {
				return nil
			}
			if err := j.handle(ctx, ev); err != nil {
				j.logger.Error("journal projection failed",
					slog.String("type", string(ev.Type)),
					slog.Uint64("market_id", ev.MarketID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (j *Journal) handle(ctx context.Context, ev domain.Event) error {
	// Settlement events carry the operator's attestation into the persisted
	// log and onto the wire.
	if j.attestor != nil {
		switch ev.Type {
		case domain.EventMarketResolved, domain.EventMarketInvalidated:
			sig, err := j.attestor.Attest(AttestationPayload(ev))
			if err != nil {
				j.logger.Error("attestation failed",
					slog.String("type", string(ev.Type)),
					slog.Uint64("market_id", ev.MarketID),
					slog.String("error", err.Error()),
				)
			} else {
				ev.Attestation = sig
			}
		}
	}

	if j.events != nil {
		if err := j.events.Insert(ctx, ev); err != nil {
			return err
		}
	}

	if j.bus != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.ID, err)
		}
		if err := j.bus.Publish(ctx, EventChannel, payload); err != nil {
			return err
		}
	}

	switch ev.Type {
	case domain.EventTradeExecuted:
		return j.projectTrade(ctx, ev)

	case domain.EventMarketCreated,
		domain.EventMarketResolved,
		domain.EventMarketInvalidated,
		domain.EventMarketValidated,
		domain.EventMarketDisputed,
		domain.EventAdminLiquidityWithdrawn:
		return j.projectMarket(ctx, ev.MarketID, ev.Timestamp)

	case domain.EventWinningsClaimed,
		domain.EventRefundClaimed,
		domain.EventFreeTokensClaimed:
		if err := j.projectMarket(ctx, ev.MarketID, ev.Timestamp); err != nil {
			return err
		}
		return j.projectParticipant(ctx, ev.MarketID, ev.Actor)
	}

	// Fee and whitelist events carry no market or participant projection.
	return nil
}

// projectTrade persists the trade record and refreshes every projection the
// fill touched.
func (j *Journal) projectTrade(ctx context.Context, ev domain.Event) error {
	if ev.Trade == nil {
		return fmt.Errorf("trade event %s without trade payload", ev.ID)
	}
	if j.trades != nil {
		if err := j.trades.Insert(ctx, *ev.Trade); err != nil {
			return err
		}
	}

	if err := j.projectMarket(ctx, ev.MarketID, ev.Trade.Timestamp); err != nil {
		return err
	}

	// The non-AMM side of the fill is the participant whose position and
	// portfolio moved.
	user := ev.Trade.Buyer
	if user == domain.AMM {
		user = ev.Trade.Seller
	}
	return j.projectParticipant(ctx, ev.MarketID, user)
}

// projectMarket refreshes the stored snapshot and the price cache for one
// market.
func (j *Journal) projectMarket(ctx context.Context, marketID uint64, ts time.Time) error {
	m, err := j.eng.Market(marketID)
	if err != nil {
		return err
	}

	if j.markets != nil {
		if err := j.markets.Upsert(ctx, m); err != nil {
			return err
		}
	}

	if j.prices != nil {
		prices := make([]int64, len(m.Options))
		for i, o := range m.Options {
			prices[i] = o.Price
		}
		if ts.IsZero() {
			ts = time.Now()
		}
		if err := j.prices.SetPrices(ctx, marketID, prices, ts); err != nil {
			return err
		}
	}
	return nil
}

// projectParticipant refreshes the participant's positions in the market and
// their portfolio.
func (j *Journal) projectParticipant(ctx context.Context, marketID uint64, owner common.Address) error {
	m, err := j.eng.Market(marketID)
	if err != nil {
		return err
	}

	if j.positions != nil {
		for i := range m.Options {
			pos, err := j.eng.PositionOf(marketID, i, owner)
			if err != nil {
				return err
			}
			if err := j.positions.Upsert(ctx, pos); err != nil {
				return err
			}
		}
	}

	if j.portfolios != nil {
		if err := j.portfolios.Upsert(ctx, j.eng.PortfolioOf(owner)); err != nil {
			return err
		}
	}
	return nil
}
