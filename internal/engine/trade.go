package engine

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/fixed"
)

// tradableOption validates the market/option pair for trading at the current
// instant. Callers hold the lock.
func (e *Engine) tradableOption(marketID uint64, option int) (*domain.Market, error) {
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	if !m.Tradable(e.now()) {
		return nil, domain.Statef("market %d is not open for trading", marketID)
	}
	if option < 0 || option >= len(m.Options) {
		return nil, domain.Validationf("option index %d out of range", option)
	}
	if !m.Options[option].Active {
		return nil, domain.Statef("option %d of market %d is inactive", option, marketID)
	}
	return m, nil
}

// fee computes the platform fee on a trade amount: amount * FeeRate / 1000.
func (e *Engine) fee(amount int64) (int64, error) {
	return fixed.MulDiv(amount, e.cfg.FeeRate, 1000)
}

// Buy purchases qty shares of the option against the pricing curve.
// maxPricePerShare and maxTotalCost are the caller's slippage bounds; a trade
// executing worse than either is rejected with no partial fill. The buyer
// pays cost plus the platform fee, pulled through the ledger.
func (e *Engine) Buy(ctx context.Context, buyer common.Address, marketID uint64, option int, qty, maxPricePerShare, maxTotalCost int64) (domain.TradeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.tradableOption(marketID, option)
	if err != nil {
		return domain.TradeRecord{}, err
	}
	if qty <= 0 {
		return domain.TradeRecord{}, domain.Validationf("quantity must be positive, got %d", qty)
	}

	cost, pricePerShare, err := costOfBuy(m.Options, option, qty)
	if err != nil {
		return domain.TradeRecord{}, err
	}
	if pricePerShare > maxPricePerShare {
		return domain.TradeRecord{}, domain.Slippagef("price per share %d above maximum %d", pricePerShare, maxPricePerShare)
	}
	if cost > maxTotalCost {
		return domain.TradeRecord{}, domain.Slippagef("total cost %d above maximum %d", cost, maxTotalCost)
	}

	fee, err := e.fee(cost)
	if err != nil {
		return domain.TradeRecord{}, err
	}
	total, err := fixed.Add(cost, fee)
	if err != nil {
		return domain.TradeRecord{}, err
	}

	// Pull funds before mutating; a failed pull leaves no trace.
	if err := e.ledger.TransferFrom(ctx, m.Token, buyer, e.cfg.Custody, total); err != nil {
		return domain.TradeRecord{}, err
	}

	now := e.now()

	opt := &m.Options[option]
	opt.Shares += qty
	opt.Volume += qty
	m.Volume += qty
	m.UserLiquidity += cost
	m.FeesCollected += fee

	pos := e.position(marketID, option, buyer)
	pos.Shares += qty
	pos.CostBasis += cost

	pf := e.portfolio(buyer)
	pf.TotalInvested += total
	pf.TradeCount++
	e.tradeCount++

	e.fees.Collected += fee
	e.fees.Locked += fee

	rec := domain.TradeRecord{
		ID:        uuid.New().String(),
		MarketID:  marketID,
		Option:    option,
		Side:      domain.TradeSideBuy,
		Buyer:     buyer,
		Seller:    domain.AMM,
		Price:     pricePerShare,
		Quantity:  qty,
		Cost:      cost,
		Fee:       fee,
		Timestamp: now,
	}
	e.trades[marketID] = append(e.trades[marketID], rec)

	if err := e.repriceAll(m, option, now); err != nil {
		// Unreachable with valid share counts; log rather than unwind a
		// trade whose funds already moved.
		e.logger.Error("reprice after buy failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	e.emit(domain.Event{
		Type:     domain.EventTradeExecuted,
		MarketID: marketID,
		Actor:    buyer,
		Option:   option,
		Amount:   total,
		Trade:    &rec,
	})
	e.emit(domain.Event{
		Type:     domain.EventFeesAccrued,
		MarketID: marketID,
		Amount:   fee,
	})

	return rec, nil
}

// Sell sells qty shares the caller holds, mirroring Buy: the fee is taken
// from the proceeds, the cost basis is reduced proportionally to the shares
// sold, and the realized profit or loss lands in the portfolio. The net
// proceeds are transferred only after all state is finalized.
func (e *Engine) Sell(ctx context.Context, seller common.Address, marketID uint64, option int, qty, minPricePerShare, minTotalProceeds int64) (domain.TradeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.tradableOption(marketID, option)
	if err != nil {
		return domain.TradeRecord{}, err
	}
	if qty <= 0 {
		return domain.TradeRecord{}, domain.Validationf("quantity must be positive, got %d", qty)
	}

	pos := e.position(marketID, option, seller)
	if pos.Shares < qty {
		return domain.TradeRecord{}, domain.Insufficientf("holding %d shares, cannot sell %d", pos.Shares, qty)
	}

	proceeds, pricePerShare, err := proceedsOfSell(m.Options, option, qty)
	if err != nil {
		return domain.TradeRecord{}, err
	}
	if pricePerShare < minPricePerShare {
		return domain.TradeRecord{}, domain.Slippagef("price per share %d below minimum %d", pricePerShare, minPricePerShare)
	}
	if proceeds < minTotalProceeds {
		return domain.TradeRecord{}, domain.Slippagef("total proceeds %d below minimum %d", proceeds, minTotalProceeds)
	}

	fee, err := e.fee(proceeds)
	if err != nil {
		return domain.TradeRecord{}, err
	}
	net, err := fixed.Sub(proceeds, fee)
	if err != nil {
		return domain.TradeRecord{}, err
	}

	// Cost basis unwinds proportionally to the fraction of shares sold.
	reduction, err := fixed.MulDiv(pos.CostBasis, qty, pos.Shares)
	if err != nil {
		return domain.TradeRecord{}, err
	}

	now := e.now()

	opt := &m.Options[option]
	opt.Shares -= qty
	opt.Volume += qty
	m.Volume += qty
	m.UserLiquidity -= proceeds
	m.FeesCollected += fee

	pos.Shares -= qty
	pos.CostBasis -= reduction

	pf := e.portfolio(seller)
	pf.RealizedPnL += net - reduction
	pf.TradeCount++
	e.tradeCount++

	e.fees.Collected += fee
	e.fees.Locked += fee

	rec := domain.TradeRecord{
		ID:        uuid.New().String(),
		MarketID:  marketID,
		Option:    option,
		Side:      domain.TradeSideSell,
		Buyer:     domain.AMM,
		Seller:    seller,
		Price:     pricePerShare,
		Quantity:  qty,
		Cost:      proceeds,
		Fee:       fee,
		Timestamp: now,
	}
	e.trades[marketID] = append(e.trades[marketID], rec)

	if err := e.repriceAll(m, option, now); err != nil {
		e.logger.Error("reprice after sell failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	e.emit(domain.Event{
		Type:     domain.EventTradeExecuted,
		MarketID: marketID,
		Actor:    seller,
		Option:   option,
		Amount:   net,
		Trade:    &rec,
	})
	e.emit(domain.Event{
		Type:     domain.EventFeesAccrued,
		MarketID: marketID,
		Amount:   fee,
	})

	// State is finalized; the payout is the last step of the operation.
	if err := e.ledger.Transfer(ctx, m.Token, seller, net); err != nil {
		return domain.TradeRecord{}, err
	}

	return rec, nil
}
