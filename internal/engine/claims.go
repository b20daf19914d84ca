package engine

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/fixed"
)

// ClaimWinnings pays out the caller's winning shares of a resolved market at
// the fixed per-share payout. The claim latch is set and the position zeroed
// before the transfer is issued, so a failed transfer can never be replayed
// into a double payment.
func (e *Engine) ClaimWinnings(ctx context.Context, caller common.Address, marketID uint64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.market(marketID)
	if err != nil {
		return 0, err
	}
	if !m.Resolved || m.Invalidated {
		return 0, domain.Statef("market %d is not resolved", marketID)
	}

	claims := e.claimStatus(marketID, caller)
	if claims.Winnings {
		return 0, domain.Statef("winnings already claimed for market %d", marketID)
	}

	pos := e.position(marketID, m.WinningOption, caller)
	if pos.Shares <= 0 {
		return 0, domain.Insufficientf("no shares of winning option %d in market %d", m.WinningOption, marketID)
	}

	payout, err := fixed.Mul(pos.Shares, e.cfg.PayoutPerShare)
	if err != nil {
		return 0, err
	}

	// Latch before transfer.
	claims.Winnings = true
	pos.Shares = 0
	pos.CostBasis = 0

	pf := e.portfolio(caller)
	pf.TotalWinnings += payout

	e.logger.Info("winnings claimed",
		slog.Uint64("market_id", marketID),
		slog.String("claimant", caller.Hex()),
		slog.Int64("payout", payout),
	)
	e.emit(domain.Event{
		Type:     domain.EventWinningsClaimed,
		MarketID: marketID,
		Actor:    caller,
		Option:   m.WinningOption,
		Amount:   payout,
	})

	if err := e.ledger.Transfer(ctx, m.Token, caller, payout); err != nil {
		return 0, err
	}
	return payout, nil
}

// ClaimRefund returns the caller's remaining cost basis across every option
// of an invalidated market. It shares the winnings latch, so a participant
// settles an invalidated market at most once.
func (e *Engine) ClaimRefund(ctx context.Context, caller common.Address, marketID uint64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.market(marketID)
	if err != nil {
		return 0, err
	}
	if !m.Invalidated {
		return 0, domain.Statef("market %d is not invalidated", marketID)
	}

	claims := e.claimStatus(marketID, caller)
	if claims.Winnings {
		return 0, domain.Statef("refund already claimed for market %d", marketID)
	}

	var refund int64
	for i := range m.Options {
		if pos, ok := e.positions[positionKey{marketID, i, caller}]; ok {
			refund, err = fixed.Add(refund, pos.CostBasis)
			if err != nil {
				return 0, err
			}
		}
	}
	if refund <= 0 {
		return 0, domain.Insufficientf("no refundable cost basis in market %d", marketID)
	}

	// Latch before transfer.
	claims.Winnings = true
	for i := range m.Options {
		if pos, ok := e.positions[positionKey{marketID, i, caller}]; ok {
			pos.Shares = 0
			pos.CostBasis = 0
		}
	}

	e.logger.Info("refund claimed",
		slog.Uint64("market_id", marketID),
		slog.String("claimant", caller.Hex()),
		slog.Int64("refund", refund),
	)
	e.emit(domain.Event{
		Type:     domain.EventRefundClaimed,
		MarketID: marketID,
		Actor:    caller,
		Amount:   refund,
	})

	if err := e.ledger.Transfer(ctx, m.Token, caller, refund); err != nil {
		return 0, err
	}
	return refund, nil
}

// WithdrawAdminLiquidity returns the creator's original stake after the
// market settles. The full initial liquidity is paid regardless of trading
// activity. One-shot per market.
func (e *Engine) WithdrawAdminLiquidity(ctx context.Context, caller common.Address, marketID uint64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.market(marketID)
	if err != nil {
		return 0, err
	}
	if caller != m.Creator {
		return 0, domain.Unauthorizedf("identity %s is not the creator of market %d", caller.Hex(), marketID)
	}
	if !m.Terminal() {
		return 0, domain.Statef("market %d has not settled", marketID)
	}
	if m.AdminLiquidityClaimed {
		return 0, domain.Statef("admin liquidity already withdrawn for market %d", marketID)
	}

	// Latch before transfer.
	m.AdminLiquidityClaimed = true
	amount := m.InitialLiquidity

	e.logger.Info("admin liquidity withdrawn",
		slog.Uint64("market_id", marketID),
		slog.Int64("amount", amount),
	)
	e.emit(domain.Event{
		Type:     domain.EventAdminLiquidityWithdrawn,
		MarketID: marketID,
		Actor:    caller,
		Amount:   amount,
	})

	if err := e.ledger.Transfer(ctx, m.Token, caller, amount); err != nil {
		return 0, err
	}
	return amount, nil
}
