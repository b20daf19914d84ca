package engine

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/predmarket/internal/acl"
	"github.com/alanyoungcy/predmarket/internal/domain"
)

// Resolve settles the market on the winning option. Requires the resolver
// capability, a market past its end time (unless created with early
// resolution allowed), no terminal state yet, and no open dispute. The
// market's locked fees move to the unlocked pool.
func (e *Engine) Resolve(ctx context.Context, caller common.Address, marketID uint64, winningOption int) error {
	if !e.caps.Has(caller, acl.CapResolver) {
		return domain.Unauthorizedf("identity %s lacks the resolver capability", caller.Hex())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	if m.Terminal() {
		return domain.Statef("market %d already settled", marketID)
	}
	if m.Disputed {
		return domain.Statef("market %d is disputed", marketID)
	}
	if e.now().Before(m.EndTime) && !m.EarlyResolution {
		return domain.Statef("market %d has not reached its end time", marketID)
	}
	if winningOption < 0 || winningOption >= len(m.Options) {
		return domain.Validationf("winning option index %d out of range", winningOption)
	}

	m.Resolved = true
	m.WinningOption = winningOption

	unlocked := m.FeesCollected
	e.fees.Locked -= unlocked
	e.fees.Unlocked += unlocked

	e.logger.Info("market resolved",
		slog.Uint64("market_id", marketID),
		slog.Int("winning_option", winningOption),
		slog.Int64("fees_unlocked", unlocked),
	)
	e.emit(domain.Event{
		Type:     domain.EventMarketResolved,
		MarketID: marketID,
		Actor:    caller,
		Option:   winningOption,
	})
	if unlocked > 0 {
		e.emit(domain.Event{
			Type:     domain.EventFeesUnlocked,
			MarketID: marketID,
			Amount:   unlocked,
		})
	}
	return nil
}

// Invalidate voids the market. Requires the resolver capability and a market
// that is not already settled. The market's fee accrual is reversed out of
// both the locked and collected totals: invalidation implies refund
// semantics, so the fee is voided rather than unlocked.
func (e *Engine) Invalidate(ctx context.Context, caller common.Address, marketID uint64) error {
	if !e.caps.Has(caller, acl.CapResolver) {
		return domain.Unauthorizedf("identity %s lacks the resolver capability", caller.Hex())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	if m.Terminal() {
		return domain.Statef("market %d already settled", marketID)
	}

	m.Invalidated = true

	voided := m.FeesCollected
	e.fees.Locked -= voided
	e.fees.Collected -= voided

	e.logger.Info("market invalidated",
		slog.Uint64("market_id", marketID),
		slog.Int64("fees_voided", voided),
	)
	e.emit(domain.Event{
		Type:     domain.EventMarketInvalidated,
		MarketID: marketID,
		Actor:    caller,
	})
	return nil
}

// Validate marks the market validated. Requires the validator capability;
// allowed once per market. The flag is informational and gates nothing else.
func (e *Engine) Validate(ctx context.Context, caller common.Address, marketID uint64) error {
	if !e.caps.Has(caller, acl.CapValidator) {
		return domain.Unauthorizedf("identity %s lacks the validator capability", caller.Hex())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	if m.Validated {
		return domain.Statef("market %d already validated", marketID)
	}

	m.Validated = true

	e.emit(domain.Event{
		Type:     domain.EventMarketValidated,
		MarketID: marketID,
		Actor:    caller,
	})
	return nil
}

// Dispute flags the market as disputed, blocking resolution while set. Only a
// participant holding a nonzero position in the market may dispute, and only
// before a terminal state. No operation clears a dispute; that is outside
// this engine.
func (e *Engine) Dispute(ctx context.Context, caller common.Address, marketID uint64, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	if m.Terminal() {
		return domain.Statef("market %d already settled", marketID)
	}
	if !e.holdsAnyPosition(m, caller) {
		return domain.Unauthorizedf("identity %s holds no position in market %d", caller.Hex(), marketID)
	}

	m.Disputed = true
	m.DisputeReason = reason

	e.logger.Info("market disputed",
		slog.Uint64("market_id", marketID),
		slog.String("by", caller.Hex()),
		slog.String("reason", reason),
	)
	e.emit(domain.Event{
		Type:     domain.EventMarketDisputed,
		MarketID: marketID,
		Actor:    caller,
		Reason:   reason,
	})
	return nil
}
