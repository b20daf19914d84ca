package engine

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/predmarket/internal/acl"
	"github.com/alanyoungcy/predmarket/internal/domain"
)

// WithdrawFees transfers unlocked platform fees from engine custody to the
// configured collector. Operator-only. The withdrawn counter is advanced
// before the transfer is issued.
func (e *Engine) WithdrawFees(ctx context.Context, caller common.Address, token common.Address, amount int64) error {
	if !e.caps.Has(caller, acl.CapOperator) {
		return domain.Unauthorizedf("identity %s lacks the operator capability", caller.Hex())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if amount <= 0 {
		return domain.Validationf("withdrawal amount must be positive, got %d", amount)
	}
	if amount > e.fees.Withdrawable() {
		return domain.Insufficientf("withdrawal %d exceeds withdrawable fees %d", amount, e.fees.Withdrawable())
	}

	e.fees.Withdrawn += amount

	e.logger.Info("fees withdrawn",
		slog.Int64("amount", amount),
		slog.String("collector", e.cfg.FeeCollector.Hex()),
	)
	e.emit(domain.Event{
		Type:   domain.EventFeesWithdrawn,
		Actor:  caller,
		Token:  token,
		Amount: amount,
	})

	return e.ledger.Transfer(ctx, token, e.cfg.FeeCollector, amount)
}

// WhitelistToken adds a betting token to the whitelist. Admin-only.
func (e *Engine) WhitelistToken(caller common.Address, token common.Address) error {
	if !e.caps.Has(caller, acl.CapAdmin) {
		return domain.Unauthorizedf("identity %s lacks the admin capability", caller.Hex())
	}
	if !e.tokens.Add(token) {
		return domain.Statef("token %s already whitelisted", token.Hex())
	}
	e.emit(domain.Event{Type: domain.EventTokenWhitelisted, Actor: caller, Token: token})
	return nil
}

// RemoveToken delists a betting token. Admin-only. Existing markets keep
// settling in their token; only new market creation is affected.
func (e *Engine) RemoveToken(caller common.Address, token common.Address) error {
	if !e.caps.Has(caller, acl.CapAdmin) {
		return domain.Unauthorizedf("identity %s lacks the admin capability", caller.Hex())
	}
	if !e.tokens.Remove(token) {
		return domain.Statef("token %s is not whitelisted", token.Hex())
	}
	e.emit(domain.Event{Type: domain.EventTokenRemoved, Actor: caller, Token: token})
	return nil
}
