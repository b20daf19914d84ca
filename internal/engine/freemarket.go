package engine

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/predmarket/internal/domain"
)

// ClaimFreeTokens grants the caller a no-cost starter position in a free
// market: TokensPerParticipant shares of the chosen option, credited straight
// to the position and the option's share total, bypassing the pricing curve.
// Each participant may claim once; the grant pool only ever shrinks.
func (e *Engine) ClaimFreeTokens(ctx context.Context, caller common.Address, marketID uint64, option int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	if m.Type != domain.MarketTypeFree || m.Free == nil {
		return domain.Validationf("market %d is not a free market", marketID)
	}
	if !m.Tradable(e.now()) {
		return domain.Statef("market %d is not open", marketID)
	}
	if option < 0 || option >= len(m.Options) {
		return domain.Validationf("option index %d out of range", option)
	}
	if !m.Options[option].Active {
		return domain.Statef("option %d of market %d is inactive", option, marketID)
	}

	claims := e.claimStatus(marketID, caller)
	if claims.FreeTokens {
		return domain.Statef("free tokens already claimed for market %d", marketID)
	}

	free := m.Free
	if !free.Active {
		return domain.Statef("free allocation for market %d is closed", marketID)
	}
	if free.Participants >= free.MaxParticipants {
		return domain.Statef("free participant cap %d reached for market %d", free.MaxParticipants, marketID)
	}
	if free.RemainingPrizePool < free.TokensPerParticipant {
		return domain.Insufficientf("free pool %d below grant %d", free.RemainingPrizePool, free.TokensPerParticipant)
	}

	grant := free.TokensPerParticipant

	claims.FreeTokens = true
	free.Participants++
	free.RemainingPrizePool -= grant
	if free.Participants >= free.MaxParticipants || free.RemainingPrizePool < grant {
		free.Active = false
	}

	pos := e.position(marketID, option, caller)
	pos.Shares += grant
	m.Options[option].Shares += grant

	now := e.now()
	if err := e.repriceAll(m, option, now); err != nil {
		e.logger.Error("reprice after free grant failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	e.logger.Info("free tokens claimed",
		slog.Uint64("market_id", marketID),
		slog.String("claimant", caller.Hex()),
		slog.Int64("grant", grant),
		slog.Int64("pool_remaining", free.RemainingPrizePool),
	)
	e.emit(domain.Event{
		Type:     domain.EventFreeTokensClaimed,
		MarketID: marketID,
		Actor:    caller,
		Option:   option,
		Amount:   grant,
	})
	return nil
}
