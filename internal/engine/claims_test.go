package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/fixed"
)

func TestClaimWinnings_PaysOncePerShare(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	_, err := h.eng.Buy(ctx, trader1, id, 0, 100*fixed.One, noLimit, noLimit)
	require.NoError(t, err)

	h.clock.Advance(25 * time.Hour)
	require.NoError(t, h.eng.Resolve(ctx, resolver, id, 0))

	balBefore, _ := h.ledger.BalanceOf(ctx, usdc, trader1)
	payout, err := h.eng.ClaimWinnings(ctx, trader1, id)
	require.NoError(t, err)
	assert.Equal(t, 100*fixed.One, payout, "one token per winning share")

	balAfter, _ := h.ledger.BalanceOf(ctx, usdc, trader1)
	assert.Equal(t, payout, balAfter-balBefore)

	pf := h.eng.PortfolioOf(trader1)
	assert.Equal(t, payout, pf.TotalWinnings)

	// Second claim latches out.
	_, err = h.eng.ClaimWinnings(ctx, trader1, id)
	assert.ErrorIs(t, err, domain.ErrState)

	shares, err := h.eng.UserShares(id, 0, trader1)
	require.NoError(t, err)
	assert.Zero(t, shares)
}

func TestClaimWinnings_NoWinningShares(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	// trader1 bet the losing side.
	_, err := h.eng.Buy(ctx, trader1, id, 1, 50*fixed.One, noLimit, noLimit)
	require.NoError(t, err)

	h.clock.Advance(25 * time.Hour)
	require.NoError(t, h.eng.Resolve(ctx, resolver, id, 0))

	_, err = h.eng.ClaimWinnings(ctx, trader1, id)
	assert.ErrorIs(t, err, domain.ErrInsufficient)

	// A failed claim does not consume the latch; the holder can still be
	// paid if shares are ever credited. Nothing transferred here though.
	_, err = h.eng.ClaimWinnings(ctx, trader2, id)
	assert.ErrorIs(t, err, domain.ErrInsufficient)
}

func TestClaimWinnings_RequiresResolved(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	_, err := h.eng.ClaimWinnings(ctx, trader1, id)
	assert.ErrorIs(t, err, domain.ErrState)

	// Invalidated is not resolved.
	require.NoError(t, h.eng.Invalidate(ctx, resolver, id))
	_, err = h.eng.ClaimWinnings(ctx, trader1, id)
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestClaimRefund_OnInvalidatedMarket(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	b1, err := h.eng.Buy(ctx, trader1, id, 0, 60*fixed.One, noLimit, noLimit)
	require.NoError(t, err)
	b2, err := h.eng.Buy(ctx, trader1, id, 1, 40*fixed.One, noLimit, noLimit)
	require.NoError(t, err)

	require.NoError(t, h.eng.Invalidate(ctx, resolver, id))

	balBefore, _ := h.ledger.BalanceOf(ctx, usdc, trader1)
	refund, err := h.eng.ClaimRefund(ctx, trader1, id)
	require.NoError(t, err)
	assert.Equal(t, b1.Cost+b2.Cost, refund, "cost basis across both options")

	balAfter, _ := h.ledger.BalanceOf(ctx, usdc, trader1)
	assert.Equal(t, refund, balAfter-balBefore)

	// Latch shared with winnings: one settlement per participant.
	_, err = h.eng.ClaimRefund(ctx, trader1, id)
	assert.ErrorIs(t, err, domain.ErrState)

	// Non-participants have nothing to refund.
	_, err = h.eng.ClaimRefund(ctx, trader2, id)
	assert.ErrorIs(t, err, domain.ErrInsufficient)

	// Refunds are an invalidation-only path.
	id2 := h.createMarket(t)
	_, err = h.eng.ClaimRefund(ctx, trader1, id2)
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestWithdrawAdminLiquidity(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	// Not before settlement.
	_, err := h.eng.WithdrawAdminLiquidity(ctx, admin, id)
	assert.ErrorIs(t, err, domain.ErrState)

	h.clock.Advance(25 * time.Hour)
	require.NoError(t, h.eng.Resolve(ctx, resolver, id, 0))

	// Creator only.
	_, err = h.eng.WithdrawAdminLiquidity(ctx, trader1, id)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	balBefore, _ := h.ledger.BalanceOf(ctx, usdc, admin)
	amount, err := h.eng.WithdrawAdminLiquidity(ctx, admin, id)
	require.NoError(t, err)
	assert.Equal(t, 1000*fixed.One, amount)

	balAfter, _ := h.ledger.BalanceOf(ctx, usdc, admin)
	assert.Equal(t, amount, balAfter-balBefore)

	// One-shot.
	_, err = h.eng.WithdrawAdminLiquidity(ctx, admin, id)
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestClaimFreeTokens_CapAndIdempotence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.defaultParams()
	p.Type = domain.MarketTypeFree
	p.MaxFreeParticipants = 2
	p.TokensPerParticipant = 50 * fixed.One
	id, err := h.eng.CreateMarket(ctx, admin, p)
	require.NoError(t, err)

	require.NoError(t, h.eng.ClaimFreeTokens(ctx, trader1, id, 0))

	// Same participant cannot claim twice.
	err = h.eng.ClaimFreeTokens(ctx, trader1, id, 1)
	assert.ErrorIs(t, err, domain.ErrState)

	require.NoError(t, h.eng.ClaimFreeTokens(ctx, trader2, id, 1))

	// Scenario D: the third distinct claimant hits the participant cap.
	err = h.eng.ClaimFreeTokens(ctx, trader3, id, 0)
	assert.ErrorIs(t, err, domain.ErrState)

	m, err := h.eng.Market(id)
	require.NoError(t, err)
	require.NotNil(t, m.Free)
	assert.Equal(t, 2, m.Free.Participants)
	assert.False(t, m.Free.Active)
	assert.Equal(t, int64(0), m.Free.RemainingPrizePool)

	// Grants land as shares with no cost basis.
	shares, err := h.eng.UserShares(id, 0, trader1)
	require.NoError(t, err)
	assert.Equal(t, 50*fixed.One, shares)
}

func TestClaimFreeTokens_StandardMarketRejected(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)

	err := h.eng.ClaimFreeTokens(context.Background(), trader1, id, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestClaimFreeTokens_GrantsPayOutOnResolution(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.defaultParams()
	p.Type = domain.MarketTypeFree
	p.MaxFreeParticipants = 2
	p.TokensPerParticipant = 50 * fixed.One
	id, err := h.eng.CreateMarket(ctx, admin, p)
	require.NoError(t, err)

	require.NoError(t, h.eng.ClaimFreeTokens(ctx, trader1, id, 0))

	h.clock.Advance(25 * time.Hour)
	require.NoError(t, h.eng.Resolve(ctx, resolver, id, 0))

	payout, err := h.eng.ClaimWinnings(ctx, trader1, id)
	require.NoError(t, err)
	assert.Equal(t, 50*fixed.One, payout)
}

func TestWithdrawFees(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	rec, err := h.eng.Buy(ctx, trader1, id, 0, 400*fixed.One, noLimit, noLimit)
	require.NoError(t, err)
	require.Greater(t, rec.Fee, int64(0))

	// Locked fees are not withdrawable.
	err = h.eng.WithdrawFees(ctx, operator, usdc, rec.Fee)
	assert.ErrorIs(t, err, domain.ErrInsufficient)

	h.clock.Advance(25 * time.Hour)
	require.NoError(t, h.eng.Resolve(ctx, resolver, id, 0))

	// Operator capability required.
	err = h.eng.WithdrawFees(ctx, trader1, usdc, rec.Fee)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = h.eng.WithdrawFees(ctx, operator, usdc, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = h.eng.WithdrawFees(ctx, operator, usdc, rec.Fee+1)
	assert.ErrorIs(t, err, domain.ErrInsufficient)

	half := rec.Fee / 2
	require.NoError(t, h.eng.WithdrawFees(ctx, operator, usdc, half))

	bal, err := h.ledger.BalanceOf(ctx, usdc, collector)
	require.NoError(t, err)
	assert.Equal(t, half, bal)

	fees := h.eng.FeeTotals()
	assert.Equal(t, half, fees.Withdrawn)
	assert.Equal(t, rec.Fee-half, fees.Withdrawable())

	// The remainder stays withdrawable.
	require.NoError(t, h.eng.WithdrawFees(ctx, operator, usdc, rec.Fee-half))
	err = h.eng.WithdrawFees(ctx, operator, usdc, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficient)
}

func TestTokenWhitelistAdmin(t *testing.T) {
	h := newHarness(t)
	other := trader3 // any address works as a token identifier

	assert.ErrorIs(t, h.eng.WhitelistToken(trader1, other), domain.ErrUnauthorized)

	require.NoError(t, h.eng.WhitelistToken(admin, other))
	assert.ErrorIs(t, h.eng.WhitelistToken(admin, other), domain.ErrState)

	require.NoError(t, h.eng.RemoveToken(admin, other))
	assert.ErrorIs(t, h.eng.RemoveToken(admin, other), domain.ErrState)
}
