package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/fixed"
)

// noLimit disables the slippage guards for tests not exercising them.
const noLimit = int64(1 << 50)

func TestBuy_MovesPricesAndFunds(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	balBefore, _ := h.ledger.BalanceOf(ctx, usdc, trader1)

	rec, err := h.eng.Buy(ctx, trader1, id, 0, 100*fixed.One, noLimit, noLimit)
	require.NoError(t, err)

	assert.Equal(t, domain.TradeSideBuy, rec.Side)
	assert.Equal(t, trader1, rec.Buyer)
	assert.Equal(t, domain.AMM, rec.Seller)
	assert.Equal(t, 100*fixed.One, rec.Quantity)
	assert.Greater(t, rec.Cost, int64(0))
	assert.Greater(t, rec.Fee, int64(0))

	// Scenario A: option 0 rises above 0.5, option 1 falls below, and the
	// two still sum to roughly one.
	m, err := h.eng.Market(id)
	require.NoError(t, err)
	assert.Greater(t, m.Options[0].Price, fixed.Scale/2)
	assert.Less(t, m.Options[1].Price, fixed.Scale/2)
	assert.InDelta(t, fixed.Scale, m.Options[0].Price+m.Options[1].Price, 2)

	// Buyer paid cost + fee.
	balAfter, _ := h.ledger.BalanceOf(ctx, usdc, trader1)
	assert.Equal(t, rec.Cost+rec.Fee, balBefore-balAfter)

	// Position and portfolio updated.
	shares, err := h.eng.UserShares(id, 0, trader1)
	require.NoError(t, err)
	assert.Equal(t, 100*fixed.One, shares)

	pf := h.eng.PortfolioOf(trader1)
	assert.Equal(t, rec.Cost+rec.Fee, pf.TotalInvested)
	assert.Equal(t, int64(1), pf.TradeCount)

	// Fee accrues locked.
	fees := h.eng.FeeTotals()
	assert.Equal(t, rec.Fee, fees.Collected)
	assert.Equal(t, rec.Fee, fees.Locked)
	assert.Equal(t, int64(0), fees.Unlocked)

	// Trade journal and price history grew.
	trades, err := h.eng.TradesOf(id)
	require.NoError(t, err)
	assert.Len(t, trades, 1)

	hist, err := h.eng.PriceHistory(id)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
	assert.Equal(t, 0, hist[0].Option)
}

func TestBuy_SlippageGuards(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	// The executed price will be ~0.5238; cap below that must reject.
	_, err := h.eng.Buy(ctx, trader1, id, 0, 100*fixed.One, fixed.Scale/2, noLimit)
	assert.ErrorIs(t, err, domain.ErrSlippage)

	// Total-cost cap below the computed cost must reject.
	_, err = h.eng.Buy(ctx, trader1, id, 0, 100*fixed.One, noLimit, 10*fixed.One)
	assert.ErrorIs(t, err, domain.ErrSlippage)

	// No partial fill: nothing changed.
	shares, err := h.eng.UserShares(id, 0, trader1)
	require.NoError(t, err)
	assert.Zero(t, shares)
	assert.Zero(t, h.eng.TradeCount())
}

func TestBuy_Validation(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	_, err := h.eng.Buy(ctx, trader1, id, 0, 0, noLimit, noLimit)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.eng.Buy(ctx, trader1, id, 5, fixed.One, noLimit, noLimit)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.eng.Buy(ctx, trader1, 99, 0, fixed.One, noLimit, noLimit)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBuy_ClosedMarket(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	h.clock.Advance(25 * 60 * 60 * 1e9) // past the 24h end time

	_, err := h.eng.Buy(ctx, trader1, id, 0, fixed.One, noLimit, noLimit)
	assert.ErrorIs(t, err, domain.ErrState)
}

func TestSell_RequiresHeldShares(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	// Scenario B: selling without holding fails and changes nothing.
	before := h.custodyBalance(t)
	_, err := h.eng.Sell(ctx, trader1, id, 0, 10*fixed.One, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInsufficient)
	assert.Equal(t, before, h.custodyBalance(t))
	assert.Zero(t, h.eng.TradeCount())

	// Selling more than held also fails.
	_, err = h.eng.Buy(ctx, trader1, id, 0, 10*fixed.One, noLimit, noLimit)
	require.NoError(t, err)
	_, err = h.eng.Sell(ctx, trader1, id, 0, 20*fixed.One, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInsufficient)
}

func TestSell_ReducesCostBasisProportionally(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	buy, err := h.eng.Buy(ctx, trader1, id, 0, 100*fixed.One, noLimit, noLimit)
	require.NoError(t, err)

	sell, err := h.eng.Sell(ctx, trader1, id, 0, 50*fixed.One, 0, 0)
	require.NoError(t, err)

	// Half the shares sold, so half the basis unwound; realized P&L is the
	// net proceeds less that reduction.
	reduction := buy.Cost / 2
	net := sell.Cost - sell.Fee

	pf := h.eng.PortfolioOf(trader1)
	assert.Equal(t, net-reduction, pf.RealizedPnL)

	shares, err := h.eng.UserShares(id, 0, trader1)
	require.NoError(t, err)
	assert.Equal(t, 50*fixed.One, shares)
}

func TestSell_SlippageGuards(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	_, err := h.eng.Buy(ctx, trader1, id, 0, 100*fixed.One, noLimit, noLimit)
	require.NoError(t, err)

	_, err = h.eng.Sell(ctx, trader1, id, 0, 100*fixed.One, fixed.Scale, 0)
	assert.ErrorIs(t, err, domain.ErrSlippage)

	_, err = h.eng.Sell(ctx, trader1, id, 0, 100*fixed.One, 0, noLimit)
	assert.ErrorIs(t, err, domain.ErrSlippage)
}

func TestTrade_Conservation(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	// A run of buys and sells across two traders.
	_, err := h.eng.Buy(ctx, trader1, id, 0, 100*fixed.One, noLimit, noLimit)
	require.NoError(t, err)
	_, err = h.eng.Buy(ctx, trader2, id, 1, 250*fixed.One, noLimit, noLimit)
	require.NoError(t, err)
	_, err = h.eng.Sell(ctx, trader1, id, 0, 40*fixed.One, 0, 0)
	require.NoError(t, err)
	_, err = h.eng.Buy(ctx, trader2, id, 0, 75*fixed.One, noLimit, noLimit)
	require.NoError(t, err)

	// Custody holds exactly the admin stake plus net user flow plus fees.
	m, err := h.eng.Market(id)
	require.NoError(t, err)
	want := m.InitialLiquidity + m.UserLiquidity + m.FeesCollected
	assert.Equal(t, want, h.custodyBalance(t))

	// Price bounds hold throughout.
	var sum int64
	for _, o := range m.Options {
		assert.GreaterOrEqual(t, o.Price, int64(0))
		assert.LessOrEqual(t, o.Price, fixed.Scale)
		sum += o.Price
	}
	assert.InDelta(t, fixed.Scale, sum, float64(len(m.Options)))

	// Fee partition: everything collected is still locked.
	fees := h.eng.FeeTotals()
	assert.Equal(t, fees.Collected, fees.Locked+fees.Unlocked)
	assert.Equal(t, m.FeesCollected, fees.Collected)
}

func TestTrade_GlobalTradeCount(t *testing.T) {
	h := newHarness(t)
	id := h.createMarket(t)
	ctx := context.Background()

	_, err := h.eng.Buy(ctx, trader1, id, 0, 10*fixed.One, noLimit, noLimit)
	require.NoError(t, err)
	_, err = h.eng.Buy(ctx, trader2, id, 1, 10*fixed.One, noLimit, noLimit)
	require.NoError(t, err)
	_, err = h.eng.Sell(ctx, trader1, id, 0, 5*fixed.One, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(3), h.eng.TradeCount())
}
