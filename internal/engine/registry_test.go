package engine

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/fixed"
)

func TestCreateMarket_HappyPath(t *testing.T) {
	h := newHarness(t)
	before := h.custodyBalance(t)

	id := h.createMarket(t)
	assert.Equal(t, uint64(1), id)

	m, err := h.eng.Market(id)
	require.NoError(t, err)

	assert.Equal(t, domain.MarketTypeStandard, m.Type)
	assert.Equal(t, admin, m.Creator)
	assert.Equal(t, usdc, m.Token)
	assert.Len(t, m.Options, 2)
	assert.Equal(t, domain.NoWinner, m.WinningOption)

	// Initial liquidity split evenly, each option priced at 1/optionCount.
	for _, o := range m.Options {
		assert.Equal(t, 500*fixed.One, o.Shares)
		assert.Equal(t, fixed.Scale/2, o.Price)
		assert.True(t, o.Active)
	}

	// B = initialLiquidity / optionCount, inside the clamp band here.
	assert.Equal(t, 500*fixed.One, m.LiquidityB)

	// The stake moved into custody.
	assert.Equal(t, 1000*fixed.One, h.custodyBalance(t)-before)

	// Sequential ids.
	id2, err := h.eng.CreateMarket(context.Background(), admin, h.defaultParams())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id2)
}

func TestCreateMarket_LiquidityBClamped(t *testing.T) {
	h := newHarness(t)

	p := h.defaultParams()
	p.InitialLiquidity = 10 * fixed.One // 5 per option, below MinLiquidityB
	id, err := h.eng.CreateMarket(context.Background(), admin, p)
	require.NoError(t, err)

	m, err := h.eng.Market(id)
	require.NoError(t, err)
	assert.Equal(t, 100*fixed.One, m.LiquidityB, "clamped to MinLiquidityB")
}

func TestCreateMarket_ValidationFailures(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"empty question", func(p *CreateParams) { p.Question = "" }},
		{"single option", func(p *CreateParams) {
			p.OptionNames = []string{"Yes"}
			p.OptionDescriptions = []string{"only"}
		}},
		{"mismatched arrays", func(p *CreateParams) {
			p.OptionDescriptions = []string{"one"}
		}},
		{"duration too short", func(p *CreateParams) { p.Duration = time.Minute }},
		{"duration too long", func(p *CreateParams) { p.Duration = 400 * 24 * time.Hour }},
		{"zero liquidity", func(p *CreateParams) { p.InitialLiquidity = 0 }},
		{"negative liquidity", func(p *CreateParams) { p.InitialLiquidity = -1 }},
		{"unknown type", func(p *CreateParams) { p.Type = "exotic" }},
		{"token not whitelisted", func(p *CreateParams) {
			p.Token = common.HexToAddress("0xdead")
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := h.custodyBalance(t)
			p := h.defaultParams()
			tc.mutate(&p)

			_, err := h.eng.CreateMarket(context.Background(), admin, p)
			assert.ErrorIs(t, err, domain.ErrValidation)

			// No state change, no fund movement.
			assert.Equal(t, before, h.custodyBalance(t))
			assert.Empty(t, h.eng.Markets())
		})
	}
}

func TestCreateMarket_RequiresAdminCapability(t *testing.T) {
	h := newHarness(t)

	_, err := h.eng.CreateMarket(context.Background(), trader1, h.defaultParams())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCreateMarket_InsufficientAllowance(t *testing.T) {
	h := newHarness(t)

	p := h.defaultParams()
	p.InitialLiquidity = 5_000_000 * fixed.One // beyond the minted balance
	_, err := h.eng.CreateMarket(context.Background(), admin, p)
	assert.ErrorIs(t, err, domain.ErrInsufficient)
	assert.Empty(t, h.eng.Markets())
}

func TestCreateMarket_FreeInitializesConfig(t *testing.T) {
	h := newHarness(t)

	p := h.defaultParams()
	p.Type = domain.MarketTypeFree
	p.MaxFreeParticipants = 10
	p.TokensPerParticipant = 50 * fixed.One

	id, err := h.eng.CreateMarket(context.Background(), admin, p)
	require.NoError(t, err)

	m, err := h.eng.Market(id)
	require.NoError(t, err)
	require.NotNil(t, m.Free)
	assert.Equal(t, 10, m.Free.MaxParticipants)
	assert.Equal(t, 50*fixed.One, m.Free.TokensPerParticipant)
	assert.Equal(t, 500*fixed.One, m.Free.TotalPrizePool)
	assert.Equal(t, 500*fixed.One, m.Free.RemainingPrizePool)
	assert.True(t, m.Free.Active)
}

func TestCreateMarket_FreeRejectsZeroGrant(t *testing.T) {
	h := newHarness(t)

	for _, grant := range []int64{0, -fixed.One} {
		p := h.defaultParams()
		p.Type = domain.MarketTypeFree
		p.MaxFreeParticipants = 10
		p.TokensPerParticipant = grant

		_, err := h.eng.CreateMarket(context.Background(), admin, p)
		require.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestCreateMarket_Indexes(t *testing.T) {
	h := newHarness(t)

	p := h.defaultParams()
	p.Category = domain.CategorySports
	_, err := h.eng.CreateMarket(context.Background(), admin, p)
	require.NoError(t, err)

	p2 := h.defaultParams()
	p2.Type = domain.MarketTypeFree
	p2.MaxFreeParticipants = 2
	p2.TokensPerParticipant = fixed.One
	_, err = h.eng.CreateMarket(context.Background(), admin, p2)
	require.NoError(t, err)

	assert.Len(t, h.eng.MarketsByCategory(domain.CategorySports), 1)
	assert.Len(t, h.eng.MarketsByCategory(domain.CategoryScience), 1)
	assert.Len(t, h.eng.MarketsByType(domain.MarketTypeFree), 1)
	assert.Len(t, h.eng.MarketsByType(domain.MarketTypeStandard), 1)
}
