package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/predmarket/internal/acl"
	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/fixed"
)

// CreateParams carries every input of market creation.
type CreateParams struct {
	Question           string
	Description        string
	OptionNames        []string
	OptionDescriptions []string
	Duration           time.Duration
	Category           domain.Category
	Type               domain.MarketType
	InitialLiquidity   int64
	EarlyResolution    bool
	Token              common.Address

	// Free-market parameters, ignored for standard markets.
	MaxFreeParticipants  int
	TokensPerParticipant int64
}

// CreateMarket validates params, pulls the initial liquidity from the creator
// into engine custody, creates the market and its options atomically, and
// returns the new sequential id. On any precondition violation nothing is
// mutated and no funds move.
func (e *Engine) CreateMarket(ctx context.Context, creator common.Address, p CreateParams) (uint64, error) {
	if !e.caps.Has(creator, acl.CapAdmin) {
		return 0, domain.Unauthorizedf("identity %s lacks the admin capability", creator.Hex())
	}
	if p.Question == "" {
		return 0, domain.Validationf("question must not be empty")
	}
	if len(p.OptionNames) < 2 {
		return 0, domain.Validationf("at least two options required, got %d", len(p.OptionNames))
	}
	if len(p.OptionNames) != len(p.OptionDescriptions) {
		return 0, domain.Validationf("option names (%d) and descriptions (%d) must match",
			len(p.OptionNames), len(p.OptionDescriptions))
	}
	if p.Duration < e.cfg.MinDuration || p.Duration > e.cfg.MaxDuration {
		return 0, domain.Validationf("duration %s outside allowed window [%s, %s]",
			p.Duration, e.cfg.MinDuration, e.cfg.MaxDuration)
	}
	if p.InitialLiquidity <= 0 {
		return 0, domain.Validationf("initial liquidity must be positive, got %d", p.InitialLiquidity)
	}
	switch p.Type {
	case domain.MarketTypeStandard, domain.MarketTypeFree:
	default:
		return 0, domain.Validationf("unknown market type %q", p.Type)
	}
	if !e.tokens.IsWhitelisted(p.Token) {
		return 0, domain.Validationf("token %s is not whitelisted", p.Token.Hex())
	}
	// A free market with participant slots but no per-participant grant would
	// burn slots and latches on zero-share claims.
	if p.Type == domain.MarketTypeFree && p.MaxFreeParticipants > 0 && p.TokensPerParticipant <= 0 {
		return 0, domain.Validationf("tokens per participant must be positive, got %d", p.TokensPerParticipant)
	}

	optionCount := int64(len(p.OptionNames))

	// B = initialLiquidity / optionCount, clamped. This simplification
	// stands in for liquidity/ln(optionCount) and bounds pricing
	// sensitivity; it is intentional.
	b := fixed.Clamp(p.InitialLiquidity/optionCount, e.cfg.MinLiquidityB, e.cfg.MaxLiquidityB)

	perOption := p.InitialLiquidity / optionCount
	initialPrice, err := fixed.Div(fixed.One, optionCount*fixed.One)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Pull the admin stake before touching state; a failed pull aborts with
	// nothing created.
	if err := e.ledger.TransferFrom(ctx, p.Token, creator, e.cfg.Custody, p.InitialLiquidity); err != nil {
		return 0, err
	}

	now := e.now()
	e.nextID++
	id := e.nextID

	options := make([]domain.Option, len(p.OptionNames))
	for i := range options {
		options[i] = domain.Option{
			Name:        p.OptionNames[i],
			Description: p.OptionDescriptions[i],
			Shares:      perOption,
			Price:       initialPrice,
			Active:      true,
		}
	}

	m := &domain.Market{
		ID:               id,
		Question:         p.Question,
		Description:      p.Description,
		Category:         p.Category,
		Type:             p.Type,
		Creator:          creator,
		Token:            p.Token,
		CreatedAt:        now,
		EndTime:          now.Add(p.Duration),
		Options:          options,
		LiquidityB:       b,
		InitialLiquidity: p.InitialLiquidity,
		EarlyResolution:  p.EarlyResolution,
		WinningOption:    domain.NoWinner,
	}

	if p.Type == domain.MarketTypeFree && p.MaxFreeParticipants > 0 {
		pool, err := fixed.MulDiv(int64(p.MaxFreeParticipants), p.TokensPerParticipant, 1)
		if err != nil {
			return 0, err
		}
		m.Free = &domain.FreeMarketConfig{
			MaxParticipants:      p.MaxFreeParticipants,
			TokensPerParticipant: p.TokensPerParticipant,
			TotalPrizePool:       pool,
			RemainingPrizePool:   pool,
			Active:               true,
		}
	}

	e.markets[id] = m
	e.byCategory[p.Category] = append(e.byCategory[p.Category], id)
	e.byType[p.Type] = append(e.byType[p.Type], id)

	e.logger.Info("market created",
		slog.Uint64("market_id", id),
		slog.String("type", string(p.Type)),
		slog.String("category", string(p.Category)),
		slog.Int("options", len(options)),
		slog.Int64("initial_liquidity", p.InitialLiquidity),
	)
	e.emit(domain.Event{
		Type:     domain.EventMarketCreated,
		MarketID: id,
		Actor:    creator,
		Token:    p.Token,
		Amount:   p.InitialLiquidity,
	})

	return id, nil
}
