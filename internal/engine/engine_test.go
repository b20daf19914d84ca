package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predmarket/internal/acl"
	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/fixed"
	"github.com/alanyoungcy/predmarket/internal/ledger"
)

var (
	custody   = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	collector = common.HexToAddress("0x00000000000000000000000000000000000000fc")
	admin     = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	resolver  = common.HexToAddress("0x000000000000000000000000000000000000005e")
	operator  = common.HexToAddress("0x000000000000000000000000000000000000000f")
	trader1   = common.HexToAddress("0x0000000000000000000000000000000000000011")
	trader2   = common.HexToAddress("0x0000000000000000000000000000000000000022")
	trader3   = common.HexToAddress("0x0000000000000000000000000000000000000033")
	usdc      = common.HexToAddress("0x00000000000000000000000000000000000000dc")
)

// fakeClock lets tests drive the engine's notion of wall-clock time.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	eng    *Engine
	ledger *ledger.Memory
	clock  *fakeClock
	caps   *acl.Registry
	tokens *acl.Whitelist
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	caps := acl.NewRegistry()
	caps.Grant(admin, acl.CapAdmin)
	caps.Grant(resolver, acl.CapResolver)
	caps.Grant(resolver, acl.CapValidator)
	caps.Grant(operator, acl.CapOperator)

	tokens := acl.NewWhitelist()
	tokens.Add(usdc)

	led := ledger.NewMemory(custody)
	for _, who := range []common.Address{admin, trader1, trader2, trader3} {
		led.Mint(usdc, who, 1_000_000*fixed.One)
		led.Approve(usdc, who, 1_000_000*fixed.One)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	eng := New(Config{
		FeeRate:        25, // 2.5%
		MinDuration:    time.Hour,
		MaxDuration:    30 * 24 * time.Hour,
		MinLiquidityB:  100 * fixed.One,
		MaxLiquidityB:  10_000 * fixed.One,
		PayoutPerShare: fixed.One,
		Custody:        custody,
		FeeCollector:   collector,
	}, led, caps, tokens, logger)
	eng.now = clock.Now

	return &harness{eng: eng, ledger: led, clock: clock, caps: caps, tokens: tokens}
}

func (h *harness) defaultParams() CreateParams {
	return CreateParams{
		Question:           "Will it rain tomorrow?",
		Description:        "Settles on the official forecast",
		OptionNames:        []string{"Yes", "No"},
		OptionDescriptions: []string{"It rains", "It does not"},
		Duration:           24 * time.Hour,
		Category:           domain.CategoryScience,
		Type:               domain.MarketTypeStandard,
		InitialLiquidity:   1000 * fixed.One,
		Token:              usdc,
	}
}

func (h *harness) createMarket(t *testing.T) uint64 {
	t.Helper()
	id, err := h.eng.CreateMarket(context.Background(), admin, h.defaultParams())
	require.NoError(t, err)
	return id
}

// custodyBalance reads the engine's held funds from the ledger.
func (h *harness) custodyBalance(t *testing.T) int64 {
	t.Helper()
	bal, err := h.ledger.BalanceOf(context.Background(), usdc, custody)
	require.NoError(t, err)
	return bal
}

// drainEvents empties the engine event channel and returns the types seen.
func (h *harness) drainEvents() []domain.EventType {
	var types []domain.EventType
	for {
		select {
		case ev := <-h.eng.Events():
			types = append(types, ev.Type)
		default:
			return types
		}
	}
}
