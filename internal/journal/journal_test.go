package journal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predmarket/internal/acl"
	"github.com/alanyoungcy/predmarket/internal/crypto"
	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/engine"
	"github.com/alanyoungcy/predmarket/internal/fixed"
	"github.com/alanyoungcy/predmarket/internal/ledger"
)

var (
	custody  = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	resolver = common.HexToAddress("0x000000000000000000000000000000000000005e")
	trader   = common.HexToAddress("0x0000000000000000000000000000000000000011")
	usdc     = common.HexToAddress("0x00000000000000000000000000000000000000dc")
)

// memStores records every projection write in memory behind one mutex.
type memStores struct {
	mu         sync.Mutex
	markets    map[uint64]domain.Market
	trades     []domain.TradeRecord
	positions  []domain.Position
	portfolios map[common.Address]domain.Portfolio
	events     []domain.Event
	prices     map[uint64][]int64
	published  [][]byte
}

func newMemStores() *memStores {
	return &memStores{
		markets:    make(map[uint64]domain.Market),
		portfolios: make(map[common.Address]domain.Portfolio),
		prices:     make(map[uint64][]int64),
	}
}

func (s *memStores) Upsert(ctx context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[m.ID] = m
	return nil
}

func (s *memStores) GetByID(ctx context.Context, id uint64) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markets[id], nil
}

func (s *memStores) ListByCategory(ctx context.Context, cat domain.Category, opts domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}

type tradeSink struct{ s *memStores }

func (t tradeSink) Insert(ctx context.Context, rec domain.TradeRecord) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.trades = append(t.s.trades, rec)
	return nil
}

func (t tradeSink) ListByMarket(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (t tradeSink) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (t tradeSink) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type positionSink struct{ s *memStores }

func (p positionSink) Upsert(ctx context.Context, pos domain.Position) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.positions = append(p.s.positions, pos)
	return nil
}

func (p positionSink) ListByOwner(ctx context.Context, owner common.Address, opts domain.ListOpts) ([]domain.Position, error) {
	return nil, nil
}

type portfolioSink struct{ s *memStores }

func (p portfolioSink) Upsert(ctx context.Context, pf domain.Portfolio) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.portfolios[pf.Owner] = pf
	return nil
}

func (p portfolioSink) GetByOwner(ctx context.Context, owner common.Address) (domain.Portfolio, error) {
	return domain.Portfolio{}, nil
}

type eventSink struct{ s *memStores }

func (e eventSink) Insert(ctx context.Context, ev domain.Event) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	e.s.events = append(e.s.events, ev)
	return nil
}

func (e eventSink) ListByMarket(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Event, error) {
	return nil, nil
}

type priceSink struct{ s *memStores }

func (p priceSink) SetPrices(ctx context.Context, marketID uint64, prices []int64, ts time.Time) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.prices[marketID] = prices
	return nil
}

func (p priceSink) GetPrices(ctx context.Context, marketID uint64) ([]int64, time.Time, error) {
	return nil, time.Time{}, nil
}

type busSink struct{ s *memStores }

func (b busSink) Publish(ctx context.Context, channel string, payload []byte) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	b.s.published = append(b.s.published, payload)
	return nil
}

func (b busSink) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (s *memStores) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newEngine(t *testing.T) (*engine.Engine, *ledger.Memory) {
	t.Helper()

	caps := acl.NewRegistry()
	caps.Grant(admin, acl.CapAdmin)
	caps.Grant(resolver, acl.CapResolver)

	tokens := acl.NewWhitelist()
	tokens.Add(usdc)

	led := ledger.NewMemory(custody)
	for _, who := range []common.Address{admin, trader} {
		led.Mint(usdc, who, 1_000_000*fixed.One)
		led.Approve(usdc, who, 1_000_000*fixed.One)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(engine.Config{
		FeeRate:        25,
		MinDuration:    time.Hour,
		MaxDuration:    30 * 24 * time.Hour,
		MinLiquidityB:  100 * fixed.One,
		MaxLiquidityB:  10_000 * fixed.One,
		PayoutPerShare: fixed.One,
		Custody:        custody,
		FeeCollector:   common.HexToAddress("0x00000000000000000000000000000000000000fc"),
	}, led, caps, tokens, logger)
	return eng, led
}

func TestJournal_ProjectsEngineStream(t *testing.T) {
	eng, _ := newEngine(t)
	stores := newMemStores()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	j := New(eng,
		stores,
		tradeSink{stores},
		positionSink{stores},
		portfolioSink{stores},
		eventSink{stores},
		priceSink{stores},
		busSink{stores},
		nil,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	const noLimit = int64(1 << 50)
	id, err := eng.CreateMarket(ctx, admin, engine.CreateParams{
		Question:         "Will the rollout finish on time?",
		OptionNames:      []string{"Yes", "No"},
		Duration:         24 * time.Hour,
		Category:         domain.CategoryOther,
		Type:             domain.MarketTypeStandard,
		InitialLiquidity: 1000 * fixed.One,
		EarlyResolution:  true,
		Token:            usdc,
	})
	require.NoError(t, err)

	_, err = eng.Buy(ctx, trader, id, 0, 100*fixed.One, noLimit, noLimit)
	require.NoError(t, err)
	require.NoError(t, eng.Resolve(ctx, resolver, id, 0))
	_, err = eng.ClaimWinnings(ctx, trader, id)
	require.NoError(t, err)

	// created + trade + fees_accrued + resolved + fees_unlocked + claimed.
	require.Eventually(t, func() bool {
		return stores.eventCount() >= 6
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	stores.mu.Lock()
	defer stores.mu.Unlock()

	// Market snapshot reflects the terminal state.
	m := stores.markets[id]
	assert.True(t, m.Resolved)
	assert.Equal(t, 0, m.WinningOption)

	// One fill persisted, attributed to the trader.
	require.Len(t, stores.trades, 1)
	assert.Equal(t, trader, stores.trades[0].Buyer)

	// Position and portfolio snapshots were refreshed for the trader.
	assert.NotEmpty(t, stores.positions)
	assert.Contains(t, stores.portfolios, trader)

	// Price cache holds one entry per option.
	require.Len(t, stores.prices[id], 2)

	// Every event was published on the fan-out channel and decodes cleanly.
	require.NotEmpty(t, stores.published)
	var ev domain.Event
	require.NoError(t, json.Unmarshal(stores.published[0], &ev))
	assert.Equal(t, domain.EventMarketCreated, ev.Type)
}

func TestJournal_AttestsSettlementEvents(t *testing.T) {
	eng, _ := newEngine(t)
	stores := newMemStores()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ident, err := crypto.NewIdentity("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)

	j := New(eng, nil, nil, nil, nil, eventSink{stores}, nil, busSink{stores}, ident, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	id, err := eng.CreateMarket(ctx, admin, engine.CreateParams{
		Question:         "Will the vote pass?",
		OptionNames:      []string{"Yes", "No"},
		Duration:         24 * time.Hour,
		Category:         domain.CategoryPolitics,
		Type:             domain.MarketTypeStandard,
		InitialLiquidity: 1000 * fixed.One,
		EarlyResolution:  true,
		Token:            usdc,
	})
	require.NoError(t, err)
	require.NoError(t, eng.Resolve(ctx, resolver, id, 1))

	// created + resolved. Resolution with no trades unlocks nothing.
	require.Eventually(t, func() bool {
		return stores.eventCount() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	stores.mu.Lock()
	defer stores.mu.Unlock()

	var resolved *domain.Event
	for i := range stores.events {
		if stores.events[i].Type == domain.EventMarketResolved {
			resolved = &stores.events[i]
		}
	}
	require.NotNil(t, resolved)
	require.NotEmpty(t, resolved.Attestation)

	// The signature recovers to the operator over the settlement fields.
	ok, err := crypto.VerifyAttestation(AttestationPayload(*resolved), resolved.Attestation, ident.Address())
	require.NoError(t, err)
	assert.True(t, ok)

	// Creation events are not attested.
	assert.Empty(t, stores.events[0].Attestation)

	// The published copy carries the attestation too.
	var found bool
	for _, raw := range stores.published {
		var ev domain.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		if ev.Type == domain.EventMarketResolved {
			found = ev.Attestation == resolved.Attestation
		}
	}
	assert.True(t, found)
}

func TestJournal_NilCollaboratorsAreSkipped(t *testing.T) {
	eng, _ := newEngine(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	j := New(eng, nil, nil, nil, nil, nil, nil, nil, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	_, err := eng.CreateMarket(ctx, admin, engine.CreateParams{
		Question:         "Does a bare journal stay quiet?",
		OptionNames:      []string{"Yes", "No"},
		Duration:         24 * time.Hour,
		Category:         domain.CategoryOther,
		Type:             domain.MarketTypeStandard,
		InitialLiquidity: 1000 * fixed.One,
		Token:            usdc,
	})
	require.NoError(t, err)

	// Give the loop a beat to consume the event, then stop.
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
