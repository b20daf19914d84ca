package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/predmarket/internal/acl"
	"github.com/alanyoungcy/predmarket/internal/crypto"
	"github.com/alanyoungcy/predmarket/internal/engine"
	"github.com/alanyoungcy/predmarket/internal/journal"
	"github.com/alanyoungcy/predmarket/internal/ledger"
	"github.com/alanyoungcy/predmarket/internal/notify"
	"github.com/alanyoungcy/predmarket/internal/server"
	"github.com/alanyoungcy/predmarket/internal/server/handler"
	"github.com/alanyoungcy/predmarket/internal/server/ws"
)

// core bundles the engine and its access-control collaborators built from the
// access configuration.
type core struct {
	eng    *engine.Engine
	caps   *acl.Registry
	tokens *acl.Whitelist
	bank   *ledger.Memory
	ident  *crypto.Identity // nil when no operator key is configured
}

// ServerMode runs the engine with the HTTP/WebSocket API. Events are projected
// into the price cache and signal bus only; nothing is persisted.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	return a.run(ctx, deps, false)
}

// JournalMode runs the engine, the API, and the full PostgreSQL projections.
func (a *App) JournalMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting journal mode")
	return a.run(ctx, deps, false)
}

// FullMode runs everything: engine, API, persistence, notifications, and the
// trade archiver when archival is enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.run(ctx, deps, true)
}

func (a *App) run(ctx context.Context, deps *Dependencies, extras bool) error {
	c, err := a.buildCore(ctx)
	if err != nil {
		return fmt.Errorf("app: build engine: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	// Journal: the single consumer of the engine event stream. In server mode
	// the stores are nil and it feeds only the price cache and signal bus.
	// A nil *crypto.Identity must not be wrapped in the interface value.
	var attestor journal.Attestor
	if c.ident != nil {
		attestor = c.ident
	}
	j := journal.New(
		c.eng,
		deps.MarketStore,
		deps.TradeStore,
		deps.PositionStore,
		deps.PortfolioStore,
		deps.EventStore,
		deps.PriceCache,
		deps.SignalBus,
		attestor,
		a.logger,
	)
	g.Go(func() error {
		return j.Run(ctx)
	})

	if extras {
		// Notifications ride the signal bus so they see exactly what every
		// other subscriber sees.
		watcher := notify.NewWatcher(deps.SignalBus, deps.Notifier, a.logger)
		g.Go(func() error {
			return watcher.Run(ctx)
		})

		if deps.Archiver != nil {
			retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
			interval := a.cfg.Archive.Interval.Duration
			g.Go(func() error {
				return deps.Archiver.Run(ctx, interval, retention)
			})
		}
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, c)
	}

	return g.Wait()
}

// buildCore constructs the engine and its collaborators from the access
// configuration: custody accounts, capability grants, the token whitelist,
// and the operator signing identity when one is configured.
func (a *App) buildCore(ctx context.Context) (*core, error) {
	custody, err := parseAddr("access.custody", a.cfg.Access.Custody)
	if err != nil {
		return nil, err
	}
	collector, err := parseAddr("access.fee_collector", a.cfg.Access.FeeCollector)
	if err != nil {
		return nil, err
	}

	caps := acl.NewRegistry()
	for _, grant := range []struct {
		cap   acl.Capability
		addrs []string
	}{
		{acl.CapAdmin, a.cfg.Access.Admins},
		{acl.CapResolver, a.cfg.Access.Resolvers},
		{acl.CapValidator, a.cfg.Access.Validators},
		{acl.CapOperator, a.cfg.Access.Operators},
	} {
		for _, raw := range grant.addrs {
			addr, err := parseAddr(string(grant.cap), raw)
			if err != nil {
				return nil, err
			}
			caps.Grant(addr, grant.cap)
		}
	}

	tokens := acl.NewWhitelist()
	for _, raw := range a.cfg.Access.WhitelistedTokens {
		addr, err := parseAddr("whitelisted token", raw)
		if err != nil {
			return nil, err
		}
		tokens.Add(addr)
	}

	// Operator credential: derive the signing identity, grant it the operator
	// capability, and hand it to the journal to attest settlement events.
	var ident *crypto.Identity
	if a.cfg.Operator.EncryptedKeyPath != "" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			EncryptedKeyPath: a.cfg.Operator.EncryptedKeyPath,
			KeyPassword:      a.cfg.Operator.KeyPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("operator key: %w", err)
		}
		ident, err = crypto.NewIdentity(keyHex)
		if err != nil {
			return nil, fmt.Errorf("operator key: %w", err)
		}
		caps.Grant(ident.Address(), acl.CapOperator)
		a.logger.InfoContext(ctx, "operator identity loaded",
			slog.String("address", ident.Address().Hex()),
		)
	}

	bank := ledger.NewMemory(custody)
	eng := engine.New(engine.Config{
		FeeRate:        a.cfg.Engine.FeeRateBasisPoints,
		MinDuration:    a.cfg.Engine.MinDuration.Duration,
		MaxDuration:    a.cfg.Engine.MaxDuration.Duration,
		MinLiquidityB:  a.cfg.Engine.MinLiquidityB,
		MaxLiquidityB:  a.cfg.Engine.MaxLiquidityB,
		PayoutPerShare: a.cfg.Engine.PayoutPerShare,
		Custody:        custody,
		FeeCollector:   collector,
		EventBuffer:    a.cfg.Engine.EventBuffer,
	}, bank, caps, tokens, a.logger)

	return &core{eng: eng, caps: caps, tokens: tokens, bank: bank, ident: ident}, nil
}

// startHTTPServer adds the API server and WebSocket hub goroutines to the
// errgroup. The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, c *core) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	checks := make(map[string]handler.Pinger, len(deps.HealthChecks))
	for name, ping := range deps.HealthChecks {
		checks[name] = handler.Pinger(ping)
	}

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(checks, a.logger),
		Markets:   handler.NewMarketHandler(c.eng, deps.MarketStore, deps.TradeStore, deps.EventStore, deps.PriceCache, a.logger),
		Trades:    handler.NewTradeHandler(c.eng, a.logger),
		Lifecycle: handler.NewLifecycleHandler(c.eng, a.logger),
		Claims:    handler.NewClaimsHandler(c.eng, a.logger),
		Positions: handler.NewPositionHandler(c.eng, deps.PositionStore, deps.PortfolioStore, a.logger),
		Fees:      handler.NewFeeHandler(c.eng, c.tokens, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func parseAddr(field, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, raw)
	}
	return common.HexToAddress(raw), nil
}
