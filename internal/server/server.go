// Package server exposes the market engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/server/handler"
	"github.com/alanyoungcy/predmarket/internal/server/middleware"
	"github.com/alanyoungcy/predmarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimitPerMin caps requests per client IP per minute. Zero disables
	// rate limiting; it is also disabled when no limiter is supplied.
	RateLimitPerMin int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Markets   *handler.MarketHandler
	Trades    *handler.TradeHandler
	Lifecycle *handler.LifecycleHandler
	Claims    *handler.ClaimsHandler
	Positions *handler.PositionHandler
	Fees      *handler.FeeHandler
}

// Server is the HTTP + WebSocket API server for the market engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market discovery and creation.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/prices", handlers.Markets.GetPriceHistory)
	mux.HandleFunc("GET /api/markets/{id}/prices/latest", handlers.Markets.GetLatestPrices)
	mux.HandleFunc("GET /api/markets/{id}/trades", handlers.Markets.ListTrades)
	mux.HandleFunc("GET /api/markets/{id}/events", handlers.Markets.ListEvents)

	// Trading.
	mux.HandleFunc("POST /api/markets/{id}/buy", handlers.Trades.Buy)
	mux.HandleFunc("POST /api/markets/{id}/sell", handlers.Trades.Sell)

	// Lifecycle transitions.
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Lifecycle.Resolve)
	mux.HandleFunc("POST /api/markets/{id}/invalidate", handlers.Lifecycle.Invalidate)
	mux.HandleFunc("POST /api/markets/{id}/validate", handlers.Lifecycle.Validate)
	mux.HandleFunc("POST /api/markets/{id}/dispute", handlers.Lifecycle.Dispute)

	// Claims and payouts.
	mux.HandleFunc("POST /api/markets/{id}/claim", handlers.Claims.ClaimWinnings)
	mux.HandleFunc("POST /api/markets/{id}/refund", handlers.Claims.ClaimRefund)
	mux.HandleFunc("POST /api/markets/{id}/free-tokens", handlers.Claims.ClaimFreeTokens)
	mux.HandleFunc("POST /api/markets/{id}/withdraw-liquidity", handlers.Claims.WithdrawAdminLiquidity)
	mux.HandleFunc("GET /api/markets/{id}/claim-status", handlers.Positions.GetClaimStatus)

	// Participant views.
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)
	mux.HandleFunc("GET /api/portfolio", handlers.Positions.GetPortfolio)

	// Platform fees and token whitelist.
	mux.HandleFunc("GET /api/fees", handlers.Fees.GetFeeTotals)
	mux.HandleFunc("POST /api/fees/withdraw", handlers.Fees.WithdrawFees)
	mux.HandleFunc("GET /api/tokens", handlers.Fees.ListTokens)
	mux.HandleFunc("POST /api/tokens", handlers.Fees.WhitelistToken)
	mux.HandleFunc("DELETE /api/tokens/{address}", handlers.Fees.RemoveToken)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimitPerMin > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMin, time.Minute)(h)
	}

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
