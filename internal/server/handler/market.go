package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/engine"
)

// MarketHandler serves market discovery, creation, and per-market history
// endpoints. Live reads come from the engine; the journal store answers
// queries the engine cannot (time windows, markets that predate this
// process), and the price cache serves latest-price polls without touching
// the engine lock.
type MarketHandler struct {
	eng     *engine.Engine
	markets domain.MarketStore // optional
	trades  domain.TradeStore  // optional
	events  domain.EventStore  // optional
	prices  domain.PriceCache  // optional
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler. markets, trades, events, and
// prices may be nil, in which case those endpoints fall back to the engine's
// in-memory view.
func NewMarketHandler(eng *engine.Engine, markets domain.MarketStore, trades domain.TradeStore, events domain.EventStore, prices domain.PriceCache, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		eng:     eng,
		markets: markets,
		trades:  trades,
		events:  events,
		prices:  prices,
		logger:  logHandler(logger, "market"),
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int             `json:"total"`
}

// ListMarkets returns markets, optionally filtered by category or type.
// Category queries with a since/until window are answered from the journal
// store, which holds history the engine does not index by time.
// GET /api/markets?category=crypto&type=free&since=2025-01-01T00:00:00Z
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := parseListOpts(r)

	var (
		markets []domain.Market
		err     error
	)
	switch {
	case q.Get("category") != "" && h.markets != nil && (opts.Since != nil || opts.Until != nil):
		markets, err = h.markets.ListByCategory(r.Context(), domain.Category(q.Get("category")), opts)
	case q.Get("category") != "":
		markets = h.eng.MarketsByCategory(domain.Category(q.Get("category")))
	case q.Get("type") != "":
		markets = h.eng.MarketsByType(domain.MarketType(q.Get("type")))
	default:
		markets = h.eng.Markets()
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list markets failed",
			slog.String("error", err.Error()),
		)
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   len(markets),
	})
}

// createMarketRequest is the JSON body for market creation.
type createMarketRequest struct {
	Creator              string   `json:"creator"`
	Question             string   `json:"question"`
	Description          string   `json:"description"`
	OptionNames          []string `json:"option_names"`
	OptionDescriptions   []string `json:"option_descriptions"`
	DurationSeconds      int64    `json:"duration_seconds"`
	Category             string   `json:"category"`
	Type                 string   `json:"type"`
	Token                string   `json:"token"`
	InitialLiquidity     int64    `json:"initial_liquidity"`
	EarlyResolution      bool     `json:"early_resolution"`
	MaxFreeParticipants  int      `json:"max_free_participants"`
	TokensPerParticipant int64    `json:"tokens_per_participant"`
}

// CreateMarket creates a new market funded by the creator's admin stake.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	creator, err := parseAddress("creator", req.Creator)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	id, err := h.eng.CreateMarket(r.Context(), creator, engine.CreateParams{
		Question:             req.Question,
		Description:          req.Description,
		OptionNames:          req.OptionNames,
		OptionDescriptions:   req.OptionDescriptions,
		Duration:             time.Duration(req.DurationSeconds) * time.Second,
		Category:             domain.Category(req.Category),
		Type:                 domain.MarketType(req.Type),
		InitialLiquidity:     req.InitialLiquidity,
		EarlyResolution:      req.EarlyResolution,
		Token:                token,
		MaxFreeParticipants:  req.MaxFreeParticipants,
		TokensPerParticipant: req.TokensPerParticipant,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "market created via api",
		slog.Uint64("market_id", id),
	)
	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
}

// GetMarket returns a single market by its ID. Markets unknown to the engine
// (created before the last restart) are served from the journal store when
// one is configured.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathMarketID(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	m, err := h.eng.Market(id)
	if errors.Is(err, domain.ErrNotFound) && h.markets != nil {
		m, err = h.markets.GetByID(r.Context(), id)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetLatestPrices returns the most recent option price vector for a market.
// The cache is written by the journal on every fill, so pollers read it
// without contending on the engine lock; without a cache the engine snapshot
// is served directly.
// GET /api/markets/{id}/prices/latest
func (h *MarketHandler) GetLatestPrices(w http.ResponseWriter, r *http.Request) {
	id, err := pathMarketID(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if h.prices != nil {
		prices, ts, err := h.prices.GetPrices(r.Context(), id)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"market_id": id,
				"prices":    prices,
				"as_of":     ts.UTC(),
			})
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.WarnContext(r.Context(), "price cache read failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
		}
		// Fall through to the engine on a cold or unavailable cache.
	}

	m, err := h.eng.Market(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	prices := make([]int64, len(m.Options))
	for i, o := range m.Options {
		prices[i] = o.Price
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"prices":    prices,
		"as_of":     time.Now().UTC(),
	})
}

// GetPriceHistory returns the per-trade price samples for a market.
// GET /api/markets/{id}/prices
func (h *MarketHandler) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathMarketID(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	history, err := h.eng.PriceHistory(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"prices":    history,
	})
}

// ListTrades returns the trade log for a market, newest first.
// GET /api/markets/{id}/trades?limit=50&offset=0
func (h *MarketHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	id, err := pathMarketID(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var trades []domain.TradeRecord
	if h.trades != nil {
		trades, err = h.trades.ListByMarket(r.Context(), id, parseListOpts(r))
	} else {
		trades, err = h.eng.TradesOf(id)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list trades failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"trades":    trades,
	})
}

// ListEvents returns the persisted event log for a market.
// GET /api/markets/{id}/events?limit=50&offset=0
func (h *MarketHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusNotImplemented, "event log not configured")
		return
	}

	id, err := pathMarketID(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	events, err := h.events.ListByMarket(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list events failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"events":    events,
	})
}
