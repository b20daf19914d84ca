package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/predmarket/internal/engine"
)

// TradeHandler serves the buy and sell endpoints.
type TradeHandler struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(eng *engine.Engine, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		eng:    eng,
		logger: logHandler(logger, "trade"),
	}
}

// tradeRequest is the JSON body shared by buys and sells. The price and total
// bounds are the caller's slippage guards; a zero bound is rejected by the
// engine, so clients that want no guard pass a large value explicitly.
type tradeRequest struct {
	Caller   string `json:"caller"`
	Option   int    `json:"option"`
	Quantity int64  `json:"quantity"`

	MaxPricePerShare int64 `json:"max_price_per_share,omitempty"`
	MaxTotalCost     int64 `json:"max_total_cost,omitempty"`

	MinPricePerShare int64 `json:"min_price_per_share,omitempty"`
	MinTotalProceeds int64 `json:"min_total_proceeds,omitempty"`
}

// Buy purchases shares of one option against the pricing curve.
// POST /api/markets/{id}/buy
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	id, err := pathMarketID(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	buyer, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	rec, err := h.eng.Buy(r.Context(), buyer, id, req.Option, req.Quantity,
		req.MaxPricePerShare, req.MaxTotalCost)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "buy executed via api",
		slog.Uint64("market_id", id),
		slog.Int("option", req.Option),
		slog.Int64("quantity", req.Quantity),
	)
	writeJSON(w, http.StatusOK, rec)
}

// Sell sells previously acquired shares back to the pricing curve.
// POST /api/markets/{id}/sell
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	id, err := pathMarketID(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	seller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	rec, err := h.eng.Sell(r.Context(), seller, id, req.Option, req.Quantity,
		req.MinPricePerShare, req.MinTotalProceeds)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "sell executed via api",
		slog.Uint64("market_id", id),
		slog.Int("option", req.Option),
		slog.Int64("quantity", req.Quantity),
	)
	writeJSON(w, http.StatusOK, rec)
}
