package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/predmarket/internal/engine"
)

// ClaimsHandler serves the post-trading payout endpoints: winnings, refunds,
// free-token grants, and the creator's stake withdrawal.
type ClaimsHandler struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// NewClaimsHandler creates a ClaimsHandler.
func NewClaimsHandler(eng *engine.Engine, logger *slog.Logger) *ClaimsHandler {
	return &ClaimsHandler{
		eng:    eng,
		logger: logHandler(logger, "claims"),
	}
}

type claimRequest struct {
	Caller string `json:"caller"`
	Option int    `json:"option"`
}

func decodeClaim(w http.ResponseWriter, r *http.Request) (uint64, claimRequest, bool) {
	id, err := pathMarketID(r)
	if err != nil {
		writeEngineError(w, err)
		return 0, claimRequest{}, false
	}
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return 0, claimRequest{}, false
	}
	return id, req, true
}

// ClaimWinnings pays out the caller's winning shares on a resolved market.
// POST /api/markets/{id}/claim
func (h *ClaimsHandler) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	id, req, ok := decodeClaim(w, r)
	if !ok {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	payout, err := h.eng.ClaimWinnings(r.Context(), caller, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "winnings claimed via api",
		slog.Uint64("market_id", id),
		slog.Int64("payout", payout),
	)
	writeJSON(w, http.StatusOK, map[string]int64{"payout": payout})
}

// ClaimRefund returns the caller's cost basis on an invalidated market.
// POST /api/markets/{id}/refund
func (h *ClaimsHandler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	id, req, ok := decodeClaim(w, r)
	if !ok {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	refund, err := h.eng.ClaimRefund(r.Context(), caller, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "refund claimed via api",
		slog.Uint64("market_id", id),
		slog.Int64("refund", refund),
	)
	writeJSON(w, http.StatusOK, map[string]int64{"refund": refund})
}

// ClaimFreeTokens grants the free-market starter shares to the caller.
// POST /api/markets/{id}/free-tokens
func (h *ClaimsHandler) ClaimFreeTokens(w http.ResponseWriter, r *http.Request) {
	id, req, ok := decodeClaim(w, r)
	if !ok {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.eng.ClaimFreeTokens(r.Context(), caller, id, req.Option); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claimed": true})
}

// WithdrawAdminLiquidity returns the creator's initial stake after the market
// reaches a terminal state.
// POST /api/markets/{id}/withdraw-liquidity
func (h *ClaimsHandler) WithdrawAdminLiquidity(w http.ResponseWriter, r *http.Request) {
	id, req, ok := decodeClaim(w, r)
	if !ok {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	amount, err := h.eng.WithdrawAdminLiquidity(r.Context(), caller, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "admin liquidity withdrawn via api",
		slog.Uint64("market_id", id),
		slog.Int64("amount", amount),
	)
	writeJSON(w, http.StatusOK, map[string]int64{"amount": amount})
}
