package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/predmarket/internal/acl"
	"github.com/alanyoungcy/predmarket/internal/engine"
)

// FeeHandler serves platform fee accounting and token whitelist endpoints.
type FeeHandler struct {
	eng    *engine.Engine
	tokens *acl.Whitelist
	logger *slog.Logger
}

// NewFeeHandler creates a FeeHandler.
func NewFeeHandler(eng *engine.Engine, tokens *acl.Whitelist, logger *slog.Logger) *FeeHandler {
	return &FeeHandler{
		eng:    eng,
		tokens: tokens,
		logger: logHandler(logger, "fees"),
	}
}

// GetFeeTotals returns the platform fee ledger snapshot.
// GET /api/fees
func (h *FeeHandler) GetFeeTotals(w http.ResponseWriter, r *http.Request) {
	fees := h.eng.FeeTotals()
	writeJSON(w, http.StatusOK, map[string]int64{
		"collected":    fees.Collected,
		"locked":       fees.Locked,
		"unlocked":     fees.Unlocked,
		"withdrawn":    fees.Withdrawn,
		"withdrawable": fees.Withdrawable(),
	})
}

type withdrawFeesRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount int64  `json:"amount"`
}

// WithdrawFees transfers unlocked fees to the configured fee collector.
// POST /api/fees/withdraw
func (h *FeeHandler) WithdrawFees(w http.ResponseWriter, r *http.Request) {
	var req withdrawFeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.eng.WithdrawFees(r.Context(), caller, token, req.Amount); err != nil {
		writeEngineError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "fees withdrawn via api",
		slog.Int64("amount", req.Amount),
	)
	writeJSON(w, http.StatusOK, map[string]any{"withdrawn": req.Amount})
}

// ListTokens returns the current betting-token whitelist.
// GET /api/tokens
func (h *FeeHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tokens": h.tokens.Tokens()})
}

type tokenRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
}

// WhitelistToken adds a betting token to the whitelist.
// POST /api/tokens
func (h *FeeHandler) WhitelistToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	token, err := parseAddress("token", req.Token)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.eng.WhitelistToken(caller, token); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"whitelisted": true})
}

// RemoveToken delists a betting token. Existing markets keep their token.
// DELETE /api/tokens/{address}
func (h *FeeHandler) RemoveToken(w http.ResponseWriter, r *http.Request) {
	token, err := parseAddress("address", r.PathValue("address"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	caller, err := parseAddress("caller", r.URL.Query().Get("caller"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.eng.RemoveToken(caller, token); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}
