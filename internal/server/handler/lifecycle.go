package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/predmarket/internal/engine"
)

// LifecycleHandler serves resolution, invalidation, validation, and dispute
// endpoints.
type LifecycleHandler struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// NewLifecycleHandler creates a LifecycleHandler.
func NewLifecycleHandler(eng *engine.Engine, logger *slog.Logger) *LifecycleHandler {
	return &LifecycleHandler{
		eng:    eng,
		logger: logHandler(logger, "lifecycle"),
	}
}

type lifecycleRequest struct {
	Caller        string `json:"caller"`
	WinningOption int    `json:"winning_option"`
	Reason        string `json:"reason"`
}

func decodeLifecycle(w http.ResponseWriter, r *http.Request) (uint64, lifecycleRequest, bool) {
	id, err := pathMarketID(r)
	if err != nil {
		writeEngineError(w, err)
		return 0, lifecycleRequest{}, false
	}
	var req lifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return 0, lifecycleRequest{}, false
	}
	return id, req, true
}

// Resolve settles the market on the given winning option.
// POST /api/markets/{id}/resolve
func (h *LifecycleHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, req, ok := decodeLifecycle(w, r)
	if !ok {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.eng.Resolve(r.Context(), caller, id, req.WinningOption); err != nil {
		writeEngineError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "market resolved via api",
		slog.Uint64("market_id", id),
		slog.Int("winning_option", req.WinningOption),
	)
	writeJSON(w, http.StatusOK, map[string]any{"resolved": true})
}

// Invalidate voids the market, enabling refunds in place of payouts.
// POST /api/markets/{id}/invalidate
func (h *LifecycleHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	id, req, ok := decodeLifecycle(w, r)
	if !ok {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.eng.Invalidate(r.Context(), caller, id); err != nil {
		writeEngineError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "market invalidated via api",
		slog.Uint64("market_id", id),
	)
	writeJSON(w, http.StatusOK, map[string]any{"invalidated": true})
}

// Validate marks the market's proposition as reviewed.
// POST /api/markets/{id}/validate
func (h *LifecycleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id, req, ok := decodeLifecycle(w, r)
	if !ok {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.eng.Validate(r.Context(), caller, id); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"validated": true})
}

// Dispute flags the market, blocking resolution until the dispute clears.
// POST /api/markets/{id}/dispute
func (h *LifecycleHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	id, req, ok := decodeLifecycle(w, r)
	if !ok {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.eng.Dispute(r.Context(), caller, id, req.Reason); err != nil {
		writeEngineError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "market disputed via api",
		slog.Uint64("market_id", id),
		slog.String("reason", req.Reason),
	)
	writeJSON(w, http.StatusOK, map[string]any{"disputed": true})
}
