package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/predmarket/internal/domain"
	"github.com/alanyoungcy/predmarket/internal/engine"
)

// PositionHandler serves participant position and portfolio endpoints. The
// journal stores answer when configured, keeping read traffic off the engine
// lock; otherwise the engine's in-memory view is served.
type PositionHandler struct {
	eng        *engine.Engine
	positions  domain.PositionStore  // optional
	portfolios domain.PortfolioStore // optional
	logger     *slog.Logger
}

// NewPositionHandler creates a PositionHandler. positions and portfolios may
// be nil, in which case reads fall back to the engine.
func NewPositionHandler(eng *engine.Engine, positions domain.PositionStore, portfolios domain.PortfolioStore, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		eng:        eng,
		positions:  positions,
		portfolios: portfolios,
		logger:     logHandler(logger, "position"),
	}
}

// ListPositions returns the owner's positions across all markets. The store
// path supports pagination; the engine path returns every nonzero position.
// GET /api/positions?owner=0x...&limit=50&offset=0
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("owner", r.URL.Query().Get("owner"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var positions []domain.Position
	if h.positions != nil {
		positions, err = h.positions.ListByOwner(r.Context(), owner, parseListOpts(r))
		if err != nil {
			h.logger.ErrorContext(r.Context(), "list positions failed",
				slog.String("owner", owner.Hex()),
				slog.String("error", err.Error()),
			)
			writeEngineError(w, err)
			return
		}
	} else {
		positions = h.eng.PositionsOf(owner)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owner":     owner,
		"positions": positions,
	})
}

// GetPortfolio returns the owner's aggregate portfolio. An owner without a
// stored snapshot has simply never traded; the engine's zero-valued portfolio
// is served for them.
// GET /api/portfolio?owner=0x...
func (h *PositionHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress("owner", r.URL.Query().Get("owner"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if h.portfolios != nil {
		pf, err := h.portfolios.GetByOwner(r.Context(), owner)
		if err == nil {
			writeJSON(w, http.StatusOK, pf)
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.ErrorContext(r.Context(), "get portfolio failed",
				slog.String("owner", owner.Hex()),
				slog.String("error", err.Error()),
			)
			writeEngineError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, h.eng.PortfolioOf(owner))
}

// GetClaimStatus returns the owner's claim latches for one market.
// GET /api/markets/{id}/claim-status?owner=0x...
func (h *PositionHandler) GetClaimStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathMarketID(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	owner, err := parseAddress("owner", r.URL.Query().Get("owner"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	status, err := h.eng.ClaimStatusOf(id, owner)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"winnings_claimed":    status.Winnings,
		"free_tokens_claimed": status.FreeTokens,
	})
}
