package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/matkalabs/matkad/internal/domain"
)

// MarketService defines the methods the market handlers require from the
// service layer. Declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	CreateMarket(ctx context.Context, name, openTime, closeTime string) (domain.Market, error)
	UpdateMarket(ctx context.Context, marketID, name, openTime, closeTime string) (domain.Market, error)
	DeleteMarket(ctx context.Context, marketID string) error
	GetMarket(ctx context.Context, marketID string) (domain.Market, error)
	ListMarkets(ctx context.Context) ([]domain.Market, error)
	Count(ctx context.Context) (int64, error)
}

// MarketHandler serves the market registry endpoints, both the public
// reads and the authenticated admin writes.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
}

// ListMarkets returns every market with its current window flags and
// result.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.ListMarkets(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   int64(len(markets)),
	})
}

// GetMarket returns a single market by its external ID.
// GET /api/markets/{marketId}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "marketId")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), marketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// marketRequest is the admin create/update request body.
type marketRequest struct {
	Name      string `json:"name"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

// CreateMarket registers a new market.
// POST /api/admin/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req marketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.CreateMarket(r.Context(), req.Name, req.OpenTime, req.CloseTime)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "market name already exists")
		default:
			h.logger.ErrorContext(r.Context(), "handler: create market failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to create market")
		}
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

// UpdateMarket changes a market's name and schedule.
// PUT /api/admin/markets/{marketId}
func (h *MarketHandler) UpdateMarket(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "marketId")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req marketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.UpdateMarket(r.Context(), marketID, req.Name, req.OpenTime, req.CloseTime)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "market not found")
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "market name already exists")
		default:
			h.logger.ErrorContext(r.Context(), "handler: update market failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to update market")
		}
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// DeleteMarket removes a market from the registry.
// DELETE /api/admin/markets/{marketId}
func (h *MarketHandler) DeleteMarket(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "marketId")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	if err := h.markets.DeleteMarket(r.Context(), marketID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: delete market failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete market")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
