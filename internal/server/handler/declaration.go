package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/matkalabs/matkad/internal/domain"
)

// resultDateLayout is the wire format for the optional declaration date.
const resultDateLayout = "2006-01-02"

// DeclarationService defines the methods the declaration handlers require
// from the service layer.
type DeclarationService interface {
	Declare(ctx context.Context, marketID, openNumber, closeNumber string, resultDate time.Time) (domain.Market, error)
	PublishOpen(ctx context.Context, marketID, openNumber string) (domain.Market, error)
	ResetResult(ctx context.Context, marketID string) (domain.Market, error)
	History(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.ResultEntry, error)
}

// DeclarationHandler serves the admin result endpoints.
type DeclarationHandler struct {
	declarations DeclarationService
	logger       *slog.Logger
}

// NewDeclarationHandler creates a DeclarationHandler.
func NewDeclarationHandler(declarations DeclarationService, logger *slog.Logger) *DeclarationHandler {
	return &DeclarationHandler{
		declarations: declarations,
		logger:       logger,
	}
}

// declareRequest is the full-declaration request body. Date is optional
// and back-dates the result; it defaults to today.
type declareRequest struct {
	MarketID    string `json:"market_id"`
	OpenNumber  string `json:"open_number"`
	CloseNumber string `json:"close_number"`
	Date        string `json:"date,omitempty"`
}

// Declare computes and stores the full result for a market.
// POST /api/admin/markets/declare
func (h *DeclarationHandler) Declare(w http.ResponseWriter, r *http.Request) {
	var req declareRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MarketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var resultDate time.Time
	if req.Date != "" {
		d, err := time.Parse(resultDateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want "+resultDateLayout)
			return
		}
		resultDate = d
	}

	market, err := h.declarations.Declare(r.Context(), req.MarketID, req.OpenNumber, req.CloseNumber, resultDate)
	if err != nil {
		h.writeDeclarationError(w, r, "declare", req.MarketID, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// publishOpenRequest is the open-only publication request body.
type publishOpenRequest struct {
	MarketID   string `json:"market_id"`
	OpenNumber string `json:"open_number"`
}

// PublishOpen publishes the open-leg result only.
// POST /api/admin/markets/publish-open
func (h *DeclarationHandler) PublishOpen(w http.ResponseWriter, r *http.Request) {
	var req publishOpenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MarketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.declarations.PublishOpen(r.Context(), req.MarketID, req.OpenNumber)
	if err != nil {
		h.writeDeclarationError(w, r, "publish open", req.MarketID, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// resetRequest is the per-market reset request body.
type resetRequest struct {
	MarketID string `json:"market_id"`
}

// ResetResult clears one market's result back to the undeclared state.
// POST /api/admin/markets/reset-result
func (h *DeclarationHandler) ResetResult(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MarketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.declarations.ResetResult(r.Context(), req.MarketID)
	if err != nil {
		h.writeDeclarationError(w, r, "reset result", req.MarketID, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// historyResponse wraps the history endpoint output.
type historyResponse struct {
	Results []domain.ResultEntry `json:"results"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// History returns declared-result rows, optionally filtered by market.
// GET /api/admin/results?market_id=MKT-...&limit=50&offset=0
func (h *DeclarationHandler) History(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	marketID := r.URL.Query().Get("market_id")

	entries, err := h.declarations.History(r.Context(), marketID, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: result history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list results")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Results: entries,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// writeDeclarationError maps service errors onto HTTP status codes.
func (h *DeclarationHandler) writeDeclarationError(w http.ResponseWriter, r *http.Request, op, marketID string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidNumber):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "market not found")
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "a declaration for this market is already in progress")
	default:
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}
