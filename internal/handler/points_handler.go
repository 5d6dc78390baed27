package handler

import (
	"net/http"

	"order-settlement/internal/model"
	"order-settlement/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// PointsHandler handles loyalty balance reads, awards and redemptions.
type PointsHandler struct {
	ledger service.PointsLedger
	logger zerolog.Logger
}

// NewPointsHandler creates a new points handler.
func NewPointsHandler(ledger service.PointsLedger, logger zerolog.Logger) *PointsHandler {
	return &PointsHandler{
		ledger: ledger,
		logger: logger.With().Str("handler", "points").Logger(),
	}
}

// RegisterRoutes mounts the customer-facing points endpoints.
func (h *PointsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{id}/points", h.Balance)
	r.Get("/users/{id}/points/history", h.History)
	r.Post("/orders/{id}/points/redeem", h.Redeem)
}

// RegisterAdminRoutes mounts the points endpoints on an admin router.
func (h *PointsHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/users/{id}/points", h.Award)
}

// Balance handles GET /api/users/{id}/points.
func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.PointsBalance{UserID: userID, Balance: balance})
}

// History handles GET /api/users/{id}/points/history.
func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	entries, err := h.ledger.History(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if entries == nil {
		entries = []model.LoyaltyPoint{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// Award handles POST /api/admin/users/{id}/points.
func (h *PointsHandler) Award(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.AwardPointsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	entry, err := h.ledger.Award(r.Context(), userID, req.Points, req.Reason)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// Redeem handles POST /api/orders/{id}/points/redeem.
func (h *PointsHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.RedeemPointsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	resp, err := h.ledger.Redeem(r.Context(), orderID, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
