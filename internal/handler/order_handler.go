package handler

import (
	"net/http"

	"order-settlement/internal/model"
	"order-settlement/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// OrderHandler handles admin order reads and status transitions.
type OrderHandler struct {
	lifecycle service.OrderLifecycle
	ledger    service.PointsLedger
	logger    zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(lifecycle service.OrderLifecycle, ledger service.PointsLedger, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		lifecycle: lifecycle,
		ledger:    ledger,
		logger:    logger.With().Str("handler", "order").Logger(),
	}
}

// RegisterAdminRoutes mounts the order endpoints on an admin router.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/orders/{id}", func(r chi.Router) {
		r.Get("/", h.GetByID)
		r.Patch("/status", h.UpdateStatus)
		r.Post("/points/earn", h.EarnPoints)
	})
}

// GetByID handles GET /api/admin/orders/{id}.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.lifecycle.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// UpdateStatus handles PATCH /api/admin/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.StatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.lifecycle.TransitionStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// EarnPoints handles POST /api/admin/orders/{id}/points/earn.
func (h *OrderHandler) EarnPoints(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.ledger.EarnFromOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}
