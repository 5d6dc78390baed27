package handler

import (
	"net/http"

	"order-settlement/internal/model"
	"order-settlement/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// POSHandler records in-store sales.
type POSHandler struct {
	builder service.POSOrderBuilder
	logger  zerolog.Logger
}

// NewPOSHandler creates a new POS handler.
func NewPOSHandler(builder service.POSOrderBuilder, logger zerolog.Logger) *POSHandler {
	return &POSHandler{
		builder: builder,
		logger:  logger.With().Str("handler", "pos").Logger(),
	}
}

// RegisterAdminRoutes mounts the POS endpoints on an admin router.
func (h *POSHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/pos/orders", h.Create)
}

// Create handles POST /api/admin/pos/orders.
func (h *POSHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.POSOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.builder.CreatePOSOrder(r.Context(), &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}
