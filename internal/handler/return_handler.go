package handler

import (
	"net/http"
	"strconv"

	"order-settlement/internal/model"
	"order-settlement/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReturnHandler handles return requests and their settlement.
type ReturnHandler struct {
	returns service.ReturnSettlement
	logger  zerolog.Logger
}

// NewReturnHandler creates a new return handler.
func NewReturnHandler(returns service.ReturnSettlement, logger zerolog.Logger) *ReturnHandler {
	return &ReturnHandler{
		returns: returns,
		logger:  logger.With().Str("handler", "return").Logger(),
	}
}

// RegisterRoutes mounts the customer-facing return endpoint.
func (h *ReturnHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders/{id}/returns", h.Create)
}

// RegisterAdminRoutes mounts the return endpoints on an admin router.
func (h *ReturnHandler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/returns", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.GetByID)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Post("/{id}/conditions", h.ConfirmConditions)
		r.Post("/{id}/refund", h.ProcessRefund)
	})
}

// Create handles POST /api/orders/{id}/returns.
func (h *ReturnHandler) Create(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.CreateReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	view, err := h.returns.CreateReturnRequest(r.Context(), orderID, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// List handles GET /api/admin/returns?status=&page=&size=.
// Malformed paging values fall back to the defaults.
func (h *ReturnHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter model.ReturnFilter
	if raw := query.Get("status"); raw != "" {
		status, err := model.ParseReturnStatus(raw)
		if err != nil {
			writeError(w, r, err, h.logger)
			return
		}
		filter.Status = &status
	}
	filter.Page, _ = strconv.Atoi(query.Get("page"))
	filter.Size, _ = strconv.Atoi(query.Get("size"))

	page, err := h.returns.ListReturns(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// GetByID handles GET /api/admin/returns/{id}.
func (h *ReturnHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	returnID, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	view, err := h.returns.GetReturn(r.Context(), returnID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// UpdateStatus handles PATCH /api/admin/returns/{id}/status.
func (h *ReturnHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	returnID, admin, ok := h.adminTarget(w, r)
	if !ok {
		return
	}

	var req model.UpdateReturnStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	view, err := h.returns.UpdateStatus(r.Context(), returnID, admin, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// ConfirmConditions handles POST /api/admin/returns/{id}/conditions.
func (h *ReturnHandler) ConfirmConditions(w http.ResponseWriter, r *http.Request) {
	returnID, admin, ok := h.adminTarget(w, r)
	if !ok {
		return
	}

	var req model.ConfirmConditionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	view, err := h.returns.ConfirmConditions(r.Context(), returnID, admin, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// ProcessRefund handles POST /api/admin/returns/{id}/refund.
func (h *ReturnHandler) ProcessRefund(w http.ResponseWriter, r *http.Request) {
	returnID, admin, ok := h.adminTarget(w, r)
	if !ok {
		return
	}

	view, err := h.returns.ProcessRefund(r.Context(), returnID, admin)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// adminTarget resolves the return ID and acting admin, writing the error response on failure.
func (h *ReturnHandler) adminTarget(w http.ResponseWriter, r *http.Request) (returnID, admin uuid.UUID, ok bool) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return returnID, admin, false
	}
	a, err := adminID(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return returnID, admin, false
	}
	return id, a, true
}
