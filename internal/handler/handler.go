// Package handler exposes the settlement services over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"order-settlement/internal/middleware"
	"order-settlement/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// statusByCode maps domain error codes onto HTTP statuses. Codes not listed are 500.
var statusByCode = map[string]int{
	model.ErrCodeInvalidJSON:             http.StatusBadRequest,
	model.ErrCodeInvalidID:               http.StatusBadRequest,
	model.ErrCodeMissingField:            http.StatusBadRequest,
	model.ErrCodeInvalidQuantity:         http.StatusBadRequest,
	model.ErrCodeInvalidAmount:           http.StatusBadRequest,
	model.ErrCodeInvalidStatus:           http.StatusBadRequest,
	model.ErrCodeCouponInvalid:           http.StatusBadRequest,
	model.ErrCodeCouponMinOrder:          http.StatusBadRequest,
	model.ErrCodeCouponNotFound:          http.StatusBadRequest,
	model.ErrCodeOrderNotFound:           http.StatusNotFound,
	model.ErrCodeUserNotFound:            http.StatusNotFound,
	model.ErrCodeProductNotFound:         http.StatusNotFound,
	model.ErrCodeVariantNotFound:         http.StatusNotFound,
	model.ErrCodeReturnNotFound:          http.StatusNotFound,
	model.ErrCodeVariantNotInOrder:       http.StatusNotFound,
	model.ErrCodeQuantityExceeded:        http.StatusConflict,
	model.ErrCodeInsufficientStock:       http.StatusConflict,
	model.ErrCodeInsufficientBalance:     http.StatusConflict,
	model.ErrCodeInvalidTransition:       http.StatusConflict,
	model.ErrCodeInvalidReturnTransition: http.StatusConflict,
	model.ErrCodeReturnNotApproved:       http.StatusConflict,
	model.ErrCodeReturnAlreadyExists:     http.StatusConflict,
	model.ErrCodeOrderNotReturnable:      http.StatusConflict,
	model.ErrCodePointsNotApplicable:     http.StatusConflict,
	model.ErrCodeUnauthorised:            http.StatusUnauthorized,
	model.ErrCodeForbidden:               http.StatusForbidden,
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes a coded error response for err. Domain errors keep their
// message; anything else is logged and reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	resp := model.ErrorResponse{
		Error:         model.ErrCodeInternalError,
		Message:       "internal server error",
		CorrelationID: middleware.RequestIDFromContext(r.Context()),
	}
	status := http.StatusInternalServerError

	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		if mapped, ok := statusByCode[domainErr.Code]; ok {
			status = mapped
			resp.Error = domainErr.Code
			resp.Message = err.Error()
		}
	}

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Int("status", status).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("request_id", resp.CorrelationID).
		Msg("handler error")

	writeJSON(w, status, resp)
}

// decodeJSON reads the request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewDomainError(model.ErrCodeInvalidJSON, "invalid request body: "+err.Error())
	}
	return nil
}

// uuidParam parses a UUID path parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, model.NewDomainError(model.ErrCodeInvalidID, "invalid "+name+" format")
	}
	return id, nil
}

// adminID returns the authenticated admin or an unauthorised error.
func adminID(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.AdminIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, model.NewDomainError(model.ErrCodeUnauthorised, "admin identity required")
	}
	return id, nil
}
