package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/middleware"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code, error code
// and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	logger.Warn().Str("code", code).Str("error", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// writeServiceError maps a service-layer error to an HTTP response. Domain
// errors carry their own codes; everything else is an opaque 500.
func writeServiceError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var domErr *model.DomainError
	if errors.As(err, &domErr) {
		writeError(w, domainErrorStatus(domErr.Code), domErr.Code, domErr.Message, logger)
		return
	}

	var stockErr *model.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeError(w, http.StatusConflict, model.ErrCodeInsufficientStock, stockErr.Error(), logger)
		return
	}

	var minErr *model.DiscountMinimumError
	if errors.As(err, &minErr) {
		writeError(w, http.StatusBadRequest, model.ErrCodeDiscountMinimum, minErr.Error(), logger)
		return
	}

	var transErr *model.InvalidTransitionError
	if errors.As(err, &transErr) {
		writeError(w, http.StatusConflict, model.ErrCodeInvalidTransition, transErr.Error(), logger)
		return
	}

	var gwErr *model.GatewayError
	if errors.As(err, &gwErr) {
		writeError(w, http.StatusBadGateway, model.ErrCodeGatewayError, "payment gateway unavailable", logger)
		return
	}

	logger.Error().Err(err).Msg("unhandled service error")
	writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
}

// domainErrorStatus maps a domain error code to its HTTP status.
func domainErrorStatus(code string) int {
	switch code {
	case model.ErrCodeOrderNotFound, model.ErrCodeProductNotFound:
		return http.StatusNotFound
	case model.ErrCodeOrderNotCancellable:
		return http.StatusConflict
	case model.ErrCodeUnauthorised:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// queryInt reads an integer query parameter, falling back to a default on
// absence or garbage.
func queryInt(r *http.Request, name string, defaultValue int) int {
	if value := r.URL.Query().Get(name); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// requestIdentity resolves the cart identity for the request: the
// authenticated user when a valid token was presented, the anonymous session
// header otherwise.
func requestIdentity(r *http.Request) model.Identity {
	if userID := middleware.UserID(r.Context()); userID != nil {
		return model.UserIdentity(*userID)
	}
	return model.SessionIdentity(r.Header.Get("X-Session-ID"))
}
