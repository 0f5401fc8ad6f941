package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CartHandler handles cart-related HTTP requests.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// List handles GET /api/cart requests.
func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Items(r.Context(), requestIdentity(r))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if items == nil {
		items = []model.CartItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Add handles POST /api/cart/items requests.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req model.CartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	item, err := h.service.AddItem(r.Context(), requestIdentity(r), req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// Update handles PUT /api/cart/items/{productID} requests. An optional
// variantId query parameter selects the variant row.
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	productID, variantID, ok := h.itemSelector(w, r)
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	if err := h.service.UpdateItemQuantity(r.Context(), requestIdentity(r), productID, variantID, req.Quantity); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Remove handles DELETE /api/cart/items/{productID} requests.
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	productID, variantID, ok := h.itemSelector(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveItem(r.Context(), requestIdentity(r), productID, variantID); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/cart requests.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), requestIdentity(r)); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Merge handles POST /api/cart/merge requests, folding the session cart
// named in the body into the authenticated user's cart.
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	identity := requestIdentity(r)
	if identity.UserID == nil {
		writeError(w, http.StatusUnauthorized, model.ErrCodeUnauthorised, "authentication required", h.logger)
		return
	}

	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	if err := h.service.Merge(r.Context(), req.SessionID, *identity.UserID); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// itemSelector extracts the product id from the path and the optional
// variant id from the query string.
func (h *CartHandler) itemSelector(w http.ResponseWriter, r *http.Request) (uuid.UUID, *uuid.UUID, bool) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/cart/items/")
	productID, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid product ID format", h.logger)
		return uuid.Nil, nil, false
	}

	var variantID *uuid.UUID
	if v := r.URL.Query().Get("variantId"); v != "" {
		parsed, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid variant ID format", h.logger)
			return uuid.Nil, nil, false
		}
		variantID = &parsed
	}

	return productID, variantID, true
}
