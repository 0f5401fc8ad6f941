package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/middleware"
	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleDetail(orderID uuid.UUID, status model.OrderStatus) *model.OrderDetail {
	return &model.OrderDetail{
		Order: model.Order{
			ID:          orderID,
			OrderNumber: "ORD-20250314-AB12",
			Status:      status,
			TotalCents:  12500,
			Currency:    "usd",
		},
	}
}

func TestOrderHandler_List_RequiresAuth(t *testing.T) {
	mockService := new(MockOrderService)
	h := NewOrderHandler(mockService, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	w := httptest.NewRecorder()

	h.List(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockService.AssertNotCalled(t, "ListByUser")
}

func TestOrderHandler_List(t *testing.T) {
	userID := uuid.New()
	mockService := new(MockOrderService)
	mockService.On("ListByUser", mock.Anything, userID, 10, 20).
		Return([]model.Order{{ID: uuid.New(), OrderNumber: "ORD-20250314-AB12"}}, nil)
	h := NewOrderHandler(mockService, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/orders?limit=10&offset=20", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), userID, ""))
	w := httptest.NewRecorder()

	h.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var orders []model.Order
	require.NoError(t, json.NewDecoder(w.Body).Decode(&orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD-20250314-AB12", orders[0].OrderNumber)
	mockService.AssertExpectations(t)
}

func TestOrderHandler_List_EmptyHistory(t *testing.T) {
	userID := uuid.New()
	mockService := new(MockOrderService)
	mockService.On("ListByUser", mock.Anything, userID, 50, 0).Return(nil, nil)
	h := NewOrderHandler(mockService, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), userID, ""))
	w := httptest.NewRecorder()

	h.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestOrderHandler_GetByID(t *testing.T) {
	orderID := uuid.New()

	tests := []struct {
		name           string
		path           string
		setup          func(*MockOrderService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "Found",
			path: "/api/orders/" + orderID.String(),
			setup: func(m *MockOrderService) {
				m.On("GetByID", mock.Anything, orderID).Return(sampleDetail(orderID, model.OrderStatusPending), nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Not found",
			path: "/api/orders/" + orderID.String(),
			setup: func(m *MockOrderService) {
				m.On("GetByID", mock.Anything, orderID).Return(nil, nil)
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   model.ErrCodeOrderNotFound,
		},
		{
			name:           "Invalid id",
			path:           "/api/orders/not-a-uuid",
			setup:          func(m *MockOrderService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockOrderService)
			tt.setup(mockService)
			h := NewOrderHandler(mockService, zerolog.Nop())

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			h.GetByID(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				var resp model.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.expectedCode, resp.Error)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_Cancel(t *testing.T) {
	orderID := uuid.New()
	reason := "changed my mind"

	mockService := new(MockOrderService)
	mockService.On("Cancel", mock.Anything, orderID, &reason).
		Return(sampleDetail(orderID, model.OrderStatusCancelled), nil)
	h := NewOrderHandler(mockService, zerolog.Nop())

	body, _ := json.Marshal(model.CancelOrderRequest{Reason: &reason})
	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/cancel", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Cancel(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var detail model.OrderDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, model.OrderStatusCancelled, detail.Order.Status)
	mockService.AssertExpectations(t)
}

func TestOrderHandler_Cancel_NoBody(t *testing.T) {
	orderID := uuid.New()

	mockService := new(MockOrderService)
	mockService.On("Cancel", mock.Anything, orderID, (*string)(nil)).
		Return(sampleDetail(orderID, model.OrderStatusCancelled), nil)
	h := NewOrderHandler(mockService, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/cancel", nil)
	w := httptest.NewRecorder()

	h.Cancel(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestOrderHandler_Cancel_NotCancellable(t *testing.T) {
	orderID := uuid.New()

	mockService := new(MockOrderService)
	mockService.On("Cancel", mock.Anything, orderID, (*string)(nil)).
		Return(nil, model.ErrOrderNotCancellable)
	h := NewOrderHandler(mockService, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+orderID.String()+"/cancel", nil)
	w := httptest.NewRecorder()

	h.Cancel(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.ErrCodeOrderNotCancellable, resp.Error)
}

func TestOrderHandler_UpdateStatus_RequiresAdmin(t *testing.T) {
	orderID := uuid.New()

	mockService := new(MockOrderService)
	h := NewOrderHandler(mockService, zerolog.Nop())

	body, _ := json.Marshal(model.UpdateStatusRequest{Status: model.OrderStatusShipped})
	req := httptest.NewRequest(http.MethodPatch, "/api/orders/"+orderID.String()+"/status", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.UpdateStatus(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertNotCalled(t, "UpdateStatus")
}

func TestOrderHandler_UpdateStatus_AsAdmin(t *testing.T) {
	orderID := uuid.New()
	adminID := uuid.New()
	tracking := "TRK123"

	mockService := new(MockOrderService)
	mockService.On("UpdateStatus", mock.Anything, orderID, &model.UpdateStatusRequest{
		Status:         model.OrderStatusShipped,
		TrackingNumber: &tracking,
	}).Return(sampleDetail(orderID, model.OrderStatusShipped), nil)
	h := NewOrderHandler(mockService, zerolog.Nop())

	body, _ := json.Marshal(model.UpdateStatusRequest{Status: model.OrderStatusShipped, TrackingNumber: &tracking})
	req := httptest.NewRequest(http.MethodPatch, "/api/orders/"+orderID.String()+"/status", bytes.NewReader(body))
	req = req.WithContext(middleware.WithUser(req.Context(), adminID, "admin"))
	w := httptest.NewRecorder()

	h.UpdateStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestOrderHandler_UpdateStatus_InvalidTransition(t *testing.T) {
	orderID := uuid.New()
	adminID := uuid.New()

	mockService := new(MockOrderService)
	mockService.On("UpdateStatus", mock.Anything, orderID, mock.Anything).
		Return(nil, &model.InvalidTransitionError{From: model.OrderStatusDelivered, To: model.OrderStatusShipped})
	h := NewOrderHandler(mockService, zerolog.Nop())

	body, _ := json.Marshal(model.UpdateStatusRequest{Status: model.OrderStatusShipped})
	req := httptest.NewRequest(http.MethodPatch, "/api/orders/"+orderID.String()+"/status", bytes.NewReader(body))
	req = req.WithContext(middleware.WithUser(req.Context(), adminID, "admin"))
	w := httptest.NewRecorder()

	h.UpdateStatus(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.ErrCodeInvalidTransition, resp.Error)
}
